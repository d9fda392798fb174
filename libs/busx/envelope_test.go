package busx

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestOKReplyCarriesData(t *testing.T) {
	body, err := okReply(map[string]string{"id": "abc"})
	if err != nil {
		t.Fatalf("okReply failed: %v", err)
	}

	var reply Reply
	if err := json.Unmarshal(body, &reply); err != nil {
		t.Fatalf("unmarshal reply: %v", err)
	}
	if !reply.OK {
		t.Fatal("expected ok=true")
	}
	var data map[string]string
	if err := json.Unmarshal(reply.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if data["id"] != "abc" {
		t.Fatalf("unexpected data: %v", data)
	}
}

func TestErrorReplyRoundTrip(t *testing.T) {
	body := errorReply(NewError("not_found", "no such doctor"))

	var reply Reply
	if err := json.Unmarshal(body, &reply); err != nil {
		t.Fatalf("unmarshal reply: %v", err)
	}
	if reply.OK {
		t.Fatal("expected ok=false")
	}
	if reply.Error == nil || reply.Error.Code != "not_found" {
		t.Fatalf("unexpected error: %+v", reply.Error)
	}

	var busErr *Error
	if !errors.As(error(reply.Error), &busErr) {
		t.Fatal("reply error should satisfy errors.As for *Error")
	}
	if busErr.Error() != "not_found: no such doctor" {
		t.Fatalf("unexpected error string: %s", busErr.Error())
	}
}
