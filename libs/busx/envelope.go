package busx

import "encoding/json"

// Reply is the wire envelope every command handler answers with.
type Reply struct {
	OK    bool            `json:"ok"`
	Error *Error          `json:"error,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Error is a command failure that travels across the bus. Code is a stable
// machine-readable kind ("not_found", "invalid_input", ...); Message is
// human-readable and may change.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func okReply(data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Reply{OK: true, Data: raw})
}

func errorReply(e *Error) []byte {
	raw, err := json.Marshal(Reply{OK: false, Error: e})
	if err != nil {
		// Marshalling a flat struct of strings cannot fail; keep the
		// compiler honest with a static fallback.
		return []byte(`{"ok":false,"error":{"code":"internal","message":"reply encode failed"}}`)
	}
	return raw
}
