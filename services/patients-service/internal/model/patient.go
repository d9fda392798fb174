package model

import "time"

type Patient struct {
	ID        string
	DNI       string
	FullName  string
	Sex       string
	Email     string
	Active    bool
	CreatedAt time.Time
}
