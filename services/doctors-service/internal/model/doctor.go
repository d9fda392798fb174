package model

import "time"

type Doctor struct {
	ID        string
	DNI       string
	FullName  string
	Specialty string
	Email     string
	Active    bool
	CreatedAt time.Time
}
