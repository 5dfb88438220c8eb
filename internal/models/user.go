package models

import "time"

type User struct {
	ID           uint64
	Nickname     string
	Names        string
	Lastnames    string
	Email        string
	PasswordHash string
	City         string
	Phone        string
	CreatedAt    time.Time
}
