// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is the identity record. Email is stored normalised (lower-case).
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
