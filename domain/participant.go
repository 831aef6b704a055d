// Package domain contains core concepts of the chat system.
// This file defines users and the identity a request or a live connection acts as.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

type UserID string

// User is the public profile of an account. Credentials never leave the repository layer.
type User struct {
	ID        UserID    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Identity is what the identity gate produces from a valid token.
type Identity struct {
	UserID UserID
	Name   string
}
