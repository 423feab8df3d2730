// Package queue defines message payloads exchanged over the message broker.
package queue

// UserRegisteredEvent is published when a signup completes.  It carries
// enough information for downstream consumers to send a welcome message
// or provision studio defaults without querying the primary database.
// It never contains credentials or tokens.
type UserRegisteredEvent struct {
	UserID       string `json:"user_id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	Name         string `json:"name,omitempty"`
	StudioName   string `json:"studio_name,omitempty"`
	Role         string `json:"role"`
	RegisteredAt string `json:"registered_at"`
}
