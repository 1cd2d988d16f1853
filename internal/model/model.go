// Package model defines the core domain types for the event registration system.
package model

import "time"

// User is an account that can log in, create events and register for them.
type User struct {
	ID        string    `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Email     string    `json:"email" bson:"email"`
	Password  string    `json:"-" bson:"password"` // bcrypt hash, never serialized
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Event represents an event that users can register for.
type Event struct {
	ID              string    `json:"id" bson:"_id"`
	Title           string    `json:"title" bson:"title"`
	Date            time.Time `json:"date" bson:"date"`
	Location        string    `json:"location" bson:"location"`
	Description     string    `json:"description" bson:"description"`
	CreatedBy       string    `json:"createdBy" bson:"createdBy"`
	MaxParticipants int       `json:"maxParticipants" bson:"maxParticipants"`
	RegisteredUsers []string  `json:"registeredUsers" bson:"registeredUsers"`
	CreatedAt       time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt" bson:"updatedAt"`
}

// IsFull returns true when no seats remain.
func (e *Event) IsFull() bool {
	return len(e.RegisteredUsers) >= e.MaxParticipants
}

// HasRegistered reports whether userID is already in the registered-user set.
func (e *Event) HasRegistered(userID string) bool {
	for _, id := range e.RegisteredUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// EventDetail is an event whose registered users are resolved to profiles.
// The outer RegisteredUsers field shadows the embedded id list in JSON.
type EventDetail struct {
	*Event
	RegisteredUsers []User `json:"registeredUsers"`
}

// Registration represents a user's registration for an event.
type Registration struct {
	EventID   string    `json:"eventId"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// EventQuery filters and paginates event listings. A zero Limit means no
// pagination.
type EventQuery struct {
	Search string
	Page   int
	Limit  int
}

// Offset returns the number of rows to skip for the requested page.
func (q EventQuery) Offset() int {
	if q.Page <= 1 || q.Limit <= 0 {
		return 0
	}
	return (q.Page - 1) * q.Limit
}

// UserUpdate carries the mutable user fields. Nil fields are left unchanged.
type UserUpdate struct {
	Name     *string
	Email    *string
	Password *string // already hashed
}

// EventUpdate carries the mutable event fields. Nil fields are left unchanged.
type EventUpdate struct {
	Title           *string
	Date            *time.Time
	Location        *string
	Description     *string
	MaxParticipants *int
}

// RegisterUserRequest is the payload for creating an account.
type RegisterUserRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,max=72"`
}

// LoginRequest is the payload for logging in.
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UpdateUserRequest is the payload for PATCH /users/{id}.
type UpdateUserRequest struct {
	Name     *string `json:"name" validate:"omitempty,min=1"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Password *string `json:"password" validate:"omitempty,min=1,max=72"`
}

// CreateEventRequest is the payload for creating a new event. CreatedBy
// defaults to the authenticated caller when omitted.
type CreateEventRequest struct {
	Title           string `json:"title" validate:"required"`
	Date            string `json:"date" validate:"required"`
	Location        string `json:"location" validate:"required"`
	Description     string `json:"description"`
	CreatedBy       string `json:"createdBy" validate:"omitempty,uuid"`
	MaxParticipants int    `json:"maxParticipants" validate:"required,gt=0"`
}

// UpdateEventRequest is the payload for PATCH /events/{id}.
type UpdateEventRequest struct {
	Title           *string `json:"title" validate:"omitempty,min=1"`
	Date            *string `json:"date" validate:"omitempty,min=1"`
	Location        *string `json:"location" validate:"omitempty,min=1"`
	Description     *string `json:"description"`
	MaxParticipants *int    `json:"maxParticipants" validate:"omitempty,gt=0"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error  string   `json:"error"`
	Code   string   `json:"code,omitempty"`
	Fields []string `json:"fields,omitempty"`
}
