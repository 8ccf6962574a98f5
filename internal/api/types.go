package api

import (
	"encoding/json"
	"time"
)

// User is the authenticated user record returned by the auth endpoints.
type User struct {
	ID         string    `json:"_id"`
	FullName   string    `json:"fullName"`
	Email      string    `json:"email"`
	ProfilePic string    `json:"profilePic"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`

	// Raw keeps the full response body, including fields this client does not model.
	Raw json.RawMessage `json:"-"`
}

type SignupRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ProfileUpdate carries the new profile picture, usually a data URL.
type ProfileUpdate struct {
	ProfilePic string `json:"profilePic"`
}

type errorResponse struct {
	Message string `json:"message"`
}
