package account

import (
	"errors"
	"time"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrUsernameTaken      = errors.New("Username already exists")
	ErrInvalidCredentials = errors.New("Invalid username or password")
	ErrUnavailable        = errors.New("Database unavailable")
	ErrValidation         = errors.New("invalid account")
)

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	ResponderID  *int64    `json:"responderId"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Registration is a self-service responder signup.
type Registration struct {
	Username      string
	Password      string
	Name          string
	ContactNumber string
}

type Registered struct {
	UserID        int64  `json:"userId"`
	ResponderID   int64  `json:"responderId"`
	Username      string `json:"username"`
	Name          string `json:"name"`
	ContactNumber string `json:"contact_number"`
}

// Session is a successful login.
type Session struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	Name        string    `json:"name"`
	Role        string    `json:"role"`
	ResponderID *int64    `json:"responderId"`
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expiresAt"`
}
