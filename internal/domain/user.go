package domain

import "time"

// Role is the sole authorization dimension of a user
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleClient Role = "client"
)

// User represents an authenticated storefront user
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Credentials is the login payload
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Registration is the account creation payload
type Registration struct {
	Name     string `json:"name" validate:"required,notblank"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// AuthResult is what the backend returns on login
type AuthResult struct {
	AccessToken string `json:"access_token"`
	User        User   `json:"user"`
}
