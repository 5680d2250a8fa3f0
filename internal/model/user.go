package model

import "time"

// User is a local email/password account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UserDetail is the profile stored at userDetails/{id}.
type UserDetail struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	TimeLoggers []TimeLoggerInfo `json:"timeLoggers"`
	LastLogin   *time.Time       `json:"lastLogin"`
	CreatedAt   *time.Time       `json:"createdAt"`
}

type TimeLoggerInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
