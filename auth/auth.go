// Package auth checks the single account the login screen accepts.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrMissingFields      = errors.New("please fill in all fields")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Authenticator accepts one username/password pair
type Authenticator struct {
	username string
	hash     []byte
}

// New hashes password and returns an Authenticator for username
func New(username, password string) (*Authenticator, error) {
	if username == "" || password == "" {
		return nil, ErrMissingFields
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return &Authenticator{username: username, hash: hash}, nil
}

// NewFromHash uses an existing bcrypt hash
func NewFromHash(username, hash string) (*Authenticator, error) {
	if username == "" {
		return nil, ErrMissingFields
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("invalid password hash: %w", err)
	}
	return &Authenticator{username: username, hash: []byte(hash)}, nil
}

// Login checks the credentials
func (a *Authenticator) Login(username, password string) error {
	if username == "" || password == "" {
		return ErrMissingFields
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.username)) == 1
	passErr := bcrypt.CompareHashAndPassword(a.hash, []byte(password))
	if !userOK || passErr != nil {
		return ErrInvalidCredentials
	}
	return nil
}
