package auth

import (
	"errors"

	"github.com/example/collab-task-board/domain/user"
)

// Error codes carried in auth service responses.
const (
	CodeInvalidCredentials = "invalid_credentials"
	CodeInvalidInput       = "invalid_input"
	CodeUserExists         = "user_exists"
	CodeInvalidToken       = "invalid_token"
	CodeExpiredToken       = "expired_token"
)

// Member is the public view of a board member.
type Member struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// RegisterRequest represents a user registration request.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResponse represents a user registration response.
type RegisterResponse struct {
	Member    *Member `json:"member,omitempty"`
	ErrorCode string  `json:"error_code,omitempty"`
	Message   string  `json:"message,omitempty"`
}

// LoginRequest represents a user login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RefreshRequest represents a token refresh request.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenResponse carries a token pair and the member it was issued to.
type TokenResponse struct {
	Tokens    *user.TokenPair `json:"tokens,omitempty"`
	Member    *Member         `json:"member,omitempty"`
	ErrorCode string          `json:"error_code,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// ValidateTokenRequest represents a token validation request.
type ValidateTokenRequest struct {
	Token string `json:"token"`
}

// ValidateTokenResponse represents a token validation response.
type ValidateTokenResponse struct {
	Valid   bool          `json:"valid"`
	Session *user.Session `json:"session,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// codeFor maps an expected auth outcome to its wire code. Unexpected errors map to "".
func codeFor(err error) string {
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return CodeInvalidCredentials
	case errors.Is(err, ErrInvalidEmail), errors.Is(err, ErrNameRequired),
		errors.Is(err, ErrWeakPassword), errors.Is(err, ErrPasswordTooLong):
		return CodeInvalidInput
	case errors.Is(err, user.ErrUserExists):
		return CodeUserExists
	case errors.Is(err, ErrExpiredToken):
		return CodeExpiredToken
	case errors.Is(err, ErrInvalidToken):
		return CodeInvalidToken
	}
	return ""
}

// errorFor rebuilds the error for a wire code.
func errorFor(code, message string) error {
	switch code {
	case "":
		return nil
	case CodeInvalidCredentials:
		return ErrInvalidCredentials
	case CodeUserExists:
		return user.ErrUserExists
	case CodeExpiredToken:
		return ErrExpiredToken
	case CodeInvalidToken:
		return ErrInvalidToken
	case CodeInvalidInput:
		return &InputError{Message: message}
	}
	return errors.New(message)
}

// InputError reports a registration field that failed validation.
type InputError struct {
	Message string
}

func (e *InputError) Error() string {
	return e.Message
}
