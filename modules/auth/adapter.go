package auth

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/collab-task-board/domain/user"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// AuthPort defines the authentication operations available to other modules.
type AuthPort interface {
	Register(ctx context.Context, name, email, password string) (*Member, error)
	Login(ctx context.Context, email, password string) (*Login, error)
	Refresh(ctx context.Context, refreshToken string) (*Login, error)
	ValidateToken(ctx context.Context, token string) (*user.Session, error)
}

// authAdapter implements AuthPort using the service container.
type authAdapter struct {
	container mono.ServiceContainer
}

// NewAuthAdapter creates a new adapter for auth services.
func NewAuthAdapter(container mono.ServiceContainer) AuthPort {
	if container == nil {
		panic("auth adapter requires non-nil ServiceContainer")
	}
	return &authAdapter{container: container}
}

// Register creates a member via the register service.
func (a *authAdapter) Register(ctx context.Context, name, email, password string) (*Member, error) {
	req := RegisterRequest{Name: name, Email: email, Password: password}
	var resp RegisterResponse

	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		"register",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("register request failed: %w", err)
	}
	if err := errorFor(resp.ErrorCode, resp.Message); err != nil {
		return nil, err
	}
	return resp.Member, nil
}

// Login authenticates via the login service.
func (a *authAdapter) Login(ctx context.Context, email, password string) (*Login, error) {
	req := LoginRequest{Email: email, Password: password}
	return a.tokenCall(ctx, "login", &req)
}

// Refresh exchanges a refresh token via the refresh-token service.
func (a *authAdapter) Refresh(ctx context.Context, refreshToken string) (*Login, error) {
	req := RefreshRequest{RefreshToken: refreshToken}
	return a.tokenCall(ctx, "refresh-token", &req)
}

func (a *authAdapter) tokenCall(ctx context.Context, service string, req any) (*Login, error) {
	var resp TokenResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("%s request failed: %w", service, err)
	}
	if err := errorFor(resp.ErrorCode, resp.Message); err != nil {
		return nil, err
	}
	if resp.Tokens == nil || resp.Member == nil {
		return nil, fmt.Errorf("%s returned an empty grant", service)
	}
	return &Login{
		Tokens:  resp.Tokens,
		Session: user.Session{UserID: resp.Member.ID, Email: resp.Member.Email, Name: resp.Member.Name},
	}, nil
}

// ValidateToken validates an access token via the validate-token service.
func (a *authAdapter) ValidateToken(ctx context.Context, token string) (*user.Session, error) {
	req := ValidateTokenRequest{Token: token}
	var resp ValidateTokenResponse

	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		"validate-token",
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("validate-token request failed: %w", err)
	}
	if !resp.Valid || resp.Session == nil {
		if resp.Error == CodeExpiredToken {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	return resp.Session, nil
}
