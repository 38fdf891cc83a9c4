package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/example/collab-task-board/modules/board"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// AuthModule provides authentication services on top of the board's users.
type AuthModule struct {
	service   *AuthService
	boardPort board.BoardPort
	jwtConfig JWTConfig
	cost      int
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*AuthModule)(nil)
	_ mono.ServiceProviderModule = (*AuthModule)(nil)
	_ mono.DependentModule       = (*AuthModule)(nil)
)

// NewModule creates a new AuthModule.
func NewModule(jwtConfig JWTConfig) *AuthModule {
	return &AuthModule{
		jwtConfig: jwtConfig,
		cost:      DefaultBcryptCost,
	}
}

// Name returns the module name.
func (m *AuthModule) Name() string {
	return "auth"
}

// Dependencies returns the modules this module depends on.
func (m *AuthModule) Dependencies() []string {
	return []string{"board"}
}

// SetDependencyServiceContainer receives the board module's service container.
func (m *AuthModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	if dependency == "board" {
		m.boardPort = board.NewBoardAdapter(container)
	}
}

// Start builds the auth service.
func (m *AuthModule) Start(_ context.Context) error {
	if m.boardPort == nil {
		return fmt.Errorf("boardPort dependency not set")
	}
	m.service = NewAuthService(m.boardPort, NewPasswordHasher(m.cost), NewJWTManager(m.jwtConfig))
	log.Printf("[auth] Module started (issuer: %s, access ttl: %s)", m.jwtConfig.Issuer, m.jwtConfig.AccessTokenDuration)
	return nil
}

// Stop shuts down the module.
func (m *AuthModule) Stop(_ context.Context) error {
	log.Println("[auth] Module stopped")
	return nil
}

// RegisterServices registers request-reply services in the service container.
func (m *AuthModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "register", json.Unmarshal, json.Marshal, m.handleRegister,
	); err != nil {
		return fmt.Errorf("failed to register register service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "login", json.Unmarshal, json.Marshal, m.handleLogin,
	); err != nil {
		return fmt.Errorf("failed to register login service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "refresh-token", json.Unmarshal, json.Marshal, m.handleRefresh,
	); err != nil {
		return fmt.Errorf("failed to register refresh-token service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "validate-token", json.Unmarshal, json.Marshal, m.handleValidateToken,
	); err != nil {
		return fmt.Errorf("failed to register validate-token service: %w", err)
	}

	log.Printf("[auth] Registered services: register, login, refresh-token, validate-token")
	return nil
}

func (m *AuthModule) handleRegister(ctx context.Context, req RegisterRequest, _ *mono.Msg) (RegisterResponse, error) {
	u, err := m.service.Register(ctx, req.Name, req.Email, req.Password)
	if err != nil {
		if code := codeFor(err); code != "" {
			return RegisterResponse{ErrorCode: code, Message: err.Error()}, nil
		}
		return RegisterResponse{}, err
	}
	return RegisterResponse{Member: &Member{ID: u.ID, Name: u.Name, Email: u.Email}}, nil
}

func (m *AuthModule) handleLogin(ctx context.Context, req LoginRequest, _ *mono.Msg) (TokenResponse, error) {
	login, err := m.service.Login(ctx, req.Email, req.Password)
	return tokenResponse(login, err)
}

func (m *AuthModule) handleRefresh(ctx context.Context, req RefreshRequest, _ *mono.Msg) (TokenResponse, error) {
	login, err := m.service.Refresh(ctx, req.RefreshToken)
	return tokenResponse(login, err)
}

func tokenResponse(login *Login, err error) (TokenResponse, error) {
	if err != nil {
		if code := codeFor(err); code != "" {
			return TokenResponse{ErrorCode: code, Message: err.Error()}, nil
		}
		return TokenResponse{}, err
	}
	return TokenResponse{
		Tokens: login.Tokens,
		Member: &Member{ID: login.Session.UserID, Name: login.Session.Name, Email: login.Session.Email},
	}, nil
}

func (m *AuthModule) handleValidateToken(ctx context.Context, req ValidateTokenRequest, _ *mono.Msg) (ValidateTokenResponse, error) {
	session, err := m.service.ValidateToken(ctx, req.Token)
	if err != nil {
		// Validation failures are answers, not transport errors.
		code := codeFor(err)
		if code == "" {
			code = CodeInvalidToken
		}
		return ValidateTokenResponse{Valid: false, Error: code}, nil
	}
	return ValidateTokenResponse{Valid: true, Session: session}, nil
}
