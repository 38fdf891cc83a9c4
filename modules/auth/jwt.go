package auth

import (
	"errors"
	"time"

	"github.com/example/collab-task-board/domain/user"
	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when the token is invalid.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("token has expired")
)

const (
	tokenKindAccess  = "access"
	tokenKindRefresh = "refresh"
)

// JWTConfig holds JWT configuration.
type JWTConfig struct {
	SecretKey            string
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
	Issuer               string
}

// DefaultJWTConfig returns a development configuration.
// Deployments override SecretKey through JWT_SECRET_KEY.
func DefaultJWTConfig() JWTConfig {
	return JWTConfig{
		SecretKey:            "collab-board-dev-secret",
		AccessTokenDuration:  15 * time.Minute,
		RefreshTokenDuration: 7 * 24 * time.Hour,
		Issuer:               "collab-task-board",
	}
}

// boardClaims identifies a board member and the purpose of the token.
type boardClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	jwt.RegisteredClaims
}

// JWTManager signs and verifies HS256 session tokens.
type JWTManager struct {
	config JWTConfig
	now    func() time.Time
}

// NewJWTManager creates a new JWTManager with the given configuration.
func NewJWTManager(config JWTConfig) *JWTManager {
	return &JWTManager{
		config: config,
		now:    time.Now,
	}
}

// IssuePair signs a fresh access and refresh token for the session.
func (m *JWTManager) IssuePair(s user.Session) (*user.TokenPair, error) {
	access, err := m.sign(s, tokenKindAccess, m.config.AccessTokenDuration)
	if err != nil {
		return nil, err
	}
	refresh, err := m.sign(s, tokenKindRefresh, m.config.RefreshTokenDuration)
	if err != nil {
		return nil, err
	}
	return &user.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(m.config.AccessTokenDuration.Seconds()),
		TokenType:    "Bearer",
	}, nil
}

func (m *JWTManager) sign(s user.Session, kind string, ttl time.Duration) (string, error) {
	now := m.now()
	claims := boardClaims{
		Email: s.Email,
		Name:  s.Name,
		Kind:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			Subject:   s.UserID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(m.config.SecretKey))
}

// ParseAccess verifies an access token and returns its session.
func (m *JWTManager) ParseAccess(token string) (*user.Session, error) {
	return m.parse(token, tokenKindAccess)
}

// ParseRefresh verifies a refresh token and returns its session.
func (m *JWTManager) ParseRefresh(token string) (*user.Session, error) {
	return m.parse(token, tokenKindRefresh)
}

func (m *JWTManager) parse(tokenString, kind string) (*user.Session, error) {
	var claims boardClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(m.config.SecretKey), nil
	}, jwt.WithIssuer(m.config.Issuer), jwt.WithTimeFunc(m.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid || claims.Kind != kind || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &user.Session{
		UserID: claims.Subject,
		Email:  claims.Email,
		Name:   claims.Name,
	}, nil
}
