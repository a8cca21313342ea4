package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"rentalmgmt/pkg/domain"
)

const (
	// DefaultTokenTTL matches the access-token lifetime used by the API.
	DefaultTokenTTL = 60 * time.Minute
	// DefaultLeeway is clock skew tolerance for token validation.
	DefaultLeeway = 15 * time.Second

	defaultIssuer = "rentalmgmt"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenRevoked = errors.New("token revoked")
)

// Claims is the validated content of a session token.
type Claims struct {
	UserID    uint
	Username  string
	Role      domain.Role
	TokenID   string
	ExpiresAt time.Time
}

type tokenClaims struct {
	UserID uint   `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// TokenServiceOptions configures session token issuance and validation.
type TokenServiceOptions struct {
	Secret  string
	Issuer  string
	TTL     time.Duration
	Leeway  time.Duration
	Revoker TokenRevoker
}

// TokenService issues and resolves HS256 bearer tokens. Tokens carry the
// actor's id, username (subject), and role; the token id backs revocation.
type TokenService struct {
	secret  []byte
	issuer  string
	ttl     time.Duration
	leeway  time.Duration
	revoker TokenRevoker
}

// NewTokenService builds a token service from options.
func NewTokenService(opts TokenServiceOptions) (*TokenService, error) {
	if strings.TrimSpace(opts.Secret) == "" {
		return nil, errors.New("token secret is required")
	}
	issuer := strings.TrimSpace(opts.Issuer)
	if issuer == "" {
		issuer = defaultIssuer
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	leeway := opts.Leeway
	if leeway <= 0 {
		leeway = DefaultLeeway
	}
	return &TokenService{
		secret:  []byte(opts.Secret),
		issuer:  issuer,
		ttl:     ttl,
		leeway:  leeway,
		revoker: opts.Revoker,
	}, nil
}

// Issue signs a new token for the user.
func (s *TokenService) Issue(user domain.User) (string, error) {
	now := time.Now().UTC()
	claims := tokenClaims{
		UserID: user.ID,
		Role:   string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Resolve validates signature, expiry, issuer, and revocation state.
func (s *TokenService) Resolve(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, ErrInvalidToken
	}
	claims := tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unsupported signing method")
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(s.leeway),
	)
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}
	if claims.ID == "" || strings.TrimSpace(claims.Subject) == "" {
		return Claims{}, ErrInvalidToken
	}
	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	if s.revoker != nil {
		revoked, err := s.revoker.IsRevoked(claims.ID)
		if err != nil {
			return Claims{}, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return Claims{}, ErrTokenRevoked
		}
	}
	var expires time.Time
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	return Claims{
		UserID:    claims.UserID,
		Username:  claims.Subject,
		Role:      role,
		TokenID:   claims.ID,
		ExpiresAt: expires,
	}, nil
}

// Revoke invalidates the token until its natural expiry.
func (s *TokenService) Revoke(claims Claims) error {
	if s.revoker == nil {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt)
	return s.revoker.Revoke(claims.TokenID, ttl)
}
