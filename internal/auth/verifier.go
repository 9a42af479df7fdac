package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/immxrtalbeast/chat_gateway/internal/domain"
)

var (
	ErrMissingToken     = errors.New("missing token")
	ErrMalformedToken   = errors.New("malformed token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidSignature = errors.New("invalid token signature")
)

// Claims is the credential payload minted by the identity service.
type Claims struct {
	jwt.RegisteredClaims
	UserID *int64 `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role,omitempty"`
}

type Verifier struct {
	secret    []byte
	algorithm string
	now       func() time.Time
}

type Option func(*Verifier)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) {
		v.now = now
	}
}

func NewVerifier(secret string, algorithm string, opts ...Option) (*Verifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	if algorithm == "" {
		algorithm = jwt.SigningMethodHS256.Alg()
	}
	if _, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}

	v := &Verifier{
		secret:    []byte(secret),
		algorithm: algorithm,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Verify checks the signature and expiry of rawToken and maps its claims to an Identity.
func (v *Verifier) Verify(rawToken string) (domain.Identity, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return domain.Identity{}, ErrMissingToken
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(rawToken, &claims, func(token *jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{v.algorithm}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return domain.Identity{}, mapJWTError(err)
	}

	if claims.ExpiresAt == nil {
		return domain.Identity{}, fmt.Errorf("%w: exp is required", ErrMalformedToken)
	}
	if !claims.ExpiresAt.Time.After(v.now()) {
		return domain.Identity{}, ErrExpiredToken
	}
	if claims.UserID == nil {
		return domain.Identity{}, fmt.Errorf("%w: user_id is required", ErrMalformedToken)
	}

	return domain.Identity{
		UserID:      *claims.UserID,
		DisplayName: claims.Name,
		Email:       claims.Email,
		Role:        domain.ParseRole(claims.Role),
	}, nil
}

func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpiredToken
	default:
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
}

// TokenFromRequest extracts the raw credential from the Authorization header
// or, for clients that cannot set headers on a websocket handshake, the token query parameter.
// A header with another scheme, such as Basic auth added by a proxy, does not hide the query token.
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}

	token := r.URL.Query().Get("token")
	return strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
}
