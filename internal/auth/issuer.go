package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/immxrtalbeast/chat_gateway/internal/domain"
)

// Sign mints a credential in the issuer's format. The gateway only verifies
// tokens; Sign exists for tooling and tests.
func Sign(secret string, ident domain.Identity, expiresAt time.Time) (string, error) {
	userID := ident.UserID
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		UserID: &userID,
		Email:  ident.Email,
		Name:   ident.DisplayName,
		Role:   string(ident.Role),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
