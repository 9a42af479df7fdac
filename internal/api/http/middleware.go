package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/immxrtalbeast/chat_gateway/internal/auth"
	"github.com/immxrtalbeast/chat_gateway/internal/domain"
	"github.com/immxrtalbeast/chat_gateway/internal/service"
)

const identityKey = "identity"

// AuthRequired verifies the bearer token and stores the identity on the context.
func AuthRequired(verifier service.TokenVerifier) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ident, err := verifier.Verify(auth.TokenFromRequest(ctx.Request))
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "details": err.Error()})
			return
		}
		ctx.Set(identityKey, ident)
		ctx.Next()
	}
}

// IdentityFrom returns the identity stored by AuthRequired.
func IdentityFrom(ctx *gin.Context) (domain.Identity, bool) {
	v, ok := ctx.Get(identityKey)
	if !ok {
		return domain.Identity{}, false
	}
	ident, ok := v.(domain.Identity)
	return ident, ok
}
