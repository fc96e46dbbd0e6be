package middleware

import (
	"net/http"

	"auction-bidding/internal/domain"

	"github.com/labstack/echo/v4"
)

const identityKey = "identity"

// Authenticate resolves the caller through provider and stores the identity
// on the echo context.
func Authenticate(provider domain.IdentityProvider) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity, err := provider.Authenticate(c.Request())
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error":  "unauthenticated",
					"detail": err.Error(),
				})
			}
			c.Set(identityKey, identity)
			return next(c)
		}
	}
}

// RequireRole must run after Authenticate.
func RequireRole(role domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity := IdentityFrom(c)
			if identity == nil || identity.Role != role {
				return c.JSON(http.StatusForbidden, map[string]string{
					"error": "only " + string(role) + "s may do this",
				})
			}
			return next(c)
		}
	}
}

func IdentityFrom(c echo.Context) *domain.Identity {
	identity, _ := c.Get(identityKey).(*domain.Identity)
	return identity
}
