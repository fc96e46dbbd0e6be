package identity

import (
	"errors"
	"fmt"

	"auction-bidding/internal/config"
	"auction-bidding/internal/domain"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrUnknownRole     = errors.New("unknown role")
)

// NewProvider picks the identity provider configured by auth.mode.
func NewProvider(cfg config.AuthConfig) (domain.IdentityProvider, error) {
	switch cfg.Mode {
	case config.AuthModeHeader:
		return NewHeaderProvider(), nil
	case config.AuthModeJWT:
		return NewJWTProvider([]byte(cfg.JWTSecret)), nil
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Mode)
	}
}

func parseRole(s string) (domain.Role, error) {
	switch r := domain.Role(s); r {
	case domain.RoleBuyer, domain.RoleSeller:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}
