package identity

import (
	"net/http"

	"auction-bidding/internal/domain"
)

const (
	UserIDHeader = "X-User-ID"
	RoleHeader   = "X-User-Role"
)

// HeaderProvider trusts identity headers set by an upstream gateway. Browsers
// cannot set headers on a websocket handshake, so user_id and role query
// parameters are accepted as a fallback.
type HeaderProvider struct{}

func NewHeaderProvider() *HeaderProvider {
	return &HeaderProvider{}
}

func (p *HeaderProvider) Authenticate(r *http.Request) (*domain.Identity, error) {
	userID := r.Header.Get(UserIDHeader)
	role := r.Header.Get(RoleHeader)
	if userID == "" {
		userID = r.URL.Query().Get("user_id")
		role = r.URL.Query().Get("role")
	}
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	parsed, err := parseRole(role)
	if err != nil {
		return nil, err
	}
	return &domain.Identity{UserID: userID, Role: parsed}, nil
}
