package identity

import (
	"fmt"
	"net/http"
	"strings"

	"auction-bidding/internal/domain"

	"github.com/golang-jwt/jwt"
)

// Claims carried by bearer tokens. The subject is the user id.
type Claims struct {
	Role string `json:"role"`
	jwt.StandardClaims
}

// JWTProvider verifies HS256 bearer tokens, read from the Authorization
// header or the token query parameter.
type JWTProvider struct {
	secret []byte
}

func NewJWTProvider(secret []byte) *JWTProvider {
	return &JWTProvider{secret: secret}
}

func (p *JWTProvider) Authenticate(r *http.Request) (*domain.Identity, error) {
	raw := bearerToken(r)
	if raw == "" {
		return nil, ErrUnauthenticated
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrUnauthenticated)
	}

	role, err := parseRole(claims.Role)
	if err != nil {
		return nil, err
	}
	return &domain.Identity{UserID: claims.Subject, Role: role}, nil
}

// Sign issues a token for identity. Used by tooling and tests.
func (p *JWTProvider) Sign(identity domain.Identity, expiresAt int64) (string, error) {
	claims := &Claims{
		Role: string(identity.Role),
		StandardClaims: jwt.StandardClaims{
			Subject:   identity.UserID,
			ExpiresAt: expiresAt,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.secret)
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
