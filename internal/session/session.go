// Package session carries the authenticated actor through a request and
// validates the Supabase access tokens that identify it.
package session

import (
	"context"
	"fmt"

	"github.com/boddenberg/farma-crm-bfa-go/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const actorKey contextKey = "actorID"

// WithActor returns a context carrying the authenticated actor id.
func WithActor(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorKey, actorID)
}

// ActorFromContext extracts the authenticated actor id from context.
func ActorFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(actorKey).(string)
	return v, ok && v != ""
}

// Claims are the parts of a Supabase access token the CRM relies on.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Validator checks access tokens signed with the project's JWT secret.
type Validator struct {
	secret []byte
}

func NewValidator(secret string) *Validator {
	return &Validator{secret: []byte(secret)}
}

// Validate parses the token and returns its claims. Subject is the actor id.
func (v *Validator) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, &domain.ErrUnauthenticated{}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, &domain.ErrUnauthenticated{}
	}
	if claims.Role != "" && claims.Role != "authenticated" && claims.Role != "service_role" {
		return nil, &domain.ErrUnauthenticated{}
	}
	return claims, nil
}
