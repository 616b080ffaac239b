// Package identity resolves bearer tokens to user identities.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/carlmjohnson/requests"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ErrUnauthenticated is returned when a token cannot be resolved to a user.
var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is the user a token belongs to.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Resolver maps a bearer token to an Identity.
type Resolver interface {
	Resolve(ctx context.Context, token string) (Identity, error)
}

// Deny rejects every token. It is used when no identity service is configured.
type Deny struct{}

func (Deny) Resolve(context.Context, string) (Identity, error) {
	return Identity{}, ErrUnauthenticated
}

// HTTP resolves tokens against an identity endpoint that answers
// GET requests carrying the bearer token with an Identity JSON body.
type HTTP struct {
	URL    string
	Client *http.Client
}

func (h *HTTP) Resolve(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrUnauthenticated
	}

	var id Identity
	err := requests.
		URL(h.URL).
		Client(h.client()).
		Bearer(token).
		ToJSON(&id).
		Fetch(ctx)
	switch {
	case requests.HasStatusErr(err, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound):
		return Identity{}, ErrUnauthenticated
	case err != nil:
		return Identity{}, fmt.Errorf("resolve identity: %w", err)
	case id.ID == "":
		return Identity{}, ErrUnauthenticated
	}
	return id, nil
}

func (h *HTTP) client() *http.Client {
	if h.Client != nil {
		return h.Client
	}
	return http.DefaultClient
}

// Cached remembers successful resolutions for a bounded time.
// Failures are never cached, so a transient outage does not lock a user out.
type Cached struct {
	next  Resolver
	cache *expirable.LRU[string, Identity]
}

// NewCached wraps next with an LRU of at most size entries, each living ttl.
func NewCached(next Resolver, size int, ttl time.Duration) *Cached {
	return &Cached{
		next:  next,
		cache: expirable.NewLRU[string, Identity](size, nil, ttl),
	}
}

func (c *Cached) Resolve(ctx context.Context, token string) (Identity, error) {
	if id, ok := c.cache.Get(token); ok {
		return id, nil
	}
	id, err := c.next.Resolve(ctx, token)
	if err != nil {
		return Identity{}, err
	}
	c.cache.Add(token, id)
	return id, nil
}
