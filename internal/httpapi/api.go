// Package httpapi exposes the REST endpoints of the chat service:
// registration, login, room management, and the HTTP send path that fans
// messages out to connected WebSocket clients through the registry.
package httpapi

import (
	"context"

	"github.com/nexuschat/server/internal/auth"
	"github.com/nexuschat/server/internal/registry"
	"github.com/nexuschat/server/internal/store"
)

// Archiver persists users and messages to an external database. The
// in-memory store stays authoritative; archiving is a side write.
type Archiver interface {
	SaveUser(ctx context.Context, user store.User) error
	SaveMessage(ctx context.Context, msg store.Message) error
}

// API bundles the collaborators the handlers need.
type API struct {
	store   *store.Store
	auth    *auth.Service
	reg     *registry.Registry
	archive Archiver
}

// New creates the API over its collaborators. archive may be nil when no
// external database is configured.
func New(st *store.Store, authSvc *auth.Service, reg *registry.Registry, archive Archiver) *API {
	return &API{
		store:   st,
		auth:    authSvc,
		reg:     reg,
		archive: archive,
	}
}
