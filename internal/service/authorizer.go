package service

import "context"

// Authorizer answers whether an actor holds the administrator capability.
type Authorizer interface {
	IsAdministrator(ctx context.Context, actorID string) bool
}

// StaticAdmins is an Authorizer backed by a fixed set of actor ids (ADMIN_IDS).
type StaticAdmins map[string]struct{}

// NewStaticAdmins returns an Authorizer granting administrator to ids.
func NewStaticAdmins(ids ...string) StaticAdmins {
	s := make(StaticAdmins, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s StaticAdmins) IsAdministrator(_ context.Context, actorID string) bool {
	_, ok := s[actorID]
	return ok
}
