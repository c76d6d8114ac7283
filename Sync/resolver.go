package Sync

import (
	"context"

	"taskatlas/Models"
	"taskatlas/Store"
)

// UnassignedName is the display sentinel for tasks with no resolvable
// assignee.
const UnassignedName = "unassigned"

// Resolver turns a user id into a display name for denormalization onto
// task documents. Absence is data here, not an error: a missing user, a
// dangling id or a store hiccup all resolve to UnassignedName.
type Resolver struct {
	store *Store.Store
}

func NewResolver(store *Store.Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the user's name, or UnassignedName when the id is empty
// or matches no user. The lookup reads only the name field.
func (r *Resolver) Resolve(ctx context.Context, userID string) string {
	if userID == "" {
		return UnassignedName
	}
	name, ok, err := r.store.GetField(ctx, Models.UsersCollection, userID, "name")
	if err != nil || !ok || name == "" {
		return UnassignedName
	}
	return name
}
