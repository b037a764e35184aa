package sundaews

import (
	"context"
	"fmt"

	"github.com/SundaeSwap-finance/sundae-relay/sundae-ws/connectiondao"
)

// Store is the durable membership store. *connectiondao.DAO is the production
// implementation.
type Store interface {
	Put(ctx context.Context, conn connectiondao.Connection) error
	Delete(ctx context.Context, connectionID string) error
	ScanAll(ctx context.Context) ([]string, error)
}

// Registry is the only writer of the membership store. It keeps no state of
// its own, so every handler instance sees the same membership.
type Registry struct {
	store Store
}

func NewRegistry(store Store) *Registry {
	return &Registry{store: store}
}

// Add registers connectionID. Adding an id twice leaves a single record.
func (r *Registry) Add(ctx context.Context, connectionID string) error {
	return r.AddConnection(ctx, connectiondao.Connection{ConnectionID: connectionID})
}

// AddConnection registers conn along with its informational attributes.
func (r *Registry) AddConnection(ctx context.Context, conn connectiondao.Connection) error {
	if conn.ConnectionID == "" {
		return fmt.Errorf("unable to add connection: %w", ErrMissingConnectionID)
	}
	if err := r.store.Put(ctx, conn); err != nil {
		return fmt.Errorf("unable to add connection %v: %w", conn.ConnectionID, err)
	}
	return nil
}

// Remove unregisters connectionID. Removing an unknown id is not an error.
func (r *Registry) Remove(ctx context.Context, connectionID string) error {
	if connectionID == "" {
		return fmt.Errorf("unable to remove connection: %w", ErrMissingConnectionID)
	}
	if err := r.store.Delete(ctx, connectionID); err != nil {
		return fmt.Errorf("unable to remove connection %v: %w", connectionID, err)
	}
	return nil
}

// ListAll returns a point in time snapshot of every registered id. It may miss
// ids added, or include ids removed, while the scan is in flight.
func (r *Registry) ListAll(ctx context.Context) ([]string, error) {
	ids, err := r.store.ScanAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to list connections: %w", err)
	}
	return ids, nil
}
