package client

import "context"

// ClientStore persists client registrations. Lookups for an unknown
// client return domain.ErrNotFound wrapped as ErrClientNotFound by the
// implementations.
type ClientStore interface {
	// CreateClient registers a new client application.
	CreateClient(ctx context.Context, client *Client) error

	// GetClient retrieves a client registration by client_id.
	GetClient(ctx context.Context, clientID string) (*Client, error)

	// UpdateClient replaces an existing registration.
	UpdateClient(ctx context.Context, client *Client) error
}
