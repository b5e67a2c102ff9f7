package client

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ClientType represents the type of OAuth2 client
type ClientType string

const (
	// Confidential clients can securely store secrets
	Confidential ClientType = "confidential"
	// Public clients cannot securely store secrets (mobile apps, SPAs)
	Public ClientType = "public"
)

// ErrClientNotFound is returned for an unknown client_id and for a
// secret mismatch alike, so a caller cannot tell which half failed.
var ErrClientNotFound = errors.New("client not found")

// Client represents a registered OAuth2 client application. Records are
// created and updated by an administrative process; the protocol
// engines only read them.
type Client struct {
	ID                   string     `bson:"client_id"             json:"client_id"`
	Secret               string     `bson:"client_secret,omitempty" json:"-"`
	Type                 ClientType `bson:"client_type"           json:"type,omitempty"`
	Name                 string     `bson:"client_name"           json:"name,omitempty"`
	RedirectURIs         []string   `bson:"redirect_uris"         json:"redirect_uris,omitempty"`
	AllowedScopes        []string   `bson:"allowed_scopes"        json:"allowed_scopes,omitempty"`
	AllowedGrantTypes    []string   `bson:"allowed_grant_types"   json:"allowed_grant_types,omitempty"`
	AllowedResponseTypes []string   `bson:"allowed_response_types" json:"allowed_response_types,omitempty"`
	RequirePKCE          bool       `bson:"require_pkce"          json:"require_pkce,omitempty"`
	CreatedAt            time.Time  `bson:"created_at"            json:"created_at,omitempty"`
	UpdatedAt            time.Time  `bson:"updated_at"            json:"updated_at,omitempty"`
	IsActive             bool       `bson:"is_active"             json:"is_active,omitempty"`
}

// ClientService handles registered-client lookups and request
// validation against the registration record.
type ClientService struct {
	store ClientStore
}

// NewClientService creates a new ClientService instance
func NewClientService(store ClientStore) *ClientService {
	return &ClientService{store: store}
}

// GetClient retrieves a client by ID without checking credentials.
func (s *ClientService) GetClient(ctx context.Context, clientID string) (*Client, error) {
	cli, err := s.store.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	if !cli.IsActive {
		return nil, ErrClientNotFound
	}
	return cli, nil
}

// ValidateClient authenticates a client. Confidential clients must
// present their exact secret; the comparison is constant-time and a
// mismatch is reported as ErrClientNotFound, identical to an unknown
// client_id. Public clients carry no secret and pass with an empty one.
func (s *ClientService) ValidateClient(ctx context.Context, clientID, clientSecret string) (*Client, error) {
	cli, err := s.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}

	if cli.Type == Public {
		return cli, nil
	}

	if subtle.ConstantTimeCompare([]byte(cli.Secret), []byte(clientSecret)) != 1 {
		return nil, ErrClientNotFound
	}

	return cli, nil
}

// ValidateRedirectURI checks a redirect URI against the registered set.
// Matching is exact string equality; prefix or wildcard matching would
// open a redirect hole.
func (s *ClientService) ValidateRedirectURI(cli *Client, redirectURI string) error {
	for _, uri := range cli.RedirectURIs {
		if uri == redirectURI {
			return nil
		}
	}
	return fmt.Errorf("redirect URI not registered for client %s", cli.ID)
}

// ValidateScope checks that every requested scope token is allowed for
// the client. An empty request is always valid.
func (s *ClientService) ValidateScope(cli *Client, requestedScope string) error {
	if requestedScope == "" {
		return nil
	}

	allowed := make(map[string]bool, len(cli.AllowedScopes))
	for _, scope := range cli.AllowedScopes {
		allowed[scope] = true
	}

	for _, scope := range strings.Fields(requestedScope) {
		if !allowed[scope] {
			return fmt.Errorf("scope %q not allowed for client %s", scope, cli.ID)
		}
	}
	return nil
}

// ValidateGrantType checks if a grant type is allowed for the client.
func (s *ClientService) ValidateGrantType(cli *Client, grantType string) error {
	for _, gt := range cli.AllowedGrantTypes {
		if gt == grantType {
			return nil
		}
	}
	return fmt.Errorf("grant type %q not allowed for client %s", grantType, cli.ID)
}

// ValidateResponseType checks if a response type is allowed for the client.
func (s *ClientService) ValidateResponseType(cli *Client, responseType string) error {
	for _, rt := range cli.AllowedResponseTypes {
		if rt == responseType {
			return nil
		}
	}
	return fmt.Errorf("response type %q not allowed for client %s", responseType, cli.ID)
}

// RequiresPKCE reports whether authorization requests for the client
// must carry a code challenge. Public clients always do.
func (s *ClientService) RequiresPKCE(cli *Client) bool {
	return cli.RequirePKCE || cli.Type == Public
}
