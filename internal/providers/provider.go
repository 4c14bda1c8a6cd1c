package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Unified chat roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	// ErrEmptyReply is returned by an adapter whose provider answered with no text
	ErrEmptyReply = errors.New("provider returned an empty reply")

	// ErrMissingCredentials is returned when the API key or model is empty
	ErrMissingCredentials = errors.New("api key and model are required")
)

// Message is one role-tagged entry of the provider-agnostic conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Credentials identify the caller's account and model at the provider
type Credentials struct {
	APIKey string
	Model  string
}

// Validate checks that both fields are set
func (c Credentials) Validate() error {
	if c.APIKey == "" || c.Model == "" {
		return ErrMissingCredentials
	}
	return nil
}

// Adapter is implemented by each concrete LLM provider (OpenAI, Cohere, ...).
// It translates the unified message sequence into the provider's wire format,
// performs the call and extracts the reply text.
type Adapter interface {
	// ID returns the catalog id of the provider this adapter serves
	ID() string

	// Generate sends the conversation and returns the reply text.
	// An empty reply is reported as ErrEmptyReply.
	Generate(ctx context.Context, creds Credentials, messages []Message) (string, error)
}

// Authenticator handles authentication for a provider request
type Authenticator interface {
	// Authenticate prepares authentication for a request
	Authenticate(ctx context.Context) (AuthContext, error)
}

// AuthContext holds authentication information for a request
type AuthContext interface {
	// ApplyToRequest applies authentication to an HTTP request
	ApplyToRequest(ctx context.Context, req any) error
}

// AdapterCreator builds an adapter from shared options
type AdapterCreator func(opts Options) (Adapter, error)

// Options carries the settings shared by all adapters
type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	BaseURLs   map[string]string // provider id -> base URL override
}

// BaseURL returns the override for the provider, or fallback
func (o Options) BaseURL(providerID, fallback string) string {
	if u, ok := o.BaseURLs[providerID]; ok && u != "" {
		return u
	}
	return fallback
}

// Client returns the configured HTTP client or a new one with the configured timeout
func (o Options) Client() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

var (
	creatorsMu sync.RWMutex
	creators   = map[string]AdapterCreator{}
)

// RegisterCreator makes an adapter implementation available under a provider id.
// Adapters register themselves from init.
func RegisterCreator(providerID string, creator AdapterCreator) {
	creatorsMu.Lock()
	defer creatorsMu.Unlock()
	creators[providerID] = creator
}

// AdapterSet resolves provider ids to adapters
type AdapterSet struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewAdapterSet creates an empty set
func NewAdapterSet() *AdapterSet {
	return &AdapterSet{adapters: make(map[string]Adapter)}
}

// NewDefaultAdapterSet instantiates every registered adapter with opts
func NewDefaultAdapterSet(opts Options) (*AdapterSet, error) {
	creatorsMu.RLock()
	defer creatorsMu.RUnlock()

	set := NewAdapterSet()
	for id, create := range creators {
		adapter, err := create(opts)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s adapter: %w", id, err)
		}
		set.Register(adapter)
	}
	return set, nil
}

// Register adds or replaces the adapter for its provider id
func (s *AdapterSet) Register(adapter Adapter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adapters[adapter.ID()] = adapter
}

// Lookup returns the adapter for the provider id
func (s *AdapterSet) Lookup(providerID string) (Adapter, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.adapters[providerID]
	return a, ok
}

// IDs lists the provider ids that have an adapter, sorted
func (s *AdapterSet) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.adapters))
	for id := range s.adapters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
