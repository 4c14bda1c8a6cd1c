package providers

import (
	"context"
	"fmt"
	"net/http"
)

// SimpleAPIKeyAuth implements header-based API key authentication
type SimpleAPIKeyAuth struct {
	apiKey     string
	headerName string // e.g., "Authorization"
	prefix     string // e.g., "Bearer "
}

// NewSimpleAPIKeyAuth creates a new simple API key authenticator.
// Empty headerName and prefix default to a bearer Authorization header.
func NewSimpleAPIKeyAuth(apiKey, headerName, prefix string) *SimpleAPIKeyAuth {
	if headerName == "" {
		headerName = "Authorization"
		if prefix == "" {
			prefix = "Bearer "
		}
	}

	return &SimpleAPIKeyAuth{
		apiKey:     apiKey,
		headerName: headerName,
		prefix:     prefix,
	}
}

// Authenticate returns an auth context carrying the API key
func (a *SimpleAPIKeyAuth) Authenticate(ctx context.Context) (AuthContext, error) {
	if a.apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	return &simpleAPIKeyAuthContext{
		header: a.headerName,
		value:  a.prefix + a.apiKey,
	}, nil
}

type simpleAPIKeyAuthContext struct {
	header string
	value  string
}

// ApplyToRequest sets the authentication header on an *http.Request
func (c *simpleAPIKeyAuthContext) ApplyToRequest(ctx context.Context, req any) error {
	httpReq, ok := req.(*http.Request)
	if !ok {
		return fmt.Errorf("expected *http.Request, got %T", req)
	}

	httpReq.Header.Set(c.header, c.value)
	return nil
}
