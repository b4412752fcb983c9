// Package session holds the read-only credential context that every
// outbound request is built from. Controllers receive it at construction
// and never read ambient storage themselves.
package session

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/comigor/loanadvisor-go/internal/config"
)

// Context is the credential and endpoint pair for one signed-in session.
type Context struct {
	baseURL string
	token   string
}

// New builds a Context. The base URL is stored without a trailing slash.
func New(baseURL, token string) Context {
	return Context{baseURL: strings.TrimRight(baseURL, "/"), token: token}
}

// FromConfig resolves the token from the literal value, or else from the
// token file written by the sign-in flow.
func FromConfig(backend config.BackendConfig, sess config.SessionConfig) (Context, error) {
	token := sess.Token
	if token == "" && sess.TokenFile != "" {
		b, err := os.ReadFile(sess.TokenFile)
		if err != nil {
			return Context{}, fmt.Errorf("read token file: %w", err)
		}
		token = strings.TrimSpace(string(b))
	}
	if backend.BaseURL == "" {
		return Context{}, errors.New("backend base url is empty")
	}
	return New(backend.BaseURL, token), nil
}

// BaseURL returns the backend root, e.g. "http://localhost:5001".
func (c Context) BaseURL() string { return c.baseURL }

// Token returns the opaque bearer credential. It may be empty; rejecting an
// unauthenticated session is the backend's concern.
func (c Context) Token() string { return c.token }

// Authorization returns the header value for the credential.
func (c Context) Authorization() string { return "Bearer " + c.token }
