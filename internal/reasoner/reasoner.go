// Package reasoner provides clients for the external reasoning collaborator
// used to split oversized tasks. The collaborator is an opaque text service:
// a prompt goes in, text comes out.
package reasoner

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

// Reasoner answers a single text prompt.
type Reasoner interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Func adapts a plain function to Reasoner.
type Func func(ctx context.Context, prompt string) (string, error)

// Complete implements Reasoner.
func (f Func) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// ErrEmptyResponse is returned when the service answered without text.
var ErrEmptyResponse = errors.New("no text content in response")

// defaultHTTPTimeout caps a single request even when the caller's context has
// no deadline.
const defaultHTTPTimeout = 60 * time.Second

// Option configures a client.
type Option func(*options)

type options struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// WithBaseURL points the client at a different endpoint.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = strings.TrimRight(u, "/") }
}

// WithModel selects the model.
func WithModel(m string) Option {
	return func(o *options) {
		if m != "" {
			o.model = m
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

func applyOptions(base options, opts []Option) options {
	for _, opt := range opts {
		opt(&base)
	}
	if base.httpClient == nil {
		base.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return base
}
