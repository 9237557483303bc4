// Package github talks to the GitHub API on behalf of the requesting user:
// it builds the year-in-review payload and stars the project repository.
package github

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

const (
	acceptV3       = "application/vnd.github.v3+json"
	defaultTimeout = 10 * time.Second
)

// Waiter blocks until an upstream call to url may proceed.
type Waiter interface {
	Wait(ctx context.Context, url string) error
}

type noWait struct{}

func (noWait) Wait(context.Context, string) error { return nil }

// authorizedClient wraps base with an oauth2 transport that sends
// "Authorization: token <token>" on every request.
func authorizedClient(ctx context.Context, base *http.Client, token string) *http.Client {
	if base == nil {
		base = http.DefaultClient
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "token"})
	return oauth2.NewClient(ctx, src)
}
