package github

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// StarrerConfig configures the repository starrer.
type StarrerConfig struct {
	APIBaseURL string
	// Repo is owner/name.
	Repo       string
	Timeout    time.Duration
	HTTPClient *http.Client
	Limiter    Waiter
}

// Starrer stars a fixed repository for the token's owner.
type Starrer struct {
	cfg StarrerConfig
}

// NewStarrer validates the repository name and constructs a Starrer.
func NewStarrer(cfg StarrerConfig) (*Starrer, error) {
	owner, name, ok := strings.Cut(cfg.Repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return nil, fmt.Errorf("star repo must look like owner/name, got %q", cfg.Repo)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Limiter == nil {
		cfg.Limiter = noWait{}
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	return &Starrer{cfg: cfg}, nil
}

// Star issues PUT /user/starred/{owner}/{repo}. Only 204 counts as success.
func (s *Starrer) Star(ctx context.Context, token string) error {
	url := fmt.Sprintf("%s/user/starred/%s", s.cfg.APIBaseURL, s.cfg.Repo)
	if err := s.cfg.Limiter.Wait(ctx, url); err != nil {
		return fmt.Errorf("star %s: %w", s.cfg.Repo, err)
	}
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPut, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("build star request: %w", err)
	}
	req.Header.Set("Accept", acceptV3)
	resp, err := authorizedClient(callCtx, s.cfg.HTTPClient, token).Do(req)
	if err != nil {
		return fmt.Errorf("star %s: %w", s.cfg.Repo, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("star %s: unexpected status %d", s.cfg.Repo, resp.StatusCode)
	}
	return nil
}
