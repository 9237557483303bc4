package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/my-github-review/internal/profile"
)

const yearQuery = `query($login: String!, $from: DateTime!, $to: DateTime!) {
  user(login: $login) {
    login
    name
    avatarUrl
    followers { totalCount }
    contributionsCollection(from: $from, to: $to) {
      totalCommitContributions
      totalIssueContributions
      totalPullRequestContributions
      totalPullRequestReviewContributions
      totalRepositoryContributions
      restrictedContributionsCount
      contributionCalendar {
        totalContributions
        weeks { contributionDays { date contributionCount } }
      }
      commitContributionsByRepository(maxRepositories: 10) {
        repository { nameWithOwner stargazerCount primaryLanguage { name } }
        contributions { totalCount }
      }
    }
  }
}`

// FetcherConfig configures the GraphQL fetcher.
type FetcherConfig struct {
	GraphQLURL string
	Timeout    time.Duration
	HTTPClient *http.Client
	Limiter    Waiter
}

// Fetcher builds year summaries from the GraphQL contributions API.
type Fetcher struct {
	cfg    FetcherConfig
	logger *zap.Logger
}

// NewFetcher constructs a Fetcher.
func NewFetcher(cfg FetcherConfig, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Limiter == nil {
		cfg.Limiter = noWait{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{cfg: cfg, logger: logger}
}

// Summary is the payload stored for a completed key.
type Summary struct {
	Login           string       `json:"login"`
	Name            string       `json:"name,omitempty"`
	AvatarURL       string       `json:"avatar_url,omitempty"`
	Year            int          `json:"year"`
	Timezone        string       `json:"timezone"`
	Followers       int          `json:"followers"`
	Totals          Totals       `json:"totals"`
	LongestStreak   int          `json:"longest_streak"`
	BusiestDay      *Day         `json:"busiest_day,omitempty"`
	Calendar        []Day        `json:"calendar"`
	TopRepositories []Repository `json:"top_repositories"`
}

// Totals aggregates the year's contribution counts.
type Totals struct {
	Contributions int `json:"contributions"`
	Commits       int `json:"commits"`
	Issues        int `json:"issues"`
	PullRequests  int `json:"pull_requests"`
	Reviews       int `json:"reviews"`
	Repositories  int `json:"repositories"`
	Restricted    int `json:"restricted"`
}

// Day is one contribution calendar cell.
type Day struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Repository is a repository the user committed to during the year.
type Repository struct {
	Name     string `json:"name"`
	Language string `json:"language,omitempty"`
	Stars    int    `json:"stars"`
	Commits  int    `json:"commits"`
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLResponse struct {
	Data struct {
		User *userNode `json:"user"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type userNode struct {
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
	Followers struct {
		TotalCount int `json:"totalCount"`
	} `json:"followers"`
	Contributions struct {
		Commits      int `json:"totalCommitContributions"`
		Issues       int `json:"totalIssueContributions"`
		PullRequests int `json:"totalPullRequestContributions"`
		Reviews      int `json:"totalPullRequestReviewContributions"`
		Repositories int `json:"totalRepositoryContributions"`
		Restricted   int `json:"restrictedContributionsCount"`
		Calendar     struct {
			Total int `json:"totalContributions"`
			Weeks []struct {
				Days []struct {
					Date  string `json:"date"`
					Count int    `json:"contributionCount"`
				} `json:"contributionDays"`
			} `json:"weeks"`
		} `json:"contributionCalendar"`
		ByRepository []struct {
			Repository struct {
				NameWithOwner   string `json:"nameWithOwner"`
				StargazerCount  int    `json:"stargazerCount"`
				PrimaryLanguage *struct {
					Name string `json:"name"`
				} `json:"primaryLanguage"`
			} `json:"repository"`
			Contributions struct {
				TotalCount int `json:"totalCount"`
			} `json:"contributions"`
		} `json:"commitContributionsByRepository"`
	} `json:"contributionsCollection"`
}

// Fetch queries the user's contributions for the calendar year in req.Timezone
// and returns the JSON-encoded Summary.
func (f *Fetcher) Fetch(ctx context.Context, req profile.FetchRequest) (string, error) {
	loc, err := time.LoadLocation(req.Timezone)
	if err != nil {
		return "", fmt.Errorf("%w: load timezone %q: %w", profile.ErrFetchFailed, req.Timezone, err)
	}
	from, to := yearBounds(req.Year, loc)

	body, err := json.Marshal(graphQLRequest{
		Query: yearQuery,
		Variables: map[string]any{
			"login": req.Username,
			"from":  from.Format(time.RFC3339),
			"to":    to.Format(time.RFC3339),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: encode query: %w", profile.ErrFetchFailed, err)
	}

	if err := f.cfg.Limiter.Wait(ctx, f.cfg.GraphQLURL); err != nil {
		return "", fmt.Errorf("%w: %w", profile.ErrFetchFailed, err)
	}
	callCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, f.cfg.GraphQLURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %w", profile.ErrFetchFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := authorizedClient(callCtx, f.cfg.HTTPClient, req.Token).Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: graphql request: %w", profile.ErrFetchFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: graphql status %d: %s", profile.ErrFetchFailed, resp.StatusCode,
			strings.TrimSpace(string(snippet)))
	}

	var out graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode graphql response: %w", profile.ErrFetchFailed, err)
	}
	if len(out.Errors) > 0 {
		msgs := make([]string, 0, len(out.Errors))
		for _, e := range out.Errors {
			msgs = append(msgs, e.Message)
		}
		return "", fmt.Errorf("%w: graphql errors: %s", profile.ErrFetchFailed, strings.Join(msgs, "; "))
	}
	if out.Data.User == nil {
		return "", fmt.Errorf("%w: user %q not found", profile.ErrFetchFailed, req.Username)
	}

	summary := summarize(out.Data.User, req)
	payload, err := json.Marshal(summary)
	if err != nil {
		return "", fmt.Errorf("%w: encode summary: %w", profile.ErrFetchFailed, err)
	}
	f.logger.Debug("year summary built",
		zap.String("username", req.Username),
		zap.Int("year", req.Year),
		zap.Int("contributions", summary.Totals.Contributions),
	)
	return string(payload), nil
}

// yearBounds returns the first and last second of year in loc.
func yearBounds(year int, loc *time.Location) (time.Time, time.Time) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	to := from.AddDate(1, 0, 0).Add(-time.Second)
	return from, to
}

func summarize(u *userNode, req profile.FetchRequest) Summary {
	c := u.Contributions
	s := Summary{
		Login:     u.Login,
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
		Year:      req.Year,
		Timezone:  req.Timezone,
		Followers: u.Followers.TotalCount,
		Totals: Totals{
			Contributions: c.Calendar.Total,
			Commits:       c.Commits,
			Issues:        c.Issues,
			PullRequests:  c.PullRequests,
			Reviews:       c.Reviews,
			Repositories:  c.Repositories,
			Restricted:    c.Restricted,
		},
		Calendar:        []Day{},
		TopRepositories: []Repository{},
	}

	streak := 0
	for _, week := range c.Calendar.Weeks {
		for _, d := range week.Days {
			day := Day{Date: d.Date, Count: d.Count}
			s.Calendar = append(s.Calendar, day)
			if d.Count > 0 {
				streak++
				if streak > s.LongestStreak {
					s.LongestStreak = streak
				}
			} else {
				streak = 0
			}
			if d.Count > 0 && (s.BusiestDay == nil || d.Count > s.BusiestDay.Count) {
				busiest := day
				s.BusiestDay = &busiest
			}
		}
	}

	for _, r := range c.ByRepository {
		repo := Repository{
			Name:    r.Repository.NameWithOwner,
			Stars:   r.Repository.StargazerCount,
			Commits: r.Contributions.TotalCount,
		}
		if r.Repository.PrimaryLanguage != nil {
			repo.Language = r.Repository.PrimaryLanguage.Name
		}
		s.TopRepositories = append(s.TopRepositories, repo)
	}
	sort.SliceStable(s.TopRepositories, func(i, j int) bool {
		return s.TopRepositories[i].Commits > s.TopRepositories[j].Commits
	})
	return s
}
