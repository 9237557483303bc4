package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/my-github-review/internal/profile"
)

const graphQLFixture = `{
  "data": {
    "user": {
      "login": "octocat",
      "name": "The Octocat",
      "avatarUrl": "https://avatars.example/octocat",
      "followers": {"totalCount": 42},
      "contributionsCollection": {
        "totalCommitContributions": 120,
        "totalIssueContributions": 7,
        "totalPullRequestContributions": 15,
        "totalPullRequestReviewContributions": 9,
        "totalRepositoryContributions": 3,
        "restrictedContributionsCount": 2,
        "contributionCalendar": {
          "totalContributions": 156,
          "weeks": [
            {"contributionDays": [
              {"date": "2023-01-01", "contributionCount": 1},
              {"date": "2023-01-02", "contributionCount": 4},
              {"date": "2023-01-03", "contributionCount": 0}
            ]},
            {"contributionDays": [
              {"date": "2023-01-04", "contributionCount": 2},
              {"date": "2023-01-05", "contributionCount": 3},
              {"date": "2023-01-06", "contributionCount": 1}
            ]}
          ]
        },
        "commitContributionsByRepository": [
          {"repository": {"nameWithOwner": "octocat/small", "stargazerCount": 1, "primaryLanguage": null},
           "contributions": {"totalCount": 10}},
          {"repository": {"nameWithOwner": "octocat/big", "stargazerCount": 99, "primaryLanguage": {"name": "Go"}},
           "contributions": {"totalCount": 80}}
        ]
      }
    }
  }
}`

type countingWaiter struct{ calls atomic.Int32 }

func (w *countingWaiter) Wait(context.Context, string) error {
	w.calls.Add(1)
	return nil
}

func TestFetchBuildsSummary(t *testing.T) {
	t.Parallel()

	var gotVars map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "token tok-123", r.Header.Get("Authorization"))
		var req graphQLRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Contains(t, req.Query, "contributionsCollection")
		gotVars = req.Variables
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(graphQLFixture))
	}))
	t.Cleanup(srv.Close)

	waiter := &countingWaiter{}
	f := NewFetcher(FetcherConfig{GraphQLURL: srv.URL, HTTPClient: srv.Client(), Limiter: waiter}, nil)

	payload, err := f.Fetch(context.Background(), profile.FetchRequest{
		Username: "octocat",
		Token:    "tok-123",
		Year:     2023,
		Timezone: "Asia/Tokyo",
	})
	require.NoError(t, err)
	require.Equal(t, int32(1), waiter.calls.Load())

	require.Equal(t, "octocat", gotVars["login"])
	require.Equal(t, "2023-01-01T00:00:00+09:00", gotVars["from"])
	require.Equal(t, "2023-12-31T23:59:59+09:00", gotVars["to"])

	var summary Summary
	require.NoError(t, json.Unmarshal([]byte(payload), &summary))
	require.Equal(t, "octocat", summary.Login)
	require.Equal(t, 2023, summary.Year)
	require.Equal(t, "Asia/Tokyo", summary.Timezone)
	require.Equal(t, 42, summary.Followers)
	require.Equal(t, Totals{
		Contributions: 156, Commits: 120, Issues: 7, PullRequests: 15,
		Reviews: 9, Repositories: 3, Restricted: 2,
	}, summary.Totals)
	require.Len(t, summary.Calendar, 6)
	require.Equal(t, 3, summary.LongestStreak)
	require.Equal(t, &Day{Date: "2023-01-02", Count: 4}, summary.BusiestDay)
	require.Equal(t, []Repository{
		{Name: "octocat/big", Language: "Go", Stars: 99, Commits: 80},
		{Name: "octocat/small", Stars: 1, Commits: 10},
	}, summary.TopRepositories)
}

func TestFetchFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		status   int
		body     string
		timezone string
	}{
		{name: "unknown timezone", status: http.StatusOK, body: graphQLFixture, timezone: "Mars/Olympus"},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"message":"Bad credentials"}`, timezone: "UTC"},
		{name: "graphql errors", status: http.StatusOK, body: `{"errors":[{"message":"rate limited"}]}`, timezone: "UTC"},
		{name: "missing user", status: http.StatusOK, body: `{"data":{"user":null}}`, timezone: "UTC"},
		{name: "garbage", status: http.StatusOK, body: `not json`, timezone: "UTC"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			t.Cleanup(srv.Close)

			f := NewFetcher(FetcherConfig{GraphQLURL: srv.URL, HTTPClient: srv.Client()}, nil)
			_, err := f.Fetch(context.Background(), profile.FetchRequest{
				Username: "octocat", Token: "tok", Year: 2023, Timezone: tc.timezone,
			})
			require.ErrorIs(t, err, profile.ErrFetchFailed)
		})
	}
}

func TestFetchTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	f := NewFetcher(FetcherConfig{GraphQLURL: srv.URL, HTTPClient: srv.Client(), Timeout: 50 * time.Millisecond}, nil)
	start := time.Now()
	_, err := f.Fetch(context.Background(), profile.FetchRequest{Username: "octocat", Token: "t", Year: 2023, Timezone: "UTC"})
	require.ErrorIs(t, err, profile.ErrFetchFailed)
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestYearBounds(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	from, to := yearBounds(2020, loc)
	require.Equal(t, "2020-01-01T00:00:00-08:00", from.Format(time.RFC3339))
	require.Equal(t, "2020-12-31T23:59:59-08:00", to.Format(time.RFC3339))
}
