package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/gitsong/internal/callcache"
	"github.com/phrazzld/gitsong/internal/domain"
	"github.com/phrazzld/gitsong/internal/gateway"
	"github.com/phrazzld/gitsong/internal/platform/logger"
	"github.com/phrazzld/gitsong/internal/store/memstore"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	c, _ := newTrackedClient(t, mux)
	return c
}

// newTrackedClient also returns the rate-limit tracker the client's cache counts with.
func newTrackedClient(t *testing.T, mux *http.ServeMux) (*Client, *callcache.RateLimitTracker) {
	t.Helper()

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	tracker := callcache.NewRateLimitTracker(memstore.NewRateLimitStore(), callcache.TrackerConfig{}, logger.Discard())
	cache := callcache.New(memstore.NewCallStore(), tracker, callcache.Options{}, logger.Discard())
	gw, err := gateway.New(GatewayConfig(srv.URL), srv.Client(), cache, logger.Discard())
	require.NoError(t, err)

	return NewClient(gw, time.Hour, logger.Discard()), tracker
}

func commitJSON(sha, login, date string) string {
	return fmt.Sprintf(`{"sha":%q,"html_url":"https://github.com/o/r/commit/%s",
		"commit":{"message":"change %s","author":{"name":"Full Name","email":"a@b.c","date":%q},
		"committer":{"name":"GitHub","date":%q}},"author":{"login":%q}}`,
		sha, sha, sha, date, date, login)
}

func TestClient_ListCommits_PaginatesAndLimits(t *testing.T) {
	t.Parallel()

	var pages int32
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/o/r/commits", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&pages, 1)
		assert.Equal(t, acceptMedia, r.Header.Get("Accept"))
		assert.Equal(t, "2024-03-01T00:00:00Z", r.URL.Query().Get("since"))
		assert.Equal(t, "2024-03-02T00:00:00Z", r.URL.Query().Get("until"))

		page := r.URL.Query().Get("page")
		n := perPage
		if page == "2" {
			n = 3
		}
		items := make([]string, n)
		for i := range items {
			items[i] = commitJSON(fmt.Sprintf("p%s-%03d", page, i), "octo", "2024-03-01T10:00:00Z")
		}
		_, _ = w.Write([]byte("[" + strings.Join(items, ",") + "]"))
	})
	c, tracker := newTrackedClient(t, mux)

	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	until := since.Add(24 * time.Hour)

	all, err := c.ListCommits(context.Background(), domain.Repository{Owner: "o", Name: "r"}, since, until, 0)
	require.NoError(t, err)
	assert.Len(t, all, perPage+3)
	assert.Equal(t, "octo", all[0].Author)
	assert.Equal(t, "change p1-000", all[0].Message)
	assert.EqualValues(t, 2, atomic.LoadInt32(&pages))

	counter, err := tracker.Snapshot(context.Background(), ServiceName)
	require.NoError(t, err)
	assert.Equal(t, 2, counter.Used)

	// The same window is served from cache and is not counted again.
	limited, err := c.ListCommits(context.Background(), domain.Repository{Owner: "o", Name: "r"}, since, until, 5)
	require.NoError(t, err)
	assert.Len(t, limited, 5)
	assert.EqualValues(t, 2, atomic.LoadInt32(&pages))

	counter, err = tracker.Snapshot(context.Background(), ServiceName)
	require.NoError(t, err)
	assert.Equal(t, 2, counter.Used)
}

func TestClient_GetCommit(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/o/r/commits/abc123", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"sha":"abc123","commit":{"message":"fix: thing",
			"author":{"name":"Ada","date":"2024-03-01T10:00:00Z"},"committer":{"name":"Ada"}},
			"author":null,
			"files":[{"filename":"main.go","status":"modified","additions":3,"deletions":1,"changes":4,"patch":"@@ -1 +1 @@"},
			{"filename":"README.md","status":"added","additions":10,"deletions":0,"changes":10}]}`))
	})
	c := newTestClient(t, mux)

	commit, err := c.GetCommit(context.Background(), domain.Repository{Owner: "o", Name: "r"}, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "Ada", commit.Author)
	assert.Equal(t, 13, commit.TotalAdditions)
	assert.Equal(t, 1, commit.TotalDeletions)
	require.Len(t, commit.Files, 2)
	assert.Equal(t, "@@ -1 +1 @@", commit.Files[0].Patch)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), commit.Date)

	_, err = c.GetCommit(context.Background(), domain.Repository{Owner: "o", Name: "r"}, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestClient_LatestCommit(t *testing.T) {
	t.Parallel()

	var hits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/o/r/commits", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "1", r.URL.Query().Get("per_page"))
		_, _ = w.Write([]byte("[" + commitJSON("head", "octo", "2024-03-05T09:00:00Z") + "]"))
	})
	mux.HandleFunc("/repos/o/empty/commits", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"Git Repository is empty."}`))
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		commit, err := c.LatestCommit(ctx, domain.Repository{Owner: "o", Name: "r"})
		require.NoError(t, err)
		require.NotNil(t, commit)
		assert.Equal(t, "head", commit.SHA)
	}
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits), "latest commit is never cached")

	commit, err := c.LatestCommit(ctx, domain.Repository{Owner: "o", Name: "empty"})
	require.NoError(t, err)
	assert.Nil(t, commit)

	commits, err := c.ListCommits(ctx, domain.Repository{Owner: "o", Name: "empty"}, time.Time{}, time.Time{}, 0)
	require.NoError(t, err)
	assert.Empty(t, commits)
}

func TestClient_RepositoryNotFound(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, http.NewServeMux())

	_, err := c.ListCommits(context.Background(), domain.Repository{Owner: "o", Name: "missing"}, time.Time{}, time.Time{}, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRepositoryNotFound)
	assert.True(t, gateway.IsStatus(err, http.StatusNotFound))
}

func TestParseRepository(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    domain.Repository
		wantErr bool
	}{
		{in: "octo/hello", want: domain.Repository{Owner: "octo", Name: "hello"}},
		{in: "https://github.com/octo/hello", want: domain.Repository{Owner: "octo", Name: "hello"}},
		{in: "https://github.com/octo/hello.git", want: domain.Repository{Owner: "octo", Name: "hello"}},
		{in: "https://github.com/octo/hello/tree/main", want: domain.Repository{Owner: "octo", Name: "hello"}},
		{in: "git@github.com:octo/hello.git", want: domain.Repository{Owner: "octo", Name: "hello"}},
		{in: "  octo/hello.js  ", want: domain.Repository{Owner: "octo", Name: "hello.js"}},
		{in: "hello", wantErr: true},
		{in: "", wantErr: true},
		{in: "octo/hel lo", wantErr: true},
		{in: "git@github.com", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseRepository(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, domain.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNewHTTPClient(t *testing.T) {
	t.Parallel()

	var auth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
	}))
	defer srv.Close()

	resp, err := NewHTTPClient(context.Background(), "tok").Get(srv.URL)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, "Bearer tok", auth.Load())

	anon := NewHTTPClient(context.Background(), "")
	assert.Equal(t, gateway.DefaultTimeout, anon.Timeout)
}
