package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Ayash-Bera/deathstroke/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFetcher() *PageFetcher {
	return NewPageFetcher(Config{Timeout: time.Second, Parallelism: 2}, utils.NewDiscardLogger())
}

func TestPageFetcher_FetchKeepsOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>" + strings.TrimPrefix(r.URL.Path, "/") + "</body></html>"))
	}))
	defer server.Close()

	links := []string{server.URL + "/one", server.URL + "/two", server.URL + "/three"}
	bodies := newTestFetcher().Fetch(context.Background(), links)

	require.Len(t, bodies, 3)
	assert.Contains(t, bodies[0], "one")
	assert.Contains(t, bodies[1], "two")
	assert.Contains(t, bodies[2], "three")
}

func TestPageFetcher_FailedLinksYieldEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("<html>ok</html>"))
	}))
	defer server.Close()

	links := []string{
		server.URL + "/ok",
		server.URL + "/missing",
		"http://127.0.0.1:1/unreachable",
		"::not a url",
	}
	bodies := newTestFetcher().Fetch(context.Background(), links)

	require.Len(t, bodies, 4)
	assert.Equal(t, "<html>ok</html>", bodies[0])
	assert.Empty(t, bodies[1])
	assert.Empty(t, bodies[2])
	assert.Empty(t, bodies[3])
}

func TestPageFetcher_DuplicateLinksFetchedTwice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>same</html>"))
	}))
	defer server.Close()

	bodies := newTestFetcher().Fetch(context.Background(), []string{server.URL, server.URL})

	assert.Equal(t, []string{"<html>same</html>", "<html>same</html>"}, bodies)
}

func TestPageFetcher_Empty(t *testing.T) {
	assert.Empty(t, newTestFetcher().Fetch(context.Background(), nil))
}
