package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Ayash-Bera/deathstroke/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newSearchServer serves both the search API and the result pages.
func newSearchServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"items":[
			{"title":"The Rust Book","link":"%[1]s/page/book","snippet":"ownership"},
			{"title":"Missing page","link":"%[1]s/page/missing","snippet":"gone"}
		]}`, srv.URL)
	})
	mux.HandleFunc("/page/book", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>Each value in Rust has an owner.</body></html>")
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func setSearchEnv(t *testing.T, srv *httptest.Server) {
	t.Setenv("SEARCH_BASE_URL", srv.URL+"/search")
	t.Setenv("SEARCH_API_KEY", "test-key")
	t.Setenv("SEARCH_ENGINE_ID", "test-engine")
	t.Setenv("SEARCH_RESULT_COUNT", "10")
	t.Setenv("SEARCH_RATE_LIMIT", "0")
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cliApp := newCLI()
	cliApp.Writer = &out
	cliApp.ErrWriter = &errOut
	err := cliApp.Run(append([]string{"deathstroke"}, args...))
	return out.String(), err
}

func TestSearchCommand_JSON(t *testing.T) {
	srv := newSearchServer(t)
	setSearchEnv(t, srv)

	out, err := run(t, "--memory", "search", "--format", "json", "rust", "ownership")
	require.NoError(t, err)

	var results []models.SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, srv.URL+"/page/book", results[0].Link)
	assert.Equal(t, models.QueryIdentity("rust ownership"), results[0].Query)
	assert.Empty(t, results[0].HTML)
}

func TestSearchCommand_Table(t *testing.T) {
	srv := newSearchServer(t)
	setSearchEnv(t, srv)

	out, err := run(t, "--memory", "search", "rust ownership")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "RANK"))
	assert.Contains(t, out, "The Rust Book")
	assert.Contains(t, out, "1.00")
}

func TestSearchCommand_Errors(t *testing.T) {
	_, err := run(t, "--memory", "search")
	assert.Error(t, err)

	_, err = run(t, "--memory", "search", "--format", "xml", "q")
	assert.Error(t, err)
}

func TestSearchCommand_CSV(t *testing.T) {
	srv := newSearchServer(t)
	setSearchEnv(t, srv)

	out, err := run(t, "--memory", "search", "--format", "csv", "--locale", "de", "rust ownership")
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, models.ResultColumns, records[0])

	row := records[1]
	require.Len(t, row, len(models.ResultColumns))
	assert.Equal(t, "rust ownership__country_DE", row[0])
	assert.Equal(t, "1", row[1])
	assert.Equal(t, srv.URL+"/page/book", row[2])
	assert.Equal(t, "The Rust Book", row[3])
	assert.Contains(t, row[5], "Each value in Rust has an owner.")
}

func TestFeedbackCommand_RejectsMemoryStore(t *testing.T) {
	out, err := run(t, "--memory", "feedback", "rust ownership", "https://doc.rust-lang.org")
	assert.ErrorIs(t, err, errFeedbackInMemory)
	assert.NotContains(t, out, "Recorded")
}

func TestFeedbackCommand_NeedsQueryAndLink(t *testing.T) {
	_, err := run(t, "feedback", "only-a-query")
	assert.EqualError(t, err, "feedback needs a query and a link")
}

func TestMigrateCommand_RequiresDatabase(t *testing.T) {
	_, err := run(t, "--memory", "migrate")
	assert.Error(t, err)
}

func TestWriteTable_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeTable(&buf, nil))
	assert.Equal(t, "No results found\n", buf.String())
}

func TestShorten(t *testing.T) {
	assert.Equal(t, "abc", shorten("abc", 5))
	assert.Equal(t, "abcd…", shorten("abcdefgh", 5))
}
