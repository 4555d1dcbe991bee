package ingestion

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/AgileSeagull/DIAS/internal/config"
	"github.com/AgileSeagull/DIAS/internal/repository"
)

func newTestStore(t *testing.T) *repository.Store {
	t.Helper()
	store, err := repository.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// feedServer serves body with contentType and counts requests.
func feedServer(t *testing.T, contentType, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", contentType)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func testSources(url string) config.SourcesConfig {
	return config.SourcesConfig{
		UserAgent:        "dias-test",
		HTTPTimeout:      2 * time.Second,
		USGSURL:          url,
		USGSMinMagnitude: 2.5,
		USGSMaxAttempts:  3,
		USGSRetryDelay:   time.Millisecond,
		GDACSURL:         url,
		FireMinFRP:       20,
	}
}
