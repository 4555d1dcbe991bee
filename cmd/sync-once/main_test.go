package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AgileSeagull/DIAS/internal/app"
	"github.com/AgileSeagull/DIAS/internal/config"
	"github.com/AgileSeagull/DIAS/internal/notify"
)

const quakeFeed = `{
  "type": "FeatureCollection",
  "features": [
    {
      "id": "us7000abcd",
      "properties": {"mag": 6.1, "place": "10km SW of Tokyo, Japan", "time": 1700000000000, "url": ""},
      "geometry": {"coordinates": [139.69, 35.68, 10.0]}
    }
  ]
}`

func newTestApp(t *testing.T) (*app.App, *notify.MemoryTransport) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(quakeFeed))
	}))
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		Worker: config.WorkerConfig{Count: 1},
		Sources: config.SourcesConfig{
			HTTPTimeout:      5 * time.Second,
			USGSEnabled:      true,
			USGSURL:          srv.URL,
			USGSMinMagnitude: 2.5,
		},
		DB:     config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "dias.db")},
		Notify: config.NotifyConfig{Transport: "memory", TopicPrefix: "dias-alerts"},
	}
	a, err := app.New(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	transport, ok := a.Transport.(*notify.MemoryTransport)
	require.True(t, ok)
	return a, transport
}

func TestSyncOnce_AlertsOnIngestedDisasters(t *testing.T) {
	a, transport := newTestApp(t)

	out, ok, err := syncOnce(context.Background(), a, "", true)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NotNil(t, out.Sync)
	require.NotNil(t, out.Alerts)
	assert.Equal(t, 1, out.Alerts.New)
	assert.Equal(t, 1, out.Alerts.Dispatch.Sent)

	msgs := transport.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "memory:dias-alerts-japan", msgs[0].Handle)
	assert.Equal(t, "usgs-us7000abcd", msgs[0].Message.DisasterID)
}

func TestSyncOnce_SingleType(t *testing.T) {
	a, transport := newTestApp(t)

	out, ok, err := syncOnce(context.Background(), a, "earthquake", false)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NotNil(t, out.Result)
	assert.Equal(t, 1, out.Result.New)
	assert.Nil(t, out.Alerts)
	assert.Empty(t, transport.Messages())
}

func TestSyncOnce_InvalidType(t *testing.T) {
	a, _ := newTestApp(t)

	_, _, err := syncOnce(context.Background(), a, "volcano", false)
	assert.ErrorContains(t, err, "volcano")
}
