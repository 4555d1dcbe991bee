package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNominatimClient_ReverseCountry(t *testing.T) {
	var gotQuery map[string]string
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"lat": q.Get("lat"), "lon": q.Get("lon"), "format": q.Get("format"),
			"zoom": q.Get("zoom"), "addressdetails": q.Get("addressdetails"),
		}
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"display_name":"Japan","address":{"country":"Japan","country_code":"jp"}}`))
	}))
	defer srv.Close()

	c := NewNominatimClient(srv.URL, "", 2*time.Second, nil)
	country, err := c.ReverseCountry(context.Background(), 35.68, 139.69)
	require.NoError(t, err)
	assert.Equal(t, "Japan", country)
	assert.Equal(t, DefaultUserAgent, gotUA)
	assert.Equal(t, map[string]string{
		"lat": "35.68", "lon": "139.69", "format": "json", "zoom": "3", "addressdetails": "1",
	}, gotQuery)
}

func TestNominatimClient_NoCountry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"Unable to geocode"}`))
	}))
	defer srv.Close()

	_, err := NewNominatimClient(srv.URL, "ua", time.Second, nil).ReverseCountry(context.Background(), 0, -150)
	assert.True(t, errors.Is(err, ErrNoResult))
}

func TestNominatimClient_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewNominatimClient(srv.URL, "ua", time.Second, nil).ReverseCountry(context.Background(), 1, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.False(t, errors.Is(err, ErrNoResult))
}
