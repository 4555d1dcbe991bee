package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AgileSeagull/DIAS/internal/alerts"
	"github.com/AgileSeagull/DIAS/internal/geocode"
	"github.com/AgileSeagull/DIAS/internal/ingestion"
	"github.com/AgileSeagull/DIAS/internal/models"
	"github.com/AgileSeagull/DIAS/internal/notify"
	"github.com/AgileSeagull/DIAS/internal/repository"
)

type fakeTriggers struct {
	summary   ingestion.Summary
	result    ingestion.Result
	resultErr error
	report    alerts.Report
	alertErr  error
	synced    []models.DisasterType
}

func (f *fakeTriggers) TriggerSync(context.Context) (ingestion.Summary, error) {
	return f.summary, nil
}

func (f *fakeTriggers) TriggerSyncType(_ context.Context, t models.DisasterType) (ingestion.Result, error) {
	f.synced = append(f.synced, t)
	return f.result, f.resultErr
}

func (f *fakeTriggers) TriggerAlerts(context.Context) (alerts.Report, error) {
	return f.report, f.alertErr
}

type fakeSyncStatus struct{}

func (fakeSyncStatus) LastSummary() (ingestion.Summary, bool) {
	return ingestion.Summary{}, false
}

func (fakeSyncStatus) LastResults() map[models.DisasterType]ingestion.Result {
	return map[models.DisasterType]ingestion.Result{
		models.DisasterTypeEarthquake: {Type: models.DisasterTypeEarthquake, Success: true, Total: 3},
	}
}

func (fakeSyncStatus) Running() bool {
	return false
}

func (fakeSyncStatus) Types() []models.DisasterType {
	return []models.DisasterType{models.DisasterTypeEarthquake}
}

type fakeAlertStatus struct{}

func (fakeAlertStatus) State() alerts.State { return alerts.StateIdle }
func (fakeAlertStatus) LastReport() (alerts.Report, bool) {
	return alerts.Report{Active: 4, New: 1}, true
}

type testEnv struct {
	router    *gin.Engine
	store     *repository.Store
	transport *notify.MemoryTransport
	triggers  *fakeTriggers
}

func setupTestRouter(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := repository.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	transport := notify.NewMemoryTransport()
	triggers := &fakeTriggers{}
	handler := NewHandler(Deps{
		Store:         store,
		Triggers:      triggers,
		Sync:          fakeSyncStatus{},
		Alerts:        fakeAlertStatus{},
		Subscriptions: notify.NewTopicManager(transport, store, "dias-alerts", nil, nil),
		Resolver:      geocode.NewResolver(nil, nil, nil),
	})

	router := gin.New()
	handler.RegisterRoutes(router)
	return &testEnv{router: router, store: store, transport: transport, triggers: triggers}
}

func (e *testEnv) insert(t *testing.T, id string, typ models.DisasterType, sev models.Severity, location string, active bool) {
	t.Helper()
	d := &models.Disaster{
		DisasterID:   id,
		Type:         typ,
		Severity:     sev,
		Title:        "Test " + id,
		LocationName: location,
		Latitude:     35.0,
		Longitude:    139.0,
		Magnitude:    models.Float(5.5),
		Source:       "test",
		OccurredAt:   time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		IsActive:     active,
	}
	require.NoError(t, e.store.Insert(context.Background(), d))
}

func (e *testEnv) do(method, target string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "body: %s", w.Body.String())
	return env
}

func decodeFeatures(t *testing.T, w *httptest.ResponseRecorder) FeatureCollection {
	t.Helper()
	var fc FeatureCollection
	if err := json.Unmarshal(w.Body.Bytes(), &fc); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return fc
}

func TestGetDisasters_ReturnsGeoJSON(t *testing.T) {
	env := setupTestRouter(t)
	env.insert(t, "usgs-1", models.DisasterTypeEarthquake, models.SeverityModerate, "Honshu, Japan", true)

	w := env.do(http.MethodGet, "/api/disasters", nil)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	contentType := w.Header().Get("Content-Type")
	if contentType != "application/geo+json" {
		t.Errorf("expected content-type application/geo+json, got %s", contentType)
	}

	fc := decodeFeatures(t, w)
	if fc.Type != "FeatureCollection" {
		t.Errorf("expected type FeatureCollection, got %s", fc.Type)
	}
	require.Len(t, fc.Features, 1)

	f := fc.Features[0]
	assert.Equal(t, []float64{139.0, 35.0}, f.Geometry.Coordinates)
	assert.Equal(t, "usgs-1", f.Properties["id"])
	assert.Equal(t, "earthquake", f.Properties["type"])
	assert.Equal(t, "moderate", f.Properties["severity"])
	assert.Equal(t, 5.5, f.Properties["magnitude"])
	assert.Equal(t, "2025-03-01T12:00:00Z", f.Properties["occurred_at"])
	assert.NotContains(t, f.Properties, "depth")
}

func TestGetDisasters_Filters(t *testing.T) {
	env := setupTestRouter(t)
	env.insert(t, "eq1", models.DisasterTypeEarthquake, models.SeverityLow, "Honshu, Japan", true)
	env.insert(t, "fl1", models.DisasterTypeFlood, models.SeverityHigh, "Assam, India", true)
	env.insert(t, "eq2", models.DisasterTypeEarthquake, models.SeverityCritical, "Valparaiso, Chile", true)
	env.insert(t, "eq3", models.DisasterTypeEarthquake, models.SeverityHigh, "Alaska", false)

	tests := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"?type=earthquake", 2},
		{"?severity=high", 1},
		{"?min_severity=high", 2},
		{"?active=false", 1},
		{"?active=all", 4},
		{"?active=all&type=earthquake&min_severity=high", 2},
		{"?limit=1", 1},
		{"?since=2025-03-02", 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := env.do(http.MethodGet, "/api/disasters"+tt.query, nil)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			fc := decodeFeatures(t, w)
			if len(fc.Features) != tt.want {
				t.Errorf("expected %d features, got %d", tt.want, len(fc.Features))
			}
		})
	}
}

func TestGetDisasters_InvalidFilter(t *testing.T) {
	env := setupTestRouter(t)

	for _, q := range []string{"type=tsunami", "min_severity=extreme", "min_magnitude=big", "since=yesterday", "active=maybe"} {
		w := env.do(http.MethodGet, "/api/disasters?"+q, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected status 400, got %d", q, w.Code)
		}
	}
}

func TestGetDisaster(t *testing.T) {
	env := setupTestRouter(t)
	env.insert(t, "usgs-1", models.DisasterTypeEarthquake, models.SeverityModerate, "Honshu, Japan", true)

	w := env.do(http.MethodGet, "/api/disasters/usgs-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var d models.Disaster
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &d))
	assert.Equal(t, "Honshu, Japan", d.LocationName)

	w = env.do(http.MethodGet, "/api/disasters/usgs-missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetStats(t *testing.T) {
	env := setupTestRouter(t)
	env.insert(t, "eq1", models.DisasterTypeEarthquake, models.SeverityLow, "Honshu, Japan", true)
	env.insert(t, "eq2", models.DisasterTypeEarthquake, models.SeverityLow, "Valparaiso, Chile", false)

	w := env.do(http.MethodGet, "/api/disasters/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stats []repository.TypeStats
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &stats))
	require.Len(t, stats, len(models.DisasterTypes))
	assert.Equal(t, models.DisasterTypeEarthquake, stats[0].Type)
	assert.Equal(t, int64(2), stats[0].Total)
	assert.Equal(t, int64(1), stats[0].Active)
	assert.Equal(t, int64(2), stats[0].BySeverity[models.SeverityLow])
}

func TestHealth(t *testing.T) {
	env := setupTestRouter(t)

	w := env.do(http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["status"] != "ok" {
		t.Errorf("expected status ok, got %s", resp["status"])
	}

	env.store.Close()
	w = env.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSyncAll(t *testing.T) {
	env := setupTestRouter(t)
	env.triggers.summary = ingestion.Summary{Success: true, Total: 7, New: 2, Updated: 5}

	w := env.do(http.MethodPost, "/api/sync", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeEnvelope(t, w)
	assert.True(t, resp.Success)
	var summary ingestion.Summary
	require.NoError(t, json.Unmarshal(resp.Data, &summary))
	assert.Equal(t, 7, summary.Total)
	assert.Equal(t, 2, summary.New)
}

func TestSyncType(t *testing.T) {
	env := setupTestRouter(t)

	w := env.do(http.MethodPost, "/api/sync/tsunami", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, env.triggers.synced)

	env.triggers.result = ingestion.Result{Type: models.DisasterTypeFlood, Success: true, Total: 3}
	w = env.do(http.MethodPost, "/api/sync/flood", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "flood data sync completed", decodeEnvelope(t, w).Message)
	assert.Equal(t, []models.DisasterType{models.DisasterTypeFlood}, env.triggers.synced)

	env.triggers.result = ingestion.Result{Type: models.DisasterTypeFire, Success: false, Error: "feed down"}
	w = env.do(http.MethodPost, "/api/sync/fire", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "feed down")

	env.triggers.resultErr = ingestion.ErrUnknownType
	w = env.do(http.MethodPost, "/api/sync/cyclone", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSyncStatus(t *testing.T) {
	env := setupTestRouter(t)

	w := env.do(http.MethodGet, "/api/sync/status", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var data struct {
		Running      bool                                     `json:"running"`
		EnabledTypes []models.DisasterType                    `json:"enabled_types"`
		LastResults  map[models.DisasterType]ingestion.Result `json:"last_results"`
		LastSummary  *ingestion.Summary                       `json:"last_summary"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &data))
	assert.False(t, data.Running)
	assert.Equal(t, []models.DisasterType{models.DisasterTypeEarthquake}, data.EnabledTypes)
	assert.Equal(t, 3, data.LastResults[models.DisasterTypeEarthquake].Total)
	assert.Nil(t, data.LastSummary)
}

func TestRunAlerts(t *testing.T) {
	env := setupTestRouter(t)
	env.triggers.report = alerts.Report{Active: 3, New: 2, Dispatch: alerts.DispatchStats{Sent: 2, Countries: 1}}

	w := env.do(http.MethodPost, "/api/alerts/run", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var report alerts.Report
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &report))
	assert.Equal(t, 2, report.Dispatch.Sent)

	env.triggers.alertErr = alerts.ErrCycleInProgress
	w = env.do(http.MethodPost, "/api/alerts/run", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAlertStatus(t *testing.T) {
	env := setupTestRouter(t)

	w := env.do(http.MethodGet, "/api/alerts/status", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `"state":"idle"`)
	assert.Contains(t, body, `"new":1`)
}

func TestSubscribe_SendsWelcome(t *testing.T) {
	env := setupTestRouter(t)
	env.insert(t, "usgs-jp", models.DisasterTypeEarthquake, models.SeverityHigh, "Honshu, Japan", true)
	env.insert(t, "usgs-cl", models.DisasterTypeEarthquake, models.SeverityHigh, "Valparaiso, Chile", true)

	w := env.do(http.MethodPost, "/api/subscribe", gin.H{"email": "a@example.com", "country": "Japan"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decodeEnvelope(t, w)
	assert.True(t, resp.Success)
	var data struct {
		ID              uint   `json:"id"`
		Country         string `json:"country"`
		Status          string `json:"status"`
		ActiveDisasters int    `json:"active_disasters"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.NotZero(t, data.ID)
	assert.Equal(t, "Japan", data.Country)
	assert.Equal(t, string(models.SubscriptionConfirmed), data.Status)
	assert.Equal(t, 1, data.ActiveDisasters)

	msgs := env.transport.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "memory:dias-alerts-japan", msgs[0].Handle)
	assert.True(t, strings.HasPrefix(msgs[0].Message.Subject, "Welcome!"), msgs[0].Message.Subject)
	assert.Contains(t, msgs[0].Message.Body, "Honshu, Japan")
	assert.NotContains(t, msgs[0].Message.Body, "Valparaiso")
}

func TestSubscribe_Validation(t *testing.T) {
	env := setupTestRouter(t)

	w := env.do(http.MethodPost, "/api/subscribe", gin.H{"country": "Japan"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodPost, "/api/subscribe", gin.H{"email": "not-an-email", "country": "Japan"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Empty(t, env.transport.Messages())
}

func TestSubscriptions_ListAndUnsubscribe(t *testing.T) {
	env := setupTestRouter(t)

	w := env.do(http.MethodPost, "/api/subscribe", gin.H{"email": "b@example.com", "country": "Chile"})
	require.Equal(t, http.StatusOK, w.Code)
	var created struct {
		ID uint `json:"id"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &created))

	w = env.do(http.MethodGet, "/api/subscribe/my-subscriptions?email=b@example.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var subs []models.Subscription
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &subs))
	require.Len(t, subs, 1)
	assert.Equal(t, "Chile", subs[0].Country)

	w = env.do(http.MethodGet, "/api/subscribe/my-subscriptions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", string(decodeEnvelope(t, w).Data))

	target := "/api/subscribe/" + jsonNumber(created.ID)
	w = env.do(http.MethodDelete, target, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(http.MethodDelete, target+"?email=other@example.com", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(http.MethodDelete, target+"?email=b@example.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Successfully unsubscribed from Chile alerts", decodeEnvelope(t, w).Message)

	w = env.do(http.MethodDelete, "/api/subscribe/abc?email=b@example.com", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func jsonNumber(id uint) string {
	data, _ := json.Marshal(id)
	return string(data)
}

func TestCountries(t *testing.T) {
	env := setupTestRouter(t)

	w := env.do(http.MethodGet, "/api/subscribe/countries", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decodeEnvelope(t, w).Message, "No countries with active disasters")

	env.insert(t, "a", models.DisasterTypeEarthquake, models.SeverityLow, "Honshu, Japan", true)
	env.insert(t, "b", models.DisasterTypeEarthquake, models.SeverityLow, "Kyushu, Japan", true)
	env.insert(t, "c", models.DisasterTypeEarthquake, models.SeverityLow, "Valparaiso, Chile", true)
	env.insert(t, "d", models.DisasterTypeEarthquake, models.SeverityLow, "Mid-Atlantic Ridge", true)
	env.insert(t, "e", models.DisasterTypeEarthquake, models.SeverityLow, "Lima, Peru", false)

	w = env.do(http.MethodGet, "/api/subscribe/countries", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got []countryCount
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &got))
	assert.Equal(t, []countryCount{
		{Country: "Chile", DisasterCount: 1},
		{Country: "Japan", DisasterCount: 2},
	}, got)
}

func TestTopicsAndStats(t *testing.T) {
	env := setupTestRouter(t)

	w := env.do(http.MethodGet, "/api/subscribe/topics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", string(decodeEnvelope(t, w).Data))

	env.do(http.MethodPost, "/api/subscribe", gin.H{"email": "a@example.com", "country": "Japan"})
	env.do(http.MethodPost, "/api/subscribe", gin.H{"email": "b@example.com", "country": "Japan"})

	w = env.do(http.MethodGet, "/api/subscribe/topics", nil)
	var topics []models.CountryTopic
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &topics))
	require.Len(t, topics, 1)
	assert.Equal(t, "Japan", topics[0].Country)

	w = env.do(http.MethodGet, "/api/subscribe/stats", nil)
	var stats repository.SubscriptionStats
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &stats))
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(2), stats.Confirmed)
	assert.Equal(t, int64(2), stats.ByCountry["Japan"])
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RateLimitMiddleware(1))
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	send := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1:1234"))
	assert.Equal(t, http.StatusOK, send("10.0.0.2:1234"), "limits are per client")
}
