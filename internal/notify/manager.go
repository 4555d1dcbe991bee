package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"sort"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/AgileSeagull/DIAS/internal/geocode"
	"github.com/AgileSeagull/DIAS/internal/models"
	"github.com/AgileSeagull/DIAS/internal/observability"
	"github.com/AgileSeagull/DIAS/internal/repository"
)

// ErrInvalidSubscription is returned for a missing country or malformed email.
var ErrInvalidSubscription = errors.New("email and country are required")

// Store is the persistence the TopicManager needs.
type Store interface {
	repository.TopicRepository
	repository.SubscriptionRepository
	LogAlert(ctx context.Context, a *models.AlertLog) error
}

// SubscribeResult describes a completed subscribe call.
type SubscribeResult struct {
	Subscription models.Subscription `json:"subscription"`
	TopicHandle  string              `json:"topic_handle"`
	Pending      bool                `json:"pending"`
	Message      string              `json:"message"`
}

// TopicManager owns the country -> topic mapping, subscriptions and the
// alert log.
type TopicManager struct {
	transport Transport
	store     Store
	prefix    string
	clock     clockwork.Clock
	metrics   *observability.Metrics
	logger    *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewTopicManager(transport Transport, store Store, prefix string, clock clockwork.Clock, metrics *observability.Metrics) *TopicManager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if metrics == nil {
		metrics = observability.NewMetricsForTesting()
	}
	return &TopicManager{
		transport: transport,
		store:     store,
		prefix:    prefix,
		clock:     clock,
		metrics:   metrics,
		logger:    slog.With("component", "topics", "transport", transport.Name()),
		locks:     make(map[string]*sync.Mutex),
	}
}

func (m *TopicManager) countryLock(country string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[country]
	if !ok {
		l = &sync.Mutex{}
		m.locks[country] = l
	}
	return l
}

// GetOrCreate returns the topic handle for country, creating the transport
// topic and its row on first use. Concurrent callers for the same country
// share one creation.
func (m *TopicManager) GetOrCreate(ctx context.Context, country string) (string, error) {
	l := m.countryLock(country)
	l.Lock()
	defer l.Unlock()

	t, err := m.store.GetTopic(ctx, country)
	if err == nil {
		return t.TopicHandle, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return "", err
	}

	name := TopicName(m.prefix, country)
	handle, err := m.transport.CreateTopic(ctx, name)
	if err != nil {
		return "", fmt.Errorf("create topic for %s: %w", country, err)
	}

	now := m.clock.Now().UTC()
	topic := &models.CountryTopic{
		Country:     country,
		TopicHandle: handle,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.store.SaveTopic(ctx, topic); err != nil {
		return "", err
	}
	m.logger.Info("created topic", "country", country, "topic", name)
	return handle, nil
}

func (m *TopicManager) UpdateCount(ctx context.Context, country string, n int) error {
	return m.store.UpdateCount(ctx, country, n)
}

// RefreshCounts pushes per-country active disaster counts, creating missing
// topics. Unknown is skipped. Topics of countries absent from counts drop to
// zero. Per-country failures are logged and returned joined.
func (m *TopicManager) RefreshCounts(ctx context.Context, counts map[string]int) error {
	countries := make([]string, 0, len(counts))
	for c := range counts {
		if c == geocode.Unknown || strings.TrimSpace(c) == "" {
			continue
		}
		countries = append(countries, c)
	}
	sort.Strings(countries)

	var errs []error
	active := 0
	for _, c := range countries {
		if _, err := m.GetOrCreate(ctx, c); err != nil {
			m.logger.Error("failed to ensure topic", "country", c, "error", err)
			errs = append(errs, err)
			continue
		}
		if err := m.store.UpdateCount(ctx, c, counts[c]); err != nil {
			m.logger.Error("failed to update topic count", "country", c, "error", err)
			errs = append(errs, err)
			continue
		}
		if counts[c] > 0 {
			active++
		}
	}

	zeroed, err := m.store.ZeroCountsExcept(ctx, countries)
	if err != nil {
		errs = append(errs, err)
	}
	m.metrics.ActiveTopics.Set(float64(active))
	m.logger.Info("topic counts refreshed", "countries", len(countries), "zeroed", zeroed)
	return errors.Join(errs...)
}

// Subscribe registers email for country alerts. The country is matched to
// its canonical spelling. Re-subscribing refreshes the existing row and
// drops the transport subscription it replaces.
func (m *TopicManager) Subscribe(ctx context.Context, email, country string, userID *uint) (SubscribeResult, error) {
	email = strings.TrimSpace(email)
	country = geocode.CanonicalCountry(country)
	if email == "" || country == "" {
		return SubscribeResult{}, ErrInvalidSubscription
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return SubscribeResult{}, fmt.Errorf("%w: %v", ErrInvalidSubscription, err)
	}

	handle, err := m.GetOrCreate(ctx, country)
	if err != nil {
		return SubscribeResult{}, err
	}

	subHandle, err := m.transport.Subscribe(ctx, handle, email)
	if err != nil {
		return SubscribeResult{}, fmt.Errorf("subscribe %s to %s: %w", email, country, err)
	}

	m.dropPrevious(ctx, email, country, subHandle)

	now := m.clock.Now().UTC()
	sub := models.Subscription{
		UserID:       userID,
		Email:        email,
		Country:      country,
		Status:       models.SubscriptionConfirmed,
		SubscribedAt: now,
	}
	pending := subHandle == PendingConfirmation
	if pending {
		sub.Status = models.SubscriptionPending
	} else {
		sub.SubscriptionHandle = &subHandle
		sub.ConfirmedAt = &now
	}
	if err := m.store.UpsertSubscription(ctx, &sub); err != nil {
		return SubscribeResult{}, err
	}

	msg := fmt.Sprintf("Subscribed to disaster alerts for %s.", country)
	if pending {
		msg = "Subscription request sent. Please check your email to confirm."
	}
	m.logger.Info("subscribed", "country", country, "pending", pending)
	return SubscribeResult{Subscription: sub, TopicHandle: handle, Pending: pending, Message: msg}, nil
}

// dropPrevious releases the transport subscription stored for (email,
// country) unless it is current. Failures are only logged.
func (m *TopicManager) dropPrevious(ctx context.Context, email, country, current string) {
	prev, err := m.store.FindSubscription(ctx, email, country)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			m.logger.Warn("lookup of previous subscription failed", "country", country, "error", err)
		}
		return
	}
	if prev.Status == models.SubscriptionUnsubscribed || !liveHandle(prev.SubscriptionHandle) || *prev.SubscriptionHandle == current {
		return
	}
	if err := m.transport.Unsubscribe(ctx, *prev.SubscriptionHandle); err != nil {
		m.logger.Warn("failed to release previous subscription", "subscription_id", prev.ID, "country", country, "error", err)
	}
}

func liveHandle(h *string) bool {
	return h != nil && *h != "" && *h != PendingConfirmation
}

// Unsubscribe marks the subscription unsubscribed and returns it. The
// transport call is best effort and its failure does not block the local
// update.
func (m *TopicManager) Unsubscribe(ctx context.Context, id uint, email string) (*models.Subscription, error) {
	sub, err := m.store.GetSubscription(ctx, id, email)
	if err != nil {
		return nil, err
	}

	if liveHandle(sub.SubscriptionHandle) {
		if err := m.transport.Unsubscribe(ctx, *sub.SubscriptionHandle); err != nil {
			m.logger.Warn("transport unsubscribe failed", "subscription_id", id, "country", sub.Country, "error", err)
		}
	}
	if err := m.store.MarkUnsubscribed(ctx, id); err != nil {
		return nil, err
	}
	sub.Status = models.SubscriptionUnsubscribed
	m.logger.Info("unsubscribed", "subscription_id", id, "country", sub.Country)
	return sub, nil
}

// Publish sends one alert to the country's topic and records the outcome in
// the alert log.
func (m *TopicManager) Publish(ctx context.Context, country, subject, body, disasterID string) (string, error) {
	entry := &models.AlertLog{
		DisasterID: disasterID,
		Country:    country,
		Subject:    subject,
		Message:    body,
		Status:     models.AlertStatusFailed,
	}

	handle, err := m.GetOrCreate(ctx, country)
	if err != nil {
		m.recordFailure(ctx, entry, err)
		return "", err
	}
	entry.TopicHandle = handle

	id, err := m.transport.Publish(ctx, handle, Message{
		Subject:    subject,
		Body:       body,
		Country:    country,
		DisasterID: disasterID,
	})
	if err != nil {
		m.recordFailure(ctx, entry, err)
		return "", fmt.Errorf("publish alert to %s: %w", country, err)
	}

	entry.MessageID = id
	entry.Status = models.AlertStatusSent
	entry.CreatedAt = m.clock.Now().UTC()
	if err := m.store.LogAlert(ctx, entry); err != nil {
		m.logger.Error("failed to log sent alert", "disaster_id", disasterID, "country", country, "error", err)
	}
	m.metrics.AlertsPublished.Inc()
	return id, nil
}

func (m *TopicManager) recordFailure(ctx context.Context, entry *models.AlertLog, cause error) {
	m.metrics.AlertsFailed.Inc()
	m.logger.Error("alert publish failed", "disaster_id", entry.DisasterID, "country", entry.Country, "error", cause)
	entry.CreatedAt = m.clock.Now().UTC()
	if err := m.store.LogAlert(ctx, entry); err != nil {
		m.logger.Error("failed to log failed alert", "disaster_id", entry.DisasterID, "error", err)
	}
}

// CleanupInactive deletes topics whose disaster count is zero and returns
// how many were removed.
func (m *TopicManager) CleanupInactive(ctx context.Context) (int, error) {
	topics, err := m.store.ListTopics(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, t := range topics {
		if t.DisasterCount != 0 {
			continue
		}
		if err := m.transport.DeleteTopic(ctx, t.TopicHandle); err != nil {
			m.logger.Warn("failed to delete transport topic", "country", t.Country, "error", err)
			continue
		}
		if err := m.store.DeleteTopic(ctx, t.Country); err != nil && !errors.Is(err, repository.ErrNotFound) {
			m.logger.Warn("failed to delete topic row", "country", t.Country, "error", err)
			continue
		}
		removed++
	}
	m.logger.Info("cleaned up inactive topics", "removed", removed)
	return removed, nil
}

// SendWelcome publishes the welcome message for country, listing the given
// active disasters. It is not recorded in the alert log.
func (m *TopicManager) SendWelcome(ctx context.Context, country string, disasters []models.Disaster) (string, error) {
	handle, err := m.GetOrCreate(ctx, country)
	if err != nil {
		return "", err
	}
	subject, body := FormatWelcome(country, disasters)
	id, err := m.transport.Publish(ctx, handle, Message{Subject: subject, Body: body, Country: country})
	if err != nil {
		return "", fmt.Errorf("send welcome for %s: %w", country, err)
	}
	return id, nil
}

func (m *TopicManager) ListTopics(ctx context.Context) ([]models.CountryTopic, error) {
	return m.store.ListTopics(ctx)
}

func (m *TopicManager) ListSubscriptions(ctx context.Context, email string) ([]models.Subscription, error) {
	return m.store.ListSubscriptions(ctx, email)
}

func (m *TopicManager) SubscriptionStats(ctx context.Context) (repository.SubscriptionStats, error) {
	return m.store.SubscriptionStats(ctx)
}
