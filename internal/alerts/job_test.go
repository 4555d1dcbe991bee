package alerts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AgileSeagull/DIAS/internal/geocode"
	"github.com/AgileSeagull/DIAS/internal/models"
	"github.com/AgileSeagull/DIAS/internal/notify"
	"github.com/AgileSeagull/DIAS/internal/repository"
)

type fixedLister struct {
	mu     sync.Mutex
	active []models.Disaster
	err    error
}

func (l *fixedLister) ListActive(context.Context) ([]models.Disaster, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active, l.err
}

func (l *fixedLister) set(ds ...models.Disaster) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.active = ds
}

func disaster(id, location string) models.Disaster {
	return models.Disaster{
		DisasterID:   id,
		Type:         models.DisasterTypeEarthquake,
		Severity:     models.SeverityModerate,
		LocationName: location,
		Latitude:     10,
		Longitude:    10,
		OccurredAt:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		IsActive:     true,
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	sent   []string
	failOn map[string]bool
}

func (p *recordingPublisher) Publish(_ context.Context, country, subject, body, disasterID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failOn[disasterID] {
		return "", errors.New("publish failed")
	}
	p.sent = append(p.sent, disasterID)
	return "msg-" + disasterID, nil
}

type recordingBroadcaster struct {
	events []*models.AlertEvent
}

func (b *recordingBroadcaster) Broadcast(ev *models.AlertEvent) {
	b.events = append(b.events, ev)
}

type nopTopics struct {
	counts map[string]int
}

func (n *nopTopics) RefreshCounts(_ context.Context, counts map[string]int) error {
	n.counts = counts
	return nil
}

func (n *nopTopics) CleanupInactive(context.Context) (int, error) { return 0, nil }

func TestDetector_Delta(t *testing.T) {
	lister := &fixedLister{}
	lister.set(disaster("1", "Chile"), disaster("2", "Peru"))
	det := NewDetector(lister, NewProcessedSet())

	require.NoError(t, det.Init(context.Background()))
	assert.Equal(t, 2, det.Processed().Len())

	active := []models.Disaster{disaster("4", "Japan"), disaster("3", "Chile"), disaster("2", "Peru"), disaster("1", "Chile")}
	fresh := det.Delta(active)

	require.Len(t, fresh, 2)
	assert.Equal(t, "4", fresh[0].DisasterID)
	assert.Equal(t, "3", fresh[1].DisasterID)
}

func TestDetector_InitError(t *testing.T) {
	det := NewDetector(&fixedLister{err: errors.New("db down")}, NewProcessedSet())
	assert.Error(t, det.Init(context.Background()))
}

func TestDispatcher_FailedPublishRetriedNextCycle(t *testing.T) {
	processed := NewProcessedSet()
	pub := &recordingPublisher{failOn: map[string]bool{"b": true}}
	bc := &recordingBroadcaster{}
	d := NewDispatcher(pub, processed, bc, clockwork.NewFakeClock())

	groups := []geocode.CountryGroup{
		{Country: "Chile", Disasters: []models.Disaster{disaster("a", "Chile"), disaster("b", "Chile")}},
		{Country: "Peru", Disasters: []models.Disaster{disaster("c", "Peru")}},
	}
	stats := d.Dispatch(context.Background(), groups)

	assert.Equal(t, DispatchStats{Sent: 2, Failed: 1, Countries: 2}, stats)
	assert.True(t, processed.Has("a"))
	assert.False(t, processed.Has("b"))
	assert.True(t, processed.Has("c"))

	require.Len(t, bc.events, 2)
	assert.Equal(t, "Chile", bc.events[0].Country)
	assert.Equal(t, "msg-a", bc.events[0].MessageID)
	assert.Equal(t, "Peru", bc.events[1].Country)
}

func newStubJob(lister ActiveLister, pub Publisher) (*Job, *nopTopics) {
	processed := NewProcessedSet()
	topics := &nopTopics{}
	resolver := geocode.NewResolver(nil, nil, nil)
	job := NewJob(lister, resolver, topics,
		NewDetector(lister, processed),
		NewDispatcher(pub, processed, nil, nil),
		JobOptions{})
	return job, topics
}

func TestJob_DeltaAcrossCycles(t *testing.T) {
	lister := &fixedLister{}
	lister.set(disaster("1", "Santiago, Chile"), disaster("2", "Lima, Peru"))
	pub := &recordingPublisher{}
	job, topics := newStubJob(lister, pub)
	ctx := context.Background()

	require.NoError(t, job.Init(ctx))

	report, err := job.RunCycle(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.New)
	assert.Empty(t, pub.sent)
	assert.Equal(t, map[string]int{"Chile": 1, "Peru": 1}, topics.counts)

	lister.set(
		disaster("4", "Tokyo, Japan"),
		disaster("3", "Valparaiso, Chile"),
		disaster("2", "Lima, Peru"),
		disaster("1", "Santiago, Chile"),
	)
	report, err = job.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.New)
	assert.Equal(t, 2, report.Dispatch.Sent)
	assert.ElementsMatch(t, []string{"3", "4"}, pub.sent)
	assert.Equal(t, map[string]int{"Chile": 2, "Peru": 1, "Japan": 1}, topics.counts)

	report, err = job.RunCycle(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.New)
	assert.Len(t, pub.sent, 2)

	last, ok := job.LastReport()
	require.True(t, ok)
	assert.Equal(t, 4, last.Active)
	assert.Equal(t, StateIdle, job.State())
}

func TestJob_FailedPublishRetried(t *testing.T) {
	lister := &fixedLister{}
	pub := &recordingPublisher{failOn: map[string]bool{"9": true}}
	job, _ := newStubJob(lister, pub)
	ctx := context.Background()
	require.NoError(t, job.Init(ctx))

	lister.set(disaster("9", "Chile"))
	report, err := job.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Dispatch.Failed)

	pub.mu.Lock()
	pub.failOn = nil
	pub.mu.Unlock()

	report, err = job.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Dispatch.Sent)
	assert.Equal(t, []string{"9"}, pub.sent)
}

type blockingLister struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingLister) ListActive(context.Context) ([]models.Disaster, error) {
	b.entered <- struct{}{}
	<-b.release
	return nil, nil
}

func TestJob_NotReentrant(t *testing.T) {
	lister := &blockingLister{entered: make(chan struct{}, 1), release: make(chan struct{})}
	job, _ := newStubJob(lister, &recordingPublisher{})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := job.RunCycle(ctx)
		done <- err
	}()

	<-lister.entered
	assert.Equal(t, StateFetching, job.State())

	_, err := job.RunCycle(ctx)
	assert.ErrorIs(t, err, ErrCycleInProgress)

	close(lister.release)
	require.NoError(t, <-done)
	assert.Equal(t, StateIdle, job.State())
}

func TestJob_ListError(t *testing.T) {
	job, _ := newStubJob(&fixedLister{err: errors.New("db down")}, &recordingPublisher{})

	report, err := job.RunCycle(context.Background())
	assert.Error(t, err)
	assert.Contains(t, report.Error, "db down")

	_, err = job.RunCycle(context.Background())
	assert.Error(t, err, "a failed cycle must release the guard")
	assert.NotErrorIs(t, err, ErrCycleInProgress)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "dispatching", StateDispatching.String())
	text, err := StateDiffing.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "diffing", string(text))
}

func TestJob_EndToEndUSGSQuake(t *testing.T) {
	store, err := repository.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()

	transport := notify.NewMemoryTransport()
	topics := notify.NewTopicManager(transport, store, "dias-alerts", nil, nil)
	processed := NewProcessedSet()
	job := NewJob(store, geocode.NewResolver(nil, nil, nil), topics,
		NewDetector(store, processed),
		NewDispatcher(topics, processed, nil, nil),
		JobOptions{})
	require.NoError(t, job.Init(ctx))

	q := quake()
	require.NoError(t, store.Insert(ctx, q))

	report, err := job.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Dispatch.Sent)

	msgs := transport.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "memory:dias-alerts-united-states", msgs[0].Handle)
	assert.Contains(t, msgs[0].Message.Subject, "HIGH")
	assert.Contains(t, msgs[0].Message.Subject, "Earthquake")
	assert.Contains(t, msgs[0].Message.Subject, "United States")

	topic, err := store.GetTopic(ctx, "United States")
	require.NoError(t, err)
	assert.Equal(t, 1, topic.DisasterCount)

	_, err = job.RunCycle(ctx)
	require.NoError(t, err)
	assert.Len(t, transport.Messages(), 1)
}
