package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Published is a message accepted by a MemoryTransport.
type Published struct {
	Handle    string
	MessageID string
	Message   Message
}

// MemoryTransport keeps topics, subscriptions and published messages in
// process. It is the default transport and the test double for the others.
type MemoryTransport struct {
	// RequireConfirmation makes Subscribe report PendingConfirmation.
	RequireConfirmation bool

	mu            sync.Mutex
	topics        map[string]string // handle -> name
	subscriptions map[string]string // subscription handle -> topic handle
	published     []Published

	publishErr     error
	unsubscribeErr error
	failFor        map[string]error // topic handle -> publish error
}

func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{
		topics:        make(map[string]string),
		subscriptions: make(map[string]string),
		failFor:       make(map[string]error),
	}
}

func (m *MemoryTransport) Name() string { return "memory" }

const memoryHandlePrefix = "memory:"

// known reports whether handle names a topic. Handles with the memory prefix
// are adopted, so topic rows stored by an earlier process stay usable.
// Caller holds m.mu.
func (m *MemoryTransport) known(handle string) bool {
	if _, ok := m.topics[handle]; ok {
		return true
	}
	name, ok := strings.CutPrefix(handle, memoryHandlePrefix)
	if !ok || name == "" {
		return false
	}
	m.topics[handle] = name
	return true
}

func (m *MemoryTransport) CreateTopic(_ context.Context, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	handle := memoryHandlePrefix + name
	m.topics[handle] = name
	return handle, nil
}

func (m *MemoryTransport) DeleteTopic(_ context.Context, handle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.known(handle) {
		return fmt.Errorf("topic %s not found", handle)
	}
	delete(m.topics, handle)
	for sub, topic := range m.subscriptions {
		if topic == handle {
			delete(m.subscriptions, sub)
		}
	}
	return nil
}

func (m *MemoryTransport) Publish(_ context.Context, handle string, msg Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.failFor[handle]; ok {
		return "", err
	}
	if m.publishErr != nil {
		return "", m.publishErr
	}
	if !m.known(handle) {
		return "", fmt.Errorf("topic %s not found", handle)
	}

	id := uuid.NewString()
	m.published = append(m.published, Published{Handle: handle, MessageID: id, Message: msg})
	return id, nil
}

func (m *MemoryTransport) Subscribe(_ context.Context, handle, email string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.known(handle) {
		return "", fmt.Errorf("topic %s not found", handle)
	}
	if m.RequireConfirmation {
		return PendingConfirmation, nil
	}
	sub := fmt.Sprintf("%s:%s:%s", handle, email, uuid.NewString())
	m.subscriptions[sub] = handle
	return sub, nil
}

func (m *MemoryTransport) Unsubscribe(_ context.Context, subscriptionHandle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.unsubscribeErr != nil {
		return m.unsubscribeErr
	}
	if _, ok := m.subscriptions[subscriptionHandle]; !ok {
		return fmt.Errorf("subscription %s not found", subscriptionHandle)
	}
	delete(m.subscriptions, subscriptionHandle)
	return nil
}

// SetPublishError makes every Publish fail with err until cleared with nil.
func (m *MemoryTransport) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishErr = err
}

// FailTopic makes Publish to the named topic fail with err. A nil err clears it.
func (m *MemoryTransport) FailTopic(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	handle := memoryHandlePrefix + name
	if err == nil {
		delete(m.failFor, handle)
		return
	}
	m.failFor[handle] = err
}

func (m *MemoryTransport) SetUnsubscribeError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unsubscribeErr = err
}

// Messages returns a copy of everything published so far.
func (m *MemoryTransport) Messages() []Published {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Published, len(m.published))
	copy(out, m.published)
	return out
}

func (m *MemoryTransport) Topics() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.topics))
	for _, name := range m.topics {
		out = append(out, name)
	}
	return out
}

func (m *MemoryTransport) SubscriptionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscriptions)
}
