package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/systemshift/ddrgraph/internal/server/graph"
)

// MaxEvents caps the events carried by one notification. Matched still
// reports the full count.
const MaxEvents = 1000

type pending struct {
	sub     Subscription
	matched int
	events  []graph.Event
}

// Manager buffers matching events per subscription until Flush.
type Manager struct {
	mu       sync.Mutex
	pending  []*pending
	notifier *Notifier
	logger   *log.Logger
}

// NewManager validates subs and creates a manager for them.
func NewManager(subs []Subscription, notifier *Notifier, logger *log.Logger) (*Manager, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if notifier == nil {
		notifier = NewNotifier(logger)
	}

	m := &Manager{notifier: notifier, logger: logger}
	for _, s := range subs {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		m.pending = append(m.pending, &pending{sub: s})
	}
	return m, nil
}

// Len returns the number of subscriptions.
func (m *Manager) Len() int { return len(m.pending) }

// Observe records event against every subscription it matches. It has the
// signature of a store event emitter.
func (m *Manager) Observe(event graph.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.pending {
		if !p.sub.Pattern.Match(event) {
			continue
		}
		p.matched++
		if len(p.events) < MaxEvents {
			p.events = append(p.events, event)
		}
	}
}

// Flush posts one notification per subscription with matched events and
// clears the buffers. Subscriptions with nothing matched are not notified.
// Delivery failures are joined into the returned error.
func (m *Manager) Flush(ctx context.Context, source string) error {
	m.mu.Lock()
	var batch []Notification
	var targets []string
	for _, p := range m.pending {
		if p.matched == 0 {
			continue
		}
		batch = append(batch, Notification{
			ID:           uuid.New().String(),
			Subscription: p.sub.Name,
			Source:       source,
			Matched:      p.matched,
			Truncated:    p.matched > len(p.events),
			Events:       p.events,
			SentAt:       time.Now(),
		})
		targets = append(targets, p.sub.Webhook)
		p.matched, p.events = 0, nil
	}
	m.mu.Unlock()

	var errs []error
	for i, n := range batch {
		if err := m.notifier.SendWebhook(ctx, targets[i], n); err != nil {
			errs = append(errs, fmt.Errorf("subscription %q: %w", n.Subscription, err))
			continue
		}
		m.logger.Info("Notified subscription", "name", n.Subscription, "events", n.Matched)
	}
	return errors.Join(errs...)
}
