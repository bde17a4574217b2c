// Package broker implements the event broker (C5): per-task fan-out of
// status and artifact update events to streaming subscribers (the
// WebSocket transport), independent of the push-notification path.
package broker

import (
	"context"
	"sync"
	"time"

	"github.com/kadirpekel/a2arun/pkg/a2a"
)

// DefaultBufferSize bounds each subscriber's channel. A slow subscriber
// drops events past this depth rather than blocking the publisher.
const DefaultBufferSize = 32

// DefaultGCInterval is how often Run sweeps the subscription tables. The
// sweep only drops task entries that have no subscriber left; a
// subscription that is never closed stays registered.
const DefaultGCInterval = 30 * time.Second

type subKind int

const (
	kindStatus subKind = iota
	kindArtifact
)

// Broker fans out task lifecycle events to subscribers. A status table and
// an artifact table are kept independently, per subscribe_status/
// subscribe_artifact: a client interested only in artifacts never sees a
// status event queued ahead of it, and vice versa. One Broker serves every
// task; subscriptions are keyed by task id so a slow subscriber on one task
// never affects another's delivery.
type Broker struct {
	mu           sync.Mutex
	statusSubs   map[string]map[*Subscription]struct{}
	artifactSubs map[string]map[*Subscription]struct{}
	bufferSize   int
	gcInterval   time.Duration
}

// Subscription is a live subscriber's event channel for one kind (status or
// artifact) of one task. Consumers must range over Events() and call Close
// when done to release the slot; Run's GC sweep does not remove a
// subscription that was never closed, only task entries left empty.
type Subscription struct {
	taskID string
	kind   subKind
	ch     chan a2a.Event
	b      *Broker

	mu     sync.Mutex
	closed bool
}

// Events returns the channel to range over. It is closed when the
// subscription is closed, either explicitly or by GC.
func (s *Subscription) Events() <-chan a2a.Event {
	return s.ch
}

// Close unregisters the subscription and closes its channel. Idempotent.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.b.remove(s.taskID, s.kind, s)
	close(s.ch)
}

// StreamSubscription merges one status and one artifact Subscription into
// the single Events()/Close() surface a transport consumes, so every
// streaming client registers through exactly one object with the broker
// while the broker itself keeps the two kinds of events on independent
// tables internally.
type StreamSubscription struct {
	status   *Subscription
	artifact *Subscription
	ch       chan a2a.Event
	done     chan struct{}
	once     sync.Once
}

func mergeSubscriptions(status, artifact *Subscription) *StreamSubscription {
	m := &StreamSubscription{
		ch:       make(chan a2a.Event, cap(status.ch)+cap(artifact.ch)),
		done:     make(chan struct{}),
		status:   status,
		artifact: artifact,
	}

	var wg sync.WaitGroup
	wg.Add(2)
	pump := func(sub *Subscription) {
		defer wg.Done()
		for ev := range sub.Events() {
			select {
			case m.ch <- ev:
			case <-m.done:
				return
			}
		}
	}
	go pump(status)
	go pump(artifact)
	go func() {
		wg.Wait()
		close(m.ch)
	}()

	return m
}

// Events returns the merged channel to range over.
func (m *StreamSubscription) Events() <-chan a2a.Event {
	return m.ch
}

// Close unregisters both underlying subscriptions. Idempotent.
func (m *StreamSubscription) Close() {
	m.once.Do(func() {
		close(m.done)
		m.status.Close()
		m.artifact.Close()
	})
}

// New constructs a Broker. bufferSize <= 0 uses DefaultBufferSize and
// gcInterval <= 0 uses DefaultGCInterval.
func New(bufferSize int, gcInterval time.Duration) *Broker {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if gcInterval <= 0 {
		gcInterval = DefaultGCInterval
	}
	return &Broker{
		statusSubs:   make(map[string]map[*Subscription]struct{}),
		artifactSubs: make(map[string]map[*Subscription]struct{}),
		bufferSize:   bufferSize,
		gcInterval:   gcInterval,
	}
}

func (b *Broker) table(kind subKind) map[string]map[*Subscription]struct{} {
	if kind == kindStatus {
		return b.statusSubs
	}
	return b.artifactSubs
}

func (b *Broker) subscribe(kind subKind, taskID string, catchUp []a2a.Event) *Subscription {
	sub := &Subscription{
		taskID: taskID,
		kind:   kind,
		ch:     make(chan a2a.Event, b.bufferSize),
		b:      b,
	}

	b.mu.Lock()
	table := b.table(kind)
	if table[taskID] == nil {
		table[taskID] = make(map[*Subscription]struct{})
	}
	table[taskID][sub] = struct{}{}
	b.mu.Unlock()

	for _, ev := range catchUp {
		select {
		case sub.ch <- ev:
		default:
			// catch-up backlog exceeds the buffer; drop the oldest-first
			// overflow rather than block construction.
		}
	}
	return sub
}

// SubscribeStatus registers a new status subscriber for taskID. When
// catchUp is non-nil it is enqueued first, so a client that just
// (re)subscribed to an in-flight task immediately sees its current status
// rather than waiting for the next mutation.
func (b *Broker) SubscribeStatus(taskID string, catchUp a2a.Event) *Subscription {
	if catchUp == nil {
		return b.subscribe(kindStatus, taskID, nil)
	}
	return b.subscribe(kindStatus, taskID, []a2a.Event{catchUp})
}

// SubscribeArtifact registers a new artifact subscriber for taskID. Per
// the catch-up contract, catchUp carries one event per artifact the task
// already has, delivered in order before any newly published artifact.
func (b *Broker) SubscribeArtifact(taskID string, catchUp []a2a.Event) *Subscription {
	return b.subscribe(kindArtifact, taskID, catchUp)
}

// Subscribe registers a merged stream subscription for taskID: one status
// subscriber carrying statusCatchUp and one artifact subscriber carrying
// artifactCatchUp, fanned into the single Events()/Close() surface a
// transport consumes.
func (b *Broker) Subscribe(taskID string, statusCatchUp a2a.Event, artifactCatchUp []a2a.Event) *StreamSubscription {
	status := b.SubscribeStatus(taskID, statusCatchUp)
	artifact := b.SubscribeArtifact(taskID, artifactCatchUp)
	return mergeSubscriptions(status, artifact)
}

func (b *Broker) remove(taskID string, kind subKind, sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	table := b.table(kind)
	if set, ok := table[taskID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(table, taskID)
		}
	}
}

// PublishStatus delivers ev to every current status subscriber of taskID.
// Delivery is non-blocking: a subscriber whose buffer is full has the
// event dropped for it rather than stalling every other subscriber or the
// caller.
func (b *Broker) PublishStatus(taskID string, ev a2a.Event) {
	b.publish(kindStatus, taskID, ev)
}

// PublishArtifact delivers ev to every current artifact subscriber of
// taskID, with the same non-blocking, drop-on-full semantics as
// PublishStatus.
func (b *Broker) PublishArtifact(taskID string, ev a2a.Event) {
	b.publish(kindArtifact, taskID, ev)
}

func (b *Broker) publish(kind subKind, taskID string, ev a2a.Event) {
	b.mu.Lock()
	set := b.table(kind)[taskID]
	subs := make([]*Subscription, 0, len(set))
	for sub := range set {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.ch <- ev:
		default:
			// buffer full; drop rather than block the publisher or
			// other subscribers.
		}
	}
}

// StatusSubscriberCount reports the current number of live status
// subscribers for a task, for metrics and tests.
func (b *Broker) StatusSubscriberCount(taskID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.statusSubs[taskID])
}

// ArtifactSubscriberCount reports the current number of live artifact
// subscribers for a task, for metrics and tests.
func (b *Broker) ArtifactSubscriberCount(taskID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.artifactSubs[taskID])
}

// Run sweeps empty task entries out of both subscriber tables on
// gcInterval until ctx is canceled. Because Subscribe/remove already
// delete empty entries eagerly, this is a backstop against leaks from
// subscriptions that were never explicitly closed; it costs an O(tasks)
// walk rather than leaving stale entries to accumulate indefinitely.
func (b *Broker) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			b.sweep()
		}
	}
}

func (b *Broker) sweep() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for taskID, set := range b.statusSubs {
		if len(set) == 0 {
			delete(b.statusSubs, taskID)
		}
	}
	for taskID, set := range b.artifactSubs {
		if len(set) == 0 {
			delete(b.artifactSubs, taskID)
		}
	}
}
