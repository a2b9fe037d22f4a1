package server

import (
	"context"
	"sync"
	"time"
)

const (
	// RealtimeEventSlideChanged announces a slide record mutation (edit, asset
	// resolution, insert, delete).
	RealtimeEventSlideChanged = "slide-change"
	// RealtimeEventBatchProgress announces batch scheduler progress updates.
	RealtimeEventBatchProgress = "batch-progress"
	realtimeEventHeartbeat     = "heartbeat"
)

// RealtimeMessage is one event fanned out to a workspace's subscribers.
type RealtimeMessage struct {
	WorkspaceID string
	EventType   string
	DeckID      string
	Payload     interface{}
	Timestamp   time.Time
}

// RealtimeDispatcher fans deck events out to the SSE subscribers of a
// workspace. Slow subscribers lose messages rather than blocking publishers.
type RealtimeDispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*realtimeSubscriber
	nextID      int64
	bufferSize  int
}

type realtimeSubscriber struct {
	id     int64
	stream chan RealtimeMessage
}

// NewRealtimeDispatcher constructs an empty dispatcher.
func NewRealtimeDispatcher() *RealtimeDispatcher {
	return &RealtimeDispatcher{
		subscribers: make(map[string]map[int64]*realtimeSubscriber),
		bufferSize:  16,
	}
}

// Subscribe registers a listener for one workspace. The returned cleanup is
// idempotent and also runs when ctx ends.
func (d *RealtimeDispatcher) Subscribe(ctx context.Context, workspaceID string) (<-chan RealtimeMessage, func()) {
	if workspaceID == "" {
		ch := make(chan RealtimeMessage)
		close(ch)
		return ch, func() {}
	}
	subscriber := &realtimeSubscriber{
		id:     d.nextSequence(),
		stream: make(chan RealtimeMessage, d.bufferSize),
	}
	d.registerSubscriber(workspaceID, subscriber)
	cleanup := func() {
		d.unregisterSubscriber(workspaceID, subscriber.id)
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

// Publish delivers the message to every subscriber of its workspace.
func (d *RealtimeDispatcher) Publish(message RealtimeMessage) {
	if message.WorkspaceID == "" || message.EventType == "" {
		return
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now().UTC()
	}
	// Sends happen under the read lock and unregister closes the stream under
	// the write lock, so a send can never hit a closed channel. The send is
	// non-blocking, so holding the lock here is safe.
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, subscriber := range d.subscribers[message.WorkspaceID] {
		select {
		case subscriber.stream <- message:
		default:
			// Dropped for a full buffer; the snapshot endpoints remain the
			// source of truth.
		}
	}
}

func (d *RealtimeDispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *RealtimeDispatcher) registerSubscriber(workspaceID string, subscriber *realtimeSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.subscribers[workspaceID] == nil {
		d.subscribers[workspaceID] = make(map[int64]*realtimeSubscriber)
	}
	d.subscribers[workspaceID][subscriber.id] = subscriber
}

func (d *RealtimeDispatcher) unregisterSubscriber(workspaceID string, subscriberID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	group, ok := d.subscribers[workspaceID]
	if !ok {
		return
	}
	if subscriber, ok := group[subscriberID]; ok {
		close(subscriber.stream)
		delete(group, subscriberID)
	}
	if len(group) == 0 {
		delete(d.subscribers, workspaceID)
	}
}
