package timeline

import (
	"sync"
	"time"

	"github.com/okapi-sh/sprintd/internal/errors"
)

// Sink receives every event synchronously at publish time, before the event
// is committed to the stream. A sink failure aborts the publish, so callers
// can treat it as a persistence failure rather than losing events silently.
type Sink interface {
	Write(Event) error
}

// Bus is the per-sprint event log. Streams are created on first publish or
// subscribe and their live-delivery machinery is torn down when the sprint
// reaches a terminal status; history stays queryable after teardown.
type Bus struct {
	mu      sync.Mutex
	streams map[string]*stream
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{streams: make(map[string]*stream)}
}

type stream struct {
	mu      sync.Mutex
	seq     uint64
	history []Event
	subs    map[uint64]*subscriber
	nextSub uint64
	closed  bool
	sink    Sink
}

func (b *Bus) stream(sprintID string) *stream {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.streams[sprintID]
	if !ok {
		s = &stream{subs: make(map[uint64]*subscriber)}
		b.streams[sprintID] = s
	}
	return s
}

// AttachSink sets the synchronous sink for a sprint's stream. It must be
// attached before the first publish that should be captured.
func (b *Bus) AttachSink(sprintID string, sink Sink) {
	s := b.stream(sprintID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

// Restore primes a sprint's sequence counter, used when resuming a sprint
// whose earlier events were published by a previous process. Subsequent
// publishes continue from seq+1 so auditors never observe a sequence reset.
func (b *Bus) Restore(sprintID string, seq uint64) {
	s := b.stream(sprintID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq > s.seq {
		s.seq = seq
	}
}

// Publish assigns the next sequence number to e, records it, and delivers it
// to every live subscriber in order. The sink, if attached, is written before
// the event is committed; a sink error fails the publish and the sequence is
// not consumed.
func (b *Bus) Publish(sprintID string, e Event) (Event, error) {
	s := b.stream(sprintID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return Event{}, errors.New("timeline: stream closed")
	}

	e.SprintID = sprintID
	e.Seq = s.seq + 1
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	if s.sink != nil {
		if err := s.sink.Write(e); err != nil {
			return Event{}, errors.NewPersistenceError("event", err)
		}
	}

	s.seq = e.Seq
	s.history = append(s.history, e)
	for _, sub := range s.subs {
		sub.push(e)
	}
	return e, nil
}

// Subscribe returns a channel that yields the sprint's full history followed
// by live events, and a cancel function that detaches the subscriber. The
// channel is closed after the stream is closed and the history has been
// drained.
func (b *Bus) Subscribe(sprintID string) (<-chan Event, func()) {
	s := b.stream(sprintID)
	s.mu.Lock()

	sub := newSubscriber()
	for _, e := range s.history {
		sub.push(e)
	}

	var id uint64
	if s.closed {
		// No live events will follow; the subscriber drains the replay and
		// then observes the closed channel.
		sub.close()
	} else {
		id = s.nextSub
		s.nextSub++
		s.subs[id] = sub
	}
	s.mu.Unlock()

	go sub.run()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
		}
		s.mu.Unlock()
		sub.stop()
	}
	return sub.out, cancel
}

// Close marks a sprint's stream terminal: live subscribers are drained and
// their channels closed, and future publishes fail. History remains
// available through History and LastSeq.
func (b *Bus) Close(sprintID string) {
	s := b.stream(sprintID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for id, sub := range s.subs {
		sub.close()
		delete(s.subs, id)
	}
}

// History returns a copy of every event published for the sprint so far.
func (b *Bus) History(sprintID string) []Event {
	s := b.stream(sprintID)
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Event, len(s.history))
	copy(out, s.history)
	return out
}

// LastSeq returns the sequence number of the most recently published event
// for the sprint, or zero if none has been published.
func (b *Bus) LastSeq(sprintID string) uint64 {
	s := b.stream(sprintID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// SubscriberCount returns the number of live subscribers for a sprint.
func (b *Bus) SubscriberCount(sprintID string) int {
	s := b.stream(sprintID)
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// subscriber buffers events between the publisher and one consumer so a slow
// consumer never blocks publishing or other subscribers, while still
// receiving every event exactly once and in order. close() lets the queue
// drain before the out channel closes; stop() abandons immediately, for
// consumers that canceled and may never read again.
type subscriber struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []Event
	closed   bool
	out      chan Event
	stopCh   chan struct{}
	stopOnce sync.Once
}

func newSubscriber() *subscriber {
	sub := &subscriber{
		out:    make(chan Event),
		stopCh: make(chan struct{}),
	}
	sub.cond = sync.NewCond(&sub.mu)
	return sub
}

func (s *subscriber) push(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.queue = append(s.queue, e)
	s.cond.Signal()
}

// close stops accepting events; queued events still drain to the consumer.
func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cond.Signal()
}

// stop abandons the subscriber without waiting for the consumer to drain.
func (s *subscriber) stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.close()
}

// run pumps queued events to the out channel, closing it once the
// subscriber is closed and the queue is drained, or as soon as the
// subscriber is stopped.
func (s *subscriber) run() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 && s.closed {
			s.mu.Unlock()
			close(s.out)
			return
		}
		e := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- e:
		case <-s.stopCh:
			close(s.out)
			return
		}
	}
}
