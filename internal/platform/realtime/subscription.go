package realtime

import (
	"sync"
)

// Subscription is a callback registered on a hub topic.
type Subscription struct {
	hub   *Hub
	topic string
	fn    func(Event)

	mu      sync.Mutex
	queue   []Event
	closed  bool
	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

func newSubscription(hub *Hub, topic string, fn func(Event)) *Subscription {
	return &Subscription{
		hub:     hub,
		topic:   topic,
		fn:      fn,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Topic returns the subscribed topic.
func (s *Subscription) Topic() string { return s.topic }

// enqueue never blocks the publisher; the queue is unbounded.
func (s *Subscription) enqueue(e Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, e)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) run() {
	defer close(s.stopped)
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		for {
			s.mu.Lock()
			if s.closed || len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			e := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			s.deliver(e)
		}
	}
}

func (s *Subscription) deliver(e Event) {
	defer func() {
		if r := recover(); r != nil {
			s.hub.logger.Error().Interface("panic", r).Str("topic", s.topic).Msg("subscription callback panicked")
		}
	}()
	s.fn(e)
}

// Close stops delivery and removes the subscription from its hub. Events
// still queued are discarded. Close is safe to call more than once and from
// inside the callback.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.unsubscribe(s)
		s.mu.Lock()
		s.closed = true
		s.queue = nil
		s.mu.Unlock()
		close(s.done)
	})
}

// Done is closed once the delivery goroutine has exited.
func (s *Subscription) Done() <-chan struct{} { return s.stopped }
