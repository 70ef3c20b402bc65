package client

import "sync"

// broker fans events out to subscribers. Each subscriber has its own
// unbounded FIFO mailbox drained by a pump goroutine, so publish never
// blocks on a slow consumer and per-subscriber order is the publish order.
type broker struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

func newBroker() *broker {
	return &broker{subs: make(map[*Subscription]struct{})}
}

// Subscription receives events until Unsubscribe is called.
type Subscription struct {
	b  *broker
	ch chan Event

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Event
	stopped bool

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func (b *broker) subscribe() *Subscription {
	s := &Subscription{
		b:    b,
		ch:   make(chan Event),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(s.ch)
		close(s.done)
		s.once.Do(func() { close(s.stop) })
		return s
	}
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go s.pump()
	return s
}

func (b *broker) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs {
		s.enqueue(ev)
	}
}

// close ends every subscription. Pending events are dropped.
func (b *broker) close() {
	b.mu.Lock()
	b.closed = true
	subs := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
}

// Events returns the delivery channel. It is closed after Unsubscribe.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Unsubscribe stops delivery. When it returns the pump has exited and
// the channel is closed; no event is delivered afterwards.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.b.mu.Lock()
		delete(s.b.subs, s)
		s.b.mu.Unlock()

		s.mu.Lock()
		s.stopped = true
		s.queue = nil
		s.cond.Broadcast()
		s.mu.Unlock()
		close(s.stop)
	})
	<-s.done
}

func (s *Subscription) enqueue(ev Event) {
	s.mu.Lock()
	if !s.stopped {
		s.queue = append(s.queue, ev)
		s.cond.Signal()
	}
	s.mu.Unlock()
}

func (s *Subscription) pump() {
	defer close(s.done)
	defer close(s.ch)

	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.stopped {
			s.cond.Wait()
		}
		if s.stopped {
			s.mu.Unlock()
			return
		}
		ev := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.ch <- ev:
		case <-s.stop:
			return
		}
	}
}
