package events

import (
	"log"
	"sync"
)

// EntityType identifies which ledger table an event refers to
type EntityType string

const (
	EntityLoan   EntityType = "loan"
	EntitySaving EntityType = "saving"
	EntityMember EntityType = "member"
	EntityFine   EntityType = "fine"
)

// Operation identifies what happened to the entity
type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
)

// Event is an entity-change notification published by the ledger side
// after a commit. Delivery is at-least-once; consumers must tolerate
// duplicates. Only identifiers travel on the bus, consumers re-read
// fresh state from the store.
type Event struct {
	Type     EntityType
	Op       Operation
	EntityID uint
	MemberID uint
}

// Subscription is a live feed of ledger events. Cancel unsubscribes and
// closes the channel; it is safe to call more than once.
type Subscription struct {
	C      <-chan Event
	cancel func()
}

// Cancel detaches the subscription from the bus
func (s *Subscription) Cancel() {
	s.cancel()
}

// subscriber queues published events and pumps them onto its delivery
// channel in publish order. The queue grows while the consumer is
// behind, so a committed event is never lost short of cancellation.
type subscriber struct {
	mu      sync.Mutex
	backlog []Event

	wake chan struct{}
	done chan struct{}
	stop sync.Once
	ch   chan Event
}

func (s *subscriber) enqueue(ev Event) int {
	s.mu.Lock()
	s.backlog = append(s.backlog, ev)
	depth := len(s.backlog)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return depth
}

func (s *subscriber) next() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.backlog) == 0 {
		return Event{}, false
	}
	ev := s.backlog[0]
	s.backlog = s.backlog[1:]
	return ev, true
}

func (s *subscriber) pump() {
	defer close(s.ch)
	for {
		select {
		case <-s.wake:
		case <-s.done:
			return
		}
		for {
			ev, ok := s.next()
			if !ok {
				break
			}
			select {
			case s.ch <- ev:
			case <-s.done:
				return
			}
		}
	}
}

func (s *subscriber) detach() {
	s.stop.Do(func() {
		close(s.done)
	})
}

// Bus is an in-process publish/subscribe fan-out for ledger change
// events. Publish never blocks the committing path and never drops:
// events a slow consumer has not drained yet queue up until delivered
// or the subscription is cancelled.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*subscriber
	buffer int
}

// NewBus creates a bus whose subscriber channels hold up to buffer
// undelivered events before further publishes queue behind them
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{
		subs:   make(map[int]*subscriber),
		buffer: buffer,
	}
}

// Subscribe registers a new consumer feed
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	sub := &subscriber{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		ch:   make(chan Event, b.buffer),
	}
	b.subs[id] = sub
	go sub.pump()

	cancel := func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
		sub.detach()
	}

	return &Subscription{C: sub.ch, cancel: cancel}
}

// Publish fans the event out to all current subscribers
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subs {
		if depth := sub.enqueue(ev); depth == b.buffer {
			log.Printf("⚠️ event bus: subscriber %d is %d events behind", id, depth)
		}
	}
}

// Close detaches all subscribers
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subs {
		delete(b.subs, id)
		sub.detach()
	}
}
