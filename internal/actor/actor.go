// Package actor implements the single-threaded cooperative scheduler
// (spec.md §4.1): a mailbox registry addressed by string, a message
// envelope, and a run loop that drains every actor's pending messages to
// completion before blocking. Grounded in spec.md §9 ("index-addressed
// actors in a registry owned by the scheduler; messages carry recipient
// addresses ... no direct handles, no cycles at the object level") and in
// the teacher's single job-channel-per-stage idiom
// (internal/tile.Generate), generalized here to one global ordered channel
// tagged by recipient.
package actor

import (
	"sync"

	"github.com/rs/zerolog"
)

// Message is one envelope in transit between two actors (or a pool
// completion callback and an actor). Kind is handler-specific; Args is
// interpreted by the receiving Actor's Receive method.
type Message struct {
	To   string
	Kind string
	Args []any
}

// Actor is anything addressable in the scheduler's registry. Receive must
// never block, perform I/O, or heavy compute (spec.md §4.1): it applies one
// message to private state and returns the messages that follow from it.
type Actor interface {
	Address() string
	Receive(kind string, args []any) []Message
}

// Scheduler runs every registered Actor's handlers on one dedicated
// goroutine, draining messages in FIFO order and blocking on an empty
// mailbox until fed by a pool completion or a user enqueue.
type Scheduler struct {
	log zerolog.Logger

	mu      sync.Mutex
	actors  map[string]Actor
	inbox   []Message
	wake    chan struct{}
	dead    map[string]bool
	closing bool
	closed  chan struct{}
}

// New creates a Scheduler. It does not start running until Run is called.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		log:    log.With().Str("component", "scheduler").Logger(),
		actors: make(map[string]Actor),
		dead:   make(map[string]bool),
		wake:   make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

// Register adds an actor to the registry under its own address. Must be
// called before Run starts consuming messages addressed to it.
func (s *Scheduler) Register(a Actor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actors[a.Address()] = a
}

// Send enqueues a message from outside the scheduler loop (a user API call
// or a pool completion callback). Safe for concurrent use.
func (s *Scheduler) Send(msg Message) {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return
	}
	s.inbox = append(s.inbox, msg)
	s.mu.Unlock()
	s.poke()
}

func (s *Scheduler) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// shutdownKind is a control message handled by the Run loop itself rather
// than dispatched to an actor, so teardown happens on the same goroutine
// as every other handler — Close() never calls Receive directly, which
// would race with Run's own dispatch.
const shutdownKind = "__shutdown__"

// Run drains the mailbox until Close is called. Intended to run on its own
// goroutine for the scheduler's whole lifetime.
func (s *Scheduler) Run() {
	for {
		msg, ok := s.dequeue()
		if !ok {
			select {
			case <-s.wake:
				continue
			case <-s.closed:
				return
			}
		}
		if msg.Kind == shutdownKind {
			s.shutdown()
			return
		}
		s.deliver(msg)
	}
}

func (s *Scheduler) shutdown() {
	s.mu.Lock()
	addrs := make([]string, 0, len(s.actors))
	for addr := range s.actors {
		addrs = append(addrs, addr)
	}
	s.mu.Unlock()

	for _, addr := range addrs {
		s.deliver(Message{To: addr, Kind: "die"})
		s.mu.Lock()
		s.dead[addr] = true
		s.mu.Unlock()
	}
	close(s.closed)
}

func (s *Scheduler) dequeue() (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.inbox) == 0 {
		return Message{}, false
	}
	msg := s.inbox[0]
	s.inbox = s.inbox[1:]
	return msg, true
}

func (s *Scheduler) deliver(msg Message) {
	s.mu.Lock()
	if s.dead[msg.To] {
		s.mu.Unlock()
		return
	}
	a, ok := s.actors[msg.To]
	s.mu.Unlock()
	if !ok {
		s.log.Warn().Str("to", msg.To).Str("kind", msg.Kind).Msg("message to unknown actor dropped")
		return
	}

	s.log.Debug().Str("to", msg.To).Str("kind", msg.Kind).Msg("dispatch")
	follow := a.Receive(msg.Kind, msg.Args)
	if len(follow) == 0 {
		return
	}
	s.mu.Lock()
	s.inbox = append(s.inbox, follow...)
	s.mu.Unlock()
}

// Close broadcasts `die` to every registered actor, via the normal mailbox
// so teardown runs on the scheduler goroutine, and blocks until the run
// loop has exited. Idempotent.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return
	}
	s.closing = true
	s.inbox = append(s.inbox, Message{Kind: shutdownKind})
	s.mu.Unlock()
	s.poke()
	<-s.closed
}
