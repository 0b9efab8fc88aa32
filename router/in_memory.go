package router

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/trademesh/core"
	"github.com/hupe1980/trademesh/logging"
)

// DefaultConfig provides sensible defaults for the in-memory router.
var DefaultConfig = Config{
	MailboxBuffer: 64,
}

// Config holds the tunable settings of the in-memory router.
type Config struct {
	// MailboxBuffer is the capacity of each endpoint's mailbox channel.
	MailboxBuffer int

	// DuplicateEvery, when > 0, delivers every Nth envelope twice. The
	// router's contract is at-least-once; this knob lets tests exercise the
	// duplicate tolerance of the protocol without a flaky network.
	DuplicateEvery int
}

// Options aggregates construction settings.
type Options struct {
	Config Config
	Logger logging.Logger
}

// InMemoryRouter is an in-process core.Router implementation. Each
// subscribed endpoint owns one buffered mailbox channel; Send blocks until
// the recipient's mailbox accepts the envelope or the context ends, which
// preserves FIFO order per sender.
//
// Deliveries run under a read lock and Close takes the write lock, so a
// mailbox is never closed mid-send. Close therefore waits for in-flight
// sends; callers cancel the run context first, which unblocks them.
type InMemoryRouter struct {
	config    Config
	logger    logging.Logger
	mu        sync.RWMutex
	mailboxes map[string]chan core.Envelope
	closed    bool
	countMu   sync.Mutex
	sent      int
}

// NewInMemoryRouter constructs an in-memory router.
func NewInMemoryRouter(optFns ...func(o *Options)) *InMemoryRouter {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Config.MailboxBuffer <= 0 {
		opts.Config.MailboxBuffer = DefaultConfig.MailboxBuffer
	}

	return &InMemoryRouter{
		config:    opts.Config,
		logger:    opts.Logger,
		mailboxes: make(map[string]chan core.Envelope),
	}
}

// Subscribe registers an endpoint and returns its mailbox.
func (r *InMemoryRouter) Subscribe(endpointID string) (<-chan core.Envelope, error) {
	if endpointID == "" {
		return nil, fmt.Errorf("endpoint id must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	if _, ok := r.mailboxes[endpointID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadySubscribed, endpointID)
	}

	ch := make(chan core.Envelope, r.config.MailboxBuffer)
	r.mailboxes[endpointID] = ch

	return ch, nil
}

// Send validates the envelope at the boundary and delivers it to the
// recipient's mailbox, blocking until accepted or ctx is done.
func (r *InMemoryRouter) Send(ctx context.Context, env core.Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return ErrClosed
	}
	ch, ok := r.mailboxes[env.To]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRecipient, env.To)
	}

	copies := 1
	if r.duplicateThisSend() {
		copies = 2
	}
	for i := 0; i < copies; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ch <- env:
		}
	}

	r.logger.Debug("envelope delivered", "from", env.From, "to", env.To, "type", fmt.Sprintf("%T", env.Message))

	return nil
}

// Close shuts the router down and closes every mailbox. Subsequent sends
// and subscribes fail with ErrClosed.
func (r *InMemoryRouter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	for _, ch := range r.mailboxes {
		close(ch)
	}
}

// Sent returns the number of accepted envelopes, duplicates not counted.
func (r *InMemoryRouter) Sent() int {
	r.countMu.Lock()
	defer r.countMu.Unlock()

	return r.sent
}

func (r *InMemoryRouter) duplicateThisSend() bool {
	r.countMu.Lock()
	defer r.countMu.Unlock()

	r.sent++

	return r.config.DuplicateEvery > 0 && r.sent%r.config.DuplicateEvery == 0
}
