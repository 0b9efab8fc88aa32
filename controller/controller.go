package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hupe1980/trademesh/core"
	"github.com/hupe1980/trademesh/logging"
)

// DefaultEndpointID is the router address the controller listens on unless
// configured otherwise.
const DefaultEndpointID = "controller"

// Config defines tuning parameters for the controller's behavior.
type Config struct {
	// EndpointID is the router address settlement requests are sent to.
	EndpointID string

	// Fee is charged to the buyer on top of the amount for every committed
	// transaction.
	Fee decimal.Decimal

	// PendingTimeout is how long a lone request may wait for its
	// counterpart before the janitor rejects it with ReasonTimeout.
	PendingTimeout time.Duration

	// SweepInterval is the janitor's cadence.
	SweepInterval time.Duration
}

// DefaultConfig provides sensible defaults: no fee, a thirty second pending
// window swept once a second.
var DefaultConfig = Config{
	EndpointID:     DefaultEndpointID,
	Fee:            decimal.Zero,
	PendingTimeout: 30 * time.Second,
	SweepInterval:  time.Second,
}

// Options configures a Controller instance using the functional options
// pattern.
type Options struct {
	// Config contains operational parameters. Defaults to DefaultConfig.
	Config Config

	// Logger provides structured logging. Defaults to NoOp if nil.
	Logger logging.Logger

	// Clock overrides time.Now, letting tests drive the pending timeout
	// deterministically.
	Clock func() time.Time
}

// Status reports the immediate result of a Submit call.
type Status string

const (
	// StatusPending: the request was recorded and awaits its counterpart.
	StatusPending Status = "pending"
	// StatusCommitted: the pair matched, the ledger was updated and both
	// parties were sent confirmations (or, for a redelivered request, the
	// stored confirmation was resent).
	StatusCommitted Status = "committed"
	// StatusRejected: the pair failed validation; both submitters were sent
	// rejections and the transaction is finished.
	StatusRejected Status = "rejected"
	// StatusDuplicate: a stale duplicate of a still-pending request, or a
	// submission by a non-party; discarded without effect.
	StatusDuplicate Status = "duplicate"
)

// Outcome is Submit's verdict. Reason is set when Status is StatusRejected.
type Outcome struct {
	Status Status
	Reason core.RejectionReason
}

// pendingEntry tracks one transaction id awaiting its request pair. The
// entry mutex serializes everything that happens to a single transaction
// (pairing, validation, commit, purge) without blocking other transactions.
type pendingEntry struct {
	mu        sync.Mutex
	requests  map[string]core.TransactionRequest // keyed by sender id
	firstSeen time.Time
	resolved  bool
}

// Controller matches settlement requests and commits them to the ledger.
//
// Core Responsibilities:
//   - Matching: pool requests by transaction id until both parties arrive
//   - Validation: structural agreement (exact delta negation, equal
//     amounts, same parties) then solvency via the ledger's atomic apply
//   - Exactly-once commit: a transaction id settles at most once; repeated
//     requests after commit idempotently redeliver the stored confirmation
//   - Timeout hygiene: lone requests past PendingTimeout are rejected back
//     to their submitter and purged
//
// Concurrency Model:
//   - A coarse map mutex guards the pending pool and the settled index
//   - A per-entry mutex serializes the full lifecycle of one transaction,
//     so concurrent submissions for different ids proceed independently
//   - The resolved flag plus a retry loop in Submit close the gap between
//     releasing the map mutex and acquiring the entry mutex
//
// Notifications are best-effort: the ledger and journal are authoritative,
// and a failed delivery is logged, not retried. The router's at-least-once
// contract combined with idempotent redelivery covers the gap.
type Controller struct {
	config  Config
	ledger  core.Ledger
	journal core.Journal
	router  core.Router
	logger  logging.Logger
	clock   func() time.Time

	mu      sync.Mutex
	pending map[string]*pendingEntry
	settled map[string]map[string]core.TransactionConfirmation // txid -> party -> confirmation

	runMu   sync.Mutex
	running bool
	runID   string
	emit    chan<- core.Event
	runCtx  context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a Controller bound to the given ledger, journal and router.
func New(ledger core.Ledger, journal core.Journal, router core.Router, optFns ...func(o *Options)) *Controller {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
		Clock:  time.Now,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Config.EndpointID == "" {
		opts.Config.EndpointID = DefaultEndpointID
	}
	if opts.Config.PendingTimeout <= 0 {
		opts.Config.PendingTimeout = DefaultConfig.PendingTimeout
	}
	if opts.Config.SweepInterval <= 0 {
		opts.Config.SweepInterval = DefaultConfig.SweepInterval
	}

	return &Controller{
		config:  opts.Config,
		ledger:  ledger,
		journal: journal,
		router:  router,
		logger:  opts.Logger,
		clock:   opts.Clock,
		pending: make(map[string]*pendingEntry),
		settled: make(map[string]map[string]core.TransactionConfirmation),
	}
}

// EndpointID returns the router address the controller listens on.
func (c *Controller) EndpointID() string { return c.config.EndpointID }

// Start subscribes the controller to its endpoint and launches the message
// pump and the janitor. Events are emitted to emit (may be nil) under the
// given run id. Stop (or ctx cancellation) shuts both loops down.
func (c *Controller) Start(ctx context.Context, runID string, emit chan<- core.Event) error {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if c.running {
		return fmt.Errorf("controller already started")
	}

	inbox, err := c.router.Subscribe(c.config.EndpointID)
	if err != nil {
		return fmt.Errorf("subscribe controller endpoint: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.running = true
	c.runID = runID
	c.emit = emit
	c.runCtx = runCtx
	c.cancel = cancel

	c.wg.Add(2)
	go c.pump(runCtx, inbox)
	go c.janitor(runCtx)

	return nil
}

// Stop cancels the pump and janitor and waits for them to exit. Safe to
// call once after Start; a never-started controller is a no-op.
func (c *Controller) Stop() {
	c.runMu.Lock()
	cancel := c.cancel
	c.runMu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
}

// Submit processes one settlement request and returns the immediate
// outcome. It is the synchronous core of the controller; the pump calls it
// for every request arriving over the router, and tests may call it
// directly. Confirmations and rejections are delivered as a side effect.
//
// The returned error is non-nil only for malformed requests; every
// well-formed request maps to an Outcome.
func (c *Controller) Submit(req core.TransactionRequest) (Outcome, error) {
	if err := req.Validate(); err != nil {
		return Outcome{}, err
	}

	for {
		c.mu.Lock()
		if confs, ok := c.settled[req.TransactionID]; ok {
			conf, party := confs[req.SenderID]
			c.mu.Unlock()
			if !party {
				return Outcome{Status: StatusDuplicate}, nil
			}
			// redelivered request after commit: resend the stored verdict
			c.notify(req.SenderID, conf)
			c.logger.Debug("confirmation redelivered", "transaction_id", req.TransactionID, "to", req.SenderID)
			return Outcome{Status: StatusCommitted}, nil
		}

		entry, ok := c.pending[req.TransactionID]
		if !ok {
			entry = &pendingEntry{
				requests:  make(map[string]core.TransactionRequest, 2),
				firstSeen: c.clock(),
			}
			c.pending[req.TransactionID] = entry
		}
		c.mu.Unlock()

		entry.mu.Lock()
		if entry.resolved {
			// lost a race with a commit or purge; re-read the maps
			entry.mu.Unlock()
			continue
		}

		if _, dup := entry.requests[req.SenderID]; dup {
			entry.mu.Unlock()
			c.logger.Debug("stale duplicate discarded", "transaction_id", req.TransactionID, "from", req.SenderID)
			return Outcome{Status: StatusDuplicate}, nil
		}

		entry.requests[req.SenderID] = req
		if len(entry.requests) < 2 {
			entry.mu.Unlock()
			c.logger.Debug("request pending", "transaction_id", req.TransactionID, "from", req.SenderID)
			return Outcome{Status: StatusPending}, nil
		}

		outcome := c.resolve(req.TransactionID, entry, req)
		entry.mu.Unlock()

		return outcome, nil
	}
}

// PendingCount returns the number of transactions awaiting a counterpart.
func (c *Controller) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.pending)
}

// PurgeExpired rejects and removes every lone request older than
// PendingTimeout, returning how many were purged. The janitor calls it on
// every sweep; tests may call it directly with a fake clock.
func (c *Controller) PurgeExpired() int {
	now := c.clock()

	c.mu.Lock()
	candidates := make(map[string]*pendingEntry, len(c.pending))
	for id, entry := range c.pending {
		candidates[id] = entry
	}
	c.mu.Unlock()

	purged := 0
	for id, entry := range candidates {
		entry.mu.Lock()
		expired := !entry.resolved && len(entry.requests) == 1 && now.Sub(entry.firstSeen) >= c.config.PendingTimeout
		var lone core.TransactionRequest
		if expired {
			entry.resolved = true
			for _, r := range entry.requests {
				lone = r
			}
		}
		entry.mu.Unlock()

		if !expired {
			continue
		}

		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()

		// timeout rejections go only to the party that actually submitted
		c.notify(lone.SenderID, core.TransactionRejection{
			TransactionID: id,
			Reason:        core.ReasonTimeout,
			Detail:        "counterpart request never arrived",
		})
		c.emitEvent(core.NewTransactionRejectedEvent(c.currentRunID(), c.config.EndpointID, id, core.ReasonTimeout))
		c.logger.Info("pending transaction purged", "transaction_id", id, "submitter", lone.SenderID)
		purged++
	}

	return purged
}

// resolve validates a completed pair and either commits it to the ledger or
// rejects both submitters. Caller holds the entry mutex.
func (c *Controller) resolve(txID string, entry *pendingEntry, last core.TransactionRequest) Outcome {
	var first core.TransactionRequest
	for sender, r := range entry.requests {
		if sender != last.SenderID {
			first = r
		}
	}

	if reason, detail, ok := matchRequests(first, last); !ok {
		entry.resolved = true
		c.finishRejected(txID, entry, reason, detail)
		return Outcome{Status: StatusRejected, Reason: reason}
	}

	// the buyer's own request carries the buyer-perspective deltas
	buyerReq := first
	if last.SenderID == last.BuyerID {
		buyerReq = last
	}

	transfer := core.Transfer{
		TransactionID: txID,
		BuyerID:       buyerReq.BuyerID,
		SellerID:      buyerReq.SellerID,
		BuyerDeltas:   buyerReq.GoodDeltas.Clone(),
		Amount:        buyerReq.Amount,
		Fee:           c.config.Fee,
	}

	if err := c.ledger.Apply(transfer); err != nil {
		reason := reasonFromError(err)
		entry.resolved = true
		c.finishRejected(txID, entry, reason, err.Error())
		c.logger.Info("transaction rejected", "transaction_id", txID, "reason", reason.String(), "error", err)
		return Outcome{Status: StatusRejected, Reason: reason}
	}

	rec := core.SettlementRecord{
		TransactionID: txID,
		BuyerID:       transfer.BuyerID,
		SellerID:      transfer.SellerID,
		GoodDeltas:    transfer.BuyerDeltas.Clone(),
		Amount:        transfer.Amount,
		Fee:           transfer.Fee,
		Timestamp:     c.clock().UTC(),
	}
	if err := c.journal.Append(rec); err != nil {
		c.logger.Error("journal append failed", "transaction_id", txID, "error", err)
	}
	c.snapshotParty(transfer.BuyerID)
	c.snapshotParty(transfer.SellerID)

	confirmations := map[string]core.TransactionConfirmation{
		transfer.BuyerID: {
			TransactionID: txID,
			GoodDeltas:    transfer.BuyerDeltas.Clone(),
			MoneyDelta:    transfer.BuyerMoneyDelta(),
		},
		transfer.SellerID: {
			TransactionID: txID,
			GoodDeltas:    transfer.BuyerDeltas.Negate(),
			MoneyDelta:    transfer.SellerMoneyDelta(),
		},
	}

	entry.resolved = true

	c.mu.Lock()
	c.settled[txID] = confirmations
	delete(c.pending, txID)
	c.mu.Unlock()

	for party, conf := range confirmations {
		c.notify(party, conf)
	}
	c.emitEvent(core.NewTransactionSettledEvent(c.currentRunID(), c.config.EndpointID, rec))
	c.logger.Info("transaction settled",
		"transaction_id", txID,
		"buyer", transfer.BuyerID,
		"seller", transfer.SellerID,
		"amount", transfer.Amount.String(),
	)

	return Outcome{Status: StatusCommitted}
}

// finishRejected removes the entry and notifies every submitter. Caller
// holds the entry mutex and has set resolved.
func (c *Controller) finishRejected(txID string, entry *pendingEntry, reason core.RejectionReason, detail string) {
	c.mu.Lock()
	delete(c.pending, txID)
	c.mu.Unlock()

	for sender := range entry.requests {
		c.notify(sender, core.TransactionRejection{
			TransactionID: txID,
			Reason:        reason,
			Detail:        detail,
		})
	}
	c.emitEvent(core.NewTransactionRejectedEvent(c.currentRunID(), c.config.EndpointID, txID, reason))
}

// pump drains the controller's mailbox, feeding settlement requests into
// Submit and discarding everything else.
func (c *Controller) pump(ctx context.Context, inbox <-chan core.Envelope) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-inbox:
			if !ok {
				return
			}
			req, isReq := env.Message.(core.TransactionRequest)
			if !isReq {
				c.logger.Warn("unexpected message discarded", "from", env.From, "type", fmt.Sprintf("%T", env.Message))
				continue
			}
			if env.From != req.SenderID {
				c.logger.Warn("sender mismatch discarded", "envelope_from", env.From, "request_sender", req.SenderID)
				continue
			}
			if _, err := c.Submit(req); err != nil {
				c.logger.Warn("malformed request discarded", "from", env.From, "error", err)
			}
		}
	}
}

// janitor periodically purges expired lone requests.
func (c *Controller) janitor(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.PurgeExpired()
		}
	}
}

// notify delivers a verdict message to one party, logging failures rather
// than propagating them.
func (c *Controller) notify(to string, msg core.Message) {
	ctx := c.notifyContext()
	env := core.NewEnvelope(c.config.EndpointID, to, msg)
	if err := c.router.Send(ctx, env); err != nil {
		c.logger.Warn("verdict delivery failed", "to", to, "error", err)
	}
}

func (c *Controller) notifyContext() context.Context {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	if c.runCtx != nil {
		return c.runCtx
	}
	return context.Background()
}

func (c *Controller) currentRunID() string {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	return c.runID
}

func (c *Controller) emitEvent(ev core.Event) {
	c.runMu.Lock()
	emit := c.emit
	ctx := c.runCtx
	c.runMu.Unlock()

	if emit == nil {
		return
	}
	if ctx == nil {
		emit <- ev
		return
	}
	select {
	case <-ctx.Done():
	case emit <- ev:
	}
}

// snapshotParty records a post-settlement holdings snapshot in the journal.
func (c *Controller) snapshotParty(agentID string) {
	h, err := c.ledger.Snapshot(agentID)
	if err != nil {
		c.logger.Error("ledger snapshot failed", "agent", agentID, "error", err)
		return
	}
	if _, err := c.journal.SaveSnapshot(agentID, h); err != nil {
		c.logger.Error("journal snapshot failed", "agent", agentID, "error", err)
	}
}

// matchRequests checks structural agreement between the two submitted
// requests.
func matchRequests(a, b core.TransactionRequest) (core.RejectionReason, string, bool) {
	if a.BuyerID != b.BuyerID || a.SellerID != b.SellerID {
		return core.ReasonProtocolMismatch, "parties disagree", false
	}
	if !a.GoodDeltas.MirrorOf(b.GoodDeltas) {
		return core.ReasonProtocolMismatch, "good deltas are not exact negations", false
	}
	if !a.Amount.Equal(b.Amount) {
		return core.ReasonProtocolMismatch, "amounts differ", false
	}
	return "", "", true
}

// reasonFromError maps ledger errors to wire rejection reasons.
func reasonFromError(err error) core.RejectionReason {
	switch {
	case errors.Is(err, core.ErrInsufficientFunds):
		return core.ReasonInsufficientFunds
	case errors.Is(err, core.ErrInsufficientGoods):
		return core.ReasonInsufficientGoods
	default:
		return core.ReasonProtocolMismatch
	}
}
