package agent

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hupe1980/trademesh/core"
	"github.com/hupe1980/trademesh/logging"
	"github.com/hupe1980/trademesh/negotiation"
	"github.com/hupe1980/trademesh/strategy"
)

// KindParticipant is the agent kind reported in run metadata.
const KindParticipant = "participant"

// TradePolicy selects which side of a trade a participant initiates.
type TradePolicy string

const (
	// PolicyBuyer opens buying dialogues only.
	PolicyBuyer TradePolicy = "buyer"
	// PolicySeller opens selling dialogues only.
	PolicySeller TradePolicy = "seller"
	// PolicyBoth alternates between buying and selling dialogues.
	PolicyBoth TradePolicy = "both"
)

// Config defines tuning parameters for a participant's behavior.
type Config struct {
	// TickInterval is the cadence of the participant's periodic work: inbox
	// drain, session expiry, request redelivery and opening a new dialogue.
	TickInterval time.Duration

	// SessionTimeout bounds the negotiation phase of each dialogue. Sessions
	// that have not matched by then are aborted locally.
	SessionTimeout time.Duration

	// ResubmitInterval is how long a matched session waits for a controller
	// verdict before its settlement request is sent again.
	ResubmitInterval time.Duration

	// MaxReactionsPerTick caps how many queued messages one tick drains, so
	// a flooded inbox cannot starve periodic work.
	MaxReactionsPerTick int

	// Policy selects which side of a trade this participant initiates.
	Policy TradePolicy
}

// DefaultConfig provides sensible defaults: half-second ticks, fifteen second
// negotiations and alternating buy/sell dialogues.
var DefaultConfig = Config{
	TickInterval:        500 * time.Millisecond,
	SessionTimeout:      15 * time.Second,
	ResubmitInterval:    5 * time.Second,
	MaxReactionsPerTick: 100,
	Policy:              PolicyBoth,
}

// Options configures a Participant instance using the functional options
// pattern.
type Options struct {
	// Config contains operational parameters. Defaults to DefaultConfig.
	Config Config

	// Logger provides structured logging. Defaults to NoOp if nil.
	Logger logging.Logger

	// Sessions stores the live negotiation sessions. Defaults to an
	// in-memory store.
	Sessions core.SessionStore

	// Clock overrides time.Now, letting tests drive deadlines
	// deterministically.
	Clock func() time.Time
}

// JoinInfo is the game data a participant receives when it is admitted to a
// run: its endowment, its private preferences, the peers it may trade with
// and the settlement endpoint.
type JoinInfo struct {
	Holdings     core.Holdings
	Params       core.UtilityParams
	Peers        []string
	ControllerID string
	Fee          decimal.Decimal
}

// pendingLock records what one live dialogue has promised, from this
// participant's receive-perspective. Locks are folded into the tradable view
// so parallel dialogues cannot promise the same unit or coin twice.
type pendingLock struct {
	goods core.GoodDeltas
	money decimal.Decimal
}

// pendingSubmission tracks a settlement request awaiting the controller's
// verdict, so confirmations can be routed back to their dialogue and stale
// requests can be redelivered.
type pendingSubmission struct {
	dialogueID string
	lastSubmit time.Time
}

// Participant is a trading agent. It opens one dialogue per tick according
// to its trade policy, answers counterparties through its strategy, and
// submits matched trades to the controller for settlement.
//
// Local State:
//   - holdings: the confirmed endowment, updated only by controller
//     confirmations
//   - locks: goods and money promised in live dialogues, keyed by dialogue
//     id; the tradable view is holdings plus all locks
//   - pendingTx: matched transactions awaiting a verdict
//
// Concurrency Model:
//   - Run drives everything on a single loop goroutine, so tick and message
//     handlers never race each other
//   - The participant mutex covers the accessors (Holdings, Params) that the
//     runner reads concurrently for reporting
type Participant struct {
	BaseAgent
	config   Config
	strategy strategy.Strategy
	sessions core.SessionStore
	logger   logging.Logger
	clock    func() time.Time

	mu           sync.Mutex
	joined       bool
	holdings     core.Holdings
	params       core.UtilityParams
	peers        []string
	controllerID string
	fee          decimal.Decimal
	locks        map[string]pendingLock
	pendingTx    map[string]*pendingSubmission
	nextPeer     int
	sellNext     bool
}

var _ core.Agent = (*Participant)(nil)

// NewParticipant creates a participant with the given identity and strategy.
func NewParticipant(id string, strat strategy.Strategy, optFns ...func(o *Options)) *Participant {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
		Clock:  time.Now,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Sessions == nil {
		opts.Sessions = negotiation.NewInMemoryStore()
	}

	return &Participant{
		BaseAgent: NewBaseAgent(id, KindParticipant),
		config:    opts.Config,
		strategy:  strat,
		sessions:  opts.Sessions,
		logger:    opts.Logger,
		clock:     opts.Clock,
		locks:     make(map[string]pendingLock),
		pendingTx: make(map[string]*pendingSubmission),
	}
}

// Join installs the game data for the upcoming run. It must be called before
// Start and errors while the participant is running. Joining again replaces
// the previous game data and clears all dialogue state.
func (p *Participant) Join(info JoinInfo) error {
	if p.Running() {
		return errors.New("cannot join while running")
	}
	if info.ControllerID == "" {
		return errors.New("join info names no controller")
	}

	peers := make([]string, 0, len(info.Peers))
	for _, peer := range info.Peers {
		if peer != "" && peer != p.ID() {
			peers = append(peers, peer)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.joined = true
	p.holdings = info.Holdings.Clone()
	p.params = info.Params.Clone()
	p.peers = peers
	p.controllerID = info.ControllerID
	p.fee = info.Fee
	p.locks = make(map[string]pendingLock)
	p.pendingTx = make(map[string]*pendingSubmission)
	p.nextPeer = 0
	p.sellNext = false

	return nil
}

// Start implements core.Agent. It refuses to start before Join installed the
// game data.
func (p *Participant) Start(actx *core.AgentContext) error {
	p.mu.Lock()
	joined := p.joined
	p.mu.Unlock()
	if !joined {
		return fmt.Errorf("participant %s has not joined a run", p.ID())
	}
	return p.BaseAgent.Start(actx)
}

// Run implements core.Agent. It drives the participant's loop until the run
// context ends or the router closes the inbox.
func (p *Participant) Run(actx *core.AgentContext) error {
	p.logger.Info("participant running",
		"agent_id", p.ID(),
		"run_id", actx.RunID,
		"policy", string(p.config.Policy),
	)

	return runLoop(actx, p.config.TickInterval,
		func() { p.tick(actx) },
		func(env core.Envelope) { p.react(actx, env) },
	)
}

// Holdings returns a copy of the confirmed holdings.
func (p *Participant) Holdings() core.Holdings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.holdings.Clone()
}

// Params returns a copy of the private utility parameters.
func (p *Participant) Params() core.UtilityParams {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.params.Clone()
}

// Joined reports whether game data has been installed.
func (p *Participant) Joined() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.joined
}

// LockedDialogues returns how many live dialogues currently hold a lock.
func (p *Participant) LockedDialogues() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.locks)
}

// available returns the tradable view: confirmed holdings with every lock
// applied. Each lock was validated against the view current when it was
// taken, so folding them in order cannot drive a quantity negative.
func (p *Participant) available() core.Holdings {
	p.mu.Lock()
	defer p.mu.Unlock()

	h := p.holdings.Clone()
	for _, lock := range p.locks {
		for good, delta := range lock.goods {
			h.Goods[good] += delta
		}
		h.Money = h.Money.Add(lock.money)
	}
	return h
}

// tick runs the periodic work: drain queued messages, abort expired
// sessions, redeliver unanswered settlement requests and open one new
// dialogue.
func (p *Participant) tick(actx *core.AgentContext) {
	drain(actx, p.config.MaxReactionsPerTick, func(env core.Envelope) { p.react(actx, env) })

	p.sweepExpired(actx)
	p.resubmitPending(actx)
	p.sendCFP(actx)
}

// sweepExpired aborts sessions past their negotiation deadline and releases
// whatever they had promised.
func (p *Participant) sweepExpired(actx *core.AgentContext) {
	now := p.clock()
	for _, s := range p.sessions.Active() {
		if !s.Expired(now) {
			continue
		}
		_ = s.Abort("negotiation deadline expired")
		p.releaseLock(s.ID)
		_ = p.sessions.Delete(s.ID)
		_ = actx.EmitEvent(core.NewSessionExpiredEvent(actx.RunID, p.ID(), s.ID))

		p.logger.Debug("session expired",
			"agent_id", p.ID(),
			"dialogue_id", s.ID,
			"counterparty", s.CounterpartyID,
		)
	}
}

// resubmitPending redelivers the settlement request of matched sessions that
// have waited past the resubmit interval. The controller discards duplicates
// of a still-pending request, so redelivery is harmless.
func (p *Participant) resubmitPending(actx *core.AgentContext) {
	now := p.clock()

	p.mu.Lock()
	stale := make(map[string]string, len(p.pendingTx))
	for txID, sub := range p.pendingTx {
		if now.Sub(sub.lastSubmit) >= p.config.ResubmitInterval {
			stale[txID] = sub.dialogueID
			sub.lastSubmit = now
		}
	}
	p.mu.Unlock()

	for txID, dialogueID := range stale {
		s, err := p.sessions.Get(dialogueID)
		if err != nil || s.State() != core.StateMatched {
			continue
		}
		req, ok := s.Request()
		if !ok {
			continue
		}
		p.logger.Debug("redelivering settlement request",
			"agent_id", p.ID(),
			"transaction_id", txID,
		)
		p.submit(actx, req)
	}
}

// sendCFP opens one new dialogue with the next peer in round-robin order,
// taking the side the trade policy selects.
func (p *Participant) sendCFP(actx *core.AgentContext) {
	peer, ok := p.pickPeer()
	if !ok {
		return
	}
	role := p.pickRole()
	goods := p.queryGoods(role)
	if len(goods) == 0 {
		return
	}

	dialogueID := core.NewID()
	cfp := core.CFP{
		ID:         core.NewID(),
		DialogueID: dialogueID,
		Sender:     p.ID(),
		Query:      core.Query{Role: role, Goods: goods},
	}

	s := core.NewNegotiationSession(dialogueID, p.ID(), peer, role, true, p.clock().Add(p.config.SessionTimeout))
	if err := s.SendCFP(cfp); err != nil {
		return
	}
	if err := p.sessions.Put(s); err != nil {
		p.logger.Warn("failed to store session", "agent_id", p.ID(), "error", err)
		return
	}
	if err := actx.Send(cfp, peer); err != nil {
		_ = s.Abort("cfp delivery failed")
		_ = p.sessions.Delete(dialogueID)
		p.logger.Debug("cfp not sent", "agent_id", p.ID(), "peer", peer, "error", err)
		return
	}
	_ = actx.EmitEvent(core.NewNegotiationStartedEvent(actx.RunID, p.ID(), dialogueID, peer))

	p.logger.Debug("cfp sent",
		"agent_id", p.ID(),
		"dialogue_id", dialogueID,
		"peer", peer,
		"role", string(role),
		"goods", len(goods),
	)
}

// react validates one inbound envelope and dispatches it to the handler for
// its message type. Stale and malformed traffic is discarded.
func (p *Participant) react(actx *core.AgentContext, env core.Envelope) {
	if err := env.Validate(); err != nil {
		p.logger.Debug("discarding malformed envelope", "agent_id", p.ID(), "error", err)
		return
	}

	switch msg := env.Message.(type) {
	case core.CFP:
		p.onCFP(actx, msg)
	case core.Proposal:
		p.onProposal(actx, msg)
	case core.Accept:
		p.onAccept(actx, msg)
	case core.MatchedAccept:
		p.onMatchedAccept(actx, msg)
	case core.TransactionConfirmation:
		p.onConfirmation(msg)
	case core.TransactionRejection:
		p.onRejection(msg)
	default:
		p.logger.Debug("discarding unexpected message",
			"agent_id", p.ID(),
			"from", env.From,
			"type", fmt.Sprintf("%T", env.Message),
		)
	}
}

// onCFP answers a counterparty's call for proposals. The responder takes the
// opposite side, asks its strategy for terms against the tradable view and,
// if the strategy bids, locks the promised goods and money until the
// dialogue resolves. A nil proposal declines silently.
func (p *Participant) onCFP(actx *core.AgentContext, cfp core.CFP) {
	if _, err := p.sessions.Get(cfp.DialogueID); err == nil {
		return // redelivered cfp for a live dialogue
	}

	role := cfp.Query.Role.Opposite()
	avail := p.available()
	if !cfp.Query.Matches(avail.Goods) {
		return
	}

	proposal, err := p.strategy.GenerateProposal(cfp, role, avail, p.Params())
	if err != nil {
		p.logger.Warn("strategy failed to answer cfp", "agent_id", p.ID(), "error", err)
		return
	}
	if proposal == nil {
		return
	}
	proposal.ID = core.NewID()
	proposal.CFPID = cfp.ID
	proposal.DialogueID = cfp.DialogueID
	proposal.Sender = p.ID()

	s := core.NewNegotiationSession(cfp.DialogueID, p.ID(), cfp.Sender, role, false, p.clock().Add(p.config.SessionTimeout))
	if err := s.Propose(cfp, *proposal); err != nil {
		p.logger.Debug("discarding cfp", "agent_id", p.ID(), "error", err)
		return
	}
	if err := p.sessions.Put(s); err != nil {
		p.logger.Warn("failed to store session", "agent_id", p.ID(), "error", err)
		return
	}

	p.takeLock(s.ID, *proposal, role, true)

	if err := actx.Send(*proposal, cfp.Sender); err != nil {
		p.releaseLock(s.ID)
		_ = s.Abort("proposal delivery failed")
		_ = p.sessions.Delete(s.ID)
		p.logger.Debug("proposal not sent", "agent_id", p.ID(), "error", err)
		return
	}
	_ = actx.EmitEvent(core.NewProposalMadeEvent(actx.RunID, p.ID(), *proposal))

	p.logger.Debug("proposal sent",
		"agent_id", p.ID(),
		"dialogue_id", s.ID,
		"price", proposal.Price.String(),
	)
}

// onProposal evaluates the counterparty's answer to our CFP. Accepting locks
// the implied goods and money and sends the acceptance; declining aborts the
// dialogue locally without a reply.
func (p *Participant) onProposal(actx *core.AgentContext, msg core.Proposal) {
	s, err := p.sessions.Get(msg.DialogueID)
	if err != nil {
		return
	}
	if err := s.HandleProposal(msg); err != nil {
		p.logger.Debug("discarding proposal", "agent_id", p.ID(), "error", err)
		return
	}

	ok, err := p.strategy.EvaluateProposal(msg, s.Role, p.available(), p.Params())
	if err != nil {
		p.logger.Warn("strategy failed to evaluate proposal", "agent_id", p.ID(), "error", err)
	}
	if err != nil || !ok {
		_ = s.Abort("proposal declined")
		_ = p.sessions.Delete(s.ID)
		return
	}

	if err := s.MarkAccepted(); err != nil {
		return
	}
	p.takeLock(s.ID, msg, s.Role, false)

	accept := core.Accept{ProposalID: msg.ID, DialogueID: s.ID, Sender: p.ID()}
	if err := actx.Send(accept, s.CounterpartyID); err != nil {
		p.releaseLock(s.ID)
		_ = s.Abort("accept delivery failed")
		_ = p.sessions.Delete(s.ID)
		p.logger.Debug("accept not sent", "agent_id", p.ID(), "error", err)
	}
}

// onAccept handles the initiator's acceptance of our proposal: the dialogue
// is matched, the matched accept echoes the derived transaction id back, and
// our half of the settlement request goes to the controller.
func (p *Participant) onAccept(actx *core.AgentContext, msg core.Accept) {
	s, err := p.sessions.Get(msg.DialogueID)
	if err != nil {
		return
	}
	if err := s.HandleAccept(msg); err != nil {
		p.logger.Debug("discarding accept", "agent_id", p.ID(), "error", err)
		return
	}

	req, err := s.Match()
	if err != nil {
		p.logger.Debug("discarding accept", "agent_id", p.ID(), "error", err)
		return
	}

	ma := core.MatchedAccept{
		ProposalID:    msg.ProposalID,
		DialogueID:    s.ID,
		Sender:        p.ID(),
		TransactionID: req.TransactionID,
	}
	if err := actx.Send(ma, s.CounterpartyID); err != nil {
		p.releaseLock(s.ID)
		_ = s.Abort("matched accept delivery failed")
		_ = p.sessions.Delete(s.ID)
		p.logger.Debug("matched accept not sent", "agent_id", p.ID(), "error", err)
		return
	}

	p.registerPending(req.TransactionID, s.ID)
	p.submit(actx, req)
	_ = actx.EmitEvent(core.NewDealMatchedEvent(actx.RunID, p.ID(), s.ID, req.TransactionID))

	p.logger.Info("deal matched",
		"agent_id", p.ID(),
		"dialogue_id", s.ID,
		"transaction_id", req.TransactionID,
	)
}

// onMatchedAccept closes the loop on the initiator side: both parties now
// agree on the transaction id, so our half of the settlement request goes to
// the controller.
func (p *Participant) onMatchedAccept(actx *core.AgentContext, msg core.MatchedAccept) {
	s, err := p.sessions.Get(msg.DialogueID)
	if err != nil {
		return
	}
	req, err := s.HandleMatchedAccept(msg)
	if err != nil {
		p.logger.Debug("discarding matched accept", "agent_id", p.ID(), "error", err)
		return
	}

	p.registerPending(req.TransactionID, s.ID)
	p.submit(actx, req)
	_ = actx.EmitEvent(core.NewDealMatchedEvent(actx.RunID, p.ID(), s.ID, req.TransactionID))

	p.logger.Info("deal matched",
		"agent_id", p.ID(),
		"dialogue_id", s.ID,
		"transaction_id", req.TransactionID,
	)
}

// onConfirmation applies a settled trade to the confirmed holdings and
// releases the dialogue's lock. Confirmation deltas are already from this
// party's perspective.
func (p *Participant) onConfirmation(msg core.TransactionConfirmation) {
	dialogueID, ok := p.takePending(msg.TransactionID)
	if !ok {
		return // redelivered verdict for a finished dialogue
	}

	s, err := p.sessions.Get(dialogueID)
	if err == nil {
		if err := s.HandleConfirmation(msg); err != nil {
			p.logger.Debug("discarding confirmation", "agent_id", p.ID(), "error", err)
			return
		}
	}

	p.mu.Lock()
	next, err := p.holdings.Apply(msg.GoodDeltas, msg.MoneyDelta)
	if err != nil {
		// The ledger is authoritative; a local mismatch means our view
		// drifted, so resync by force-applying the confirmed deltas.
		p.logger.Error("confirmed trade does not fit local holdings",
			"agent_id", p.ID(),
			"transaction_id", msg.TransactionID,
			"error", err,
		)
		for good, delta := range msg.GoodDeltas {
			p.holdings.Goods[good] += delta
		}
		p.holdings.Money = p.holdings.Money.Add(msg.MoneyDelta)
	} else {
		p.holdings = next
	}
	delete(p.locks, dialogueID)
	p.mu.Unlock()

	_ = p.sessions.Delete(dialogueID)

	p.logger.Info("trade settled",
		"agent_id", p.ID(),
		"transaction_id", msg.TransactionID,
		"money_delta", msg.MoneyDelta.String(),
	)
}

// onRejection releases the dialogue's lock after the controller refused the
// trade. Confirmed holdings are untouched.
func (p *Participant) onRejection(msg core.TransactionRejection) {
	dialogueID, ok := p.takePending(msg.TransactionID)
	if !ok {
		return
	}

	if s, err := p.sessions.Get(dialogueID); err == nil {
		if err := s.HandleRejection(msg); err != nil {
			p.logger.Debug("discarding rejection", "agent_id", p.ID(), "error", err)
		}
	}

	p.releaseLock(dialogueID)
	_ = p.sessions.Delete(dialogueID)

	p.logger.Info("trade rejected",
		"agent_id", p.ID(),
		"transaction_id", msg.TransactionID,
		"reason", msg.Reason.String(),
		"detail", msg.Detail,
	)
}

// submit sends a settlement request to the controller and stamps the
// submission time for redelivery bookkeeping.
func (p *Participant) submit(actx *core.AgentContext, req core.TransactionRequest) {
	p.mu.Lock()
	controllerID := p.controllerID
	if sub, ok := p.pendingTx[req.TransactionID]; ok {
		sub.lastSubmit = p.clock()
	}
	p.mu.Unlock()

	if err := actx.Send(req, controllerID); err != nil {
		p.logger.Warn("settlement request not sent",
			"agent_id", p.ID(),
			"transaction_id", req.TransactionID,
			"error", err,
		)
	}
}

// takeLock records the goods and money a dialogue has promised, converting
// the agreed proposal into this party's receive-perspective: the proposer
// negates the give-perspective deltas, and the buyer's money lock includes
// the settlement fee.
func (p *Participant) takeLock(dialogueID string, proposal core.Proposal, role core.Role, proposer bool) {
	goods := proposal.GoodDeltas.Clone()
	if proposer {
		goods = goods.Negate()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	money := proposal.Price
	if role == core.RoleBuyer {
		money = proposal.Price.Add(p.fee).Neg()
	}
	p.locks[dialogueID] = pendingLock{goods: goods, money: money}
}

func (p *Participant) releaseLock(dialogueID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.locks, dialogueID)
}

func (p *Participant) registerPending(transactionID, dialogueID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pendingTx[transactionID] = &pendingSubmission{
		dialogueID: dialogueID,
		lastSubmit: p.clock(),
	}
}

// takePending resolves a transaction id to its dialogue and removes the
// entry, so each verdict is consumed exactly once.
func (p *Participant) takePending(transactionID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sub, ok := p.pendingTx[transactionID]
	if !ok {
		return "", false
	}
	delete(p.pendingTx, transactionID)
	return sub.dialogueID, true
}

// pickPeer returns the next counterparty in round-robin order.
func (p *Participant) pickPeer() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.peers) == 0 {
		return "", false
	}
	peer := p.peers[p.nextPeer%len(p.peers)]
	p.nextPeer++
	return peer, true
}

// pickRole returns the side the next dialogue takes under the trade policy.
func (p *Participant) pickRole() core.Role {
	switch p.config.Policy {
	case PolicyBuyer:
		return core.RoleBuyer
	case PolicySeller:
		return core.RoleSeller
	default:
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.sellNext = !p.sellNext
	if p.sellNext {
		return core.RoleSeller
	}
	return core.RoleBuyer
}

// queryGoods names the goods the next CFP asks about. A buyer demands every
// good it has a taste for; a seller supplies the goods it can actually part
// with. Keys are sorted so queries are deterministic.
func (p *Participant) queryGoods(role core.Role) []string {
	if role == core.RoleBuyer {
		params := p.Params()
		goods := make([]string, 0, len(params))
		for good := range params {
			goods = append(goods, good)
		}
		sort.Strings(goods)
		return goods
	}

	avail := p.available()
	goods := make([]string, 0, len(avail.Goods))
	for good, qty := range avail.Goods {
		if qty >= 1 {
			goods = append(goods, good)
		}
	}
	sort.Strings(goods)
	return goods
}
