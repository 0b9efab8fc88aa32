package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/trademesh/agent"
	"github.com/hupe1980/trademesh/core"
	"github.com/hupe1980/trademesh/game"
	"github.com/hupe1980/trademesh/internal/testutil"
	"github.com/hupe1980/trademesh/runner"
	"github.com/hupe1980/trademesh/strategy"
)

func newTrader(id string) *agent.Participant {
	return agent.NewParticipant(id, strategy.NewLogUtilityStrategy(), func(o *agent.Options) {
		o.Config.TickInterval = 5 * time.Millisecond
		o.Config.ResubmitInterval = 50 * time.Millisecond
	})
}

func newTestEngine(window time.Duration, optFns ...func(o *Options)) *Engine {
	fns := append([]func(o *Options){func(o *Options) {
		o.Config.Runner.TradeWindow = window
	}}, optFns...)

	e := New(fns...)
	e.Register(newTrader("alice"))
	e.Register(newTrader("bob"))

	return e
}

// guaranteedTradeSetup hands each trader the good the other values most, so
// at least one settlement is certain within a few ticks.
func guaranteedTradeSetup() *game.Setup {
	return testutil.NewSetupBuilder().
		Goods("good1", "good2").
		Agent("alice", core.Basket{"good1": 2}, 100, core.UtilityParams{"good1": 20, "good2": 80}).
		Agent("bob", core.Basket{"good2": 2}, 100, core.UtilityParams{"good1": 80, "good2": 20}).
		Build()
}

func drainRun(t *testing.T, events <-chan core.Event, errs <-chan error) ([]core.Event, error) {
	t.Helper()

	var (
		collected []core.Event
		runErr    error
	)

	watchdog := time.After(10 * time.Second)
	for events != nil || errs != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			collected = append(collected, ev)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if runErr == nil {
				runErr = err
			}
		case <-watchdog:
			t.Fatal("run did not finish in time")
		}
	}

	return collected, runErr
}

func TestEngineRegisterAndGetAgent(t *testing.T) {
	e := New()

	_, ok := e.GetAgent("alice")
	assert.False(t, ok)

	first := newTrader("alice")
	e.Register(first)

	got, ok := e.GetAgent("alice")
	require.True(t, ok)
	assert.Same(t, first, got)

	// re-registration replaces
	second := newTrader("alice")
	e.Register(second)

	got, ok = e.GetAgent("alice")
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestEngineLaunchRejectsInvalidConfiguration(t *testing.T) {
	e := New()

	_, _, _, err := e.Launch(context.Background(), game.Configuration{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generate setup")
}

func TestEngineLaunchRequiresRegisteredAgents(t *testing.T) {
	e := New()
	e.Register(newTrader("alice"))

	config := game.DefaultConfiguration([]string{"alice", "bob"}, []string{"good1"})

	_, _, _, err := e.Launch(context.Background(), config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent bob is not registered")
}

func TestEngineRunsCompetition(t *testing.T) {
	e := newTestEngine(600 * time.Millisecond)

	config := game.DefaultConfiguration([]string{"alice", "bob"}, []string{"good1", "good2"})

	runID, events, errs, err := e.Launch(context.Background(), config)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	collected, runErr := drainRun(t, events, errs)
	require.NoError(t, runErr)
	require.NotEmpty(t, collected)
	assert.Equal(t, core.EventRunCompleted, collected[len(collected)-1].Type)

	report, ok := e.Report(runID)
	require.True(t, ok)
	assert.Equal(t, runID, report.RunID)
	require.Len(t, report.FinalHoldings, 2)

	// the drawn endowment is 200 money per agent; trades conserve it
	totalMoney := decimal.Zero
	for _, h := range report.FinalHoldings {
		totalMoney = totalMoney.Add(h.Money)
	}
	assert.True(t, totalMoney.Equal(decimal.NewFromInt(400)), "money not conserved: %s", totalMoney)

	assert.Error(t, e.StopRun(runID), "a completed run is no longer stoppable")
}

func TestEngineConcurrentRunLimit(t *testing.T) {
	e := newTestEngine(10*time.Second, func(o *Options) {
		o.Config.MaxConcurrentRuns = 1
	})

	config := game.DefaultConfiguration([]string{"alice", "bob"}, []string{"good1"})

	runID, events, errs, err := e.Launch(context.Background(), config)
	require.NoError(t, err)

	_, _, _, err = e.Launch(context.Background(), config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "concurrent run limit")

	require.NoError(t, e.StopRun(runID))
	_, runErr := drainRun(t, events, errs)
	assert.NoError(t, runErr)
}

func TestEngineBeforeRunCallbackAbortsLaunch(t *testing.T) {
	callbacks := NewCallbackManager()
	callbacks.RegisterCallback(NewFunctionCallback(CallbackBeforeRun,
		func(ctx context.Context, cctx *CallbackContext) error {
			return errors.New("roster frozen")
		},
	))

	e := newTestEngine(time.Second, func(o *Options) {
		o.Callbacks = callbacks
	})

	config := game.DefaultConfiguration([]string{"alice", "bob"}, []string{"good1"})

	_, _, _, err := e.Launch(context.Background(), config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "before-run callback")
	assert.Contains(t, err.Error(), "roster frozen")
}

func TestEngineAfterRunCallbackReceivesReport(t *testing.T) {
	var captured *runner.RunReport

	callbacks := NewCallbackManager()
	callbacks.RegisterCallback(NewFunctionCallback(CallbackAfterRun,
		func(ctx context.Context, cctx *CallbackContext) error {
			captured = cctx.Report
			return nil
		},
	))

	e := newTestEngine(400*time.Millisecond, func(o *Options) {
		o.Callbacks = callbacks
	})

	config := game.DefaultConfiguration([]string{"alice", "bob"}, []string{"good1"})

	runID, report, err := e.LaunchSync(context.Background(), config)
	require.NoError(t, err)
	require.NotNil(t, report)

	require.NotNil(t, captured, "after-run callback never fired")
	assert.Equal(t, runID, captured.RunID)
}

func TestEngineTradeValidationCancelsRun(t *testing.T) {
	callbacks := NewCallbackManager()
	callbacks.RegisterCallback(NewTradeValidationCallback(
		func(deltas core.GoodDeltas, amount decimal.Decimal) error {
			return errors.New("amount ceiling exceeded")
		},
	))

	e := newTestEngine(20*time.Second, func(o *Options) {
		o.Callbacks = callbacks
	})

	_, events, errs, err := e.LaunchSetup(context.Background(), guaranteedTradeSetup())
	require.NoError(t, err)

	// the first settlement trips the guard, which cancels the run long
	// before the trade window would close
	_, runErr := drainRun(t, events, errs)
	require.Error(t, runErr)
	assert.Contains(t, runErr.Error(), "settlement callback")
	assert.Contains(t, runErr.Error(), "amount ceiling exceeded")
}

func TestEngineStopRunUnknown(t *testing.T) {
	e := New()

	assert.Error(t, e.StopRun("missing"))
}

func TestCallbackManagerExecutesInOrder(t *testing.T) {
	var order []string

	cm := NewCallbackManager()
	cm.RegisterCallback(NewFunctionCallback(CallbackOnTrade,
		func(ctx context.Context, cctx *CallbackContext) error {
			order = append(order, "first")
			return errors.New("stop here")
		},
	))
	cm.RegisterCallback(NewFunctionCallback(CallbackOnTrade,
		func(ctx context.Context, cctx *CallbackContext) error {
			order = append(order, "second")
			return nil
		},
	))

	err := cm.ExecuteCallbacks(context.Background(), CallbackOnTrade, &CallbackContext{})
	require.Error(t, err)
	assert.Equal(t, []string{"first"}, order, "the chain stops at the first error")

	assert.NoError(t, cm.ExecuteCallbacks(context.Background(), CallbackBeforeRun, &CallbackContext{}),
		"types without callbacks succeed")
}

func TestLoggingCallbackFormatsMessage(t *testing.T) {
	var got string

	cb := NewLoggingCallback(CallbackOnTrade, func(message string) { got = message })

	ev := core.NewEvent("run-1", "controller", core.EventTransactionSettled)
	require.NoError(t, cb.Execute(context.Background(), &CallbackContext{RunID: "run-1", Event: &ev}))

	assert.Contains(t, got, "on_trade")
	assert.Contains(t, got, "run-1")
	assert.Contains(t, got, "transaction_settled")
}

func TestTradeValidationSkipsEventsWithoutAmount(t *testing.T) {
	cb := NewTradeValidationCallback(func(deltas core.GoodDeltas, amount decimal.Decimal) error {
		return errors.New("should not be called")
	})

	ev := core.NewEvent("run-1", "controller", core.EventTransactionSettled)
	assert.NoError(t, cb.Execute(context.Background(), &CallbackContext{Event: &ev}))
}
