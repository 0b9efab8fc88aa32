package engine

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/hupe1980/trademesh/core"
	"github.com/hupe1980/trademesh/game"
	"github.com/hupe1980/trademesh/runner"
)

// CallbackType defines the lifecycle points where callbacks can be executed.
//
// Callbacks hook into the engine's run pipeline without modifying core
// logic. Each type marks one point in a run's life:
//
//   - BeforeRun/AfterRun: around a complete competition run
//   - OnTrade: per settled transaction
//   - OnRejection: per refused transaction
//
// Callbacks execute synchronously and can influence execution flow by
// returning errors: a BeforeRun error aborts the launch, an OnTrade or
// OnRejection error cancels the running competition.
type CallbackType string

const (
	// CallbackBeforeRun is triggered after the setup is drawn but before any
	// agent starts. Use for setup validation or instrumentation; an error
	// aborts the launch.
	CallbackBeforeRun CallbackType = "before_run"

	// CallbackAfterRun is triggered once a run has completed and its report
	// exists. Use for metrics collection or archiving; errors are logged,
	// never fatal.
	CallbackAfterRun CallbackType = "after_run"

	// CallbackOnTrade is triggered for every settled transaction. Use for
	// auditing or live trade guards; an error cancels the run.
	CallbackOnTrade CallbackType = "on_trade"

	// CallbackOnRejection is triggered for every refused transaction. Use
	// for alerting on protocol mismatches or solvency failures; an error
	// cancels the run.
	CallbackOnRejection CallbackType = "on_rejection"
)

// CallbackContext carries the information available at the hook point.
//
// Fields are populated as far as the lifecycle has progressed: BeforeRun
// sees only the setup, OnTrade and OnRejection additionally see the
// settlement event, and AfterRun sees the final report.
type CallbackContext struct {
	// RunID identifies the run. Empty for BeforeRun, where no run exists yet.
	RunID string

	// Setup is the drawn competition the run plays out.
	Setup *game.Setup

	// Event is the settlement event being processed. Nil outside
	// OnTrade and OnRejection.
	Event *core.Event

	// Report is the final run report. Nil outside AfterRun.
	Report *runner.RunReport

	// Metadata provides extensible storage for custom callback data.
	Metadata map[string]interface{}
}

// Callback is a run lifecycle hook.
//
// Implementations should be:
//   - Fast: callbacks run synchronously on the event path and can block it
//   - Safe: handle errors gracefully and avoid panics
//   - Stateless: don't rely on mutable state between executions
//
// A callback returning an error terminates the associated operation; see
// the CallbackType constants for the exact effect per hook point.
type Callback interface {
	// Type returns the lifecycle point this callback handles.
	Type() CallbackType

	// Execute performs the callback logic with the provided context.
	Execute(ctx context.Context, cctx *CallbackContext) error
}

// FunctionCallback wraps a plain function as a Callback. It's the
// convenient form for simple, stateless hooks.
//
// Example:
//
//	audit := NewFunctionCallback(CallbackOnTrade,
//	    func(ctx context.Context, cctx *CallbackContext) error {
//	        log.Printf("trade settled in run %s", cctx.RunID)
//	        return nil
//	    },
//	)
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, cctx *CallbackContext) error
}

// NewFunctionCallback creates a function-based callback for the given
// lifecycle point.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, cctx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the lifecycle point this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, cctx *CallbackContext) error {
	return c.fn(ctx, cctx)
}

// CallbackManager routes lifecycle hooks to their registered callbacks.
//
// Multiple callbacks may be registered per type; they execute in
// registration order and the first error stops the chain.
//
// Registration is not synchronized: register everything before launching
// runs. Execution is safe for concurrent use afterwards.
type CallbackManager struct {
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty callback manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds a callback for its declared lifecycle point.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks runs all callbacks registered for the given type in
// registration order, returning the first error.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	cctx *CallbackContext,
) error {
	callbacks, exists := cm.callbacks[callbackType]
	if !exists {
		return nil
	}

	for _, callback := range callbacks {
		if err := callback.Execute(ctx, cctx); err != nil {
			return err
		}
	}

	return nil
}

// LoggingCallback renders lifecycle events through a plain logging function.
// Useful for audit trails in examples and tests without pulling a logger
// dependency into the hook.
type LoggingCallback struct {
	callbackType CallbackType
	logger       func(message string)
}

// NewLoggingCallback creates a logging callback for the given lifecycle
// point. The logger function receives one formatted message per execution.
func NewLoggingCallback(callbackType CallbackType, logger func(message string)) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// Type returns the lifecycle point this logger handles.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute logs the lifecycle event with run and event context. With no
// logger function configured the callback silently succeeds.
func (c *LoggingCallback) Execute(ctx context.Context, cctx *CallbackContext) error {
	if c.logger != nil {
		detail := ""
		if cctx.Event != nil {
			detail = string(cctx.Event.Type)
		}
		c.logger(fmt.Sprintf("[%s] run=%s event=%s", c.callbackType, cctx.RunID, detail))
	}
	return nil
}

// TradeValidationCallback enforces constraints on settled trades.
//
// The validator receives the buyer-perspective good deltas and the
// settlement amount of every committed transaction. Returning an error
// cancels the run, which makes this callback a live circuit breaker for
// runaway strategies.
//
// Example:
//
//	guard := NewTradeValidationCallback(
//	    func(deltas core.GoodDeltas, amount decimal.Decimal) error {
//	        if amount.GreaterThan(decimal.NewFromInt(1000)) {
//	            return errors.New("trade exceeds amount ceiling")
//	        }
//	        return nil
//	    },
//	)
type TradeValidationCallback struct {
	validator func(deltas core.GoodDeltas, amount decimal.Decimal) error
}

// NewTradeValidationCallback creates a trade validation callback.
func NewTradeValidationCallback(validator func(deltas core.GoodDeltas, amount decimal.Decimal) error) *TradeValidationCallback {
	return &TradeValidationCallback{
		validator: validator,
	}
}

// Type returns CallbackOnTrade; validation always rides the settled path.
func (c *TradeValidationCallback) Type() CallbackType {
	return CallbackOnTrade
}

// Execute validates the settled trade carried by the event. Events without
// an amount (none on the settled path in practice) pass through unchecked.
func (c *TradeValidationCallback) Execute(ctx context.Context, cctx *CallbackContext) error {
	if c.validator != nil && cctx.Event != nil && cctx.Event.Amount != nil {
		return c.validator(cctx.Event.GoodDeltas, *cctx.Event.Amount)
	}
	return nil
}
