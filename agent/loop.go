package agent

import (
	"time"

	"github.com/hupe1980/trademesh/core"
)

// runLoop drives an agent on a single goroutine. It multiplexes the agent's
// inbox with a periodic tick and cancellation, so onTick and onMessage never
// run concurrently. The loop returns nil on a clean shutdown, i.e. when the
// run context ends or the inbox is closed by the router.
func runLoop(actx *core.AgentContext, interval time.Duration, onTick func(), onMessage func(core.Envelope)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-actx.Done():
			return nil
		case <-ticker.C:
			onTick()
		case env, ok := <-actx.Inbox:
			if !ok {
				return nil
			}
			onMessage(env)
		}
	}
}

// drain consumes envelopes that are already queued without blocking. It is
// used on tick boundaries so a busy inbox cannot starve periodic work, and
// caps the number of messages handled per call to keep ticks bounded.
func drain(actx *core.AgentContext, limit int, onMessage func(core.Envelope)) {
	for i := 0; i < limit; i++ {
		select {
		case env, ok := <-actx.Inbox:
			if !ok {
				return
			}
			onMessage(env)
		default:
			return
		}
	}
}
