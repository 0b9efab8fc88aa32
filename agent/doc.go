// Package agent contains the trading participant and its supporting
// lifecycle plumbing. The package focuses on three concerns:
//
//  1. Base lifecycle guards shared by all agents (BaseAgent)
//  2. The select loop that multiplexes inbox, tick and cancellation (runLoop)
//  3. The negotiating participant itself (Participant)
//
// Design principles:
//   - Minimal hidden global state – explicit wiring via Runner/AgentContext
//   - Single-goroutine handlers – tick and react run on the loop goroutine,
//     so message handlers never race each other
//   - Pluggable judgement – all pricing and acceptance decisions are
//     delegated to a strategy.Strategy
//
// Execution Model:
//   - An agent's Run receives a *core.AgentContext with inbox, router handle
//     and event sink
//   - The participant opens one dialogue per tick, answers counterparties as
//     messages arrive and submits matched trades to the controller
//   - Goods and money promised in open dialogues are tracked as locks and
//     subtracted from the tradable view until the controller's verdict lands
//
// The package intentionally keeps settlement, session bookkeeping and
// scoring in their respective packages to avoid cyclic deps.
package agent
