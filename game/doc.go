// Package game generates competition setups: per-agent good endowments,
// private utility parameters and initial money balances, all derived
// deterministically from a seeded configuration so a run can be reproduced
// exactly. It also computes the competitive equilibrium benchmark that
// evaluation uses to judge how much of the theoretically available welfare
// the agents actually captured.
package game
