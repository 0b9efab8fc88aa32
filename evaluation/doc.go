// Package evaluation scores the final outcomes of a run.
//
// The competition score of an agent is the shifted logarithmic utility of
// its goods plus its money balance. When the evaluator knows the game setup
// it also computes the competitive-equilibrium benchmark: the score each
// agent would have earned in the theoretical optimum, and the efficiency
// ratio of achieved over optimal score.
package evaluation
