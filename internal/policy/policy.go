// Package policy provides action selection strategies for the collector
package policy

// Policy interface for action selection
type Policy interface {
	// SelectActions chooses one action per environment given the flat batch of
	// observations. Actions are returned flat, one action-space element per
	// environment, together with the negative log-probability of each choice.
	SelectActions(obs []float64, numEnvs int) (actions, neglogp []float64, err error)
}
