// Package retry runs actions repeatedly according to composable strategies.
package retry

// Action is a function to be performed in a retriable manner.
type Action func() error

// Retrier retries actions with a fixed set of strategies.
type Retrier interface {
	Retry(action Action) (uint, error)
}

type strategies []Strategy

// NewRetrier binds strategies for reuse. Without strategies it retries until
// the action succeeds.
func NewRetrier(s ...Strategy) Retrier {
	return strategies(s)
}

func (s strategies) Retry(action Action) (uint, error) {
	return Retry(action, s...)
}

// allow reports whether every strategy permits another attempt. Evaluation
// stops at the first rejection, so strategies that sleep belong last.
func (s strategies) allow(attempts uint, err error) bool {
	for _, strategy := range s {
		if !strategy(attempts, err) {
			return false
		}
	}
	return true
}

// Retry runs action until it succeeds or a strategy rejects another attempt.
// It returns the number of attempts made and the last error.
func Retry(action Action, s ...Strategy) (attempts uint, err error) {
	for {
		attempts++
		if err = action(); err == nil {
			return attempts, nil
		}

		if !strategies(s).allow(attempts, err) {
			return attempts, err
		}
	}
}
