package executor

import "time"

// RetryPolicy bounds retries of transient browser interaction failures
// (element not yet interactive, detached node). It is applied uniformly
// to every field action and to the submit click.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, first attempt included.
	MaxAttempts int

	// Backoff is the base delay between attempts; attempt n waits n times
	// the base.
	Backoff time.Duration
}

// DefaultRetryPolicy allows two retries after the initial attempt.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, Backoff: 250 * time.Millisecond}

// Do runs op until it succeeds or attempts are exhausted, returning the
// last error.
func (p RetryPolicy) Do(op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if attempt < attempts && p.Backoff > 0 {
			time.Sleep(time.Duration(attempt) * p.Backoff)
		}
	}
	return err
}
