// Package loadtest drives a rate-limited pool of workers against a
// gateway.Client to measure throughput and commit latency, the one piece
// of the teacher's original purpose this module keeps as an opt-in
// harness layered on top of the per-call client.
//
// Grounded on pkg/infra/config.go's Config fields for rate/concurrency
// control, collapsed from tape's endorser-connection fan-out down to one
// worker pool since the Fabric Gateway exposes a single logical endpoint.
package loadtest

import "github.com/pkg/errors"

// Config controls one Runner.Run invocation.
type Config struct {
	// TxCount is the total number of transactions to submit.
	TxCount int
	// Concurrency is the number of worker goroutines submitting
	// concurrently.
	Concurrency int
	// RatePerSecond throttles how fast new transactions are admitted,
	// across all workers combined. Zero means unthrottled.
	RatePerSecond float64
	// Burst is the token bucket capacity backing RatePerSecond; it bounds
	// how many transactions can be admitted in a single instant once the
	// bucket has filled. Ignored when RatePerSecond is zero.
	Burst int
}

// Validate checks Config for the obviously-unrunnable cases.
func (c Config) Validate() error {
	if c.TxCount <= 0 {
		return errors.New("tx count must be positive")
	}
	if c.Concurrency <= 0 {
		return errors.New("concurrency must be positive")
	}
	if c.RatePerSecond < 0 {
		return errors.New("rate per second must not be negative")
	}
	if c.RatePerSecond > 0 && c.Burst <= 0 {
		return errors.New("burst must be positive when a rate is set")
	}
	return nil
}
