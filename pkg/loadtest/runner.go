package loadtest

import (
	"context"
	"sync"
	"time"

	"github.com/nalapon/hf-web-client/pkg/custodian"
	"github.com/nalapon/hf-web-client/pkg/fabric"
	"github.com/nalapon/hf-web-client/pkg/gateway"
)

// Runner drives Config.TxCount transactions through a gateway.Client.
type Runner struct {
	client   *gateway.Client
	identity custodian.AppIdentity
	cfg      Config
}

// NewRunner returns a Runner that submits through client as identity.
func NewRunner(client *gateway.Client, identity custodian.AppIdentity, cfg Config) *Runner {
	return &Runner{client: client, identity: identity, cfg: cfg}
}

// ParamsFunc produces the proposal for the i-th transaction (0-indexed).
type ParamsFunc func(i int) fabric.ProposalParams

// Run submits cfg.TxCount transactions across cfg.Concurrency workers,
// throttled to cfg.RatePerSecond, and returns the aggregate Report. It
// returns as soon as ctx is cancelled, reporting whatever completed by
// then; cancellation is not itself an error.
//
// Grounded on pkg/infra/proposer.go's tokenCh-based rate limiter (a
// buffered channel refilled by a ticker, workers block on receiving a
// token before each send) and pkg/infra/process.go's pool-of-goroutines
// orchestration, collapsed to a single worker stage since SubmitAndCommit
// already performs the endorse/submit/commit pipeline the teacher staged
// across five goroutine pools.
func (r *Runner) Run(ctx context.Context, paramsFn ParamsFunc) (Report, error) {
	if err := r.cfg.Validate(); err != nil {
		return Report{}, err
	}

	stats := NewStats(r.cfg.TxCount)
	stats.Start()

	var tokens chan struct{}
	var stopTicker func()
	if r.cfg.RatePerSecond > 0 {
		tokens, stopTicker = newTokenBucket(ctx, r.cfg.RatePerSecond, r.cfg.Burst)
		defer stopTicker()
	}

	work := make(chan int)
	go func() {
		defer close(work)
		for i := 0; i < r.cfg.TxCount; i++ {
			select {
			case work <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < r.cfg.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.worker(ctx, work, tokens, paramsFn, stats)
		}()
	}
	wg.Wait()

	stats.Finish()
	return stats.Summary(), nil
}

func (r *Runner) worker(ctx context.Context, work <-chan int, tokens <-chan struct{}, paramsFn ParamsFunc, stats *Stats) {
	for i := range work {
		if tokens != nil {
			select {
			case <-tokens:
			case <-ctx.Done():
				return
			}
		}

		start := time.Now()
		_, err := r.client.SubmitAndCommit(ctx, paramsFn(i), r.identity)
		if err != nil {
			stats.RecordAbort()
			continue
		}
		stats.RecordSuccess(time.Since(start))
	}
}

// newTokenBucket starts a goroutine that fills tokens at ratePerSecond, up
// to burst outstanding tokens, until ctx is cancelled or the returned stop
// function is called.
func newTokenBucket(ctx context.Context, ratePerSecond float64, burst int) (chan struct{}, func()) {
	tokens := make(chan struct{}, burst)
	interval := time.Duration(float64(time.Second) / ratePerSecond)
	if interval <= 0 {
		interval = time.Nanosecond
	}
	ticker := time.NewTicker(interval)

	done := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				select {
				case tokens <- struct{}{}:
				default:
				}
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	stop := func() { once.Do(func() { close(done) }) }
	return tokens, stop
}
