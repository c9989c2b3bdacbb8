package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"github.com/Caqil/harn-ledger/pkg/api"
	"github.com/Caqil/harn-ledger/pkg/pbft"
)

var (
	// ErrPollTimeout is returned when a record does not commit within the
	// poll limits
	ErrPollTimeout = errors.New("record not committed before poll limit")

	errNotCommitted = errors.New("not committed")
)

// PollConfig bounds WaitForCommit
type PollConfig struct {
	// Interval between polls, or the initial interval when Exponential
	Interval time.Duration

	// Exponential grows the interval up to MaxInterval
	Exponential bool
	MaxInterval time.Duration

	// MaxAttempts of zero means no attempt limit
	MaxAttempts uint

	// MaxElapsed of zero means no time limit
	MaxElapsed time.Duration

	// Node asks a single replica instead of the cluster
	Node string
}

// DefaultPollConfig polls once a second for up to a minute
func DefaultPollConfig() PollConfig {
	return PollConfig{
		Interval:    time.Second,
		MaxInterval: 10 * time.Second,
		MaxAttempts: 60,
		MaxElapsed:  time.Minute,
	}
}

// Validate checks the poll limits
func (p PollConfig) Validate() error {
	if p.Interval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if p.Exponential && p.MaxInterval < p.Interval {
		return fmt.Errorf("max poll interval must be at least the interval")
	}
	return nil
}

func (p PollConfig) backOff() backoff.BackOff {
	if !p.Exponential {
		return backoff.NewConstantBackOff(p.Interval)
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Interval
	b.MaxInterval = p.MaxInterval
	return b
}

// WaitForCommit polls the status of seq until it is committed. Transport
// failures are retried; API errors end the wait. When the limits run out the
// last status is returned with ErrPollTimeout.
func (c *Client) WaitForCommit(ctx context.Context, seq, view uint64, cfg PollConfig) (*pbft.StatusResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var last *pbft.StatusResult
	poll := func() (*pbft.StatusResult, error) {
		st, err := c.Status(ctx, seq, view, cfg.Node)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		last = st
		if st.State != pbft.StateCommitted {
			return st, errNotCommitted
		}
		return st, nil
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(cfg.backOff()),
		backoff.WithMaxElapsedTime(cfg.MaxElapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.log.DebugEvent().
				Uint64("sequence", seq).
				Str("reason", err.Error()).
				Dur("next", next).
				Msg("record not committed yet")
		}),
	}
	if cfg.MaxAttempts > 0 {
		opts = append(opts, backoff.WithMaxTries(cfg.MaxAttempts))
	}

	st, err := backoff.Retry(ctx, poll, opts...)
	switch {
	case err == nil:
		return st, nil
	case ctx.Err() != nil:
		return last, ctx.Err()
	case errors.Is(err, errNotCommitted):
		return last, fmt.Errorf("%w: sequence %d is %s", ErrPollTimeout, seq, last.State)
	case errors.Is(err, ErrTransport):
		return last, fmt.Errorf("%w: %w", ErrPollTimeout, err)
	default:
		return last, err
	}
}

// SubmitOutcome is the result of SubmitAndWait
type SubmitOutcome struct {
	Submit *pbft.SubmitResult
	Status *pbft.StatusResult
}

// Committed reports whether the record reached the ledger
func (o *SubmitOutcome) Committed() bool {
	if o.Submit != nil && o.Submit.RecordStatus == pbft.StateCommitted {
		return true
	}
	return o.Status != nil && o.Status.State == pbft.StateCommitted
}

// SubmitAndWait submits record and, unless it committed immediately, waits
// for it to commit
func (c *Client) SubmitAndWait(ctx context.Context, node, record string, cfg PollConfig) (*SubmitOutcome, error) {
	res, err := c.Submit(ctx, node, record)
	if err != nil {
		return nil, err
	}

	out := &SubmitOutcome{Submit: res}
	if res.RecordStatus == pbft.StateCommitted {
		return out, nil
	}

	out.Status, err = c.WaitForCommit(ctx, res.Sequence, res.View, cfg)
	return out, err
}

// QueryAll queries every node concurrently; no nodes selects every node
// listed by node-info. Results follow the order of nodes.
func (c *Client) QueryAll(ctx context.Context, nodes []string, itemID string) ([]*api.QueryResponse, error) {
	if len(nodes) == 0 {
		info, err := c.NodeInfo(ctx)
		if err != nil {
			return nil, err
		}
		nodes = info.Order
	}

	results := make([]*api.QueryResponse, len(nodes))
	g, gctx := errgroup.WithContext(ctx)
	for i, node := range nodes {
		g.Go(func() error {
			res, err := c.Query(gctx, node, itemID)
			if err != nil {
				return fmt.Errorf("query %s: %w", node, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
