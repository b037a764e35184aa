package sundaews

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	sundaecli "github.com/SundaeSwap-finance/sundae-relay/sundae-cli"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Dispatcher fans a payload out to every registered connection and prunes the
// connections the transport reports as gone.
type Dispatcher struct {
	Registry    *Registry
	Channels    ChannelFactory
	Logger      zerolog.Logger
	Metrics     *sundaecli.Metrics // optional
	Concurrency int                // max concurrent deliveries (default 50)
	SendTimeout time.Duration      // per delivery timeout (default 5s)
	Endpoint    string             // used by stream-published broadcasts that carry no endpoint
}

// Failure is a delivery that neither succeeded nor pruned its connection.
type Failure struct {
	ConnectionID string
	Err          error
}

func (f Failure) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ConnectionID string `json:"connection_id"`
		Error        string `json:"error"`
	}{
		ConnectionID: f.ConnectionID,
		Error:        f.Err.Error(),
	})
}

// Report summarizes a broadcast. Every candidate is counted exactly once, as
// delivered, pruned or failed.
type Report struct {
	Candidates int       `json:"candidates"`
	Delivered  int       `json:"delivered"`
	Pruned     int       `json:"pruned"`
	Failures   []Failure `json:"failures"`
}

// MarshalJSON always renders failures as an array.
func (r Report) MarshalJSON() ([]byte, error) {
	type report Report
	v := report(r)
	if v.Failures == nil {
		v.Failures = []Failure{}
	}
	return json.Marshal(v)
}

func (r *Report) record(connectionID string, outcome Outcome, err error) {
	switch {
	case outcome == Delivered:
		r.Delivered++
	case outcome == Gone && err == nil:
		r.Pruned++
	default:
		r.Failures = append(r.Failures, Failure{ConnectionID: connectionID, Err: err})
	}
}

func (d *Dispatcher) concurrency() int {
	if d.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return d.Concurrency
}

func (d *Dispatcher) sendTimeout() time.Duration {
	if d.SendTimeout <= 0 {
		return DefaultSendTimeout
	}
	return d.SendTimeout
}

// Broadcast delivers payload to every registered connection through endpoint.
// Only a failure to list the membership is returned as an error; per
// connection failures are collected in the Report and never stop delivery to
// the remaining connections.
func (d *Dispatcher) Broadcast(ctx context.Context, payload []byte, endpoint string) (Report, error) {
	started := time.Now()

	ids, err := d.Registry.ListAll(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("unable to broadcast: %w", err)
	}

	channel := d.Channels.ForEndpoint(endpoint)
	report := d.fanOut(ctx, ids, func(ctx context.Context, id string) (Outcome, error) {
		return channel.Send(ctx, id, payload)
	})

	d.Logger.Info().
		Str("endpoint", endpoint).
		Int("candidates", report.Candidates).
		Int("delivered", report.Delivered).
		Int("pruned", report.Pruned).
		Int("failed", len(report.Failures)).
		Dur("elapsed", time.Since(started)).
		Msg("broadcast complete")
	d.recordMetrics(ctx, report, started)

	return report, nil
}

// Deliver sends payload to a single connection, pruning it when it is gone.
// The returned error is nil for Delivered, and for Gone once the prune
// succeeded.
func (d *Dispatcher) Deliver(ctx context.Context, endpoint, connectionID string, payload []byte) (Outcome, error) {
	channel := d.Channels.ForEndpoint(endpoint)
	return d.attempt(ctx, connectionID, func(ctx context.Context, id string) (Outcome, error) {
		return channel.Send(ctx, id, payload)
	})
}

// Sweep probes every registered connection without sending it anything and
// prunes the ones that are gone. In the Report, Delivered counts the
// connections that are still open.
func (d *Dispatcher) Sweep(ctx context.Context, endpoint string) (Report, error) {
	started := time.Now()

	prober, ok := d.Channels.ForEndpoint(endpoint).(Prober)
	if !ok {
		return Report{}, ErrProbeUnsupported
	}

	ids, err := d.Registry.ListAll(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("unable to sweep: %w", err)
	}

	report := d.fanOut(ctx, ids, prober.Probe)

	d.Logger.Info().
		Str("endpoint", endpoint).
		Int("candidates", report.Candidates).
		Int("open", report.Delivered).
		Int("pruned", report.Pruned).
		Int("failed", len(report.Failures)).
		Dur("elapsed", time.Since(started)).
		Msg("sweep complete")
	if d.Metrics != nil {
		d.Metrics.Count(ctx, sundaecli.BroadcastPrunedMetric, report.Pruned, map[sundaecli.DimensionName]string{sundaecli.OperationNameDimension: "sweep"})
	}
	return report, nil
}

type attemptFunc func(ctx context.Context, connectionID string) (Outcome, error)

// fanOut runs fn for every id on at most Concurrency goroutines. A failing or
// panicking attempt never affects the others.
func (d *Dispatcher) fanOut(ctx context.Context, ids []string, fn attemptFunc) Report {
	var (
		report = Report{Candidates: len(ids)}
		mu     sync.Mutex
		group  errgroup.Group
	)
	group.SetLimit(d.concurrency())

	for _, id := range ids {
		id := id
		group.Go(func() error {
			outcome, err := d.attempt(ctx, id, fn)

			mu.Lock()
			defer mu.Unlock()
			report.record(id, outcome, err)
			return nil
		})
	}
	_ = group.Wait()
	return report
}

type attemptResult struct {
	outcome Outcome
	err     error
}

// call runs fn for at most SendTimeout. A channel that ignores its context
// is abandoned at the deadline and the attempt is Failed.
func (d *Dispatcher) call(ctx context.Context, connectionID string, fn attemptFunc) (Outcome, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, d.sendTimeout())
	defer cancel()

	done := make(chan attemptResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("delivery to %v panicked: %v", connectionID, r)
				d.Logger.Error().Err(err).Str("connection_id", connectionID).Msg("delivery panicked")
				done <- attemptResult{outcome: Failed, err: err}
			}
		}()
		outcome, err := fn(attemptCtx, connectionID)
		done <- attemptResult{outcome: outcome, err: err}
	}()

	select {
	case result := <-done:
		return result.outcome, result.err
	case <-attemptCtx.Done():
		return Failed, fmt.Errorf("delivery to %v abandoned: %w", connectionID, attemptCtx.Err())
	}
}

func (d *Dispatcher) attempt(ctx context.Context, connectionID string, fn attemptFunc) (Outcome, error) {
	outcome, err := d.call(ctx, connectionID, fn)

	switch outcome {
	case Delivered:
		return Delivered, nil

	case Gone:
		d.Logger.Info().Str("connection_id", connectionID).Msg("connection gone, pruning")
		if err := d.Registry.Remove(ctx, connectionID); err != nil {
			d.Logger.Error().Err(err).Str("connection_id", connectionID).Msg("failed to prune gone connection")
			return Gone, fmt.Errorf("pruning gone connection %v: %w", connectionID, err)
		}
		return Gone, nil

	default:
		if err == nil {
			err = fmt.Errorf("delivery to %v failed", connectionID)
		}
		d.Logger.Warn().Err(err).Str("connection_id", connectionID).Msg("delivery failed")
		return Failed, err
	}
}

func (d *Dispatcher) recordMetrics(ctx context.Context, report Report, started time.Time) {
	if d.Metrics == nil {
		return
	}
	dims := map[sundaecli.DimensionName]string{sundaecli.OperationNameDimension: "broadcast"}
	d.Metrics.Timing(ctx, sundaecli.BroadcastTimeMetric, started, dims)
	d.Metrics.Count(ctx, sundaecli.BroadcastCandidatesMetric, report.Candidates, dims)
	d.Metrics.Count(ctx, sundaecli.BroadcastDeliveredMetric, report.Delivered, dims)
	d.Metrics.Count(ctx, sundaecli.BroadcastPrunedMetric, report.Pruned, dims)
	d.Metrics.Count(ctx, sundaecli.BroadcastFailedMetric, len(report.Failures), dims)
}
