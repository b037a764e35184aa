package admin

import (
	"context"
	"encoding/json"
	"fmt"

	sundaegql "github.com/SundaeSwap-finance/sundae-relay/sundae-gql"
	sundaews "github.com/SundaeSwap-finance/sundae-relay/sundae-ws"
)

func (s *Server) Connections(ctx context.Context) ([]string, error) {
	return s.connections(ctx)
}

func (s *Server) ConnectionCount(ctx context.Context) (int32, error) {
	ids, err := s.connections(ctx)
	if err != nil {
		return 0, err
	}
	return int32(len(ids)), nil
}

type BroadcastArgs struct {
	Endpoint string
	Data     sundaegql.JSON
}

func (s *Server) Broadcast(ctx context.Context, args BroadcastArgs) (*ReportResolver, error) {
	data, err := json.Marshal(args.Data)
	if err != nil {
		return nil, fmt.Errorf("unable to encode data: %w", err)
	}
	report, err := s.send(ctx, args.Endpoint, data)
	if err != nil {
		return nil, err
	}
	return &ReportResolver{report: report}, nil
}

type ReportResolver struct {
	report sundaews.Report
}

func (r *ReportResolver) Candidates() int32 { return int32(r.report.Candidates) }
func (r *ReportResolver) Delivered() int32  { return int32(r.report.Delivered) }
func (r *ReportResolver) Pruned() int32     { return int32(r.report.Pruned) }

func (r *ReportResolver) Failures() []*FailureResolver {
	failures := make([]*FailureResolver, 0, len(r.report.Failures))
	for _, f := range r.report.Failures {
		failures = append(failures, &FailureResolver{failure: f})
	}
	return failures
}

type FailureResolver struct {
	failure sundaews.Failure
}

func (r *FailureResolver) ConnectionID() string { return r.failure.ConnectionID }
func (r *FailureResolver) Error() string        { return r.failure.Err.Error() }
