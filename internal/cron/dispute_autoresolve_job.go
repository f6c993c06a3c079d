package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/garagebid/garagebid-backend/internal/disputes"
	"github.com/garagebid/garagebid-backend/pkg/logger"
)

// DisputeAutoResolveJobParams configure the stale contest sweep.
type DisputeAutoResolveJobParams struct {
	Logger   *logger.Logger
	Disputes disputes.Service
}

// NewDisputeAutoResolveJob resolves contested disputes nobody reviewed within
// the configured wait, in the customer's favor.
func NewDisputeAutoResolveJob(params DisputeAutoResolveJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Disputes == nil {
		return nil, fmt.Errorf("dispute service required")
	}
	return &disputeAutoResolveJob{
		logg:     params.Logger,
		disputes: params.Disputes,
		now:      time.Now,
	}, nil
}

type disputeAutoResolveJob struct {
	logg     *logger.Logger
	disputes disputes.Service
	now      func() time.Time
}

func (j *disputeAutoResolveJob) Name() string { return "dispute-auto-resolve" }

func (j *disputeAutoResolveJob) Run(ctx context.Context) error {
	resolved, err := j.disputes.AutoResolveStale(ctx, j.now().UTC())
	logCtx := j.logg.WithField(ctx, "disputes_resolved", resolved)
	if err != nil {
		// partial progress still counts; surface the batch error for metrics
		j.logg.Warn(logCtx, "dispute auto-resolve sweep finished with failures")
		return fmt.Errorf("dispute auto-resolve: %w", err)
	}
	j.logg.Info(logCtx, "dispute auto-resolve sweep complete")
	return nil
}
