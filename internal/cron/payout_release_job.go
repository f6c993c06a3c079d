package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/garagebid/garagebid-backend/internal/payouts"
	"github.com/garagebid/garagebid-backend/pkg/logger"
)

// PayoutReleaseJobParams configure the payout release sweep.
type PayoutReleaseJobParams struct {
	Logger  *logger.Logger
	Payouts payouts.Service
}

// NewPayoutReleaseJob releases every pending payout whose scheduled date has
// passed.
func NewPayoutReleaseJob(params PayoutReleaseJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payouts == nil {
		return nil, fmt.Errorf("payout service required")
	}
	return &payoutReleaseJob{
		logg:    params.Logger,
		payouts: params.Payouts,
		now:     time.Now,
	}, nil
}

type payoutReleaseJob struct {
	logg    *logger.Logger
	payouts payouts.Service
	now     func() time.Time
}

func (j *payoutReleaseJob) Name() string { return "payout-release" }

func (j *payoutReleaseJob) Run(ctx context.Context) error {
	released, err := j.payouts.ReleaseDue(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("payout release: %w", err)
	}
	logCtx := j.logg.WithField(ctx, "payouts_released", released)
	j.logg.Info(logCtx, "payout release sweep complete")
	return nil
}
