package cron

import (
	"context"
	"fmt"

	"github.com/angeldelgado/deliverydash-backend/pkg/logger"
)

type DispatchRecheckJobParams struct {
	Logger *logger.Logger
	Engine pendingRechecker
}

type pendingRechecker interface {
	RecheckPending(ctx context.Context) error
}

func NewDispatchRecheckJob(params DispatchRecheckJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Engine == nil {
		return nil, fmt.Errorf("dispatch engine required")
	}
	return &dispatchRecheckJob{logg: params.Logger, engine: params.Engine}, nil
}

type dispatchRecheckJob struct {
	logg   *logger.Logger
	engine pendingRechecker
}

func (j *dispatchRecheckJob) Name() string { return "dispatch-recheck" }

// Run expires stale dispatch rounds and re-broadcasts pending orders to
// drivers that became eligible since the last sweep.
func (j *dispatchRecheckJob) Run(ctx context.Context) error {
	if err := j.engine.RecheckPending(ctx); err != nil {
		return fmt.Errorf("dispatch recheck: %w", err)
	}
	j.logg.Info(ctx, "dispatch recheck complete")
	return nil
}
