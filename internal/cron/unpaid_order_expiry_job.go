package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/tramar/pcbuilder-backend/internal/orders"
	"github.com/tramar/pcbuilder-backend/pkg/logger"
)

const (
	defaultUnpaidTTL   = 24 * time.Hour
	defaultExpiryBatch = 100
)

type UnpaidOrderExpiryJobParams struct {
	Logger    *logger.Logger
	Orders    unpaidOrderExpirer
	TTL       time.Duration
	BatchSize int
}

type unpaidOrderExpirer interface {
	ExpireUnpaid(ctx context.Context, cutoff time.Time, limit int) (*orders.ExpireResult, error)
}

// NewUnpaidOrderExpiryJob builds the job that cancels online-payment orders
// still unpaid after TTL and returns their stock to the shelf.
func NewUnpaidOrderExpiryJob(params UnpaidOrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultUnpaidTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatch
	}
	return &unpaidOrderExpiryJob{
		logg:   params.Logger,
		orders: params.Orders,
		ttl:    ttl,
		batch:  batch,
		now:    time.Now,
	}, nil
}

type unpaidOrderExpiryJob struct {
	logg   *logger.Logger
	orders unpaidOrderExpirer
	ttl    time.Duration
	batch  int
	now    func() time.Time
}

func (j *unpaidOrderExpiryJob) Name() string { return "unpaid-order-expiry" }

func (j *unpaidOrderExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	result, err := j.orders.ExpireUnpaid(ctx, cutoff, j.batch)
	fields := map[string]any{"cutoff": cutoff}
	if result != nil {
		fields["scanned"] = result.Scanned
		fields["expired"] = result.Expired
	}
	logCtx := j.logg.WithFields(ctx, fields)
	if err != nil {
		j.logg.Warn(logCtx, "unpaid order expiry finished with errors")
		return fmt.Errorf("expire unpaid orders: %w", err)
	}
	j.logg.Info(logCtx, "unpaid order expiry complete")
	return nil
}
