package worker

import (
	"context"
	"log"
	"time"

	"rifa-service/internal/broker"
	"rifa-service/internal/models"
	"rifa-service/internal/service"
	"rifa-service/internal/store"
	"rifa-service/internal/util"

	"go.uber.org/zap"
)

// TopBuyerWorker consumes order events and maintains the weekly
// top-buyer aggregation used by the dashboard and the weekly draw.
type TopBuyerWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        *store.Store
	logger       *zap.Logger
}

// NewTopBuyerWorker creates a new top buyer worker
func NewTopBuyerWorker(consumer *broker.Consumer, st *store.Store) *TopBuyerWorker {
	w := &TopBuyerWorker{
		consumer: consumer,
		store:    st,
		logger:   util.NamedLogger("top-buyer-worker"),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderPaid(w.handleOrderPaid)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *TopBuyerWorker) Start(ctx context.Context) error {
	log.Println("Starting top buyer worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *TopBuyerWorker) Stop() error {
	log.Println("Stopping top buyer worker...")
	return w.consumer.Close()
}

// handleOrderPaid folds one paid order into the weekly aggregate. The
// processed-events table makes redelivered messages a no-op.
func (w *TopBuyerWorker) handleOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error {
	processed, err := w.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return err
	}
	if processed {
		w.logger.Info("Skipping already processed event",
			zap.String("event_id", event.EventID))
		return nil
	}

	week := service.ISOWeek(event.Timestamp)
	if err := w.store.UpsertTopBuyer(ctx, event.UserID, week, event.CampaignID,
		event.AmountCents, event.NumbersCount); err != nil {
		return err
	}

	if err := w.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		return err
	}

	w.logger.Info("Top buyer aggregate updated",
		zap.String("user_id", event.UserID),
		zap.String("week", week),
		zap.Int64("amount_cents", event.AmountCents))
	return nil
}

// ExpirySweeper periodically deletes lapsed reservation rows. Readers
// already treat lapsed reservations as available, so this is garbage
// collection, not correctness.
type ExpirySweeper struct {
	store    *store.Store
	interval time.Duration
	logger   *zap.Logger
}

// NewExpirySweeper creates a new expiry sweeper
func NewExpirySweeper(st *store.Store, interval time.Duration) *ExpirySweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ExpirySweeper{
		store:    st,
		interval: interval,
		logger:   util.NamedLogger("expiry-sweeper"),
	}
}

// Start runs the sweep loop until the context is cancelled.
func (s *ExpirySweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Expiry sweeper stopped")
			return
		case <-ticker.C:
			swept, err := s.store.SweepExpired(ctx, time.Now())
			if err != nil {
				s.logger.Error("Sweep failed", zap.Error(err))
				continue
			}
			if swept > 0 {
				util.ExpiredReservationsSweptTotal.Add(float64(swept))
				s.logger.Info("Swept expired reservations", zap.Int64("count", swept))
			}
		}
	}
}
