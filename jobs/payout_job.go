package jobs

import (
	"context"
	"log"
	"time"

	"github.com/elimuhub/learning_platform/services"
)

// PayoutWorker drains the settlement queue on a fixed interval. Approvals
// also kick a dispatch directly; this sweep picks up whatever was enqueued
// while the process was down and whatever a manual retry reset to pending.
type PayoutWorker struct {
	dispatcher *services.Dispatcher
	batchSize  int
	timeout    time.Duration
}

func NewPayoutWorker(dispatcher *services.Dispatcher) *PayoutWorker {
	return &PayoutWorker{
		dispatcher: dispatcher,
		batchSize:  50,
		timeout:    5 * time.Minute,
	}
}

func (w *PayoutWorker) Run() {
	log.Println("Running job: DispatchPendingPayouts...")

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	processed, err := w.dispatcher.DispatchPending(ctx, w.batchSize)
	if err != nil {
		log.Printf("Error dispatching pending payouts: %v", err)
		return
	}
	if processed > 0 {
		log.Printf("Dispatched %d payout item(s).", processed)
	}
}
