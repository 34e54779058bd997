package jobs

import (
	"context"
	"log"
	"time"

	"github.com/elimuhub/learning_platform/services"
)

// ReconciliationJob re-checks timed-out settlements against the rails. A
// timeout only proves we never heard the answer; the transfer may have been
// accepted, in which case the provisional refund must be reversed and the
// withdrawal completed.
type ReconciliationJob struct {
	dispatcher *services.Dispatcher
	window     time.Duration
	batchSize  int
	timeout    time.Duration
}

func NewReconciliationJob(dispatcher *services.Dispatcher) *ReconciliationJob {
	return &ReconciliationJob{
		dispatcher: dispatcher,
		window:     48 * time.Hour,
		batchSize:  50,
		timeout:    5 * time.Minute,
	}
}

func (j *ReconciliationJob) Run() {
	log.Println("Running job: ReconcileTimedOutSettlements...")

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	recovered, err := j.dispatcher.Reconcile(ctx, time.Now().Add(-j.window), j.batchSize)
	if err != nil {
		log.Printf("Error reconciling timed-out settlements: %v", err)
		return
	}
	if recovered > 0 {
		log.Printf("Reconciled %d settlement(s) that the rail had executed.", recovered)
	}
}
