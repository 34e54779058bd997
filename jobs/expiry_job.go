package jobs

import (
	"context"
	"log"
	"time"

	"github.com/elimuhub/learning_platform/services"
)

// ExpiryReaper sweeps pending purchase-approval requests past their
// deadline into the terminal expired state. Each sweep is bounded so a
// backlog cannot starve request serving, and each transition is the same
// compare-and-swap a parent decision uses, so racing the reaper is safe.
type ExpiryReaper struct {
	store     services.PurchaseStore
	batchSize int
	timeout   time.Duration
}

func NewExpiryReaper(store services.PurchaseStore) *ExpiryReaper {
	return &ExpiryReaper{
		store:     store,
		batchSize: 200,
		timeout:   time.Minute,
	}
}

func (r *ExpiryReaper) Run() {
	log.Println("Running job: ExpireStalePurchaseRequests...")

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	expired, skipped, err := r.Sweep(ctx)
	if err != nil {
		log.Printf("Error sweeping stale purchase requests: %v", err)
		return
	}
	if expired == 0 && skipped == 0 {
		log.Println("No stale purchase requests found.")
		return
	}
	log.Printf("Expired %d purchase request(s), skipped %d decided in flight.", expired, skipped)
}

func (r *ExpiryReaper) Sweep(ctx context.Context) (expired, skipped int, err error) {
	due, err := r.store.DueForExpiry(time.Now(), r.batchSize)
	if err != nil {
		return 0, 0, err
	}

	for _, req := range due {
		if ctx.Err() != nil {
			return expired, skipped, ctx.Err()
		}

		won, err := r.store.Expire(req.ID)
		if err != nil {
			log.Printf("Error expiring purchase request %s: %v", req.ID, err)
			continue
		}
		if won {
			expired++
		} else {
			// A parent decision landed between the select and the swap.
			skipped++
		}
	}
	return expired, skipped, nil
}
