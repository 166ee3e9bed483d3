package jobs

import (
	"context"
	"log/slog"
	"time"
)

// TransferExpirer reclaims the outstanding-offer slot for pending transfers
// past their 7-day claim window; service.MobilityService implements it.
type TransferExpirer interface {
	ExpireTransfers(ctx context.Context) (int, error)
}

// TransferExpiryJob periodically sweeps pending transfers past their claim
// window. Acceptance also checks expiry lazily, so the sweep only keeps the
// table tidy and emits the transfer.expired events.
type TransferExpiryJob struct {
	expirer  TransferExpirer
	interval time.Duration
	ticker   *time.Ticker
	done     chan bool
}

func NewTransferExpiryJob(expirer TransferExpirer, interval time.Duration) *TransferExpiryJob {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &TransferExpiryJob{
		expirer:  expirer,
		interval: interval,
		done:     make(chan bool),
	}
}

func (j *TransferExpiryJob) Start(ctx context.Context) {
	slog.Info("Starting transfer expiry job", "check_interval", j.interval.String())

	j.ticker = time.NewTicker(j.interval)

	// Run initial sweep immediately
	go j.sweep(ctx)

	go func() {
		for {
			select {
			case <-j.ticker.C:
				go j.sweep(ctx)
			case <-j.done:
				slog.Info("Transfer expiry job stopped")
				return
			}
		}
	}()
}

func (j *TransferExpiryJob) Stop() {
	if j.ticker != nil {
		j.ticker.Stop()
	}
	close(j.done)
}

func (j *TransferExpiryJob) sweep(ctx context.Context) {
	count, err := j.expirer.ExpireTransfers(ctx)
	if err != nil {
		slog.Error("Transfer expiry sweep failed", "error", err)
		return
	}

	if count > 0 {
		slog.Info("Expired pending transfers", "count", count)
	} else {
		slog.Debug("No pending transfers past their claim window")
	}
}
