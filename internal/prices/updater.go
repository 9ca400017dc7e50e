package prices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bher20/fuelkl/internal/logger"
	"github.com/bher20/fuelkl/internal/metrics"
	"github.com/bher20/fuelkl/internal/storage"
)

// Updater runs one fetch: call the API, extract, replace the snapshot file.
type Updater struct {
	client *Client
	output string
	store  storage.Storage // may be nil; history is then not recorded
	now    func() time.Time
}

// NewUpdater returns an Updater that writes snapshots to output.
func NewUpdater(client *Client, output string, st storage.Storage) *Updater {
	if output == "" {
		output = "prices.json"
	}
	return &Updater{client: client, output: output, store: st, now: time.Now}
}

// WithClock overrides the time source used for missing timestamps.
func (u *Updater) WithClock(now func() time.Time) *Updater {
	u.now = now
	return u
}

// Output returns the snapshot file path.
func (u *Updater) Output() string { return u.output }

// Run performs a single fetch attempt. On any error the snapshot file is left
// untouched. There are no retries; callers re-invoke on their own schedule.
func (u *Updater) Run(ctx context.Context) (Snapshot, error) {
	log := logger.WithModule("fetch")
	log.Infof("fetching %s", u.client.SourceURL())

	snap, _, err := u.client.FetchAndExtract(ctx, u.now())
	if err != nil {
		metrics.FetchTotal.WithLabelValues(resultLabel(err)).Inc()
		var extErr *ExtractionError
		if errors.As(err, &extErr) {
			log.Errorf("%v; dumping sample for inspection:\n%s", err, extErr.Dump)
		}
		return Snapshot{}, err
	}

	if err := WriteSnapshot(u.output, snap); err != nil {
		metrics.FetchTotal.WithLabelValues(resultLabel(err)).Inc()
		return Snapshot{}, fmt.Errorf("write %s: %w", u.output, err)
	}
	metrics.FetchTotal.WithLabelValues("ok").Inc()
	metrics.ObservePrices(snap.Petrol, snap.Diesel)
	log.Infof("wrote %s: petrol=%v diesel=%v updated_at=%s", u.output, snap.Petrol, snap.Diesel, snap.UpdatedAt)

	// Best-effort history record; the snapshot file is the source of truth.
	if u.store != nil {
		rec := storage.PriceRecord{
			ID:              uuid.New().String(),
			Petrol:          snap.Petrol,
			Diesel:          snap.Diesel,
			SourceUpdatedAt: snap.UpdatedAt,
			SourceURL:       u.client.SourceURL(),
			FetchedAt:       u.now(),
		}
		if err := u.store.SaveSnapshot(ctx, rec); err != nil {
			log.Warnf("record price history: %v", err)
		}
	}

	return snap, nil
}

func resultLabel(err error) string {
	var cfgErr *ConfigError
	var httpErr *UpstreamHTTPError
	var extErr *ExtractionError
	switch {
	case errors.As(err, &cfgErr):
		return "config"
	case errors.As(err, &httpErr):
		return "upstream"
	case errors.As(err, &extErr):
		return "extraction"
	default:
		return "error"
	}
}
