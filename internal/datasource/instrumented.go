package datasource

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/staticmap/internal/metrics"
)

// FetchStatus is a snapshot of fetch activity.
type FetchStatus struct {
	// ActiveFetches is the number of currently in-flight fetches
	ActiveFetches int `json:"active_fetches"`
	// TotalCompleted is the number of successful fetches since start
	TotalCompleted int64 `json:"total_completed"`
	// TotalFailed is the number of failed fetches since start
	TotalFailed int64 `json:"total_failed"`
	// TotalBytes is the number of encoded tile bytes received since start
	TotalBytes int64 `json:"total_bytes"`
	// CurrentTiles lists URLs currently being fetched
	CurrentTiles []string `json:"current_tiles"`
}

// InstrumentedConfig configures an Instrumented source.
type InstrumentedConfig struct {
	// SizeWarningThreshold warns when a single tile exceeds this size in bytes (default: 1MB)
	SizeWarningThreshold int64
	Logger               *slog.Logger
}

// Instrumented wraps a TileSource with logging, Prometheus metrics and
// running totals exposed through Status.
type Instrumented struct {
	src TileSource
	cfg InstrumentedConfig

	activeFetches  atomic.Int32
	totalCompleted atomic.Int64
	totalFailed    atomic.Int64
	totalBytes     atomic.Int64
	currentTiles   sync.Map // url -> start time
}

// NewInstrumented wraps src.
func NewInstrumented(src TileSource, cfg InstrumentedConfig) *Instrumented {
	if cfg.SizeWarningThreshold <= 0 {
		cfg.SizeWarningThreshold = 1 << 20
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Instrumented{src: src, cfg: cfg}
}

// Unwrap returns the wrapped source.
func (in *Instrumented) Unwrap() TileSource {
	return in.src
}

// FetchTile fetches through the wrapped source and records the outcome.
func (in *Instrumented) FetchTile(ctx context.Context, url string) (image.Image, error) {
	in.activeFetches.Add(1)
	in.currentTiles.Store(url, time.Now())
	defer func() {
		in.activeFetches.Add(-1)
		in.currentTiles.Delete(url)
	}()

	start := time.Now()
	log := in.cfg.Logger.With("url", url, "source", Scheme(url))

	var (
		img  image.Image
		size int64
		err  error
	)
	if raw, ok := in.src.(RawSource); ok {
		var data []byte
		data, err = raw.FetchRaw(ctx, url)
		size = int64(len(data))
		if err == nil {
			img, err = decodeTile(url, data)
		}
	} else {
		img, err = in.src.FetchTile(ctx, url)
	}
	elapsed := time.Since(start)

	metrics.ObserveFetch(Scheme(url), elapsed, size, err)

	if err != nil {
		in.totalFailed.Add(1)
		log.Warn("tile fetch failed", "error", err, "duration_ms", elapsed.Milliseconds())
		return nil, err
	}

	in.totalCompleted.Add(1)
	in.totalBytes.Add(size)
	log.Debug("tile fetched", "duration_ms", elapsed.Milliseconds(), "size_bytes", size)

	if size > in.cfg.SizeWarningThreshold {
		log.Warn("tile exceeds size threshold",
			"threshold_kb", in.cfg.SizeWarningThreshold/1024,
			"actual_kb", fmt.Sprintf("%.1f", float64(size)/1024),
		)
	}
	return img, nil
}

// Status returns the current fetch statistics.
func (in *Instrumented) Status() FetchStatus {
	current := []string{}
	in.currentTiles.Range(func(key, _ any) bool {
		current = append(current, key.(string))
		return true
	})
	sort.Strings(current)

	return FetchStatus{
		ActiveFetches:  int(in.activeFetches.Load()),
		TotalCompleted: in.totalCompleted.Load(),
		TotalFailed:    in.totalFailed.Load(),
		TotalBytes:     in.totalBytes.Load(),
		CurrentTiles:   current,
	}
}
