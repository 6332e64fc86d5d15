package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Noofbiz/superres/config"
	"github.com/Noofbiz/superres/datasets"
	"github.com/Noofbiz/superres/metrics"
	"github.com/Noofbiz/superres/prefetch"
	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog/v2"
)

// summary totals a run over all epochs.
type summary struct {
	Epochs  int
	Batches int
	Bytes   int
	Elapsed time.Duration
	// Waits is the time each Next call blocked, in call order.
	Waits []time.Duration
}

func (s summary) String() string {
	rate := 0.0
	if s.Elapsed > 0 {
		rate = float64(s.Bytes) / s.Elapsed.Seconds()
	}
	return fmt.Sprintf("%d epochs, %d batches, %s in %v (%s/s)",
		s.Epochs, s.Batches, humanize.Bytes(uint64(s.Bytes)), s.Elapsed.Round(time.Millisecond),
		humanize.Bytes(uint64(rate)))
}

// openDataset builds the dataset for split ("train", "valid" or "test").
func openDataset(ctx context.Context, cfg config.Config, split string) (*datasets.Dataset, error) {
	popts := datasets.PreloadOptions{Workers: cfg.Workers, Progress: os.Stderr}
	switch strings.ToLower(split) {
	case "train":
		return datasets.NewTrainValidDataset(ctx, cfg.TrainImageDir, datasets.TrainValidOptions{
			ImageSize: cfg.ImageSize, Mode: datasets.ModeTrain, Seed: cfg.Seed, Preload: popts,
		})
	case "valid":
		return datasets.NewTrainValidDataset(ctx, cfg.ValidImageDir, datasets.TrainValidOptions{
			ImageSize: cfg.ImageSize, Mode: datasets.ModeValid, Seed: cfg.Seed, Preload: popts,
		})
	case "test":
		return datasets.NewTestDataset(ctx, cfg.TestHRDir, cfg.UpscaleFactor, popts)
	}
	return nil, fmt.Errorf("unknown split %q", split)
}

func run(ctx context.Context, cfg config.Config, split string) (summary, error) {
	split = strings.ToLower(split)
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector("superres", reg)
	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				klog.Errorf("metrics server: %v", err)
			}
		}()
		defer srv.Close()
		klog.Infof("serving metrics on %s", cfg.MetricsAddr)
	}

	ds, err := openDataset(ctx, cfg, split)
	if err != nil {
		return summary{}, fmt.Errorf("failed to open %s dataset: %w", split, err)
	}
	if store, ok := ds.Source().(*datasets.Store); ok {
		collector.RecordDataset(split, store.Len(), store.Bytes())
		defer store.Release()
	}

	batcher, err := datasets.NewBatcher(ds, datasets.BatcherOptions{
		BatchSize: cfg.BatchSize,
		Shuffle:   split == "train",
		Seed:      cfg.Seed,
	})
	if err != nil {
		return summary{}, err
	}
	loader, err := prefetch.NewLoader(batcher, cfg.PrefetchDepth,
		prefetch.WithName(split), prefetch.WithObserver(collector))
	if err != nil {
		return summary{}, err
	}

	dev, err := prefetch.ParseDevice(cfg.Device)
	if err != nil {
		return summary{}, err
	}
	defer dev.Close()
	if hd, ok := dev.(*prefetch.HostDevice); ok {
		hd.Latency = cfg.TransferLatency
	}
	p, err := prefetch.NewDevicePrefetcher(ctx, loader, dev,
		prefetch.WithName(split), prefetch.WithObserver(collector))
	if err != nil {
		return summary{}, err
	}
	defer p.Close()
	klog.Infof("streaming %s: %d samples, %d batches per epoch, prefetch %d, device %s",
		split, ds.Len(), p.Len(), cfg.PrefetchDepth, dev.Name())

	sum := summary{Waits: make([]time.Duration, 0, cfg.Epochs*(p.Len()+1))}
	start := time.Now()
	for epoch := range cfg.Epochs {
		if epoch > 0 {
			if err := p.Reset(); err != nil {
				return sum, err
			}
		}
		epochStart := time.Now()
		batches, bytes := 0, 0
		for {
			t0 := time.Now()
			b, err := p.Next()
			sum.Waits = append(sum.Waits, time.Since(t0))
			if err != nil {
				return sum, fmt.Errorf("epoch %d batch %d: %w", epoch+1, batches, err)
			}
			if b == nil {
				break
			}
			if err := step(ctx, cfg.StepTime); err != nil {
				b.Release()
				return sum, err
			}
			batches++
			bytes += b.Host.Bytes()
			b.Release()
		}
		sum.Epochs++
		sum.Batches += batches
		sum.Bytes += bytes
		klog.V(1).Infof("epoch %d/%d: %d batches, %s in %v", epoch+1, cfg.Epochs, batches,
			humanize.Bytes(uint64(bytes)), time.Since(epochStart).Round(time.Millisecond))
	}
	sum.Elapsed = time.Since(start)

	if cfg.ChartPath != "" {
		if err := plotWaits(cfg.ChartPath, split, sum.Waits); err != nil {
			return sum, fmt.Errorf("failed to write chart: %w", err)
		}
		klog.Infof("wrote %s", cfg.ChartPath)
	}
	return sum, nil
}

// step stands in for a training step on the current batch.
func step(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
