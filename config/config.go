// Package config holds the settings for building super-resolution datasets
// and prefetch pipelines.
package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/Noofbiz/superres/datasets"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config holds the dataset and pipeline settings. Zero values are replaced
// by defaults in FillDefaults; Seed 0 is a valid seed and is kept.
type Config struct {
	// Mode is "train" or "valid" and selects the augmentation applied to
	// the train/valid datasets.
	Mode string `yaml:"mode"`
	// UpscaleFactor is the HR/LR size ratio. Default 2.
	UpscaleFactor int `yaml:"upscale_factor"`
	// ExpName names the experiment's results directory. Default "exp001".
	ExpName string `yaml:"exp_name"`
	Seed    int64  `yaml:"seed"`
	// Device is a prefetch.ParseDevice id. Default "cpu".
	Device string `yaml:"device"`

	TrainImageDir string `yaml:"train_image_dir"`
	ValidImageDir string `yaml:"valid_image_dir"`
	// TestHRDir holds the ground-truth images the test set degrades.
	TestHRDir   string `yaml:"test_hr_dir"`
	ResultsRoot string `yaml:"results_root"`

	// ImageSize is the low resolution crop edge. Default 41.
	ImageSize int `yaml:"image_size"`
	// BatchSize default 64.
	BatchSize int `yaml:"batch_size"`
	// Epochs default 80.
	Epochs int `yaml:"epochs"`
	// PrefetchDepth is the number of batches kept ready ahead of the
	// training loop. Default 4.
	PrefetchDepth int `yaml:"prefetch_depth"`
	// Workers decode images in parallel while preloading. Default NumCPU.
	Workers int `yaml:"workers"`

	// StepTime simulates the per-batch compute of a training step.
	StepTime time.Duration `yaml:"step_time"`
	// TransferLatency simulates a slow host-to-device link on host devices.
	TransferLatency time.Duration `yaml:"transfer_latency"`
	// MetricsAddr serves Prometheus metrics when set, e.g. ":9090".
	MetricsAddr string `yaml:"metrics_addr"`
	// ChartPath writes a consumer wait-time chart when set.
	ChartPath string `yaml:"chart_path"`
}

// Default returns a Config with every default filled.
func Default() Config {
	var c Config
	c.FillDefaults()
	return c
}

// FillDefaults replaces zero fields with their defaults.
func (c *Config) FillDefaults() {
	if c.Mode == "" {
		c.Mode = "train"
	}
	if c.UpscaleFactor == 0 {
		c.UpscaleFactor = 2
	}
	if c.ExpName == "" {
		c.ExpName = "exp001"
	}
	if c.Device == "" {
		c.Device = "cpu"
	}
	if c.TrainImageDir == "" {
		c.TrainImageDir = "data/TB291/train"
	}
	if c.ValidImageDir == "" {
		c.ValidImageDir = "data/TB291/valid"
	}
	if c.TestHRDir == "" {
		c.TestHRDir = "data/Set5/GTmod12"
	}
	if c.ResultsRoot == "" {
		c.ResultsRoot = "results"
	}
	if c.ImageSize == 0 {
		c.ImageSize = 41
	}
	if c.BatchSize == 0 {
		c.BatchSize = 64
	}
	if c.Epochs == 0 {
		c.Epochs = 80
	}
	if c.PrefetchDepth == 0 {
		c.PrefetchDepth = 4
	}
	if c.Workers == 0 {
		c.Workers = runtime.NumCPU()
	}
}

// Load reads a YAML file over the defaults and validates the result.
// Unknown keys are rejected.
func Load(path string) (Config, error) {
	c := Default()
	if err := c.Merge(path); err != nil {
		return Config{}, err
	}
	c.FillDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Merge decodes a YAML file onto c. Keys absent from the file keep their
// current values.
func (c *Config) Merge(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := datasets.ParseMode(c.Mode); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	positive := []struct {
		name  string
		value int
	}{
		{"upscale_factor", c.UpscaleFactor},
		{"image_size", c.ImageSize},
		{"batch_size", c.BatchSize},
		{"epochs", c.Epochs},
		{"prefetch_depth", c.PrefetchDepth},
		{"workers", c.Workers},
	}
	for _, p := range positive {
		if p.value < 1 {
			return fmt.Errorf("%w: %s must be at least 1, got %d", ErrInvalid, p.name, p.value)
		}
	}
	if c.StepTime < 0 || c.TransferLatency < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalid)
	}
	return nil
}

// DatasetMode is the parsed Mode.
func (c *Config) DatasetMode() datasets.Mode {
	m, _ := datasets.ParseMode(c.Mode)
	return m
}

// ResultsDir is where training artifacts for the experiment go.
func (c *Config) ResultsDir() string { return filepath.Join(c.ResultsRoot, c.ExpName) }

// SRDir is where super-resolved test images go.
func (c *Config) SRDir() string { return filepath.Join(c.ResultsRoot, "test", c.ExpName) }

// CheckpointPath is the best-model checkpoint of the experiment.
func (c *Config) CheckpointPath() string { return filepath.Join(c.ResultsDir(), "best.ckpt") }

// BindFlags registers a flag for every setting, bound to c's fields and
// defaulting to their current values.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Mode, "mode", c.Mode, "dataset mode: train or valid")
	fs.IntVar(&c.UpscaleFactor, "upscale", c.UpscaleFactor, "HR/LR size ratio")
	fs.StringVar(&c.ExpName, "exp", c.ExpName, "experiment name")
	fs.Int64Var(&c.Seed, "seed", c.Seed, "random seed for cropping and shuffling")
	fs.StringVar(&c.Device, "device", c.Device, "transfer target: cpu, host-half, gomlx[:N], gomlx-half[:N]")
	fs.StringVar(&c.TrainImageDir, "train-dir", c.TrainImageDir, "training set root with lr/ and hr/")
	fs.StringVar(&c.ValidImageDir, "valid-dir", c.ValidImageDir, "validation set root with lr/ and hr/")
	fs.StringVar(&c.TestHRDir, "test-dir", c.TestHRDir, "ground-truth test images")
	fs.StringVar(&c.ResultsRoot, "results", c.ResultsRoot, "results root directory")
	fs.IntVar(&c.ImageSize, "image-size", c.ImageSize, "low resolution crop size")
	fs.IntVar(&c.BatchSize, "batch", c.BatchSize, "batch size")
	fs.IntVar(&c.Epochs, "epochs", c.Epochs, "epochs to stream")
	fs.IntVar(&c.PrefetchDepth, "prefetch", c.PrefetchDepth, "batches prefetched ahead of the consumer")
	fs.IntVar(&c.Workers, "workers", c.Workers, "parallel image decoders")
	fs.DurationVar(&c.StepTime, "step-time", c.StepTime, "simulated compute per batch")
	fs.DurationVar(&c.TransferLatency, "transfer-latency", c.TransferLatency, "simulated host-to-device latency")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", c.MetricsAddr, "serve Prometheus metrics on this address")
	fs.StringVar(&c.ChartPath, "chart", c.ChartPath, "write a wait-time chart (png, svg or pdf)")
}

// MergeOverFlags merges a YAML file into c, then restores every flag that
// was given on the command line so flags take precedence over the file.
func (c *Config) MergeOverFlags(path string, fs *flag.FlagSet) error {
	given := make(map[string]string)
	fs.Visit(func(f *flag.Flag) { given[f.Name] = f.Value.String() })
	if err := c.Merge(path); err != nil {
		return err
	}
	for name, value := range given {
		if err := fs.Set(name, value); err != nil {
			return fmt.Errorf("flag -%s: %w", name, err)
		}
	}
	return nil
}
