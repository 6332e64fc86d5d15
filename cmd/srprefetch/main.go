// Command srprefetch streams a super-resolution dataset through the
// prefetch pipeline the way a training loop would, and reports how long the
// consumer waited for each batch.
//
//	srprefetch -config train.yaml -device host -step-time 20ms -chart waits.png
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/Noofbiz/superres/config"
	"k8s.io/klog/v2"
)

func main() {
	klog.InitFlags(nil)
	cfg := config.Default()
	configPath := flag.String("config", "", "YAML config file; flags given explicitly take precedence")
	split := flag.String("split", "", "dataset to stream: train, valid or test (default: the config mode)")
	cfg.BindFlags(flag.CommandLine)
	flag.Parse()
	defer klog.Flush()

	if *configPath != "" {
		if err := cfg.MergeOverFlags(*configPath, flag.CommandLine); err != nil {
			klog.Fatalf("failed to load config: %v", err)
		}
	}
	cfg.FillDefaults()
	if err := cfg.Validate(); err != nil {
		klog.Fatalf("%v", err)
	}
	if *split == "" {
		*split = cfg.DatasetMode().String()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	sum, err := run(ctx, cfg, *split)
	if err != nil {
		klog.Fatalf("%v", err)
	}
	klog.Infof("done: %s", sum)
}
