package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"vendorperf/internal/config"
	"vendorperf/internal/infrastructure"
	"vendorperf/internal/pipeline"
	"vendorperf/internal/store"
)

func main() {
	configFile := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	if err := run(*configFile); err != nil {
		slog.Error("pipeline run failed", "error", err)
		os.Exit(1)
	}
}

func run(configFile string) error {
	ctx := context.Background()

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	logger, closeLog, err := infrastructure.NewLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer closeLog()

	st, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	metrics := infrastructure.NewPipelineMetrics(prometheus.NewRegistry())

	p, err := pipeline.New(ctx, cfg, st, logger, metrics)
	if err != nil {
		return err
	}

	report, err := p.Run(ctx)
	if err != nil {
		return err
	}

	for _, src := range report.Sources {
		fmt.Printf("%-18s attempted=%d loaded=%d rejected=%d\n",
			src.Source, src.Attempted, src.Loaded, src.Rejected)
	}
	fmt.Printf("summary rows published: %d (run %s)\n",
		report.Aggregation.SummaryRows, report.RunID)
	return nil
}
