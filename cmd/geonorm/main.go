package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"geonorm/internal/batch"
	"geonorm/internal/config"
	"geonorm/internal/metrics"
	"geonorm/internal/metrics/datadog"
	"geonorm/internal/metrics/prompush"
)

// main is the entry point for the geonorm binary. It loads the run config,
// optionally initializes a metrics backend, and executes the batch.
func main() {
	var (
		cfgPath  string
		validate bool
	)

	flag.StringVar(&cfgPath, "config", "configs/sample.json", "run config JSON path")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fatalf("%v", err)
	}

	issues := config.ValidateRun(*cfg)
	hasError := false
	for _, iss := range issues {
		fmt.Fprintf(os.Stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
		if iss.Severity == config.SeverityError {
			hasError = true
		}
	}
	if hasError {
		log.Printf("Configuration is invalid: %v", cfgPath)
		os.Exit(1)
	}
	if validate {
		log.Printf("Configuration is valid: %v", cfgPath)
		os.Exit(0)
	}

	setupMetrics(cfg, *verbose)
	defer func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}()

	ctx := context.Background()
	start := time.Now()

	summary, err := batch.Run(ctx, cfg)
	if summary != nil {
		for _, r := range summary.Results {
			if r.Err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", r.Input.Data, r.Err)
			}
		}
	}
	if err != nil {
		log.Fatalf("%v", err)
	}

	if *verbose {
		log.Printf("completed in %s", time.Since(start).Truncate(time.Millisecond))
	}
}

// setupMetrics installs the configured metrics backend; the nop backend
// remains when metrics are disabled or initialization fails.
func setupMetrics(cfg *config.Run, verbose bool) {
	switch cfg.Metrics.Kind {
	case "prompush":
		url := cfg.Metrics.Options.String("url", "http://localhost:9091")
		jobName := cfg.Metrics.Options.String("job", cfg.Job)
		b, err := prompush.NewBackend(jobName, url)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: url=%v, backend=prompush, job_name=%v", url, jobName)
		metrics.SetBackend(b)

	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       cfg.Metrics.Options.String("addr", "127.0.0.1:8125"),
			Namespace:  cfg.Metrics.Options.String("namespace", "geonorm."),
			GlobalTags: cfg.Metrics.Options.StringSlice("tags"),
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: backend=datadog")
		metrics.SetBackend(b)

	case "", "none":
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", cfg.Metrics.Kind)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", cfg.Metrics.Kind)
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
