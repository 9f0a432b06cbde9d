// Command funnel loads the CityCar dataset CSVs, computes the funnel report,
// prints it as text or JSON, and optionally exports it to a database backend.
//
// Runs are described either by a JSON config file (-config) or, for the
// common local case, by a data directory (-data) with the default filenames.
//
// Examples:
//
//	funnel -data ./data -mode warmup
//	funnel -config configs/runs/sample.json -format json
//	funnel -config configs/runs/sample.json -validate
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"funnel/internal/config"
	"funnel/internal/metrics"
	"funnel/internal/metrics/datadog"
	"funnel/internal/metrics/prompush"

	_ "funnel/internal/storage/all"
)

func main() {
	configPath := flag.String("config", "", "path to a run config JSON file (overrides -data/-job)")
	dataDir := flag.String("data", envOr("FUNNEL_DATA_DIR", "data"), "directory holding the five dataset CSVs; used when -config is absent")
	job := flag.String("job", "citycar_funnel", "job name for logs and metric labels; used when -config is absent")
	mode := flag.String("mode", "", "comma-separated report modes (warmup,funnel,platform,age,quality,surge,all); overrides the config")
	format := flag.String("format", "", `output format, "text" or "json"; overrides the config`)
	metricsBackend := flag.String("metrics-backend", "", "metrics backend: none, pushgateway or datadog (default $FUNNEL_METRICS_BACKEND, then none)")
	pushURL := flag.String("pushgateway-url", "", "Prometheus Pushgateway base URL (default $PUSHGATEWAY_URL)")
	ddAddr := flag.String("dd-addr", "", "DogStatsD agent address (default $DD_AGENT_ADDR)")
	validateOnly := flag.Bool("validate", false, "validate the run config and exit")
	verbose := flag.Bool("v", false, "log per-table load details")
	flag.Parse()

	p, err := resolvePipeline(*configPath, *dataDir, *job)
	if err != nil {
		fatalf("config: %v", err)
	}
	applyOverrides(&p, *mode, *format)

	issues := config.ValidatePipeline(p)
	hasErrors := false
	for _, is := range issues {
		log.Printf("stage=validate severity=%s path=%s msg=%q", is.Severity, is.Path, is.Message)
		if is.Severity == config.SeverityError {
			hasErrors = true
		}
	}
	if *validateOnly {
		if hasErrors {
			os.Exit(1)
		}
		fmt.Println("config ok")
		return
	}
	if hasErrors {
		fatalf("config: validation failed, see log")
	}

	backendName := pick(*metricsBackend, os.Getenv("FUNNEL_METRICS_BACKEND"), "none")
	if err := setupMetrics(backendName, p.Job, pick(*pushURL, os.Getenv("PUSHGATEWAY_URL")), pick(*ddAddr, os.Getenv("DD_AGENT_ADDR"))); err != nil {
		fatalf("metrics: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := newContainer(p, *verbose).execute(ctx)
	if err := metrics.Flush(); err != nil {
		log.Printf("stage=metrics flush err=%v", err)
	}
	if runErr != nil {
		fatalf("run: %v", runErr)
	}
}

// resolvePipeline decodes the run config from path, or builds the default
// local-directory pipeline when no config file is given.
func resolvePipeline(path, dataDir, job string) (config.Pipeline, error) {
	if path == "" {
		return config.Pipeline{
			Job: job,
			Source: config.Source{
				Kind: "dir",
				Dir:  config.SourceDir{Path: dataDir},
			},
			Parser: config.Parser{Kind: "csv", Options: config.Options{}},
			Report: config.Report{Modes: []string{"all"}, Format: "text"},
		}, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return config.Pipeline{}, err
	}
	var p config.Pipeline
	if err := json.Unmarshal(b, &p); err != nil {
		return config.Pipeline{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return p, nil
}

// applyOverrides folds command-line overrides into the decoded pipeline.
func applyOverrides(p *config.Pipeline, mode, format string) {
	if mode != "" {
		var modes []string
		for _, m := range strings.Split(mode, ",") {
			if m = strings.TrimSpace(m); m != "" {
				modes = append(modes, m)
			}
		}
		p.Report.Modes = modes
	}
	if format != "" {
		p.Report.Format = format
	}
}

// setupMetrics installs the selected metrics backend, if any.
func setupMetrics(name, job, pushURL, ddAddr string) error {
	switch name {
	case "", "none":
		return nil
	case "pushgateway":
		if pushURL == "" {
			return fmt.Errorf("pushgateway backend needs -pushgateway-url or $PUSHGATEWAY_URL")
		}
		b, err := prompush.NewBackend(job, pushURL)
		if err != nil {
			return err
		}
		metrics.SetBackend(b)
		return nil
	case "datadog":
		if ddAddr == "" {
			return fmt.Errorf("datadog backend needs -dd-addr or $DD_AGENT_ADDR")
		}
		b, err := datadog.NewBackend(datadog.Config{
			Addr:      ddAddr,
			Namespace: "funnel.",
			GlobalTags: []string{
				"job:" + job,
			},
		})
		if err != nil {
			return err
		}
		metrics.SetBackend(b)
		return nil
	default:
		return fmt.Errorf("unknown metrics backend %q (want none, pushgateway or datadog)", name)
	}
}

// pick returns the first non-empty value.
func pick(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// envOr returns the environment value for key, or def when unset or empty.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func fatalf(format string, args ...any) {
	log.Printf(format, args...)
	os.Exit(1)
}
