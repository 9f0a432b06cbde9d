// Package config provides configuration models and helpers for funnel runs.
//
// This file adds a lightweight linter/validator for Pipeline values. It
// performs static checks over a decoded Pipeline and returns a list of issues
// (errors and warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Pipeline.
//
// Path is a dotted path into the config (e.g. "source.kind",
// "export.db.table"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// knownModes lists the report modes the builder understands.
var knownModes = map[string]bool{
	"warmup":   true,
	"funnel":   true,
	"platform": true,
	"age":      true,
	"quality":  true,
	"surge":    true,
	"all":      true,
}

// ValidatePipeline performs static validation / linting of a Pipeline.
//
// It does not mutate the pipeline. Instead it returns a slice of Issue values.
// Callers may decide whether to treat warnings as fatal or not.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue

	if strings.TrimSpace(p.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}
	issues = append(issues, validateSource(p.Source)...)
	issues = append(issues, validateParser(p.Parser)...)
	issues = append(issues, validateReport(p.Report)...)
	issues = append(issues, validateExport(p.Export)...)

	return issues
}

func validateSource(s Source) []Issue {
	var issues []Issue

	switch s.Kind {
	case "dir":
		if strings.TrimSpace(s.Dir.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.dir.path",
				Message:  "dir source requires a data directory path",
			})
		}
	case "http":
		if strings.TrimSpace(s.HTTP.BaseURL) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "source.http.base_url",
				Message:  "http source requires a base URL",
			})
		}
		if s.HTTP.InsecureSkipVerify {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "source.http.insecure_skip_verify",
				Message:  "TLS verification is disabled",
			})
		}
	case "":
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  `source.kind must be "dir" or "http"`,
		})
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "source.kind",
			Message:  fmt.Sprintf("unknown source kind %q", s.Kind),
		})
	}

	return issues
}

func validateParser(p Parser) []Issue {
	var issues []Issue

	// An empty kind is accepted and treated as "csv"; anything else must be csv.
	if p.Kind != "" && p.Kind != "csv" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.kind",
			Message:  fmt.Sprintf("unsupported parser kind %q (datasets are CSV)", p.Kind),
		})
	}
	if c := p.Options.String("comma", ","); len([]rune(c)) != 1 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "parser.options.comma",
			Message:  "delimiter should be a single character; only the first rune is used",
		})
	}

	return issues
}

func validateReport(r Report) []Issue {
	var issues []Issue

	for i, m := range r.Modes {
		if !knownModes[m] {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("report.modes[%d]", i),
				Message:  fmt.Sprintf("unknown report mode %q", m),
			})
		}
	}
	switch r.Format {
	case "", "text", "json":
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "report.format",
			Message:  fmt.Sprintf(`format must be "text" or "json", got %q`, r.Format),
		})
	}

	return issues
}

func validateExport(e Export) []Issue {
	var issues []Issue

	if e.Kind == "" {
		return nil // export disabled
	}
	switch e.Kind {
	case "postgres", "mysql", "mssql", "sqlite":
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "export.kind",
			Message:  fmt.Sprintf("unknown export backend %q", e.Kind),
		})
	}
	if strings.TrimSpace(e.DB.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "export.db.dsn",
			Message:  "export requires a DSN",
		})
	}
	if strings.TrimSpace(e.DB.Table) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "export.db.table",
			Message:  `table is empty; defaulting to "funnel_report"`,
		})
	}

	return issues
}
