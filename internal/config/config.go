// Package config defines the canonical, JSON-serializable configuration model
// for the funnel analytics application. It is intentionally small, explicit,
// and dependency-free so that run configs can be loaded from disk and passed
// through the program without additional glue code.
//
// Design goals:
//
//  1. Stability: Changes to this package should be additive and backwards-
//     compatible whenever possible.
//  2. Clarity: Field names in Go mirror the JSON structure used in run files
//     under configs/*.json.
//  3. Minimalism: No third-party config libraries; decoding is performed by
//     the standard library, with a light Options helper for typed access.
//
// Example (trimmed):
//
//	{
//	  "job":    "citycar_funnel",
//	  "source": { "kind": "dir", "dir": { "path": "data" } },
//	  "parser": { "kind": "csv", "options": { "has_header": true } },
//	  "report": { "modes": ["warmup", "funnel"], "format": "text" },
//	  "export": { "kind": "sqlite", "db": { "dsn": "funnel.db", "table": "funnel_report" } }
//	}
package config

import "encoding/json"

// Pipeline describes one analytics run in JSON. It is the top-level object
// decoded from a run file.
type Pipeline struct {
	// Job names the run for logs and metrics labeling.
	Job string `json:"job"`

	// Source describes where the five dataset files come from.
	Source Source `json:"source"`

	// Parser configures how raw bytes are turned into rows (CSV only).
	Parser Parser `json:"parser"`

	// Report selects which report sections to compute and how to render them.
	Report Report `json:"report"`

	// Export optionally persists the finished report to a database backend.
	// An empty Kind disables export.
	Export Export `json:"export"`
}

// Source identifies where the dataset files live.
type Source struct {
	// Kind selects the source implementation: "dir" (local directory) or
	// "http" (base URL serving the CSV files).
	Kind string `json:"kind"`

	// Dir carries options for the "dir" source kind.
	Dir SourceDir `json:"dir"`

	// HTTP carries options for the "http" source kind.
	HTTP SourceHTTP `json:"http"`

	// Files optionally overrides the default filename per dataset
	// (e.g. {"ride_requests": "rides_2024.csv"}). Keys are dataset names.
	Files map[string]string `json:"files,omitempty"`
}

// SourceDir holds configuration for the "dir" source kind.
type SourceDir struct {
	// Path is the local filesystem directory containing the dataset files.
	Path string `json:"path"`
}

// SourceHTTP holds configuration for the "http" source kind.
type SourceHTTP struct {
	// BaseURL is joined with each dataset filename to form the fetch URL.
	BaseURL string `json:"base_url"`

	// InsecureSkipVerify disables TLS certificate verification. Useful for
	// self-signed internal endpoints; leave false otherwise.
	InsecureSkipVerify bool `json:"insecure_skip_verify,omitempty"`
}

// Parser selects how to parse the raw source into rows/columns.
type Parser struct {
	// Kind selects the parser implementation. Current value: "csv".
	Kind string `json:"kind"`

	// Options is a free-form map interpreted by the loader. Typical keys:
	//   has_header (bool), comma (string), trim_space (bool),
	//   lazy_quotes (bool), header_map (object)
	Options Options `json:"options"`
}

// Report selects report sections and output rendering.
type Report struct {
	// Modes lists the report sections to compute. Known values: "warmup",
	// "funnel", "platform", "age", "quality", "surge", "all". Empty means
	// "warmup".
	Modes []string `json:"modes,omitempty"`

	// Format is "text" or "json". Empty means "text".
	Format string `json:"format,omitempty"`
}

// Export selects the database sink used to persist the finished report.
type Export struct {
	// Kind selects the storage backend: "postgres", "mysql", "mssql",
	// "sqlite", or "" (no export).
	Kind string `json:"kind"`

	// DB configures the sink connection and target table.
	DB DBConfig `json:"db"`
}

// DBConfig configures the export sink.
type DBConfig struct {
	// DSN is the backend connection string (pgxpool URL, sqlite path, ...).
	DSN string `json:"dsn"`

	// Table is the target table name, optionally schema-qualified
	// (e.g. "public.funnel_report").
	Table string `json:"table"`

	// AutoCreateTable creates the report table on first use.
	AutoCreateTable bool `json:"auto_create_table"`
}

// Options is a small helper to fetch typed values from arbitrary JSON maps
// without introducing third-party configuration libraries. It purposefully
// performs only minimal type coercion and returns provided defaults when a
// key is absent or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def if key is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def if key is missing or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def if key is missing or not numeric.
// JSON numbers decode as float64; only whole values are accepted.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		if f, ok := v.(float64); ok && f == float64(int(f)) {
			return int(f)
		}
	}
	return def
}

// Rune returns the first rune of a string value for key, or def if key is
// missing or empty. Used for single-character parser settings such as the
// CSV delimiter.
func (o Options) Rune(key string, def rune) rune {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok && len(s) > 0 {
			return []rune(s)[0]
		}
	}
	return def
}

// StringMap returns a map[string]string for key when the value is an object
// whose values are strings. Non-string values are ignored. Returns an empty
// map when the key is missing or the value is not an object.
func (o Options) StringMap(key string) map[string]string {
	res := map[string]string{}
	if v, ok := o[key]; ok {
		if m, ok := v.(map[string]any); ok {
			for k, vv := range m {
				if s, ok := vv.(string); ok {
					res[k] = s
				}
			}
		}
	}
	return res
}

// StringSlice returns a []string for key when the value is an array of
// strings. Non-string elements are skipped. Returns nil when the key is
// missing or the value is not an array.
func (o Options) StringSlice(key string) []string {
	v, ok := o[key]
	if !ok {
		return nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Any returns the raw value for key and whether it was present.
func (o Options) Any(key string) (any, bool) {
	v, ok := o[key]
	return v, ok
}

// UnmarshalJSON implements json.Unmarshaler so that a missing or null
// "options" object in JSON decodes to a non-nil, empty Options map. This
// simplifies call sites by removing the need to nil-check Options values.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
