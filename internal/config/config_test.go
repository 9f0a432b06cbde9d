package config

import (
	"encoding/json"
	"testing"
)

func TestPipelineDecode(t *testing.T) {
	raw := `{
	  "job": "citycar_funnel",
	  "source": { "kind": "dir", "dir": { "path": "data" }, "files": { "ride_requests": "rides.csv" } },
	  "parser": { "kind": "csv", "options": { "has_header": true, "comma": ";", "header_map": { "Platform": "platform" } } },
	  "report": { "modes": ["warmup", "funnel"], "format": "json" },
	  "export": { "kind": "sqlite", "db": { "dsn": "funnel.db", "table": "funnel_report", "auto_create_table": true } }
	}`

	var p Pipeline
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if p.Job != "citycar_funnel" {
		t.Errorf("job = %q", p.Job)
	}
	if p.Source.Kind != "dir" || p.Source.Dir.Path != "data" {
		t.Errorf("source = %+v", p.Source)
	}
	if got := p.Source.Files["ride_requests"]; got != "rides.csv" {
		t.Errorf("files override = %q", got)
	}
	if !p.Parser.Options.Bool("has_header", false) {
		t.Errorf("has_header not decoded")
	}
	if got := p.Parser.Options.Rune("comma", ','); got != ';' {
		t.Errorf("comma = %q", got)
	}
	if got := p.Parser.Options.StringMap("header_map")["Platform"]; got != "platform" {
		t.Errorf("header_map = %q", got)
	}
	if len(p.Report.Modes) != 2 || p.Report.Format != "json" {
		t.Errorf("report = %+v", p.Report)
	}
	if !p.Export.DB.AutoCreateTable {
		t.Errorf("auto_create_table not decoded")
	}
}

func TestOptionsDefaults(t *testing.T) {
	var o Options

	if got := o.String("missing", "def"); got != "def" {
		t.Errorf("String default = %q", got)
	}
	if got := o.Bool("missing", true); got != true {
		t.Errorf("Bool default = %v", got)
	}
	if got := o.Rune("missing", ','); got != ',' {
		t.Errorf("Rune default = %q", got)
	}
	if m := o.StringMap("missing"); m == nil || len(m) != 0 {
		t.Errorf("StringMap default = %v", m)
	}
	if got := o.Int("missing", 7); got != 7 {
		t.Errorf("Int default = %d", got)
	}
	if s := o.StringSlice("missing"); s != nil {
		t.Errorf("StringSlice default = %v", s)
	}
	if _, ok := o.Any("missing"); ok {
		t.Error("Any reported a missing key as present")
	}
}

func TestOptionsTypedAccess(t *testing.T) {
	var p Parser
	raw := `{"options": {"limit": 3, "ratio": 1.5, "cols": ["a", "b", 2]}}`
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatal(err)
	}
	o := p.Options

	if got := o.Int("limit", 0); got != 3 {
		t.Errorf("Int = %d", got)
	}
	// fractional numbers do not silently truncate
	if got := o.Int("ratio", -1); got != -1 {
		t.Errorf("Int on fraction = %d", got)
	}
	if got := o.StringSlice("cols"); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("StringSlice = %v", got)
	}
	if v, ok := o.Any("limit"); !ok || v.(float64) != 3 {
		t.Errorf("Any = %v, %v", v, ok)
	}
}

func TestOptionsNullDecode(t *testing.T) {
	var p Parser
	if err := json.Unmarshal([]byte(`{"kind":"csv","options":null}`), &p); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if p.Options == nil {
		t.Fatalf("options should decode to a non-nil empty map")
	}
}

func TestOptionsWrongTypes(t *testing.T) {
	o := Options{"comma": 5, "trim": "yes", "m": []any{"a"}}

	if got := o.Rune("comma", '\t'); got != '\t' {
		t.Errorf("Rune on non-string = %q", got)
	}
	if got := o.Bool("trim", false); got != false {
		t.Errorf("Bool on string = %v", got)
	}
	if m := o.StringMap("m"); len(m) != 0 {
		t.Errorf("StringMap on array = %v", m)
	}
}
