package postgres

import (
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestSplitFQN(t *testing.T) {
	cases := []struct {
		in   string
		want pgx.Identifier
	}{
		{"funnel_report", pgx.Identifier{"funnel_report"}},
		{"public.funnel_report", pgx.Identifier{"public", "funnel_report"}},
		{".funnel_report", pgx.Identifier{"funnel_report"}},
	}
	for _, tc := range cases {
		got := splitFQN(tc.in)
		if len(got) != len(tc.want) {
			t.Errorf("splitFQN(%q) = %v, want %v", tc.in, got, tc.want)
			continue
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("splitFQN(%q)[%d] = %q, want %q", tc.in, i, got[i], tc.want[i])
			}
		}
	}
}

func TestPgFQN(t *testing.T) {
	if got := pgFQN("public.funnel_report"); got != `"public"."funnel_report"` {
		t.Errorf("pgFQN = %s", got)
	}
	if got := pgFQN(`odd"name`); got != `"odd""name"` {
		t.Errorf("pgFQN quoting = %s", got)
	}
}
