package policy

import "testing"

func TestCheckPrecedence(t *testing.T) {
	c := NewChecker(Rules{
		Deny:        []string{"run_command"},
		Ask:         []string{"write_*", "run_command"},
		Allow:       []string{"*"},
		DefaultMode: ModeDeny,
	})

	if r := c.Check("run_command"); r.Allowed {
		t.Errorf("deny should win over ask: %+v", r)
	}
	if r := c.Check("write_file"); !r.Allowed || !r.Gated {
		t.Errorf("write_file should be gated: %+v", r)
	}
	if r := c.Check("get_current_time"); !r.Allowed || r.Gated {
		t.Errorf("allow pattern should pass ungated: %+v", r)
	}
}

func TestCheckDefaultModes(t *testing.T) {
	cases := []struct {
		mode    Mode
		allowed bool
		gated   bool
	}{
		{ModeAllow, true, false},
		{ModeDeny, false, false},
		{ModeAsk, true, true},
		{"", true, false},
	}
	for _, tc := range cases {
		c := NewChecker(Rules{DefaultMode: tc.mode})
		r := c.Check("anything")
		if r.Allowed != tc.allowed || r.Gated != tc.gated {
			t.Errorf("mode %q: got %+v", tc.mode, r)
		}
	}
}

func TestMatchPattern(t *testing.T) {
	cases := []struct {
		name    string
		pattern string
		want    bool
	}{
		{"write_file", "write_file", true},
		{"write_file", "write_*", true},
		{"write_file", "*file", true},
		{"write_file", "*", true},
		{"read_file", "write_*", false},
		{"write_file", "read_file", false},
	}
	for _, tc := range cases {
		if got := matchPattern(tc.name, tc.pattern); got != tc.want {
			t.Errorf("matchPattern(%q, %q) = %v, want %v", tc.name, tc.pattern, got, tc.want)
		}
	}
}

func TestDefaultRulesGateWrites(t *testing.T) {
	c := NewChecker(DefaultRules())
	if r := c.Check("write_file"); !r.Gated {
		t.Error("write_file should be gated by default")
	}
	if r := c.Check("get_current_time"); r.Gated || !r.Allowed {
		t.Error("get_current_time should run ungated by default")
	}
}
