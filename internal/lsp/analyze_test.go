package lsp

import (
	"strings"
	"testing"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/tangzhangming/jpeep/internal/optimizer"
)

func TestAnalyze(t *testing.T) {
	a := newAnalyzer(t).Analyze("Sample.jasm", sampleSource)
	if len(a.Errors) != 0 || a.Class == nil {
		t.Fatalf("unexpected errors %v", a.Errors)
	}
	want := []Hit{
		{Rule: optimizer.RulePrint, Method: "main([Ljava/lang/String;)V", Line: 6},
		{Rule: optimizer.RuleIfNot, Method: "check(Z)I", Line: 15},
	}
	if len(a.Hits) != len(want) {
		t.Fatalf("hits %+v", a.Hits)
	}
	for i := range want {
		if a.Hits[i] != want[i] {
			t.Errorf("hit %d: got %+v, want %+v", i, a.Hits[i], want[i])
		}
	}

	mr, ok := a.MethodAt(25)
	if !ok || mr.Method != "legacy()V" || !mr.Result.Skipped {
		t.Errorf("MethodAt(25) = %+v, %v", mr, ok)
	}
	if _, ok := a.MethodAt(1); ok {
		t.Error("no method is declared on line 1")
	}
}

func TestAnalyzeSyntaxErrors(t *testing.T) {
	a := newAnalyzer(t).Analyze("Broken.jasm", brokenSource+"  .limit\n")
	if a.Class != nil || a.Report != nil || len(a.Errors) == 0 {
		t.Fatalf("analysis %+v", a)
	}
	lines := splitLines(brokenSource)
	diags := a.Diagnostics(lines)
	for _, d := range diags {
		if d.Severity != protocol.DiagnosticSeverityError {
			t.Errorf("unexpected severity %v", d.Severity)
		}
	}
	if _, ok := a.MethodAt(2); ok {
		t.Error("a failed parse has no methods")
	}
}

func TestAnalyzerCustomRules(t *testing.T) {
	cfg := newConfig(t, optimizer.RuleIfNot)
	an, err := NewAnalyzer(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	a := an.Analyze("Sample.jasm", sampleSource)
	if len(a.Hits) != 1 || a.Hits[0].Rule != optimizer.RuleIfNot {
		t.Errorf("hits %+v", a.Hits)
	}

	cfg.Optimizer.Rules = []string{"no-such-rule"}
	if _, err := NewAnalyzer(cfg, zap.NewNop()); err == nil {
		t.Error("unknown rules should be rejected")
	}
}

func TestMethodSummary(t *testing.T) {
	tests := []struct {
		mr   optimizer.MethodReport
		want []string
	}{
		{optimizer.MethodReport{Method: "f()V", Result: optimizer.Result{Skipped: true}, Error: "boom"}, []string{"**f()V**", "not optimized: boom"}},
		{optimizer.MethodReport{Method: "g()V", Result: optimizer.Result{Passes: 1}}, []string{"no peephole rewrites apply"}},
		{optimizer.MethodReport{Method: "h()V", Result: optimizer.Result{
			Rewrites: map[string]int{"print": 2, "if-not": 1}, Passes: 3, Removed: 4,
		}}, []string{"- if-not: 1\n- print: 2", "3 pass(es), 4 node(s) removed"}},
	}
	for _, tt := range tests {
		got := methodSummary(tt.mr)
		for _, w := range tt.want {
			if !strings.Contains(got, w) {
				t.Errorf("summary of %s missing %q:\n%s", tt.mr.Method, w, got)
			}
		}
	}
}
