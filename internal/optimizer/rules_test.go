package optimizer

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"

	"github.com/tangzhangming/jpeep/internal/analysis"
	"github.com/tangzhangming/jpeep/internal/asm"
	"github.com/tangzhangming/jpeep/internal/bytecode"
)

const (
	outField    = "getstatic java/lang/System.out Ljava/io/PrintStream;"
	printlnCall = "invokevirtual java/io/PrintStream.println"
)

// listing 把期望的清单拆成行，格式与 bytecode.FormatInsns 一致
func listing(s string) []string {
	return strings.Split(strings.Trim(s, "\n"), "\n")
}

func transform(t *testing.T, src string, rules ...Rule) (*bytecode.Method, Result) {
	t.Helper()
	m := asm.MustParseMethod(src)
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	res, err := NewTransformer(rules, WithLogger(zaptest.NewLogger(t))).Transform(m)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	return m, res
}

func expectListing(t *testing.T, m *bytecode.Method, want string) {
	t.Helper()
	if diff := cmp.Diff(listing(want), bytecode.FormatInsns(m.Instructions)); diff != "" {
		t.Errorf("listing mismatch (-want +got):\n%s", diff)
	}
}

// expectUnchanged 优化后的清单与输入相同
func expectUnchanged(t *testing.T, src string, rules ...Rule) {
	t.Helper()
	want := bytecode.FormatInsns(asm.MustParseMethod(src).Instructions)
	m, res := transform(t, src, rules...)
	if diff := cmp.Diff(want, bytecode.FormatInsns(m.Instructions)); diff != "" {
		t.Errorf("expected no rewrite (-want +got):\n%s", diff)
	}
	if res.Total() != 0 {
		t.Errorf("rewrites: got %v, want none", res.Rewrites)
	}
}

// ============================================================================
// IfNotRule
// ============================================================================

// branchTaken 在局部变量 0 为 x 时执行到第一个条件跳转，返回是否跳转
func branchTaken(t *testing.T, m *bytecode.Method, x int) bool {
	t.Helper()
	var stack []int
	pop := func() int {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v
	}
	for insn := m.Instructions.First(); insn != nil; insn = insn.Next() {
		switch insn.Opcode() {
		case bytecode.OpIload:
			stack = append(stack, x)
		case bytecode.OpIconst1:
			stack = append(stack, 1)
		case bytecode.OpIxor:
			b, a := pop(), pop()
			stack = append(stack, a^b)
		case bytecode.OpIfeq:
			return pop() == 0
		case bytecode.OpIfne:
			return pop() != 0
		}
	}
	t.Fatal("no conditional branch reached")
	return false
}

func TestIfNotPreservesBranch(t *testing.T) {
	for _, branch := range []string{"ifeq", "ifne"} {
		t.Run(branch, func(t *testing.T) {
			src := fmt.Sprintf(`
.method static f(Z)V
  iload 0
  iconst_1
  ixor
  %s L1
  return
L1:
  return
.end method`, branch)

			orig := asm.MustParseMethod(src)
			m, res := transform(t, src, IfNotRule{})
			if res.Rewrites[RuleIfNot] != 1 || res.Removed != 2 {
				t.Fatalf("result: got %+v", res)
			}
			for x := 0; x <= 1; x++ {
				if got, want := branchTaken(t, m, x), branchTaken(t, orig, x); got != want {
					t.Errorf("x=%d: optimized branch taken=%v, original %v", x, got, want)
				}
			}
		})
	}
}

func TestIfNotScenarioC(t *testing.T) {
	src := `
.method static f(Z)V
  iload 0
  iconst_1
  ixor
  ifne L1
  return
L1:
  return
.end method`
	m, _ := transform(t, src)
	expectListing(t, m, `
  iload 0
  ifeq L1
  return
L1:
  return`)

	res, err := NewTransformer(DefaultRules()).Transform(m)
	if err != nil {
		t.Fatalf("second Transform failed: %v", err)
	}
	if res.Total() != 0 || res.Passes != 1 {
		t.Errorf("second run should be a no-op, got %+v", res)
	}
}

func TestIfNotCascade(t *testing.T) {
	src := `
.method static f(Z)V
  iload 0
  iconst_1
  ixor
  iconst_1
  ixor
  ifeq L1
  return
L1:
  return
.end method`
	m, res := transform(t, src)
	expectListing(t, m, `
  iload 0
  ifeq L1
  return
L1:
  return`)
	if res.Rewrites[RuleIfNot] != 2 || res.Passes != 3 {
		t.Errorf("result: got %+v, want 2 rewrites over 3 passes", res)
	}
}

func TestIfNotRequiresAdjacency(t *testing.T) {
	expectUnchanged(t, `
.method static f(Z)V
  iload 0
  iconst_1
  ixor
  nop
  ifeq L1
  return
L1:
  return
.end method`)

	expectUnchanged(t, `
.method static f(I)V
  iload 0
  iconst_2
  ixor
  ifeq L1
  return
L1:
  return
.end method`)
}

// ============================================================================
// PrintRule
// ============================================================================

func TestPrintScenarioA(t *testing.T) {
	tests := []struct {
		name  string
		value string
		store string
		load  string
		desc  string
	}{
		{"string constant", `ldc "hello"`, "astore 1", "aload 1", "(Ljava/lang/String;)V"},
		{"int constant", "bipush 42", "istore 1", "iload 1", "(I)V"},
		{"null", "aconst_null", "astore 1", "aload 1", "(Ljava/lang/Object;)V"},
		{"local load", "iload 0", "istore 1", "iload 1", "(I)V"},
		{"long constant", "lconst_1", "lstore 1", "lload 1", "(J)V"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := fmt.Sprintf(`
.method static f(I)V
  %s
  %s
  %s
  %s
  %s %s
  return
.end method`, tt.value, tt.store, outField, tt.load, printlnCall, tt.desc)

			m, res := transform(t, src)
			expectListing(t, m, fmt.Sprintf(`
  %s
  %s
  %s %s
  return`, outField, tt.value, printlnCall, tt.desc))
			if res.Rewrites[RulePrint] != 1 || res.Removed != 2 {
				t.Errorf("result: got %+v", res)
			}
		})
	}
}

func TestPrintScenarioB(t *testing.T) {
	src := `
.method static f()V
  invokestatic Test.compute ()I
  istore 0
  getstatic java/lang/System.out Ljava/io/PrintStream;
  iload 0
  invokevirtual java/io/PrintStream.println (I)V
  return
.end method`
	m, res := transform(t, src)
	expectListing(t, m, `
  invokestatic Test.compute ()I
  getstatic java/lang/System.out Ljava/io/PrintStream;
  swap
  invokevirtual java/io/PrintStream.println (I)V
  return`)
	if res.Removed != 1 {
		t.Errorf("removed: got %d, want 1", res.Removed)
	}
}

func TestPrintCategoryTwoValue(t *testing.T) {
	src := `
.method static f()V
  invokestatic Test.big ()D
  dstore 0
  getstatic java/lang/System.err Ljava/io/PrintStream;
  dload 0
  invokevirtual java/io/PrintStream.print (D)V
  return
.end method`
	m, _ := transform(t, src)
	expectListing(t, m, `
  invokestatic Test.big ()D
  getstatic java/lang/System.err Ljava/io/PrintStream;
  dup_x2
  pop
  invokevirtual java/io/PrintStream.print (D)V
  return`)

	if _, err := analysis.NewAnalyzer(analysis.BasicInterpreter{}).Analyze(m); err != nil {
		t.Errorf("rewritten method does not analyze: %v", err)
	}
}

func TestPrintOptionalNopAndLabel(t *testing.T) {
	src := `
.method static f()V
  ldc "x"
  astore 0
  nop
L0:
  getstatic java/lang/System.out Ljava/io/PrintStream;
  aload 0
  invokevirtual java/io/PrintStream.println (Ljava/lang/Object;)V
  return
.end method`
	m, _ := transform(t, src)
	expectListing(t, m, `
  getstatic java/lang/System.out Ljava/io/PrintStream;
  ldc "x"
  nop
L0:
  invokevirtual java/io/PrintStream.println (Ljava/lang/Object;)V
  return`)
}

func TestPrintSafetyGating(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{
			name: "observable store",
			src: `
.method static f()V
  .var 0 is s Ljava/lang/String; from L0 to L1
L0:
  ldc "x"
  astore 0
  getstatic java/lang/System.out Ljava/io/PrintStream;
  aload 0
  invokevirtual java/io/PrintStream.println (Ljava/lang/String;)V
L1:
  return
.end method`,
		},
		{
			name: "store with two loads",
			src: `
.method static f()V
  ldc "x"
  astore 0
  getstatic java/lang/System.out Ljava/io/PrintStream;
  aload 0
  invokevirtual java/io/PrintStream.println (Ljava/lang/String;)V
  getstatic java/lang/System.out Ljava/io/PrintStream;
  aload 0
  invokevirtual java/io/PrintStream.println (Ljava/lang/String;)V
  return
.end method`,
		},
		{
			name: "meaningful label",
			src: `
.method static f(I)V
  ldc "x"
  astore 1
L0:
  getstatic java/lang/System.out Ljava/io/PrintStream;
  aload 1
  invokevirtual java/io/PrintStream.println (Ljava/lang/String;)V
  iload 0
  ifne L0
  return
.end method`,
		},
		{
			name: "line number label",
			src: `
.method static f()V
  ldc "x"
  astore 0
L0:
  .line 7 L0
  getstatic java/lang/System.out Ljava/io/PrintStream;
  aload 0
  invokevirtual java/io/PrintStream.println (Ljava/lang/String;)V
  return
.end method`,
		},
		{
			name: "different slot",
			src: `
.method static f(Ljava/lang/String;)V
  ldc "x"
  astore 1
  getstatic java/lang/System.out Ljava/io/PrintStream;
  aload 0
  invokevirtual java/io/PrintStream.println (Ljava/lang/String;)V
  return
.end method`,
		},
		{
			name: "unknown output field",
			src: `
.method static f()V
  ldc "x"
  astore 0
  getstatic Test.log Ljava/io/PrintStream;
  aload 0
  invokevirtual java/io/PrintStream.println (Ljava/lang/String;)V
  return
.end method`,
		},
		{
			name: "not an output method",
			src: `
.method static f()V
  ldc "x"
  astore 0
  getstatic java/lang/System.out Ljava/io/PrintStream;
  aload 0
  invokevirtual java/io/PrintStream.append (Ljava/lang/CharSequence;)Ljava/io/PrintStream;
  pop
  return
.end method`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectUnchanged(t, tt.src)
		})
	}
}

func TestPrintCustomSymbols(t *testing.T) {
	src := `
.method static f()V
  ldc "x"
  astore 0
  getstatic app/Log.out Lapp/Sink;
  aload 0
  invokevirtual app/Sink.write (Ljava/lang/String;)V
  return
.end method`
	symbols := &OutputSymbols{
		Fields:  []Symbol{{Owner: "app/Log", Name: "out", Descriptor: "Lapp/Sink;"}},
		Methods: []Symbol{{Owner: "app/Sink", Name: "write", Descriptor: "(Ljava/lang/String;)V"}},
	}
	m := asm.MustParseMethod(src)
	res, err := NewTransformer(DefaultRules(), WithSymbols(symbols)).Transform(m)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if res.Rewrites[RulePrint] != 1 {
		t.Errorf("custom symbols: got %+v", res)
	}
}

// ============================================================================
// Transformer
// ============================================================================

func TestTransformIdempotent(t *testing.T) {
	src := `
.method static f(Z)V
  invokestatic Test.compute ()I
  istore 1
  getstatic java/lang/System.out Ljava/io/PrintStream;
  iload 1
  invokevirtual java/io/PrintStream.println (I)V
  iload 0
  iconst_1
  ixor
  ifeq L1
  ldc "a"
  astore 2
  getstatic java/lang/System.out Ljava/io/PrintStream;
  aload 2
  invokevirtual java/io/PrintStream.println (Ljava/lang/String;)V
L1:
  return
.end method`
	m, res := transform(t, src)
	if res.Rewrites[RulePrint] != 2 || res.Rewrites[RuleIfNot] != 1 {
		t.Fatalf("first run: got %+v", res)
	}
	first := bytecode.FormatInsns(m.Instructions)

	again, err := NewTransformer(DefaultRules()).Transform(m)
	if err != nil {
		t.Fatalf("second Transform failed: %v", err)
	}
	if again.Total() != 0 {
		t.Errorf("second run rewrote %v", again.Rewrites)
	}
	if diff := cmp.Diff(first, bytecode.FormatInsns(m.Instructions)); diff != "" {
		t.Errorf("second run changed the method (-first +second):\n%s", diff)
	}
}

func TestTransformRuleSubset(t *testing.T) {
	expectUnchanged(t, `
.method static f()V
  ldc "x"
  astore 0
  getstatic java/lang/System.out Ljava/io/PrintStream;
  aload 0
  invokevirtual java/io/PrintStream.println (Ljava/lang/String;)V
  return
.end method`, IfNotRule{})
}

func TestTransformSkipsSubroutines(t *testing.T) {
	src := `
.method static f()V
  jsr L1
  return
L1:
  astore 0
  ret 0
.end method`
	m := asm.MustParseMethod(src)
	want := bytecode.FormatInsns(m.Instructions)
	res, err := NewTransformer(DefaultRules(), WithLogger(zaptest.NewLogger(t))).Transform(m)
	if !errors.Is(err, analysis.ErrSubroutine) {
		t.Fatalf("got error %v, want ErrSubroutine", err)
	}
	if !res.Skipped {
		t.Error("result should be marked skipped")
	}
	if diff := cmp.Diff(want, bytecode.FormatInsns(m.Instructions)); diff != "" {
		t.Errorf("skipped method was modified:\n%s", diff)
	}
}

func TestRulesFromNames(t *testing.T) {
	rules, err := RulesFromNames([]string{RulePrint, RuleIfNot})
	if err != nil {
		t.Fatalf("RulesFromNames failed: %v", err)
	}
	if len(rules) != 2 || rules[0].Name() != RulePrint || rules[1].Name() != RuleIfNot {
		t.Errorf("order not preserved: %v", rules)
	}

	if _, err := RulesFromNames([]string{"constant-fold"}); err == nil {
		t.Error("unknown rule should fail")
	}
	if _, err := RulesFromNames([]string{RuleIfNot, RuleIfNot}); err == nil {
		t.Error("duplicate rule should fail")
	}
}
