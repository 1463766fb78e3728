package optimizer

import (
	"testing"

	"github.com/tangzhangming/jpeep/internal/asm"
	"github.com/tangzhangming/jpeep/internal/bytecode"
)

const matcherSrc = `
.method static f()V
  iconst_1
  nop
  istore 0
L0:
  return
.end method`

func TestMatcherSequence(t *testing.T) {
	m := asm.MustParseMethod(matcherSrc)
	mt := NewMatcher(m.Instructions.First())

	one, ok := mt.Opcode(bytecode.OpIconst1)
	if !ok || one != m.Instructions.First() {
		t.Fatalf("Opcode(iconst_1) failed")
	}
	if _, ok := mt.TryOpcode(bytecode.OpNop); !ok {
		t.Fatal("optional nop should match")
	}
	store, ok := Expect(mt, func(v *bytecode.VarInsn) bool { return v.Opcode().IsStore() })
	if !ok || store.Var != 0 {
		t.Fatalf("Expect store failed")
	}
	if _, ok := TryExpect[*bytecode.Label](mt, nil); !ok {
		t.Fatal("optional label should match")
	}
	if _, ok := mt.Opcode(bytecode.OpReturn); !ok || !mt.OK() {
		t.Fatal("return should match")
	}
	if mt.Current() != nil {
		t.Errorf("cursor should be past the end, got %v", mt.Current())
	}
	if _, ok := mt.Opcode(bytecode.OpNop); ok || mt.OK() {
		t.Error("matching past the end should fail")
	}
}

func TestMatcherOptionalDoesNotAdvance(t *testing.T) {
	m := asm.MustParseMethod(matcherSrc)
	mt := NewMatcher(m.Instructions.First())

	if _, ok := TryExpect[*bytecode.Label](mt, nil); ok {
		t.Fatal("iconst_1 is not a label")
	}
	if !mt.OK() || mt.Current() != m.Instructions.First() {
		t.Error("a missing optional element must not move the cursor or fail the match")
	}
}

func TestMatcherFailureIsSticky(t *testing.T) {
	m := asm.MustParseMethod(matcherSrc)
	before := bytecode.FormatInsns(m.Instructions)
	mt := NewMatcher(m.Instructions.First())

	if _, ok := mt.Opcode(bytecode.OpIconst0); ok {
		t.Fatal("iconst_1 matched iconst_0")
	}
	called := false
	_, ok := Expect(mt, func(*bytecode.InsnNode) bool {
		called = true
		return true
	})
	if ok || called {
		t.Error("expectations after a failure must not run")
	}
	if _, ok := TryExpect[*bytecode.InsnNode](mt, nil); ok {
		t.Error("optional expectations after a failure must not match")
	}
	if mt.OK() {
		t.Error("matcher should stay failed")
	}

	after := bytecode.FormatInsns(m.Instructions)
	if len(before) != len(after) {
		t.Error("matching modified the instruction list")
	}
}

func TestMatcherPredicateAndOpcode(t *testing.T) {
	m := asm.MustParseMethod(matcherSrc)

	mt := NewMatcher(m.Instructions.First())
	if _, ok := ExpectOp(mt, bytecode.OpIconst1, func(*bytecode.InsnNode) bool { return false }); ok {
		t.Error("a false predicate should fail the match")
	}

	mt = NewMatcher(m.Instructions.First())
	if _, ok := Expect[*bytecode.VarInsn](mt, nil); ok {
		t.Error("iconst_1 is not a variable instruction")
	}

	if NewMatcher(nil).OK() {
		t.Error("a matcher without a start instruction cannot succeed")
	}
}
