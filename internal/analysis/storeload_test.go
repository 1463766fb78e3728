package analysis

import (
	"slices"
	"testing"

	"github.com/tangzhangming/jpeep/internal/bytecode"
)

func chains(t *testing.T, m *bytecode.Method) *Chains {
	t.Helper()
	c, err := MatchStoresWithLoads(m)
	if err != nil {
		t.Fatalf("MatchStoresWithLoads failed: %v", err)
	}
	return c
}

func expectInsns(t *testing.T, what string, got []bytecode.Insn, want ...bytecode.Insn) {
	t.Helper()
	if !slices.Equal(got, want) {
		t.Errorf("%s: got %d instructions %v, want %d %v", what, len(got), ids(got), len(want), ids(want))
	}
}

func ids(insns []bytecode.Insn) []int {
	out := make([]int, len(insns))
	for i, insn := range insns {
		out[i] = insn.ID()
	}
	return out
}

func TestChainsStraightLine(t *testing.T) {
	store := bytecode.NewVarInsn(bytecode.OpIstore, 0)
	load := bytecode.NewVarInsn(bytecode.OpIload, 0)
	m := newMethod("()I", true, op(bytecode.OpIconst1), store, load, op(bytecode.OpIreturn))

	c := chains(t, m)
	expectInsns(t, "LoadsOf(store)", c.LoadsOf(store), load)
	expectInsns(t, "StoresOf(load)", c.StoresOf(load), store)
}

func TestChainsOverwrite(t *testing.T) {
	first := bytecode.NewVarInsn(bytecode.OpIstore, 0)
	second := bytecode.NewVarInsn(bytecode.OpIstore, 0)
	load := bytecode.NewVarInsn(bytecode.OpIload, 0)
	m := newMethod("()I", true,
		op(bytecode.OpIconst1), first,
		op(bytecode.OpIconst2), second,
		load, op(bytecode.OpIreturn),
	)

	c := chains(t, m)
	if n := c.LoadCount(first); n != 0 {
		t.Errorf("overwritten store has %d loads, want 0", n)
	}
	expectInsns(t, "StoresOf(load)", c.StoresOf(load), second)
}

func TestChainsBranchUnion(t *testing.T) {
	elseL, endL := bytecode.NewLabel(), bytecode.NewLabel()
	s1 := bytecode.NewVarInsn(bytecode.OpIstore, 1)
	s2 := bytecode.NewVarInsn(bytecode.OpIstore, 1)
	load := bytecode.NewVarInsn(bytecode.OpIload, 1)
	m := newMethod("(I)I", true,
		bytecode.NewVarInsn(bytecode.OpIload, 0),
		bytecode.NewJumpInsn(bytecode.OpIfeq, elseL),
		op(bytecode.OpIconst1), s1,
		bytecode.NewJumpInsn(bytecode.OpGoto, endL),
		elseL,
		op(bytecode.OpIconst2), s2,
		endL,
		load, op(bytecode.OpIreturn),
	)

	c := chains(t, m)
	expectInsns(t, "StoresOf(load)", c.StoresOf(load), s1, s2)
	expectInsns(t, "LoadsOf(s1)", c.LoadsOf(s1), load)
	expectInsns(t, "LoadsOf(s2)", c.LoadsOf(s2), load)
}

// 一条路径上是参数、另一条路径上是存储时，存储仍然到达加载
func TestChainsMergeWithParameterKeepsStore(t *testing.T) {
	endL := bytecode.NewLabel()
	param := bytecode.NewVarInsn(bytecode.OpIload, 0)
	store := bytecode.NewVarInsn(bytecode.OpIstore, 0)
	load := bytecode.NewVarInsn(bytecode.OpIload, 0)
	m := newMethod("(I)I", true,
		param,
		bytecode.NewJumpInsn(bytecode.OpIfeq, endL),
		op(bytecode.OpIconst5), store,
		endL,
		load, op(bytecode.OpIreturn),
	)

	c := chains(t, m)
	expectInsns(t, "StoresOf(param load)", c.StoresOf(param))
	expectInsns(t, "StoresOf(load)", c.StoresOf(load), store)
	expectInsns(t, "LoadsOf(store)", c.LoadsOf(store), load)
}

func TestChainsIinc(t *testing.T) {
	store := bytecode.NewVarInsn(bytecode.OpIstore, 0)
	inc := bytecode.NewIincInsn(0, 1)
	load := bytecode.NewVarInsn(bytecode.OpIload, 0)
	m := newMethod("()I", true, op(bytecode.OpIconst0), store, inc, load, op(bytecode.OpIreturn))

	c := chains(t, m)
	expectInsns(t, "LoadsOf(store)", c.LoadsOf(store), inc)
	expectInsns(t, "LoadsOf(inc)", c.LoadsOf(inc), load)
	expectInsns(t, "StoresOf(load)", c.StoresOf(load), inc)
}

func TestChainsLoop(t *testing.T) {
	loop := bytecode.NewLabel()
	store := bytecode.NewVarInsn(bytecode.OpIstore, 0)
	inc := bytecode.NewIincInsn(0, 1)
	cond := bytecode.NewVarInsn(bytecode.OpIload, 0)
	result := bytecode.NewVarInsn(bytecode.OpIload, 0)
	m := newMethod("()I", true,
		op(bytecode.OpIconst0), store,
		loop,
		inc,
		cond,
		bytecode.NewIntInsn(bytecode.OpBipush, 10),
		bytecode.NewJumpInsn(bytecode.OpIfIcmplt, loop),
		result, op(bytecode.OpIreturn),
	)

	c := chains(t, m)
	expectInsns(t, "StoresOf(inc)", c.StoresOf(inc), store, inc)
	expectInsns(t, "StoresOf(cond)", c.StoresOf(cond), inc)
	expectInsns(t, "LoadsOf(inc)", c.LoadsOf(inc), inc, cond, result)
}

func TestChainsIdentityNotContent(t *testing.T) {
	s1 := bytecode.NewVarInsn(bytecode.OpIstore, 0)
	l1 := bytecode.NewVarInsn(bytecode.OpIload, 0)
	s2 := bytecode.NewVarInsn(bytecode.OpIstore, 0)
	l2 := bytecode.NewVarInsn(bytecode.OpIload, 0)
	m := newMethod("()I", true,
		op(bytecode.OpIconst1), s1, l1, op(bytecode.OpPop),
		op(bytecode.OpIconst1), s2, l2, op(bytecode.OpIreturn),
	)

	c := chains(t, m)
	expectInsns(t, "LoadsOf(s1)", c.LoadsOf(s1), l1)
	expectInsns(t, "LoadsOf(s2)", c.LoadsOf(s2), l2)
}

func TestChainsExceptionHandler(t *testing.T) {
	start, end, handler := bytecode.NewLabel(), bytecode.NewLabel(), bytecode.NewLabel()
	store := bytecode.NewVarInsn(bytecode.OpIstore, 0)
	load := bytecode.NewVarInsn(bytecode.OpIload, 0)
	m := newMethod("()I", true,
		start,
		op(bytecode.OpIconst1), store,
		bytecode.NewMethodInsn(bytecode.OpInvokestatic, "Test", "f", "()V", false),
		end,
		op(bytecode.OpIconst0), op(bytecode.OpIreturn),
		handler,
		op(bytecode.OpPop),
		load, op(bytecode.OpIreturn),
	)
	m.TryCatchBlocks = []*bytecode.TryCatchBlock{{Start: start, End: end, Handler: handler, Type: "java/lang/Exception"}}

	c := chains(t, m)
	expectInsns(t, "StoresOf(handler load)", c.StoresOf(load), store)
}

func TestStoredValueMerge(t *testing.T) {
	s1 := bytecode.NewVarInsn(bytecode.OpIstore, 0)
	s2 := bytecode.NewVarInsn(bytecode.OpIstore, 0)
	newMethod("()V", true, s1, s2)

	interp := StoreLoadInterpreter{}
	a := NewStoredValue(IntValue, s1)
	b := NewStoredValue(IntValue, s2)

	merged, ok := interp.Merge(b, a).(*StoredValue)
	if !ok {
		t.Fatalf("merge of two stored values lost provenance")
	}
	expectInsns(t, "merged stores", merged.Stores(), s1, s2)

	if again := interp.Merge(merged, a); again != Value(merged) {
		t.Errorf("merging a subset should return the original value")
	}

	mixed, ok := interp.Merge(IntValue, a).(*StoredValue)
	if !ok {
		t.Fatalf("merge with a plain value dropped provenance")
	}
	expectInsns(t, "mixed stores", mixed.Stores(), s1)

	conflict := interp.Merge(NewStoredValue(LongValue, s1), b).(*StoredValue)
	if conflict.Basic() != Uninitialized {
		t.Errorf("type conflict: got %s, want %s", conflict.Basic(), Uninitialized)
	}

	if v := interp.Merge(IntValue, FloatValue); v != Value(Uninitialized) {
		t.Errorf("plain merge: got %v, want Uninitialized", v)
	}
}
