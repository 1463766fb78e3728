package optimizer

import (
	"testing"

	"github.com/tangzhangming/jpeep/internal/asm"
	"github.com/tangzhangming/jpeep/internal/bytecode"
)

// labelsByName 方法中的全部标签
func labelsByName(m *bytecode.Method) map[string]*bytecode.Label {
	out := make(map[string]*bytecode.Label)
	for insn := m.Instructions.First(); insn != nil; insn = insn.Next() {
		if l, ok := insn.(*bytecode.Label); ok {
			out[l.Name] = l
		}
	}
	return out
}

func TestMeaningfulLabels(t *testing.T) {
	m := asm.MustParseMethod(`
.method static f(I)V
  .catch all from Try to TryEnd using Handler
  .var 0 is x I from VarStart to VarEnd
VarStart:
Try:
  iload 0
  tableswitch 0 Case0 default Default
Case0:
  iload 0
  lookupswitch 3:Case3 default Default
Case3:
  goto Jump
Jump:
TryEnd:
  return
Default:
  return
Handler:
  pop
Line:
  .line 12 Line
Scaffold:
  return
VarEnd:
Dead:
.end method`)
	c := NewClassifier(m)
	labels := labelsByName(m)

	for name, want := range map[string]bool{
		"VarStart": true, "VarEnd": true,
		"Try": true, "TryEnd": true, "Handler": true,
		"Case0": true, "Case3": true, "Default": true, "Jump": true,
		"Line": true, "Scaffold": false, "Dead": false,
	} {
		l, ok := labels[name]
		if !ok {
			t.Fatalf("label %s not found", name)
		}
		if got := c.IsMeaningfulLabel(l); got != want {
			t.Errorf("IsMeaningfulLabel(%s): got %v, want %v", name, got, want)
		}
	}

	if c.IsMeaningfulLabel(bytecode.NewLabel()) {
		t.Error("a foreign label should not be meaningful")
	}
}

func TestObservableStore(t *testing.T) {
	m := asm.MustParseMethod(`
.method static f()V
  .var 1 is x I from Start to End
  .var 3 is y J from WideStart to WideEnd
  iconst_0
  istore 1
Start:
  iconst_1
  istore 1
  iinc 1 2
  iconst_2
  istore 2
End:
  iconst_3
  istore 1
  lconst_0
  lstore 2
WideStart:
  lconst_1
  lstore 2
WideEnd:
  return
.end method`)
	c := NewClassifier(m)

	var stores []bytecode.Insn
	for insn := m.Instructions.First(); insn != nil; insn = insn.Next() {
		if bytecode.IsStore(insn) || insn.Opcode() == bytecode.OpIinc {
			stores = append(stores, insn)
		}
	}
	// istore 1, istore 1, iinc 1, istore 2, istore 1, lstore 2, lstore 2
	want := []bool{false, true, true, false, false, false, true}
	if len(stores) != len(want) {
		t.Fatalf("found %d stores, want %d", len(stores), len(want))
	}
	for i, s := range stores {
		if got := c.IsObservableStore(s); got != want[i] {
			t.Errorf("store %d (%s): got %v, want %v", i, bytecode.FormatInsn(s, bytecode.NewLabeler(m.Instructions)), got, want[i])
		}
	}

	load := bytecode.NewVarInsn(bytecode.OpIload, 1)
	if c.IsObservableStore(load) {
		t.Error("a load is never an observable store")
	}
}

func TestObservableStoreMissingLabel(t *testing.T) {
	m := asm.MustParseMethod(`
.method static f()V
  .var 0 is x I from Start to End
Start:
  iconst_1
  istore 0
End:
  iconst_2
  istore 0
  return
.end method`)
	c := NewClassifier(m)
	first := m.Instructions.First().Next().Next()
	if !c.IsObservableStore(first) {
		t.Error("store inside the range should be observable")
	}

	// 端点标签被移出指令流后，该范围不再生效
	labels := labelsByName(m)
	m.Instructions.Remove(labels["End"])
	if c.IsObservableStore(first) {
		t.Error("range with a missing end label should be ignored")
	}
}
