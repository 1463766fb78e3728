package optimizer

import (
	"fmt"
	"strings"

	"github.com/tangzhangming/jpeep/internal/analysis"
	"github.com/tangzhangming/jpeep/internal/bytecode"
)

// Context 一个方法优化期间规则可用的事实
type Context struct {
	Method     *bytecode.Method
	Classifier *Classifier
	Chains     *analysis.Chains
	Symbols    *OutputSymbols
}

// Rule 窥孔规则
//
// TryRewrite 尝试从 insn 开始匹配并改写。成功时返回驱动器应继续扫描的指令，
// 失败时返回 nil 且不修改指令流。
type Rule interface {
	Name() string
	TryRewrite(list *bytecode.InsnList, insn bytecode.Insn, ctx *Context) bytecode.Insn
}

// 规则名，用于配置和统计
const (
	RuleIfNot = "if-not"
	RulePrint = "print"
)

var ruleFactories = map[string]func() Rule{
	RuleIfNot: func() Rule { return IfNotRule{} },
	RulePrint: func() Rule { return PrintRule{} },
}

// RuleNames 所有已知规则名
func RuleNames() []string {
	return []string{RuleIfNot, RulePrint}
}

// DefaultRules 默认规则及其优先级
func DefaultRules() []Rule {
	return []Rule{IfNotRule{}, PrintRule{}}
}

// RulesFromNames 按给定顺序构造规则列表
func RulesFromNames(names []string) ([]Rule, error) {
	rules := make([]Rule, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		factory, ok := ruleFactories[name]
		if !ok {
			return nil, fmt.Errorf("unknown rule %q (known: %s)", name, strings.Join(RuleNames(), ", "))
		}
		if seen[name] {
			return nil, fmt.Errorf("rule %q listed twice", name)
		}
		seen[name] = true
		rules = append(rules, factory())
	}
	return rules, nil
}

// ============================================================================
// iconst_1; ixor; ifeq/ifne
// ============================================================================

// IfNotRule 把取反后的零值测试合并为相反的条件跳转
//
//	iconst_1           ifne L
//	ixor        =>
//	ifeq L
type IfNotRule struct{}

func (IfNotRule) Name() string { return RuleIfNot }

func (IfNotRule) TryRewrite(list *bytecode.InsnList, insn bytecode.Insn, _ *Context) bytecode.Insn {
	m := NewMatcher(insn)
	one, _ := m.Opcode(bytecode.OpIconst1)
	xor, _ := m.Opcode(bytecode.OpIxor)
	jump, _ := Expect(m, func(j *bytecode.JumpInsn) bool {
		return j.Opcode() == bytecode.OpIfeq || j.Opcode() == bytecode.OpIfne
	})
	if !m.OK() {
		return nil
	}

	inverted := bytecode.NewJumpInsn(bytecode.OpIfeq+bytecode.OpIfne-jump.Opcode(), jump.Target)
	list.Remove(one)
	list.Remove(xor)
	list.Set(jump, inverted)
	return inverted
}

// ============================================================================
// xstore v; [nop]; [label]; getstatic out; xload v; invokevirtual print
// ============================================================================

// PrintRule 消除只为打印而存在的临时变量
//
// 被存储的值如果由常量或局部变量加载产生，把 getstatic 移到它前面；
// 否则在 getstatic 之后交换栈顶两个值（二类值用 dup_x2; pop）。
type PrintRule struct{}

func (PrintRule) Name() string { return RulePrint }

func (PrintRule) TryRewrite(list *bytecode.InsnList, insn bytecode.Insn, ctx *Context) bytecode.Insn {
	m := NewMatcher(insn)
	store, _ := Expect(m, func(v *bytecode.VarInsn) bool { return v.Opcode().IsStore() })
	m.TryOpcode(bytecode.OpNop)
	label, hasLabel := TryExpect[*bytecode.Label](m, nil)
	field, _ := Expect(m, ctx.Symbols.IsOutputField)
	load, _ := Expect(m, func(v *bytecode.VarInsn) bool {
		return v.Var == store.Var && v.Opcode() == store.Opcode()-(bytecode.OpIstore-bytecode.OpIload)
	})
	Expect(m, ctx.Symbols.IsOutputMethod)
	if !m.OK() {
		return nil
	}

	if ctx.Classifier.IsObservableStore(store) {
		return nil
	}
	if loads := ctx.Chains.LoadsOf(store); len(loads) != 1 || loads[0] != bytecode.Insn(load) {
		return nil
	}
	if hasLabel && ctx.Classifier.IsMeaningfulLabel(label) {
		return nil
	}

	prev := store.Prev()
	list.Remove(store)
	list.Remove(load)
	switch {
	case prev != nil && prev.Opcode() >= bytecode.OpAconstNull && prev.Opcode() <= bytecode.OpAload:
		list.Remove(field)
		list.InsertBefore(prev, field)
	case store.Opcode().IsWide():
		dupX2 := bytecode.NewInsn(bytecode.OpDupX2)
		list.InsertAfter(field, dupX2)
		list.InsertAfter(dupX2, bytecode.NewInsn(bytecode.OpPop))
	default:
		list.InsertAfter(field, bytecode.NewInsn(bytecode.OpSwap))
	}
	return field
}
