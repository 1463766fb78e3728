package optimizer

import (
	"github.com/tangzhangming/jpeep/internal/bytecode"
)

// ============================================================================
// 模式匹配
// ============================================================================

// Matcher 从某条指令开始逐条匹配的游标
//
// 任一 Expect 失败后匹配器进入失败状态，之后的 Expect 都直接返回失败，
// 规则体可以连续书写期望，最后检查一次 OK 即可。匹配器从不修改指令流。
type Matcher struct {
	cur    bytecode.Insn
	failed bool
}

// NewMatcher 创建从 start 开始的匹配器
func NewMatcher(start bytecode.Insn) *Matcher {
	return &Matcher{cur: start, failed: start == nil}
}

// OK 目前为止的期望是否全部满足
func (m *Matcher) OK() bool { return !m.failed }

// Current 下一条待匹配的指令
func (m *Matcher) Current() bytecode.Insn { return m.cur }

func (m *Matcher) advance() {
	if m.cur != nil {
		m.cur = m.cur.Next()
	}
}

func match[T bytecode.Insn](cur bytecode.Insn, op bytecode.Opcode, pred func(T) bool) (T, bool) {
	var zero T
	if cur == nil {
		return zero, false
	}
	n, ok := cur.(T)
	if !ok || (op != bytecode.OpNone && n.Opcode() != op) {
		return zero, false
	}
	if pred != nil && !pred(n) {
		return zero, false
	}
	return n, true
}

// Expect 当前指令必须是 T 并满足 pred（可为 nil），否则整个匹配失败
func Expect[T bytecode.Insn](m *Matcher, pred func(T) bool) (T, bool) {
	return ExpectOp(m, bytecode.OpNone, pred)
}

// ExpectOp 同 Expect，另外要求操作码为 op；op 为 OpNone 时不限制
func ExpectOp[T bytecode.Insn](m *Matcher, op bytecode.Opcode, pred func(T) bool) (T, bool) {
	var zero T
	if m.failed {
		return zero, false
	}
	n, ok := match(m.cur, op, pred)
	if !ok {
		m.failed = true
		return zero, false
	}
	m.advance()
	return n, true
}

// TryExpect 可选元素：不匹配时游标不动，也不进入失败状态
func TryExpect[T bytecode.Insn](m *Matcher, pred func(T) bool) (T, bool) {
	return TryExpectOp(m, bytecode.OpNone, pred)
}

// TryExpectOp 带操作码限制的 TryExpect
func TryExpectOp[T bytecode.Insn](m *Matcher, op bytecode.Opcode, pred func(T) bool) (T, bool) {
	var zero T
	if m.failed {
		return zero, false
	}
	n, ok := match(m.cur, op, pred)
	if !ok {
		return zero, false
	}
	m.advance()
	return n, true
}

// Opcode 只按操作码匹配
func (m *Matcher) Opcode(op bytecode.Opcode) (bytecode.Insn, bool) {
	return ExpectOp[bytecode.Insn](m, op, nil)
}

// TryOpcode 可选的按操作码匹配
func (m *Matcher) TryOpcode(op bytecode.Opcode) (bytecode.Insn, bool) {
	return TryExpectOp[bytecode.Insn](m, op, nil)
}
