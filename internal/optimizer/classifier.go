// Package optimizer 实现字节码窥孔优化
//
// 每个方法先建立一次元数据分类（Classifier）和存储-加载关系（analysis.Chains），
// 随后 Transformer 反复扫描指令流，按优先级尝试每条规则，直到一遍扫描没有任何改写。
// 事实在改写过程中不重新计算，规则只依赖尚未被删除的指令的事实。
package optimizer

import (
	"github.com/tangzhangming/jpeep/internal/bytecode"
)

// ============================================================================
// 元数据分类
// ============================================================================

// Classifier 方法的只读元数据视图
type Classifier struct {
	list       *bytecode.InsnList
	meaningful map[*bytecode.Label]struct{}
	ranges     map[int][]*bytecode.LocalVariable // 槽位 -> 调试变量范围
}

// NewClassifier 扫描一次方法，收集被引用的标签和调试变量范围
func NewClassifier(m *bytecode.Method) *Classifier {
	c := &Classifier{
		list:       m.Instructions,
		meaningful: make(map[*bytecode.Label]struct{}),
		ranges:     make(map[int][]*bytecode.LocalVariable),
	}
	mark := func(l *bytecode.Label) {
		if l != nil {
			c.meaningful[l] = struct{}{}
		}
	}

	for _, lv := range m.LocalVariables {
		mark(lv.Start)
		mark(lv.End)
		c.ranges[lv.Index] = append(c.ranges[lv.Index], lv)
	}
	for _, tcb := range m.TryCatchBlocks {
		mark(tcb.Start)
		mark(tcb.End)
		mark(tcb.Handler)
	}
	for insn := m.Instructions.First(); insn != nil; insn = insn.Next() {
		if ln, ok := insn.(*bytecode.LineNumber); ok {
			mark(ln.Start)
			continue
		}
		for _, l := range bytecode.JumpTargets(insn) {
			mark(l)
		}
	}
	return c
}

// IsMeaningfulLabel 标签是否被跳转、switch、异常表、调试变量或行号引用
func (c *Classifier) IsMeaningfulLabel(l *bytecode.Label) bool {
	_, ok := c.meaningful[l]
	return ok
}

// IsObservableStore 存储或 iinc 是否落在该槽位某个调试变量的范围内（两端包含）
//
// long/double 的存储同时覆盖下一个槽位。端点标签不在指令流中的范围被忽略。
func (c *Classifier) IsObservableStore(insn bytecode.Insn) bool {
	slot, ok := bytecode.VarIndex(insn)
	if !ok || (!bytecode.IsStore(insn) && insn.Opcode() != bytecode.OpIinc) {
		return false
	}
	pos := c.list.IndexOf(insn)
	if pos < 0 {
		return false
	}
	if c.covers(slot, pos) {
		return true
	}
	return insn.Opcode().IsWide() && c.covers(slot+1, pos)
}

func (c *Classifier) covers(slot, pos int) bool {
	for _, lv := range c.ranges[slot] {
		start, end := c.list.IndexOf(lv.Start), c.list.IndexOf(lv.End)
		if start < 0 || end < 0 {
			continue
		}
		if start <= pos && pos <= end {
			return true
		}
	}
	return false
}
