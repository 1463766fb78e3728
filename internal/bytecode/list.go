package bytecode

import (
	"iter"
	"sync/atomic"
)

// nodeIDs 全局递增的节点编号，多个方法并行优化时也不会重复
var nodeIDs atomic.Int64

// InsnList 可变的双向指令链表
//
// 插入、删除、替换都是 O(1)，修改立即对后续遍历可见。
// IndexOf 依赖按需重建的位置缓存，只应用于范围判断，不要放在热路径上。
type InsnList struct {
	first, last Insn
	size        int
	cache       map[Insn]int // 节点 -> 位置；结构变化后置空
}

// NewInsnList 创建空指令链表
func NewInsnList() *InsnList {
	return &InsnList{}
}

// First 返回第一条指令，空链表返回 nil
func (l *InsnList) First() Insn { return l.first }

// Last 返回最后一条指令
func (l *InsnList) Last() Insn { return l.last }

// Len 返回节点数（含标签、行号等伪指令）
func (l *InsnList) Len() int { return l.size }

// Contains 节点当前是否属于该链表
func (l *InsnList) Contains(insn Insn) bool {
	return insn != nil && insn.base().owner == l
}

// IndexOf 返回节点位置，不在链表中时返回 -1
func (l *InsnList) IndexOf(insn Insn) int {
	if !l.Contains(insn) {
		return -1
	}
	if l.cache == nil {
		l.cache = make(map[Insn]int, l.size)
		i := 0
		for n := l.first; n != nil; n = n.Next() {
			l.cache[n] = i
			i++
		}
	}
	return l.cache[insn]
}

// Add 追加到链表末尾
func (l *InsnList) Add(insn Insn) {
	n := l.adopt(insn)
	if l.last == nil {
		l.first = insn
	} else {
		l.last.base().next = insn
		n.prev = l.last
	}
	l.last = insn
}

// InsertBefore 把 insn 插入到 anchor 之前
func (l *InsnList) InsertBefore(anchor, insn Insn) {
	l.mustOwn(anchor)
	n := l.adopt(insn)
	a := anchor.base()
	n.prev = a.prev
	n.next = anchor
	if a.prev == nil {
		l.first = insn
	} else {
		a.prev.base().next = insn
	}
	a.prev = insn
}

// InsertAfter 把 insn 插入到 anchor 之后
func (l *InsnList) InsertAfter(anchor, insn Insn) {
	l.mustOwn(anchor)
	n := l.adopt(insn)
	a := anchor.base()
	n.next = a.next
	n.prev = anchor
	if a.next == nil {
		l.last = insn
	} else {
		a.next.base().prev = insn
	}
	a.next = insn
}

// Remove 从链表中删除节点，其他节点的身份不受影响
func (l *InsnList) Remove(insn Insn) {
	l.mustOwn(insn)
	n := insn.base()
	if n.prev == nil {
		l.first = n.next
	} else {
		n.prev.base().next = n.next
	}
	if n.next == nil {
		l.last = n.prev
	} else {
		n.next.base().prev = n.prev
	}
	n.prev, n.next, n.owner = nil, nil, nil
	l.size--
	l.cache = nil
}

// Set 用 replacement 替换 old
func (l *InsnList) Set(old, replacement Insn) {
	l.InsertAfter(old, replacement)
	l.Remove(old)
}

// Slice 按顺序返回所有节点的快照
func (l *InsnList) Slice() []Insn {
	out := make([]Insn, 0, l.size)
	for n := l.first; n != nil; n = n.Next() {
		out = append(out, n)
	}
	return out
}

// All 按顺序遍历 (位置, 节点)
//
// 遍历期间修改链表时位置不再可靠。
func (l *InsnList) All() iter.Seq2[int, Insn] {
	return func(yield func(int, Insn) bool) {
		i := 0
		for n := l.first; n != nil; {
			next := n.Next()
			if !yield(i, n) {
				return
			}
			n = next
			i++
		}
	}
}

// adopt 接管一个游离节点，分配稳定编号
func (l *InsnList) adopt(insn Insn) *node {
	n := insn.base()
	if n.owner != nil {
		panic("bytecode: instruction " + insn.Opcode().String() + " already belongs to a list")
	}
	n.owner = l
	if n.id == 0 {
		n.id = int(nodeIDs.Add(1))
	}
	l.size++
	l.cache = nil
	return n
}

func (l *InsnList) mustOwn(insn Insn) {
	if insn == nil || insn.base().owner != l {
		panic("bytecode: instruction does not belong to this list")
	}
}
