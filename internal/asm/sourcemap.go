package asm

import "github.com/tangzhangming/jpeep/internal/bytecode"

// SourceMap 记录方法和指令在清单中的行号（从 1 开始）
//
// 以节点身份为键，改写后仍留在链表中的原始节点可以继续查到行号；
// 改写时新建的节点没有记录。
type SourceMap struct {
	methods map[*bytecode.Method]int
	insns   map[bytecode.Insn]int
}

func newSourceMap() *SourceMap {
	return &SourceMap{
		methods: make(map[*bytecode.Method]int),
		insns:   make(map[bytecode.Insn]int),
	}
}

// MethodLine .method 指令所在行，未知时返回 0
func (s *SourceMap) MethodLine(m *bytecode.Method) int {
	if s == nil {
		return 0
	}
	return s.methods[m]
}

// InsnLine 指令所在行，未知时返回 0
func (s *SourceMap) InsnLine(insn bytecode.Insn) int {
	if s == nil {
		return 0
	}
	return s.insns[insn]
}
