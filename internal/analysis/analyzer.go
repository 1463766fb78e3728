package analysis

import (
	"errors"
	"fmt"

	"github.com/tangzhangming/jpeep/internal/bytecode"
)

var (
	ErrStackUnderflow = errors.New("operand stack underflow")
	ErrStackMismatch  = errors.New("inconsistent stack height at merge point")
	ErrBadStackShape  = errors.New("invalid operand category")
	ErrBadLocal       = errors.New("local variable index out of range")
	ErrSubroutine     = errors.New("jsr/ret subroutines are not supported")
	ErrFallOff        = errors.New("execution falls off the end of the method")
	ErrUnknownTarget  = errors.New("label is not part of the method")
	ErrUnsupported    = errors.New("unsupported instruction")
)

// Error 分析失败的位置
type Error struct {
	Method string
	Index  int
	Op     bytecode.Opcode
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("analysis of %s failed at instruction %d (%s): %v", e.Method, e.Index, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Analyzer 前向数据流分析器
type Analyzer struct {
	interp Interpreter
}

// NewAnalyzer 创建使用给定解释器的分析器
func NewAnalyzer(interp Interpreter) *Analyzer {
	return &Analyzer{interp: interp}
}

type handlerEdge struct {
	target int
}

// Analyze 计算每条指令执行前的帧
//
// 返回的切片与 m.Instructions 按下标一一对应，不可达指令的帧为 nil。
func (a *Analyzer) Analyze(m *bytecode.Method) ([]*Frame, error) {
	list := m.Instructions
	n := list.Len()
	if n == 0 {
		return nil, nil
	}
	insns := list.Slice()

	fail := func(i int, err error) error {
		op := bytecode.OpNone
		if i >= 0 && i < n {
			op = insns[i].Opcode()
		}
		return &Error{Method: m.String(), Index: i, Op: op, Err: err}
	}
	indexOf := func(l *bytecode.Label) int {
		if l == nil {
			return -1
		}
		return list.IndexOf(l)
	}

	handlers := make([][]handlerEdge, n)
	for _, tcb := range m.TryCatchBlocks {
		start, end, h := indexOf(tcb.Start), indexOf(tcb.End), indexOf(tcb.Handler)
		if start < 0 || end < 0 || h < 0 {
			return nil, fail(-1, fmt.Errorf("%w: try/catch block", ErrUnknownTarget))
		}
		for i := start; i < end; i++ {
			handlers[i] = append(handlers[i], handlerEdge{target: h})
		}
	}

	initial, err := a.initialFrame(m)
	if err != nil {
		return nil, fail(0, err)
	}

	frames := make([]*Frame, n)
	queued := make([]bool, n)
	var work []int

	merge := func(j int, f *Frame) error {
		if frames[j] == nil {
			frames[j] = f.Clone()
		} else {
			changed, err := frames[j].Merge(f, a.interp)
			if err != nil {
				return err
			}
			if !changed {
				return nil
			}
		}
		if !queued[j] {
			queued[j] = true
			work = append(work, j)
		}
		return nil
	}
	if err := merge(0, initial); err != nil {
		return nil, fail(0, err)
	}

	for len(work) > 0 {
		i := work[len(work)-1]
		work = work[:len(work)-1]
		queued[i] = false

		insn := insns[i]
		after := frames[i].Clone()
		if err := after.Execute(insn, a.interp); err != nil {
			return nil, fail(i, err)
		}

		for _, l := range bytecode.JumpTargets(insn) {
			j := indexOf(l)
			if j < 0 {
				return nil, fail(i, fmt.Errorf("%w: jump target", ErrUnknownTarget))
			}
			if err := merge(j, after); err != nil {
				return nil, fail(j, err)
			}
		}
		if insn.Opcode().Falls() {
			if i+1 >= n {
				return nil, fail(i, ErrFallOff)
			}
			if err := merge(i+1, after); err != nil {
				return nil, fail(i+1, err)
			}
		}

		for _, h := range handlers[i] {
			hf := frames[i].Clone()
			hf.ClearStack()
			hf.Push(a.interp.NewValue(ReferenceValue))
			if err := merge(h.target, hf); err != nil {
				return nil, fail(h.target, err)
			}
		}
	}
	return frames, nil
}

// initialFrame 方法入口处的帧：this 与参数
func (a *Analyzer) initialFrame(m *bytecode.Method) (*Frame, error) {
	args, _, err := bytecode.ParseMethodDescriptor(m.Desc)
	if err != nil {
		return nil, err
	}
	f := NewFrame(m.ComputeMaxLocals())
	for i := range f.locals {
		f.locals[i] = a.interp.NewValue(Uninitialized)
	}
	slot := 0
	if !m.IsStatic() {
		if err := f.SetLocal(slot, a.interp.NewValue(ReferenceValue)); err != nil {
			return nil, err
		}
		slot++
	}
	for _, arg := range args {
		if err := f.SetLocal(slot, a.interp.NewValue(BasicOf(arg))); err != nil {
			return nil, err
		}
		slot += bytecode.DescriptorSize(arg)
	}
	return f, nil
}

// MaxStack 所有可达帧中操作数栈占用的最大字数
func MaxStack(frames []*Frame) int {
	n := 0
	for _, f := range frames {
		if f != nil {
			n = max(n, f.StackWords())
		}
	}
	return n
}
