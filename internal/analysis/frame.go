package analysis

import (
	"fmt"
	"strings"

	"github.com/tangzhangming/jpeep/internal/bytecode"
)

// Frame 某条指令执行前的局部变量与操作数栈快照
type Frame struct {
	locals []Value
	stack  []Value
}

// NewFrame 创建局部变量全部未初始化、栈为空的帧
func NewFrame(nLocals int) *Frame {
	f := &Frame{locals: make([]Value, nLocals)}
	for i := range f.locals {
		f.locals[i] = Uninitialized
	}
	return f
}

// Clone 深拷贝（值本身不可变，只复制切片）
func (f *Frame) Clone() *Frame {
	return &Frame{
		locals: append([]Value(nil), f.locals...),
		stack:  append([]Value(nil), f.stack...),
	}
}

// Locals 局部变量槽位数
func (f *Frame) Locals() int { return len(f.locals) }

// Local 返回槽位 i 的值，越界时返回 Uninitialized
func (f *Frame) Local(i int) Value {
	if i < 0 || i >= len(f.locals) {
		return Uninitialized
	}
	return f.locals[i]
}

// SetLocal 设置槽位 i 的值
func (f *Frame) SetLocal(i int, v Value) error {
	if i < 0 || i >= len(f.locals) {
		return fmt.Errorf("%w: slot %d of %d", ErrBadLocal, i, len(f.locals))
	}
	f.locals[i] = v
	return nil
}

// StackSize 栈上的值个数
func (f *Frame) StackSize() int { return len(f.stack) }

// Stack 返回栈上第 i 个值（0 为栈底）
func (f *Frame) Stack(i int) Value { return f.stack[i] }

// StackWords 栈占用的字数，long/double 计两个字
func (f *Frame) StackWords() int {
	n := 0
	for _, v := range f.stack {
		n += v.Size()
	}
	return n
}

// Push 压栈；nil 视为 Uninitialized 以保持栈形状
func (f *Frame) Push(v Value) {
	if v == nil {
		v = Uninitialized
	}
	f.stack = append(f.stack, v)
}

// Pop 弹栈
func (f *Frame) Pop() (Value, error) {
	if len(f.stack) == 0 {
		return nil, ErrStackUnderflow
	}
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v, nil
}

// ClearStack 清空操作数栈
func (f *Frame) ClearStack() { f.stack = f.stack[:0] }

// popN 按入栈顺序返回栈顶 n 个值
func (f *Frame) popN(n int) ([]Value, error) {
	if len(f.stack) < n {
		return nil, ErrStackUnderflow
	}
	out := append([]Value(nil), f.stack[len(f.stack)-n:]...)
	f.stack = f.stack[:len(f.stack)-n]
	return out, nil
}

// Merge 把 other 合并进 f，返回 f 是否发生变化
func (f *Frame) Merge(other *Frame, interp Interpreter) (bool, error) {
	if len(f.stack) != len(other.stack) {
		return false, fmt.Errorf("%w: %d vs %d", ErrStackMismatch, len(f.stack), len(other.stack))
	}
	changed := false
	for i := range f.locals {
		if i >= len(other.locals) {
			break
		}
		v := interp.Merge(f.locals[i], other.locals[i])
		if !equalValues(v, f.locals[i]) {
			f.locals[i] = v
			changed = true
		}
	}
	for i := range f.stack {
		v := interp.Merge(f.stack[i], other.stack[i])
		if !equalValues(v, f.stack[i]) {
			f.stack[i] = v
			changed = true
		}
	}
	return changed, nil
}

func (f *Frame) String() string {
	var sb strings.Builder
	for _, v := range f.locals {
		sb.WriteString(v.Basic().String())
	}
	sb.WriteByte(' ')
	for _, v := range f.stack {
		sb.WriteString(v.Basic().String())
	}
	return sb.String()
}

// Execute 模拟一条指令对帧的作用
func (f *Frame) Execute(insn bytecode.Insn, interp Interpreter) error {
	op := insn.Opcode()
	switch {
	case op == bytecode.OpNone, op == bytecode.OpNop, op == bytecode.OpGoto, op == bytecode.OpReturn:
		return nil

	case op.IsConstant():
		f.Push(interp.NewOperation(insn))
		return nil

	case op.IsLoad():
		v := insn.(*bytecode.VarInsn)
		f.Push(interp.CopyOperation(insn, f.Local(v.Var)))
		return nil

	case op.IsStore():
		return f.executeStore(insn.(*bytecode.VarInsn), interp)

	case op == bytecode.OpIinc:
		n := insn.(*bytecode.IincInsn)
		return f.SetLocal(n.Var, interp.UnaryOperation(insn, f.Local(n.Var)))

	case op >= bytecode.OpPop && op <= bytecode.OpSwap:
		return f.executeStackOp(insn, interp)

	case op == bytecode.OpJsr, op == bytecode.OpRet:
		return ErrSubroutine
	}

	switch op {
	case bytecode.OpIaload, bytecode.OpLaload, bytecode.OpFaload, bytecode.OpDaload,
		bytecode.OpAaload, bytecode.OpBaload, bytecode.OpCaload, bytecode.OpSaload:
		return f.binary(insn, interp, true)

	case bytecode.OpIastore, bytecode.OpLastore, bytecode.OpFastore, bytecode.OpDastore,
		bytecode.OpAastore, bytecode.OpBastore, bytecode.OpCastore, bytecode.OpSastore:
		vs, err := f.popN(3)
		if err != nil {
			return err
		}
		interp.TernaryOperation(insn, vs[0], vs[1], vs[2])
		return nil

	case bytecode.OpIneg, bytecode.OpLneg, bytecode.OpFneg, bytecode.OpDneg,
		bytecode.OpI2l, bytecode.OpI2f, bytecode.OpI2d, bytecode.OpL2i, bytecode.OpL2f, bytecode.OpL2d,
		bytecode.OpF2i, bytecode.OpF2l, bytecode.OpF2d, bytecode.OpD2i, bytecode.OpD2l, bytecode.OpD2f,
		bytecode.OpI2b, bytecode.OpI2c, bytecode.OpI2s,
		bytecode.OpGetfield, bytecode.OpNewarray, bytecode.OpAnewarray, bytecode.OpArraylength,
		bytecode.OpCheckcast, bytecode.OpInstanceof:
		return f.unary(insn, interp, true)

	case bytecode.OpIfeq, bytecode.OpIfne, bytecode.OpIflt, bytecode.OpIfge, bytecode.OpIfgt, bytecode.OpIfle,
		bytecode.OpIfnull, bytecode.OpIfnonnull, bytecode.OpTableswitch, bytecode.OpLookupswitch,
		bytecode.OpIreturn, bytecode.OpLreturn, bytecode.OpFreturn, bytecode.OpDreturn, bytecode.OpAreturn,
		bytecode.OpPutstatic, bytecode.OpAthrow, bytecode.OpMonitorenter, bytecode.OpMonitorexit:
		return f.unary(insn, interp, false)

	case bytecode.OpIfIcmpeq, bytecode.OpIfIcmpne, bytecode.OpIfIcmplt, bytecode.OpIfIcmpge,
		bytecode.OpIfIcmpgt, bytecode.OpIfIcmple, bytecode.OpIfAcmpeq, bytecode.OpIfAcmpne,
		bytecode.OpPutfield:
		return f.binary(insn, interp, false)

	case bytecode.OpGetstatic, bytecode.OpNew:
		f.Push(interp.NewOperation(insn))
		return nil

	case bytecode.OpInvokevirtual, bytecode.OpInvokespecial, bytecode.OpInvokestatic, bytecode.OpInvokeinterface:
		return f.executeInvoke(insn.(*bytecode.MethodInsn), interp)

	case bytecode.OpMultianewarray:
		vs, err := f.popN(insn.(*bytecode.MultiANewArrayInsn).Dims)
		if err != nil {
			return err
		}
		f.Push(interp.NaryOperation(insn, vs))
		return nil
	}

	if op >= bytecode.OpIadd && op <= bytecode.OpLxor || op >= bytecode.OpLcmp && op <= bytecode.OpDcmpg {
		return f.binary(insn, interp, true)
	}
	return fmt.Errorf("%w: %s", ErrUnsupported, op)
}

func (f *Frame) executeStore(insn *bytecode.VarInsn, interp Interpreter) error {
	v, err := f.Pop()
	if err != nil {
		return err
	}
	if err := f.SetLocal(insn.Var, interp.CopyOperation(insn, v)); err != nil {
		return err
	}
	if insn.Opcode().IsWide() {
		if err := f.SetLocal(insn.Var+1, interp.NewValue(Uninitialized)); err != nil {
			return err
		}
	}
	// 覆盖了 long/double 的高位槽，原值作废
	if insn.Var > 0 && f.Local(insn.Var-1).Size() == 2 {
		return f.SetLocal(insn.Var-1, interp.NewValue(Uninitialized))
	}
	return nil
}

func (f *Frame) unary(insn bytecode.Insn, interp Interpreter, produces bool) error {
	v, err := f.Pop()
	if err != nil {
		return err
	}
	r := interp.UnaryOperation(insn, v)
	if produces {
		f.Push(r)
	}
	return nil
}

func (f *Frame) binary(insn bytecode.Insn, interp Interpreter, produces bool) error {
	vs, err := f.popN(2)
	if err != nil {
		return err
	}
	r := interp.BinaryOperation(insn, vs[0], vs[1])
	if produces {
		f.Push(r)
	}
	return nil
}

func (f *Frame) executeInvoke(insn *bytecode.MethodInsn, interp Interpreter) error {
	args, ret, err := bytecode.ParseMethodDescriptor(insn.Desc)
	if err != nil {
		return err
	}
	n := len(args)
	if insn.Opcode() != bytecode.OpInvokestatic {
		n++
	}
	vs, err := f.popN(n)
	if err != nil {
		return err
	}
	r := interp.NaryOperation(insn, vs)
	if ret != "V" {
		f.Push(r)
	}
	return nil
}

// executeStackOp pop/dup/swap 系列，按 JVM 规范区分一类和二类值
func (f *Frame) executeStackOp(insn bytecode.Insn, interp Interpreter) error {
	cp := func(v Value) Value { return interp.CopyOperation(insn, v) }
	pop1 := func() (Value, error) {
		v, err := f.Pop()
		if err == nil && v.Size() != 1 {
			err = fmt.Errorf("%w: %s on category-2 value", ErrBadStackShape, insn.Opcode())
		}
		return v, err
	}

	switch insn.Opcode() {
	case bytecode.OpPop:
		_, err := pop1()
		return err

	case bytecode.OpPop2:
		v, err := f.Pop()
		if err != nil {
			return err
		}
		if v.Size() == 1 {
			_, err = pop1()
		}
		return err

	case bytecode.OpDup:
		v, err := pop1()
		if err != nil {
			return err
		}
		f.Push(v)
		f.Push(cp(v))

	case bytecode.OpDupX1:
		v1, err := pop1()
		if err != nil {
			return err
		}
		v2, err := pop1()
		if err != nil {
			return err
		}
		f.Push(cp(v1))
		f.Push(v2)
		f.Push(v1)

	case bytecode.OpDupX2:
		v1, err := pop1()
		if err != nil {
			return err
		}
		v2, err := f.Pop()
		if err != nil {
			return err
		}
		if v2.Size() == 1 {
			v3, err := pop1()
			if err != nil {
				return err
			}
			f.Push(cp(v1))
			f.Push(v3)
		} else {
			f.Push(cp(v1))
		}
		f.Push(v2)
		f.Push(v1)

	case bytecode.OpDup2:
		v1, err := f.Pop()
		if err != nil {
			return err
		}
		if v1.Size() == 2 {
			f.Push(v1)
			f.Push(cp(v1))
			return nil
		}
		v2, err := pop1()
		if err != nil {
			return err
		}
		f.Push(v2)
		f.Push(v1)
		f.Push(cp(v2))
		f.Push(cp(v1))

	case bytecode.OpDup2X1:
		v1, err := f.Pop()
		if err != nil {
			return err
		}
		if v1.Size() == 2 {
			v2, err := pop1()
			if err != nil {
				return err
			}
			f.Push(cp(v1))
			f.Push(v2)
			f.Push(v1)
			return nil
		}
		vs, err := f.popN(2)
		if err != nil {
			return err
		}
		v3, v2 := vs[0], vs[1]
		f.Push(cp(v2))
		f.Push(cp(v1))
		f.Push(v3)
		f.Push(v2)
		f.Push(v1)

	case bytecode.OpDup2X2:
		v1, err := f.Pop()
		if err != nil {
			return err
		}
		var top []Value // 被复制的部分，按入栈顺序
		if v1.Size() == 2 {
			top = []Value{v1}
		} else {
			v2, err := pop1()
			if err != nil {
				return err
			}
			top = []Value{v2, v1}
		}
		under, err := f.Pop()
		if err != nil {
			return err
		}
		rest := []Value{under}
		if under.Size() == 1 {
			u2, err := pop1()
			if err != nil {
				return err
			}
			rest = []Value{u2, under}
		}
		for _, v := range top {
			f.Push(cp(v))
		}
		for _, v := range rest {
			f.Push(v)
		}
		for _, v := range top {
			f.Push(v)
		}

	case bytecode.OpSwap:
		v1, err := pop1()
		if err != nil {
			return err
		}
		v2, err := pop1()
		if err != nil {
			return err
		}
		f.Push(cp(v1))
		f.Push(cp(v2))
	}
	return nil
}
