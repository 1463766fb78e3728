package analysis

import (
	"github.com/tangzhangming/jpeep/internal/bytecode"
)

// Interpreter 定义指令对抽象值的作用
//
// Frame.Execute 按操作码分派，把操作数交给对应的回调；
// 返回 nil 表示该指令不产生值。
type Interpreter interface {
	// NewValue 由类型构造值，用于方法参数、异常对象等
	NewValue(b Basic) Value
	// NewOperation 不消费操作数的指令：常量、getstatic、new
	NewOperation(insn bytecode.Insn) Value
	// CopyOperation xload、xstore、dup 系列、swap
	CopyOperation(insn bytecode.Insn, v Value) Value
	// UnaryOperation 消费一个操作数的指令，包括 iinc
	UnaryOperation(insn bytecode.Insn, v Value) Value
	BinaryOperation(insn bytecode.Insn, v1, v2 Value) Value
	TernaryOperation(insn bytecode.Insn, v1, v2, v3 Value) Value
	NaryOperation(insn bytecode.Insn, values []Value) Value
	// Merge 控制流汇合时合并同一位置的两个值
	Merge(v, w Value) Value
}

// BasicInterpreter 只区分基本类型的解释器
type BasicInterpreter struct{}

func (BasicInterpreter) NewValue(b Basic) Value { return b }

func (BasicInterpreter) NewOperation(insn bytecode.Insn) Value {
	switch op := insn.Opcode(); op {
	case bytecode.OpAconstNull, bytecode.OpNew:
		return ReferenceValue
	case bytecode.OpIconstM1, bytecode.OpIconst0, bytecode.OpIconst1, bytecode.OpIconst2,
		bytecode.OpIconst3, bytecode.OpIconst4, bytecode.OpIconst5,
		bytecode.OpBipush, bytecode.OpSipush:
		return IntValue
	case bytecode.OpLconst0, bytecode.OpLconst1:
		return LongValue
	case bytecode.OpFconst0, bytecode.OpFconst1, bytecode.OpFconst2:
		return FloatValue
	case bytecode.OpDconst0, bytecode.OpDconst1:
		return DoubleValue
	case bytecode.OpLdc:
		switch insn.(*bytecode.LdcInsn).Value.(type) {
		case int32:
			return IntValue
		case float32:
			return FloatValue
		case int64:
			return LongValue
		case float64:
			return DoubleValue
		}
		return ReferenceValue
	case bytecode.OpJsr:
		return ReturnAddressValue
	case bytecode.OpGetstatic:
		return BasicOf(insn.(*bytecode.FieldInsn).Desc)
	}
	return Uninitialized
}

func (BasicInterpreter) CopyOperation(insn bytecode.Insn, v Value) Value { return v }

func (BasicInterpreter) UnaryOperation(insn bytecode.Insn, v Value) Value {
	switch insn.Opcode() {
	case bytecode.OpIneg, bytecode.OpIinc, bytecode.OpL2i, bytecode.OpF2i, bytecode.OpD2i,
		bytecode.OpI2b, bytecode.OpI2c, bytecode.OpI2s, bytecode.OpArraylength, bytecode.OpInstanceof:
		return IntValue
	case bytecode.OpFneg, bytecode.OpI2f, bytecode.OpL2f, bytecode.OpD2f:
		return FloatValue
	case bytecode.OpLneg, bytecode.OpI2l, bytecode.OpF2l, bytecode.OpD2l:
		return LongValue
	case bytecode.OpDneg, bytecode.OpI2d, bytecode.OpL2d, bytecode.OpF2d:
		return DoubleValue
	case bytecode.OpGetfield:
		return BasicOf(insn.(*bytecode.FieldInsn).Desc)
	case bytecode.OpNewarray, bytecode.OpAnewarray, bytecode.OpCheckcast:
		return ReferenceValue
	}
	// 条件跳转、switch、xreturn、putstatic、athrow、monitor*
	return nil
}

func (BasicInterpreter) BinaryOperation(insn bytecode.Insn, v1, v2 Value) Value {
	switch insn.Opcode() {
	case bytecode.OpIaload, bytecode.OpBaload, bytecode.OpCaload, bytecode.OpSaload,
		bytecode.OpIadd, bytecode.OpIsub, bytecode.OpImul, bytecode.OpIdiv, bytecode.OpIrem,
		bytecode.OpIshl, bytecode.OpIshr, bytecode.OpIushr, bytecode.OpIand, bytecode.OpIor, bytecode.OpIxor,
		bytecode.OpLcmp, bytecode.OpFcmpl, bytecode.OpFcmpg, bytecode.OpDcmpl, bytecode.OpDcmpg:
		return IntValue
	case bytecode.OpFaload, bytecode.OpFadd, bytecode.OpFsub, bytecode.OpFmul, bytecode.OpFdiv, bytecode.OpFrem:
		return FloatValue
	case bytecode.OpLaload, bytecode.OpLadd, bytecode.OpLsub, bytecode.OpLmul, bytecode.OpLdiv, bytecode.OpLrem,
		bytecode.OpLshl, bytecode.OpLshr, bytecode.OpLushr, bytecode.OpLand, bytecode.OpLor, bytecode.OpLxor:
		return LongValue
	case bytecode.OpDaload, bytecode.OpDadd, bytecode.OpDsub, bytecode.OpDmul, bytecode.OpDdiv, bytecode.OpDrem:
		return DoubleValue
	case bytecode.OpAaload:
		return ReferenceValue
	}
	// if_icmp*、if_acmp*、putfield
	return nil
}

func (BasicInterpreter) TernaryOperation(insn bytecode.Insn, v1, v2, v3 Value) Value {
	return nil
}

func (BasicInterpreter) NaryOperation(insn bytecode.Insn, values []Value) Value {
	switch n := insn.(type) {
	case *bytecode.MultiANewArrayInsn:
		return ReferenceValue
	case *bytecode.MethodInsn:
		_, ret, err := bytecode.ParseMethodDescriptor(n.Desc)
		if err != nil || ret == "V" {
			return nil
		}
		return BasicOf(ret)
	}
	return nil
}

// Merge 类型相同则保留，否则退化为 Uninitialized
func (BasicInterpreter) Merge(v, w Value) Value {
	if v.Basic() == w.Basic() {
		return v
	}
	return Uninitialized
}
