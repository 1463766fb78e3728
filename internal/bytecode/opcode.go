// Package bytecode 实现 JVM 方法体的树形指令表示
//
// 指令以双向链表保存（InsnList），标签、行号等伪指令也是链表节点，
// 调试表和异常表通过节点身份引用标签。
package bytecode

import "fmt"

// Opcode JVM 操作码
//
// 只包含规范化后的形式：xload_<n>、wide、ldc_w、goto_w 等编码变体
// 由 jvmgen 在输出时重新选择。
type Opcode int

// OpNone 伪指令（标签、行号）没有操作码
const OpNone Opcode = -1

const (
	// 常量操作
	OpNop        Opcode = 0x00 // 空操作
	OpAconstNull Opcode = 0x01 // 将 null 压入栈
	OpIconstM1   Opcode = 0x02 // 将 -1 压入栈
	OpIconst0    Opcode = 0x03
	OpIconst1    Opcode = 0x04
	OpIconst2    Opcode = 0x05
	OpIconst3    Opcode = 0x06
	OpIconst4    Opcode = 0x07
	OpIconst5    Opcode = 0x08
	OpLconst0    Opcode = 0x09
	OpLconst1    Opcode = 0x0A
	OpFconst0    Opcode = 0x0B
	OpFconst1    Opcode = 0x0C
	OpFconst2    Opcode = 0x0D
	OpDconst0    Opcode = 0x0E
	OpDconst1    Opcode = 0x0F
	OpBipush     Opcode = 0x10 // 将单字节常量压入栈
	OpSipush     Opcode = 0x11 // 将短整型常量压入栈
	OpLdc        Opcode = 0x12 // 将常量池中的项压入栈

	// 加载操作
	OpIload  Opcode = 0x15
	OpLload  Opcode = 0x16
	OpFload  Opcode = 0x17
	OpDload  Opcode = 0x18
	OpAload  Opcode = 0x19
	OpIaload Opcode = 0x2E
	OpLaload Opcode = 0x2F
	OpFaload Opcode = 0x30
	OpDaload Opcode = 0x31
	OpAaload Opcode = 0x32
	OpBaload Opcode = 0x33
	OpCaload Opcode = 0x34
	OpSaload Opcode = 0x35

	// 存储操作
	OpIstore  Opcode = 0x36
	OpLstore  Opcode = 0x37
	OpFstore  Opcode = 0x38
	OpDstore  Opcode = 0x39
	OpAstore  Opcode = 0x3A
	OpIastore Opcode = 0x4F
	OpLastore Opcode = 0x50
	OpFastore Opcode = 0x51
	OpDastore Opcode = 0x52
	OpAastore Opcode = 0x53
	OpBastore Opcode = 0x54
	OpCastore Opcode = 0x55
	OpSastore Opcode = 0x56

	// 栈操作
	OpPop    Opcode = 0x57 // 弹出栈顶元素
	OpPop2   Opcode = 0x58
	OpDup    Opcode = 0x59 // 复制栈顶元素
	OpDupX1  Opcode = 0x5A
	OpDupX2  Opcode = 0x5B
	OpDup2   Opcode = 0x5C
	OpDup2X1 Opcode = 0x5D
	OpDup2X2 Opcode = 0x5E
	OpSwap   Opcode = 0x5F // 交换栈顶两个元素

	// 算术操作
	OpIadd  Opcode = 0x60
	OpLadd  Opcode = 0x61
	OpFadd  Opcode = 0x62
	OpDadd  Opcode = 0x63
	OpIsub  Opcode = 0x64
	OpLsub  Opcode = 0x65
	OpFsub  Opcode = 0x66
	OpDsub  Opcode = 0x67
	OpImul  Opcode = 0x68
	OpLmul  Opcode = 0x69
	OpFmul  Opcode = 0x6A
	OpDmul  Opcode = 0x6B
	OpIdiv  Opcode = 0x6C
	OpLdiv  Opcode = 0x6D
	OpFdiv  Opcode = 0x6E
	OpDdiv  Opcode = 0x6F
	OpIrem  Opcode = 0x70
	OpLrem  Opcode = 0x71
	OpFrem  Opcode = 0x72
	OpDrem  Opcode = 0x73
	OpIneg  Opcode = 0x74
	OpLneg  Opcode = 0x75
	OpFneg  Opcode = 0x76
	OpDneg  Opcode = 0x77
	OpIshl  Opcode = 0x78
	OpLshl  Opcode = 0x79
	OpIshr  Opcode = 0x7A
	OpLshr  Opcode = 0x7B
	OpIushr Opcode = 0x7C
	OpLushr Opcode = 0x7D
	OpIand  Opcode = 0x7E
	OpLand  Opcode = 0x7F
	OpIor   Opcode = 0x80
	OpLor   Opcode = 0x81
	OpIxor  Opcode = 0x82
	OpLxor  Opcode = 0x83
	OpIinc  Opcode = 0x84

	// 类型转换
	OpI2l Opcode = 0x85
	OpI2f Opcode = 0x86
	OpI2d Opcode = 0x87
	OpL2i Opcode = 0x88
	OpL2f Opcode = 0x89
	OpL2d Opcode = 0x8A
	OpF2i Opcode = 0x8B
	OpF2l Opcode = 0x8C
	OpF2d Opcode = 0x8D
	OpD2i Opcode = 0x8E
	OpD2l Opcode = 0x8F
	OpD2f Opcode = 0x90
	OpI2b Opcode = 0x91
	OpI2c Opcode = 0x92
	OpI2s Opcode = 0x93

	// 比较
	OpLcmp  Opcode = 0x94
	OpFcmpl Opcode = 0x95
	OpFcmpg Opcode = 0x96
	OpDcmpl Opcode = 0x97
	OpDcmpg Opcode = 0x98

	// 控制流
	OpIfeq         Opcode = 0x99
	OpIfne         Opcode = 0x9A
	OpIflt         Opcode = 0x9B
	OpIfge         Opcode = 0x9C
	OpIfgt         Opcode = 0x9D
	OpIfle         Opcode = 0x9E
	OpIfIcmpeq     Opcode = 0x9F
	OpIfIcmpne     Opcode = 0xA0
	OpIfIcmplt     Opcode = 0xA1
	OpIfIcmpge     Opcode = 0xA2
	OpIfIcmpgt     Opcode = 0xA3
	OpIfIcmple     Opcode = 0xA4
	OpIfAcmpeq     Opcode = 0xA5
	OpIfAcmpne     Opcode = 0xA6
	OpGoto         Opcode = 0xA7
	OpJsr          Opcode = 0xA8
	OpRet          Opcode = 0xA9
	OpTableswitch  Opcode = 0xAA
	OpLookupswitch Opcode = 0xAB
	OpIreturn      Opcode = 0xAC // int 返回
	OpLreturn      Opcode = 0xAD
	OpFreturn      Opcode = 0xAE
	OpDreturn      Opcode = 0xAF
	OpAreturn      Opcode = 0xB0 // 引用返回
	OpReturn       Opcode = 0xB1 // void 返回

	// 字段操作
	OpGetstatic Opcode = 0xB2 // 获取静态字段
	OpPutstatic Opcode = 0xB3 // 设置静态字段
	OpGetfield  Opcode = 0xB4 // 获取实例字段
	OpPutfield  Opcode = 0xB5 // 设置实例字段

	// 方法调用
	OpInvokevirtual   Opcode = 0xB6 // 调用实例方法
	OpInvokespecial   Opcode = 0xB7 // 调用构造方法/父类方法/私有方法
	OpInvokestatic    Opcode = 0xB8 // 调用静态方法
	OpInvokeinterface Opcode = 0xB9 // 调用接口方法

	// 对象操作
	OpNew            Opcode = 0xBB // 创建对象
	OpNewarray       Opcode = 0xBC // 创建基本类型数组
	OpAnewarray      Opcode = 0xBD // 创建引用类型数组
	OpArraylength    Opcode = 0xBE // 获取数组长度
	OpAthrow         Opcode = 0xBF // 抛出异常
	OpCheckcast      Opcode = 0xC0 // 类型检查转换
	OpInstanceof     Opcode = 0xC1 // 类型检查
	OpMonitorenter   Opcode = 0xC2
	OpMonitorexit    Opcode = 0xC3
	OpMultianewarray Opcode = 0xC5
	OpIfnull         Opcode = 0xC6
	OpIfnonnull      Opcode = 0xC7
)

var opNames = map[Opcode]string{
	OpNop: "nop", OpAconstNull: "aconst_null", OpIconstM1: "iconst_m1",
	OpIconst0: "iconst_0", OpIconst1: "iconst_1", OpIconst2: "iconst_2",
	OpIconst3: "iconst_3", OpIconst4: "iconst_4", OpIconst5: "iconst_5",
	OpLconst0: "lconst_0", OpLconst1: "lconst_1",
	OpFconst0: "fconst_0", OpFconst1: "fconst_1", OpFconst2: "fconst_2",
	OpDconst0: "dconst_0", OpDconst1: "dconst_1",
	OpBipush: "bipush", OpSipush: "sipush", OpLdc: "ldc",

	OpIload: "iload", OpLload: "lload", OpFload: "fload", OpDload: "dload", OpAload: "aload",
	OpIaload: "iaload", OpLaload: "laload", OpFaload: "faload", OpDaload: "daload",
	OpAaload: "aaload", OpBaload: "baload", OpCaload: "caload", OpSaload: "saload",

	OpIstore: "istore", OpLstore: "lstore", OpFstore: "fstore", OpDstore: "dstore", OpAstore: "astore",
	OpIastore: "iastore", OpLastore: "lastore", OpFastore: "fastore", OpDastore: "dastore",
	OpAastore: "aastore", OpBastore: "bastore", OpCastore: "castore", OpSastore: "sastore",

	OpPop: "pop", OpPop2: "pop2", OpDup: "dup", OpDupX1: "dup_x1", OpDupX2: "dup_x2",
	OpDup2: "dup2", OpDup2X1: "dup2_x1", OpDup2X2: "dup2_x2", OpSwap: "swap",

	OpIadd: "iadd", OpLadd: "ladd", OpFadd: "fadd", OpDadd: "dadd",
	OpIsub: "isub", OpLsub: "lsub", OpFsub: "fsub", OpDsub: "dsub",
	OpImul: "imul", OpLmul: "lmul", OpFmul: "fmul", OpDmul: "dmul",
	OpIdiv: "idiv", OpLdiv: "ldiv", OpFdiv: "fdiv", OpDdiv: "ddiv",
	OpIrem: "irem", OpLrem: "lrem", OpFrem: "frem", OpDrem: "drem",
	OpIneg: "ineg", OpLneg: "lneg", OpFneg: "fneg", OpDneg: "dneg",
	OpIshl: "ishl", OpLshl: "lshl", OpIshr: "ishr", OpLshr: "lshr",
	OpIushr: "iushr", OpLushr: "lushr", OpIand: "iand", OpLand: "land",
	OpIor: "ior", OpLor: "lor", OpIxor: "ixor", OpLxor: "lxor", OpIinc: "iinc",

	OpI2l: "i2l", OpI2f: "i2f", OpI2d: "i2d", OpL2i: "l2i", OpL2f: "l2f", OpL2d: "l2d",
	OpF2i: "f2i", OpF2l: "f2l", OpF2d: "f2d", OpD2i: "d2i", OpD2l: "d2l", OpD2f: "d2f",
	OpI2b: "i2b", OpI2c: "i2c", OpI2s: "i2s",

	OpLcmp: "lcmp", OpFcmpl: "fcmpl", OpFcmpg: "fcmpg", OpDcmpl: "dcmpl", OpDcmpg: "dcmpg",

	OpIfeq: "ifeq", OpIfne: "ifne", OpIflt: "iflt", OpIfge: "ifge", OpIfgt: "ifgt", OpIfle: "ifle",
	OpIfIcmpeq: "if_icmpeq", OpIfIcmpne: "if_icmpne", OpIfIcmplt: "if_icmplt",
	OpIfIcmpge: "if_icmpge", OpIfIcmpgt: "if_icmpgt", OpIfIcmple: "if_icmple",
	OpIfAcmpeq: "if_acmpeq", OpIfAcmpne: "if_acmpne",
	OpGoto: "goto", OpJsr: "jsr", OpRet: "ret",
	OpTableswitch: "tableswitch", OpLookupswitch: "lookupswitch",
	OpIreturn: "ireturn", OpLreturn: "lreturn", OpFreturn: "freturn",
	OpDreturn: "dreturn", OpAreturn: "areturn", OpReturn: "return",

	OpGetstatic: "getstatic", OpPutstatic: "putstatic", OpGetfield: "getfield", OpPutfield: "putfield",
	OpInvokevirtual: "invokevirtual", OpInvokespecial: "invokespecial",
	OpInvokestatic: "invokestatic", OpInvokeinterface: "invokeinterface",

	OpNew: "new", OpNewarray: "newarray", OpAnewarray: "anewarray", OpArraylength: "arraylength",
	OpAthrow: "athrow", OpCheckcast: "checkcast", OpInstanceof: "instanceof",
	OpMonitorenter: "monitorenter", OpMonitorexit: "monitorexit",
	OpMultianewarray: "multianewarray", OpIfnull: "ifnull", OpIfnonnull: "ifnonnull",
}

// opByName 名称到操作码的反查表，供汇编器使用
var opByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opNames))
	for op, name := range opNames {
		m[name] = op
	}
	return m
}()

func (op Opcode) String() string {
	if name, ok := opNames[op]; ok {
		return name
	}
	if op == OpNone {
		return "<none>"
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(op))
}

// LookupOpcode 按助记符查找操作码
func LookupOpcode(name string) (Opcode, bool) {
	op, ok := opByName[name]
	return op, ok
}

// IsLoad 局部变量加载指令（xload）
func (op Opcode) IsLoad() bool {
	return op >= OpIload && op <= OpAload
}

// IsStore 局部变量存储指令（xstore）
func (op Opcode) IsStore() bool {
	return op >= OpIstore && op <= OpAstore
}

// IsConditionalJump 条件跳转指令
func (op Opcode) IsConditionalJump() bool {
	return (op >= OpIfeq && op <= OpIfAcmpne) || op == OpIfnull || op == OpIfnonnull
}

// IsReturn xreturn 指令
func (op Opcode) IsReturn() bool {
	return op >= OpIreturn && op <= OpReturn
}

// IsConstant 只压入一个常量、没有其他副作用的指令
func (op Opcode) IsConstant() bool {
	return op >= OpAconstNull && op <= OpLdc
}

// IsWide 操作的值占两个槽位（long/double）
func (op Opcode) IsWide() bool {
	switch op {
	case OpLload, OpDload, OpLstore, OpDstore, OpLreturn, OpDreturn:
		return true
	}
	return false
}

// Falls 执行后是否可能继续执行下一条指令
func (op Opcode) Falls() bool {
	switch op {
	case OpGoto, OpTableswitch, OpLookupswitch, OpAthrow, OpRet:
		return false
	}
	return !op.IsReturn()
}
