package jvmgen

import "github.com/tangzhangming/jpeep/internal/bytecode"

// 只在 class 文件中出现的编码形式
//
// 树形指令表示只使用规范化的操作码，这些变体由汇编器按操作数重新选择。
const (
	opIload0  = 0x1A // iload_0，lload_0/fload_0/dload_0/aload_0 依次相隔 4
	opIstore0 = 0x3B // istore_0，其余存储指令同上
	opLdcW    = 0x13 // 宽索引 ldc
	opLdc2W   = 0x14 // long/double 常量
	opWide    = 0xC4 // 扩展下一条指令的局部变量索引
)

// shortVarForm 返回 xload_<n>/xstore_<n> 编码，没有短形式时 ok 为 false
func shortVarForm(op bytecode.Opcode, v int) (byte, bool) {
	if v < 0 || v > 3 {
		return 0, false
	}
	switch {
	case op.IsLoad():
		return byte(opIload0 + int(op-bytecode.OpIload)*4 + v), true
	case op.IsStore():
		return byte(opIstore0 + int(op-bytecode.OpIstore)*4 + v), true
	}
	return 0, false
}
