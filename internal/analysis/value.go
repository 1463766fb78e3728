// Package analysis 实现方法体上的前向数据流分析
//
// Analyzer 以工作表迭代求不动点，每条指令对应一个执行前的抽象帧；
// 值的含义由 Interpreter 决定。BasicInterpreter 只跟踪基本类型，
// StoreLoadInterpreter 额外跟踪局部变量值来自哪些存储指令。
package analysis

// Basic 抽象值的基本类型
type Basic uint8

const (
	Uninitialized Basic = iota // 未初始化或类型冲突
	IntValue
	FloatValue
	LongValue
	DoubleValue
	ReferenceValue
	ReturnAddressValue
)

var basicNames = [...]string{
	Uninitialized: ".", IntValue: "I", FloatValue: "F", LongValue: "J",
	DoubleValue: "D", ReferenceValue: "R", ReturnAddressValue: "A",
}

func (b Basic) String() string {
	if int(b) < len(basicNames) {
		return basicNames[b]
	}
	return "?"
}

// Basic 实现 Value
func (b Basic) Basic() Basic { return b }

// Size long/double 占两个字（槽位）
func (b Basic) Size() int {
	if b == LongValue || b == DoubleValue {
		return 2
	}
	return 1
}

// Value 抽象解释中的值
type Value interface {
	Basic() Basic
	Size() int
}

// BasicOf 字段描述符对应的基本类型
func BasicOf(desc string) Basic {
	if desc == "" {
		return Uninitialized
	}
	switch desc[0] {
	case 'Z', 'C', 'B', 'S', 'I':
		return IntValue
	case 'F':
		return FloatValue
	case 'J':
		return LongValue
	case 'D':
		return DoubleValue
	case 'L', '[':
		return ReferenceValue
	}
	return Uninitialized
}

// equalValues 判断两个抽象值是否相同；合并时据此判断帧是否变化
func equalValues(a, b Value) bool {
	switch x := a.(type) {
	case Basic:
		y, ok := b.(Basic)
		return ok && x == y
	case *StoredValue:
		y, ok := b.(*StoredValue)
		return ok && x.Equal(y)
	}
	return a == b
}
