package bytecode

import (
	"fmt"
	"strconv"
	"strings"
)

// newarray 的基本类型编码
var arrayTypeNames = map[int]string{
	4: "boolean", 5: "char", 6: "float", 7: "double",
	8: "byte", 9: "short", 10: "int", 11: "long",
}

// LookupArrayType 按名称查找 newarray 的类型编码
func LookupArrayType(name string) (int, bool) {
	for code, n := range arrayTypeNames {
		if n == name {
			return code, true
		}
	}
	return 0, false
}

type flagName struct {
	flag int
	name string
}

var classFlagNames = []flagName{
	{AccPublic, "public"}, {AccPrivate, "private"}, {AccProtected, "protected"},
	{AccStatic, "static"}, {AccFinal, "final"}, {AccSuper, "super"},
	{AccInterface, "interface"}, {AccAbstract, "abstract"}, {AccSynthetic, "synthetic"},
	{AccAnnotation, "annotation"}, {AccEnum, "enum"},
}

var methodFlagNames = []flagName{
	{AccPublic, "public"}, {AccPrivate, "private"}, {AccProtected, "protected"},
	{AccStatic, "static"}, {AccFinal, "final"}, {AccSynchronized, "synchronized"},
	{AccBridge, "bridge"}, {AccVarargs, "varargs"}, {AccNative, "native"},
	{AccAbstract, "abstract"}, {AccStrict, "strict"}, {AccSynthetic, "synthetic"},
}

// LookupClassFlag / LookupMethodFlag 供汇编器解析访问标志
func LookupClassFlag(name string) (int, bool)  { return lookupFlag(classFlagNames, name) }
func LookupMethodFlag(name string) (int, bool) { return lookupFlag(methodFlagNames, name) }

func lookupFlag(table []flagName, name string) (int, bool) {
	for _, f := range table {
		if f.name == name {
			return f.flag, true
		}
	}
	return 0, false
}

func formatFlags(table []flagName, access int) string {
	var parts []string
	for _, f := range table {
		if access&f.flag != 0 {
			parts = append(parts, f.name)
		}
	}
	return strings.Join(parts, " ")
}

// Labeler 为反汇编输出分配稳定的标签名
type Labeler struct {
	names map[*Label]string
}

// NewLabeler 按出现顺序给链表中的标签编号 L0, L1, ...；已命名的标签保留原名
func NewLabeler(list *InsnList) *Labeler {
	lb := &Labeler{names: make(map[*Label]string)}
	taken := make(map[string]bool)
	for insn := list.First(); insn != nil; insn = insn.Next() {
		if l, ok := insn.(*Label); ok && l.Name != "" {
			taken[l.Name] = true
		}
	}
	n := 0
	for insn := list.First(); insn != nil; insn = insn.Next() {
		if l, ok := insn.(*Label); ok {
			if l.Name != "" {
				lb.names[l] = l.Name
			} else {
				name := "L" + strconv.Itoa(n)
				for taken[name] {
					n++
					name = "L" + strconv.Itoa(n)
				}
				lb.names[l] = name
			}
			n++
		}
	}
	return lb
}

// Name 返回标签名，不在链表中的标签显示为 L?
func (lb *Labeler) Name(l *Label) string {
	if name, ok := lb.names[l]; ok {
		return name
	}
	if l != nil && l.Name != "" {
		return l.Name
	}
	return "L?"
}

// FormatInsn 把一条指令格式化为汇编文本（不含缩进）
func FormatInsn(insn Insn, lb *Labeler) string {
	op := insn.Opcode()
	switch n := insn.(type) {
	case *Label:
		return lb.Name(n) + ":"
	case *LineNumber:
		return fmt.Sprintf(".line %d %s", n.Line, lb.Name(n.Start))
	case *InsnNode:
		return op.String()
	case *IntInsn:
		if op == OpNewarray {
			if name, ok := arrayTypeNames[n.Operand]; ok {
				return "newarray " + name
			}
		}
		return fmt.Sprintf("%s %d", op, n.Operand)
	case *VarInsn:
		return fmt.Sprintf("%s %d", op, n.Var)
	case *TypeInsn:
		return fmt.Sprintf("%s %s", op, n.Desc)
	case *FieldInsn:
		return fmt.Sprintf("%s %s.%s %s", op, n.Owner, n.Name, n.Desc)
	case *MethodInsn:
		s := fmt.Sprintf("%s %s.%s %s", op, n.Owner, n.Name, n.Desc)
		if n.Itf && op != OpInvokeinterface {
			s += " itf"
		}
		return s
	case *JumpInsn:
		return fmt.Sprintf("%s %s", op, lb.Name(n.Target))
	case *LdcInsn:
		return "ldc " + FormatConstant(n.Value)
	case *IincInsn:
		return fmt.Sprintf("iinc %d %d", n.Var, n.Delta)
	case *TableSwitchInsn:
		var sb strings.Builder
		fmt.Fprintf(&sb, "tableswitch %d", n.Min)
		for _, l := range n.Labels {
			sb.WriteString(" " + lb.Name(l))
		}
		sb.WriteString(" default " + lb.Name(n.Default))
		return sb.String()
	case *LookupSwitchInsn:
		var sb strings.Builder
		sb.WriteString("lookupswitch")
		for i, k := range n.Keys {
			fmt.Fprintf(&sb, " %d:%s", k, lb.Name(n.Labels[i]))
		}
		sb.WriteString(" default " + lb.Name(n.Default))
		return sb.String()
	case *MultiANewArrayInsn:
		return fmt.Sprintf("multianewarray %s %d", n.Desc, n.Dims)
	}
	return op.String()
}

// FormatConstant ldc 常量的文本形式
func FormatConstant(v any) string {
	switch c := v.(type) {
	case string:
		return strconv.Quote(c)
	case int32:
		return strconv.FormatInt(int64(c), 10)
	case int64:
		return strconv.FormatInt(c, 10) + "L"
	case float32:
		return strconv.FormatFloat(float64(c), 'g', -1, 32) + "f"
	case float64:
		return strconv.FormatFloat(c, 'g', -1, 64) + "d"
	case ClassConst:
		return "class " + string(c)
	}
	return fmt.Sprintf("%v", v)
}

// FormatInsns 每条指令一行，标签单独成行，其他指令缩进两格
func FormatInsns(list *InsnList) []string {
	lb := NewLabeler(list)
	out := make([]string, 0, list.Len())
	for insn := list.First(); insn != nil; insn = insn.Next() {
		if _, ok := insn.(*Label); ok {
			out = append(out, FormatInsn(insn, lb))
		} else {
			out = append(out, "  "+FormatInsn(insn, lb))
		}
	}
	return out
}

// Disassemble 反汇编一个方法，输出可被 asm 包重新读入
func Disassemble(m *Method) string {
	var sb strings.Builder
	sb.Grow(m.Instructions.Len() * 30)

	lb := NewLabeler(m.Instructions)
	sb.WriteString(".method ")
	if flags := formatFlags(methodFlagNames, m.Access); flags != "" {
		sb.WriteString(flags + " ")
	}
	sb.WriteString(m.Name + m.Desc + "\n")

	if m.MaxStack > 0 {
		fmt.Fprintf(&sb, "  .limit stack %d\n", m.MaxStack)
	}
	if m.MaxLocals > 0 {
		fmt.Fprintf(&sb, "  .limit locals %d\n", m.MaxLocals)
	}
	for _, tcb := range m.TryCatchBlocks {
		typ := tcb.Type
		if typ == "" {
			typ = "all"
		}
		fmt.Fprintf(&sb, "  .catch %s from %s to %s using %s\n",
			typ, lb.Name(tcb.Start), lb.Name(tcb.End), lb.Name(tcb.Handler))
	}
	for _, lv := range m.LocalVariables {
		fmt.Fprintf(&sb, "  .var %d is %s %s from %s to %s\n",
			lv.Index, lv.Name, lv.Desc, lb.Name(lv.Start), lb.Name(lv.End))
	}
	for _, line := range FormatInsns(m.Instructions) {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	sb.WriteString(".end method\n")
	return sb.String()
}

// DisassembleClass 反汇编整个类
func DisassembleClass(c *Class) string {
	var sb strings.Builder
	sb.WriteString(".class ")
	if flags := formatFlags(classFlagNames, c.Access); flags != "" {
		sb.WriteString(flags + " ")
	}
	sb.WriteString(c.Name + "\n")
	sb.WriteString(".super " + c.Super + "\n")
	if c.SourceFile != "" {
		sb.WriteString(".source " + c.SourceFile + "\n")
	}
	for _, m := range c.Methods {
		sb.WriteByte('\n')
		sb.WriteString(Disassemble(m))
	}
	return sb.String()
}
