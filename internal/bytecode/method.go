package bytecode

// 访问标志
const (
	AccPublic       = 0x0001
	AccPrivate      = 0x0002
	AccProtected    = 0x0004
	AccStatic       = 0x0008
	AccFinal        = 0x0010
	AccSuper        = 0x0020
	AccSynchronized = 0x0020
	AccVolatile     = 0x0040
	AccBridge       = 0x0040
	AccTransient    = 0x0080
	AccVarargs      = 0x0080
	AccNative       = 0x0100
	AccInterface    = 0x0200
	AccAbstract     = 0x0400
	AccStrict       = 0x0800
	AccSynthetic    = 0x1000
	AccAnnotation   = 0x2000
	AccEnum         = 0x4000
)

// LocalVariable 调试器可见的局部变量范围
//
// 变量在 [Start, End] 之间对调试器可见（按指令位置比较，两端都包含）。
type LocalVariable struct {
	Name      string
	Desc      string
	Signature string
	Start     *Label
	End       *Label
	Index     int // 槽位
}

// TryCatchBlock 异常表条目，Type 为空表示 catch-any（finally）
type TryCatchBlock struct {
	Start   *Label
	End     *Label
	Handler *Label
	Type    string
}

// Method 一个方法体及其附属元数据
type Method struct {
	Owner     string
	Access    int
	Name      string
	Desc      string
	MaxStack  int // 0 表示由 jvmgen 计算
	MaxLocals int // 0 表示由 jvmgen 计算

	Instructions   *InsnList
	LocalVariables []*LocalVariable
	TryCatchBlocks []*TryCatchBlock
}

// NewMethod 创建空方法体
func NewMethod(owner string, access int, name, desc string) *Method {
	return &Method{
		Owner:        owner,
		Access:       access,
		Name:         name,
		Desc:         desc,
		Instructions: NewInsnList(),
	}
}

// IsStatic 是否为静态方法
func (m *Method) IsStatic() bool {
	return m.Access&AccStatic != 0
}

// String 形如 Owner.name(desc)，用于日志
func (m *Method) String() string {
	if m.Owner == "" {
		return m.Name + m.Desc
	}
	return m.Owner + "." + m.Name + m.Desc
}

// ComputeMaxLocals 根据描述符和实际使用的槽位计算局部变量表大小
func (m *Method) ComputeMaxLocals() int {
	n := ArgumentsSize(m.Desc)
	if !m.IsStatic() {
		n++
	}
	for insn := m.Instructions.First(); insn != nil; insn = insn.Next() {
		switch i := insn.(type) {
		case *VarInsn:
			size := 1
			if i.op.IsWide() {
				size = 2
			}
			n = max(n, i.Var+size)
		case *IincInsn:
			n = max(n, i.Var+1)
		}
	}
	for _, lv := range m.LocalVariables {
		size := 1
		if lv.Desc == "J" || lv.Desc == "D" {
			size = 2
		}
		n = max(n, lv.Index+size)
	}
	return max(n, m.MaxLocals)
}

// LineOf 返回指令所在的源码行号，没有行号信息时返回 0
func (m *Method) LineOf(insn Insn) int {
	for n := insn; n != nil; n = n.Prev() {
		if ln, ok := n.(*LineNumber); ok {
			return ln.Line
		}
	}
	return 0
}

// Class 一个类及其方法
type Class struct {
	Name       string
	Super      string
	Access     int
	SourceFile string
	Methods    []*Method
}

// NewClass 创建类，父类默认为 java/lang/Object
func NewClass(name string) *Class {
	return &Class{
		Name:   name,
		Super:  "java/lang/Object",
		Access: AccPublic | AccSuper,
	}
}

// AddMethod 添加方法并设置其 Owner
func (c *Class) AddMethod(m *Method) {
	m.Owner = c.Name
	c.Methods = append(c.Methods, m)
}
