package bytecode

// Kind 指令节点的结构类别
type Kind uint8

const (
	KindInsn           Kind = iota // 无操作数指令
	KindInt                        // bipush / sipush / newarray
	KindVar                        // xload / xstore / ret
	KindType                       // new / anewarray / checkcast / instanceof
	KindField                      // get/put static/field
	KindMethod                     // invoke*
	KindJump                       // 条件与无条件跳转
	KindLabel                      // 标签伪指令
	KindLdc                        // ldc
	KindIinc                       // iinc
	KindTableSwitch                // tableswitch
	KindLookupSwitch               // lookupswitch
	KindMultiANewArray             // multianewarray
	KindLine                       // 行号伪指令
)

var kindNames = [...]string{
	KindInsn: "insn", KindInt: "int", KindVar: "var", KindType: "type",
	KindField: "field", KindMethod: "method", KindJump: "jump", KindLabel: "label",
	KindLdc: "ldc", KindIinc: "iinc", KindTableSwitch: "tableswitch",
	KindLookupSwitch: "lookupswitch", KindMultiANewArray: "multianewarray", KindLine: "line",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Insn 指令流中的一个节点
//
// 节点身份即指针身份：两条内容相同、位置不同的指令是不同的节点。
// 一个节点同一时间最多属于一个 InsnList。
type Insn interface {
	Opcode() Opcode
	Kind() Kind
	Next() Insn
	Prev() Insn
	// ID 节点首次加入 InsnList 时分配的稳定编号，未加入时为 0
	ID() int
	base() *node
}

// node 所有指令节点共享的链表字段
type node struct {
	op         Opcode
	prev, next Insn
	owner      *InsnList
	id         int
}

func (n *node) Opcode() Opcode { return n.op }
func (n *node) Next() Insn     { return n.next }
func (n *node) Prev() Insn     { return n.prev }
func (n *node) ID() int        { return n.id }
func (n *node) base() *node    { return n }

// InsnNode 无操作数指令，如 iadd、swap、return
type InsnNode struct{ node }

// NewInsn 创建无操作数指令
func NewInsn(op Opcode) *InsnNode { return &InsnNode{node{op: op}} }

func (*InsnNode) Kind() Kind { return KindInsn }

// IntInsn bipush / sipush / newarray
type IntInsn struct {
	node
	Operand int
}

func NewIntInsn(op Opcode, operand int) *IntInsn {
	return &IntInsn{node: node{op: op}, Operand: operand}
}

func (*IntInsn) Kind() Kind { return KindInt }

// VarInsn 局部变量加载/存储指令
type VarInsn struct {
	node
	Var int // 局部变量槽位
}

func NewVarInsn(op Opcode, v int) *VarInsn {
	return &VarInsn{node: node{op: op}, Var: v}
}

func (*VarInsn) Kind() Kind { return KindVar }

// TypeInsn 以类型为操作数的指令
type TypeInsn struct {
	node
	Desc string // 内部类名或数组描述符
}

func NewTypeInsn(op Opcode, desc string) *TypeInsn {
	return &TypeInsn{node: node{op: op}, Desc: desc}
}

func (*TypeInsn) Kind() Kind { return KindType }

// FieldInsn 字段访问指令
type FieldInsn struct {
	node
	Owner string
	Name  string
	Desc  string
}

func NewFieldInsn(op Opcode, owner, name, desc string) *FieldInsn {
	return &FieldInsn{node: node{op: op}, Owner: owner, Name: name, Desc: desc}
}

func (*FieldInsn) Kind() Kind { return KindField }

// MethodInsn 方法调用指令
type MethodInsn struct {
	node
	Owner string
	Name  string
	Desc  string
	Itf   bool // owner 是否为接口
}

func NewMethodInsn(op Opcode, owner, name, desc string, itf bool) *MethodInsn {
	return &MethodInsn{node: node{op: op}, Owner: owner, Name: name, Desc: desc, Itf: itf || op == OpInvokeinterface}
}

func (*MethodInsn) Kind() Kind { return KindMethod }

// JumpInsn 跳转指令
type JumpInsn struct {
	node
	Target *Label
}

func NewJumpInsn(op Opcode, target *Label) *JumpInsn {
	return &JumpInsn{node: node{op: op}, Target: target}
}

func (*JumpInsn) Kind() Kind { return KindJump }

// Label 零宽度的位置标记，只作为跳转和范围端点使用
type Label struct {
	node
	// Name 仅用于反汇编输出，可以为空
	Name string
}

func NewLabel() *Label { return &Label{node: node{op: OpNone}} }

func (*Label) Kind() Kind { return KindLabel }

// LdcInsn 常量池加载
//
// Value 的取值：int32、float32、int64、float64、string、ClassConst。
type LdcInsn struct {
	node
	Value any
}

// ClassConst ldc 加载的类字面量
type ClassConst string

func NewLdcInsn(value any) *LdcInsn {
	return &LdcInsn{node: node{op: OpLdc}, Value: value}
}

func (*LdcInsn) Kind() Kind { return KindLdc }

// IincInsn 局部变量自增
type IincInsn struct {
	node
	Var   int
	Delta int
}

func NewIincInsn(v, delta int) *IincInsn {
	return &IincInsn{node: node{op: OpIinc}, Var: v, Delta: delta}
}

func (*IincInsn) Kind() Kind { return KindIinc }

// TableSwitchInsn 连续键值的多路分支
type TableSwitchInsn struct {
	node
	Min, Max int
	Default  *Label
	Labels   []*Label // len == Max-Min+1
}

func NewTableSwitchInsn(min, max int, dflt *Label, labels ...*Label) *TableSwitchInsn {
	return &TableSwitchInsn{node: node{op: OpTableswitch}, Min: min, Max: max, Default: dflt, Labels: labels}
}

func (*TableSwitchInsn) Kind() Kind { return KindTableSwitch }

// LookupSwitchInsn 稀疏键值的多路分支
type LookupSwitchInsn struct {
	node
	Default *Label
	Keys    []int
	Labels  []*Label
}

func NewLookupSwitchInsn(dflt *Label, keys []int, labels []*Label) *LookupSwitchInsn {
	return &LookupSwitchInsn{node: node{op: OpLookupswitch}, Default: dflt, Keys: keys, Labels: labels}
}

func (*LookupSwitchInsn) Kind() Kind { return KindLookupSwitch }

// MultiANewArrayInsn 多维数组创建
type MultiANewArrayInsn struct {
	node
	Desc string
	Dims int
}

func NewMultiANewArrayInsn(desc string, dims int) *MultiANewArrayInsn {
	return &MultiANewArrayInsn{node: node{op: OpMultianewarray}, Desc: desc, Dims: dims}
}

func (*MultiANewArrayInsn) Kind() Kind { return KindMultiANewArray }

// LineNumber 行号伪指令，Start 指向该行起始位置的标签
type LineNumber struct {
	node
	Line  int
	Start *Label
}

func NewLineNumber(line int, start *Label) *LineNumber {
	return &LineNumber{node: node{op: OpNone}, Line: line, Start: start}
}

func (*LineNumber) Kind() Kind { return KindLine }

// IsStore 是否为局部变量存储指令
func IsStore(insn Insn) bool {
	v, ok := insn.(*VarInsn)
	return ok && v.op.IsStore()
}

// IsLoad 是否为局部变量加载指令
func IsLoad(insn Insn) bool {
	v, ok := insn.(*VarInsn)
	return ok && v.op.IsLoad()
}

// IsPseudo 标签和行号不会被执行
func IsPseudo(insn Insn) bool {
	return insn.Opcode() == OpNone
}

// VarIndex 返回读写局部变量的指令所访问的槽位
func VarIndex(insn Insn) (int, bool) {
	switch n := insn.(type) {
	case *VarInsn:
		return n.Var, true
	case *IincInsn:
		return n.Var, true
	}
	return 0, false
}

// JumpTargets 返回指令可能跳转到的全部标签（不含顺序执行的后继）
func JumpTargets(insn Insn) []*Label {
	switch n := insn.(type) {
	case *JumpInsn:
		return []*Label{n.Target}
	case *TableSwitchInsn:
		return append([]*Label{n.Default}, n.Labels...)
	case *LookupSwitchInsn:
		return append([]*Label{n.Default}, n.Labels...)
	}
	return nil
}
