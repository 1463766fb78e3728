package optimizer

import (
	"fmt"

	"github.com/tangzhangming/jpeep/internal/bytecode"
)

// Symbol 字段或方法的 owner/name/descriptor 三元组
//
// Descriptor 为空表示任意描述符。
type Symbol struct {
	Owner      string `toml:"owner" yaml:"owner" json:"owner"`
	Name       string `toml:"name" yaml:"name" json:"name"`
	Descriptor string `toml:"descriptor,omitempty" yaml:"descriptor,omitempty" json:"descriptor,omitempty"`
}

func (s Symbol) String() string {
	if s.Descriptor == "" {
		return s.Owner + "." + s.Name
	}
	return s.Owner + "." + s.Name + " " + s.Descriptor
}

// Matches 比较三元组
func (s Symbol) Matches(owner, name, desc string) bool {
	return s.Owner == owner && s.Name == name && (s.Descriptor == "" || s.Descriptor == desc)
}

// OutputSymbols 打印规则识别的输出流字段和输出方法
type OutputSymbols struct {
	Fields  []Symbol `toml:"fields" yaml:"fields" json:"fields"`
	Methods []Symbol `toml:"methods" yaml:"methods" json:"methods"`
}

// DefaultOutputSymbols System.out / System.err 与 PrintStream.print / println
func DefaultOutputSymbols() *OutputSymbols {
	return &OutputSymbols{
		Fields: []Symbol{
			{Owner: "java/lang/System", Name: "out", Descriptor: "Ljava/io/PrintStream;"},
			{Owner: "java/lang/System", Name: "err", Descriptor: "Ljava/io/PrintStream;"},
		},
		Methods: []Symbol{
			{Owner: "java/io/PrintStream", Name: "print"},
			{Owner: "java/io/PrintStream", Name: "println"},
		},
	}
}

// Validate 检查符号格式
func (s *OutputSymbols) Validate() error {
	for _, f := range s.Fields {
		if f.Owner == "" || f.Name == "" {
			return fmt.Errorf("output field %q: owner and name are required", f)
		}
		if f.Descriptor != "" && !bytecode.ValidFieldDescriptor(f.Descriptor) {
			return fmt.Errorf("output field %s: %w", f, bytecode.ErrBadDescriptor)
		}
	}
	for _, m := range s.Methods {
		if m.Owner == "" || m.Name == "" {
			return fmt.Errorf("output method %q: owner and name are required", m)
		}
		if m.Descriptor == "" {
			continue
		}
		args, _, err := bytecode.ParseMethodDescriptor(m.Descriptor)
		if err != nil {
			return fmt.Errorf("output method %s: %w", m, err)
		}
		if len(args) != 1 {
			return fmt.Errorf("output method %s must take exactly one argument", m)
		}
	}
	return nil
}

// IsOutputField getstatic 是否读取输出流字段
func (s *OutputSymbols) IsOutputField(f *bytecode.FieldInsn) bool {
	if f.Opcode() != bytecode.OpGetstatic {
		return false
	}
	for _, sym := range s.Fields {
		if sym.Matches(f.Owner, f.Name, f.Desc) {
			return true
		}
	}
	return false
}

// IsOutputMethod invokevirtual 是否调用单参数输出方法
func (s *OutputSymbols) IsOutputMethod(m *bytecode.MethodInsn) bool {
	if m.Opcode() != bytecode.OpInvokevirtual {
		return false
	}
	args, _, err := bytecode.ParseMethodDescriptor(m.Desc)
	if err != nil || len(args) != 1 {
		return false
	}
	for _, sym := range s.Methods {
		if sym.Matches(m.Owner, m.Name, m.Desc) {
			return true
		}
	}
	return false
}
