package jvmgen

import (
	"errors"
	"fmt"

	"github.com/tangzhangming/jpeep/internal/bytecode"
)

var (
	ErrBranchTooFar = errors.New("branch offset does not fit in 16 bits")
	ErrCodeTooLarge = errors.New("method code exceeds 65535 bytes")
	ErrUnknownLabel = errors.New("label is not part of the method")
	ErrBadOperand   = errors.New("operand out of range")
	ErrMaxStack     = errors.New("cannot compute max_stack")
)

// Generator 把 bytecode.Class 编码为 class 文件
//
// 每次 Generate 使用新的常量池；同一个 Generator 不能并发使用。
type Generator struct {
	pool      *ConstantPool
	classFile *ClassFile
}

// NewGenerator 创建新的代码生成器
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate 生成 class 文件内容
func (g *Generator) Generate(c *bytecode.Class) ([]byte, error) {
	g.pool = NewConstantPool()
	g.classFile = NewClassFile(g.pool)

	g.classFile.AccessFlags = uint16(c.Access)
	g.classFile.ThisClass = g.pool.Class(c.Name)
	if c.Super != "" {
		g.classFile.SuperClass = g.pool.Class(c.Super)
	}

	for _, m := range c.Methods {
		info, err := g.generateMethod(m)
		if err != nil {
			return nil, fmt.Errorf("failed to generate %s: %w", m, err)
		}
		g.classFile.Methods = append(g.classFile.Methods, info)
	}

	if c.SourceFile != "" {
		w := NewByteWriter()
		w.WriteU16(g.pool.Utf8(c.SourceFile))
		g.classFile.Attributes = append(g.classFile.Attributes, AttributeInfo{
			NameIndex: g.pool.Utf8("SourceFile"),
			Info:      w.Bytes(),
		})
	}

	if err := g.pool.Err(); err != nil {
		return nil, fmt.Errorf("class %s: %w", c.Name, err)
	}
	return g.classFile.ToBytes(), nil
}

// generateMethod 生成 method_info，抽象和 native 方法没有 Code 属性
func (g *Generator) generateMethod(m *bytecode.Method) (MethodInfo, error) {
	info := MethodInfo{
		AccessFlags:     uint16(m.Access),
		NameIndex:       g.pool.Utf8(m.Name),
		DescriptorIndex: g.pool.Utf8(m.Desc),
	}
	if m.Access&(bytecode.AccAbstract|bytecode.AccNative) != 0 {
		if m.Instructions.Len() > 0 {
			return info, errors.New("abstract or native method has code")
		}
		return info, nil
	}

	code, err := newAssembler(g.pool, m).assemble()
	if err != nil {
		return info, err
	}
	info.Attributes = []AttributeInfo{code}
	return info, nil
}
