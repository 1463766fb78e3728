// Package jvmgen 把（优化后的）树形方法体序列化为 JVM class 文件
package jvmgen

import (
	"io"
	"math"
	"unicode/utf16"
)

// Class 文件常量
const (
	ClassFileMagic = 0xCAFEBABE
	// 49（Java 5）之后的版本要求 StackMapTable，这里不生成
	ClassMajorVersion = 49
	ClassMinorVersion = 0
)

// 常量池标签
const (
	ConstantUtf8               = 1
	ConstantInteger            = 3
	ConstantFloat              = 4
	ConstantLong               = 5
	ConstantDouble             = 6
	ConstantClass              = 7
	ConstantString             = 8
	ConstantFieldref           = 9
	ConstantMethodref          = 10
	ConstantInterfaceMethodref = 11
	ConstantNameAndType        = 12
)

// ClassFile JVM class 文件结构
//
// 字段、接口与类级注解不在模型中，写出时计数为 0。
type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16
	ConstantPool *ConstantPool
	AccessFlags  uint16
	ThisClass    uint16
	SuperClass   uint16
	Methods      []MethodInfo
	Attributes   []AttributeInfo
}

// ConstantPoolEntry 常量池条目
type ConstantPoolEntry interface {
	Tag() uint8
	encode(w *ByteWriter)
}

// ConstantUtf8Info UTF8 字符串常量
type ConstantUtf8Info struct {
	Value string
}

func (c *ConstantUtf8Info) Tag() uint8 { return ConstantUtf8 }
func (c *ConstantUtf8Info) encode(w *ByteWriter) {
	b := modifiedUTF8(c.Value)
	w.WriteU8(c.Tag())
	w.WriteU16(uint16(len(b)))
	w.WriteBytes(b)
}

// ConstantIntegerInfo int 常量
type ConstantIntegerInfo struct {
	Value int32
}

func (c *ConstantIntegerInfo) Tag() uint8 { return ConstantInteger }
func (c *ConstantIntegerInfo) encode(w *ByteWriter) {
	w.WriteU8(c.Tag())
	w.WriteU32(uint32(c.Value))
}

// ConstantFloatInfo float 常量
type ConstantFloatInfo struct {
	Value float32
}

func (c *ConstantFloatInfo) Tag() uint8 { return ConstantFloat }
func (c *ConstantFloatInfo) encode(w *ByteWriter) {
	w.WriteU8(c.Tag())
	w.WriteU32(math.Float32bits(c.Value))
}

// ConstantLongInfo long 常量，占两个常量池槽位
type ConstantLongInfo struct {
	Value int64
}

func (c *ConstantLongInfo) Tag() uint8 { return ConstantLong }
func (c *ConstantLongInfo) encode(w *ByteWriter) {
	w.WriteU8(c.Tag())
	w.WriteU64(uint64(c.Value))
}

// ConstantDoubleInfo double 常量，占两个常量池槽位
type ConstantDoubleInfo struct {
	Value float64
}

func (c *ConstantDoubleInfo) Tag() uint8 { return ConstantDouble }
func (c *ConstantDoubleInfo) encode(w *ByteWriter) {
	w.WriteU8(c.Tag())
	w.WriteU64(math.Float64bits(c.Value))
}

// ConstantClassInfo 类引用常量
type ConstantClassInfo struct {
	NameIndex uint16
}

func (c *ConstantClassInfo) Tag() uint8 { return ConstantClass }
func (c *ConstantClassInfo) encode(w *ByteWriter) {
	w.WriteU8(c.Tag())
	w.WriteU16(c.NameIndex)
}

// ConstantStringInfo 字符串常量
type ConstantStringInfo struct {
	StringIndex uint16
}

func (c *ConstantStringInfo) Tag() uint8 { return ConstantString }
func (c *ConstantStringInfo) encode(w *ByteWriter) {
	w.WriteU8(c.Tag())
	w.WriteU16(c.StringIndex)
}

// ConstantMemberrefInfo 字段、方法与接口方法引用，三者只有标签不同
type ConstantMemberrefInfo struct {
	tag              uint8
	ClassIndex       uint16
	NameAndTypeIndex uint16
}

func (c *ConstantMemberrefInfo) Tag() uint8 { return c.tag }
func (c *ConstantMemberrefInfo) encode(w *ByteWriter) {
	w.WriteU8(c.tag)
	w.WriteU16(c.ClassIndex)
	w.WriteU16(c.NameAndTypeIndex)
}

// ConstantNameAndTypeInfo 名称和类型描述符常量
type ConstantNameAndTypeInfo struct {
	NameIndex       uint16
	DescriptorIndex uint16
}

func (c *ConstantNameAndTypeInfo) Tag() uint8 { return ConstantNameAndType }
func (c *ConstantNameAndTypeInfo) encode(w *ByteWriter) {
	w.WriteU8(c.Tag())
	w.WriteU16(c.NameIndex)
	w.WriteU16(c.DescriptorIndex)
}

// MethodInfo 方法信息
type MethodInfo struct {
	AccessFlags     uint16
	NameIndex       uint16
	DescriptorIndex uint16
	Attributes      []AttributeInfo
}

// AttributeInfo 属性信息
type AttributeInfo struct {
	NameIndex uint16
	Info      []byte
}

// NewClassFile 创建新的 class 文件
func NewClassFile(pool *ConstantPool) *ClassFile {
	return &ClassFile{
		MinorVersion: ClassMinorVersion,
		MajorVersion: ClassMajorVersion,
		ConstantPool: pool,
	}
}

// Write 将 class 文件写入 io.Writer
func (cf *ClassFile) Write(w io.Writer) error {
	_, err := w.Write(cf.ToBytes())
	return err
}

// ToBytes 将 class 文件转换为字节数组
func (cf *ClassFile) ToBytes() []byte {
	w := NewByteWriter()
	w.WriteU32(ClassFileMagic)
	w.WriteU16(cf.MinorVersion)
	w.WriteU16(cf.MajorVersion)

	cf.ConstantPool.encode(w)

	w.WriteU16(cf.AccessFlags)
	w.WriteU16(cf.ThisClass)
	w.WriteU16(cf.SuperClass)
	w.WriteU16(0) // interfaces_count
	w.WriteU16(0) // fields_count

	w.WriteU16(uint16(len(cf.Methods)))
	for i := range cf.Methods {
		m := &cf.Methods[i]
		w.WriteU16(m.AccessFlags)
		w.WriteU16(m.NameIndex)
		w.WriteU16(m.DescriptorIndex)
		writeAttributes(w, m.Attributes)
	}
	writeAttributes(w, cf.Attributes)
	return w.Bytes()
}

func writeAttributes(w *ByteWriter, attrs []AttributeInfo) {
	w.WriteU16(uint16(len(attrs)))
	for _, a := range attrs {
		w.WriteU16(a.NameIndex)
		w.WriteU32(uint32(len(a.Info)))
		w.WriteBytes(a.Info)
	}
}

// modifiedUTF8 class 文件使用的 UTF-8 变体：
// U+0000 编码为两个字节，增补平面字符按 UTF-16 代理对分别编码。
func modifiedUTF8(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r >= 0x10000 {
			hi, lo := utf16.EncodeRune(r)
			out = appendModifiedUnit(out, uint16(hi))
			out = appendModifiedUnit(out, uint16(lo))
			continue
		}
		out = appendModifiedUnit(out, uint16(r))
	}
	return out
}

func appendModifiedUnit(out []byte, c uint16) []byte {
	switch {
	case c != 0 && c < 0x80:
		return append(out, byte(c))
	case c < 0x800:
		return append(out, byte(0xC0|c>>6), byte(0x80|c&0x3F))
	default:
		return append(out, byte(0xE0|c>>12), byte(0x80|(c>>6)&0x3F), byte(0x80|c&0x3F))
	}
}
