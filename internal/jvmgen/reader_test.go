package jvmgen

import (
	"encoding/binary"
	"fmt"
	"testing"
)

// 测试用的最小 class 文件读取器，只解析生成器会写出的结构

type parsedConst struct {
	tag  uint8
	a, b uint16
	str  string
	num  uint64
}

type parsedCode struct {
	maxStack, maxLocals int
	code                []byte
	exceptions          [][4]int
	attrs               map[string][]byte
}

type parsedMethod struct {
	access     int
	name, desc string
	code       *parsedCode
}

type parsedClass struct {
	major   int
	pool    []parsedConst // 下标即常量池索引
	access  int
	this    string
	super   string
	methods []parsedMethod
	attrs   map[string][]byte
}

type byteReader struct {
	b   []byte
	pos int
}

func (r *byteReader) u8() int {
	v := r.b[r.pos]
	r.pos++
	return int(v)
}

func (r *byteReader) u16() int {
	v := binary.BigEndian.Uint16(r.b[r.pos:])
	r.pos += 2
	return int(v)
}

func (r *byteReader) u32() int {
	v := binary.BigEndian.Uint32(r.b[r.pos:])
	r.pos += 4
	return int(v)
}

func (r *byteReader) bytes(n int) []byte {
	v := r.b[r.pos : r.pos+n]
	r.pos += n
	return v
}

func readClass(t *testing.T, data []byte) *parsedClass {
	t.Helper()
	r := &byteReader{b: data}
	if magic := uint32(r.u32()); magic != ClassFileMagic {
		t.Fatalf("bad magic %#x", magic)
	}
	c := &parsedClass{}
	r.u16()
	c.major = r.u16()

	count := r.u16()
	c.pool = make([]parsedConst, count)
	for i := 1; i < count; i++ {
		e := parsedConst{tag: uint8(r.u8())}
		switch e.tag {
		case ConstantUtf8:
			e.str = string(r.bytes(r.u16()))
		case ConstantInteger, ConstantFloat:
			e.num = uint64(r.u32())
		case ConstantLong, ConstantDouble:
			e.num = binary.BigEndian.Uint64(r.bytes(8))
		case ConstantClass, ConstantString:
			e.a = uint16(r.u16())
		case ConstantFieldref, ConstantMethodref, ConstantInterfaceMethodref, ConstantNameAndType:
			e.a, e.b = uint16(r.u16()), uint16(r.u16())
		default:
			t.Fatalf("unexpected constant tag %d at %d", e.tag, i)
		}
		c.pool[i] = e
		if e.tag == ConstantLong || e.tag == ConstantDouble {
			i++
		}
	}

	c.access = r.u16()
	c.this = c.className(r.u16())
	if idx := r.u16(); idx != 0 {
		c.super = c.className(idx)
	}
	if n := r.u16(); n != 0 {
		t.Fatalf("unexpected %d interfaces", n)
	}
	if n := r.u16(); n != 0 {
		t.Fatalf("unexpected %d fields", n)
	}
	for n := r.u16(); n > 0; n-- {
		m := parsedMethod{access: r.u16()}
		m.name = c.utf8(r.u16())
		m.desc = c.utf8(r.u16())
		attrs := c.readAttributes(r)
		if code, ok := attrs["Code"]; ok {
			m.code = c.readCode(code)
		}
		c.methods = append(c.methods, m)
	}
	c.attrs = c.readAttributes(r)
	if r.pos != len(data) {
		t.Fatalf("%d trailing bytes", len(data)-r.pos)
	}
	return c
}

func (c *parsedClass) readAttributes(r *byteReader) map[string][]byte {
	out := make(map[string][]byte)
	for n := r.u16(); n > 0; n-- {
		name := c.utf8(r.u16())
		out[name] = r.bytes(r.u32())
	}
	return out
}

func (c *parsedClass) readCode(b []byte) *parsedCode {
	r := &byteReader{b: b}
	code := &parsedCode{maxStack: r.u16(), maxLocals: r.u16()}
	code.code = r.bytes(r.u32())
	for n := r.u16(); n > 0; n-- {
		code.exceptions = append(code.exceptions, [4]int{r.u16(), r.u16(), r.u16(), r.u16()})
	}
	code.attrs = c.readAttributes(r)
	return code
}

func (c *parsedClass) utf8(idx int) string {
	return c.pool[idx].str
}

func (c *parsedClass) className(idx int) string {
	return c.utf8(int(c.pool[idx].a))
}

// member 把字段/方法引用还原为 owner.name:desc
func (c *parsedClass) member(idx int) string {
	ref := c.pool[idx]
	nat := c.pool[ref.b]
	return fmt.Sprintf("%s.%s:%s", c.className(int(ref.a)), c.utf8(int(nat.a)), c.utf8(int(nat.b)))
}

func (c *parsedClass) method(t *testing.T, name string) parsedMethod {
	t.Helper()
	for _, m := range c.methods {
		if m.name == name {
			return m
		}
	}
	t.Fatalf("method %s not found", name)
	return parsedMethod{}
}

// u16s 把属性内容拆成 16 位整数序列，便于比较调试表
func u16s(b []byte) []int {
	out := make([]int, 0, len(b)/2)
	for i := 0; i+1 < len(b); i += 2 {
		out = append(out, int(binary.BigEndian.Uint16(b[i:])))
	}
	return out
}
