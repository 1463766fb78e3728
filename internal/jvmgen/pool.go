package jvmgen

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrPoolOverflow 常量池超过 65535 个槽位
var ErrPoolOverflow = errors.New("constant pool exceeds 65535 entries")

// ConstantPool 去重的常量池
//
// 索引从 1 开始；long/double 占两个槽位，第二个槽位不可引用。
type ConstantPool struct {
	entries []ConstantPoolEntry
	index   map[string]uint16 // 常量池索引缓存
	next    int
}

// NewConstantPool 创建空常量池
func NewConstantPool() *ConstantPool {
	return &ConstantPool{index: make(map[string]uint16), next: 1}
}

// Count class 文件中的 constant_pool_count
func (p *ConstantPool) Count() int { return p.next }

// Len 条目数（long/double 计一次）
func (p *ConstantPool) Len() int { return len(p.entries) }

// Err 常量池是否已溢出
func (p *ConstantPool) Err() error {
	if p.next > math.MaxUint16 {
		return fmt.Errorf("%w: %d slots", ErrPoolOverflow, p.next-1)
	}
	return nil
}

func (p *ConstantPool) add(key string, e ConstantPoolEntry) uint16 {
	if idx, ok := p.index[key]; ok {
		return idx
	}
	idx := uint16(p.next)
	p.entries = append(p.entries, e)
	p.next++
	if e.Tag() == ConstantLong || e.Tag() == ConstantDouble {
		p.next++
	}
	p.index[key] = idx
	return idx
}

func (p *ConstantPool) encode(w *ByteWriter) {
	w.WriteU16(uint16(p.next))
	for _, e := range p.entries {
		e.encode(w)
	}
}

// Utf8 字符串字面量
func (p *ConstantPool) Utf8(value string) uint16 {
	return p.add("utf8:"+value, &ConstantUtf8Info{Value: value})
}

// Class 类引用，name 为内部名称（java/lang/Object）或数组描述符
func (p *ConstantPool) Class(name string) uint16 {
	key := "class:" + name
	if idx, ok := p.index[key]; ok {
		return idx
	}
	return p.add(key, &ConstantClassInfo{NameIndex: p.Utf8(name)})
}

// String 字符串常量
func (p *ConstantPool) String(value string) uint16 {
	key := "string:" + value
	if idx, ok := p.index[key]; ok {
		return idx
	}
	return p.add(key, &ConstantStringInfo{StringIndex: p.Utf8(value)})
}

// Integer int 常量
func (p *ConstantPool) Integer(v int32) uint16 {
	return p.add("int:"+strconv.FormatInt(int64(v), 10), &ConstantIntegerInfo{Value: v})
}

// Float float 常量，按位模式去重（区分 -0 与 0，保留 NaN）
func (p *ConstantPool) Float(v float32) uint16 {
	return p.add("float:"+strconv.FormatUint(uint64(math.Float32bits(v)), 16), &ConstantFloatInfo{Value: v})
}

// Long long 常量
func (p *ConstantPool) Long(v int64) uint16 {
	return p.add("long:"+strconv.FormatInt(v, 10), &ConstantLongInfo{Value: v})
}

// Double double 常量，按位模式去重
func (p *ConstantPool) Double(v float64) uint16 {
	return p.add("double:"+strconv.FormatUint(math.Float64bits(v), 16), &ConstantDoubleInfo{Value: v})
}

// NameAndType 名称与描述符
func (p *ConstantPool) NameAndType(name, descriptor string) uint16 {
	key := "nameandtype:" + name + ":" + descriptor
	if idx, ok := p.index[key]; ok {
		return idx
	}
	return p.add(key, &ConstantNameAndTypeInfo{
		NameIndex:       p.Utf8(name),
		DescriptorIndex: p.Utf8(descriptor),
	})
}

// Fieldref 字段引用
func (p *ConstantPool) Fieldref(owner, name, descriptor string) uint16 {
	return p.memberref(ConstantFieldref, "fieldref:", owner, name, descriptor)
}

// Methodref 类方法引用
func (p *ConstantPool) Methodref(owner, name, descriptor string) uint16 {
	return p.memberref(ConstantMethodref, "methodref:", owner, name, descriptor)
}

// InterfaceMethodref 接口方法引用
func (p *ConstantPool) InterfaceMethodref(owner, name, descriptor string) uint16 {
	return p.memberref(ConstantInterfaceMethodref, "imethodref:", owner, name, descriptor)
}

func (p *ConstantPool) memberref(tag uint8, prefix, owner, name, descriptor string) uint16 {
	key := prefix + owner + "." + name + ":" + descriptor
	if idx, ok := p.index[key]; ok {
		return idx
	}
	return p.add(key, &ConstantMemberrefInfo{
		tag:              tag,
		ClassIndex:       p.Class(owner),
		NameAndTypeIndex: p.NameAndType(name, descriptor),
	})
}
