package analysis

import (
	"slices"

	"github.com/tangzhangming/jpeep/internal/bytecode"
)

// StoredValue 由 xstore 或 iinc 写入局部变量的值
//
// stores 记录所有可能写入该值的指令，按指令 ID 升序排列，
// 比较的是节点身份而不是内容。
type StoredValue struct {
	basic  Basic
	stores []bytecode.Insn
}

// NewStoredValue 只有一个来源的值
func NewStoredValue(b Basic, store bytecode.Insn) *StoredValue {
	return &StoredValue{basic: b, stores: []bytecode.Insn{store}}
}

func (v *StoredValue) Basic() Basic { return v.basic }
func (v *StoredValue) Size() int    { return v.basic.Size() }

// Stores 可能的来源指令（副本）
func (v *StoredValue) Stores() []bytecode.Insn {
	return slices.Clone(v.stores)
}

// Equal 类型相同且来源集合相同
func (v *StoredValue) Equal(o *StoredValue) bool {
	if v == o {
		return true
	}
	if v == nil || o == nil || v.basic != o.basic || len(v.stores) != len(o.stores) {
		return false
	}
	for i := range v.stores {
		if v.stores[i] != o.stores[i] {
			return false
		}
	}
	return true
}

// unionStores 合并两个有序来源集合
func unionStores(a, b []bytecode.Insn) []bytecode.Insn {
	out := make([]bytecode.Insn, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i].ID() < b[j].ID():
			out = append(out, a[i])
			i++
		default:
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	return append(out, b[j:]...)
}

// StoreLoadInterpreter 跟踪局部变量值的来源
//
// 存储指令和 iinc 产生只含自身的 StoredValue，其余指令只产生基本类型。
// 汇合时来源取并集；一侧没有来源时保留另一侧的来源，
// 否则某个加载实际可能读到的存储会从关系中丢失。
type StoreLoadInterpreter struct {
	BasicInterpreter
}

func (StoreLoadInterpreter) CopyOperation(insn bytecode.Insn, v Value) Value {
	if bytecode.IsStore(insn) {
		return NewStoredValue(v.Basic(), insn)
	}
	return v.Basic()
}

func (i StoreLoadInterpreter) UnaryOperation(insn bytecode.Insn, v Value) Value {
	if insn.Opcode() == bytecode.OpIinc {
		return NewStoredValue(IntValue, insn)
	}
	return i.BasicInterpreter.UnaryOperation(insn, v)
}

func (i StoreLoadInterpreter) Merge(v, w Value) Value {
	sv, vok := v.(*StoredValue)
	sw, wok := w.(*StoredValue)
	if !vok && !wok {
		return i.BasicInterpreter.Merge(v, w)
	}

	b := v.Basic()
	if b != w.Basic() {
		b = Uninitialized
	}
	var stores []bytecode.Insn
	switch {
	case vok && wok:
		stores = unionStores(sv.stores, sw.stores)
	case vok:
		stores = sv.stores
	default:
		stores = sw.stores
	}
	merged := &StoredValue{basic: b, stores: stores}
	if vok && sv.Equal(merged) {
		return sv
	}
	return merged
}

// Chains 存储与加载之间的到达关系
//
// 加载指的是 xload 以及把 iinc 当作读取时的一侧。
type Chains struct {
	loads  map[bytecode.Insn][]bytecode.Insn // store -> loads
	stores map[bytecode.Insn][]bytecode.Insn // load -> stores
}

// MatchStoresWithLoads 对方法做一次分析，建立存储到加载的映射
func MatchStoresWithLoads(m *bytecode.Method) (*Chains, error) {
	frames, err := NewAnalyzer(StoreLoadInterpreter{}).Analyze(m)
	if err != nil {
		return nil, err
	}
	c := &Chains{
		loads:  make(map[bytecode.Insn][]bytecode.Insn),
		stores: make(map[bytecode.Insn][]bytecode.Insn),
	}
	i := 0
	for insn := m.Instructions.First(); insn != nil; insn = insn.Next() {
		f := frames[i]
		i++
		if f == nil {
			continue
		}
		var slot int
		switch n := insn.(type) {
		case *bytecode.VarInsn:
			if !n.Opcode().IsLoad() {
				continue
			}
			slot = n.Var
		case *bytecode.IincInsn:
			slot = n.Var
		default:
			continue
		}
		sv, ok := f.Local(slot).(*StoredValue)
		if !ok {
			continue
		}
		c.stores[insn] = sv.Stores()
		for _, s := range sv.stores {
			c.loads[s] = append(c.loads[s], insn)
		}
	}
	return c, nil
}

// LoadsOf 可能读取 store 所写值的指令，按指令顺序
func (c *Chains) LoadsOf(store bytecode.Insn) []bytecode.Insn {
	return c.loads[store]
}

// StoresOf 可能为 load 提供值的存储指令
func (c *Chains) StoresOf(load bytecode.Insn) []bytecode.Insn {
	return c.stores[load]
}

// LoadCount store 的读取者个数
func (c *Chains) LoadCount(store bytecode.Insn) int {
	return len(c.loads[store])
}
