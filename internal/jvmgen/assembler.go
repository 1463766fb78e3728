package jvmgen

import (
	"errors"
	"fmt"
	"math"

	"github.com/tangzhangming/jpeep/internal/analysis"
	"github.com/tangzhangming/jpeep/internal/bytecode"
)

// ============================================================================
// Code 属性
// ============================================================================

// assembler 把一个方法体编码为 Code 属性
//
// 跳转一律使用 16 位偏移，因此每条指令的长度只取决于自身和所在偏移
// （switch 的对齐填充），两遍即可完成：第一遍确定偏移，第二遍回填跳转。
type assembler struct {
	pool    *ConstantPool
	method  *bytecode.Method
	offsets map[bytecode.Insn]int
	final   bool
}

func newAssembler(pool *ConstantPool, m *bytecode.Method) *assembler {
	return &assembler{
		pool:    pool,
		method:  m,
		offsets: make(map[bytecode.Insn]int, m.Instructions.Len()),
	}
}

func (a *assembler) assemble() (AttributeInfo, error) {
	list := a.method.Instructions
	if list.Len() == 0 {
		return AttributeInfo{}, errors.New("method has no code")
	}

	code := NewByteWriter()
	for pass := 0; pass < 2; pass++ {
		a.final = pass == 1
		code.Reset()
		for i, insn := range list.All() {
			a.offsets[insn] = code.Len()
			if err := a.encode(code, insn); err != nil {
				return AttributeInfo{}, fmt.Errorf("instruction %d (%s): %w", i, insn.Opcode(), err)
			}
		}
	}
	if code.Len() > math.MaxUint16 {
		return AttributeInfo{}, fmt.Errorf("%w: %d bytes", ErrCodeTooLarge, code.Len())
	}

	maxStack, err := a.maxStack()
	if err != nil {
		return AttributeInfo{}, err
	}
	maxLocals := a.method.ComputeMaxLocals()
	if maxLocals > math.MaxUint16 {
		return AttributeInfo{}, fmt.Errorf("%w: max_locals %d", ErrBadOperand, maxLocals)
	}

	w := NewByteWriter()
	w.WriteU16(uint16(maxStack))
	w.WriteU16(uint16(maxLocals))
	w.WriteU32(uint32(code.Len()))
	w.WriteBytes(code.Bytes())
	if err := a.writeExceptionTable(w); err != nil {
		return AttributeInfo{}, err
	}

	var attrs []AttributeInfo
	lines, err := a.lineNumberTable()
	if err != nil {
		return AttributeInfo{}, err
	}
	if lines != nil {
		attrs = append(attrs, *lines)
	}
	attrs = append(attrs, a.localVariableTables()...)
	writeAttributes(w, attrs)

	return AttributeInfo{NameIndex: a.pool.Utf8("Code"), Info: w.Bytes()}, nil
}

// maxStack 由数据流分析得出；分析失败（例如 jsr/ret）时退回声明值
func (a *assembler) maxStack() (int, error) {
	frames, err := analysis.NewAnalyzer(analysis.BasicInterpreter{}).Analyze(a.method)
	if err != nil {
		if a.method.MaxStack > 0 {
			return a.method.MaxStack, nil
		}
		return 0, fmt.Errorf("%w: %w", ErrMaxStack, err)
	}
	return analysis.MaxStack(frames), nil
}

// labelOffset 第一遍中尚未出现的标签按 0 处理
func (a *assembler) labelOffset(l *bytecode.Label) (int, error) {
	off, ok := a.offsets[l]
	if !ok && a.final {
		return 0, ErrUnknownLabel
	}
	return off, nil
}

// ============================================================================
// 指令编码
// ============================================================================

func (a *assembler) encode(w *ByteWriter, insn bytecode.Insn) error {
	pc := w.Len()
	op := insn.Opcode()

	switch n := insn.(type) {
	case *bytecode.Label, *bytecode.LineNumber:
		// 零宽度

	case *bytecode.InsnNode:
		w.WriteU8(byte(op))

	case *bytecode.IntInsn:
		return encodeInt(w, op, n.Operand)

	case *bytecode.VarInsn:
		return encodeVar(w, op, n.Var)

	case *bytecode.IincInsn:
		switch {
		case n.Var >= 0 && n.Var <= math.MaxUint8 && n.Delta >= math.MinInt8 && n.Delta <= math.MaxInt8:
			w.WriteU8(byte(op))
			w.WriteU8(uint8(n.Var))
			w.WriteU8(uint8(int8(n.Delta)))
		case n.Var >= 0 && n.Var <= math.MaxUint16 && n.Delta >= math.MinInt16 && n.Delta <= math.MaxInt16:
			w.WriteU8(opWide)
			w.WriteU8(byte(op))
			w.WriteU16(uint16(n.Var))
			w.WriteU16(uint16(int16(n.Delta)))
		default:
			return fmt.Errorf("%w: iinc %d %d", ErrBadOperand, n.Var, n.Delta)
		}

	case *bytecode.TypeInsn:
		w.WriteU8(byte(op))
		w.WriteU16(a.pool.Class(n.Desc))

	case *bytecode.FieldInsn:
		w.WriteU8(byte(op))
		w.WriteU16(a.pool.Fieldref(n.Owner, n.Name, n.Desc))

	case *bytecode.MethodInsn:
		w.WriteU8(byte(op))
		if n.Itf {
			w.WriteU16(a.pool.InterfaceMethodref(n.Owner, n.Name, n.Desc))
		} else {
			w.WriteU16(a.pool.Methodref(n.Owner, n.Name, n.Desc))
		}
		if op == bytecode.OpInvokeinterface {
			count := bytecode.ArgumentsSize(n.Desc) + 1
			if count > math.MaxUint8 {
				return fmt.Errorf("%w: %d argument slots", ErrBadOperand, count)
			}
			w.WriteU8(uint8(count))
			w.WriteU8(0)
		}

	case *bytecode.JumpInsn:
		target, err := a.labelOffset(n.Target)
		if err != nil {
			return err
		}
		off := target - pc
		if a.final && (off < math.MinInt16 || off > math.MaxInt16) {
			return fmt.Errorf("%w: %d", ErrBranchTooFar, off)
		}
		w.WriteU8(byte(op))
		w.WriteU16(uint16(int16(off)))

	case *bytecode.LdcInsn:
		return a.encodeLdc(w, n.Value)

	case *bytecode.TableSwitchInsn:
		if len(n.Labels) != n.Max-n.Min+1 {
			return fmt.Errorf("%w: tableswitch %d..%d with %d labels", ErrBadOperand, n.Min, n.Max, len(n.Labels))
		}
		w.WriteU8(byte(op))
		w.Pad(4)
		if err := a.writeSwitchOffset(w, pc, n.Default); err != nil {
			return err
		}
		w.WriteU32(uint32(int32(n.Min)))
		w.WriteU32(uint32(int32(n.Max)))
		for _, l := range n.Labels {
			if err := a.writeSwitchOffset(w, pc, l); err != nil {
				return err
			}
		}

	case *bytecode.LookupSwitchInsn:
		if len(n.Keys) != len(n.Labels) {
			return fmt.Errorf("%w: lookupswitch with %d keys and %d labels", ErrBadOperand, len(n.Keys), len(n.Labels))
		}
		w.WriteU8(byte(op))
		w.Pad(4)
		if err := a.writeSwitchOffset(w, pc, n.Default); err != nil {
			return err
		}
		w.WriteU32(uint32(len(n.Keys)))
		for i, key := range n.Keys {
			w.WriteU32(uint32(int32(key)))
			if err := a.writeSwitchOffset(w, pc, n.Labels[i]); err != nil {
				return err
			}
		}

	case *bytecode.MultiANewArrayInsn:
		if n.Dims < 1 || n.Dims > math.MaxUint8 {
			return fmt.Errorf("%w: %d dimensions", ErrBadOperand, n.Dims)
		}
		w.WriteU8(byte(op))
		w.WriteU16(a.pool.Class(n.Desc))
		w.WriteU8(uint8(n.Dims))

	default:
		return fmt.Errorf("unsupported instruction kind %s", insn.Kind())
	}
	return nil
}

func (a *assembler) writeSwitchOffset(w *ByteWriter, pc int, l *bytecode.Label) error {
	target, err := a.labelOffset(l)
	if err != nil {
		return err
	}
	w.WriteU32(uint32(int32(target - pc)))
	return nil
}

func encodeInt(w *ByteWriter, op bytecode.Opcode, v int) error {
	switch op {
	case bytecode.OpBipush:
		if v < math.MinInt8 || v > math.MaxInt8 {
			return fmt.Errorf("%w: bipush %d", ErrBadOperand, v)
		}
		w.WriteU8(byte(op))
		w.WriteU8(uint8(int8(v)))
	case bytecode.OpSipush:
		if v < math.MinInt16 || v > math.MaxInt16 {
			return fmt.Errorf("%w: sipush %d", ErrBadOperand, v)
		}
		w.WriteU8(byte(op))
		w.WriteU16(uint16(int16(v)))
	case bytecode.OpNewarray:
		if v < 4 || v > 11 {
			return fmt.Errorf("%w: newarray type %d", ErrBadOperand, v)
		}
		w.WriteU8(byte(op))
		w.WriteU8(uint8(v))
	default:
		return fmt.Errorf("%w: %s takes no int operand", ErrBadOperand, op)
	}
	return nil
}

// encodeVar 优先使用 xload_<n> 短形式，槽位超过 255 时加 wide 前缀
func encodeVar(w *ByteWriter, op bytecode.Opcode, v int) error {
	if b, ok := shortVarForm(op, v); ok {
		w.WriteU8(b)
		return nil
	}
	switch {
	case v >= 0 && v <= math.MaxUint8:
		w.WriteU8(byte(op))
		w.WriteU8(uint8(v))
	case v >= 0 && v <= math.MaxUint16:
		w.WriteU8(opWide)
		w.WriteU8(byte(op))
		w.WriteU16(uint16(v))
	default:
		return fmt.Errorf("%w: local %d", ErrBadOperand, v)
	}
	return nil
}

// encodeLdc 按常量类型和常量池索引选择 ldc / ldc_w / ldc2_w
func (a *assembler) encodeLdc(w *ByteWriter, v any) error {
	var idx uint16
	wide := false
	switch c := v.(type) {
	case int32:
		idx = a.pool.Integer(c)
	case float32:
		idx = a.pool.Float(c)
	case string:
		idx = a.pool.String(c)
	case bytecode.ClassConst:
		idx = a.pool.Class(string(c))
	case int64:
		idx, wide = a.pool.Long(c), true
	case float64:
		idx, wide = a.pool.Double(c), true
	default:
		return fmt.Errorf("%w: ldc constant of type %T", ErrBadOperand, v)
	}

	switch {
	case wide:
		w.WriteU8(opLdc2W)
		w.WriteU16(idx)
	case idx <= math.MaxUint8:
		w.WriteU8(byte(bytecode.OpLdc))
		w.WriteU8(uint8(idx))
	default:
		w.WriteU8(opLdcW)
		w.WriteU16(idx)
	}
	return nil
}

// ============================================================================
// 异常表与调试属性
// ============================================================================

func (a *assembler) writeExceptionTable(w *ByteWriter) error {
	type entry struct{ start, end, handler, catchType uint16 }
	var entries []entry
	for i, tc := range a.method.TryCatchBlocks {
		start, ok1 := a.offsets[tc.Start]
		end, ok2 := a.offsets[tc.End]
		handler, ok3 := a.offsets[tc.Handler]
		if !ok1 || !ok2 || !ok3 {
			return fmt.Errorf("try/catch block %d: %w", i, ErrUnknownLabel)
		}
		// 空范围不会捕获任何异常
		if start >= end {
			continue
		}
		var catchType uint16
		if tc.Type != "" {
			catchType = a.pool.Class(tc.Type)
		}
		entries = append(entries, entry{uint16(start), uint16(end), uint16(handler), catchType})
	}

	w.WriteU16(uint16(len(entries)))
	for _, e := range entries {
		w.WriteU16(e.start)
		w.WriteU16(e.end)
		w.WriteU16(e.handler)
		w.WriteU16(e.catchType)
	}
	return nil
}

// lineNumberTable 起始标签已不在指令流中的行号被忽略
func (a *assembler) lineNumberTable() (*AttributeInfo, error) {
	body := NewByteWriter()
	n := 0
	for insn := a.method.Instructions.First(); insn != nil; insn = insn.Next() {
		ln, ok := insn.(*bytecode.LineNumber)
		if !ok {
			continue
		}
		pc, ok := a.offsets[ln.Start]
		if !ok {
			continue
		}
		if ln.Line < 0 || ln.Line > math.MaxUint16 {
			return nil, fmt.Errorf("%w: line %d", ErrBadOperand, ln.Line)
		}
		body.WriteU16(uint16(pc))
		body.WriteU16(uint16(ln.Line))
		n++
	}
	if n == 0 {
		return nil, nil
	}

	w := NewByteWriter()
	w.WriteU16(uint16(n))
	w.WriteBytes(body.Bytes())
	return &AttributeInfo{NameIndex: a.pool.Utf8("LineNumberTable"), Info: w.Bytes()}, nil
}

// localVariableTables LocalVariableTable，以及带泛型签名的变量的 LocalVariableTypeTable
func (a *assembler) localVariableTables() []AttributeInfo {
	vars, types := NewByteWriter(), NewByteWriter()
	nVars, nTypes := 0, 0
	for _, lv := range a.method.LocalVariables {
		start, ok1 := a.offsets[lv.Start]
		end, ok2 := a.offsets[lv.End]
		if !ok1 || !ok2 || end < start {
			continue
		}
		vars.WriteU16(uint16(start))
		vars.WriteU16(uint16(end - start))
		vars.WriteU16(a.pool.Utf8(lv.Name))
		vars.WriteU16(a.pool.Utf8(lv.Desc))
		vars.WriteU16(uint16(lv.Index))
		nVars++

		if lv.Signature != "" {
			types.WriteU16(uint16(start))
			types.WriteU16(uint16(end - start))
			types.WriteU16(a.pool.Utf8(lv.Name))
			types.WriteU16(a.pool.Utf8(lv.Signature))
			types.WriteU16(uint16(lv.Index))
			nTypes++
		}
	}

	var attrs []AttributeInfo
	if nVars > 0 {
		w := NewByteWriter()
		w.WriteU16(uint16(nVars))
		w.WriteBytes(vars.Bytes())
		attrs = append(attrs, AttributeInfo{NameIndex: a.pool.Utf8("LocalVariableTable"), Info: w.Bytes()})
	}
	if nTypes > 0 {
		w := NewByteWriter()
		w.WriteU16(uint16(nTypes))
		w.WriteBytes(types.Bytes())
		attrs = append(attrs, AttributeInfo{NameIndex: a.pool.Utf8("LocalVariableTypeTable"), Info: w.Bytes()})
	}
	return attrs
}
