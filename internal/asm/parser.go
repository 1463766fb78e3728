package asm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tangzhangming/jpeep/internal/bytecode"
)

// Parser 把词法单元组装成类和方法
//
// 解析按行进行，出错的行被跳过，继续解析后续行，所有错误一起返回。
type Parser struct {
	tokens   []Token
	current  int
	filename string
	errors   ErrorList

	class    *bytecode.Class
	implicit bool // 允许省略 .class，用于单个方法的片段

	method  *bytecode.Method
	labels  map[string]*bytecode.Label
	defined map[string]bool
	usedAt  map[string]int

	lines *SourceMap
}

// Parse 解析一个完整的类清单
func Parse(filename string, src []byte) (*bytecode.Class, error) {
	c, _, err := ParseWithSourceMap(filename, src)
	return c, err
}

// ParseWithSourceMap 同 Parse，同时返回方法和指令所在的源码行
func ParseWithSourceMap(filename string, src []byte) (*bytecode.Class, *SourceMap, error) {
	p := newParser(filename, string(src), false)
	p.parse()
	if err := p.errors.Err(); err != nil {
		return nil, nil, err
	}
	if p.class == nil {
		return nil, nil, ErrorList{{File: filename, Line: 1, Msg: "missing .class directive"}}
	}
	return p.class, p.lines, nil
}

// ParseMethod 解析只包含一个方法的片段，所属类名为 Test
func ParseMethod(src string) (*bytecode.Method, error) {
	p := newParser("", src, true)
	p.parse()
	if err := p.errors.Err(); err != nil {
		return nil, err
	}
	if p.class == nil || len(p.class.Methods) != 1 {
		return nil, ErrorList{{Line: 1, Msg: "expected exactly one method"}}
	}
	return p.class.Methods[0], nil
}

// MustParseMethod 同 ParseMethod，出错时 panic；用于测试和内置样例
func MustParseMethod(src string) *bytecode.Method {
	m, err := ParseMethod(src)
	if err != nil {
		panic(fmt.Sprintf("asm: %v", err))
	}
	return m
}

func newParser(filename, src string, implicit bool) *Parser {
	l := NewLexer(src, filename)
	tokens := l.ScanTokens()
	return &Parser{
		tokens:   tokens,
		filename: filename,
		errors:   l.Errors(),
		implicit: implicit,
		lines:    newSourceMap(),
	}
}

// ============================================================================
// 行分派
// ============================================================================

func (p *Parser) parse() {
	for {
		line, words, eof := p.nextLine()
		if eof {
			break
		}
		if len(words) == 0 {
			continue
		}
		p.statement(line, words)
	}
	if p.method != nil {
		p.errorf(p.tokens[len(p.tokens)-1].Line, "missing .end method for %s", p.method.Name)
	}
}

// nextLine 返回下一行的全部词法单元
func (p *Parser) nextLine() (int, []Token, bool) {
	if p.tokens[p.current].Kind == TokEOF {
		return 0, nil, true
	}
	line := p.tokens[p.current].Line
	var words []Token
	for p.tokens[p.current].Kind != TokNewline && p.tokens[p.current].Kind != TokEOF {
		words = append(words, p.tokens[p.current])
		p.current++
	}
	if p.tokens[p.current].Kind == TokNewline {
		p.current++
	}
	return line, words, false
}

func (p *Parser) statement(line int, words []Token) {
	head := words[0]
	if head.Kind == TokString {
		p.errorf(line, "unexpected string %s", head)
		return
	}
	if strings.HasPrefix(head.Text, ".") {
		p.directive(line, words)
		return
	}
	if p.method == nil {
		p.errorf(line, "instruction %q outside of a method", head.Text)
		return
	}
	if name, ok := strings.CutSuffix(head.Text, ":"); ok && len(words) == 1 {
		p.defineLabel(line, name)
		return
	}
	p.instruction(line, words)
}

func (p *Parser) directive(line int, words []Token) {
	args := words[1:]
	switch words[0].Text {
	case ".class":
		if p.class != nil {
			p.errorf(line, "duplicate .class directive")
			return
		}
		if len(args) == 0 {
			p.errorf(line, ".class needs a name")
			return
		}
		access, ok := p.flags(line, args[:len(args)-1], bytecode.LookupClassFlag)
		if !ok {
			return
		}
		p.class = bytecode.NewClass(args[len(args)-1].Text)
		p.class.Access = access

	case ".super":
		if c := p.requireClass(line); c != nil && p.arity(line, ".super", args, 1) {
			c.Super = args[0].Text
		}

	case ".source":
		if c := p.requireClass(line); c != nil && p.arity(line, ".source", args, 1) {
			c.SourceFile = args[0].Text
		}

	case ".method":
		p.beginMethod(line, args)

	case ".end":
		if len(args) != 1 || args[0].Text != "method" {
			p.errorf(line, "expected .end method")
			return
		}
		p.endMethod(line)

	case ".limit":
		p.limit(line, args)

	case ".catch":
		p.catch(line, args)

	case ".var":
		p.localVar(line, args)

	case ".line":
		p.lineNumber(line, args)

	default:
		p.errorf(line, "unknown directive %s", words[0].Text)
	}
}

// ============================================================================
// 方法
// ============================================================================

func (p *Parser) requireClass(line int) *bytecode.Class {
	if p.class == nil {
		if !p.implicit {
			p.errorf(line, "missing .class directive")
			return nil
		}
		p.class = bytecode.NewClass("Test")
	}
	return p.class
}

func (p *Parser) beginMethod(line int, args []Token) {
	c := p.requireClass(line)
	if c == nil {
		return
	}
	if p.method != nil {
		p.errorf(line, "nested .method; missing .end method for %s", p.method.Name)
		return
	}
	if len(args) == 0 {
		p.errorf(line, ".method needs a name and descriptor")
		return
	}
	access, ok := p.flags(line, args[:len(args)-1], bytecode.LookupMethodFlag)
	if !ok {
		return
	}
	sig := args[len(args)-1].Text
	i := strings.IndexByte(sig, '(')
	if i <= 0 {
		p.errorf(line, "malformed method signature %q", sig)
		return
	}
	name, desc := sig[:i], sig[i:]
	if _, _, err := bytecode.ParseMethodDescriptor(desc); err != nil {
		p.errorf(line, "%v", err)
		return
	}
	p.method = bytecode.NewMethod(c.Name, access, name, desc)
	p.lines.methods[p.method] = line
	p.labels = make(map[string]*bytecode.Label)
	p.defined = make(map[string]bool)
	p.usedAt = make(map[string]int)
}

func (p *Parser) endMethod(line int) {
	if p.method == nil {
		p.errorf(line, ".end method without .method")
		return
	}
	for name, l := range p.usedAt {
		if !p.defined[name] {
			p.errorf(l, "undefined label %s", name)
		}
	}
	p.class.AddMethod(p.method)
	p.method = nil
}

// add 追加到当前方法并记录源码行
func (p *Parser) add(line int, insn bytecode.Insn) {
	p.method.Instructions.Add(insn)
	p.lines.insns[insn] = line
}

func (p *Parser) inMethod(line int, what string) bool {
	if p.method == nil {
		p.errorf(line, "%s outside of a method", what)
		return false
	}
	return true
}

func (p *Parser) label(line int, name string) *bytecode.Label {
	if l, ok := p.labels[name]; ok {
		return l
	}
	l := bytecode.NewLabel()
	l.Name = name
	p.labels[name] = l
	p.usedAt[name] = line
	return l
}

func (p *Parser) defineLabel(line int, name string) {
	if p.defined[name] {
		p.errorf(line, "label %s defined twice", name)
		return
	}
	p.defined[name] = true
	p.add(line, p.label(line, name))
}

func (p *Parser) limit(line int, args []Token) {
	if !p.inMethod(line, ".limit") || !p.arity(line, ".limit", args, 2) {
		return
	}
	n, ok := p.integer(line, args[1])
	if !ok {
		return
	}
	switch args[0].Text {
	case "stack":
		p.method.MaxStack = n
	case "locals":
		p.method.MaxLocals = n
	default:
		p.errorf(line, "unknown limit %q", args[0].Text)
	}
}

// .catch <type|all> from L to L using L
func (p *Parser) catch(line int, args []Token) {
	if !p.inMethod(line, ".catch") {
		return
	}
	if len(args) != 7 || args[1].Text != "from" || args[3].Text != "to" || args[5].Text != "using" {
		p.errorf(line, "expected .catch <type> from <label> to <label> using <label>")
		return
	}
	typ := args[0].Text
	if typ == "all" {
		typ = ""
	}
	p.method.TryCatchBlocks = append(p.method.TryCatchBlocks, &bytecode.TryCatchBlock{
		Start:   p.label(line, args[2].Text),
		End:     p.label(line, args[4].Text),
		Handler: p.label(line, args[6].Text),
		Type:    typ,
	})
}

// .var <index> is <name> <desc> from L to L
func (p *Parser) localVar(line int, args []Token) {
	if !p.inMethod(line, ".var") {
		return
	}
	if len(args) != 8 || args[1].Text != "is" || args[4].Text != "from" || args[6].Text != "to" {
		p.errorf(line, "expected .var <index> is <name> <desc> from <label> to <label>")
		return
	}
	index, ok := p.integer(line, args[0])
	if !ok {
		return
	}
	if !bytecode.ValidFieldDescriptor(args[3].Text) {
		p.errorf(line, "malformed descriptor %q", args[3].Text)
		return
	}
	p.method.LocalVariables = append(p.method.LocalVariables, &bytecode.LocalVariable{
		Name:  args[2].Text,
		Desc:  args[3].Text,
		Start: p.label(line, args[5].Text),
		End:   p.label(line, args[7].Text),
		Index: index,
	})
}

// .line <n> [label]；省略标签时在当前位置生成一个
func (p *Parser) lineNumber(line int, args []Token) {
	if !p.inMethod(line, ".line") {
		return
	}
	if len(args) != 1 && len(args) != 2 {
		p.errorf(line, "expected .line <number> [label]")
		return
	}
	n, ok := p.integer(line, args[0])
	if !ok {
		return
	}
	var start *bytecode.Label
	if len(args) == 2 {
		start = p.label(line, args[1].Text)
	} else {
		start = bytecode.NewLabel()
		p.add(line, start)
	}
	p.add(line, bytecode.NewLineNumber(n, start))
}

// ============================================================================
// 指令
// ============================================================================

func (p *Parser) instruction(line int, words []Token) {
	name := words[0].Text
	args := words[1:]

	// iload_1 等短形式
	if i := strings.LastIndexByte(name, '_'); i > 0 && i == len(name)-2 && name[i+1] >= '0' && name[i+1] <= '3' {
		if op, ok := bytecode.LookupOpcode(name[:i]); ok && (op.IsLoad() || op.IsStore()) {
			if p.arity(line, name, args, 0) {
				p.add(line, bytecode.NewVarInsn(op, int(name[i+1]-'0')))
			}
			return
		}
	}

	op, ok := bytecode.LookupOpcode(name)
	if !ok {
		p.errorf(line, "unknown instruction %q", name)
		return
	}
	if insn := p.operands(line, op, args); insn != nil {
		p.add(line, insn)
	}
}

func (p *Parser) operands(line int, op bytecode.Opcode, args []Token) bytecode.Insn {
	name := op.String()
	switch {
	case op.IsLoad(), op.IsStore(), op == bytecode.OpRet:
		if !p.arity(line, name, args, 1) {
			return nil
		}
		if v, ok := p.integer(line, args[0]); ok {
			return bytecode.NewVarInsn(op, v)
		}
		return nil

	case op.IsConditionalJump(), op == bytecode.OpGoto, op == bytecode.OpJsr:
		if !p.arity(line, name, args, 1) {
			return nil
		}
		return bytecode.NewJumpInsn(op, p.label(line, args[0].Text))
	}

	switch op {
	case bytecode.OpBipush, bytecode.OpSipush:
		if !p.arity(line, name, args, 1) {
			return nil
		}
		v, ok := p.integer(line, args[0])
		if !ok {
			return nil
		}
		if op == bytecode.OpBipush && (v < -128 || v > 127) || v < -32768 || v > 32767 {
			p.errorf(line, "%s operand %d out of range", name, v)
			return nil
		}
		return bytecode.NewIntInsn(op, v)

	case bytecode.OpNewarray:
		if !p.arity(line, name, args, 1) {
			return nil
		}
		if code, ok := bytecode.LookupArrayType(args[0].Text); ok {
			return bytecode.NewIntInsn(op, code)
		}
		if code, ok := p.integer(line, args[0]); ok {
			return bytecode.NewIntInsn(op, code)
		}
		return nil

	case bytecode.OpNew, bytecode.OpAnewarray, bytecode.OpCheckcast, bytecode.OpInstanceof:
		if !p.arity(line, name, args, 1) {
			return nil
		}
		return bytecode.NewTypeInsn(op, args[0].Text)

	case bytecode.OpGetstatic, bytecode.OpPutstatic, bytecode.OpGetfield, bytecode.OpPutfield:
		if !p.arity(line, name, args, 2) {
			return nil
		}
		owner, member, ok := p.member(line, args[0])
		if !ok {
			return nil
		}
		if !bytecode.ValidFieldDescriptor(args[1].Text) {
			p.errorf(line, "malformed descriptor %q", args[1].Text)
			return nil
		}
		return bytecode.NewFieldInsn(op, owner, member, args[1].Text)

	case bytecode.OpInvokevirtual, bytecode.OpInvokespecial, bytecode.OpInvokestatic, bytecode.OpInvokeinterface:
		itf := op == bytecode.OpInvokeinterface
		if len(args) == 3 && args[2].Text == "itf" {
			itf = true
			args = args[:2]
		}
		if !p.arity(line, name, args, 2) {
			return nil
		}
		owner, member, ok := p.member(line, args[0])
		if !ok {
			return nil
		}
		if _, _, err := bytecode.ParseMethodDescriptor(args[1].Text); err != nil {
			p.errorf(line, "%v", err)
			return nil
		}
		return bytecode.NewMethodInsn(op, owner, member, args[1].Text, itf)

	case bytecode.OpLdc:
		v, ok := p.constant(line, args)
		if !ok {
			return nil
		}
		return bytecode.NewLdcInsn(v)

	case bytecode.OpIinc:
		if !p.arity(line, name, args, 2) {
			return nil
		}
		v, ok1 := p.integer(line, args[0])
		d, ok2 := p.integer(line, args[1])
		if !ok1 || !ok2 {
			return nil
		}
		return bytecode.NewIincInsn(v, d)

	case bytecode.OpTableswitch:
		return p.tableSwitch(line, args)

	case bytecode.OpLookupswitch:
		return p.lookupSwitch(line, args)

	case bytecode.OpMultianewarray:
		if !p.arity(line, name, args, 2) {
			return nil
		}
		dims, ok := p.integer(line, args[1])
		if !ok {
			return nil
		}
		return bytecode.NewMultiANewArrayInsn(args[0].Text, dims)
	}

	if !p.arity(line, name, args, 0) {
		return nil
	}
	return bytecode.NewInsn(op)
}

// tableswitch <min> L... default L
func (p *Parser) tableSwitch(line int, args []Token) bytecode.Insn {
	if len(args) < 3 || args[len(args)-2].Text != "default" {
		p.errorf(line, "expected tableswitch <min> <labels...> default <label>")
		return nil
	}
	lo, ok := p.integer(line, args[0])
	if !ok {
		return nil
	}
	var labels []*bytecode.Label
	for _, a := range args[1 : len(args)-2] {
		labels = append(labels, p.label(line, a.Text))
	}
	if len(labels) == 0 {
		p.errorf(line, "tableswitch needs at least one case")
		return nil
	}
	dflt := p.label(line, args[len(args)-1].Text)
	return bytecode.NewTableSwitchInsn(lo, lo+len(labels)-1, dflt, labels...)
}

// lookupswitch k:L... default L
func (p *Parser) lookupSwitch(line int, args []Token) bytecode.Insn {
	if len(args) < 2 || args[len(args)-2].Text != "default" {
		p.errorf(line, "expected lookupswitch <key:label...> default <label>")
		return nil
	}
	var keys []int
	var labels []*bytecode.Label
	for _, a := range args[:len(args)-2] {
		k, l, found := strings.Cut(a.Text, ":")
		if !found {
			p.errorf(line, "expected key:label, got %q", a.Text)
			return nil
		}
		key, err := strconv.Atoi(k)
		if err != nil {
			p.errorf(line, "invalid lookupswitch key %q", k)
			return nil
		}
		if len(keys) > 0 && key <= keys[len(keys)-1] {
			p.errorf(line, "lookupswitch keys must be strictly increasing")
			return nil
		}
		keys = append(keys, key)
		labels = append(labels, p.label(line, l))
	}
	return bytecode.NewLookupSwitchInsn(p.label(line, args[len(args)-1].Text), keys, labels)
}

// constant ldc 的操作数：字符串、整数、带 L/f/d 后缀的数、class X
func (p *Parser) constant(line int, args []Token) (any, bool) {
	if len(args) == 2 && args[0].Kind == TokWord && args[0].Text == "class" {
		return bytecode.ClassConst(args[1].Text), true
	}
	if !p.arity(line, "ldc", args, 1) {
		return nil, false
	}
	tok := args[0]
	if tok.Kind == TokString {
		return tok.Text, true
	}
	text := tok.Text
	switch {
	case strings.HasSuffix(text, "L"):
		if v, err := strconv.ParseInt(text[:len(text)-1], 10, 64); err == nil {
			return v, true
		}
	case strings.HasSuffix(text, "f"):
		if v, err := strconv.ParseFloat(text[:len(text)-1], 32); err == nil {
			return float32(v), true
		}
	case strings.HasSuffix(text, "d"):
		if v, err := strconv.ParseFloat(text[:len(text)-1], 64); err == nil {
			return v, true
		}
	case strings.ContainsAny(text, ".eE"):
		if v, err := strconv.ParseFloat(text, 64); err == nil {
			return v, true
		}
	default:
		if v, err := strconv.ParseInt(text, 10, 32); err == nil {
			return int32(v), true
		}
	}
	p.errorf(line, "invalid constant %q", text)
	return nil, false
}

// member 拆分 owner.name
func (p *Parser) member(line int, tok Token) (string, string, bool) {
	i := strings.LastIndexByte(tok.Text, '.')
	if i <= 0 || i == len(tok.Text)-1 {
		p.errorf(line, "expected owner.name, got %q", tok.Text)
		return "", "", false
	}
	return tok.Text[:i], tok.Text[i+1:], true
}

// ============================================================================
// 辅助方法
// ============================================================================

func (p *Parser) flags(line int, words []Token, lookup func(string) (int, bool)) (int, bool) {
	access := 0
	for _, w := range words {
		f, ok := lookup(w.Text)
		if !ok {
			p.errorf(line, "unknown access flag %q", w.Text)
			return 0, false
		}
		access |= f
	}
	return access, true
}

func (p *Parser) arity(line int, what string, args []Token, n int) bool {
	if len(args) != n {
		p.errorf(line, "%s expects %d operand(s), got %d", what, n, len(args))
		return false
	}
	return true
}

func (p *Parser) integer(line int, tok Token) (int, bool) {
	v, err := strconv.Atoi(tok.Text)
	if err != nil || tok.Kind != TokWord {
		p.errorf(line, "expected integer, got %s", tok)
		return 0, false
	}
	return v, true
}

func (p *Parser) errorf(line int, format string, args ...any) {
	p.errors = append(p.errors, &SyntaxError{File: p.filename, Line: line, Msg: fmt.Sprintf(format, args...)})
}
