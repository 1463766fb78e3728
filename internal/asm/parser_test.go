package asm

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tangzhangming/jpeep/internal/bytecode"
)

const helloClass = `
.class public super Hello
.super java/lang/Object
.source Hello.java

.method public static main([Ljava/lang/String;)V
  .limit stack 2
  .limit locals 2
  .catch java/lang/RuntimeException from L0 to L1 using L2
  .var 0 is args [Ljava/lang/String; from L0 to L3
L0:
  .line 3 L0
  getstatic java/lang/System.out Ljava/io/PrintStream;
  ldc "hi \"there\""   // 带转义的字符串
  invokevirtual java/io/PrintStream.println (Ljava/lang/String;)V
L1:
  goto L3
L2:
  astore 1
L3:
  return
.end method

.method public <init>()V
  aload_0
  invokespecial java/lang/Object.<init> ()V
  return
.end method
`

func TestParseClass(t *testing.T) {
	c, err := Parse("Hello.jasm", []byte(helloClass))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if c.Name != "Hello" || c.Super != "java/lang/Object" || c.SourceFile != "Hello.java" {
		t.Errorf("class header: got %s extends %s (%s)", c.Name, c.Super, c.SourceFile)
	}
	if c.Access != bytecode.AccPublic|bytecode.AccSuper {
		t.Errorf("class access: got %#x", c.Access)
	}
	if len(c.Methods) != 2 {
		t.Fatalf("method count: got %d, want 2", len(c.Methods))
	}

	m := c.Methods[0]
	if m.Name != "main" || m.Desc != "([Ljava/lang/String;)V" || !m.IsStatic() {
		t.Errorf("method header: got %s access %#x", m, m.Access)
	}
	if m.MaxStack != 2 || m.MaxLocals != 2 {
		t.Errorf("limits: got stack %d locals %d", m.MaxStack, m.MaxLocals)
	}
	if len(m.TryCatchBlocks) != 1 || m.TryCatchBlocks[0].Type != "java/lang/RuntimeException" {
		t.Errorf("try/catch blocks: got %+v", m.TryCatchBlocks)
	}
	if len(m.LocalVariables) != 1 || m.LocalVariables[0].Name != "args" {
		t.Errorf("local variables: got %+v", m.LocalVariables)
	}
	ldc, ok := m.Instructions.First().Next().Next().Next().(*bytecode.LdcInsn)
	if !ok || ldc.Value != `hi "there"` {
		t.Errorf("ldc operand: got %#v", m.Instructions.First().Next().Next().Next())
	}

	ctor := c.Methods[1]
	load, ok := ctor.Instructions.First().(*bytecode.VarInsn)
	if !ok || load.Opcode() != bytecode.OpAload || load.Var != 0 {
		t.Errorf("aload_0 should parse as aload 0, got %v", ctor.Instructions.First())
	}
}

func TestParseRoundTrip(t *testing.T) {
	src := `.method public static f(IJ)I
  .catch all from L0 to L1 using L2
L0:
  iload 0
  tableswitch 1 L1 L2 default L3
L1:
  lookupswitch -1:L2 7:L3 default L3
L2:
  pop
L3:
  lload 1
  l2i
  ldc 12L
  ldc 1.5f
  ldc 2.25d
  ldc class java/lang/String
  pop2
  pop2
  pop
  iinc 0 -1
  bipush -5
  sipush 300
  newarray int
  multianewarray [[I 2
  checkcast [I
  ireturn
.end method
`
	m, err := ParseMethod(src)
	if err != nil {
		t.Fatalf("ParseMethod failed: %v", err)
	}
	first := bytecode.Disassemble(m)

	again, err := ParseMethod(first)
	if err != nil {
		t.Fatalf("reparse failed: %v\n%s", err, first)
	}
	if diff := cmp.Diff(first, bytecode.Disassemble(again)); diff != "" {
		t.Errorf("round trip mismatch (-first +second):\n%s", diff)
	}
	if !strings.Contains(first, "  ldc 12L\n") || !strings.Contains(first, "  newarray int\n") {
		t.Errorf("unexpected listing:\n%s", first)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
		msg  string
	}{
		{"unknown instruction", ".method f()V\n  frobnicate\n  return\n.end method\n", 2, "unknown instruction"},
		{"undefined label", ".method f()V\n  goto Nowhere\n.end method\n", 2, "undefined label Nowhere"},
		{"missing end", ".method f()V\n  return\n", 3, "missing .end method"},
		{"bad descriptor", ".method f(Q)V\n.end method\n", 1, "malformed descriptor"},
		{"operand count", ".method f()V\n  iload\n.end method\n", 2, "expects 1 operand"},
		{"bipush range", ".method f()V\n  bipush 300\n.end method\n", 2, "out of range"},
		{"outside method", "return\n", 1, "outside of a method"},
		{"unterminated string", ".method f()V\n  ldc \"abc\n.end method\n", 2, "unterminated string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMethod(tt.src)
			if err == nil {
				t.Fatal("expected an error")
			}
			var list ErrorList
			if !errors.As(err, &list) || len(list) == 0 {
				t.Fatalf("error %T is not an ErrorList", err)
			}
			if list[0].Line != tt.line || !strings.Contains(list[0].Msg, tt.msg) {
				t.Errorf("got %v, want line %d containing %q", list[0], tt.line, tt.msg)
			}
		})
	}
}

func TestParseRequiresClass(t *testing.T) {
	_, err := Parse("x.jasm", []byte(".method f()V\n  return\n.end method\n"))
	if err == nil || !strings.Contains(err.Error(), "x.jasm:1: missing .class directive") {
		t.Errorf("got %v", err)
	}
}

func TestParseWithSourceMap(t *testing.T) {
	c, lines, err := ParseWithSourceMap("Hello.jasm", []byte(helloClass))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	main, ctor := c.Methods[0], c.Methods[1]
	if got := lines.MethodLine(main); got != 6 {
		t.Errorf("main declared on line %d, want 6", got)
	}
	if got := lines.MethodLine(ctor); got != 24 {
		t.Errorf("<init> declared on line %d, want 24", got)
	}

	want := map[string]int{"getstatic": 13, "ldc": 14, "invokevirtual": 15, "goto": 17, "astore": 19}
	for insn := main.Instructions.First(); insn != nil; insn = insn.Next() {
		if line, ok := want[insn.Opcode().String()]; ok {
			if got := lines.InsnLine(insn); got != line {
				t.Errorf("%s on line %d, want %d", insn.Opcode(), got, line)
			}
		}
	}
	if lines.InsnLine(bytecode.NewInsn(bytecode.OpNop)) != 0 {
		t.Error("unknown instructions have no line")
	}

	var none *SourceMap
	if none.MethodLine(main) != 0 || none.InsnLine(main.Instructions.First()) != 0 {
		t.Error("a nil source map reports no lines")
	}
}
