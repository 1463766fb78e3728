// Package asm 读取 Jasmin 风格的字节码清单，构造 bytecode.Class
//
// 清单格式与 bytecode.Disassemble 的输出一致，两者可以互相往返：
//
//	.class public super Hello
//	.super java/lang/Object
//
//	.method public static main([Ljava/lang/String;)V
//	  getstatic java/lang/System.out Ljava/io/PrintStream;
//	  ldc "hi"
//	  invokevirtual java/io/PrintStream.println (Ljava/lang/String;)V
//	  return
//	.end method
//
// 注释以 // 开头直到行尾。
package asm

import (
	"fmt"
	"strconv"
)

// ============================================================================
// Token
// ============================================================================

// TokenKind 词法单元类型
type TokenKind int

const (
	TokWord    TokenKind = iota // 助记符、指令、标签、描述符、数字
	TokString                   // 双引号字符串，Text 为解码后的内容
	TokNewline                  // 行结束
	TokEOF
)

// Token 词法单元
type Token struct {
	Kind TokenKind
	Text string
	Line int
}

func (t Token) String() string {
	switch t.Kind {
	case TokString:
		return strconv.Quote(t.Text)
	case TokNewline:
		return "newline"
	case TokEOF:
		return "end of file"
	}
	return t.Text
}

// ============================================================================
// Lexer
// ============================================================================

// Lexer 按行切分清单
type Lexer struct {
	source   string
	filename string
	current  int
	line     int
	tokens   []Token
	errors   ErrorList
}

// NewLexer 创建词法分析器
func NewLexer(source, filename string) *Lexer {
	return &Lexer{
		source:   source,
		filename: filename,
		line:     1,
		tokens:   make([]Token, 0, len(source)/6+8),
	}
}

// ScanTokens 扫描全部词法单元，最后一个总是 TokEOF
func (l *Lexer) ScanTokens() []Token {
	for l.current < len(l.source) {
		c := l.source[l.current]
		switch {
		case c == '\n':
			l.emit(TokNewline, "")
			l.line++
			l.current++
		case c == ' ' || c == '\t' || c == '\r':
			l.current++
		case c == '/' && l.peek(1) == '/':
			for l.current < len(l.source) && l.source[l.current] != '\n' {
				l.current++
			}
		case c == '"':
			l.scanString()
		default:
			l.scanWord()
		}
	}
	l.emit(TokNewline, "")
	l.emit(TokEOF, "")
	return l.tokens
}

// Errors 词法错误
func (l *Lexer) Errors() ErrorList { return l.errors }

func (l *Lexer) peek(n int) byte {
	if l.current+n < len(l.source) {
		return l.source[l.current+n]
	}
	return 0
}

func (l *Lexer) emit(kind TokenKind, text string) {
	l.tokens = append(l.tokens, Token{Kind: kind, Text: text, Line: l.line})
}

func (l *Lexer) scanWord() {
	start := l.current
	for l.current < len(l.source) {
		c := l.source[l.current]
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '"' {
			break
		}
		if c == '/' && l.peek(1) == '/' {
			break
		}
		l.current++
	}
	l.emit(TokWord, l.source[start:l.current])
}

func (l *Lexer) scanString() {
	start := l.current
	l.current++ // 开头的引号
	for l.current < len(l.source) {
		switch l.source[l.current] {
		case '\\':
			l.current += 2
			continue
		case '\n':
			l.errorf("unterminated string literal")
			return
		case '"':
			l.current++
			text, err := strconv.Unquote(l.source[start:l.current])
			if err != nil {
				l.errorf("invalid string literal %s", l.source[start:l.current])
				return
			}
			l.emit(TokString, text)
			return
		}
		l.current++
	}
	l.errorf("unterminated string literal")
}

func (l *Lexer) errorf(format string, args ...any) {
	l.errors = append(l.errors, &SyntaxError{File: l.filename, Line: l.line, Msg: fmt.Sprintf(format, args...)})
}
