package lsp

import (
	"strings"
	"unicode"
	"unicode/utf16"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
)

// isWordChar 助记符和标签名中允许的字符
func isWordChar(c rune) bool {
	return unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_'
}

// wordAt 获取指定位置的单词
// 返回: 单词内容、单词开始位置、单词结束位置（按字符计）
func wordAt(line string, character int) (word string, start int, end int) {
	runes := []rune(line)
	if character < 0 || character > len(runes) {
		return "", 0, 0
	}

	start = character
	for start > 0 && isWordChar(runes[start-1]) {
		start--
	}
	end = character
	for end < len(runes) && isWordChar(runes[end]) {
		end++
	}
	if start >= end {
		return "", 0, 0
	}
	return string(runes[start:end]), start, end
}

// splitLines 将内容按行分割
func splitLines(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	return strings.Split(content, "\n")
}

// utf16Len 协议中的列号以 UTF-16 码元计
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// lineRange 第 line 行（从 1 开始）去掉缩进后的范围
func lineRange(lines []string, line int) protocol.Range {
	i := max(line-1, 0)
	var text string
	if i < len(lines) {
		text = lines[i]
	}
	indent := len(text) - len(strings.TrimLeft(text, " \t"))
	return protocol.Range{
		Start: protocol.Position{Line: uint32(i), Character: uint32(indent)},
		End:   protocol.Position{Line: uint32(i), Character: uint32(utf16Len(text))},
	}
}

// wholeDocument 覆盖整个文档的范围
func wholeDocument(lines []string) protocol.Range {
	last := max(len(lines)-1, 0)
	width := 0
	if len(lines) > 0 {
		width = utf16Len(lines[last])
	}
	return protocol.Range{
		End: protocol.Position{Line: uint32(last), Character: uint32(width)},
	}
}

// documentPath 文件 URI 转为本地路径，其他 URI 原样返回
func documentPath(u protocol.DocumentURI) string {
	if strings.HasPrefix(string(u), uri.FileScheme+"://") {
		return u.Filename()
	}
	return string(u)
}
