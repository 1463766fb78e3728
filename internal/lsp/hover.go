package lsp

import (
	"fmt"
	"strings"

	"go.lsp.dev/protocol"

	"github.com/tangzhangming/jpeep/internal/bytecode"
)

// hover 获取悬停信息
func (s *Server) hover(doc *Document, pos protocol.Position) *protocol.Hover {
	line := int(pos.Line)
	if line < 0 || line >= len(doc.Lines) {
		return nil
	}
	text := doc.Lines[line]

	// .method 行显示该方法的优化结果
	if strings.HasPrefix(strings.TrimSpace(text), ".method") {
		a := doc.Analysis(s.analyzer)
		if mr, ok := a.MethodAt(line + 1); ok {
			r := lineRange(doc.Lines, line+1)
			return &protocol.Hover{
				Contents: protocol.MarkupContent{Kind: protocol.Markdown, Value: methodSummary(mr)},
				Range:    &r,
			}
		}
		return nil
	}

	word, start, end := wordAt(text, int(pos.Character))
	if word == "" {
		return nil
	}
	content := opcodeInfo(word)
	if content == "" {
		return nil
	}
	return &protocol.Hover{
		Contents: protocol.MarkupContent{Kind: protocol.Markdown, Value: content},
		Range: &protocol.Range{
			Start: protocol.Position{Line: pos.Line, Character: uint32(start)},
			End:   protocol.Position{Line: pos.Line, Character: uint32(end)},
		},
	}
}

// opcodeInfo 助记符的说明，不是助记符时返回空串
func opcodeInfo(word string) string {
	slot := -1
	op, ok := bytecode.LookupOpcode(word)
	if !ok {
		// iload_1 等短形式
		i := len(word) - 2
		if i <= 0 || word[i] != '_' || word[i+1] < '0' || word[i+1] > '3' {
			return ""
		}
		if op, ok = bytecode.LookupOpcode(word[:i]); !ok || !(op.IsLoad() || op.IsStore()) {
			return ""
		}
		slot = int(word[i+1] - '0')
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s** `0x%02X`\n", op, int(op))
	var traits []string
	switch {
	case op.IsLoad():
		traits = append(traits, "loads a local variable")
	case op.IsStore():
		traits = append(traits, "stores a local variable")
	case op.IsConstant():
		traits = append(traits, "pushes a constant")
	case op.IsConditionalJump():
		traits = append(traits, "conditional branch")
	case op.IsReturn():
		traits = append(traits, "returns from the method")
	}
	if op.IsWide() {
		traits = append(traits, "long or double operand")
	}
	if !op.Falls() && !op.IsReturn() {
		traits = append(traits, "does not fall through")
	}
	if slot >= 0 {
		traits = append(traits, fmt.Sprintf("short form of `%s %d`", op, slot))
	}
	if len(traits) > 0 {
		sb.WriteString("\n")
		for _, t := range traits {
			sb.WriteString("- " + t + "\n")
		}
	}
	return sb.String()
}
