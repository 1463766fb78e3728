package lsp

import (
	"fmt"
	"strings"

	"go.lsp.dev/protocol"

	"github.com/tangzhangming/jpeep/internal/bytecode"
)

// SourceOptimize 把整个清单替换为优化后版本的代码操作
const SourceOptimize protocol.CodeActionKind = protocol.Source + ".optimize"

// codeActions 文档中有可用改写时提供一个整文件的优化操作
func (s *Server) codeActions(doc *Document, p *protocol.CodeActionParams) []protocol.CodeAction {
	actions := []protocol.CodeAction{}
	if !wantsKind(p.Context.Only, SourceOptimize) {
		return actions
	}
	a := doc.Analysis(s.analyzer)
	if a.Class == nil || a.Rewrites() == 0 {
		return actions
	}

	var resolved []protocol.Diagnostic
	for _, d := range p.Context.Diagnostics {
		if d.Source == diagnosticSource && d.Severity == protocol.DiagnosticSeverityHint {
			resolved = append(resolved, d)
		}
	}
	actions = append(actions, protocol.CodeAction{
		Title:       fmt.Sprintf("Apply %d peephole rewrite(s)", a.Rewrites()),
		Kind:        SourceOptimize,
		Diagnostics: resolved,
		IsPreferred: true,
		Edit: &protocol.WorkspaceEdit{
			Changes: map[protocol.DocumentURI][]protocol.TextEdit{
				doc.URI: {{
					Range:   wholeDocument(doc.Lines),
					NewText: bytecode.DisassembleClass(a.Class),
				}},
			},
		},
	})
	return actions
}

// wantsKind only 为空或包含 kind 的某个前缀时返回 true
func wantsKind(only []protocol.CodeActionKind, kind protocol.CodeActionKind) bool {
	if len(only) == 0 {
		return true
	}
	for _, k := range only {
		if k == kind || strings.HasPrefix(string(kind), string(k)+".") {
			return true
		}
	}
	return false
}
