package lsp

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/tangzhangming/jpeep/internal/asm"
	"github.com/tangzhangming/jpeep/internal/bytecode"
	"github.com/tangzhangming/jpeep/internal/config"
	"github.com/tangzhangming/jpeep/internal/optimizer"
)

// diagnosticSource 诊断信息的来源名
const diagnosticSource = "jpeep"

// Hit 清单中一处可以应用的改写
type Hit struct {
	Rule   string
	Method string // name + 描述符
	Line   int    // 触发规则的指令所在行
}

// Analysis 解析并试优化一个清单的结果
type Analysis struct {
	Class  *bytecode.Class // 优化后的类；解析失败时为 nil
	Errors asm.ErrorList
	Report *optimizer.Report
	Hits   []Hit

	methodLines map[string]int
}

// MethodAt 第 line 行声明的方法的报告
func (a *Analysis) MethodAt(line int) (optimizer.MethodReport, bool) {
	if a.Report == nil {
		return optimizer.MethodReport{}, false
	}
	for _, mr := range a.Report.Methods {
		if a.methodLines[mr.Method] == line {
			return mr, true
		}
	}
	return optimizer.MethodReport{}, false
}

// Rewrites 改写总数
func (a *Analysis) Rewrites() int {
	return len(a.Hits)
}

// Diagnostics 把语法错误、跳过的方法和可用改写转换为诊断信息
func (a *Analysis) Diagnostics(lines []string) []protocol.Diagnostic {
	diags := make([]protocol.Diagnostic, 0, len(a.Errors)+len(a.Hits))
	for _, e := range a.Errors {
		diags = append(diags, protocol.Diagnostic{
			Range:    lineRange(lines, e.Line),
			Severity: protocol.DiagnosticSeverityError,
			Source:   diagnosticSource,
			Message:  e.Msg,
		})
	}
	if a.Report != nil {
		for _, mr := range a.Report.Skipped() {
			diags = append(diags, protocol.Diagnostic{
				Range:    lineRange(lines, a.methodLines[mr.Method]),
				Severity: protocol.DiagnosticSeverityWarning,
				Source:   diagnosticSource,
				Message:  "method is not optimized: " + mr.Error,
			})
		}
	}
	for _, h := range a.Hits {
		diags = append(diags, protocol.Diagnostic{
			Range:    lineRange(lines, h.Line),
			Severity: protocol.DiagnosticSeverityHint,
			Code:     h.Rule,
			Source:   diagnosticSource,
			Message:  fmt.Sprintf("peephole rewrite available (%s)", h.Rule),
		})
	}
	return diags
}

// Analyzer 用配置中的规则和符号表分析清单
type Analyzer struct {
	rules []optimizer.Rule
	opts  []optimizer.Option
}

// NewAnalyzer 按配置创建分析器
func NewAnalyzer(cfg *config.Config, logger *zap.Logger) (*Analyzer, error) {
	rules, err := cfg.Rules()
	if err != nil {
		return nil, err
	}
	return &Analyzer{rules: rules, opts: cfg.Options(logger)}, nil
}

// Analyze 解析 content 并在副本上运行优化器
func (a *Analyzer) Analyze(path, content string) *Analysis {
	c, lines, err := asm.ParseWithSourceMap(path, []byte(content))
	if err != nil {
		var list asm.ErrorList
		if errors.As(err, &list) {
			return &Analysis{Errors: list}
		}
		return &Analysis{Errors: asm.ErrorList{{File: path, Line: 1, Msg: err.Error()}}}
	}

	res := &Analysis{Class: c, methodLines: make(map[string]int, len(c.Methods))}
	for _, m := range c.Methods {
		res.methodLines[m.Name+m.Desc] = lines.MethodLine(m)
	}

	var mu sync.Mutex
	hook := func(m *bytecode.Method, rule string, at bytecode.Insn) {
		line := lines.InsnLine(at)
		if line == 0 {
			line = lines.MethodLine(m)
		}
		mu.Lock()
		defer mu.Unlock()
		res.Hits = append(res.Hits, Hit{Rule: rule, Method: m.Name + m.Desc, Line: line})
	}
	opts := append(slices.Clip(a.opts), optimizer.WithRewriteHook(hook))
	res.Report = optimizer.New(a.rules, opts...).OptimizeClass(c)

	sort.Slice(res.Hits, func(i, j int) bool {
		if res.Hits[i].Line != res.Hits[j].Line {
			return res.Hits[i].Line < res.Hits[j].Line
		}
		return res.Hits[i].Rule < res.Hits[j].Rule
	})
	return res
}

// methodSummary 悬停在 .method 行上时显示的内容
func methodSummary(mr optimizer.MethodReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s**\n\n", mr.Method)
	if mr.Result.Skipped {
		sb.WriteString("not optimized: " + mr.Error)
		return sb.String()
	}
	if mr.Result.Total() == 0 {
		sb.WriteString("no peephole rewrites apply")
		return sb.String()
	}
	names := make([]string, 0, len(mr.Result.Rewrites))
	for name := range mr.Result.Rewrites {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&sb, "- %s: %d\n", name, mr.Result.Rewrites[name])
	}
	fmt.Fprintf(&sb, "\n%d pass(es), %d node(s) removed", mr.Result.Passes, mr.Result.Removed)
	return sb.String()
}
