package optimizer

import (
	"go.uber.org/zap"

	"github.com/tangzhangming/jpeep/internal/analysis"
	"github.com/tangzhangming/jpeep/internal/bytecode"
)

// ============================================================================
// 不动点驱动
// ============================================================================

// Result 单个方法的优化结果
type Result struct {
	Rewrites map[string]int `json:"rewrites"` // 规则名 -> 成功次数
	Passes   int            `json:"passes"`
	Removed  int            `json:"removed"` // 净删除的节点数
	Skipped  bool           `json:"skipped,omitempty"`
}

// Total 所有规则的改写次数
func (r Result) Total() int {
	n := 0
	for _, c := range r.Rewrites {
		n += c
	}
	return n
}

// Transformer 对单个方法反复应用规则直到不动点
//
// 规则列表在构造时确定，之后只读，可以被多个 goroutine 共享。
type Transformer struct {
	rules   []Rule
	symbols *OutputSymbols
	logger  *zap.Logger
	hook    RewriteHook
}

// RewriteHook 每次改写成功后调用，at 为触发规则的锚点指令
//
// 多个 worker 并行优化时会被并发调用。
type RewriteHook func(m *bytecode.Method, rule string, at bytecode.Insn)

// Option Transformer / Optimizer 的可选项
type Option func(*options)

type options struct {
	symbols *OutputSymbols
	logger  *zap.Logger
	workers int
	hook    RewriteHook
}

// WithSymbols 替换默认的输出符号表
func WithSymbols(s *OutputSymbols) Option {
	return func(o *options) { o.symbols = s }
}

// WithLogger 设置日志
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRewriteHook 观察每次改写
func WithRewriteHook(h RewriteHook) Option {
	return func(o *options) { o.hook = h }
}

// WithWorkers 并行优化方法的 worker 数，<=0 表示 CPU 核数
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

func buildOptions(opts []Option) options {
	o := options{symbols: DefaultOutputSymbols(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewTransformer 创建驱动器，rules 的顺序即优先级
func NewTransformer(rules []Rule, opts ...Option) *Transformer {
	o := buildOptions(opts)
	return &Transformer{
		rules:   append([]Rule(nil), rules...),
		symbols: o.symbols,
		logger:  o.logger,
		hook:    o.hook,
	}
}

// Rules 规则列表（副本）
func (t *Transformer) Rules() []Rule {
	return append([]Rule(nil), t.rules...)
}

// Transform 原地优化一个方法
//
// 分析失败（例如含 jsr/ret）时方法保持不变，Result.Skipped 为 true 并返回错误。
func (t *Transformer) Transform(m *bytecode.Method) (Result, error) {
	res := Result{Rewrites: make(map[string]int)}
	list := m.Instructions
	if list.Len() == 0 || len(t.rules) == 0 {
		return res, nil
	}

	chains, err := analysis.MatchStoresWithLoads(m)
	if err != nil {
		res.Skipped = true
		t.logger.Warn("skipping method", zap.String("method", m.String()), zap.Error(err))
		return res, err
	}
	ctx := &Context{
		Method:     m,
		Classifier: NewClassifier(m),
		Chains:     chains,
		Symbols:    t.symbols,
	}

	before := list.Len()
	for {
		res.Passes++
		changed := false
		for insn := list.First(); insn != nil; {
			next := t.rewriteAt(list, insn, ctx, &res)
			if next != nil {
				changed = true
				insn = next
				continue
			}
			insn = insn.Next()
		}
		if !changed {
			break
		}
	}
	res.Removed = before - list.Len()

	t.logger.Debug("method optimized",
		zap.String("method", m.String()),
		zap.Int("rewrites", res.Total()),
		zap.Int("passes", res.Passes),
		zap.Int("removed", res.Removed),
	)
	return res, nil
}

// rewriteAt 按优先级尝试规则，返回第一个成功规则给出的续扫位置
func (t *Transformer) rewriteAt(list *bytecode.InsnList, insn bytecode.Insn, ctx *Context, res *Result) bytecode.Insn {
	for _, r := range t.rules {
		next := r.TryRewrite(list, insn, ctx)
		if next == nil {
			continue
		}
		res.Rewrites[r.Name()]++
		if t.hook != nil {
			t.hook(ctx.Method, r.Name(), insn)
		}
		if ce := t.logger.Check(zap.DebugLevel, "rewrite"); ce != nil {
			ce.Write(
				zap.String("method", ctx.Method.String()),
				zap.String("rule", r.Name()),
				zap.Int("index", list.IndexOf(next)),
				zap.Int("line", ctx.Method.LineOf(next)),
			)
		}
		return next
	}
	return nil
}
