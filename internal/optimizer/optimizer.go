package optimizer

import (
	"runtime"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/tangzhangming/jpeep/internal/bytecode"
)

// ============================================================================
// 按类并行优化
// ============================================================================

// MethodReport 一个方法的结果
type MethodReport struct {
	Method string `json:"method"`
	Result Result `json:"result"`
	Err    error  `json:"-"`
	Error  string `json:"error,omitempty"`
}

// Report 一个类的优化报告，Methods 与 Class.Methods 顺序一致
type Report struct {
	Class   string         `json:"class"`
	Methods []MethodReport `json:"methods"`
}

// Totals 各规则的改写总数
func (r *Report) Totals() map[string]int {
	totals := make(map[string]int)
	for _, m := range r.Methods {
		for rule, n := range m.Result.Rewrites {
			totals[rule] += n
		}
	}
	return totals
}

// Skipped 因分析失败而未优化的方法
func (r *Report) Skipped() []MethodReport {
	var out []MethodReport
	for _, m := range r.Methods {
		if m.Result.Skipped {
			out = append(out, m)
		}
	}
	return out
}

// RuleNames 报告中出现过的规则名，已排序
func (r *Report) RuleNames() []string {
	var names []string
	for name := range r.Totals() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Optimizer 用固定数量的 worker 并行优化一个类的各个方法
//
// 每个方法独占自己的指令流、分类器和存储-加载关系，worker 之间不共享可变状态。
type Optimizer struct {
	transformer *Transformer
	workers     int
	logger      *zap.Logger
}

// New 创建优化器
func New(rules []Rule, opts ...Option) *Optimizer {
	o := buildOptions(opts)
	workers := o.workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Optimizer{
		transformer: NewTransformer(rules, opts...),
		workers:     workers,
		logger:      o.logger,
	}
}

// Transformer 底层的单方法驱动器
func (o *Optimizer) Transformer() *Transformer { return o.transformer }

// OptimizeClass 原地优化类中的全部方法
func (o *Optimizer) OptimizeClass(c *bytecode.Class) *Report {
	report := &Report{Class: c.Name, Methods: make([]MethodReport, len(c.Methods))}
	if len(c.Methods) == 0 {
		return report
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < min(o.workers, len(c.Methods)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				m := c.Methods[i]
				res, err := o.transformer.Transform(m)
				mr := MethodReport{Method: m.Name + m.Desc, Result: res, Err: err}
				if err != nil {
					mr.Error = err.Error()
				}
				report.Methods[i] = mr
			}
		}()
	}
	for i := range c.Methods {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	o.logger.Info("class optimized",
		zap.String("class", c.Name),
		zap.Int("methods", len(c.Methods)),
		zap.Int("skipped", len(report.Skipped())),
		zap.Any("rewrites", report.Totals()),
	)
	return report
}
