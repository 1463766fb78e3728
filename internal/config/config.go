// Package config 实现 jpeep.toml 配置文件的读写
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/tangzhangming/jpeep/internal/optimizer"
)

// 常量定义
const (
	ConfigFileName = "jpeep.toml" // 配置文件名
)

// Config 优化器配置
type Config struct {
	Optimizer OptimizerConfig         `toml:"optimizer" yaml:"optimizer"`
	Output    optimizer.OutputSymbols `toml:"output" yaml:"output"`
	Log       LogConfig               `toml:"log" yaml:"log"`
}

// OptimizerConfig 规则与并行度
type OptimizerConfig struct {
	// Rules 启用的规则，顺序即优先级
	Rules []string `toml:"rules" yaml:"rules"`

	// Workers 并行优化方法的 worker 数，0 表示 CPU 核数
	Workers int `toml:"workers" yaml:"workers"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level       string `toml:"level" yaml:"level"`
	Development bool   `toml:"development" yaml:"development"`

	// File 日志文件路径，为空时写到标准错误
	File string `toml:"file,omitempty" yaml:"file,omitempty"`
}

// Default 默认配置：全部规则，System.out/err 与 PrintStream.print/println
func Default() *Config {
	return &Config{
		Optimizer: OptimizerConfig{Rules: optimizer.RuleNames()},
		Output:    *optimizer.DefaultOutputSymbols(),
		Log:       LogConfig{Level: "info"},
	}
}

// Load 从文件加载配置
//
// .yaml / .yml 文件按 YAML 解析，其余按 TOML 解析；未知键视为错误。
// 文件中未出现的部分取默认值。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if isYAML(path) {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else {
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return &cfg, nil
}

// applyDefaults 填充未设置（nil）的部分；显式写出的空列表保持为空
func (c *Config) applyDefaults() {
	def := Default()
	if c.Optimizer.Rules == nil {
		c.Optimizer.Rules = def.Optimizer.Rules
	}
	if c.Output.Fields == nil {
		c.Output.Fields = def.Output.Fields
	}
	if c.Output.Methods == nil {
		c.Output.Methods = def.Output.Methods
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
}

// Validate 检查规则名、worker 数、输出符号和日志级别
func (c *Config) Validate() error {
	if _, err := optimizer.RulesFromNames(c.Optimizer.Rules); err != nil {
		return err
	}
	if c.Optimizer.Workers < 0 {
		return fmt.Errorf("optimizer.workers must not be negative, got %d", c.Optimizer.Workers)
	}
	if err := c.Output.Validate(); err != nil {
		return err
	}
	if _, err := c.Log.level(); err != nil {
		return err
	}
	return nil
}

// Rules 按配置顺序构造规则
func (c *Config) Rules() ([]optimizer.Rule, error) {
	return optimizer.RulesFromNames(c.Optimizer.Rules)
}

// Options 转换为优化器选项
func (c *Config) Options(logger *zap.Logger) []optimizer.Option {
	symbols := c.Output
	return []optimizer.Option{
		optimizer.WithSymbols(&symbols),
		optimizer.WithWorkers(c.Optimizer.Workers),
		optimizer.WithLogger(logger),
	}
}

func (c LogConfig) level() (zapcore.Level, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(c.Level)); err != nil {
		return lvl, fmt.Errorf("log.level: %w", err)
	}
	return lvl, nil
}

// NewLogger 按配置创建 zap 日志；development 模式使用可读的控制台格式
func (c LogConfig) NewLogger() (*zap.Logger, error) {
	lvl, err := c.level()
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	if c.File != "" {
		zc.OutputPaths = []string{c.File}
		zc.ErrorOutputPaths = []string{c.File}
	}
	return zc.Build()
}

// Save 保存配置到文件
func (c *Config) Save(path string) error {
	var content []byte
	if isYAML(path) {
		data, err := yaml.Marshal(c)
		if err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		content = data
	} else {
		content = []byte(generateConfigWithComments(c))
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// generateConfigWithComments 生成带注释的配置文件内容
func generateConfigWithComments(c *Config) string {
	var sb strings.Builder

	sb.WriteString("[optimizer]\n")
	sb.WriteString("# 启用的规则，按优先级排列（可选：" + strings.Join(optimizer.RuleNames(), ", ") + "）\n")
	quoted := make([]string, len(c.Optimizer.Rules))
	for i, r := range c.Optimizer.Rules {
		quoted[i] = fmt.Sprintf("%q", r)
	}
	sb.WriteString(fmt.Sprintf("rules = [%s]\n", strings.Join(quoted, ", ")))
	sb.WriteString("# 并行优化方法的 worker 数，0 表示 CPU 核数\n")
	sb.WriteString(fmt.Sprintf("workers = %d\n", c.Optimizer.Workers))

	sb.WriteString("\n[output]\n")
	if len(c.Output.Fields) == 0 {
		sb.WriteString("fields = []\n")
	}
	if len(c.Output.Methods) == 0 {
		sb.WriteString("methods = []\n")
	}
	sb.WriteString("\n# 产生输出流的静态字段\n")
	writeSymbols(&sb, "output.fields", c.Output.Fields)
	sb.WriteString("\n# 单参数输出方法，省略 descriptor 表示任意描述符\n")
	writeSymbols(&sb, "output.methods", c.Output.Methods)

	sb.WriteString("\n[log]\n")
	sb.WriteString("# debug / info / warn / error\n")
	sb.WriteString(fmt.Sprintf("level = %q\n", c.Log.Level))
	sb.WriteString(fmt.Sprintf("development = %t\n", c.Log.Development))
	if c.Log.File != "" {
		sb.WriteString(fmt.Sprintf("file = %q\n", c.Log.File))
	}

	return sb.String()
}

func writeSymbols(sb *strings.Builder, table string, symbols []optimizer.Symbol) {
	for _, s := range symbols {
		fmt.Fprintf(sb, "[[%s]]\n", table)
		fmt.Fprintf(sb, "owner = %q\n", s.Owner)
		fmt.Fprintf(sb, "name = %q\n", s.Name)
		if s.Descriptor != "" {
			fmt.Fprintf(sb, "descriptor = %q\n", s.Descriptor)
		}
	}
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// FindConfigFile 从指定路径向上查找配置文件
// 返回配置文件的完整路径，如果找不到则返回空字符串
func FindConfigFile(startPath string) string {
	// 如果是文件，从其所在目录开始
	info, err := os.Stat(startPath)
	if err != nil {
		return ""
	}

	dir := startPath
	if !info.IsDir() {
		dir = filepath.Dir(startPath)
	}
	dir, err = filepath.Abs(dir)
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
