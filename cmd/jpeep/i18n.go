package main

import (
	"os"
	"strings"
)

// Language 语言类型
type Language string

const (
	LangEnglish Language = "en"
	LangChinese Language = "zh"
)

// Messages 消息结构
type Messages struct {
	// 版本信息
	VersionTitle string

	// 帮助信息
	HelpUsage    string
	HelpCommands string
	HelpOptions  string
	HelpExamples string

	// 命令描述
	CmdOptimize string
	CmdInit     string
	CmdLSP      string
	CmdVersion  string
	CmdHelp     string

	// 优化选项
	OptConfig  string
	OptOutput  string
	OptPrint   string
	OptJSON    string
	OptVerbose string
	OptLang    string
	OptYAML    string
	OptForce   string
	OptLogFile string

	// 错误信息
	ErrNoInput      string
	ErrUnknownCmd   string
	ErrConfig       string
	ErrLogger       string
	ErrReadFile     string
	ErrParse        string
	ErrGenerate     string
	ErrWriteFile    string
	ErrConfigExists string
	ErrCreateConfig string
	ErrLSP          string

	// 报告
	ReportTitle   string
	ReportMethod  string
	ReportPasses  string
	ReportRemoved string
	ReportStatus  string
	ReportTotal   string
	StatusSkipped string
	StatusOK      string

	// 成功信息
	InitCreating string
	InitSuccess  string
	WroteClass   string
	NothingToDo  string
}

// 英文消息
var messagesEN = Messages{
	VersionTitle: "jpeep %s - JVM bytecode peephole optimizer",

	HelpUsage:    "Usage:",
	HelpCommands: "Commands:",
	HelpOptions:  "Options:",
	HelpExamples: "Examples:",

	CmdOptimize: "Optimize the methods of a class listing",
	CmdInit:     "Create a default jpeep.toml",
	CmdLSP:      "Start the language server on stdin/stdout",
	CmdVersion:  "Show version information",
	CmdHelp:     "Show this help",

	OptConfig:  "Configuration file (default: nearest jpeep.toml)",
	OptOutput:  "Write the optimized class file to this path",
	OptPrint:   "Print the optimized listing",
	OptJSON:    "Print the report as JSON",
	OptVerbose: "Log every rewrite",
	OptLang:    "Message language",
	OptYAML:    "Write jpeep.yaml instead of jpeep.toml",
	OptForce:   "Overwrite an existing configuration file",
	OptLogFile: "Write logs to this file instead of stderr",

	ErrNoInput:      "Error: no input file",
	ErrUnknownCmd:   "Error: unknown command %q",
	ErrConfig:       "Error: %v",
	ErrLogger:       "Error: cannot create logger: %v",
	ErrReadFile:     "Error: cannot read file: %v",
	ErrParse:        "Syntax error: %v",
	ErrGenerate:     "Error: cannot generate class file: %v",
	ErrWriteFile:    "Error: cannot write file: %v",
	ErrConfigExists: "Error: %s already exists",
	ErrCreateConfig: "Error: cannot create configuration file: %v",
	ErrLSP:          "Error: language server: %v",

	ReportTitle:   "Class %s",
	ReportMethod:  "Method",
	ReportPasses:  "Passes",
	ReportRemoved: "Removed",
	ReportStatus:  "Status",
	ReportTotal:   "Total",
	StatusSkipped: "skipped",
	StatusOK:      "ok",

	InitCreating: "Creating %s",
	InitSuccess:  "Configuration written to %s",
	WroteClass:   "Wrote %s (%d bytes)",
	NothingToDo:  "No rewrites applied.",
}

// 中文消息
var messagesZH = Messages{
	VersionTitle: "jpeep %s - JVM 字节码窥孔优化器",

	HelpUsage:    "用法:",
	HelpCommands: "命令:",
	HelpOptions:  "选项:",
	HelpExamples: "示例:",

	CmdOptimize: "优化类清单中的方法",
	CmdInit:     "创建默认的 jpeep.toml",
	CmdLSP:      "通过标准输入输出启动语言服务器",
	CmdVersion:  "显示版本信息",
	CmdHelp:     "显示帮助信息",

	OptConfig:  "配置文件（默认：最近的 jpeep.toml）",
	OptOutput:  "把优化后的 class 文件写入该路径",
	OptPrint:   "打印优化后的清单",
	OptJSON:    "以 JSON 格式输出报告",
	OptVerbose: "记录每一次改写",
	OptLang:    "消息语言",
	OptYAML:    "写出 jpeep.yaml 而不是 jpeep.toml",
	OptForce:   "覆盖已存在的配置文件",
	OptLogFile: "把日志写入该文件而不是标准错误",

	ErrNoInput:      "错误: 没有输入文件",
	ErrUnknownCmd:   "错误: 未知命令 %q",
	ErrConfig:       "错误: %v",
	ErrLogger:       "错误: 无法创建日志: %v",
	ErrReadFile:     "错误: 无法读取文件: %v",
	ErrParse:        "语法错误: %v",
	ErrGenerate:     "错误: 无法生成 class 文件: %v",
	ErrWriteFile:    "错误: 无法写入文件: %v",
	ErrConfigExists: "错误: %s 已存在",
	ErrCreateConfig: "错误: 无法创建配置文件: %v",
	ErrLSP:          "错误: 语言服务器: %v",

	ReportTitle:   "类 %s",
	ReportMethod:  "方法",
	ReportPasses:  "轮次",
	ReportRemoved: "删除",
	ReportStatus:  "状态",
	ReportTotal:   "合计",
	StatusSkipped: "已跳过",
	StatusOK:      "完成",

	InitCreating: "创建 %s",
	InitSuccess:  "配置已写入 %s",
	WroteClass:   "已写入 %s（%d 字节）",
	NothingToDo:  "没有可应用的改写。",
}

// 当前消息
var msg = messagesEN

// Msg 获取当前语言的消息
func Msg() *Messages {
	return &msg
}

// InitLanguage 初始化语言设置
// 优先级: 命令行参数 > 环境变量 JPEEP_LANG > LC_ALL / LANG > 系统界面语言 > 默认英文
func InitLanguage(langOverride string) {
	if langOverride != "" {
		setLanguage(langOverride)
		return
	}
	if envLang := os.Getenv("JPEEP_LANG"); envLang != "" {
		setLanguage(envLang)
		return
	}
	for _, key := range []string{"LC_ALL", "LANG"} {
		if v := os.Getenv(key); v != "" {
			setLanguage(v)
			return
		}
	}
	if v := systemLanguage(); v != "" {
		setLanguage(v)
		return
	}
	setLanguage("en")
}

// setLanguage 设置语言，zh_CN.UTF-8 之类的区域名按前缀识别
func setLanguage(lang string) {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "chinese" || strings.HasPrefix(lang, "zh") {
		msg = messagesZH
		return
	}
	msg = messagesEN
}
