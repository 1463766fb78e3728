package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/segmentio/encoding/json"
	"github.com/tebeka/atexit"
	"go.uber.org/zap"

	"github.com/tangzhangming/jpeep/internal/asm"
	"github.com/tangzhangming/jpeep/internal/bytecode"
	"github.com/tangzhangming/jpeep/internal/config"
	"github.com/tangzhangming/jpeep/internal/jvmgen"
	"github.com/tangzhangming/jpeep/internal/optimizer"
)

const (
	Version = "0.1.0"
)

// 全局语言参数
var globalLang string

func main() {
	args := preprocessArgs(os.Args[1:])
	InitLanguage(globalLang)

	if len(args) < 1 {
		printUsage(os.Stdout)
		atexit.Exit(0)
	}

	command := args[0]
	switch command {
	case "optimize", "opt":
		atexit.Exit(cmdOptimize(args[1:]))
	case "init":
		atexit.Exit(cmdInit(args[1:]))
	case "lsp":
		atexit.Exit(cmdLSP(args[1:]))
	case "version", "-v", "--version":
		fmt.Printf(Msg().VersionTitle+"\n", Version)
	case "help", "-h", "--help":
		printUsage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, Msg().ErrUnknownCmd+"\n\n", command)
		printUsage(os.Stderr)
		atexit.Exit(1)
	}
	atexit.Exit(0)
}

// preprocessArgs 预处理参数，提取全局 --lang 参数
func preprocessArgs(args []string) []string {
	var result []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--lang" || arg == "-lang":
			if i+1 < len(args) {
				globalLang = args[i+1]
				i++
				continue
			}
		case strings.HasPrefix(arg, "--lang="):
			globalLang = strings.TrimPrefix(arg, "--lang=")
			continue
		case strings.HasPrefix(arg, "-lang="):
			globalLang = strings.TrimPrefix(arg, "-lang=")
			continue
		}
		result = append(result, arg)
	}
	return result
}

func printUsage(w io.Writer) {
	m := Msg()
	fmt.Fprintf(w, m.VersionTitle+"\n\n", Version)
	fmt.Fprintln(w, m.HelpUsage)
	fmt.Fprintln(w, "  jpeep [--lang en|zh] <command> [options] [arguments]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, m.HelpCommands)
	fmt.Fprintf(w, "  optimize <file>  %s\n", m.CmdOptimize)
	fmt.Fprintf(w, "  init [dir]       %s\n", m.CmdInit)
	fmt.Fprintf(w, "  lsp              %s\n", m.CmdLSP)
	fmt.Fprintf(w, "  version          %s\n", m.CmdVersion)
	fmt.Fprintf(w, "  help             %s\n", m.CmdHelp)
	fmt.Fprintln(w)
	fmt.Fprintln(w, m.HelpOptions)
	fmt.Fprintf(w, "  --lang <en|zh>   %s\n", m.OptLang)
	fmt.Fprintln(w)
	fmt.Fprintln(w, m.HelpExamples)
	fmt.Fprintln(w, "  jpeep optimize -print Main.jasm")
	fmt.Fprintln(w, "  jpeep optimize -o Main.class -json Main.jasm")
	fmt.Fprintln(w, "  jpeep init")
}

// optimizeOptions optimize 子命令的参数
type optimizeOptions struct {
	file    string
	config  string
	output  string
	print   bool
	json    bool
	verbose bool
}

// cmdOptimize 优化一个类清单，返回退出码
func cmdOptimize(args []string) int {
	m := Msg()
	fs := flag.NewFlagSet("optimize", flag.ContinueOnError)
	var opts optimizeOptions
	fs.StringVar(&opts.config, "config", "", m.OptConfig)
	fs.StringVar(&opts.output, "o", "", m.OptOutput)
	fs.BoolVar(&opts.print, "print", false, m.OptPrint)
	fs.BoolVar(&opts.json, "json", false, m.OptJSON)
	fs.BoolVar(&opts.verbose, "v", false, m.OptVerbose)

	fs.Usage = func() {
		fmt.Println(m.HelpUsage + " jpeep optimize [options] <file>")
		fmt.Println()
		fmt.Println(m.HelpOptions)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		fs.Usage()
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, m.ErrNoInput)
		return 1
	}
	opts.file = fs.Arg(0)

	if err := runOptimize(opts, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// loadConfig 优先使用显式指定的文件，否则从 start 向上查找 jpeep.toml
func loadConfig(explicit, start string) (*config.Config, error) {
	path := explicit
	if path == "" {
		path = config.FindConfigFile(start)
	}
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func runOptimize(opts optimizeOptions, stdout io.Writer) error {
	m := Msg()
	cfg, err := loadConfig(opts.config, opts.file)
	if err != nil {
		return fmt.Errorf(m.ErrConfig, err)
	}
	if opts.verbose {
		cfg.Log.Level = "debug"
	}
	logger, err := cfg.Log.NewLogger()
	if err != nil {
		return fmt.Errorf(m.ErrLogger, err)
	}
	atexit.Register(func() { _ = logger.Sync() })

	source, err := os.ReadFile(opts.file)
	if err != nil {
		return fmt.Errorf(m.ErrReadFile, err)
	}
	class, err := asm.Parse(opts.file, source)
	if err != nil {
		return parseError(err)
	}

	rules, err := cfg.Rules()
	if err != nil {
		return fmt.Errorf(m.ErrConfig, err)
	}
	report := optimizer.New(rules, cfg.Options(logger)...).OptimizeClass(class)
	logger.Debug("class optimized", zap.String("class", class.Name), zap.Any("rewrites", report.Totals()))

	if opts.print {
		fmt.Fprint(stdout, bytecode.DisassembleClass(class))
		fmt.Fprintln(stdout)
	}

	if opts.output != "" {
		data, err := jvmgen.NewGenerator().Generate(class)
		if err != nil {
			return fmt.Errorf(m.ErrGenerate, err)
		}
		if err := os.WriteFile(opts.output, data, 0644); err != nil {
			return fmt.Errorf(m.ErrWriteFile, err)
		}
		if !opts.json {
			fmt.Fprintf(stdout, m.WroteClass+"\n", opts.output, len(data))
		}
	}

	if opts.json {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printReport(stdout, report)
	return nil
}

// parseError 逐行列出所有语法错误
func parseError(err error) error {
	var list asm.ErrorList
	if !errors.As(err, &list) {
		return fmt.Errorf(Msg().ErrParse, err)
	}
	lines := make([]string, len(list))
	for i, e := range list {
		lines[i] = fmt.Sprintf(Msg().ErrParse, e)
	}
	return errors.New(strings.Join(lines, "\n"))
}
