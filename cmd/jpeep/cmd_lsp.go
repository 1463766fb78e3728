package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/tebeka/atexit"

	"github.com/tangzhangming/jpeep/internal/lsp"
)

// cmdLSP 启动 .jasm 语言服务器，返回退出码
func cmdLSP(args []string) int {
	m := Msg()
	fs := flag.NewFlagSet("lsp", flag.ContinueOnError)
	configPath := fs.String("config", "", m.OptConfig)
	logFile := fs.String("log", "", m.OptLogFile)

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, m.HelpUsage+" jpeep lsp [options]")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, m.CmdLSP)
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, m.HelpOptions)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if err := runLSP(*configPath, *logFile); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// runLSP 标准输出属于协议，日志只能写到标准错误或文件
func runLSP(configPath, logFile string) error {
	m := Msg()
	cfg, err := loadConfig(configPath, ".")
	if err != nil {
		return fmt.Errorf(m.ErrConfig, err)
	}
	if logFile != "" {
		cfg.Log.File = logFile
	}
	logger, err := cfg.Log.NewLogger()
	if err != nil {
		return fmt.Errorf(m.ErrLogger, err)
	}
	atexit.Register(func() { _ = logger.Sync() })

	analyzer, err := lsp.NewAnalyzer(cfg, logger)
	if err != nil {
		return fmt.Errorf(m.ErrConfig, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	err = lsp.NewServer(analyzer, Version, logger).Run(ctx, lsp.Stdio())
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf(m.ErrLSP, err)
	}
	return nil
}
