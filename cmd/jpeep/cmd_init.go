package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tangzhangming/jpeep/internal/config"
)

// cmdInit 在目录中写出默认配置，返回退出码
func cmdInit(args []string) int {
	m := Msg()
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	useYAML := fs.Bool("yaml", false, m.OptYAML)
	force := fs.Bool("force", false, m.OptForce)

	fs.Usage = func() {
		fmt.Println(m.HelpUsage + " jpeep init [options] [dir]")
		fmt.Println()
		fmt.Println(m.CmdInit)
		fmt.Println()
		fmt.Println(m.HelpOptions)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}

	dir := "."
	if fs.NArg() > 0 {
		dir = fs.Arg(0)
	}
	path, err := initConfig(dir, *useYAML, *force)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf(m.InitSuccess+"\n", path)
	return 0
}

// initConfig 写出默认配置文件，返回其路径
func initConfig(dir string, useYAML, force bool) (string, error) {
	m := Msg()
	name := config.ConfigFileName
	if useYAML {
		name = "jpeep.yaml"
	}
	path := filepath.Join(dir, name)

	if _, err := os.Stat(path); err == nil && !force {
		return "", fmt.Errorf(m.ErrConfigExists, path)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf(m.ErrCreateConfig, err)
	}
	fmt.Printf(m.InitCreating+"\n", path)
	if err := config.Default().Save(path); err != nil {
		return "", fmt.Errorf(m.ErrCreateConfig, err)
	}
	return path, nil
}
