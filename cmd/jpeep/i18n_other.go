//go:build !windows

package main

// systemLanguage 非 Windows 平台只看环境变量
func systemLanguage() string {
	return ""
}
