//go:build windows

package main

import "golang.org/x/sys/windows"

// systemLanguage 返回用户首选的界面语言，例如 zh-CN
func systemLanguage() string {
	langs, err := windows.GetUserPreferredUILanguages(windows.MUI_LANGUAGE_NAME)
	if err != nil || len(langs) == 0 {
		return ""
	}
	return langs[0]
}
