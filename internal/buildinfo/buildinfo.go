// Package buildinfo 构建版本信息（-ldflags "-X .../buildinfo.Version=v1.2.3"）
package buildinfo

import "runtime/debug"

// Version 构建版本；未注入时回退到模块版本
var Version = ""

// Get 返回当前版本
func Get() string {
	if Version != "" {
		return Version
	}
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" {
		return bi.Main.Version
	}
	return "dev"
}
