package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/go-rod/rod/lib/launcher"
)

func main() {
	fmt.Println("==============================================")
	fmt.Println("  CatalogHarvest 环境验证")
	fmt.Println("==============================================")
	fmt.Println()

	allOK := true

	// 检查Go版本
	goVersion := runtime.Version()
	fmt.Printf("✅ Go版本: %s\n", goVersion)
	if strings.HasPrefix(goVersion, "go1.1") || strings.HasPrefix(goVersion, "go1.20") ||
		strings.HasPrefix(goVersion, "go1.21") || strings.HasPrefix(goVersion, "go1.22") {
		fmt.Println("⚠️  警告: 建议使用Go 1.23+版本")
	}

	// 检查操作系统
	fmt.Printf("✅ 操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)

	// session命令需要Chromium
	if path, found := launcher.LookPath(); found {
		fmt.Printf("✅ Chromium: %s\n", path)
	} else {
		fmt.Println("⚠️  未找到Chromium - session命令首次运行时会自动下载")
	}

	// 检查项目文件
	fmt.Println()
	fmt.Println("检查项目结构...")
	required := []string{
		"go.mod",
		"cmd/catalogharvest",
		"internal/core",
		"internal/crawlers",
		"internal/extract",
		"internal/sink",
	}
	for _, p := range required {
		if _, err := os.Stat(p); err == nil {
			fmt.Printf("✅ %s\n", p)
		} else {
			fmt.Printf("❌ %s 不存在\n", p)
			allOK = false
		}
	}

	// 可选配置
	optional := map[string]string{
		"configs/config.yaml":  "使用内置默认配置",
		"configs/headers.yaml": "首次运行时自动生成模板",
		".env":                 "连接串可通过 DATABASE_URL / REDIS_ADDR / MONGO_URI 提供",
	}
	for p, hint := range optional {
		if _, err := os.Stat(p); err == nil {
			fmt.Printf("✅ %s\n", p)
		} else {
			fmt.Printf("ℹ️  %s 不存在 - %s\n", p, hint)
		}
	}

	fmt.Println()
	fmt.Println("==============================================")
	if allOK {
		fmt.Println("✅ 环境验证通过!")
		fmt.Println()
		fmt.Println("下一步:")
		fmt.Println("  1. 运行 'go build ./cmd/catalogharvest' 构建项目")
		fmt.Println("  2. 运行 './catalogharvest session' 捕获会话")
		fmt.Println("  3. 运行 './catalogharvest --help' 查看帮助")
		os.Exit(0)
	}
	fmt.Println("❌ 环境验证失败,请解决上述问题。")
	os.Exit(1)
}
