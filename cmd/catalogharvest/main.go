package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RecoveryAshes/CatalogHarvest/internal/core"
	"github.com/RecoveryAshes/CatalogHarvest/internal/utils"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	verbose    bool
	logLevel   string
	outputDir  string

	// 认证参数
	headers     []string // 自定义HTTP请求头
	cookies     []string // 自定义Cookie
	headersFile string
	cookiesFile string

	// 类目来源
	categoryTree string
	categoryHTML string
	keysFile     string
	keys         []string

	// 采集参数
	concurrency int
	paceMin     time.Duration
	paceMax     time.Duration
	sinks       []string
	metricsAddr string
	noProgress  bool
)

// appConfig 在PersistentPreRunE中加载并合并命令行参数
var appConfig *core.Config

var rootCmd = &cobra.Command{
	Use:   "catalogharvest",
	Short: "BigBasket商品目录采集工具",
	Long: `CatalogHarvest - 并发受限的分页商品目录采集工具

按类目逐页请求商品列表接口,规范化商品记录并写入:
  • JSON文件 (默认)
  • PostgreSQL / Redis / MongoDB

类目来源:
  # session命令保存的类目树
  catalogharvest --category-tree output/session/category_tree.json

  # 保存的类目页面
  catalogharvest --category-html saved/all-categories.html

  # 类目文件或直接指定
  catalogharvest -f categories.txt
  catalogharvest -k fruits-vegetables -k https://www.bigbasket.com/pc/beverages/

认证信息示例:
  # 先用浏览器捕获会话
  catalogharvest session

  # 再使用捕获的请求头与Cookie
  catalogharvest --category-tree output/session/category_tree.json \
    --headers-file output/session/category_tree_request_headers.json \
    --cookies-file output/session/cookies.json

  # 通过命令行参数
  catalogharvest -k staples -H "X-Channel: BB-WEB" --cookie "_bb_vid=..."

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 加载配置
		config, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}

		// 命令行参数覆盖配置文件
		config.MergeCLIFlags(core.CLIOverrides{
			Keys:         keys,
			KeysFile:     keysFile,
			CategoryTree: categoryTree,
			CategoryHTML: categoryHTML,
			HeadersFile:  headersFile,
			CookiesFile:  cookiesFile,
			OutputDir:    outputDir,
			Concurrency:  concurrency,
			PaceMin:      paceMin,
			PaceMax:      paceMax,
			Sinks:        sinks,
			MetricsAddr:  metricsAddr,
			LogLevel:     logLevel,
		})

		// 初始化日志系统
		if err := utils.InitLogger(config.GetLogConfig()); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}

		if verbose {
			utils.Info("详细模式已启用")
		}

		appConfig = config
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// 如果没有提供任何类目来源,显示帮助信息
		in := appConfig.Input
		if in.CategoryTree == "" && in.CategoryHTML == "" && in.KeysFile == "" && len(in.Keys) == 0 {
			return cmd.Help()
		}

		// 验证参数
		if err := ValidateFlags(appConfig.Harvest.Concurrency, appConfig.Harvest.PaceMin, appConfig.Harvest.PaceMax, appConfig.Sink.Kinds); err != nil {
			return err
		}

		// Ctrl+C 取消采集,已获得的记录仍会保存
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		runner := core.NewRunner(appConfig, core.RunOptions{
			Headers:  headers,
			Cookies:  cookies,
			Progress: !noProgress,
		})

		report, err := runner.Run(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) && report != nil {
				utils.Warnf("采集被中断, 已保存 %d 条记录", report.Stats.Accepted)
			}
			return fmt.Errorf("采集失败: %w", err)
		}

		utils.Info("✨ 采集任务完成!")
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("CatalogHarvest %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "输出目录 (默认: output)")

	// 认证参数
	rootCmd.PersistentFlags().StringSliceVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")
	rootCmd.PersistentFlags().StringSliceVar(&cookies, "cookie", []string{}, "自定义Cookie,格式: 'name=value',可多次指定")
	rootCmd.PersistentFlags().StringVar(&headersFile, "headers-file", "", "头部文件 (YAML/JSON, 默认: configs/headers.yaml)")
	rootCmd.PersistentFlags().StringVar(&cookiesFile, "cookies-file", "", "Cookie文件 (JSON映射或浏览器导出列表)")

	// 类目来源
	rootCmd.Flags().StringVar(&categoryTree, "category-tree", "", "类目树JSON文件")
	rootCmd.Flags().StringVar(&categoryHTML, "category-html", "", "保存的类目页面HTML")
	rootCmd.Flags().StringVarP(&keysFile, "keys-file", "f", "", "类目文件,每行一个slug或类目页URL")
	rootCmd.Flags().StringSliceVarP(&keys, "key", "k", []string{}, "类目slug或类目页URL,可多次指定")

	// 采集参数
	rootCmd.Flags().IntVar(&concurrency, "concurrency", 0, "同时进行的请求数上限 (默认: 5)")
	rootCmd.Flags().DurationVar(&paceMin, "pace-min", 0, "每次请求后的最短等待 (默认: 3s)")
	rootCmd.Flags().DurationVar(&paceMax, "pace-max", 0, "每次请求后的最长等待 (默认: 6s)")
	rootCmd.Flags().StringSliceVar(&sinks, "sink", []string{}, "持久化目标 (json|postgres|redis|mongo),可多次指定")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "暴露Prometheus指标的地址,如 :9090")
	rootCmd.Flags().BoolVar(&noProgress, "no-progress", false, "不显示进度条")

	// 添加子命令
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(validateConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
