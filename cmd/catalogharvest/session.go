package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/RecoveryAshes/CatalogHarvest/internal/categories"
	"github.com/RecoveryAshes/CatalogHarvest/internal/session"
	"github.com/RecoveryAshes/CatalogHarvest/internal/utils"
	"github.com/spf13/cobra"
)

// session命令参数
var (
	sessionHome     string
	sessionHeadless bool
	sessionWait     time.Duration
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "用浏览器捕获类目树、请求头与Cookie",
	Long: `打开首页并等待类目树接口返回,保存到 <output>/session/:
  category_tree.json                    类目树 (可用于 --category-tree)
  category_tree_request_headers.json    请求头 (可用于 --headers-file)
  category_tree_response_headers.json   响应头
  cookies.json                          Cookie (可用于 --cookies-file)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := session.Options{
			HomeURL:      appConfig.Session.HomeURL,
			Headless:     appConfig.Session.Headless,
			Wait:         appConfig.Session.Wait,
			DomainFilter: appConfig.Session.DomainFilter,
			MinFreeMB:    appConfig.Session.MinFreeMB,
			OutputDir:    filepath.Join(appConfig.Output.Dir, "session"),
		}
		if cmd.Flags().Changed("home") {
			opts.HomeURL = sessionHome
		}
		if cmd.Flags().Changed("headless") {
			opts.Headless = sessionHeadless
		}
		if cmd.Flags().Changed("wait") {
			opts.Wait = sessionWait
		}

		if err := ValidateSessionFlags(opts.HomeURL, opts.Wait); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		result, err := session.Run(ctx, opts)
		if err != nil {
			return fmt.Errorf("会话捕获失败: %w", err)
		}

		for _, f := range result.Files {
			utils.Infof("💾 %s", f)
		}

		if keys, err := categories.FromTree(result.Capture.Tree); err != nil {
			utils.Warnf("类目树解析失败: %v", err)
		} else {
			utils.Infof("📂 类目树包含 %d 个类目", len(keys))
		}

		utils.Info("✨ 会话捕获完成!")
		return nil
	},
}

func init() {
	sessionCmd.Flags().StringVar(&sessionHome, "home", "", "首页地址 (默认: https://www.bigbasket.com/)")
	sessionCmd.Flags().BoolVar(&sessionHeadless, "headless", false, "无头浏览器模式")
	sessionCmd.Flags().DurationVar(&sessionWait, "wait", 0, "等待类目树响应的时间 (默认: 15s)")
}
