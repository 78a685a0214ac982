package main

import (
	"fmt"

	"github.com/RecoveryAshes/CatalogHarvest/internal/core"
	"github.com/RecoveryAshes/CatalogHarvest/internal/utils"
	"github.com/spf13/cobra"
)

var validateConfigCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "验证配置、请求头与Cookie",
	RunE: func(cmd *cobra.Command, args []string) error {
		utils.Info("🔍 验证配置...")
		if err := appConfig.Validate(); err != nil {
			return fmt.Errorf("配置验证失败: %w", err)
		}

		am, err := core.NewAuthManager(core.AuthOptions{
			HeadersFile: appConfig.Input.HeadersFile,
			CookiesFile: appConfig.Input.CookiesFile,
			Headers:     headers,
			Cookies:     cookies,
		})
		if err != nil {
			return err
		}
		if err := am.LoadConfig(); err != nil {
			return fmt.Errorf("加载认证信息失败: %w", err)
		}
		if err := am.Validate(); err != nil {
			return fmt.Errorf("认证信息验证失败: %w", err)
		}

		// 显示合并后的头部与Cookie(脱敏)
		safeHeaders := am.GetSafeHeaders()
		utils.Info("✅ 配置验证通过!")
		utils.Infof("当前有效的HTTP头部 (%d个):", len(safeHeaders))
		for name, value := range safeHeaders {
			utils.Infof("  %s: %s", name, value)
		}
		safeCookies := am.GetSafeCookies()
		utils.Infof("当前有效的Cookie (%d个):", len(safeCookies))
		for name, value := range safeCookies {
			utils.Infof("  %s=%s", name, value)
		}
		utils.Infof("持久化目标: %v", appConfig.Sink.Kinds)
		return nil
	},
}
