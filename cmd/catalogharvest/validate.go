package main

import (
	"fmt"
	"time"

	"github.com/RecoveryAshes/CatalogHarvest/internal/core"
	"github.com/RecoveryAshes/CatalogHarvest/internal/models"
)

// maxPace 单次请求后的等待上限
const maxPace = 5 * time.Minute

// ValidateFlags 验证采集参数
func ValidateFlags(concurrency int, paceMin, paceMax time.Duration, sinks []string) error {
	// 验证并发数
	if concurrency < 1 || concurrency > 100 {
		return fmt.Errorf("并发数必须在1-100之间,当前值: %d", concurrency)
	}

	// 验证等待时间
	if paceMin < 0 || paceMax > maxPace {
		return fmt.Errorf("请求间隔必须在0-%s之间,当前值: %s-%s", maxPace, paceMin, paceMax)
	}
	if paceMin > paceMax {
		return fmt.Errorf("--pace-min(%s)不能大于--pace-max(%s)", paceMin, paceMax)
	}

	// 验证持久化目标
	validSinks := map[string]bool{
		core.SinkJSON:     true,
		core.SinkPostgres: true,
		core.SinkRedis:    true,
		core.SinkMongo:    true,
	}
	for _, s := range sinks {
		if !validSinks[s] {
			return fmt.Errorf("无效的持久化目标: %s (有效值: json, postgres, redis, mongo)", s)
		}
	}

	return nil
}

// ValidateSessionFlags 验证session命令参数
func ValidateSessionFlags(homeURL string, wait time.Duration) error {
	if err := models.ValidateURL(homeURL); err != nil {
		return fmt.Errorf("无效的首页地址: %w", err)
	}
	if wait <= 0 {
		return fmt.Errorf("等待时间必须大于0,当前值: %s", wait)
	}
	return nil
}
