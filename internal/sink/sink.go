// Package sink 将采集结果写入文件或外部存储
package sink

import (
	"context"
	"time"

	"github.com/RecoveryAshes/CatalogHarvest/internal/models"
	"github.com/RecoveryAshes/CatalogHarvest/internal/utils"
)

// Sink 持久化目标
type Sink interface {
	// Name 目标名称,用于日志和报告
	Name() string

	// Write 写入一次采集的全部记录
	Write(ctx context.Context, runID string, records []models.ProductRecord) error

	// Close 释放连接
	Close() error
}

// WriteAll 依次写入所有目标
// 某个目标失败不影响其他目标,结果按目标顺序返回
func WriteAll(ctx context.Context, sinks []Sink, runID string, records []models.ProductRecord) []models.SinkResult {
	results := make([]models.SinkResult, 0, len(sinks))
	for _, s := range sinks {
		start := time.Now()
		result := models.SinkResult{Name: s.Name(), Records: len(records)}

		if err := s.Write(ctx, runID, records); err != nil {
			result.Error = err.Error()
			result.Records = 0
			utils.Errorf("❌ 写入%s失败: %v", s.Name(), err)
		} else {
			utils.Infof("💾 已写入%s: %d 条记录 (%.2f秒)", s.Name(), len(records), time.Since(start).Seconds())
		}
		results = append(results, result)
	}
	return results
}

// CloseAll 关闭所有目标
func CloseAll(sinks []Sink) {
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			utils.Warnf("关闭%s失败: %v", s.Name(), err)
		}
	}
}
