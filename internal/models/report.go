package models

import (
	"encoding/json"
	"time"
)

// HarvestReport 采集报告
type HarvestReport struct {
	// 任务信息
	RunID   string   `json:"run_id"`
	Keys    int      `json:"keys"`    // 输入类目数(含重复)
	Sources []string `json:"sources"` // 类目来源 (tree/html/file/cli)

	// 时间信息
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  float64   `json:"duration"` // 秒

	// 统计信息
	Stats      HarvestStats     `json:"stats"`
	Categories []CategoryResult `json:"categories"`

	// 输出
	Sinks      []SinkResult `json:"sinks"`
	OutputFile string       `json:"output_file,omitempty"`

	// 配置快照
	Config HarvestConfig `json:"config"`
}

// SinkResult 单个输出目标的写入结果
type SinkResult struct {
	Name    string `json:"name"`
	Records int    `json:"records"`
	Error   string `json:"error,omitempty"`
}

// NewHarvestReport 基于汇总构造报告
func NewHarvestReport(runID string, keys int, summary *HarvestSummary, cfg HarvestConfig) *HarvestReport {
	r := &HarvestReport{
		RunID:  runID,
		Keys:   keys,
		Config: cfg,
	}
	if summary != nil {
		r.StartTime = summary.StartTime
		r.EndTime = summary.EndTime
		r.Duration = summary.Stats.Duration
		r.Stats = summary.Stats
		r.Categories = summary.Categories
	}
	return r
}

// ToJSON 序列化为JSON
func (r *HarvestReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// FromJSON 从JSON反序列化
func (r *HarvestReport) FromJSON(data []byte) error {
	return json.Unmarshal(data, r)
}
