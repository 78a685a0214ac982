package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrAggregateDrained 汇总结果已被取走后再次写入
var ErrAggregateDrained = errors.New("汇总结果已取出,不再接受写入")

// StopReason 类目停止原因
type StopReason string

const (
	StopEmpty          StopReason = "empty"           // 遇到空页
	StopHTTPError      StopReason = "http_error"      // 非200响应
	StopTransportError StopReason = "transport_error" // 网络/解码失败
	StopCancelled      StopReason = "cancelled"       // 上下文取消
)

// StopReasonFor 将页结果映射为停止原因,Items返回空串
func StopReasonFor(kind OutcomeKind) StopReason {
	switch kind {
	case OutcomeEmpty:
		return StopEmpty
	case OutcomeHTTPError:
		return StopHTTPError
	case OutcomeTransportError:
		return StopTransportError
	default:
		return ""
	}
}

// HarvestConfig 采集配置
type HarvestConfig struct {
	BaseURL        string        `mapstructure:"base_url" json:"base_url"`               // 列表接口站点 (默认:https://www.bigbasket.com)
	ListingType    string        `mapstructure:"listing_type" json:"listing_type"`       // 列表类型参数 (默认:pc)
	Concurrency    int           `mapstructure:"concurrency" json:"concurrency"`         // 同时抓取的请求数上限 (默认:5)
	PaceMin        time.Duration `mapstructure:"pace_min" json:"pace_min"`               // 每次请求后最短等待 (默认:3s)
	PaceMax        time.Duration `mapstructure:"pace_max" json:"pace_max"`               // 每次请求后最长等待 (默认:6s)
	RequestTimeout time.Duration `mapstructure:"request_timeout" json:"request_timeout"` // 单次请求超时 (默认:30s)
	UserAgent      string        `mapstructure:"user_agent" json:"user_agent"`           // 认证信息未提供User-Agent时使用
}

// Validate 验证配置
func (c *HarvestConfig) Validate() error {
	if err := ValidateURL(c.BaseURL); err != nil {
		return fmt.Errorf("base_url无效: %w", err)
	}
	if c.ListingType == "" {
		return fmt.Errorf("listing_type不能为空")
	}
	if c.Concurrency < 1 || c.Concurrency > 100 {
		return fmt.Errorf("并发数必须在1-100之间")
	}
	if c.PaceMin < 0 || c.PaceMax < 0 {
		return fmt.Errorf("请求间隔不能为负数")
	}
	if c.PaceMin > c.PaceMax {
		return fmt.Errorf("pace_min(%s)不能大于pace_max(%s)", c.PaceMin, c.PaceMax)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("请求超时必须大于0")
	}
	return nil
}

// CategoryResult 单个类目的遍历结果
type CategoryResult struct {
	Key          CategoryKey `json:"key"`
	Pages        int         `json:"pages"`                 // 发出的请求数
	ItemsSeen    int         `json:"items_seen"`            // 收到的原始商品数
	Accepted     int         `json:"accepted"`              // 通过校验的记录数
	Rejected     int         `json:"rejected"`              // 被过滤的记录数
	Stop         StopReason  `json:"stop"`                  // 停止原因
	LastPage     int         `json:"last_page"`             // 最后一次请求的页码
	LastStatus   int         `json:"last_status,omitempty"` // 最后一次HTTP状态码
	Error        string      `json:"error,omitempty"`       // 失败原因
	DurationSecs float64     `json:"duration"`              // 耗时(秒)
}

// Failed 类目是否因错误结束
func (r *CategoryResult) Failed() bool {
	return r.Stop == StopHTTPError || r.Stop == StopTransportError
}

// HarvestStats 采集统计
type HarvestStats struct {
	Categories       int     `json:"categories"`        // 类目数
	FailedCategories int     `json:"failed_categories"` // 因错误结束的类目数
	Pages            int     `json:"pages"`             // 请求总数
	ItemsSeen        int     `json:"items_seen"`        // 原始商品总数
	Accepted         int     `json:"accepted"`          // 记录总数
	Rejected         int     `json:"rejected"`          // 过滤总数
	Duration         float64 `json:"duration"`          // 总耗时(秒)
}

// HarvestSummary 一次采集的汇总
type HarvestSummary struct {
	StartTime  time.Time        `json:"start_time"`
	EndTime    time.Time        `json:"end_time"`
	Categories []CategoryResult `json:"categories"`
	Stats      HarvestStats     `json:"stats"`
}

// Add 累加一个类目结果
func (s *HarvestSummary) Add(r CategoryResult) {
	s.Categories = append(s.Categories, r)
	s.Stats.Categories++
	if r.Failed() {
		s.Stats.FailedCategories++
	}
	s.Stats.Pages += r.Pages
	s.Stats.ItemsSeen += r.ItemsSeen
	s.Stats.Accepted += r.Accepted
	s.Stats.Rejected += r.Rejected
}

// Finish 记录结束时间
func (s *HarvestSummary) Finish(end time.Time) {
	s.EndTime = end
	s.Stats.Duration = end.Sub(s.StartTime).Seconds()
}

// ToJSON 序列化为JSON
func (s *HarvestSummary) ToJSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
