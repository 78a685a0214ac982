package core

import (
	"context"
	"fmt"
	"time"

	"github.com/RecoveryAshes/CatalogHarvest/internal/crawlers"
	"github.com/RecoveryAshes/CatalogHarvest/internal/extract"
	"github.com/RecoveryAshes/CatalogHarvest/internal/models"
	"github.com/RecoveryAshes/CatalogHarvest/internal/utils"
	"github.com/sourcegraph/conc"
)

// HarvestObserver 接收规范化与类目结束事件
// 若同时实现crawlers.FetchObserver,默认抓取器也会上报请求事件
type HarvestObserver interface {
	extract.Observer
	crawlers.WalkObserver
}

// Harvester 采集协调器
// 每个类目一个遍历器,准入闸门限制同时处于抓取阶段的请求数
type Harvester struct {
	config   models.HarvestConfig
	fetcher  crawlers.Fetcher
	observer HarvestObserver

	// onCategoryDone 每个类目结束时调用,可能被并发调用
	onCategoryDone func(models.CategoryResult)
}

// HarvesterOption 协调器选项
type HarvesterOption func(*Harvester)

// WithFetcher 替换默认的列表抓取器
func WithFetcher(f crawlers.Fetcher) HarvesterOption {
	return func(h *Harvester) {
		h.fetcher = f
	}
}

// WithObserver 设置统计观察者
func WithObserver(o HarvestObserver) HarvesterOption {
	return func(h *Harvester) {
		h.observer = o
	}
}

// WithCategoryDone 设置类目结束回调 (进度条)
func WithCategoryDone(fn func(models.CategoryResult)) HarvesterOption {
	return func(h *Harvester) {
		h.onCategoryDone = fn
	}
}

// NewHarvester 创建采集协调器
func NewHarvester(config models.HarvestConfig, opts ...HarvesterOption) *Harvester {
	h := &Harvester{config: config}
	for _, opt := range opts {
		opt(h)
	}

	if h.fetcher == nil {
		var fetchObserver crawlers.FetchObserver
		if fo, ok := h.observer.(crawlers.FetchObserver); ok {
			fetchObserver = fo
		}
		h.fetcher = crawlers.NewPageFetcher(config, fetchObserver)
	}
	return h
}

// Harvest 采集全部类目
// 前置条件 (类目非空、认证信息非空) 不满足时不发出任何请求;
// 单个类目的失败不影响其他类目。ctx取消时返回已采集的部分结果和ctx错误
func (h *Harvester) Harvest(ctx context.Context, keys []models.CategoryKey, auth models.AuthContext) ([]models.ProductRecord, *models.HarvestSummary, error) {
	if len(keys) == 0 {
		return []models.ProductRecord{}, nil, models.ErrNoCategoryKeys
	}
	if auth.IsEmpty() {
		return []models.ProductRecord{}, nil, models.ErrMissingAuth
	}

	logDuplicateKeys(keys)

	summary := &models.HarvestSummary{StartTime: time.Now()}

	var observer extract.Observer
	var walkObserver crawlers.WalkObserver
	if h.observer != nil {
		observer = h.observer
		walkObserver = h.observer
	}

	gate := crawlers.NewGate(h.config.Concurrency)
	aggregate := crawlers.NewAggregate()
	walker := crawlers.NewWalker(h.fetcher, extract.NewNormalizer(observer), gate, aggregate, auth.Clone(), walkObserver)

	utils.Infof("🚀 开始采集: %d 个类目, 并发上限 %d", len(keys), gate.Size())

	results := make([]models.CategoryResult, len(keys))
	wg := conc.NewWaitGroup()
	for i, key := range keys {
		wg.Go(func() {
			results[i] = walker.Walk(ctx, key)
			if h.onCategoryDone != nil {
				h.onCategoryDone(results[i])
			}
		})
	}
	wg.Wait()

	for _, r := range results {
		summary.Add(r)
	}
	summary.Finish(time.Now())

	records := aggregate.Drain()

	utils.Infof("✅ 采集结束: 记录 %d, 过滤 %d, 失败类目 %d/%d, 耗时 %.2f秒",
		summary.Stats.Accepted, summary.Stats.Rejected,
		summary.Stats.FailedCategories, summary.Stats.Categories, summary.Stats.Duration)

	if err := ctx.Err(); err != nil {
		return records, summary, fmt.Errorf("采集被中断: %w", err)
	}
	return records, summary, nil
}

// logDuplicateKeys 重复类目会被重复抓取,只做提示
func logDuplicateKeys(keys []models.CategoryKey) {
	seen := make(map[models.CategoryKey]int, len(keys))
	for _, k := range keys {
		seen[k]++
	}
	for k, n := range seen {
		if n > 1 {
			utils.Logger.Debug().Str("category", string(k)).Int("count", n).Msg("类目重复出现,将重复抓取")
		}
	}
}
