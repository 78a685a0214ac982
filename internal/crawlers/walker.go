package crawlers

import (
	"context"
	"time"

	"github.com/RecoveryAshes/CatalogHarvest/internal/extract"
	"github.com/RecoveryAshes/CatalogHarvest/internal/models"
	"github.com/RecoveryAshes/CatalogHarvest/internal/utils"
)

// WalkObserver 接收类目结束事件
type WalkObserver interface {
	CategoryDone(stop models.StopReason)
}

// Walker 类目遍历器
// 从第1页开始逐页抓取,第一个非Items结果结束该类目;不重试,不跳页
type Walker struct {
	fetcher    Fetcher
	normalizer *extract.Normalizer
	gate       *Gate
	aggregate  *Aggregate
	auth       models.AuthContext
	observer   WalkObserver
}

// NewWalker 创建类目遍历器
// gate为nil时不限制并发,observer可为nil
func NewWalker(fetcher Fetcher, normalizer *extract.Normalizer, gate *Gate, aggregate *Aggregate, auth models.AuthContext, observer WalkObserver) *Walker {
	return &Walker{
		fetcher:    fetcher,
		normalizer: normalizer,
		gate:       gate,
		aggregate:  aggregate,
		auth:       auth,
		observer:   observer,
	}
}

// Walk 遍历一个类目的全部页面
// 通过校验的记录按页/商品顺序写入Aggregate
func (w *Walker) Walk(ctx context.Context, key models.CategoryKey) models.CategoryResult {
	start := time.Now()
	log := utils.CategoryLogger(string(key))
	result := models.CategoryResult{Key: key}

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			result.Stop = models.StopCancelled
			result.Error = err.Error()
			break
		}

		outcome, err := w.fetchPage(ctx, key, page)
		if err != nil {
			result.Stop = models.StopCancelled
			result.Error = err.Error()
			break
		}

		result.Pages++
		result.LastPage = page
		if outcome.Kind == models.OutcomeHTTPError {
			result.LastStatus = outcome.Status
		}

		if !outcome.Continue() {
			result.Stop = models.StopReasonFor(outcome.Kind)
			if ctx.Err() != nil {
				result.Stop = models.StopCancelled
			}
			if err := outcome.Err(); err != nil {
				result.Error = err.Error()
				log.Warn().
					Int("page", page).
					Int("status", outcome.Status).
					Str("outcome", outcome.Kind.String()).
					Err(err).
					Msg("❌ 页面抓取失败,类目结束")
			}
			break
		}

		accepted := make([]models.ProductRecord, 0, len(outcome.Items))
		for _, item := range outcome.Items {
			rec, ok := w.normalizer.Normalize(item)
			if !ok {
				result.Rejected++
				continue
			}
			rec.Category = key
			accepted = append(accepted, rec)
		}
		result.ItemsSeen += len(outcome.Items)

		if err := w.aggregate.Append(accepted...); err != nil {
			result.Stop = models.StopCancelled
			result.Error = err.Error()
			log.Error().Int("page", page).Err(err).Msg("写入结果失败")
			break
		}
		result.Accepted += len(accepted)

		log.Info().
			Int("page", page).
			Int("items", len(outcome.Items)).
			Int("accepted", len(accepted)).
			Msg("✓ 页面完成")
	}

	result.DurationSecs = time.Since(start).Seconds()

	log.Info().
		Str("stop", string(result.Stop)).
		Int("pages", result.Pages).
		Int("accepted", result.Accepted).
		Int("rejected", result.Rejected).
		Msg("类目遍历结束")

	if w.observer != nil {
		w.observer.CategoryDone(result.Stop)
	}
	return result
}

// fetchPage 在闸门内完成一次请求及其后的等待
func (w *Walker) fetchPage(ctx context.Context, key models.CategoryKey, page int) (models.PageOutcome, error) {
	if w.gate != nil {
		if err := w.gate.Acquire(ctx); err != nil {
			return models.PageOutcome{}, err
		}
		defer w.gate.Release()
	}
	return w.fetcher.Fetch(ctx, key, page, w.auth), nil
}
