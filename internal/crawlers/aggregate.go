package crawlers

import (
	"sync"

	"github.com/RecoveryAshes/CatalogHarvest/internal/models"
)

// Aggregate 并发安全的只追加记录集合
// 职责: 接收所有类目遍历器写入的记录,采集结束后由协调器一次性取出
type Aggregate struct {
	// 已接收的记录,类目内部保持页/商品顺序
	records []models.ProductRecord

	// 保护records和drained
	mu sync.Mutex

	// 是否已被取出
	drained bool
}

// NewAggregate 创建空集合
func NewAggregate() *Aggregate {
	return &Aggregate{
		records: make([]models.ProductRecord, 0, 256),
	}
}

// Append 追加记录
// 取出之后的写入返回ErrAggregateDrained
func (a *Aggregate) Append(records ...models.ProductRecord) error {
	if len(records) == 0 {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.drained {
		return models.ErrAggregateDrained
	}
	a.records = append(a.records, records...)
	return nil
}

// Len 当前记录数
func (a *Aggregate) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.records)
}

// Drain 取出全部记录,之后集合不再接受写入
// 重复调用返回nil
func (a *Aggregate) Drain() []models.ProductRecord {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.drained {
		return nil
	}
	a.drained = true

	out := a.records
	a.records = nil
	return out
}
