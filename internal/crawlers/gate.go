package crawlers

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// DefaultConcurrency 同时处于抓取阶段的请求上限
const DefaultConcurrency = 5

// Gate 准入闸门
// 遍历器在每次请求前获取,在请求和随后的等待结束后释放
type Gate struct {
	sem  *semaphore.Weighted
	size int
}

// NewGate 创建闸门,size<1时使用DefaultConcurrency
func NewGate(size int) *Gate {
	if size < 1 {
		size = DefaultConcurrency
	}
	return &Gate{
		sem:  semaphore.NewWeighted(int64(size)),
		size: size,
	}
}

// Acquire 阻塞直到获得名额或ctx取消
func (g *Gate) Acquire(ctx context.Context) error {
	return g.sem.Acquire(ctx, 1)
}

// Release 归还名额
func (g *Gate) Release() {
	g.sem.Release(1)
}

// Size 闸门容量
func (g *Gate) Size() int {
	return g.size
}
