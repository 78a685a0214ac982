package sink

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/RecoveryAshes/CatalogHarvest/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBatchResults 按预设错误返回每条语句的结果
type fakeBatchResults struct {
	failAt int
	execs  int
	closed bool
}

func (r *fakeBatchResults) Exec() (pgconn.CommandTag, error) {
	r.execs++
	if r.failAt > 0 && r.execs == r.failAt {
		return pgconn.CommandTag{}, errors.New("duplicate key")
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (r *fakeBatchResults) Query() (pgx.Rows, error) { return nil, errors.New("not implemented") }

func (r *fakeBatchResults) QueryRow() pgx.Row { return nil }

func (r *fakeBatchResults) Close() error {
	r.closed = true
	return nil
}

// fakePool 记录执行的SQL、batch与事务结果
type fakePool struct {
	execSQL   []string
	batches   []*pgx.Batch
	results   []*fakeBatchResults
	failAt    int
	failBatch int // 只让第几个batch失败,0表示所有batch
	closed    bool
	commits   int
	rollbacks int
}

// fakeTx 只实现Write用到的方法
type fakeTx struct {
	pgx.Tx
	pool *fakePool
	done bool
}

func (tx *fakeTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return tx.pool.SendBatch(ctx, b)
}

func (tx *fakeTx) Commit(ctx context.Context) error {
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.done = true
	tx.pool.commits++
	return nil
}

func (tx *fakeTx) Rollback(ctx context.Context) error {
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.done = true
	tx.pool.rollbacks++
	return nil
}

func (p *fakePool) Begin(ctx context.Context) (pgx.Tx, error) {
	return &fakeTx{pool: p}, nil
}

func (p *fakePool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	p.execSQL = append(p.execSQL, sql)
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func (p *fakePool) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	p.batches = append(p.batches, b)
	failAt := p.failAt
	if p.failBatch > 0 && len(p.batches) != p.failBatch {
		failAt = 0
	}
	r := &fakeBatchResults{failAt: failAt}
	p.results = append(p.results, r)
	return r
}

func (p *fakePool) Close() { p.closed = true }

func TestPostgresSink_Write(t *testing.T) {
	pool := &fakePool{}
	s := newPostgresSink(pool, "public.harvested_products")

	records := sampleRecords()
	require.NoError(t, s.Write(context.Background(), "run-1", records))
	require.NoError(t, s.Write(context.Background(), "run-2", records))

	require.Len(t, pool.execSQL, 1, "建表只执行一次")
	assert.Contains(t, pool.execSQL[0], `CREATE TABLE IF NOT EXISTS "public"."harvested_products"`)

	require.Len(t, pool.batches, 2)
	b := pool.batches[0]
	require.Equal(t, 2, b.Len())

	q := b.QueuedQueries[0]
	assert.True(t, strings.HasPrefix(q.SQL, `INSERT INTO "public"."harvested_products"`))
	require.Len(t, q.Arguments, 9)
	assert.Equal(t, "run-1", q.Arguments[0])
	assert.Equal(t, "fruits-vegetables", q.Arguments[1])
	assert.Equal(t, "10", q.Arguments[2])
	assert.Equal(t, "8901234567890", q.Arguments[3])
	assert.Equal(t, "180", q.Arguments[6])
	assert.Contains(t, string(q.Arguments[7].([]byte)), `"EAN code":"\"8901234567890\""`)

	assert.Equal(t, 2, pool.results[0].execs)
	assert.True(t, pool.results[0].closed)
	assert.Equal(t, 2, pool.commits, "每次Write一个事务")
	assert.Zero(t, pool.rollbacks)

	require.NoError(t, s.Close())
	assert.True(t, pool.closed)
}

func TestPostgresSink_Batching(t *testing.T) {
	pool := &fakePool{}
	s := newPostgresSink(pool, "products")

	records := make([]models.ProductRecord, 0, postgresBatchSize+1)
	for len(records) < postgresBatchSize+1 {
		records = append(records, sampleRecords()[0])
	}

	require.NoError(t, s.Write(context.Background(), "run-1", records))
	require.Len(t, pool.batches, 2)
	assert.Equal(t, postgresBatchSize, pool.batches[0].Len())
	assert.Equal(t, 1, pool.batches[1].Len())
	assert.Equal(t, 1, pool.commits, "多个batch在同一事务内提交")
}

func TestPostgresSink_ExecError(t *testing.T) {
	pool := &fakePool{failAt: 2}
	s := newPostgresSink(pool, "products")

	err := s.Write(context.Background(), "run-1", sampleRecords())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate key")
	assert.True(t, pool.results[0].closed, "出错时也要关闭batch结果")
	assert.Equal(t, 1, pool.rollbacks, "失败时回滚整个事务")
	assert.Zero(t, pool.commits)
}

func TestPostgresSink_LaterBatchFailureRollsBack(t *testing.T) {
	pool := &fakePool{failAt: 1, failBatch: 2}
	s := newPostgresSink(pool, "products")

	records := make([]models.ProductRecord, 0, postgresBatchSize+1)
	for len(records) < postgresBatchSize+1 {
		records = append(records, sampleRecords()[0])
	}

	err := s.Write(context.Background(), "run-1", records)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "写入第501-501条失败")

	require.Len(t, pool.batches, 2)
	assert.Equal(t, postgresBatchSize, pool.results[0].execs, "第一个batch已执行")
	assert.Equal(t, 1, pool.rollbacks, "第一个batch随事务一起回滚")
	assert.Zero(t, pool.commits)
}

func TestQuoteTable(t *testing.T) {
	assert.Equal(t, `"products"`, quoteTable("products"))
	assert.Equal(t, `"s"."t"`, quoteTable("s.t"))
	assert.Equal(t, `"bad""name"`, quoteTable(`bad"name`))
}
