package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/RecoveryAshes/CatalogHarvest/internal/models"
	"github.com/RecoveryAshes/CatalogHarvest/internal/utils"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// postgresBatchSize 每个batch的INSERT数
const postgresBatchSize = 500

// pgExecutor pgxpool.Pool中用到的部分
type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresSink 写入PostgreSQL,每条记录一行,完整记录保存在payload(jsonb)
type PostgresSink struct {
	db    pgExecutor
	table string

	ensured bool
}

// NewPostgresSink 连接数据库
// table可以带schema (public.harvested_products)
func NewPostgresSink(ctx context.Context, dsn, table string) (*PostgresSink, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("解析PostgreSQL连接串失败: %w", err)
	}
	cfg.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("PostgreSQL连接失败: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("PostgreSQL Ping失败: %w", err)
	}

	utils.Debugf("PostgreSQL连接成功: %s", cfg.ConnConfig.Host)
	return newPostgresSink(pool, table), nil
}

func newPostgresSink(db pgExecutor, table string) *PostgresSink {
	return &PostgresSink{db: db, table: quoteTable(table)}
}

// quoteTable 按 schema.table 拆分后转义
func quoteTable(table string) string {
	return pgx.Identifier(strings.Split(table, ".")).Sanitize()
}

// Name 实现Sink
func (s *PostgresSink) Name() string {
	return "postgres"
}

func (s *PostgresSink) createTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS ` + s.table + ` (
	id           BIGSERIAL PRIMARY KEY,
	run_id       TEXT NOT NULL,
	category     TEXT NOT NULL,
	product_id   TEXT,
	ean_code     TEXT,
	title        TEXT,
	brand        TEXT,
	price        TEXT,
	payload      JSONB NOT NULL,
	harvested_at TIMESTAMPTZ NOT NULL
)`
}

func (s *PostgresSink) insertSQL() string {
	return `INSERT INTO ` + s.table + `
	(run_id, category, product_id, ean_code, title, brand, price, payload, harvested_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
}

// Write 建表后在一个事务内分批插入
// 任一batch失败时整个事务回滚,该run_id不会留下部分记录
func (s *PostgresSink) Write(ctx context.Context, runID string, records []models.ProductRecord) error {
	if !s.ensured {
		if _, err := s.db.Exec(ctx, s.createTableSQL()); err != nil {
			return fmt.Errorf("创建表%s失败: %w", s.table, err)
		}
		s.ensured = true
	}

	now := time.Now().UTC()
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		for i := 0; i < len(records); i += postgresBatchSize {
			j := min(i+postgresBatchSize, len(records))

			b := &pgx.Batch{}
			for _, rec := range records[i:j] {
				payload, err := json.Marshal(rec)
				if err != nil {
					return fmt.Errorf("序列化记录失败: %w", err)
				}
				b.Queue(s.insertSQL(),
					runID, string(rec.Category), models.Display(rec.ID), string(rec.EANCode),
					rec.Title, rec.Brand, models.Display(rec.Price), payload, now,
				)
			}

			if err := sendBatch(ctx, tx, b); err != nil {
				return fmt.Errorf("写入第%d-%d条失败: %w", i+1, j, err)
			}
		}
		return nil
	})
}

func sendBatch(ctx context.Context, tx pgx.Tx, b *pgx.Batch) error {
	br := tx.SendBatch(ctx, b)
	for k := 0; k < b.Len(); k++ {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return err
		}
	}
	return br.Close()
}

// Close 关闭连接池
func (s *PostgresSink) Close() error {
	s.db.Close()
	return nil
}
