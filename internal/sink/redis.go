package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/RecoveryAshes/CatalogHarvest/internal/models"
	"github.com/redis/go-redis/v9"
)

// redisChunkSize 单条RPUSH携带的记录数
const redisChunkSize = 500

// RedisSink 每次采集写入一个列表 <prefix>:<run_id>,并在 <prefix>:runs 中登记
type RedisSink struct {
	client *redis.Client
	prefix string
}

// RedisOptions Redis连接参数
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedisSink 连接Redis
func NewRedisSink(ctx context.Context, opts RedisOptions) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("Redis连接失败: %w", err)
	}

	return newRedisSink(client, opts.Prefix), nil
}

func newRedisSink(client *redis.Client, prefix string) *RedisSink {
	if prefix == "" {
		prefix = "catalogharvest"
	}
	return &RedisSink{client: client, prefix: prefix}
}

// Name 实现Sink
func (s *RedisSink) Name() string {
	return "redis"
}

// RecordsKey 一次采集的记录列表
func (s *RedisSink) RecordsKey(runID string) string {
	return s.prefix + ":" + runID
}

// RunsKey 所有采集批次的集合
func (s *RedisSink) RunsKey() string {
	return s.prefix + ":runs"
}

// Write 使用管道批量写入
func (s *RedisSink) Write(ctx context.Context, runID string, records []models.ProductRecord) error {
	pipe := s.client.Pipeline()
	key := s.RecordsKey(runID)

	for i := 0; i < len(records); i += redisChunkSize {
		j := min(i+redisChunkSize, len(records))

		values := make([]any, 0, j-i)
		for _, rec := range records[i:j] {
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("序列化记录失败: %w", err)
			}
			values = append(values, string(data))
		}
		pipe.RPush(ctx, key, values...)
	}
	pipe.SAdd(ctx, s.RunsKey(), runID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("保存记录到Redis失败: %w", err)
	}
	return nil
}

// Close 关闭连接
func (s *RedisSink) Close() error {
	return s.client.Close()
}
