package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/RecoveryAshes/CatalogHarvest/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoBatchSize 每次InsertMany的文档数
const mongoBatchSize = 1000

// MongoSink 每条记录一个文档,附加run_id/category/harvested_at
type MongoSink struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// MongoOptions MongoDB连接参数
type MongoOptions struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// NewMongoSink 连接MongoDB
func NewMongoSink(ctx context.Context, opts MongoOptions) (*MongoSink, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	connectCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(opts.URI).SetRetryWrites(true))
	if err != nil {
		return nil, fmt.Errorf("MongoDB连接失败: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("MongoDB Ping失败: %w", err)
	}

	return &MongoSink{
		client: client,
		coll:   client.Database(opts.Database).Collection(opts.Collection),
	}, nil
}

// Name 实现Sink
func (s *MongoSink) Name() string {
	return "mongo"
}

// Write 无序批量写入
func (s *MongoSink) Write(ctx context.Context, runID string, records []models.ProductRecord) error {
	now := time.Now().UTC()
	opts := options.InsertMany().SetOrdered(false)

	for i := 0; i < len(records); i += mongoBatchSize {
		j := min(i+mongoBatchSize, len(records))

		docs := make([]any, 0, j-i)
		for _, rec := range records[i:j] {
			doc, err := toDocument(rec, runID, now)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
		}

		if _, err := s.coll.InsertMany(ctx, docs, opts); err != nil {
			return fmt.Errorf("保存到MongoDB失败: %w", err)
		}
	}
	return nil
}

// toDocument 按JSON字段名转换为BSON文档,数值保持数值类型
func toDocument(rec models.ProductRecord, runID string, at time.Time) (bson.D, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("序列化记录失败: %w", err)
	}

	var fields bson.D
	if err := bson.UnmarshalExtJSON(data, false, &fields); err != nil {
		return nil, fmt.Errorf("转换BSON失败: %w", err)
	}

	doc := bson.D{
		{Key: "run_id", Value: runID},
		{Key: "category", Value: string(rec.Category)},
		{Key: "harvested_at", Value: at},
	}
	return append(doc, fields...), nil
}

// Close 断开连接
func (s *MongoSink) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(context.Background())
}
