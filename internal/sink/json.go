package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/CatalogHarvest/internal/models"
)

// DefaultJSONFile 默认结果文件名
const DefaultJSONFile = "all_processed_products.json"

// JSONSink 将记录写成一个缩进的JSON数组
type JSONSink struct {
	path string
}

// NewJSONSink 创建JSON文件输出
func NewJSONSink(path string) *JSONSink {
	return &JSONSink{path: path}
}

// Name 实现Sink
func (s *JSONSink) Name() string {
	return "json"
}

// Path 输出文件路径
func (s *JSONSink) Path() string {
	return s.path
}

// Write 先写临时文件再重命名,避免留下半个文件
// 非ASCII字符原样输出,不做HTML转义
func (s *JSONSink) Write(ctx context.Context, runID string, records []models.ProductRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if records == nil {
		records = []models.ProductRecord{}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".products-*.json")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		tmp.Close()
		return fmt.Errorf("序列化记录失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("写入临时文件失败: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("保存结果文件失败: %w", err)
	}
	return nil
}

// Close 实现Sink
func (s *JSONSink) Close() error {
	return nil
}
