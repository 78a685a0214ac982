// Package categories 从类目树响应或保存的页面中提取类目slug
package categories

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/RecoveryAshes/CatalogHarvest/internal/models"
)

// treeCategory 类目树中用到的字段,类型不固定的字段按any读取
type treeCategory struct {
	Slug     any `json:"slug"`
	Children []struct {
		DestSlug any `json:"dest_slug"`
	} `json:"children"`
}

// FromTree 解析类目树响应
// 每个顶级类目取slug,每个子项从dest_slug查询串中取slug参数;
// 保留顺序和重复项
func FromTree(doc []byte) ([]models.CategoryKey, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(doc, &root); err != nil {
		return nil, fmt.Errorf("解析类目树失败: %w", err)
	}

	raw, ok := root["categories"]
	if !ok {
		return []models.CategoryKey{}, nil
	}

	var cats []treeCategory
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&cats); err != nil {
		return nil, fmt.Errorf("类目树categories字段格式错误: %w", err)
	}

	keys := make([]models.CategoryKey, 0, len(cats))
	for _, c := range cats {
		if slug, ok := c.Slug.(string); ok && slug != "" {
			keys = append(keys, models.CategoryKey(slug))
		}
		for _, child := range c.Children {
			dest, ok := child.DestSlug.(string)
			if !ok {
				continue
			}
			if slug := slugFromDest(dest); slug != "" {
				keys = append(keys, models.CategoryKey(slug))
			}
		}
	}
	return keys, nil
}

// slugFromDest 从 "slug=a&nc=b" 形式的查询串中取slug
func slugFromDest(dest string) string {
	dest, _, _ = strings.Cut(dest, "#")
	// 格式错误的片段被跳过,其余参数仍然有效
	values, _ := url.ParseQuery(dest)
	return values.Get("slug")
}

// FromTreeFile 读取session命令保存的category_tree.json
func FromTreeFile(path string) ([]models.CategoryKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取类目树文件失败: %w", err)
	}

	return FromTree(data)
}
