package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// RawItem 列表接口返回的单个商品,字段结构不固定
// 所有读取都允许失败: 缺失是常态,不是错误
type RawItem map[string]any

// Get 读取顶层字段
func (r RawItem) Get(key string) (any, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r[key]
	return v, ok
}

// Path 沿嵌套对象读取字段,任一层不是对象或缺失时返回 (nil, false)
func (r RawItem) Path(keys ...string) (any, bool) {
	var cur any = map[string]any(r)
	for _, k := range keys {
		m, ok := asObject(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[k]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// String 读取嵌套字段并以展示文本返回,缺失时返回空串
func (r RawItem) String(keys ...string) string {
	v, ok := r.Path(keys...)
	if !ok || v == nil {
		return ""
	}
	return Display(v)
}

// Truthy 读取嵌套字段并判断是否为"真值"
func (r RawItem) Truthy(keys ...string) bool {
	v, ok := r.Path(keys...)
	if !ok {
		return false
	}
	return IsTruthy(v)
}

// AsRawItem 将解码后的JSON值转换为RawItem,非对象返回false
func AsRawItem(v any) (RawItem, bool) {
	m, ok := asObject(v)
	if !ok {
		return nil, false
	}
	return RawItem(m), true
}

func asObject(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case RawItem:
		return m, true
	default:
		return nil, false
	}
}

// IsTruthy 判断值是否为真: nil、空串、数值0、false、空数组和空对象为假
func IsTruthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return t.String() != ""
		}
		return f != 0
	case float64:
		return t != 0
	case float32:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	case RawItem:
		return len(t) > 0
	default:
		return true
	}
}

// Display 将JSON值格式化为展示文本
// 字符串原样输出;整数原样;浮点数按repr习惯输出(45.0而不是45)
func Display(v any) string {
	switch t := v.(type) {
	case nil:
		return "None"
	case string:
		return t
	case bool:
		if t {
			return "True"
		}
		return "False"
	case json.Number:
		s := t.String()
		if !strings.ContainsAny(s, ".eE") {
			return s
		}
		f, err := t.Float64()
		if err != nil {
			return s
		}
		return FormatFloat(f)
	case float64:
		return FormatFloat(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case Magnitude:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
