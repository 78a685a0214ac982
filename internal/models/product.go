package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ChildrenSentinel 无变体商品的Children占位值
const ChildrenSentinel = "NAN"

// CategoryKey 类目标识(slug),对核心引擎不透明
type CategoryKey string

// ParsedQuantity 规格字符串解析结果
type ParsedQuantity struct {
	Count     int       `json:"count"`     // 件数 (>=1)
	Magnitude Magnitude `json:"magnitude"` // 单件数值,可能退化为字符串
	Unit      string    `json:"unit"`      // 单位
}

// Magnitude 数值或字符串的联合类型
// 主模式解析成功时为数值;回退模式下保留拼接出的原始字符串
type Magnitude struct {
	Number  float64
	Text    string
	Numeric bool
}

// NumberMagnitude 构造数值型Magnitude
func NumberMagnitude(f float64) Magnitude {
	return Magnitude{Number: f, Numeric: true}
}

// TextMagnitude 构造字符串型Magnitude
func TextMagnitude(s string) Magnitude {
	return Magnitude{Text: s}
}

// IsZero 数值0或空字符串视为空
func (m Magnitude) IsZero() bool {
	if m.Numeric {
		return m.Number == 0
	}
	return m.Text == ""
}

// String 返回展示用文本,整数值的浮点数保留一位小数 (500 -> "500.0")
func (m Magnitude) String() string {
	if m.Numeric {
		return FormatFloat(m.Number)
	}
	return m.Text
}

// MarshalJSON 数值输出为JSON数字,字符串输出为JSON字符串
func (m Magnitude) MarshalJSON() ([]byte, error) {
	if m.Numeric {
		return []byte(FormatFloat(m.Number)), nil
	}
	return json.Marshal(m.Text)
}

// UnmarshalJSON 支持数字与字符串两种形态
func (m *Magnitude) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*m = TextMagnitude(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("w_mag既不是数字也不是字符串: %w", err)
	}
	*m = NumberMagnitude(f)
	return nil
}

// EANCode 商品条码
// 序列化时值本身带引号 ("\"8901234567890\""),避免下游按数字解析丢失精度
type EANCode string

// MarshalJSON 输出带引号的字符串
func (e EANCode) MarshalJSON() ([]byte, error) {
	return json.Marshal(`"` + string(e) + `"`)
}

// UnmarshalJSON 去掉外层引号
func (e *EANCode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*e = EANCode(strings.TrimSuffix(strings.TrimPrefix(s, `"`), `"`))
	return nil
}

// ProductRecord 规范化后的商品记录
// 上游字段类型不固定的(Id/Price/Magnitude/Children/Image)按原样保留
type ProductRecord struct {
	ID          any       `json:"Id"`
	EANCode     EANCode   `json:"EAN code"`
	Title       string    `json:"Title"`
	Brand       string    `json:"Brand"`
	Magnitude   any       `json:"Magnitude"`
	Unit        any       `json:"Unit"`
	Count       int       `json:"Count"`
	WMag        Magnitude `json:"w_mag"`
	WUnit       string    `json:"w_unit"`
	Price       any       `json:"Price"`
	CategoryTLC any       `json:"category_tlc"`
	CategoryMLC any       `json:"category_mlc"`
	CategoryLLC any       `json:"category_llc"`
	Children    any       `json:"Children"`
	Image       any       `json:"Image"`

	// Category 产生该记录的类目,不参与序列化
	Category CategoryKey `json:"-"`
}

// ToJSON 序列化为JSON
func (p *ProductRecord) ToJSON() ([]byte, error) {
	return json.Marshal(p)
}

// FormatFloat 按动态语言repr的习惯格式化浮点数: 整数值补 ".0"
func FormatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEn") {
		s += ".0"
	}
	return s
}
