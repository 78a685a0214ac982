package extract

import (
	"fmt"

	"github.com/RecoveryAshes/CatalogHarvest/internal/models"
	"github.com/RecoveryAshes/CatalogHarvest/internal/utils"
)

// RejectReason 记录被过滤的原因,用作指标标签
type RejectReason string

const (
	RejectMissingID        RejectReason = "missing_id"
	RejectMissingEAN       RejectReason = "missing_ean"
	RejectMissingPrice     RejectReason = "missing_price"
	RejectMissingImage     RejectReason = "missing_image"
	RejectMissingBrand     RejectReason = "missing_brand"
	RejectMissingTitle     RejectReason = "missing_title"
	RejectMissingMagnitude RejectReason = "missing_magnitude"
	RejectMissingUnit      RejectReason = "missing_unit"
	RejectMissingWeight    RejectReason = "missing_weight"
	RejectSentinelEAN      RejectReason = "sentinel_ean"
)

// sentinelEAN 上游用来表示"无条码"的值
const sentinelEAN = "0"

// requiredField 必填字段及其缺失时的过滤原因,按检查顺序排列
type requiredField struct {
	path   []string
	reason RejectReason
}

var requiredFields = []requiredField{
	{[]string{"id"}, RejectMissingID},
	{[]string{"ean_code"}, RejectMissingEAN},
	{[]string{"pricing", "discount", "mrp"}, RejectMissingPrice},
	{[]string{"images"}, RejectMissingImage},
	{[]string{"brand", "name"}, RejectMissingBrand},
	{[]string{"desc"}, RejectMissingTitle},
	{[]string{"magnitude"}, RejectMissingMagnitude},
	{[]string{"unit"}, RejectMissingUnit},
	{[]string{"w"}, RejectMissingWeight},
}

// Observer 接收规范化结果,用于统计
type Observer interface {
	ObserveAccepted()
	ObserveRejected(reason string)
}

// Normalizer 将原始商品转换为ProductRecord
// 过滤是数据质量策略,不是错误: 被过滤的记录只计数和记调试日志
type Normalizer struct {
	observer Observer
}

// NewNormalizer 创建规范化器,observer可为nil
func NewNormalizer(observer Observer) *Normalizer {
	return &Normalizer{observer: observer}
}

// Normalize 规范化单个商品
// 返回false表示该商品被过滤
func (n *Normalizer) Normalize(raw models.RawItem) (models.ProductRecord, bool) {
	if reason := Check(raw); reason != "" {
		utils.Logger.Debug().
			Str("reason", string(reason)).
			Str("id", raw.String("id")).
			Msg("商品被过滤")
		if n != nil && n.observer != nil {
			n.observer.ObserveRejected(string(reason))
		}
		return models.ProductRecord{}, false
	}

	if n != nil && n.observer != nil {
		n.observer.ObserveAccepted()
	}
	return build(raw), true
}

// Check 返回商品被过滤的原因,通过校验时返回空串
func Check(raw models.RawItem) RejectReason {
	for _, f := range requiredFields {
		if !raw.Truthy(f.path...) {
			return f.reason
		}
	}
	if ean, _ := raw.Get("ean_code"); ean == sentinelEAN {
		return RejectSentinelEAN
	}
	return ""
}

// build 假定Check已通过
func build(raw models.RawItem) models.ProductRecord {
	q := ParseQuantity(raw.String("w"))

	price, _ := raw.Path("pricing", "discount", "mrp")
	id, _ := raw.Get("id")
	mag, _ := raw.Get("magnitude")
	unit, _ := raw.Get("unit")
	image, _ := raw.Get("images")
	tlc, _ := raw.Path("category", "tlc_name")
	mlc, _ := raw.Path("category", "mlc_name")
	llc, _ := raw.Path("category", "llc_name")

	var children any = models.ChildrenSentinel
	if raw.Truthy("children") {
		children, _ = raw.Get("children")
	}

	brand := raw.String("brand", "name")

	return models.ProductRecord{
		ID:          id,
		EANCode:     models.EANCode(raw.String("ean_code")),
		Title:       composeTitle(raw.String("desc"), brand, q, mag, unit, price),
		Brand:       brand,
		Magnitude:   mag,
		Unit:        unit,
		Count:       q.Count,
		WMag:        q.Magnitude,
		WUnit:       q.Unit,
		Price:       price,
		CategoryTLC: tlc,
		CategoryMLC: mlc,
		CategoryLLC: llc,
		Children:    children,
		Image:       image,
	}
}

// composeTitle 生成展示标题
// 规格解析出数值和单位时用 (描述)品牌[件数x规格]{单位}<价格>,否则用原始magnitude/unit
func composeTitle(desc, brand string, q models.ParsedQuantity, mag, unit, price any) string {
	if !q.Magnitude.IsZero() && q.Unit != "" {
		return fmt.Sprintf("(%s)%s[%dx%s]{%s}<%s>",
			desc, brand, q.Count, q.Magnitude.String(), q.Unit, models.Display(price))
	}
	return fmt.Sprintf("(%s)%s[%s]{%s}<%s>",
		desc, brand, models.Display(mag), models.Display(unit), models.Display(price))
}
