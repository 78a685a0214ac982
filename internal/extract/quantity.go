package extract

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/RecoveryAshes/CatalogHarvest/internal/models"
)

var (
	// packPattern 件数 x 单件规格 单位,从字符串开头匹配
	packPattern = regexp.MustCompile(`^(\d+)[Xx](\d+\.?\d*)([a-zA-Z/ ]+)`)

	// 回退模式下保留的字符
	magnitudeChars = regexp.MustCompile(`[0-9.+Xx]`)
	unitChars      = regexp.MustCompile(`[A-Za-z+/ ]`)
)

// ParseQuantity 解析自由格式的规格字符串
// 从不返回错误: 主模式不匹配时按字符类别拼接出尽力而为的结果
//
//	"2x500g"    -> {2, 500.0, "g"}
//	"1kg"       -> {1, "1", "kg"}
//	"Pack of 2" -> {1, "2", "Pack of"}
//
// 件数超出int范围时取math.MaxInt
func ParseQuantity(raw string) models.ParsedQuantity {
	if m := packPattern.FindStringSubmatch(raw); m != nil {
		count, errCount := strconv.Atoi(m[1])
		if errors.Is(errCount, strconv.ErrRange) {
			errCount = nil
		}
		mag, errMag := strconv.ParseFloat(m[2], 64)
		if errCount == nil && errMag == nil {
			return models.ParsedQuantity{
				Count:     count,
				Magnitude: models.NumberMagnitude(mag),
				Unit:      strings.TrimSpace(m[3]),
			}
		}
	}

	return models.ParsedQuantity{
		Count:     1,
		Magnitude: models.TextMagnitude(strings.Join(magnitudeChars.FindAllString(raw, -1), "")),
		Unit:      strings.TrimSpace(strings.Join(unitChars.FindAllString(raw, -1), "")),
	}
}
