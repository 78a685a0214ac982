package models

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"有效的HTTP URL", "http://example.com", false},
		{"有效的HTTPS URL", "https://www.bigbasket.com", false},
		{"带路径的URL", "https://example.com/path/to/resource", false},
		{"无效的协议", "ftp://example.com", true},
		{"无效的URL", "not a url", true},
		{"空URL", "", true},
		{"无协议", "example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func validHarvestConfig() HarvestConfig {
	return HarvestConfig{
		BaseURL:        "https://www.bigbasket.com",
		ListingType:    "pc",
		Concurrency:    5,
		PaceMin:        3 * time.Second,
		PaceMax:        6 * time.Second,
		RequestTimeout: 30 * time.Second,
	}
}

func TestHarvestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *HarvestConfig)
		wantErr bool
	}{
		{"有效配置", func(c *HarvestConfig) {}, false},
		{"间隔为零", func(c *HarvestConfig) { c.PaceMin, c.PaceMax = 0, 0 }, false},
		{"并发过小", func(c *HarvestConfig) { c.Concurrency = 0 }, true},
		{"并发过大", func(c *HarvestConfig) { c.Concurrency = 101 }, true},
		{"间隔颠倒", func(c *HarvestConfig) { c.PaceMin = 7 * time.Second }, true},
		{"负间隔", func(c *HarvestConfig) { c.PaceMin = -time.Second }, true},
		{"站点无效", func(c *HarvestConfig) { c.BaseURL = "bigbasket" }, true},
		{"类型为空", func(c *HarvestConfig) { c.ListingType = "" }, true},
		{"超时为零", func(c *HarvestConfig) { c.RequestTimeout = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validHarvestConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestProductRecord_JSON(t *testing.T) {
	rec := ProductRecord{
		ID:          json.Number("40012345"),
		EANCode:     "8901234567890",
		Title:       "(Toor Dal)Tata Sampann[2x500.0]{g}<150>",
		Brand:       "Tata Sampann",
		Magnitude:   json.Number("1"),
		Unit:        "kg",
		Count:       2,
		WMag:        NumberMagnitude(500),
		WUnit:       "g",
		Price:       json.Number("150"),
		CategoryTLC: "Foodgrains, Oil & Masala",
		Children:    ChildrenSentinel,
		Image:       []any{"https://img/1.jpg"},
		Category:    "foodgrains-oil-masala",
	}

	data, err := rec.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	if got := raw["EAN code"]; got != `"8901234567890"` {
		t.Errorf("EAN code = %#v, 应包含引号", got)
	}
	if got := raw["w_mag"]; got != 500.0 {
		t.Errorf("w_mag = %#v, want 500", got)
	}
	if !strings.Contains(string(data), `"w_mag":500.0`) {
		t.Errorf("w_mag应输出为500.0: %s", data)
	}
	if _, ok := raw["Category"]; ok {
		t.Error("Category不应被序列化")
	}

	var decoded ProductRecord
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal(ProductRecord) error = %v", err)
	}
	if decoded.EANCode != rec.EANCode {
		t.Errorf("EANCode = %q, want %q", decoded.EANCode, rec.EANCode)
	}
	if !decoded.WMag.Numeric || decoded.WMag.Number != 500 {
		t.Errorf("WMag = %+v", decoded.WMag)
	}
}

func TestMagnitude_JSON(t *testing.T) {
	tests := []struct {
		name string
		m    Magnitude
		want string
	}{
		{"整数值浮点", NumberMagnitude(500), "500.0"},
		{"小数", NumberMagnitude(1.5), "1.5"},
		{"字符串", TextMagnitude("1"), `"1"`},
		{"空字符串", TextMagnitude(""), `""`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.m)
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("Marshal() = %s, want %s", data, tt.want)
			}

			var back Magnitude
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if back != tt.m {
				t.Errorf("Unmarshal() = %+v, want %+v", back, tt.m)
			}
		})
	}
}

func TestIsTruthy(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want bool
	}{
		{"nil", nil, false},
		{"空串", "", false},
		{"非空串", "0", true},
		{"数字0", json.Number("0"), false},
		{"浮点0", json.Number("0.0"), false},
		{"非零数字", json.Number("12"), true},
		{"false", false, false},
		{"true", true, true},
		{"空数组", []any{}, false},
		{"非空数组", []any{"a"}, true},
		{"空对象", map[string]any{}, false},
		{"非空对象", map[string]any{"a": 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTruthy(tt.v); got != tt.want {
				t.Errorf("IsTruthy(%#v) = %v, want %v", tt.v, got, tt.want)
			}
		})
	}
}

func TestDisplay(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want string
	}{
		{"字符串", "kg", "kg"},
		{"整数", json.Number("150"), "150"},
		{"带小数的整数值", json.Number("150.0"), "150.0"},
		{"小数", json.Number("99.50"), "99.5"},
		{"float64整数值", 45.0, "45.0"},
		{"nil", nil, "None"},
		{"布尔", true, "True"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Display(tt.v); got != tt.want {
				t.Errorf("Display(%#v) = %q, want %q", tt.v, got, tt.want)
			}
		})
	}
}

func TestRawItem_Path(t *testing.T) {
	item := RawItem{
		"id": json.Number("1"),
		"pricing": map[string]any{
			"discount": map[string]any{"mrp": "120"},
		},
		"brand": "不是对象",
	}

	if v, ok := item.Path("pricing", "discount", "mrp"); !ok || v != "120" {
		t.Errorf("Path(pricing.discount.mrp) = %v, %v", v, ok)
	}
	if _, ok := item.Path("brand", "name"); ok {
		t.Error("非对象中间层应返回false")
	}
	if _, ok := item.Path("missing"); ok {
		t.Error("缺失字段应返回false")
	}
	if got := item.String("pricing", "discount", "mrp"); got != "120" {
		t.Errorf("String() = %q", got)
	}
	if got := item.String("missing"); got != "" {
		t.Errorf("String(missing) = %q, want 空串", got)
	}
	if !item.Truthy("id") {
		t.Error("Truthy(id) 应为true")
	}

	var nilItem RawItem
	if _, ok := nilItem.Get("id"); ok {
		t.Error("nil RawItem 读取应返回false")
	}
}

func TestPageOutcome(t *testing.T) {
	if got := ItemsOutcome(nil); got.Kind != OutcomeEmpty {
		t.Errorf("空列表应退化为Empty, got %v", got.Kind)
	}
	if got := ItemsOutcome([]RawItem{{"id": 1}}); !got.Continue() {
		t.Error("Items应继续")
	}
	if EmptyOutcome().Err() != nil {
		t.Error("Empty不应返回错误")
	}

	cause := errors.New("connection reset")
	out := TransportErrorOutcome(cause)
	if out.Continue() {
		t.Error("TransportError不应继续")
	}
	if !errors.Is(out.Err(), cause) {
		t.Errorf("Err()应包装原始错误: %v", out.Err())
	}

	if err := HTTPErrorOutcome(403).Err(); err == nil || !strings.Contains(err.Error(), "403") {
		t.Errorf("HTTPError.Err() = %v", err)
	}

	if got := StopReasonFor(OutcomeHTTPError); got != StopHTTPError {
		t.Errorf("StopReasonFor = %v", got)
	}
	if got := StopReasonFor(OutcomeItems); got != "" {
		t.Errorf("Items不应有停止原因: %v", got)
	}
}

func TestAuthContext(t *testing.T) {
	var empty AuthContext
	if !empty.IsEmpty() {
		t.Error("零值应为空")
	}

	auth := AuthContext{Cookies: map[string]string{"_bb_vid": "v1", "csrftoken": "abc"}}
	if auth.IsEmpty() {
		t.Error("只有Cookie也不应为空")
	}
	if got := auth.CookieHeader(); got != "_bb_vid=v1; csrftoken=abc" {
		t.Errorf("CookieHeader() = %q", got)
	}

	clone := auth.Clone()
	clone.Cookies["csrftoken"] = "changed"
	if auth.Cookies["csrftoken"] != "abc" {
		t.Error("Clone()应深拷贝Cookie")
	}
}

func TestCliParse(t *testing.T) {
	headers, err := CliHeaders{"User-Agent: test", "X-Channel:  BB-WEB "}.Parse()
	if err != nil {
		t.Fatalf("CliHeaders.Parse() error = %v", err)
	}
	if headers.Get("X-Channel") != "BB-WEB" {
		t.Errorf("X-Channel = %q", headers.Get("X-Channel"))
	}

	if _, err := (CliHeaders{"no-colon"}).Parse(); err == nil {
		t.Error("缺少冒号应返回错误")
	}

	cookies, err := CliCookies{"a=1", "b = x=y"}.Parse()
	if err != nil {
		t.Fatalf("CliCookies.Parse() error = %v", err)
	}
	if cookies["b"] != "x=y" {
		t.Errorf("cookie b = %q, want x=y", cookies["b"])
	}

	if _, err := (CliCookies{"=1"}).Parse(); err == nil {
		t.Error("空名称应返回错误")
	}
}

func TestHarvestSummary_Add(t *testing.T) {
	start := time.Now()
	s := &HarvestSummary{StartTime: start}
	s.Add(CategoryResult{Key: "a", Pages: 4, ItemsSeen: 30, Accepted: 25, Rejected: 5, Stop: StopEmpty})
	s.Add(CategoryResult{Key: "b", Pages: 1, Stop: StopHTTPError, LastStatus: 403})
	s.Finish(start.Add(2 * time.Second))

	if s.Stats.Categories != 2 || s.Stats.FailedCategories != 1 {
		t.Errorf("Stats = %+v", s.Stats)
	}
	if s.Stats.Pages != 5 || s.Stats.Accepted != 25 || s.Stats.Rejected != 5 {
		t.Errorf("Stats = %+v", s.Stats)
	}
	if s.Stats.Duration != 2 {
		t.Errorf("Duration = %v, want 2", s.Stats.Duration)
	}

	report := NewHarvestReport("run-1", 2, s, validHarvestConfig())
	data, err := report.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	var decoded HarvestReport
	if err := decoded.FromJSON(data); err != nil {
		t.Fatalf("FromJSON() error = %v", err)
	}
	if decoded.RunID != "run-1" || len(decoded.Categories) != 2 {
		t.Errorf("decoded = %+v", decoded)
	}
}
