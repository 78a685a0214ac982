package crawlers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/RecoveryAshes/CatalogHarvest/internal/models"
	"github.com/RecoveryAshes/CatalogHarvest/internal/utils"
	"github.com/andybalholm/brotli"
	"github.com/gocolly/colly/v2"
)

const (
	// listingPath 商品列表接口路径
	listingPath = "/listing-svc/v2/products"

	// supportedEncodings 能够解码的压缩格式
	supportedEncodings = "gzip, deflate, br"

	// maxListingBodySize 单页响应体上限
	maxListingBodySize = 32 * 1024 * 1024
)

// Fetcher 抓取单个 (类目, 页码)
type Fetcher interface {
	Fetch(ctx context.Context, key models.CategoryKey, page int, auth models.AuthContext) models.PageOutcome
}

// FetchObserver 接收抓取事件,用于统计
type FetchObserver interface {
	FetchStarted()
	FetchFinished(kind models.OutcomeKind)
}

// listingPage 列表接口响应中用到的部分
type listingPage struct {
	Tabs []struct {
		ProductInfo struct {
			Products []models.RawItem `json:"products"`
		} `json:"product_info"`
	} `json:"tabs"`
}

// PageFetcher 基于Colly的列表页抓取器
// 每次请求克隆一个同步collector,共享底层HTTP客户端
type PageFetcher struct {
	collector *colly.Collector
	config    models.HarvestConfig
	observer  FetchObserver

	// sleep 请求后的等待,测试中可替换
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPageFetcher 创建抓取器
func NewPageFetcher(config models.HarvestConfig, observer FetchObserver) *PageFetcher {
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
		colly.MaxBodySize(maxListingBodySize),
		colly.IgnoreRobotsTxt(),
	)
	if config.UserAgent != "" {
		c.UserAgent = config.UserAgent
	}

	// Cookie只来自认证信息,不使用collector的cookie jar
	c.DisableCookies()
	c.SetRequestTimeout(config.RequestTimeout)

	utils.Debugf("列表抓取器: 超时=%s, 间隔=%s~%s", config.RequestTimeout, config.PaceMin, config.PaceMax)

	return &PageFetcher{
		collector: c,
		config:    config,
		observer:  observer,
		sleep:     sleepContext,
	}
}

// ListingURL 构造列表接口URL
func (f *PageFetcher) ListingURL(key models.CategoryKey, page int) string {
	base := strings.TrimRight(f.config.BaseURL, "/")
	return fmt.Sprintf("%s%s?type=%s&slug=%s&page=%d",
		base, listingPath, url.QueryEscape(f.config.ListingType), url.QueryEscape(string(key)), page)
}

// Fetch 抓取一页并分类结果
// 无论成功与否,请求后都会等待一个随机间隔 (可被ctx取消)
func (f *PageFetcher) Fetch(ctx context.Context, key models.CategoryKey, page int, auth models.AuthContext) models.PageOutcome {
	if f.observer != nil {
		f.observer.FetchStarted()
	}

	outcome := f.fetch(ctx, key, page, auth)

	if f.observer != nil {
		f.observer.FetchFinished(outcome.Kind)
	}

	if err := f.sleep(ctx, f.paceDelay()); err != nil {
		utils.Debugf("请求间隔被取消 [%s 第%d页]: %v", key, page, err)
	}
	return outcome
}

// fetch 执行请求,不包含等待
func (f *PageFetcher) fetch(ctx context.Context, key models.CategoryKey, page int, auth models.AuthContext) models.PageOutcome {
	target := f.ListingURL(key, page)

	c := f.collector.Clone()
	c.Context = ctx

	var outcome models.PageOutcome
	var handled bool

	c.OnResponse(func(r *colly.Response) {
		handled = true

		if r.StatusCode != http.StatusOK {
			outcome = models.HTTPErrorOutcome(r.StatusCode)
			return
		}

		body, err := decompressResponse(r.Headers.Get("Content-Encoding"), r.Body)
		if err != nil {
			outcome = models.TransportErrorOutcome(err)
			return
		}

		items, err := decodeListing(body)
		if err != nil {
			outcome = models.TransportErrorOutcome(err)
			return
		}
		outcome = models.ItemsOutcome(items)
	})

	c.OnError(func(r *colly.Response, err error) {
		if handled {
			return
		}
		handled = true
		if r != nil && r.StatusCode != 0 && r.StatusCode != http.StatusOK {
			outcome = models.HTTPErrorOutcome(r.StatusCode)
			return
		}
		outcome = models.TransportErrorOutcome(err)
	})

	if err := c.Request(http.MethodGet, target, nil, nil, buildHeaders(auth)); err != nil && !handled {
		return models.TransportErrorOutcome(err)
	}
	if !handled {
		return models.TransportErrorOutcome(errors.New("请求未产生响应"))
	}
	return outcome
}

// buildHeaders 原样转发认证头部,并由Cookie映射生成Cookie头
func buildHeaders(auth models.AuthContext) http.Header {
	hdr := auth.Headers.Clone()
	if hdr == nil {
		hdr = make(http.Header)
	}

	if cookie := auth.CookieHeader(); cookie != "" {
		hdr.Set("Cookie", cookie)
	}

	// 浏览器抓取的头部可能声明zstd等无法解码的格式
	if hdr.Get("Accept-Encoding") != "" {
		hdr.Set("Accept-Encoding", supportedEncodings)
	}
	return hdr
}

// decodeListing 解析 tabs[0].product_info.products
func decodeListing(body []byte) ([]models.RawItem, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var page listingPage
	if err := dec.Decode(&page); err != nil {
		return nil, fmt.Errorf("解析列表响应失败: %w", err)
	}
	if len(page.Tabs) == 0 {
		return nil, nil
	}
	return page.Tabs[0].ProductInfo.Products, nil
}

// paceDelay 在 [PaceMin, PaceMax] 内均匀取值
func (f *PageFetcher) paceDelay() time.Duration {
	lo, hi := f.config.PaceMin, f.config.PaceMax
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo+1)
}

// sleepContext 可取消的等待
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// decompressResponse 根据Content-Encoding头部解压响应体
// gzip可能已被HTTP客户端解压,此时按魔数判断直接返回
func decompressResponse(contentEncoding string, body []byte) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))

	switch encoding {
	case "gzip":
		if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
			return body, nil
		}
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("gzip读取失败: %w", err)
		}
		return decompressed, nil

	case "deflate":
		// HTTP的deflate是zlib封装,部分服务端会直接发送裸DEFLATE流
		var reader io.ReadCloser
		if zr, err := zlib.NewReader(bytes.NewReader(body)); err == nil {
			reader = zr
		} else {
			reader = flate.NewReader(bytes.NewReader(body))
		}
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("deflate读取失败: %w", err)
		}
		return decompressed, nil

	case "br":
		reader := brotli.NewReader(bytes.NewReader(body))
		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("brotli读取失败: %w", err)
		}
		return decompressed, nil

	case "", "identity":
		return body, nil

	default:
		return nil, fmt.Errorf("不支持的Content-Encoding: %s", contentEncoding)
	}
}
