// Package session 用真实浏览器打开首页, 捕获类目树接口的请求头、响应和Cookie,
// 保存为采集命令可直接使用的文件
package session

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/RecoveryAshes/CatalogHarvest/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// 输出文件名
const (
	TreeFile            = "category_tree.json"
	RequestHeadersFile  = "category_tree_request_headers.json"
	ResponseHeadersFile = "category_tree_response_headers.json"
	CookiesFile         = "cookies.json"

	// DefaultMatch 类目树接口URL特征
	DefaultMatch = "category-tree"
)

// ErrTreeNotCaptured 等待超时仍未捕获到类目树响应
var ErrTreeNotCaptured = errors.New("未捕获到类目树响应")

// Options 会话捕获选项
type Options struct {
	HomeURL      string
	Headless     bool
	Wait         time.Duration // 等待类目树响应的上限
	DomainFilter string        // 只保留域名包含该值的Cookie
	Match        string        // 类目树接口URL特征
	OutputDir    string
	MinFreeMB    uint64 // 启动浏览器所需的最小可用内存
}

// Capture 捕获结果
type Capture struct {
	TreeURL         string
	Tree            []byte
	RequestHeaders  map[string]string
	ResponseHeaders map[string]string
	Cookies         map[string]string
}

// Result 捕获并保存后的结果
type Result struct {
	Capture *Capture
	Files   []string
}

// Run 启动浏览器完成捕获并写入输出目录
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Match == "" {
		opts.Match = DefaultMatch
	}
	if opts.OutputDir == "" {
		return nil, fmt.Errorf("未指定输出目录")
	}

	status, err := SampleResources()
	if err != nil {
		utils.Warnf("资源检查跳过: %v", err)
	} else {
		utils.Infof("💻 可用内存 %dMB, CPU %.1f%%, 压力 %s", status.AvailableMB(), status.CPUPercent, status.MemoryPressure)
		if err := status.Check(opts.MinFreeMB); err != nil {
			return nil, err
		}
	}

	captured, err := capture(ctx, opts)
	if err != nil {
		return nil, err
	}

	files, err := Save(opts.OutputDir, captured)
	if err != nil {
		return nil, err
	}

	return &Result{Capture: captured, Files: files}, nil
}

// capture 打开首页并监听网络事件
func capture(ctx context.Context, opts Options) (*Capture, error) {
	l := launcher.New().Headless(opts.Headless)
	l = l.Set("ignore-certificate-errors")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("启动浏览器失败: %w", err)
	}
	defer func() {
		l.Kill()
		l.Cleanup()
	}()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("连接浏览器失败: %w", err)
	}
	defer func() {
		if err := browser.Close(); err != nil {
			utils.Debugf("关闭浏览器失败: %v", err)
		}
	}()
	utils.Debugf("浏览器已启动: %s", controlURL)

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("创建页面失败: %w", err)
	}

	result := &Capture{}
	var mu sync.Mutex
	var treeRequestID proto.NetworkRequestID
	var bodyErr error

	wait := page.EachEvent(
		func(e *proto.NetworkRequestWillBeSent) {
			if !strings.Contains(e.Request.URL, opts.Match) {
				return
			}
			mu.Lock()
			result.RequestHeaders = headerMap(e.Request.Headers)
			mu.Unlock()
			utils.Debugf("捕获类目树请求: %s", e.Request.URL)
		},
		func(e *proto.NetworkResponseReceived) {
			if !strings.Contains(e.Response.URL, opts.Match) || e.Response.Status != 200 {
				return
			}
			mu.Lock()
			treeRequestID = e.RequestID
			result.TreeURL = e.Response.URL
			result.ResponseHeaders = headerMap(e.Response.Headers)
			mu.Unlock()
		},
		func(e *proto.NetworkLoadingFinished) bool {
			mu.Lock()
			matched := treeRequestID != "" && e.RequestID == treeRequestID
			mu.Unlock()
			if !matched {
				return false
			}

			// 响应体在加载完成后才能读取
			body, err := proto.NetworkGetResponseBody{RequestID: e.RequestID}.Call(page)
			if err != nil {
				bodyErr = fmt.Errorf("获取响应体失败: %w", err)
				return true
			}
			content, err := decodeBody(body.Body, body.Base64Encoded)
			if err != nil {
				bodyErr = err
				return true
			}
			mu.Lock()
			result.Tree = content
			mu.Unlock()
			return true
		},
	)

	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()

	utils.Infof("🌐 打开首页: %s", opts.HomeURL)
	if err := page.Navigate(opts.HomeURL); err != nil {
		return nil, fmt.Errorf("页面导航失败: %w", err)
	}

	timer := time.NewTimer(opts.Wait)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		return nil, fmt.Errorf("%w: 等待%s", ErrTreeNotCaptured, opts.Wait)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if bodyErr != nil {
		return nil, bodyErr
	}
	if len(result.Tree) == 0 {
		return nil, ErrTreeNotCaptured
	}
	utils.Infof("✅ 已捕获类目树: %s (%d 字节)", result.TreeURL, len(result.Tree))

	cookies, err := browser.GetCookies()
	if err != nil {
		return nil, fmt.Errorf("读取Cookie失败: %w", err)
	}
	result.Cookies = FilterCookies(cookies, opts.DomainFilter)
	utils.Infof("🍪 保留 %d/%d 个Cookie (域名包含 %q)", len(result.Cookies), len(cookies), opts.DomainFilter)

	return result, nil
}

// FilterCookies 按域名过滤并简化为 name→value
// domain为空时保留全部
func FilterCookies(cookies []*proto.NetworkCookie, domain string) map[string]string {
	out := make(map[string]string)
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		if domain != "" && !strings.Contains(c.Domain, domain) {
			continue
		}
		out[c.Name] = c.Value
	}
	return out
}

// headerMap 将CDP头部转为字符串映射
func headerMap(h proto.NetworkHeaders) map[string]string {
	out := make(map[string]string, len(h))
	for name, value := range h {
		out[name] = value.Str()
	}
	return out
}

func decodeBody(body string, base64Encoded bool) ([]byte, error) {
	if !base64Encoded {
		return []byte(body), nil
	}
	content, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, fmt.Errorf("解码Base64失败: %w", err)
	}
	return content, nil
}

// Save 以2空格缩进写入四个捕获文件, 返回写入的路径
func Save(dir string, c *Capture) ([]string, error) {
	if c == nil {
		return nil, fmt.Errorf("捕获结果为空")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建输出目录失败: %w", err)
	}

	var tree bytes.Buffer
	if err := json.Indent(&tree, c.Tree, "", "  "); err != nil {
		return nil, fmt.Errorf("类目树不是合法JSON: %w", err)
	}
	tree.WriteByte('\n')

	files := []struct {
		name string
		data interface{}
	}{
		{ResponseHeadersFile, nonNil(c.ResponseHeaders)},
		{RequestHeadersFile, nonNil(c.RequestHeaders)},
		{CookiesFile, nonNil(c.Cookies)},
	}

	treePath := filepath.Join(dir, TreeFile)
	if err := os.WriteFile(treePath, tree.Bytes(), 0644); err != nil {
		return nil, fmt.Errorf("写入%s失败: %w", TreeFile, err)
	}
	written := []string{treePath}

	for _, f := range files {
		data, err := json.MarshalIndent(f.data, "", "  ")
		if err != nil {
			return written, fmt.Errorf("序列化%s失败: %w", f.name, err)
		}
		path := filepath.Join(dir, f.name)
		if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
			return written, fmt.Errorf("写入%s失败: %w", f.name, err)
		}
		written = append(written, path)
	}

	sort.Strings(written)
	return written, nil
}

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
