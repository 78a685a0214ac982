package models

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// 采集前置条件错误,出现时不会发出任何请求
var (
	ErrNoCategoryKeys = errors.New("未提供任何类目标识")
	ErrMissingAuth    = errors.New("缺少认证信息(请求头与Cookie均为空)")
)

// AuthConfig 表示headers/cookies配置文件的结构
// 从JSON或YAML文件加载
type AuthConfig struct {
	// Headers 自定义HTTP头部 (键值对)
	Headers map[string]string `mapstructure:"headers" yaml:"headers" json:"headers"`

	// Cookies Cookie名称到值的映射
	Cookies map[string]string `mapstructure:"cookies" yaml:"cookies" json:"cookies"`
}

// AuthContext 每个请求原样携带的认证信息
// 采集开始后只读
type AuthContext struct {
	Headers http.Header
	Cookies map[string]string
}

// IsEmpty 请求头与Cookie均为空
func (a AuthContext) IsEmpty() bool {
	return len(a.Headers) == 0 && len(a.Cookies) == 0
}

// CookieHeader 按名称顺序拼接Cookie请求头
func (a AuthContext) CookieHeader() string {
	if len(a.Cookies) == 0 {
		return ""
	}
	names := make([]string, 0, len(a.Cookies))
	for name := range a.Cookies {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(a.Cookies[name])
	}
	return b.String()
}

// Clone 深拷贝,供每个请求独立使用
func (a AuthContext) Clone() AuthContext {
	out := AuthContext{Headers: a.Headers.Clone()}
	if a.Cookies != nil {
		out.Cookies = make(map[string]string, len(a.Cookies))
		for k, v := range a.Cookies {
			out.Cookies[k] = v
		}
	}
	return out
}

// CliHeaders 表示命令行传递的头部列表
// 每个字符串格式为 "Name: Value"
type CliHeaders []string

// Parse 将字符串列表解析为 http.Header
func (ch CliHeaders) Parse() (http.Header, error) {
	result := make(http.Header)
	for i, s := range ch {
		name, value, err := splitPair(s, ":")
		if err != nil {
			return nil, fmt.Errorf("参数 --header 第%d项格式错误: %w", i+1, err)
		}
		result.Set(name, value)
	}
	return result, nil
}

// CliCookies 表示命令行传递的Cookie列表
// 每个字符串格式为 "name=value"
type CliCookies []string

// Parse 将字符串列表解析为Cookie映射
func (cc CliCookies) Parse() (map[string]string, error) {
	result := make(map[string]string, len(cc))
	for i, s := range cc {
		name, value, err := splitPair(s, "=")
		if err != nil {
			return nil, fmt.Errorf("参数 --cookie 第%d项格式错误: %w", i+1, err)
		}
		result[name] = value
	}
	return result, nil
}

// splitPair 解析 "Name<sep>Value"
func splitPair(s, sep string) (name, value string, err error) {
	parts := strings.SplitN(s, sep, 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("格式错误: 缺少分隔符 %q", sep)
	}

	name = strings.TrimSpace(parts[0])
	value = strings.TrimSpace(parts[1])

	if name == "" {
		return "", "", fmt.Errorf("名称不能为空")
	}

	return name, value, nil
}

// AuthProvider 定义认证信息提供者接口
type AuthProvider interface {
	// GetAuthContext 返回合并后的请求头与Cookie
	// 请求头优先级: 默认 < 配置文件 < 命令行
	// Cookie优先级: 配置文件 < 命令行
	//
	// 错误情况:
	//   - 配置文件解析失败
	//   - 头部或Cookie验证失败
	GetAuthContext() (AuthContext, error)
}

// ValidationError 头部/Cookie验证错误
type ValidationError struct {
	// Field 出错的字段 ("name" 或 "value")
	Field string

	// HeaderName 头部或Cookie名称
	HeaderName string

	// Reason 错误原因
	Reason string

	// Suggestion 修复建议 (可选)
	Suggestion string
}

// Error 实现error接口
func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("验证失败 [%s]: %s", e.HeaderName, e.Reason)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (建议: %s)", e.Suggestion)
	}
	return msg
}

// ConfigError 配置文件错误
type ConfigError struct {
	// FilePath 配置文件路径
	FilePath string

	// Cause 底层错误 (如viper.ConfigParseError)
	Cause error
}

// Error 实现error接口
func (e *ConfigError) Error() string {
	return fmt.Sprintf("配置文件错误 [%s]: %v", e.FilePath, e.Cause)
}

// Unwrap 支持errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Cause
}
