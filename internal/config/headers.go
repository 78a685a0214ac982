package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/RecoveryAshes/CatalogHarvest/internal/models"
	"github.com/RecoveryAshes/CatalogHarvest/internal/utils"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

const (
	// DefaultHeadersFile 默认头部配置文件路径
	DefaultHeadersFile = "configs/headers.yaml"

	// MaxConfigFileSize 配置文件最大大小 (1MB)
	MaxConfigFileSize = 1 * 1024 * 1024
)

//go:embed headers_template.yaml
var defaultHeaderTemplate string

// AuthConfigLoader 认证信息文件加载器
// 头部文件: YAML/JSON,支持 headers: 段或扁平的 名称->值 映射 (session命令保存的格式)
// Cookie文件: 名称->值 映射,或浏览器导出的 [{name, value, domain}] 列表
type AuthConfigLoader struct {
	headersPath string
	cookiesPath string
}

// NewAuthConfigLoader 创建加载器
// headersPath为空时使用默认路径;cookiesPath为空表示不加载Cookie文件
func NewAuthConfigLoader(headersPath, cookiesPath string) *AuthConfigLoader {
	if headersPath == "" {
		headersPath = DefaultHeadersFile
	}
	return &AuthConfigLoader{
		headersPath: headersPath,
		cookiesPath: cookiesPath,
	}
}

// HeadersPath 头部配置文件路径
func (l *AuthConfigLoader) HeadersPath() string {
	return l.headersPath
}

// EnsureHeadersExists 确保头部配置文件存在,如不存在则自动生成模板
func (l *AuthConfigLoader) EnsureHeadersExists() error {
	if _, err := os.Stat(l.headersPath); os.IsNotExist(err) {
		dir := filepath.Dir(l.headersPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("无法创建配置目录 [%s]: %w", dir, err)
		}

		if err := os.WriteFile(l.headersPath, []byte(defaultHeaderTemplate), 0644); err != nil {
			return fmt.Errorf("无法生成配置文件 [%s]: %w", l.headersPath, err)
		}
		utils.Infof("已生成头部配置模板: %s", l.headersPath)
	}
	return nil
}

// ValidateFileSize 验证配置文件大小是否在限制内
func ValidateFileSize(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("无法读取配置文件信息 [%s]: %w", path, err)
	}

	if info.Size() > MaxConfigFileSize {
		return &models.ConfigError{
			FilePath: path,
			Cause: fmt.Errorf("配置文件过大: %d 字节 (最大 %d 字节)",
				info.Size(), MaxConfigFileSize),
		}
	}

	return nil
}

// Load 加载头部与Cookie
func (l *AuthConfigLoader) Load() (*models.AuthConfig, error) {
	headers, err := l.LoadHeaders()
	if err != nil {
		return nil, err
	}

	cookies, err := l.LoadCookies()
	if err != nil {
		return nil, err
	}

	return &models.AuthConfig{Headers: headers, Cookies: cookies}, nil
}

// LoadHeaders 加载头部配置文件
// 执行流程:
//  1. 确保配置文件存在 (不存在则自动创建)
//  2. 验证文件大小
//  3. 使用Viper解析 (按扩展名识别YAML/JSON)
//  4. 有headers段时取该段,否则整个文件视为扁平映射
//
// viper会将键名转换为小写,头部名称在合并时会被规范化
func (l *AuthConfigLoader) LoadHeaders() (map[string]string, error) {
	if err := l.EnsureHeadersExists(); err != nil {
		return nil, err
	}

	if err := ValidateFileSize(l.headersPath); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(l.headersPath)
	if ext := strings.TrimPrefix(filepath.Ext(l.headersPath), "."); ext == "" {
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		// 配置文件被其他进程占用时,降级为不使用文件头部
		if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EWOULDBLOCK) {
			utils.Warnf("配置文件被锁定 [%s], 使用默认头部", l.headersPath)
			return make(map[string]string), nil
		}

		return nil, &models.ConfigError{
			FilePath: l.headersPath,
			Cause:    err,
		}
	}

	if v.InConfig("headers") {
		var config models.AuthConfig
		if err := v.Unmarshal(&config); err != nil {
			return nil, &models.ConfigError{
				FilePath: l.headersPath,
				Cause:    fmt.Errorf("配置绑定失败: %w", err),
			}
		}
		if config.Headers == nil {
			config.Headers = make(map[string]string)
		}
		return config.Headers, nil
	}

	headers := make(map[string]string)
	for key, value := range v.AllSettings() {
		switch value.(type) {
		case map[string]any, []any, nil:
			utils.Debugf("忽略非字符串头部项: %s", key)
			continue
		}
		headers[key] = v.GetString(key)
	}
	return headers, nil
}

// cookieEntry 浏览器导出的Cookie
type cookieEntry struct {
	Name   string `yaml:"name"`
	Value  string `yaml:"value"`
	Domain string `yaml:"domain"`
}

// LoadCookies 加载Cookie文件,未配置时返回空映射
// Cookie名称区分大小写,不能经过viper (会转换为小写)
func (l *AuthConfigLoader) LoadCookies() (map[string]string, error) {
	cookies := make(map[string]string)
	if l.cookiesPath == "" {
		return cookies, nil
	}

	if err := ValidateFileSize(l.cookiesPath); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(l.cookiesPath)
	if err != nil {
		return nil, &models.ConfigError{FilePath: l.cookiesPath, Cause: err}
	}

	if err := yaml.Unmarshal(data, &cookies); err == nil {
		if cookies == nil {
			cookies = make(map[string]string)
		}
		return cookies, nil
	}

	var entries []cookieEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, &models.ConfigError{
			FilePath: l.cookiesPath,
			Cause:    fmt.Errorf("Cookie文件既不是映射也不是列表: %w", err),
		}
	}

	cookies = make(map[string]string, len(entries))
	for _, e := range entries {
		if e.Name == "" {
			continue
		}
		cookies[e.Name] = e.Value
	}
	return cookies, nil
}
