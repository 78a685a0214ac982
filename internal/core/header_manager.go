package core

import (
	"net/http"
	"strings"

	"github.com/RecoveryAshes/CatalogHarvest/internal/config"
	"github.com/RecoveryAshes/CatalogHarvest/internal/models"
	"github.com/RecoveryAshes/CatalogHarvest/internal/utils"
)

const (
	// DefaultUserAgent 默认User-Agent
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/120.0.0.0 Safari/537.36"
)

var _ models.AuthProvider = (*AuthManager)(nil)

// AuthManager 管理请求头部与Cookie的来源和合并
// 实现 models.AuthProvider 接口
type AuthManager struct {
	// defaults 系统默认头部 (硬编码)
	defaults http.Header

	// fileHeaders 从头部文件加载
	fileHeaders http.Header

	// cliHeaders 从命令行参数解析
	cliHeaders http.Header

	// fileCookies 从Cookie文件加载
	fileCookies map[string]string

	// cliCookies 从命令行参数解析
	cliCookies map[string]string

	validator    *utils.HeaderValidator
	redactor     *utils.HeaderRedactor
	configLoader *config.AuthConfigLoader

	// loaded 标记文件是否已加载
	loaded bool
}

// AuthOptions 认证信息来源
type AuthOptions struct {
	HeadersFile string   // 头部文件 (为空则使用默认路径)
	CookiesFile string   // Cookie文件 (为空则不加载)
	Headers     []string // 命令行 "Name: Value"
	Cookies     []string // 命令行 "name=value"
}

// NewAuthManager 创建认证信息管理器
// 命令行参数格式错误时返回错误
func NewAuthManager(opts AuthOptions) (*AuthManager, error) {
	am := &AuthManager{
		defaults:     getDefaultHeaders(),
		fileHeaders:  make(http.Header),
		fileCookies:  make(map[string]string),
		validator:    utils.NewHeaderValidator(),
		redactor:     utils.NewHeaderRedactor(),
		configLoader: config.NewAuthConfigLoader(opts.HeadersFile, opts.CookiesFile),
	}

	cliHeaders, err := models.CliHeaders(opts.Headers).Parse()
	if err != nil {
		return nil, err
	}
	am.cliHeaders = cliHeaders

	cliCookies, err := models.CliCookies(opts.Cookies).Parse()
	if err != nil {
		return nil, err
	}
	am.cliCookies = cliCookies

	return am, nil
}

// getDefaultHeaders 返回系统默认头部
func getDefaultHeaders() http.Header {
	return http.Header{
		"User-Agent":      []string{DefaultUserAgent},
		"Accept":          []string{"application/json, text/plain, */*"},
		"Accept-Encoding": []string{"gzip, deflate, br"},
	}
}

// LoadConfig 加载头部与Cookie文件
// 如果已加载则跳过
func (am *AuthManager) LoadConfig() error {
	if am.loaded {
		return nil
	}

	authConfig, err := am.configLoader.Load()
	if err != nil {
		utils.Errorf("加载认证信息失败: %v", err)
		return err
	}

	am.fileHeaders = make(http.Header)
	for name, value := range authConfig.Headers {
		// 浏览器捕获的头部可能包含HTTP/2伪头部或由客户端管理的头部
		if strings.HasPrefix(name, ":") || am.validator.IsForbidden(name) {
			utils.Debugf("忽略头部文件中的 %s", name)
			continue
		}
		am.fileHeaders.Set(name, value)
	}
	am.fileCookies = authConfig.Cookies

	am.loaded = true

	if len(am.fileHeaders) > 0 {
		utils.Debugf("成功加载%d个HTTP头部配置: %v", len(am.fileHeaders), am.redactor.Redact(am.fileHeaders))
	}
	if len(am.fileCookies) > 0 {
		utils.Debugf("成功加载%d个Cookie: %v", len(am.fileCookies), am.redactor.RedactCookies(am.fileCookies))
	}

	return nil
}

// Validate 验证所有头部与Cookie的合法性
// 验证顺序: 默认 → 文件 → 命令行
func (am *AuthManager) Validate() error {
	if err := am.validator.Validate(am.defaults); err != nil {
		utils.Errorf("默认头部验证失败: %v", err)
		return err
	}

	if err := am.validator.Validate(am.fileHeaders); err != nil {
		utils.Errorf("头部文件验证失败: %v", err)
		return err
	}

	if err := am.validator.Validate(am.cliHeaders); err != nil {
		utils.Errorf("命令行头部验证失败: %v", err)
		return err
	}

	if err := am.validator.ValidateCookies(am.GetMergedCookies()); err != nil {
		utils.Errorf("Cookie验证失败: %v", err)
		return err
	}

	utils.Debugf("所有认证信息验证通过")
	return nil
}

// GetMergedHeaders 按优先级合并头部 (default < file < cli)
func (am *AuthManager) GetMergedHeaders() http.Header {
	result := make(http.Header)

	for name, values := range am.defaults {
		result[name] = values
	}

	for name, values := range am.fileHeaders {
		result[name] = values
	}

	for name, values := range am.cliHeaders {
		result[name] = values
	}

	return result
}

// GetMergedCookies 按优先级合并Cookie (file < cli)
func (am *AuthManager) GetMergedCookies() map[string]string {
	result := make(map[string]string, len(am.fileCookies)+len(am.cliCookies))
	for name, value := range am.fileCookies {
		result[name] = value
	}
	for name, value := range am.cliCookies {
		result[name] = value
	}
	return result
}

// HasUserAuth 文件或命令行是否提供了头部或Cookie
// 系统默认头部不计入
func (am *AuthManager) HasUserAuth() bool {
	return len(am.fileHeaders) > 0 || len(am.cliHeaders) > 0 ||
		len(am.fileCookies) > 0 || len(am.cliCookies) > 0
}

// GetSafeHeaders 返回脱敏后的头部 (用于日志)
func (am *AuthManager) GetSafeHeaders() map[string]string {
	return am.redactor.Redact(am.GetMergedHeaders())
}

// GetSafeCookies 返回脱敏后的Cookie (用于日志)
func (am *AuthManager) GetSafeCookies() map[string]string {
	return am.redactor.RedactCookies(am.GetMergedCookies())
}

// GetAuthContext 实现 AuthProvider 接口
func (am *AuthManager) GetAuthContext() (models.AuthContext, error) {
	if err := am.LoadConfig(); err != nil {
		return models.AuthContext{}, err
	}

	if err := am.Validate(); err != nil {
		return models.AuthContext{}, err
	}

	return models.AuthContext{
		Headers: am.GetMergedHeaders(),
		Cookies: am.GetMergedCookies(),
	}, nil
}
