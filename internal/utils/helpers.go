package utils

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// ReadKeysFile 从文件中读取类目标识列表
// 每行一个slug或类目页URL (如 https://www.bigbasket.com/pc/fruits-vegetables/),
// 空行和#开头的注释行被跳过,重复项保留
func ReadKeysFile(filepath string) ([]string, error) {
	file, err := os.Open(filepath)
	if err != nil {
		return nil, fmt.Errorf("打开类目文件失败: %w", err)
	}
	defer file.Close()

	keys := make([]string, 0)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// 跳过空行和注释行
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, err := NormalizeKey(line)
		if err != nil {
			Warnf("跳过无效类目 (行 %d): %s - %v", lineNum, line, err)
			continue
		}

		keys = append(keys, key)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取类目文件失败: %w", err)
	}

	if len(keys) == 0 {
		return nil, fmt.Errorf("类目文件中没有有效的类目")
	}

	Infof("从文件加载了 %d 个类目", len(keys))
	return keys, nil
}

// NormalizeKey 将一行输入转换为类目slug
// URL取 /pc/ 之后的路径,其余输入原样作为slug
func NormalizeKey(line string) (string, error) {
	if !strings.Contains(line, "://") {
		if strings.ContainsAny(line, " \t?&") {
			return "", fmt.Errorf("slug包含非法字符")
		}
		return line, nil
	}

	if err := ValidateURL(line); err != nil {
		return "", err
	}
	parsed, _ := url.Parse(line)

	if slug := parsed.Query().Get("slug"); slug != "" {
		return slug, nil
	}

	_, rest, found := strings.Cut(parsed.Path, "/pc/")
	if !found {
		return "", fmt.Errorf("URL不是类目页 (缺少 /pc/ 路径)")
	}
	slug := strings.Trim(rest, "/")
	if slug == "" {
		return "", fmt.Errorf("URL中的类目为空")
	}
	return slug, nil
}

// ValidateURL 验证URL格式
func ValidateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("URL格式无效: %w", err)
	}

	if parsed.Scheme == "" {
		return fmt.Errorf("URL缺少协议(http/https)")
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL协议必须是http或https")
	}

	if parsed.Host == "" {
		return fmt.Errorf("URL缺少主机名")
	}

	return nil
}
