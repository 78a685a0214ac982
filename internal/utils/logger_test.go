package utils

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestInitLogger(t *testing.T) {
	// 创建临时日志目录
	tempDir := t.TempDir()

	config := LogConfig{
		Level:      "debug",
		LogDir:     tempDir,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}

	// 初始化日志器
	err := InitLogger(config)
	if err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}

	// 验证日志目录已创建
	if _, err := os.Stat(tempDir); os.IsNotExist(err) {
		t.Errorf("日志目录未创建: %s", tempDir)
	}

	// 写入测试日志
	Info("测试信息日志")
	Warn("测试警告日志")
	Debug("测试调试日志")

	// 等待日志写入
	time.Sleep(100 * time.Millisecond)

	// 验证主日志文件存在
	mainLogPath := filepath.Join(tempDir, "harvest.log")
	if _, err := os.Stat(mainLogPath); os.IsNotExist(err) {
		t.Errorf("主日志文件未创建: %s", mainLogPath)
	}
}

func TestLogLevels(t *testing.T) {
	tempDir := t.TempDir()

	config := LogConfig{
		Level:      "info",
		LogDir:     tempDir,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   false,
	}

	err := InitLogger(config)
	if err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}

	// 测试各种日志级别
	Info("信息日志测试")
	Infof("格式化信息日志: %s", "测试")
	Warn("警告日志测试")
	Warnf("格式化警告日志: %d", 123)
	Debug("调试日志测试 - 应该不显示因为级别是info")
	Debugf("格式化调试日志: %v", true)

	time.Sleep(100 * time.Millisecond)

	// 验证日志文件存在且有内容
	mainLogPath := filepath.Join(tempDir, "harvest.log")
	content, err := os.ReadFile(mainLogPath)
	if err != nil {
		t.Fatalf("读取日志文件失败: %v", err)
	}

	if len(content) == 0 {
		t.Error("日志文件为空")
	}
}

func TestDefaultLogConfig(t *testing.T) {
	config := DefaultLogConfig()

	if config.Level != "info" {
		t.Errorf("默认日志级别错误: 期望 'info', 得到 '%s'", config.Level)
	}

	if config.LogDir != "logs" {
		t.Errorf("默认日志目录错误: 期望 'logs', 得到 '%s'", config.LogDir)
	}

	if config.MaxSize != 10 {
		t.Errorf("默认最大大小错误: 期望 10, 得到 %d", config.MaxSize)
	}

	if config.MaxBackups != 3 {
		t.Errorf("默认备份数错误: 期望 3, 得到 %d", config.MaxBackups)
	}

	if config.MaxAge != 28 {
		t.Errorf("默认保留天数错误: 期望 28, 得到 %d", config.MaxAge)
	}

	if !config.Compress {
		t.Error("默认应该启用压缩")
	}
}

func TestChineseLogOutput(t *testing.T) {
	tempDir := t.TempDir()

	config := LogConfig{
		Level:      "info",
		LogDir:     tempDir,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   false,
	}

	err := InitLogger(config)
	if err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}

	// 测试中文日志输出
	chineseMsg := "这是一条中文日志消息"
	Info(chineseMsg)

	time.Sleep(100 * time.Millisecond)

	// 读取日志文件并验证中文编码正确
	mainLogPath := filepath.Join(tempDir, "harvest.log")
	content, err := os.ReadFile(mainLogPath)
	if err != nil {
		t.Fatalf("读取日志文件失败: %v", err)
	}

	// 验证包含中文内容
	if len(content) > 0 {
		t.Logf("日志内容长度: %d 字节", len(content))
	} else {
		t.Error("日志文件为空,中文日志未写入")
	}
}

func TestErrorLogFiltering(t *testing.T) {
	tempDir := t.TempDir()

	config := DefaultLogConfig()
	config.LogDir = tempDir
	config.Compress = false

	if err := InitLogger(config); err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}

	Info("普通信息不应进入错误日志")
	Error(errors.New("boom"), "页面抓取失败")

	time.Sleep(100 * time.Millisecond)

	content, err := os.ReadFile(filepath.Join(tempDir, "harvest_error.log"))
	if err != nil {
		t.Fatalf("读取错误日志失败: %v", err)
	}
	if strings.Contains(string(content), "普通信息不应进入错误日志") {
		t.Error("错误日志包含了info级别日志")
	}
	if !strings.Contains(string(content), "页面抓取失败") {
		t.Error("错误日志缺少error级别日志")
	}
}

func TestCategoryLogger(t *testing.T) {
	tempDir := t.TempDir()

	config := DefaultLogConfig()
	config.LogDir = tempDir
	config.Compress = false

	if err := InitLogger(config); err != nil {
		t.Fatalf("初始化日志器失败: %v", err)
	}

	l := CategoryLogger("fruits-vegetables")
	l.Info().Int("page", 2).Msg("类目日志")

	time.Sleep(100 * time.Millisecond)

	content, err := os.ReadFile(filepath.Join(tempDir, "harvest.log"))
	if err != nil {
		t.Fatalf("读取日志文件失败: %v", err)
	}
	if !strings.Contains(string(content), `"category":"fruits-vegetables"`) {
		t.Errorf("日志缺少category字段: %s", content)
	}
}

func TestFilteredWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &FilteredWriter{Writer: &buf, MinLevel: zerolog.ErrorLevel}

	tests := []struct {
		name  string
		line  string
		write bool
	}{
		{"error级别", `{"level":"error","message":"boom"}`, true},
		{"fatal级别", `{"level":"fatal","message":"exit"}`, true},
		{"info级别", `{"level":"info","message":"ok"}`, false},
		{"缺少level", `{"message":"no level"}`, false},
		{"非JSON", "plain text", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			n, err := w.Write([]byte(tt.line))
			if err != nil {
				t.Fatalf("写入失败: %v", err)
			}
			if n != len(tt.line) {
				t.Errorf("返回长度 %d, 期望 %d", n, len(tt.line))
			}
			if got := buf.Len() > 0; got != tt.write {
				t.Errorf("写入=%v, 期望 %v", got, tt.write)
			}
		})
	}

	buf.Reset()
	if _, err := w.WriteLevel(zerolog.WarnLevel, []byte("warn")); err != nil || buf.Len() != 0 {
		t.Errorf("warn级别不应写入错误日志")
	}
}
