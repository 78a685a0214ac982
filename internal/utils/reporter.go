package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/CatalogHarvest/internal/models"
	"github.com/schollz/progressbar/v3"
)

const (
	// ReportFileName 采集报告文件名
	ReportFileName = "harvest_report.json"

	// FailedCategoriesFileName 失败类目列表文件名
	FailedCategoriesFileName = "failed_categories.json"
)

// Reporter 报告生成器
type Reporter struct {
	outputDir string
}

// NewReporter 创建报告生成器
func NewReporter(outputDir string) *Reporter {
	return &Reporter{
		outputDir: outputDir,
	}
}

// ReportsDir 报告目录
func (r *Reporter) ReportsDir(runID string) string {
	return filepath.Join(r.outputDir, "reports", runID)
}

// GenerateReport 生成采集报告
// 返回报告目录
func (r *Reporter) GenerateReport(report *models.HarvestReport) (string, error) {
	reportsDir := r.ReportsDir(report.RunID)
	if err := os.MkdirAll(reportsDir, 0755); err != nil {
		return "", fmt.Errorf("创建报告目录失败: %w", err)
	}

	// 保存主报告
	if err := r.saveJSONReport(reportsDir, ReportFileName, report); err != nil {
		return "", err
	}

	// 保存失败类目列表
	failed := make([]models.CategoryResult, 0)
	for _, c := range report.Categories {
		if c.Failed() {
			failed = append(failed, c)
		}
	}
	if err := r.saveJSONReport(reportsDir, FailedCategoriesFileName, failed); err != nil {
		return "", err
	}

	Infof("✅ 报告已生成: %s", reportsDir)
	return reportsDir, nil
}

// saveJSONReport 保存JSON报告
func (r *Reporter) saveJSONReport(dir string, filename string, data interface{}) error {
	filepath := filepath.Join(dir, filename)

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化JSON失败: %w", err)
	}

	if err := os.WriteFile(filepath, jsonData, 0644); err != nil {
		return fmt.Errorf("写入报告文件失败: %w", err)
	}

	Debugf("保存报告: %s", filepath)
	return nil
}

// NewProgressBar 创建进度条
func NewProgressBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
