package core

import (
	"context"
	"fmt"
	"time"

	"github.com/RecoveryAshes/CatalogHarvest/internal/categories"
	"github.com/RecoveryAshes/CatalogHarvest/internal/models"
	"github.com/RecoveryAshes/CatalogHarvest/internal/observability"
	"github.com/RecoveryAshes/CatalogHarvest/internal/sink"
	"github.com/RecoveryAshes/CatalogHarvest/internal/utils"
)

// persistTimeout 采集被中断后保存部分结果的时间上限
const persistTimeout = 30 * time.Second

// RunOptions 运行选项
type RunOptions struct {
	Headers  []string // 命令行 "Name: Value"
	Cookies  []string // 命令行 "name=value"
	Progress bool     // 是否显示进度条
}

// Runner 一次完整的采集运行: 解析类目 → 认证 → 采集 → 持久化 → 报告
type Runner struct {
	cfg     *Config
	opts    RunOptions
	metrics *observability.Metrics

	harvesterOpts []HarvesterOption
	openSinks     func(ctx context.Context, cfg *Config) ([]sink.Sink, error)
}

// NewRunner 创建运行器
// hopts会追加到默认的协调器选项之后
func NewRunner(cfg *Config, opts RunOptions, hopts ...HarvesterOption) *Runner {
	return &Runner{
		cfg:           cfg,
		opts:          opts,
		metrics:       observability.NewMetrics(),
		harvesterOpts: hopts,
		openSinks:     OpenSinks,
	}
}

// Metrics 本次运行的指标
func (r *Runner) Metrics() *observability.Metrics {
	return r.metrics
}

// Run 执行采集
// 采集被中断时仍会保存已获得的记录并生成报告,返回的错误包含中断原因
func (r *Runner) Run(ctx context.Context) (*models.HarvestReport, error) {
	if err := r.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置无效: %w", err)
	}

	keys, sources, err := ResolveKeys(r.cfg.Input, r.cfg.Harvest.BaseURL)
	if err != nil {
		return nil, err
	}

	am, err := NewAuthManager(AuthOptions{
		HeadersFile: r.cfg.Input.HeadersFile,
		CookiesFile: r.cfg.Input.CookiesFile,
		Headers:     r.opts.Headers,
		Cookies:     r.opts.Cookies,
	})
	if err != nil {
		return nil, err
	}
	auth, err := am.GetAuthContext()
	if err != nil {
		return nil, err
	}
	if !am.HasUserAuth() {
		utils.Errorf("未提供请求头或Cookie, 请先运行 session 命令或指定 --headers-file/--cookies-file")
		return nil, models.ErrMissingAuth
	}
	utils.Debugf("请求头部: %v", am.GetSafeHeaders())
	utils.Debugf("Cookie: %v", am.GetSafeCookies())

	sinks, err := r.openSinks(ctx, r.cfg)
	if err != nil {
		return nil, err
	}
	defer sink.CloseAll(sinks)

	if r.cfg.Metrics.Enabled {
		r.metrics.Serve(ctx, r.cfg.Metrics.Addr)
	}

	hopts := []HarvesterOption{WithObserver(r.metrics)}
	if r.opts.Progress {
		bar := utils.NewProgressBar(len(keys), "采集类目")
		hopts = append(hopts, WithCategoryDone(func(models.CategoryResult) {
			_ = bar.Add(1)
		}))
		defer func() {
			_ = bar.Finish()
		}()
	}
	hopts = append(hopts, r.harvesterOpts...)

	runID := models.NewRunID()
	utils.Infof("🆔 运行ID: %s (类目来源: %v)", runID, sources)

	harvester := NewHarvester(r.cfg.GetHarvestConfig(), hopts...)
	records, summary, harvestErr := harvester.Harvest(ctx, keys, auth)
	if summary == nil {
		return nil, harvestErr
	}

	// 中断后仍保存部分结果
	writeCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		writeCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		defer cancel()
		utils.Warnf("⚠️  采集被中断,保存已获得的 %d 条记录", len(records))
	}

	report := models.NewHarvestReport(runID, len(keys), summary, r.cfg.GetHarvestConfig())
	report.Sources = sources
	report.OutputFile = r.cfg.OutputPath()
	report.Sinks = sink.WriteAll(writeCtx, sinks, runID, records)

	if _, err := utils.NewReporter(r.cfg.Output.Dir).GenerateReport(report); err != nil {
		utils.Warnf("生成报告失败: %v", err)
	}

	printSummary(report)

	if harvestErr != nil {
		return report, harvestErr
	}
	if failed := failedSinks(report.Sinks); failed > 0 {
		return report, fmt.Errorf("%d个持久化目标写入失败", failed)
	}
	return report, nil
}

// ResolveKeys 汇总所有配置的类目来源
// 顺序: 类目树 → 类目页面 → 类目文件 → 直接指定,各来源内部顺序与重复项保留
func ResolveKeys(in InputConfig, baseURL string) ([]models.CategoryKey, []string, error) {
	var keys []models.CategoryKey
	var sources []string

	if in.CategoryTree != "" {
		treeKeys, err := categories.FromTreeFile(in.CategoryTree)
		if err != nil {
			return nil, nil, err
		}
		utils.Infof("从类目树加载了 %d 个类目", len(treeKeys))
		keys = append(keys, treeKeys...)
		sources = append(sources, "tree")
	}

	if in.CategoryHTML != "" {
		htmlKeys, err := categories.FromHTMLFile(in.CategoryHTML, baseURL)
		if err != nil {
			return nil, nil, err
		}
		utils.Infof("从类目页面加载了 %d 个类目", len(htmlKeys))
		keys = append(keys, htmlKeys...)
		sources = append(sources, "html")
	}

	if in.KeysFile != "" {
		fileKeys, err := utils.ReadKeysFile(in.KeysFile)
		if err != nil {
			return nil, nil, err
		}
		for _, k := range fileKeys {
			keys = append(keys, models.CategoryKey(k))
		}
		sources = append(sources, "file")
	}

	if len(in.Keys) > 0 {
		for _, raw := range in.Keys {
			k, err := utils.NormalizeKey(raw)
			if err != nil {
				return nil, nil, fmt.Errorf("无效类目 %q: %w", raw, err)
			}
			keys = append(keys, models.CategoryKey(k))
		}
		sources = append(sources, "cli")
	}

	if len(keys) == 0 {
		return nil, nil, models.ErrNoCategoryKeys
	}
	return keys, sources, nil
}

// OpenSinks 按配置创建持久化目标
// 任一目标连接失败时关闭已创建的目标并返回错误
func OpenSinks(ctx context.Context, cfg *Config) ([]sink.Sink, error) {
	sinks := make([]sink.Sink, 0, len(cfg.Sink.Kinds))

	fail := func(err error) ([]sink.Sink, error) {
		sink.CloseAll(sinks)
		return nil, err
	}

	for _, kind := range cfg.Sink.Kinds {
		switch kind {
		case SinkJSON:
			sinks = append(sinks, sink.NewJSONSink(cfg.OutputPath()))
		case SinkPostgres:
			s, err := sink.NewPostgresSink(ctx, cfg.Sink.Postgres.DSN, cfg.Sink.Postgres.Table)
			if err != nil {
				return fail(err)
			}
			sinks = append(sinks, s)
		case SinkRedis:
			s, err := sink.NewRedisSink(ctx, sink.RedisOptions{
				Addr:     cfg.Sink.Redis.Addr,
				Password: cfg.Sink.Redis.Password,
				DB:       cfg.Sink.Redis.DB,
				Prefix:   cfg.Sink.Redis.Prefix,
			})
			if err != nil {
				return fail(err)
			}
			sinks = append(sinks, s)
		case SinkMongo:
			s, err := sink.NewMongoSink(ctx, sink.MongoOptions{
				URI:        cfg.Sink.Mongo.URI,
				Database:   cfg.Sink.Mongo.Database,
				Collection: cfg.Sink.Mongo.Collection,
			})
			if err != nil {
				return fail(err)
			}
			sinks = append(sinks, s)
		default:
			return fail(fmt.Errorf("未知的持久化目标: %s", kind))
		}
	}
	return sinks, nil
}

func failedSinks(results []models.SinkResult) int {
	n := 0
	for _, r := range results {
		if r.Error != "" {
			n++
		}
	}
	return n
}

// printSummary 打印采集摘要
func printSummary(report *models.HarvestReport) {
	utils.Info("==================================================")
	utils.Info("📊 采集摘要")
	utils.Info("==================================================")
	utils.Infof("运行ID: %s", report.RunID)
	utils.Infof("📂 类目数: %d", report.Stats.Categories)
	utils.Infof("📄 请求数: %d", report.Stats.Pages)
	utils.Infof("✅ 记录数: %d", report.Stats.Accepted)
	utils.Infof("🚫 过滤数: %d", report.Stats.Rejected)
	utils.Infof("❌ 失败类目: %d", report.Stats.FailedCategories)
	utils.Infof("⏱️  总耗时: %.2f秒", report.Duration)
	for _, s := range report.Sinks {
		if s.Error != "" {
			utils.Warnf("💾 %s: 失败 (%s)", s.Name, s.Error)
		} else {
			utils.Infof("💾 %s: %d 条", s.Name, s.Records)
		}
	}
	utils.Info("==================================================")

	if report.Stats.FailedCategories > 0 {
		utils.Warn("失败的类目:")
		for _, c := range report.Categories {
			if c.Failed() {
				utils.Warnf("  - %s (第%d页): %s", c.Key, c.LastPage, c.Error)
			}
		}
	}
}
