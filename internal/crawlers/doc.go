// Package crawlers 提供分页商品列表的抓取与类目遍历
//
// # 概述
//
// crawlers包按类目逐页请求商品列表接口。每个类目由一个Walker顺序遍历,
// 多个类目并发进行,同时处于抓取阶段的请求数由Gate限制。
//
// # 核心组件
//
// ## PageFetcher
//
// 基于Colly的单页抓取器。每次请求克隆一个Collector,附带认证头部与Cookie,
// 把响应归类为四种结果之一:
//   - Items: 200且商品列表非空
//   - Empty: 200但列表为空或缺失
//   - HTTPError: 非200状态码
//   - TransportError: 网络错误、解码错误或请求被取消
//
// 每次请求完成后在闸门内随机等待 [pace_min, pace_max],等待可被ctx取消。
//
//	fetcher := NewPageFetcher(config, observer)
//	outcome := fetcher.Fetch(ctx, "fruits-vegetables", 1, auth)
//
// ## Gate (准入闸门)
//
// 基于加权信号量的计数闸门,一次抓取及其后的等待占用一个名额。
//
//	gate := NewGate(5)
//	if err := gate.Acquire(ctx); err != nil { /* ctx已取消 */ }
//	defer gate.Release()
//
// ## Walker (类目遍历器)
//
// 从第1页开始逐页抓取,第一个非Items结果结束该类目。不重试,不跳页。
// 通过校验的记录按页、商品顺序写入Aggregate。
//
//	walker := NewWalker(fetcher, normalizer, gate, aggregate, auth, observer)
//	result := walker.Walk(ctx, "beverages")
//
// ## Aggregate (结果汇总)
//
// 并发安全的记录列表。同一类目内保持顺序,不同类目之间的交错顺序不保证。
//
// # 配置参数 (configs/config.yaml)
//
//	harvest:
//	  base_url: https://www.bigbasket.com
//	  listing_type: pc
//	  concurrency: 5       # 同时抓取的请求数上限
//	  pace_min: 3s         # 每次请求后的最短等待
//	  pace_max: 6s         # 每次请求后的最长等待
//	  request_timeout: 30s
//
// # 并发安全
//
//   - Gate: semaphore.Weighted
//   - Aggregate: sync.Mutex
//   - PageFetcher: 每次请求独立克隆Collector
//
// # 错误处理
//
// 单个类目的HTTP错误或传输错误只结束该类目,不影响其他类目。
// ctx取消后Walker在下一次获取闸门或请求前退出,停止原因记为cancelled。
package crawlers
