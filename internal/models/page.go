package models

import (
	"fmt"
	"net/http"
)

// OutcomeKind 单页抓取结果类型
type OutcomeKind int

const (
	OutcomeItems          OutcomeKind = iota // 本页有商品,继续下一页
	OutcomeEmpty                             // 本页无商品,类目结束
	OutcomeHTTPError                         // 非200响应,类目结束
	OutcomeTransportError                    // 网络/解压/解码失败,类目结束
)

// String 用作日志字段和指标标签
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeItems:
		return "items"
	case OutcomeEmpty:
		return "empty"
	case OutcomeHTTPError:
		return "http_error"
	case OutcomeTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}

// PageOutcome 单页抓取结果
// 只有Kind决定的字段有效: Items对应Items, HTTPError对应Status, TransportError对应Cause
type PageOutcome struct {
	Kind   OutcomeKind
	Items  []RawItem
	Status int
	Cause  error
}

// ItemsOutcome 构造Items结果,空列表退化为Empty
func ItemsOutcome(items []RawItem) PageOutcome {
	if len(items) == 0 {
		return EmptyOutcome()
	}
	return PageOutcome{Kind: OutcomeItems, Items: items}
}

// EmptyOutcome 构造Empty结果
func EmptyOutcome() PageOutcome {
	return PageOutcome{Kind: OutcomeEmpty}
}

// HTTPErrorOutcome 构造HttpError结果
func HTTPErrorOutcome(status int) PageOutcome {
	return PageOutcome{Kind: OutcomeHTTPError, Status: status}
}

// TransportErrorOutcome 构造TransportError结果
func TransportErrorOutcome(cause error) PageOutcome {
	return PageOutcome{Kind: OutcomeTransportError, Cause: cause}
}

// Continue 是否应继续抓取下一页
func (o PageOutcome) Continue() bool {
	return o.Kind == OutcomeItems
}

// Err 将失败结果转换为error,Items/Empty返回nil
func (o PageOutcome) Err() error {
	switch o.Kind {
	case OutcomeHTTPError:
		return fmt.Errorf("HTTP %d %s", o.Status, http.StatusText(o.Status))
	case OutcomeTransportError:
		if o.Cause == nil {
			return fmt.Errorf("传输失败")
		}
		return fmt.Errorf("传输失败: %w", o.Cause)
	default:
		return nil
	}
}
