package categories

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/CatalogHarvest/internal/models"
	"github.com/RecoveryAshes/CatalogHarvest/internal/utils"
	"golang.org/x/net/html"
)

// categoryLinkSelector 类目页链接
const categoryLinkSelector = `a[href*="/pc/"]`

// FromHTML 从保存的类目/首页HTML中提取类目
// 相对链接按base解析;同一类目在导航中多次出现时只保留第一次
func FromHTML(r io.Reader, base string) ([]models.CategoryKey, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("base URL无效: %w", err)
	}

	node, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("解析HTML失败: %w", err)
	}
	doc := goquery.NewDocumentFromNode(node)

	keys := make([]models.CategoryKey, 0)
	seen := make(map[string]bool)

	doc.Find(categoryLinkSelector).Each(func(i int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}

		key, err := utils.NormalizeKey(baseURL.ResolveReference(ref).String())
		if err != nil {
			utils.Debugf("跳过链接 %s: %v", href, err)
			return
		}
		if seen[key] {
			return
		}
		seen[key] = true
		keys = append(keys, models.CategoryKey(key))
	})

	return keys, nil
}

// FromHTMLFile 读取保存的HTML页面
func FromHTMLFile(path, base string) ([]models.CategoryKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开HTML文件失败: %w", err)
	}
	defer f.Close()

	return FromHTML(f, base)
}
