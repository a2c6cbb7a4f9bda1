package datefilter

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/neillidocker/aws-announcements-scraper/internal/announce"
	"github.com/neillidocker/aws-announcements-scraper/internal/logger"
)

// Filter 按年月筛选公告，nil 表示不过滤
type Filter struct {
	Year  int
	Month time.Month
}

var pattern = regexp.MustCompile(`^(\d{4})-(\d{2})$`)

// Parse 解析 YYYY-MM 形式的过滤串，空串表示不过滤（返回 nil）。
// 年份限制在 2000-2100，月份 1-12。
func Parse(s string) (*Filter, error) {
	if s == "" {
		return nil, nil
	}

	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("datefilter: expected YYYY-MM format, got %q", s)
	}

	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	if year < 2000 || year > 2100 {
		return nil, fmt.Errorf("datefilter: year out of range in %q", s)
	}
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("datefilter: month out of range in %q", s)
	}

	return &Filter{Year: year, Month: time.Month(month)}, nil
}

// Matches 判断时间是否落在过滤月份内，nil 过滤器放行一切
func (f *Filter) Matches(t time.Time) bool {
	if f == nil {
		return true
	}
	return t.Year() == f.Year && t.Month() == f.Month
}

// MatchesLink 判断链接是否通过过滤。
// 过滤启用时，没有日期的链接一律排除。
func (f *Filter) MatchesLink(l announce.Link) bool {
	if f == nil {
		return true
	}
	if !l.HasPublishedAt() {
		return false
	}
	return f.Matches(l.PublishedAt)
}

// Apply 过滤链接列表并记录被排除的数量
func Apply(links []announce.Link, f *Filter) []announce.Link {
	if f == nil {
		return links
	}

	kept := make([]announce.Link, 0, len(links))
	undated := 0
	for _, l := range links {
		if !l.HasPublishedAt() {
			undated++
			continue
		}
		if f.Matches(l.PublishedAt) {
			kept = append(kept, l)
		}
	}

	log := logger.S("datefilter")
	if undated > 0 {
		log.Infof("excluded %d links without publication dates", undated)
	}
	log.Infof("date filter %s: %d of %d links match", f, len(kept), len(links))
	return kept
}

func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf("%04d-%02d", f.Year, int(f.Month))
}
