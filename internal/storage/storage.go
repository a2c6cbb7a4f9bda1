package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/neillidocker/aws-announcements-scraper/internal/logger"
	"github.com/neillidocker/aws-announcements-scraper/internal/processor"
)

// Source 描述一个采集源，例如 awscn-en / awscn-zh
type Source struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Code    string `gorm:"size:64;uniqueIndex" json:"code"` // 例如: awscn-en
	Name    string `gorm:"size:128" json:"name"`
	BaseURL string `gorm:"size:256" json:"baseUrl"`
	Status  string `gorm:"size:32;index" json:"status"` // active / disabled

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Announcement struct {
	ID     string `gorm:"primaryKey;size:40" json:"id"`
	Title  string `gorm:"size:512" json:"title"`
	URL    string `gorm:"size:1024;uniqueIndex" json:"url"`
	Source string `gorm:"size:64;index" json:"source"`
	// 只保留一段摘要文案；长度控制在 600 个字符以内（在 processor 中按 rune 截断）
	Preview string `gorm:"size:600" json:"preview"`
	Body    string `gorm:"type:text" json:"body"`
	// 正文中出现的链接，JSON 数组 [{text,url,context}]
	Links         datatypes.JSON    `gorm:"type:jsonb" json:"links"`
	PublishedAt   time.Time         `gorm:"index" json:"publishedAt"`
	PublishedDate string            `gorm:"size:10;index" json:"publishedDate"` // 日期 YYYY-MM-DD，用于按月筛选
	ExtractedAt   time.Time         `json:"extractedAt"`
	ExtraData     datatypes.JSONMap `gorm:"type:jsonb" json:"extraData"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Store struct {
	DB    *gorm.DB
	Redis *redis.Client
}

func NewStore(dsn, redisAddr string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Source{}, &Announcement{}); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.S("storage").Warnf("redis ping failed: %v", err)
	}

	return &Store{DB: db, Redis: rdb}, nil
}

// EnsureSource 确保某个采集源存在
func (s *Store) EnsureSource(code, name, baseURL string) (*Source, error) {
	src := &Source{}
	if err := s.DB.Where("code = ?", code).First(src).Error; err == nil {
		return src, nil
	}

	src = &Source{
		Code:    code,
		Name:    name,
		BaseURL: baseURL,
		Status:  "active",
	}
	if err := s.DB.Create(src).Error; err != nil {
		return nil, err
	}
	return src, nil
}

// 东八区，用于日期展示与筛选
var locEast8 *time.Location

func init() {
	locEast8, _ = time.LoadLocation("Asia/Shanghai")
	if locEast8 == nil {
		locEast8 = time.FixedZone("CST", 8*3600)
	}
}

// toValidUTF8 将字符串规范为合法 UTF-8，避免 PostgreSQL invalid byte sequence 错误（页面声明编码与实际不符时会出现）
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "�")
}

// truncateRunesDB 按 rune 数截断字符串，确保不会超过数据库字段长度（例如 varchar(600)）。
// 这是对上游 Processor 的双保险，防止异常长文本导致入库失败。
func truncateRunesDB(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

// toRecord 把处理结果转换为入库记录，做好编码与长度保护
func toRecord(it processor.ProcessedAnnouncement) *Announcement {
	pubDate := it.PublishedDate
	if pubDate == "" && !it.PublishedAt.IsZero() {
		pubDate = it.PublishedAt.In(locEast8).Format("2006-01-02")
	}

	rec := &Announcement{
		ID:            it.ID,
		Title:         toValidUTF8(it.Title),
		URL:           it.URL,
		Source:        it.Source,
		Preview:       truncateRunesDB(toValidUTF8(it.Preview), 600),
		Body:          toValidUTF8(it.Body),
		PublishedAt:   it.PublishedAt,
		PublishedDate: pubDate,
		ExtractedAt:   it.ExtractedAt,
		ExtraData:     datatypes.JSONMap(it.RawData),
	}
	if len(it.Links) > 0 {
		if bs, err := json.Marshal(it.Links); err == nil {
			rec.Links = datatypes.JSON(bs)
		}
	}
	return rec
}

// SaveBatch 保存一批公告，以 URL 作为幂等键；已存在时刷新正文与摘要
func (s *Store) SaveBatch(items []processor.ProcessedAnnouncement) error {
	for _, it := range items {
		rec := toRecord(it)

		if err := s.DB.Where("url = ?", it.URL).FirstOrCreate(rec).Error; err != nil {
			return err
		}
		_ = s.DB.Model(rec).Updates(map[string]any{
			"title":          rec.Title,
			"preview":        rec.Preview,
			"body":           rec.Body,
			"links":          rec.Links,
			"published_at":   rec.PublishedAt,
			"published_date": rec.PublishedDate,
			"extracted_at":   rec.ExtractedAt,
		}).Error
	}

	// 这里不做按 key 通配删除，完全依赖短 TTL 的缓存自然过期，
	// 避免无效的通配符删除以及额外的 Redis 扫描复杂度。
	return nil
}

// List 按采集源、排序与可选月份返回公告列表，并使用 Redis 做简单缓存
// source: 采集源 code，可为空
// month: 可选，格式 2006-01，指定则只返回该月份的数据
// sort: latest(默认) / oldest
func (s *Store) List(source, month, sort string, limit int) ([]Announcement, error) {
	if limit <= 0 || limit > 1000 {
		limit = 20
	}
	if sort == "" {
		sort = "latest"
	}

	ctx := context.Background()
	cacheKey := fmt.Sprintf("announcements:list:%s:%s:%s:%d", source, month, sort, limit)

	// L2: Redis 缓存
	if s.Redis != nil {
		if bs, err := s.Redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached []Announcement
			if err := json.Unmarshal(bs, &cached); err == nil {
				return cached, nil
			}
		}
	}

	// DB 兜底
	var list []Announcement
	db := s.DB.Model(&Announcement{})

	if source != "" {
		db = db.Where("source = ?", source)
	}

	// 按月份筛选（东八区日期；兼容 published_date 为空的旧数据）
	if month != "" {
		db = db.Where("(published_date LIKE ? OR (TRIM(COALESCE(published_date, '')) = '' AND to_char(published_at AT TIME ZONE 'Asia/Shanghai', 'YYYY-MM') = ?))", month+"-%", month)
	}

	switch sort {
	case "oldest":
		db = db.Order("published_at ASC")
	default:
		db = db.Order("published_at DESC")
	}
	if err := db.Limit(limit).Find(&list).Error; err != nil {
		return nil, err
	}

	// 回写缓存（5 分钟，减轻定时刷新之间的 DB 压力）
	const listCacheTTL = 5 * time.Minute
	if s.Redis != nil && len(list) > 0 {
		if bs, err := json.Marshal(list); err == nil {
			_ = s.Redis.Set(ctx, cacheKey, bs, listCacheTTL).Err()
		}
	}

	return list, nil
}

// ListMonths 返回有数据的月份列表（倒序，格式 2006-01）。
// 兼容旧数据：published_date 为空时用 published_at 的月份；结果缓存 5 分钟
func (s *Store) ListMonths(source string, limit int) ([]string, error) {
	if limit <= 0 || limit > 120 {
		limit = 24
	}
	ctx := context.Background()
	cacheKey := fmt.Sprintf("announcements:months:%s:%d", source, limit)
	if s.Redis != nil {
		if bs, err := s.Redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached []string
			if err := json.Unmarshal(bs, &cached); err == nil {
				return cached, nil
			}
		}
	}

	// 使用 COALESCE：有 published_date 取其年月，否则用 published_at 的年月（东八区）
	sql := `SELECT DISTINCT COALESCE(NULLIF(LEFT(TRIM(published_date), 7), ''), to_char(published_at AT TIME ZONE 'Asia/Shanghai', 'YYYY-MM')) AS m FROM announcements`
	args := []interface{}{}
	if source != "" {
		sql += ` WHERE source = ?`
		args = append(args, source)
	}
	sql += ` ORDER BY m DESC LIMIT ?`
	args = append(args, limit)

	var rows []struct{ M string }
	if err := s.DB.Raw(sql, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	months := make([]string, 0, len(rows))
	for _, r := range rows {
		if r.M != "" {
			months = append(months, r.M)
		}
	}
	if s.Redis != nil && len(months) > 0 {
		if bs, err := json.Marshal(months); err == nil {
			_ = s.Redis.Set(ctx, cacheKey, bs, 5*time.Minute).Err()
		}
	}
	return months, nil
}
