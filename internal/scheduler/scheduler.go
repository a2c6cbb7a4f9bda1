package scheduler

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/neillidocker/aws-announcements-scraper/internal/collector"
	"github.com/neillidocker/aws-announcements-scraper/internal/logger"
	"github.com/neillidocker/aws-announcements-scraper/internal/processor"
)

// Saver 是调度器需要的最小存储能力
type Saver interface {
	SaveBatch(items []processor.ProcessedAnnouncement) error
}

// FetcherJob 绑定一个采集源与它的调度表达式
type FetcherJob struct {
	Fetcher  collector.Fetcher
	CronSpec string
}

type Scheduler struct {
	cron      *cron.Cron
	jobs      []FetcherJob
	processor *processor.SimpleProcessor
	store     Saver
}

func New(jobs []FetcherJob, p *processor.SimpleProcessor, store Saver) (*Scheduler, error) {
	c := cron.New()

	s := &Scheduler{
		cron:      c,
		jobs:      jobs,
		processor: p,
		store:     store,
	}

	for _, j := range jobs {
		job := j
		if _, err := c.AddFunc(job.CronSpec, func() { s.runJob(job) }); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	// 延迟执行首轮采集，避免与服务启动时的首批 API 请求争抢资源
	const startupDelay = 15 * time.Second
	time.AfterFunc(startupDelay, func() {
		go s.runOnce()
	})
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// RunOnce 对外暴露的单次执行入口，方便手动触发采集
func (s *Scheduler) RunOnce() {
	s.runOnce()
}

func (s *Scheduler) runOnce() {
	log := logger.S("scheduler")
	log.Info("start collect job...")

	var wg sync.WaitGroup
	for _, j := range s.jobs {
		job := j
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.runJob(job)
		}()
	}

	wg.Wait()
	log.Info("collect job done (all sources)")
}

func (s *Scheduler) runJob(job FetcherJob) {
	log := logger.S("scheduler")
	name := job.Fetcher.Name()
	log.Infof("fetch from %s...", name)

	items, err := job.Fetcher.Fetch()
	if err != nil {
		log.Errorf("fetch %s error: %v", name, err)
		return
	}
	if len(items) == 0 {
		log.Infof("fetch %s got 0 items", name)
		return
	}
	processed := s.processor.Process(name, items)
	if len(processed) == 0 {
		return
	}
	if err := s.store.SaveBatch(processed); err != nil {
		log.Errorf("save %s batch error: %v", name, err)
		return
	}
	// 条数 = 本轮采集解析到的数量（非“新增数”，已存在会更新）
	log.Infof("%s done, fetched=%d saved=%d items", name, len(items), len(processed))
}
