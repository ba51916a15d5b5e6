package core

import (
	"sync"
	"time"

	"prompt-relay/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// FailureLoggerOptions 异步失败日志参数，零值使用默认值
type FailureLoggerOptions struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	Retain        int // 只保留最新的 N 条，<= 0 表示不清理
}

// AsyncFailureLogger 异步失败日志记录器
// 批量写入 SQLite，不阻塞请求路径
type AsyncFailureLogger struct {
	db        *gorm.DB
	logChan   chan *models.FailureLog
	logger    *logrus.Logger
	batchSize int
	flushTime time.Duration
	retain    int
	wg        sync.WaitGroup
	quit      chan struct{}
	closeOnce sync.Once
}

// NewAsyncFailureLogger 创建并启动异步失败日志记录器
func NewAsyncFailureLogger(db *gorm.DB, logger *logrus.Logger, opts FailureLoggerOptions) *AsyncFailureLogger {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 5 * time.Second
	}

	l := &AsyncFailureLogger{
		db:        db,
		logChan:   make(chan *models.FailureLog, opts.BufferSize),
		logger:    logger,
		batchSize: opts.BatchSize,
		flushTime: opts.FlushInterval,
		retain:    opts.Retain,
		quit:      make(chan struct{}),
	}
	l.startWorker()
	return l
}

// Log 提交日志到队列
func (l *AsyncFailureLogger) Log(entry *models.FailureLog) {
	select {
	case <-l.quit:
		return
	default:
	}

	select {
	case l.logChan <- entry:
	default:
		// 队列满了就丢弃，防止阻塞业务
		l.logger.Warn("Failure log channel full, dropping entry")
	}
}

func (l *AsyncFailureLogger) startWorker() {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.workerLoop()
	}()
}

func (l *AsyncFailureLogger) workerLoop() {
	var batch []*models.FailureLog
	ticker := time.NewTicker(l.flushTime)
	defer ticker.Stop()

	for {
		select {
		case entry := <-l.logChan:
			batch = append(batch, entry)
			if len(batch) >= l.batchSize {
				l.flush(batch)
				batch = nil
			}
		case <-ticker.C:
			if len(batch) > 0 {
				l.flush(batch)
				batch = nil
			}
		case <-l.quit:
			// 退出前取完队列并刷新
			for {
				select {
				case entry := <-l.logChan:
					batch = append(batch, entry)
				default:
					l.flush(batch)
					return
				}
			}
		}
	}
}

// flush 批量写入并裁剪旧记录
func (l *AsyncFailureLogger) flush(entries []*models.FailureLog) {
	if len(entries) == 0 {
		return
	}

	l.logger.Debugf("[FailureLog] Flushing %d entries", len(entries))
	if err := l.db.CreateInBatches(entries, len(entries)).Error; err != nil {
		l.logger.Errorf("[FailureLog] Failed to flush entries: %v", err)
		return
	}

	if l.retain <= 0 {
		return
	}

	var count int64
	if err := l.db.Model(&models.FailureLog{}).Count(&count).Error; err != nil || count <= int64(l.retain) {
		return
	}
	var pivotID uint
	// 第 retain+1 条最新记录及更早的全部删除
	l.db.Model(&models.FailureLog{}).Select("id").Order("id desc").Offset(l.retain).Limit(1).Scan(&pivotID)
	if pivotID > 0 {
		if err := l.db.Where("id <= ?", pivotID).Delete(&models.FailureLog{}).Error; err != nil {
			l.logger.Errorf("[FailureLog] Failed to prune entries: %v", err)
		}
	}
}

// Recent 返回最新的 limit 条失败记录
func (l *AsyncFailureLogger) Recent(limit int) ([]models.FailureLog, error) {
	return models.RecentFailures(l.db, limit)
}

// Close 刷新剩余日志并停止 worker，可重复调用
func (l *AsyncFailureLogger) Close() {
	l.closeOnce.Do(func() {
		close(l.quit)
		l.wg.Wait()
	})
}
