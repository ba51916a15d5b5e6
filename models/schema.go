package models

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// FailureClass 失败分类
type FailureClass string

const (
	FailureClient        FailureClass = "client"
	FailureConfiguration FailureClass = "configuration"
	FailureUpstream      FailureClass = "upstream"
	FailureTransport     FailureClass = "transport"
	FailureShape         FailureClass = "shape"
)

// FailureLog 失败请求记录
// 不保存 prompt 与凭证
type FailureLog struct {
	ID         uint         `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time    `gorm:"index" json:"created_at"`
	RequestID  string       `gorm:"size:64" json:"request_id"`
	Provider   string       `gorm:"size:32;index" json:"provider"`
	StatusCode int          `json:"status_code"`
	Class      FailureClass `gorm:"size:16" json:"class"`
	Message    string       `json:"message"`
	Duration   int64        `json:"duration"` // 毫秒
}

// AutoMigrate 自动迁移数据库结构
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&FailureLog{})
}

// OpenDatabase 打开 SQLite 数据库并迁移
func OpenDatabase(path string) (*gorm.DB, error) {
	// 只记录错误，不打印 SQL 语句
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

// RecentFailures 返回最新的 limit 条失败记录
func RecentFailures(db *gorm.DB, limit int) ([]FailureLog, error) {
	if limit <= 0 {
		limit = 20
	}
	var entries []FailureLog
	err := db.Order("id desc").Limit(limit).Find(&entries).Error
	return entries, err
}
