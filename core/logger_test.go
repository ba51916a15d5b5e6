package core

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"prompt-relay/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := models.OpenDatabase(filepath.Join(t.TempDir(), "relay.db"))
	require.NoError(t, err)
	return db
}

func TestAsyncFailureLogger_FlushOnClose(t *testing.T) {
	db := openTestDB(t)
	logger, _ := newTestLogger()

	l := NewAsyncFailureLogger(db, logger, FailureLoggerOptions{FlushInterval: time.Hour})
	for i := 0; i < 3; i++ {
		l.Log(&models.FailureLog{
			CreatedAt:  time.Now(),
			RequestID:  fmt.Sprintf("req-%d", i),
			Provider:   "openai",
			StatusCode: 429,
			Class:      models.FailureUpstream,
			Message:    "API Error: rate limited",
		})
	}
	l.Close()

	var count int64
	require.NoError(t, db.Model(&models.FailureLog{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)

	recent, err := l.Recent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "req-2", recent[0].RequestID)
	assert.Equal(t, "req-1", recent[1].RequestID)

	// Close 之后的 Log 被忽略，且重复 Close 安全
	l.Log(&models.FailureLog{RequestID: "late"})
	l.Close()
}

func TestAsyncFailureLogger_FlushOnBatchSize(t *testing.T) {
	db := openTestDB(t)
	logger, _ := newTestLogger()

	l := NewAsyncFailureLogger(db, logger, FailureLoggerOptions{BatchSize: 2, FlushInterval: time.Hour})
	defer l.Close()

	l.Log(&models.FailureLog{RequestID: "a", Class: models.FailureClient, StatusCode: 400})
	l.Log(&models.FailureLog{RequestID: "b", Class: models.FailureClient, StatusCode: 400})

	assert.Eventually(t, func() bool {
		var count int64
		db.Model(&models.FailureLog{}).Count(&count)
		return count == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAsyncFailureLogger_Retain(t *testing.T) {
	db := openTestDB(t)
	logger, _ := newTestLogger()

	l := NewAsyncFailureLogger(db, logger, FailureLoggerOptions{BatchSize: 1, FlushInterval: time.Hour, Retain: 3})
	for i := 0; i < 6; i++ {
		l.Log(&models.FailureLog{RequestID: fmt.Sprintf("req-%d", i), StatusCode: 500, Class: models.FailureTransport})
	}
	l.Close()

	var entries []models.FailureLog
	require.NoError(t, db.Order("id asc").Find(&entries).Error)
	require.Len(t, entries, 3)
	assert.Equal(t, "req-3", entries[0].RequestID)
	assert.Equal(t, "req-5", entries[2].RequestID)
}

func TestAsyncFailureLogger_DropsWhenFull(t *testing.T) {
	db := openTestDB(t)
	logger, logs := newTestLogger()

	l := &AsyncFailureLogger{
		db:      db,
		logChan: make(chan *models.FailureLog, 1),
		logger:  logger,
		quit:    make(chan struct{}),
	}
	// 未启动 worker，第二条必然被丢弃
	l.Log(&models.FailureLog{RequestID: "kept"})
	l.Log(&models.FailureLog{RequestID: "dropped"})

	assert.Len(t, l.logChan, 1)
	assert.Contains(t, logs.String(), "dropping entry")
}
