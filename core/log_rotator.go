package core

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// LogRotator 带轮转的日志文件写入器
// 乒乓策略：只保留一个 .old 备份
type LogRotator struct {
	filename    string
	maxSize     int64 // bytes
	file        *os.File
	mu          sync.Mutex
	currentSize int64
}

// NewLogRotator 创建新的日志轮转器 (maxSize in MB, <= 0 时为 10MB)
func NewLogRotator(filename string, maxSizeMB int) (*LogRotator, error) {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	return newLogRotator(filename, int64(maxSizeMB)*1024*1024)
}

func newLogRotator(filename string, maxBytes int64) (*LogRotator, error) {
	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}
	r := &LogRotator{
		filename: filename,
		maxSize:  maxBytes,
	}
	if err := r.openFile(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *LogRotator) openFile() error {
	file, err := os.OpenFile(r.filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}
	r.file = file
	r.currentSize = stat.Size()
	return nil
}

func (r *LogRotator) Write(p []byte) (n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return 0, os.ErrClosed
	}

	if r.currentSize > 0 && r.currentSize+int64(len(p)) > r.maxSize {
		if err := r.rotate(); err != nil {
			// 轮转失败时继续写当前文件
			fmt.Fprintf(os.Stderr, "Log rotation failed: %v\n", err)
		}
		if r.file == nil {
			return 0, os.ErrClosed
		}
	}

	n, err = r.file.Write(p)
	r.currentSize += int64(n)
	return n, err
}

func (r *LogRotator) rotate() error {
	if err := r.file.Close(); err != nil {
		return err
	}

	backupName := r.filename + ".old"
	os.Remove(backupName) // 文件可能不存在

	if err := os.Rename(r.filename, backupName); err != nil {
		// 改名失败也要重新打开，保证后续写入可用
		if openErr := r.openFile(); openErr != nil {
			r.file = nil
			return openErr
		}
		return err
	}

	if err := r.openFile(); err != nil {
		r.file = nil
		return err
	}
	return nil
}

func (r *LogRotator) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
