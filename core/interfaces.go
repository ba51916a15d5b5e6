package core

import (
	"prompt-relay/models"
)

// FailureRecorder 抽象失败记录 (DI)
// Log 必须是非阻塞的，不能拖慢请求路径
type FailureRecorder interface {
	Log(entry *models.FailureLog)
}
