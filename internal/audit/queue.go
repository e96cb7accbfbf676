package audit

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/sudo-init-do/worldbank/internal/logger"
)

// Queue is the producing side of the sink. It satisfies Recorder.
type Queue struct {
	client *asynq.Client
}

func NewQueue(redisAddr string) *Queue {
	return &Queue{
		client: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr}),
	}
}

// TransferRecord enqueues one completed transfer for persistence.
func (q *Queue) TransferRecord(rec TransferRecord) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	q.enqueue(TaskTransferRecord, rec)
}

// AuditEntry enqueues one audit-log line.
func (q *Queue) AuditEntry(action, userID, economyID, details string) {
	q.enqueue(TaskEntry, Entry{
		Action:    action,
		UserID:    userID,
		EconomyID: economyID,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	})
}

func (q *Queue) enqueue(taskType string, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		logger.L().Warnw("audit payload marshal failed", "task", taskType, "err", err)
		return
	}
	if _, err := q.client.Enqueue(asynq.NewTask(taskType, b), asynq.Queue(queueRecords)); err != nil {
		logger.L().Warnw("audit enqueue failed", "task", taskType, "err", err)
	}
}

func (q *Queue) Close() {
	_ = q.client.Close()
}
