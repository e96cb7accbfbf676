package audit

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sudo-init-do/worldbank/internal/logger"
)

// Worker is the consuming side of the sink: it drains the queue into
// Postgres. Returned errors make asynq redeliver, so the sink is
// at-least-once: transfer inserts are keyed on id and skip replays, audit
// entries may duplicate, which an append-only log tolerates.
type Worker struct {
	server *asynq.Server
	pool   *pgxpool.Pool
}

func NewWorker(redisAddr string, pool *pgxpool.Pool) *Worker {
	return &Worker{
		server: asynq.NewServer(asynq.RedisClientOpt{Addr: redisAddr}, asynq.Config{
			Concurrency: 2,
			Queues:      map[string]int{queueRecords: 5},
		}),
		pool: pool,
	}
}

// Start runs the worker in the background.
func (w *Worker) Start() {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTransferRecord, w.handleTransferRecord)
	mux.HandleFunc(TaskEntry, w.handleEntry)

	go func() {
		if err := w.server.Run(mux); err != nil {
			logger.L().Warnw("audit worker stopped", "err", err)
		}
	}()
	logger.L().Info("audit worker started")
}

func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

func (w *Worker) handleTransferRecord(ctx context.Context, t *asynq.Task) error {
	var rec TransferRecord
	if err := json.Unmarshal(t.Payload(), &rec); err != nil {
		return err
	}
	_, err := w.pool.Exec(ctx, `
		INSERT INTO transfers
			(id, user_id, from_economy, to_economy, amount_source, amount_target, rate_used, wallet, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.UserID, rec.FromEconomy, rec.ToEconomy,
		rec.AmountSource, rec.AmountTarget, rec.RateUsed, rec.Wallet, rec.CreatedAt,
	)
	if err != nil {
		logger.L().Warnw("transfer record insert failed", "transfer", rec.ID, "err", err)
		return err
	}
	return nil
}

func (w *Worker) handleEntry(ctx context.Context, t *asynq.Task) error {
	var e Entry
	if err := json.Unmarshal(t.Payload(), &e); err != nil {
		return err
	}
	_, err := w.pool.Exec(ctx, `
		INSERT INTO audit_log (action, user_id, economy_id, details, created_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5)`,
		e.Action, e.UserID, e.EconomyID, e.Details, e.CreatedAt,
	)
	if err != nil {
		logger.L().Warnw("audit entry insert failed", "action", e.Action, "err", err)
		return err
	}
	return nil
}
