package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/psw-tryout/tryout-backend/internal/config"
	"github.com/psw-tryout/tryout-backend/internal/logger"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// TamperWorker drains the tamper event queue into PostgreSQL in
// batches. The counter on the attempt row is already persisted by the
// API; this worker only lands the audit trail.
type TamperWorker struct {
	pool *pgxpool.Pool
	rdb  *redis.Client
	log  zerolog.Logger
}

// NewTamperWorker creates a new TamperWorker.
func NewTamperWorker(pool *pgxpool.Pool, rdb *redis.Client, log zerolog.Logger) *TamperWorker {
	return &TamperWorker{
		pool: pool,
		rdb:  rdb,
		log:  logger.Component(log, "tamper_worker"),
	}
}

type tamperPayload struct {
	ParticipantID int    `json:"participant_id"`
	TryoutID      string `json:"tryout_id"`
	Timestamp     int64  `json:"timestamp"`
	Payload       string `json:"payload"`
}

func (w *TamperWorker) Start(ctx context.Context) {
	w.log.Info().Msg("TamperWorker started")

	buffer := make([]*tamperPayload, 0, BatchSize)
	lastFlushTime := time.Now()

	for {
		// 1. Check flush conditions (time or size)
		if len(buffer) > 0 {
			if len(buffer) >= BatchSize || time.Since(lastFlushTime) >= BatchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0] // Clear buffer, keep capacity
				lastFlushTime = time.Now()
			}
		}

		// 2. Check context (graceful shutdown)
		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
			// Continue
		}

		// 3. Fetch from Redis. BLPop blocks for 1 second, returns
		// immediately if data exists.
		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistTamperQueue).Result()

		if err != nil {
			if err == redis.Nil {
				continue // Timeout (queue empty), loop back to check flush timer
			}
			if ctx.Err() != nil {
				return // Context cancelled
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}

		// 4. Process data
		if len(result) < 2 {
			continue
		}

		var payload tamperPayload
		if err := json.Unmarshal([]byte(result[1]), &payload); err != nil {
			// If JSON is malformed, we CANNOT retry it. Log and discard.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
			continue
		}

		buffer = append(buffer, &payload)
	}
}

// flushSafe attempts bulk insert, then fallback insert, then requeue
func (w *TamperWorker) flushSafe(ctx context.Context, batch []*tamperPayload) {
	if err := w.bulkInsert(ctx, batch); err != nil {
		w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")
		w.fallbackInsert(ctx, batch)
	}
}

func (w *TamperWorker) bulkInsert(ctx context.Context, batch []*tamperPayload) error {
	rows := make([][]interface{}, 0, len(batch))
	for _, p := range batch {
		tryoutID, err := uuid.Parse(p.TryoutID)
		if err != nil {
			// Return error to trigger fallback, which will handle the bad UUID individually
			return err
		}
		rows = append(rows, []interface{}{
			tryoutID, p.ParticipantID, p.Payload, time.Unix(p.Timestamp, 0),
		})
	}

	_, err := w.pool.CopyFrom(
		ctx,
		pgx.Identifier{"tamper_events"},
		[]string{"tryout_id", "participant_id", "event_data", "recorded_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

func (w *TamperWorker) fallbackInsert(ctx context.Context, batch []*tamperPayload) {
	requeueList := make([]*tamperPayload, 0)

	for _, p := range batch {
		tryoutID, err := uuid.Parse(p.TryoutID)
		if err != nil {
			w.log.Error().Str("tryout_id", p.TryoutID).Msg("Dropping tamper event with invalid UUID")
			continue
		}

		_, err = w.pool.Exec(ctx,
			`INSERT INTO tamper_events (tryout_id, participant_id, event_data, recorded_at)
             VALUES ($1, $2, $3, $4)`,
			tryoutID, p.ParticipantID, p.Payload, time.Unix(p.Timestamp, 0),
		)

		if err != nil {
			w.log.Error().Err(err).Int("participant_id", p.ParticipantID).Msg("Insert failed, requeueing")
			requeueList = append(requeueList, p)
		}
	}

	// If we have items to requeue (DB was down), push them back to Redis
	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *TamperWorker) requeue(ctx context.Context, items []*tamperPayload) {
	pipe := w.rdb.Pipeline()
	for _, p := range items {
		data, _ := json.Marshal(p)
		pipe.RPush(ctx, config.WorkerKey.PersistTamperQueue, data)
	}
	_, err := pipe.Exec(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("CRITICAL: Failed to requeue items to Redis. Data loss occurred.")
	} else {
		w.log.Info().Int("count", len(items)).Msg("Requeued failed items back to Redis")
		// Sleep a bit to avoid thrashing if the DB is down hard
		time.Sleep(2 * time.Second)
	}
}

func (w *TamperWorker) shutdown(buffer []*tamperPayload) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	// Give it 5 seconds to flush to DB
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}
