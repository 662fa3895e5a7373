package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/psw-tryout/tryout-backend/internal/config"
	"github.com/psw-tryout/tryout-backend/internal/logger"
	"github.com/psw-tryout/tryout-backend/internal/mailer"
	"github.com/psw-tryout/tryout-backend/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	// MailRetryLimit caps deliveries per job before the job is dropped.
	MailRetryLimit = 3
	// mailSendGap keeps us under typical SMTP provider rate limits.
	mailSendGap = 200 * time.Millisecond
)

// MailWorker drains the credential mail queue and delivers over SMTP,
// one job at a time. Failed jobs are requeued with a retry counter.
type MailWorker struct {
	mailer *mailer.Mailer
	rdb    *redis.Client
	log    zerolog.Logger
}

// NewMailWorker creates a new MailWorker.
func NewMailWorker(m *mailer.Mailer, rdb *redis.Client, log zerolog.Logger) *MailWorker {
	return &MailWorker{
		mailer: m,
		rdb:    rdb,
		log:    logger.Component(log, "mail_worker"),
	}
}

type mailJob struct {
	model.CredentialMailJob
	Attempts int `json:"attempts,omitempty"`
}

func (w *MailWorker) Start(ctx context.Context) {
	w.log.Info().Msg("MailWorker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("MailWorker stopping")
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.MailQueue).Result()
		if err != nil {
			if err == redis.Nil {
				continue // Queue empty
			}
			if ctx.Err() != nil {
				return
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}

		if len(result) < 2 {
			continue
		}

		var job mailJob
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed JSON")
			continue
		}

		if err := w.mailer.SendCredential(&job.CredentialMailJob); err != nil {
			job.Attempts++
			if job.Attempts >= MailRetryLimit {
				w.log.Error().Err(err).Str("to", job.To).Msg("Dropping mail job after retry limit")
				continue
			}
			w.log.Warn().Err(err).Str("to", job.To).Int("attempts", job.Attempts).Msg("Send failed, requeueing")
			data, _ := json.Marshal(job)
			if err := w.rdb.RPush(ctx, config.WorkerKey.MailQueue, data).Err(); err != nil {
				w.log.Error().Err(err).Str("to", job.To).Msg("CRITICAL: Failed to requeue mail job")
			}
			time.Sleep(time.Second)
			continue
		}

		w.log.Info().Str("to", job.To).Msg("Credential mail sent")
		time.Sleep(mailSendGap)
	}
}
