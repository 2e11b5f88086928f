package cron

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/Abraj743/opd-token-allocation-sub000/config"
	"github.com/Abraj743/opd-token-allocation-sub000/services/allocation"
	"github.com/Abraj743/opd-token-allocation-sub000/services/events"
	"github.com/Abraj743/opd-token-allocation-sub000/services/slotlifecycle"
	"github.com/Abraj743/opd-token-allocation-sub000/utils"

	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	cronlib "github.com/robfig/cron/v3"
)

// TypeTokenDeadLetter carries tokens cancelled by the stale-reallocation
// sweep, queued for staff review.
const TypeTokenDeadLetter = "token:dead_letter"

// InitWorker runs the async worker and the scheduled jobs in background:
// nightly slot generation for the next day, end-of-day slot completion, and
// the stale-reallocation sweep.
func InitWorker(alloc *allocation.Engine, lifecycle *slotlifecycle.Engine) {
	redisOpts := asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	}

	srv := asynq.NewServer(
		redisOpts,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(events.TypeEventEmit, handleEventTask)
	mux.HandleFunc(TypeTokenDeadLetter, handleDeadLetterTask)

	// Start Redis health monitor
	go monitorRedisConnection()

	// Start async worker with retry logic
	go func() {
		log.Println("[AllocWorker] 🚀 Starting async worker...")
		const maxAttempts = 5

		for attempts := 1; attempts <= maxAttempts; attempts++ {
			if err := srv.Run(mux); err != nil {
				log.Printf("[AllocWorker] ❌ Attempt %d/%d failed to start worker: %v", attempts, maxAttempts, err)

				if attempts == maxAttempts {
					log.Fatal("[AllocWorker] ❗ Max retry attempts reached. Exiting.")
				}
				time.Sleep(time.Duration(attempts*2) * time.Second) // Exponential backoff
			} else {
				break
			}
		}
	}()

	startSchedules(alloc, lifecycle, asynq.NewClient(redisOpts))
}

// startSchedules registers the recurring jobs.
func startSchedules(alloc *allocation.Engine, lifecycle *slotlifecycle.Engine, client *asynq.Client) {
	c := cronlib.New()

	// Midnight rollover: materialize tomorrow's slots, close out yesterday.
	if _, err := c.AddFunc("0 0 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		tomorrow := utils.UTCMidnight(time.Now()).AddDate(0, 0, 1)
		if _, err := lifecycle.GenerateForDate(ctx, tomorrow); err != nil {
			log.Printf("[AllocWorker] ❌ Nightly slot generation failed: %v", err)
		}

		yesterday := utils.UTCMidnight(time.Now()).AddDate(0, 0, -1)
		if n, err := lifecycle.CompleteForDate(ctx, yesterday); err != nil {
			log.Printf("[AllocWorker] ❌ End-of-day completion failed: %v", err)
		} else {
			log.Printf("[AllocWorker] 🌙 Completed %d slots for %s", n, utils.FormatDate(yesterday))
		}
	}); err != nil {
		log.Fatalf("[AllocWorker] ❗ Failed to register midnight job: %v", err)
	}

	// Stale-reallocation sweep.
	if _, err := c.AddFunc("*/5 * * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		stale := config.AppConfig.SweeperStaleMinutes
		if stale <= 0 {
			stale = 10
		}
		cutoff := time.Now().Add(-time.Duration(stale) * time.Minute)
		cancelled, err := alloc.SweepStaleReallocations(ctx, cutoff)
		if err != nil {
			log.Printf("[AllocWorker] ❌ Stale reallocation sweep failed: %v", err)
			return
		}
		for _, t := range cancelled {
			payload, err := json.Marshal(t)
			if err != nil {
				continue
			}
			if _, err := client.EnqueueContext(ctx, asynq.NewTask(TypeTokenDeadLetter, payload)); err != nil {
				log.Printf("[AllocWorker] ⚠️ Failed to enqueue dead letter for %s: %v", t.TokenID, err)
			}
		}
		if len(cancelled) > 0 {
			log.Printf("[AllocWorker] 🧹 Swept %d stale reallocations", len(cancelled))
		}
	}); err != nil {
		log.Fatalf("[AllocWorker] ❗ Failed to register sweeper job: %v", err)
	}

	c.Start()
}

// handleEventTask consumes engine events from the queue and writes them to
// the structured log. Downstream consumers (notifications, analytics) hang
// off this handler.
func handleEventTask(_ context.Context, task *asynq.Task) error {
	var ev events.Event
	if err := json.Unmarshal(task.Payload(), &ev); err != nil {
		log.Printf("[AllocWorker] 🔴 Invalid event payload: %v", err)
		return err
	}
	log.Printf("[AllocWorker] 📣 %s token=%s severity=%s", ev.Type, ev.TokenID, ev.Severity)
	return nil
}

// handleDeadLetterTask surfaces tokens the sweeper cancelled so staff can
// follow up with the affected patients.
func handleDeadLetterTask(_ context.Context, task *asynq.Task) error {
	log.Printf("[AllocWorker] ☠️ Dead-lettered token for review: %s", task.Payload())
	return nil
}

// monitorRedisConnection pings Redis periodically to detect failures at runtime.
func monitorRedisConnection() {
	client := redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	})

	ctx := context.Background()

	for {
		if err := client.Ping(ctx).Err(); err != nil {
			log.Printf("[AllocWorker] ⚠️ Redis connection lost: %v", err)
		}
		time.Sleep(10 * time.Second)
	}
}
