// Package scheduler drives the reminder loop: a minute tick that
// selects and dispatches due reminders, and a daily digest job.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gmsas95/medremind/internal/config"
	"github.com/gmsas95/medremind/internal/errors"
	"github.com/gmsas95/medremind/internal/metrics"
	"github.com/gmsas95/medremind/internal/notify"
	"github.com/gmsas95/medremind/internal/schedule"
	"github.com/gmsas95/medremind/internal/store"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Notifier is the dispatch surface the engine drives
type Notifier interface {
	Dispatch(ctx context.Context, due store.DueMedication) notify.Result
	SendDigest(ctx context.Context, patient store.Patient, meds []store.Medication) error
}

// Engine runs the minute tick and the daily digest on cron schedules.
// One slow or failing medication never blocks the others: dispatch runs
// on a bounded worker pool and every item's errors stay local to it.
type Engine struct {
	store    *store.Store
	notifier Notifier

	cron        *cron.Cron
	limiter     *rate.Limiter
	dedupWindow time.Duration
	workers     int
	logger      *zap.Logger

	mu      sync.Mutex
	running bool
}

// New creates a scheduler engine
func New(s *store.Store, notifier Notifier, cfg *config.Config, logger *zap.Logger) *Engine {
	perSec := cfg.Scheduler.DispatchPerSec
	if perSec <= 0 {
		perSec = 10
	}

	return &Engine{
		store:       s,
		notifier:    notifier,
		cron:        cron.New(),
		limiter:     rate.NewLimiter(rate.Limit(perSec), perSec),
		dedupWindow: time.Duration(cfg.Scheduler.DedupWindowMin) * time.Minute,
		workers:     cfg.Scheduler.MaxConcurrent,
		logger:      logger,
	}
}

// Start registers the cron jobs and begins ticking
func (e *Engine) Start(cfg *config.Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return errors.ErrSchedulerRunning
	}

	if _, err := e.cron.AddFunc("* * * * *", func() {
		e.RunMinuteTick(context.Background(), time.Now())
	}); err != nil {
		return fmt.Errorf("failed to register minute tick: %w", err)
	}

	hour, minute := cfg.DigestClock()
	if _, err := e.cron.AddFunc(fmt.Sprintf("%d %d * * *", minute, hour), func() {
		e.RunDailyDigest(context.Background(), time.Now())
	}); err != nil {
		return fmt.Errorf("failed to register daily digest: %w", err)
	}

	e.cron.Start()
	e.running = true
	e.logger.Info("scheduler started",
		zap.Duration("dedup_window", e.dedupWindow),
		zap.Int("workers", e.workers),
		zap.String("digest_time", cfg.Scheduler.DigestTime))
	return nil
}

// Stop halts the cron loop and waits for in-flight jobs
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return nil
	}

	stopCtx := e.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	e.running = false
	e.logger.Info("scheduler stopped")
	return nil
}

// RunMinuteTick selects medications due at now's minute bucket and
// dispatches them. Exported so the API can trigger a tick manually and
// tests can drive it with a fixed clock.
func (e *Engine) RunMinuteTick(ctx context.Context, now time.Time) {
	metrics.SchedulerTicks.Inc()
	started := time.Now()
	defer func() {
		metrics.TickDuration.Observe(time.Since(started).Seconds())
	}()

	minute := schedule.FormatMinute(now.Hour(), now.Minute())
	cutoff := now.Add(-e.dedupWindow)

	due, err := e.store.DueMedications(minute, cutoff)
	if err != nil {
		e.logger.Error("due selection failed", zap.String("minute", minute), zap.Error(err))
		return
	}
	if len(due) == 0 {
		return
	}

	e.logger.Info("reminders due", zap.String("minute", minute), zap.Int("count", len(due)))

	sem := make(chan struct{}, e.workers)
	var wg sync.WaitGroup
	for _, item := range due {
		item := item
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			e.processDue(ctx, item, now)
		}()
	}
	wg.Wait()
}

// processDue handles one due medication end to end
func (e *Engine) processDue(ctx context.Context, due store.DueMedication, now time.Time) {
	med := due.Medication

	if due.Patient.ID == "" {
		e.logger.Warn("skipping medication with missing patient",
			zap.String("medication_id", med.ID),
			zap.String("patient_id", med.PatientID))
		return
	}

	// Past the reminder window: skip silently. The medication stays
	// active so its history and settings survive; only reminders stop.
	if !med.WithinReminderWindow(now) {
		metrics.ExpiredSkipped.Inc()
		e.logger.Debug("reminder window expired",
			zap.String("medication_id", med.ID),
			zap.Time("start_date", med.StartDate),
			zap.Int("reminder_days", med.ReminderDays))
		return
	}

	metrics.DueSelected.Inc()

	if err := e.limiter.Wait(ctx); err != nil {
		e.logger.Error("rate limiter wait failed", zap.Error(err))
		return
	}

	res := e.notifier.Dispatch(ctx, due)

	// Mark regardless of channel outcome. A failed send is not retried
	// inside the dedup window; the next scheduled occurrence covers it.
	if err := e.store.MarkReminderSent(med.ID, now); err != nil {
		e.logger.Error("failed to mark reminder sent",
			zap.String("medication_id", med.ID),
			zap.Error(err))
	}

	e.logger.Info("reminder dispatched",
		zap.String("medication_id", med.ID),
		zap.String("patient_id", due.Patient.ID),
		zap.String("period", due.Reminder.Period),
		zap.Bool("sms", res.SMSSent),
		zap.Bool("email", res.EmailSent))
}

// RunDailyDigest emails every patient their schedule for the day. Each
// patient is processed independently; one failure never stops the rest.
func (e *Engine) RunDailyDigest(ctx context.Context, now time.Time) {
	patients, err := e.store.ListPatients()
	if err != nil {
		e.logger.Error("digest patient listing failed", zap.Error(err))
		return
	}

	for _, patient := range patients {
		if !patient.NotifyEmail || patient.Email == "" {
			continue
		}

		meds, err := e.store.ListMedications(patient.ID, true)
		if err != nil {
			e.logger.Error("digest medication listing failed",
				zap.String("patient_id", patient.ID), zap.Error(err))
			continue
		}

		current := meds[:0]
		for _, med := range meds {
			if med.WithinReminderWindow(now) {
				current = append(current, med)
			}
		}
		if len(current) == 0 {
			continue
		}

		if err := e.notifier.SendDigest(ctx, patient, current); err != nil {
			e.logger.Error("digest send failed",
				zap.String("patient_id", patient.ID), zap.Error(err))
		}
	}
}
