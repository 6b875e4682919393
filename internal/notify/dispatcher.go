// Package notify delivers medication reminders over SMS, email and
// calendar channels.
package notify

import (
	"context"
	"time"

	"github.com/gmsas95/medremind/internal/errors"
	"github.com/gmsas95/medremind/internal/metrics"
	"github.com/gmsas95/medremind/internal/store"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// SMSSender sends a single SMS message
type SMSSender interface {
	Send(ctx context.Context, to, body string) error
}

// EmailSender sends a single HTML email
type EmailSender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Result reports the per-channel outcome of one dispatch
type Result struct {
	SMSSent   bool
	EmailSent bool
	SMSErr    error
	EmailErr  error
}

// Attempted reports whether any channel was eligible for this dispatch
func (r Result) Attempted() bool {
	return r.SMSSent || r.EmailSent || r.SMSErr != nil || r.EmailErr != nil
}

// Dispatcher routes due reminders to their channels. A channel fires
// only when the medication's settings and the patient's own preferences
// enable it and the patient has that contact on file; each channel
// fails independently of the others. An unconfigured channel (nil
// sender) or missing contact is skipped, never an error.
type Dispatcher struct {
	sms   SMSSender
	email EmailSender

	smsBreaker   *gobreaker.CircuitBreaker[any]
	emailBreaker *gobreaker.CircuitBreaker[any]

	timeout time.Duration
	logger  *zap.Logger
}

// NewDispatcher creates a dispatcher. sms or email may be nil when the
// channel has no credentials.
func NewDispatcher(sms SMSSender, email EmailSender, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Dispatcher{
		sms:          sms,
		email:        email,
		smsBreaker:   newBreaker("sms", logger),
		emailBreaker: newBreaker("email", logger),
		timeout:      timeout,
		logger:       logger,
	}
}

func newBreaker(name string, logger *zap.Logger) *gobreaker.CircuitBreaker[any] {
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("channel breaker state changed",
				zap.String("channel", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

// Dispatch sends one due reminder over every eligible channel. Channel
// errors are collected in the result, never returned: a failed SMS must
// not block the email and vice versa.
func (d *Dispatcher) Dispatch(ctx context.Context, due store.DueMedication) Result {
	med := due.Medication
	patient := due.Patient

	var res Result

	if med.Settings.SMSEnabled && patient.NotifySMS && d.sms != nil {
		if patient.Phone == "" {
			d.logger.Info("sms skipped: no phone on file",
				zap.String("medication_id", med.ID),
				zap.String("patient_id", patient.ID))
		} else if err := d.sendSMS(ctx, due); err != nil {
			res.SMSErr = err
			metrics.NotificationsFailed.WithLabelValues("sms").Inc()
			d.logger.Error("sms dispatch failed",
				zap.String("medication_id", med.ID),
				zap.String("patient_id", patient.ID),
				zap.Error(err))
		} else {
			res.SMSSent = true
			metrics.NotificationsSent.WithLabelValues("sms").Inc()
		}
	}

	if med.Settings.EmailEnabled && patient.NotifyEmail && d.email != nil {
		if patient.Email == "" {
			d.logger.Info("email skipped: no address on file",
				zap.String("medication_id", med.ID),
				zap.String("patient_id", patient.ID))
		} else if err := d.sendEmail(ctx, due); err != nil {
			res.EmailErr = err
			metrics.NotificationsFailed.WithLabelValues("email").Inc()
			d.logger.Error("email dispatch failed",
				zap.String("medication_id", med.ID),
				zap.String("patient_id", patient.ID),
				zap.Error(err))
		} else {
			res.EmailSent = true
			metrics.NotificationsSent.WithLabelValues("email").Inc()
		}
	}

	return res
}

func (d *Dispatcher) sendSMS(ctx context.Context, due store.DueMedication) error {
	_, err := d.smsBreaker.Execute(func() (any, error) {
		sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		return nil, d.sms.Send(sendCtx, due.Patient.Phone, SMSText(due))
	})
	return err
}

func (d *Dispatcher) sendEmail(ctx context.Context, due store.DueMedication) error {
	_, err := d.emailBreaker.Execute(func() (any, error) {
		sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		return nil, d.email.Send(sendCtx, due.Patient.Email, ReminderSubject(due), ReminderHTML(due))
	})
	return err
}

// SendDigest emails the patient their full schedule for the day. The
// digest rides the email breaker so a failing SMTP server backs it off
// together with reminder email.
func (d *Dispatcher) SendDigest(ctx context.Context, patient store.Patient, meds []store.Medication) error {
	if d.email == nil {
		return errors.ErrChannelNotConfigured
	}
	if !patient.NotifyEmail || patient.Email == "" {
		return errors.ErrNoRecipient
	}

	_, err := d.emailBreaker.Execute(func() (any, error) {
		sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		return nil, d.email.Send(sendCtx, patient.Email, DigestSubject(), DigestHTML(patient, meds))
	})
	if err != nil {
		metrics.NotificationsFailed.WithLabelValues("digest").Inc()
		return err
	}

	metrics.DigestsSent.Inc()
	return nil
}
