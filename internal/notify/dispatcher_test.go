package notify

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/gmsas95/medremind/internal/schedule"
	"github.com/gmsas95/medremind/internal/store"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeSMS struct {
	sent []string
	err  error
}

func (f *fakeSMS) Send(ctx context.Context, to, body string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to)
	return nil
}

type fakeEmail struct {
	sent     []string
	subjects []string
	err      error
}

func (f *fakeEmail) Send(ctx context.Context, to, subject, htmlBody string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to)
	f.subjects = append(f.subjects, subject)
	return nil
}

func dueItem() store.DueMedication {
	return store.DueMedication{
		Medication: store.Medication{
			ID:           "med_1",
			Name:         "Aspirin",
			Dosage:       "100mg",
			MealRelation: schedule.AfterMeals,
			Settings:     store.DefaultReminderSettings(),
		},
		Patient: store.Patient{
			ID:          "pat_1",
			FullName:    "Jane Doe",
			Email:       "jane@example.com",
			Phone:       "+15550001111",
			NotifySMS:   true,
			NotifyEmail: true,
		},
		Reminder: schedule.Reminder{Period: schedule.PeriodMorning, Time: "08:30"},
	}
}

func newTestDispatcher(sms SMSSender, email EmailSender) *Dispatcher {
	return NewDispatcher(sms, email, time.Second, zap.NewNop())
}

func TestDispatchBothChannels(t *testing.T) {
	sms := &fakeSMS{}
	email := &fakeEmail{}
	d := newTestDispatcher(sms, email)

	res := d.Dispatch(context.Background(), dueItem())

	assert.True(t, res.SMSSent)
	assert.True(t, res.EmailSent)
	assert.Equal(t, []string{"+15550001111"}, sms.sent)
	assert.Equal(t, []string{"jane@example.com"}, email.sent)
}

func TestDispatchMedicationSettingsGate(t *testing.T) {
	sms := &fakeSMS{}
	email := &fakeEmail{}
	d := newTestDispatcher(sms, email)

	due := dueItem()
	due.Medication.Settings.SMSEnabled = false

	res := d.Dispatch(context.Background(), due)

	assert.False(t, res.SMSSent)
	assert.NoError(t, res.SMSErr)
	assert.True(t, res.EmailSent)
	assert.Empty(t, sms.sent)
}

func TestDispatchPatientPreferenceGate(t *testing.T) {
	sms := &fakeSMS{}
	email := &fakeEmail{}
	d := newTestDispatcher(sms, email)

	due := dueItem()
	due.Patient.NotifyEmail = false

	res := d.Dispatch(context.Background(), due)

	assert.True(t, res.SMSSent)
	assert.False(t, res.EmailSent)
	assert.Empty(t, email.sent)
}

func TestDispatchChannelFailureIsolation(t *testing.T) {
	sms := &fakeSMS{err: fmt.Errorf("twilio down")}
	email := &fakeEmail{}
	d := newTestDispatcher(sms, email)

	res := d.Dispatch(context.Background(), dueItem())

	assert.Error(t, res.SMSErr)
	assert.True(t, res.EmailSent)
	assert.Equal(t, []string{"jane@example.com"}, email.sent)
}

func TestDispatchNilChannelSkipped(t *testing.T) {
	email := &fakeEmail{}
	d := newTestDispatcher(nil, email)

	res := d.Dispatch(context.Background(), dueItem())

	assert.False(t, res.SMSSent)
	assert.NoError(t, res.SMSErr)
	assert.True(t, res.EmailSent)
}

func TestDispatchMissingRecipientSkipsSilently(t *testing.T) {
	sms := &fakeSMS{}
	email := &fakeEmail{}
	d := newTestDispatcher(sms, email)

	due := dueItem()
	due.Patient.Phone = ""

	res := d.Dispatch(context.Background(), due)

	// Missing contact is a skip, not a channel failure
	assert.False(t, res.SMSSent)
	assert.NoError(t, res.SMSErr)
	assert.Empty(t, sms.sent)
	assert.True(t, res.EmailSent)

	due.Patient.Phone = "+15550001111"
	due.Patient.Email = ""
	res = d.Dispatch(context.Background(), due)
	assert.False(t, res.EmailSent)
	assert.NoError(t, res.EmailErr)
	assert.Len(t, email.sent, 1)
}

func TestSMSBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	sms := &fakeSMS{err: fmt.Errorf("twilio down")}
	d := newTestDispatcher(sms, &fakeEmail{})

	for i := 0; i < 5; i++ {
		res := d.Dispatch(context.Background(), dueItem())
		assert.Error(t, res.SMSErr)
	}

	// Breaker is open now; the sender must not be reached
	sms.err = nil
	res := d.Dispatch(context.Background(), dueItem())
	assert.Error(t, res.SMSErr)
	assert.Empty(t, sms.sent)
}

func TestSendDigest(t *testing.T) {
	email := &fakeEmail{}
	d := newTestDispatcher(nil, email)

	patient := dueItem().Patient
	meds := []store.Medication{{
		Name:      "Aspirin",
		Dosage:    "100mg",
		Reminders: []schedule.Reminder{{Period: schedule.PeriodMorning, Time: "08:30"}},
	}}

	assert.NoError(t, d.SendDigest(context.Background(), patient, meds))
	assert.Equal(t, []string{"jane@example.com"}, email.sent)
}

func TestSendDigestRespectsPreference(t *testing.T) {
	email := &fakeEmail{}
	d := newTestDispatcher(nil, email)

	patient := dueItem().Patient
	patient.NotifyEmail = false

	assert.Error(t, d.SendDigest(context.Background(), patient, nil))
	assert.Empty(t, email.sent)
}

func TestSMSText(t *testing.T) {
	due := dueItem()
	text := SMSText(due)
	assert.Contains(t, text, "Aspirin")
	assert.Contains(t, text, "100mg")
	assert.Contains(t, text, "after your meal")
	assert.Contains(t, text, "Morning")
}

func TestDigestHTMLOrdersByPeriod(t *testing.T) {
	patient := dueItem().Patient
	meds := []store.Medication{
		{Name: "NightMed", Reminders: []schedule.Reminder{{Period: schedule.PeriodNight, Time: "22:00"}}},
		{Name: "MorningMed", Reminders: []schedule.Reminder{{Period: schedule.PeriodMorning, Time: "08:00"}}},
	}

	html := DigestHTML(patient, meds)
	assert.Contains(t, html, "Jane")
	assert.Less(t,
		indexOf(html, "MorningMed"),
		indexOf(html, "NightMed"))
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
