package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gmsas95/medremind/internal/config"
	"github.com/gmsas95/medremind/internal/notify"
	"github.com/gmsas95/medremind/internal/schedule"
	"github.com/gmsas95/medremind/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type fakeNotifier struct {
	mu         sync.Mutex
	dispatched []string
	digests    []string
	digestErr  error
}

func (f *fakeNotifier) Dispatch(ctx context.Context, due store.DueMedication) notify.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatched = append(f.dispatched, due.Medication.ID)
	return notify.Result{SMSSent: true, EmailSent: true}
}

func (f *fakeNotifier) SendDigest(ctx context.Context, patient store.Patient, meds []store.Medication) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.digestErr != nil {
		return f.digestErr
	}
	f.digests = append(f.digests, patient.ID)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Scheduler: config.SchedulerConfig{
			Enabled:        true,
			DigestTime:     "08:00",
			DedupWindowMin: 30,
			MaxConcurrent:  4,
			DispatchPerSec: 100,
		},
	}
}

func setupEngine(t *testing.T) (*Engine, *store.Store, *fakeNotifier) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	s, err := store.NewWithDB(db)
	require.NoError(t, err)

	notifier := &fakeNotifier{}
	return New(s, notifier, testConfig(), zap.NewNop()), s, notifier
}

func seedPatient(t *testing.T, s *store.Store) *store.Patient {
	p := &store.Patient{
		FullName: "Jane Doe", Email: "jane@example.com", Phone: "+15550001111",
		NotifySMS: true, NotifyEmail: true,
	}
	require.NoError(t, s.CreatePatient(p))
	return p
}

func seedMedication(t *testing.T, s *store.Store, patientID, clock string, startDaysAgo, reminderDays int) *store.Medication {
	med := &store.Medication{
		PatientID:    patientID,
		DrugType:     store.DrugOral,
		Name:         "Aspirin",
		TimePeriods:  []string{schedule.PeriodMorning},
		MealRelation: schedule.AfterMeals,
		Reminders:    []schedule.Reminder{{Period: schedule.PeriodMorning, Time: clock}},
		Settings:     store.DefaultReminderSettings(),
		StartDate:    time.Now().AddDate(0, 0, -startDaysAgo),
		ReminderDays: reminderDays,
		IsActive:     true,
	}
	require.NoError(t, s.CreateMedication(med))
	return med
}

func tickAt(e *Engine, clock string) {
	parsed, _ := time.Parse("15:04", clock)
	now := time.Now()
	now = time.Date(now.Year(), now.Month(), now.Day(), parsed.Hour(), parsed.Minute(), 0, 0, time.Local)
	e.RunMinuteTick(context.Background(), now)
}

func TestMinuteTickDispatchesDue(t *testing.T) {
	e, s, notifier := setupEngine(t)
	p := seedPatient(t, s)
	med := seedMedication(t, s, p.ID, "08:30", 0, 7)

	tickAt(e, "08:30")

	assert.Equal(t, []string{med.ID}, notifier.dispatched)

	got, err := s.GetMedication(med.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastReminderSent)
}

func TestMinuteTickIgnoresOtherMinutes(t *testing.T) {
	e, s, notifier := setupEngine(t)
	p := seedPatient(t, s)
	seedMedication(t, s, p.ID, "08:30", 0, 7)

	tickAt(e, "08:31")

	assert.Empty(t, notifier.dispatched)
}

func TestMinuteTickDedupWindow(t *testing.T) {
	e, s, notifier := setupEngine(t)
	p := seedPatient(t, s)
	seedMedication(t, s, p.ID, "08:30", 0, 7)

	tickAt(e, "08:30")
	tickAt(e, "08:30")

	assert.Len(t, notifier.dispatched, 1)
}

func TestMinuteTickSkipsExpiredWindow(t *testing.T) {
	e, s, notifier := setupEngine(t)
	p := seedPatient(t, s)
	med := seedMedication(t, s, p.ID, "08:30", 10, 7)

	tickAt(e, "08:30")

	assert.Empty(t, notifier.dispatched)

	// Skipped, not deactivated and not marked
	got, err := s.GetMedication(med.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
	assert.Nil(t, got.LastReminderSent)
}

func TestMinuteTickSkipsMissingPatient(t *testing.T) {
	e, s, notifier := setupEngine(t)
	seedMedication(t, s, "pat_gone", "08:30", 0, 7)

	tickAt(e, "08:30")

	assert.Empty(t, notifier.dispatched)
}

func TestMinuteTickIsolation(t *testing.T) {
	e, s, notifier := setupEngine(t)
	p := seedPatient(t, s)

	// One dangling medication must not stop the healthy one
	seedMedication(t, s, "pat_gone", "08:30", 0, 7)
	healthy := seedMedication(t, s, p.ID, "08:30", 0, 7)

	tickAt(e, "08:30")

	assert.Equal(t, []string{healthy.ID}, notifier.dispatched)
}

func TestDailyDigest(t *testing.T) {
	e, s, notifier := setupEngine(t)
	p := seedPatient(t, s)
	seedMedication(t, s, p.ID, "08:30", 0, 7)

	e.RunDailyDigest(context.Background(), time.Now())

	assert.Equal(t, []string{p.ID}, notifier.digests)
}

func TestDailyDigestSkipsPatientsWithoutCurrentMeds(t *testing.T) {
	e, s, notifier := setupEngine(t)
	p := seedPatient(t, s)
	seedMedication(t, s, p.ID, "08:30", 10, 7) // window lapsed

	e.RunDailyDigest(context.Background(), time.Now())

	assert.Empty(t, notifier.digests)
}

func TestStartTwiceFails(t *testing.T) {
	e, _, _ := setupEngine(t)
	cfg := testConfig()

	require.NoError(t, e.Start(cfg))
	defer e.Stop(context.Background())

	assert.Error(t, e.Start(cfg))
}
