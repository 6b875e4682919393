package store

import (
	"encoding/json"
	"time"

	"github.com/gmsas95/medremind/internal/schedule"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Drug types
const (
	DrugOral    = "oral"
	DrugInhaler = "inhaler"
	DrugPatch   = "patch"
	DrugDrop    = "drop"
	DrugInsulin = "insulin"
)

// ValidDrugType reports whether t is a known drug type
func ValidDrugType(t string) bool {
	switch t {
	case DrugOral, DrugInhaler, DrugPatch, DrugDrop, DrugInsulin:
		return true
	}
	return false
}

// Patient represents a patient consuming reminders. Meal times are
// serialized to a text column; notification preferences gate channels
// independently of each medication's own settings.
type Patient struct {
	ID       string `gorm:"primaryKey" json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`

	MealTimes     schedule.MealTimes `json:"meal_times" gorm:"-"`
	MealTimesJSON string             `json:"-" gorm:"type:text"`

	NotifySMS      bool `json:"notify_sms" gorm:"default:true"`
	NotifyEmail    bool `json:"notify_email" gorm:"default:true"`
	NotifyCalendar bool `json:"notify_calendar" gorm:"default:true"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReminderSettings holds a medication's own per-channel toggles.
// PhoneCallEnabled is reserved and never consulted by dispatch.
type ReminderSettings struct {
	CalendarEnabled  bool `json:"calendar_enabled"`
	SMSEnabled       bool `json:"sms_enabled"`
	EmailEnabled     bool `json:"email_enabled"`
	PhoneCallEnabled bool `json:"phone_call_enabled"`
}

// DefaultReminderSettings enables every channel except phone calls
func DefaultReminderSettings() ReminderSettings {
	return ReminderSettings{
		CalendarEnabled: true,
		SMSEnabled:      true,
		EmailEnabled:    true,
	}
}

// Medication represents a medication with its derived reminder schedule.
// Reminders and the meal-time snapshot are computed at create/update time
// and never recomputed implicitly.
type Medication struct {
	ID        string `gorm:"primaryKey" json:"id"`
	PatientID string `gorm:"index" json:"patient_id"`

	DrugType        string `json:"drug_type"`
	DrugSubcategory string `json:"drug_subcategory,omitempty"`
	Name            string `json:"name"`
	Dosage          string `json:"dosage"`
	Quantity        int    `json:"quantity" gorm:"default:1"`
	Notes           string `json:"notes,omitempty"`

	TimePeriods     []string `json:"time_periods" gorm:"-"`
	TimePeriodsJSON string   `json:"-" gorm:"type:text"`
	MealRelation    string   `json:"meal_relation"`

	Reminders     []schedule.Reminder `json:"reminders" gorm:"-"`
	RemindersJSON string              `json:"-" gorm:"type:text"`

	MealTimesSnapshot     schedule.MealTimes `json:"meal_times_snapshot" gorm:"-"`
	MealTimesSnapshotJSON string             `json:"-" gorm:"type:text"`

	Settings     ReminderSettings `json:"reminder_settings" gorm:"-"`
	SettingsJSON string           `json:"-" gorm:"type:text"`

	StartDate    time.Time `json:"start_date"`
	ReminderDays int       `json:"reminder_days" gorm:"default:7"`

	LastReminderSent *time.Time `json:"last_reminder_sent,omitempty" gorm:"index"`
	IsActive         bool       `json:"is_active" gorm:"default:true;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WithinReminderWindow reports whether now still falls inside the
// medication's reminder window (whole days since start ≤ reminder days)
func (m *Medication) WithinReminderWindow(now time.Time) bool {
	days := int(now.Sub(m.StartDate).Hours() / 24)
	return days <= m.ReminderDays
}

// ReminderAt returns the reminder matching the given minute bucket, if any
func (m *Medication) ReminderAt(minute string) (schedule.Reminder, bool) {
	for _, r := range m.Reminders {
		if r.Time == minute {
			return r, true
		}
	}
	return schedule.Reminder{}, false
}

// AdherenceEntry logs whether a scheduled dose was taken. The unique index
// on (medication, day, period) makes the second write for the same slot an
// update, never a duplicate.
type AdherenceEntry struct {
	ID           string `gorm:"primaryKey" json:"id"`
	MedicationID string `gorm:"index;uniqueIndex:idx_adherence_slot" json:"medication_id"`
	PatientID    string `gorm:"index" json:"patient_id"`

	EntryDate  string `gorm:"uniqueIndex:idx_adherence_slot" json:"date"` // YYYY-MM-DD
	TimePeriod string `gorm:"uniqueIndex:idx_adherence_slot" json:"time_period"`

	Taken   bool       `json:"taken"`
	TakenAt *time.Time `json:"taken_at,omitempty"`
	Notes   string     `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DueMedication is a medication selected for dispatch, enriched with its
// owning patient and the reminder that matched the tick's minute bucket
type DueMedication struct {
	Medication Medication
	Patient    Patient
	Reminder   schedule.Reminder
}

// BeforeCreate hook for Patient
func (p *Patient) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = generateID("pat")
	}
	return nil
}

// BeforeCreate hook for Medication
func (m *Medication) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = generateID("med")
	}
	if m.StartDate.IsZero() {
		m.StartDate = time.Now()
	}
	if m.ReminderDays == 0 {
		m.ReminderDays = 7
	}
	if m.Quantity == 0 {
		m.Quantity = 1
	}
	return nil
}

// BeforeCreate hook for AdherenceEntry
func (a *AdherenceEntry) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = generateID("adh")
	}
	return nil
}

func generateID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// pack serializes the gorm:"-" fields before a write
func (p *Patient) pack() {
	p.MealTimesJSON = toJSON(p.MealTimes)
}

// unpack restores the gorm:"-" fields after a read
func (p *Patient) unpack() {
	fromJSON(p.MealTimesJSON, &p.MealTimes)
}

func (m *Medication) pack() {
	m.TimePeriodsJSON = toJSON(m.TimePeriods)
	m.RemindersJSON = toJSON(m.Reminders)
	m.MealTimesSnapshotJSON = toJSON(m.MealTimesSnapshot)
	m.SettingsJSON = toJSON(m.Settings)
}

func (m *Medication) unpack() {
	fromJSON(m.TimePeriodsJSON, &m.TimePeriods)
	fromJSON(m.RemindersJSON, &m.Reminders)
	fromJSON(m.MealTimesSnapshotJSON, &m.MealTimesSnapshot)
	fromJSON(m.SettingsJSON, &m.Settings)
}

func toJSON(v interface{}) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func fromJSON(data string, v interface{}) {
	if data == "" {
		return
	}
	json.Unmarshal([]byte(data), v)
}

// DayKey normalizes a timestamp to the calendar-day key used by the
// adherence log
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}
