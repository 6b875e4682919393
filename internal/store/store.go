package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite" // Pure Go SQLite driver
	"github.com/gmsas95/medremind/internal/config"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store provides persistence for patients, medications and adherence logs
type Store struct {
	db *gorm.DB
}

// New creates a new Store backed by SQLite
func New(cfg *config.Config) (*Store, error) {
	sqlitePath := cfg.Storage.SQLitePath
	if sqlitePath == "" {
		sqlitePath = "medremind.db"
	}

	// Open SQLite with optimizations
	sqliteDB, err := sql.Open("sqlite", sqlitePath+"?_journal=WAL&_synchronous=NORMAL&_busy_timeout=5000&_cache_size=-64000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	sqliteDB.SetMaxOpenConns(10)
	sqliteDB.SetMaxIdleConns(5)
	sqliteDB.SetConnMaxLifetime(time.Hour)

	db, err := gorm.Open(sqlite.Dialector{Conn: sqliteDB}, &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	return NewWithDB(db)
}

// NewWithDB creates a Store on an existing gorm connection (used by tests)
func NewWithDB(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(
		&Patient{},
		&Medication{},
		&AdherenceEntry{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return &Store{db: db}, nil
}

// DB returns the GORM database instance
func (s *Store) DB() *gorm.DB {
	return s.db
}

// ==================== Patient Methods ====================

// CreatePatient creates a new patient
func (s *Store) CreatePatient(p *Patient) error {
	p.pack()
	return s.db.Create(p).Error
}

// GetPatient retrieves a patient by ID
func (s *Store) GetPatient(id string) (*Patient, error) {
	var p Patient
	err := s.db.Where("id = ?", id).First(&p).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.unpack()
	return &p, nil
}

// UpdatePatient updates a patient
func (s *Store) UpdatePatient(p *Patient) error {
	p.pack()
	return s.db.Save(p).Error
}

// ListPatients lists all patients
func (s *Store) ListPatients() ([]Patient, error) {
	var patients []Patient
	err := s.db.Order("created_at ASC").Find(&patients).Error
	for i := range patients {
		patients[i].unpack()
	}
	return patients, err
}

// ==================== Medication Methods ====================

// CreateMedication creates a new medication
func (s *Store) CreateMedication(m *Medication) error {
	m.pack()
	return s.db.Create(m).Error
}

// GetMedication retrieves a medication by ID
func (s *Store) GetMedication(id string) (*Medication, error) {
	var m Medication
	err := s.db.Where("id = ?", id).First(&m).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.unpack()
	return &m, nil
}

// UpdateMedication updates a medication. The reminder loop never calls
// this; it uses MarkReminderSent so CRUD writes cannot race the dedup
// marker.
func (s *Store) UpdateMedication(m *Medication) error {
	m.pack()
	return s.db.Save(m).Error
}

// DeleteMedication hard-deletes a medication and its adherence log
func (s *Store) DeleteMedication(id string) error {
	if err := s.db.Where("medication_id = ?", id).Delete(&AdherenceEntry{}).Error; err != nil {
		return err
	}
	return s.db.Where("id = ?", id).Delete(&Medication{}).Error
}

// DeactivateMedication soft-deletes by flipping is_active
func (s *Store) DeactivateMedication(id string) error {
	return s.db.Model(&Medication{}).Where("id = ?", id).Update("is_active", false).Error
}

// ListMedications lists a patient's medications
func (s *Store) ListMedications(patientID string, activeOnly bool) ([]Medication, error) {
	query := s.db.Where("patient_id = ?", patientID)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	var meds []Medication
	err := query.Order("created_at DESC").Find(&meds).Error
	for i := range meds {
		meds[i].unpack()
	}
	return meds, err
}

// DueMedications returns active medications whose reminder schedule
// contains the given minute bucket and whose last reminder is either
// unset or older than the dedup cutoff, each joined with its patient.
// Medications owned by a missing patient are skipped by the caller.
func (s *Store) DueMedications(minute string, cutoff time.Time) ([]DueMedication, error) {
	var candidates []Medication
	err := s.db.
		Where("is_active = ?", true).
		Where("last_reminder_sent IS NULL OR last_reminder_sent < ?", cutoff).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	due := make([]DueMedication, 0, len(candidates))
	patients := make(map[string]*Patient)

	for i := range candidates {
		candidates[i].unpack()
		reminder, ok := candidates[i].ReminderAt(minute)
		if !ok {
			continue
		}

		patient, seen := patients[candidates[i].PatientID]
		if !seen {
			patient, err = s.GetPatient(candidates[i].PatientID)
			if err != nil {
				return nil, err
			}
			patients[candidates[i].PatientID] = patient
		}
		if patient == nil {
			// Dangling owner reference; surfaced with a zero patient so
			// the scheduler can log and skip it
			due = append(due, DueMedication{Medication: candidates[i], Reminder: reminder})
			continue
		}

		due = append(due, DueMedication{
			Medication: candidates[i],
			Patient:    *patient,
			Reminder:   reminder,
		})
	}

	return due, nil
}

// MarkReminderSent advances the dedup marker. The guard keeps
// last_reminder_sent monotonically non-decreasing even if a slow tick
// finishes after a newer one.
func (s *Store) MarkReminderSent(medicationID string, sentAt time.Time) error {
	return s.db.Model(&Medication{}).
		Where("id = ?", medicationID).
		Where("last_reminder_sent IS NULL OR last_reminder_sent <= ?", sentAt).
		Update("last_reminder_sent", sentAt).Error
}

// ==================== Adherence Methods ====================

// UpsertAdherence writes the adherence slot for (medication, day, period).
// A second write for the same slot overwrites the first.
func (s *Store) UpsertAdherence(entry *AdherenceEntry) error {
	var existing AdherenceEntry
	err := s.db.Where(
		"medication_id = ? AND entry_date = ? AND time_period = ?",
		entry.MedicationID, entry.EntryDate, entry.TimePeriod,
	).First(&existing).Error

	if err == gorm.ErrRecordNotFound {
		return s.db.Create(entry).Error
	}
	if err != nil {
		return err
	}

	existing.Taken = entry.Taken
	existing.TakenAt = entry.TakenAt
	existing.Notes = entry.Notes
	if err := s.db.Save(&existing).Error; err != nil {
		return err
	}
	*entry = existing
	return nil
}

// GetAdherenceEntries returns a medication's log within [start, end]
func (s *Store) GetAdherenceEntries(medicationID string, start, end time.Time) ([]AdherenceEntry, error) {
	var entries []AdherenceEntry
	err := s.db.
		Where("medication_id = ?", medicationID).
		Where("entry_date >= ? AND entry_date <= ?", DayKey(start), DayKey(end)).
		Order("entry_date ASC").
		Find(&entries).Error
	return entries, err
}

// GetPatientAdherence returns all of a patient's log entries within [start, end]
func (s *Store) GetPatientAdherence(patientID string, start, end time.Time) ([]AdherenceEntry, error) {
	var entries []AdherenceEntry
	err := s.db.
		Where("patient_id = ?", patientID).
		Where("entry_date >= ? AND entry_date <= ?", DayKey(start), DayKey(end)).
		Order("entry_date ASC").
		Find(&entries).Error
	return entries, err
}
