// Package adherence records whether scheduled doses were taken and
// computes rolling adherence statistics.
package adherence

import (
	"time"

	"github.com/gmsas95/medremind/internal/errors"
	"github.com/gmsas95/medremind/internal/schedule"
	"github.com/gmsas95/medremind/internal/store"
	"go.uber.org/zap"
)

// Tracker writes and aggregates the adherence log
type Tracker struct {
	store  *store.Store
	logger *zap.Logger
}

// NewTracker creates an adherence tracker
func NewTracker(s *store.Store, logger *zap.Logger) *Tracker {
	return &Tracker{store: s, logger: logger}
}

// Stats summarizes adherence over a rolling window. Rates are
// percentages in [0, 100]; an empty window yields 0, never NaN.
type Stats struct {
	Days          int               `json:"days"`
	TotalEntries  int               `json:"total_entries"`
	TakenCount    int               `json:"taken_count"`
	MissedCount   int               `json:"missed_count"`
	AdherenceRate float64           `json:"adherence_rate"`
	Daily         []DayStats        `json:"daily"`
	Medications   []MedicationStats `json:"medications,omitempty"`
}

// MedicationStats is one medication's share of a patient-level window
type MedicationStats struct {
	MedicationID string  `json:"medication_id"`
	Name         string  `json:"name"`
	Total        int     `json:"total"`
	Taken        int     `json:"taken"`
	Rate         float64 `json:"rate"`
}

// DayStats is one day's slice of the rolling window, most recent first
type DayStats struct {
	Date  string  `json:"date"`
	Total int     `json:"total"`
	Taken int     `json:"taken"`
	Rate  float64 `json:"rate"`
}

// Record upserts the adherence slot for (medication, today, period).
// Recording the same slot twice overwrites the earlier entry. TakenAt is
// stamped only when the dose was actually taken.
func (t *Tracker) Record(medicationID, period string, taken bool, notes string, at time.Time) (*store.AdherenceEntry, error) {
	if !schedule.ValidPeriod(period) {
		return nil, errors.ErrInvalidTimePeriod
	}

	med, err := t.store.GetMedication(medicationID)
	if err != nil {
		return nil, err
	}
	if med == nil {
		return nil, errors.ErrMedicationNotFound
	}

	entry := &store.AdherenceEntry{
		MedicationID: med.ID,
		PatientID:    med.PatientID,
		EntryDate:    store.DayKey(at),
		TimePeriod:   period,
		Taken:        taken,
		Notes:        notes,
	}
	if taken {
		takenAt := at
		entry.TakenAt = &takenAt
	}

	if err := t.store.UpsertAdherence(entry); err != nil {
		return nil, err
	}

	t.logger.Debug("adherence recorded",
		zap.String("medication_id", med.ID),
		zap.String("period", period),
		zap.Bool("taken", taken))
	return entry, nil
}

// MedicationStats computes adherence for one medication over the last
// days days, today included
func (t *Tracker) MedicationStats(medicationID string, days int, now time.Time) (*Stats, error) {
	med, err := t.store.GetMedication(medicationID)
	if err != nil {
		return nil, err
	}
	if med == nil {
		return nil, errors.ErrMedicationNotFound
	}

	start := now.AddDate(0, 0, -(days - 1))
	entries, err := t.store.GetAdherenceEntries(medicationID, start, now)
	if err != nil {
		return nil, err
	}

	return aggregate(entries, days, now), nil
}

// PatientStats computes adherence across all of a patient's medications
// over the last days days
func (t *Tracker) PatientStats(patientID string, days int, now time.Time) (*Stats, error) {
	patient, err := t.store.GetPatient(patientID)
	if err != nil {
		return nil, err
	}
	if patient == nil {
		return nil, errors.ErrPatientNotFound
	}

	start := now.AddDate(0, 0, -(days - 1))
	entries, err := t.store.GetPatientAdherence(patientID, start, now)
	if err != nil {
		return nil, err
	}

	// Only active medications count towards the patient's numbers;
	// deactivated ones keep their log but drop out of the stats.
	meds, err := t.store.ListMedications(patientID, true)
	if err != nil {
		return nil, err
	}
	active := make(map[string]bool, len(meds))
	for _, med := range meds {
		active[med.ID] = true
	}

	kept := make([]store.AdherenceEntry, 0, len(entries))
	for _, e := range entries {
		if active[e.MedicationID] {
			kept = append(kept, e)
		}
	}

	stats := aggregate(kept, days, now)
	stats.Medications = perMedication(kept, meds)

	return stats, nil
}

// perMedication splits a patient window by medication, keeping the
// patient's medication listing order
func perMedication(entries []store.AdherenceEntry, meds []store.Medication) []MedicationStats {
	byMed := make(map[string]*MedicationStats, len(meds))
	out := make([]MedicationStats, 0, len(meds))

	for _, med := range meds {
		byMed[med.ID] = &MedicationStats{MedicationID: med.ID, Name: med.Name}
	}
	for _, e := range entries {
		ms, ok := byMed[e.MedicationID]
		if !ok {
			continue
		}
		ms.Total++
		if e.Taken {
			ms.Taken++
		}
	}
	for _, med := range meds {
		ms := byMed[med.ID]
		if ms.Total > 0 {
			ms.Rate = float64(ms.Taken) / float64(ms.Total) * 100
		}
		out = append(out, *ms)
	}
	return out
}

// aggregate folds log entries into a rolling summary plus a per-day
// breakdown walking backwards from now
func aggregate(entries []store.AdherenceEntry, days int, now time.Time) *Stats {
	stats := &Stats{Days: days}

	byDay := make(map[string][]store.AdherenceEntry, days)
	for _, e := range entries {
		byDay[e.EntryDate] = append(byDay[e.EntryDate], e)
		stats.TotalEntries++
		if e.Taken {
			stats.TakenCount++
		} else {
			stats.MissedCount++
		}
	}

	if stats.TotalEntries > 0 {
		stats.AdherenceRate = float64(stats.TakenCount) / float64(stats.TotalEntries) * 100
	}

	stats.Daily = make([]DayStats, 0, days)
	for i := 0; i < days; i++ {
		key := store.DayKey(now.AddDate(0, 0, -i))
		day := DayStats{Date: key}
		for _, e := range byDay[key] {
			day.Total++
			if e.Taken {
				day.Taken++
			}
		}
		if day.Total > 0 {
			day.Rate = float64(day.Taken) / float64(day.Total) * 100
		}
		stats.Daily = append(stats.Daily, day)
	}

	return stats
}
