package api

import (
	"time"

	"github.com/gmsas95/medremind/internal/schedule"
	"github.com/gmsas95/medremind/internal/store"
)

// createPatientRequest is the payload for POST /api/patients
type createPatientRequest struct {
	FullName       string              `json:"full_name"`
	Email          string              `json:"email"`
	Phone          string              `json:"phone"`
	MealTimes      *schedule.MealTimes `json:"meal_times"`
	NotifySMS      *bool               `json:"notify_sms"`
	NotifyEmail    *bool               `json:"notify_email"`
	NotifyCalendar *bool               `json:"notify_calendar"`
}

// medicationRequest is the payload for POST and PUT /api/medications
type medicationRequest struct {
	PatientID       string                  `json:"patient_id"`
	DrugType        string                  `json:"drug_type"`
	DrugSubcategory string                  `json:"drug_subcategory"`
	Name            string                  `json:"name"`
	Dosage          string                  `json:"dosage"`
	Quantity        int                     `json:"quantity"`
	Notes           string                  `json:"notes"`
	TimePeriods     []string                `json:"time_periods"`
	MealRelation    string                  `json:"meal_relation"`
	StartDate       *time.Time              `json:"start_date"`
	ReminderDays    int                     `json:"reminder_days"`
	Settings        *store.ReminderSettings `json:"reminder_settings"`
}

// recordAdherenceRequest is the payload for POST /api/medications/:id/adherence
type recordAdherenceRequest struct {
	TimePeriod string `json:"time_period"`
	Taken      bool   `json:"taken"`
	Notes      string `json:"notes"`
}

// errorResponse is the uniform error envelope
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
