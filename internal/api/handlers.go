package api

import (
	"strings"
	"time"

	"github.com/gmsas95/medremind/internal/errors"
	"github.com/gmsas95/medremind/internal/metrics"
	"github.com/gmsas95/medremind/internal/schedule"
	"github.com/gmsas95/medremind/internal/store"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// statusFor maps application error codes to HTTP status codes
func statusFor(err error) int {
	code := errors.GetCode(err)
	switch {
	case code == errors.ErrPatientNotFound.Code,
		code == errors.ErrMedicationNotFound.Code,
		code == errors.ErrNotFound.Code:
		return fiber.StatusNotFound
	case strings.HasPrefix(code, "VAL_"),
		code == errors.ErrBadRequest.Code:
		return fiber.StatusBadRequest
	case strings.HasPrefix(code, "CHAN_"):
		return fiber.StatusServiceUnavailable
	case code == errors.ErrSchedulerRunning.Code:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *Server) respondError(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= 500 {
		s.logger.Error("request failed",
			zap.String("path", c.Path()),
			zap.Error(err))
	}
	return c.Status(status).JSON(errorResponse{
		Error: err.Error(),
		Code:  errors.GetCode(err),
	})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"time":      time.Now().Format(time.RFC3339),
		"scheduler": s.config.Scheduler.Enabled,
	})
}

// ==================== Patients ====================

func (s *Server) handleCreatePatient(c *fiber.Ctx) error {
	var req createPatientRequest
	if err := c.BodyParser(&req); err != nil {
		return s.respondError(c, errors.ErrBadRequest)
	}
	if req.FullName == "" || req.Email == "" {
		return s.respondError(c, errors.ErrMissingFields)
	}

	patient := &store.Patient{
		FullName:       req.FullName,
		Email:          req.Email,
		Phone:          req.Phone,
		MealTimes:      schedule.DefaultMealTimes(),
		NotifySMS:      true,
		NotifyEmail:    true,
		NotifyCalendar: true,
	}
	if req.MealTimes != nil {
		patient.MealTimes = *req.MealTimes
	}
	if req.NotifySMS != nil {
		patient.NotifySMS = *req.NotifySMS
	}
	if req.NotifyEmail != nil {
		patient.NotifyEmail = *req.NotifyEmail
	}
	if req.NotifyCalendar != nil {
		patient.NotifyCalendar = *req.NotifyCalendar
	}

	if err := s.store.CreatePatient(patient); err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(patient)
}

func (s *Server) handleListPatients(c *fiber.Ctx) error {
	patients, err := s.store.ListPatients()
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(patients)
}

func (s *Server) handleGetPatient(c *fiber.Ctx) error {
	patient, err := s.store.GetPatient(c.Params("id"))
	if err != nil {
		return s.respondError(c, err)
	}
	if patient == nil {
		return s.respondError(c, errors.ErrPatientNotFound)
	}
	return c.JSON(patient)
}

// handleUpdatePatient updates patient details and preferences. Changing
// meal times does not touch existing medications; each keeps the
// snapshot its reminders were computed from until it is next updated.
func (s *Server) handleUpdatePatient(c *fiber.Ctx) error {
	patient, err := s.store.GetPatient(c.Params("id"))
	if err != nil {
		return s.respondError(c, err)
	}
	if patient == nil {
		return s.respondError(c, errors.ErrPatientNotFound)
	}

	var req createPatientRequest
	if err := c.BodyParser(&req); err != nil {
		return s.respondError(c, errors.ErrBadRequest)
	}

	if req.FullName != "" {
		patient.FullName = req.FullName
	}
	if req.Email != "" {
		patient.Email = req.Email
	}
	if req.Phone != "" {
		patient.Phone = req.Phone
	}
	if req.MealTimes != nil {
		patient.MealTimes = *req.MealTimes
	}
	if req.NotifySMS != nil {
		patient.NotifySMS = *req.NotifySMS
	}
	if req.NotifyEmail != nil {
		patient.NotifyEmail = *req.NotifyEmail
	}
	if req.NotifyCalendar != nil {
		patient.NotifyCalendar = *req.NotifyCalendar
	}

	if err := s.store.UpdatePatient(patient); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(patient)
}

// ==================== Medications ====================

func (s *Server) handleCreateMedication(c *fiber.Ctx) error {
	var req medicationRequest
	if err := c.BodyParser(&req); err != nil {
		return s.respondError(c, errors.ErrBadRequest)
	}

	patient, err := s.validateMedicationRequest(&req)
	if err != nil {
		return s.respondError(c, err)
	}

	reminders, err := schedule.ComputeReminders(req.TimePeriods, req.MealRelation, patient.MealTimes)
	if err != nil {
		return s.respondError(c, err)
	}

	med := &store.Medication{
		PatientID:         patient.ID,
		DrugType:          req.DrugType,
		DrugSubcategory:   req.DrugSubcategory,
		Name:              req.Name,
		Dosage:            req.Dosage,
		Quantity:          req.Quantity,
		Notes:             req.Notes,
		TimePeriods:       req.TimePeriods,
		MealRelation:      req.MealRelation,
		Reminders:         reminders,
		MealTimesSnapshot: patient.MealTimes,
		Settings:          store.DefaultReminderSettings(),
		ReminderDays:      req.ReminderDays,
		IsActive:          true,
	}
	if req.StartDate != nil {
		med.StartDate = *req.StartDate
	}
	if req.Settings != nil {
		med.Settings = *req.Settings
	}

	if err := s.store.CreateMedication(med); err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(med)
}

func (s *Server) handleGetMedication(c *fiber.Ctx) error {
	med, err := s.store.GetMedication(c.Params("id"))
	if err != nil {
		return s.respondError(c, err)
	}
	if med == nil {
		return s.respondError(c, errors.ErrMedicationNotFound)
	}
	return c.JSON(med)
}

// handleUpdateMedication replaces a medication's timing configuration
// and recomputes its reminders against the patient's current meal times
func (s *Server) handleUpdateMedication(c *fiber.Ctx) error {
	med, err := s.store.GetMedication(c.Params("id"))
	if err != nil {
		return s.respondError(c, err)
	}
	if med == nil {
		return s.respondError(c, errors.ErrMedicationNotFound)
	}

	var req medicationRequest
	if err := c.BodyParser(&req); err != nil {
		return s.respondError(c, errors.ErrBadRequest)
	}

	// Reminders are recomputed only when the request touches the timing
	// configuration; other edits keep the existing schedule and its
	// meal-time snapshot intact.
	timingChanged := len(req.TimePeriods) > 0 || req.MealRelation != ""

	req.PatientID = med.PatientID
	if req.Name == "" {
		req.Name = med.Name
	}
	if req.DrugType == "" {
		req.DrugType = med.DrugType
	}
	if len(req.TimePeriods) == 0 {
		req.TimePeriods = med.TimePeriods
	}
	if req.MealRelation == "" {
		req.MealRelation = med.MealRelation
	}

	patient, err := s.validateMedicationRequest(&req)
	if err != nil {
		return s.respondError(c, err)
	}

	if timingChanged {
		reminders, err := schedule.ComputeReminders(req.TimePeriods, req.MealRelation, patient.MealTimes)
		if err != nil {
			return s.respondError(c, err)
		}
		med.Reminders = reminders
		med.MealTimesSnapshot = patient.MealTimes
		med.TimePeriods = req.TimePeriods
		med.MealRelation = req.MealRelation
	}

	med.DrugType = req.DrugType
	med.DrugSubcategory = req.DrugSubcategory
	med.Name = req.Name
	med.Dosage = req.Dosage
	if req.Quantity > 0 {
		med.Quantity = req.Quantity
	}
	med.Notes = req.Notes
	if req.StartDate != nil {
		med.StartDate = *req.StartDate
	}
	if req.ReminderDays > 0 {
		med.ReminderDays = req.ReminderDays
	}
	if req.Settings != nil {
		med.Settings = *req.Settings
	}

	if err := s.store.UpdateMedication(med); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(med)
}

// handleDeleteMedication deactivates by default; ?hard=true removes the
// medication and its adherence log permanently
func (s *Server) handleDeleteMedication(c *fiber.Ctx) error {
	id := c.Params("id")
	med, err := s.store.GetMedication(id)
	if err != nil {
		return s.respondError(c, err)
	}
	if med == nil {
		return s.respondError(c, errors.ErrMedicationNotFound)
	}

	if c.QueryBool("hard") {
		if err := s.store.DeleteMedication(id); err != nil {
			return s.respondError(c, err)
		}
	} else {
		if err := s.store.DeactivateMedication(id); err != nil {
			return s.respondError(c, err)
		}
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleListMedications(c *fiber.Ctx) error {
	patient, err := s.store.GetPatient(c.Params("id"))
	if err != nil {
		return s.respondError(c, err)
	}
	if patient == nil {
		return s.respondError(c, errors.ErrPatientNotFound)
	}

	meds, err := s.store.ListMedications(patient.ID, c.QueryBool("active"))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(meds)
}

// validateMedicationRequest checks the request fields and returns the
// owning patient
func (s *Server) validateMedicationRequest(req *medicationRequest) (*store.Patient, error) {
	if req.PatientID == "" || req.Name == "" {
		return nil, errors.ErrMissingFields
	}
	if !store.ValidDrugType(req.DrugType) {
		return nil, errors.ErrInvalidDrugType
	}
	if !schedule.ValidMealRelation(req.MealRelation) {
		return nil, errors.ErrInvalidMealRelation
	}
	if len(req.TimePeriods) == 0 {
		return nil, errors.ErrMissingFields
	}
	for _, p := range req.TimePeriods {
		if !schedule.ValidPeriod(p) {
			return nil, errors.ErrInvalidTimePeriod
		}
	}

	patient, err := s.store.GetPatient(req.PatientID)
	if err != nil {
		return nil, err
	}
	if patient == nil {
		return nil, errors.ErrPatientNotFound
	}
	return patient, nil
}

// ==================== Adherence ====================

func (s *Server) handleRecordAdherence(c *fiber.Ctx) error {
	var req recordAdherenceRequest
	if err := c.BodyParser(&req); err != nil {
		return s.respondError(c, errors.ErrBadRequest)
	}

	entry, err := s.tracker.Record(c.Params("id"), req.TimePeriod, req.Taken, req.Notes, time.Now())
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(entry)
}

func (s *Server) handleMedicationAdherence(c *fiber.Ctx) error {
	days := c.QueryInt("days", 7)
	if days <= 0 || days > 365 {
		return s.respondError(c, errors.ErrBadRequest)
	}

	stats, err := s.tracker.MedicationStats(c.Params("id"), days, time.Now())
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(stats)
}

func (s *Server) handlePatientAdherence(c *fiber.Ctx) error {
	days := c.QueryInt("days", 7)
	if days <= 0 || days > 365 {
		return s.respondError(c, errors.ErrBadRequest)
	}

	stats, err := s.tracker.PatientStats(c.Params("id"), days, time.Now())
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(stats)
}

// ==================== Scheduler ====================

// handleDuePreview shows what the tick would select for a minute bucket
// without dispatching anything
func (s *Server) handleDuePreview(c *fiber.Ctx) error {
	now := time.Now()
	minute := c.Query("at", schedule.FormatMinute(now.Hour(), now.Minute()))

	cutoff := now.Add(-time.Duration(s.config.Scheduler.DedupWindowMin) * time.Minute)
	due, err := s.store.DueMedications(minute, cutoff)
	if err != nil {
		return s.respondError(c, err)
	}

	type dueItem struct {
		MedicationID string `json:"medication_id"`
		Name         string `json:"name"`
		PatientID    string `json:"patient_id"`
		Period       string `json:"period"`
		Time         string `json:"time"`
	}

	items := make([]dueItem, 0, len(due))
	for _, d := range due {
		items = append(items, dueItem{
			MedicationID: d.Medication.ID,
			Name:         d.Medication.Name,
			PatientID:    d.Medication.PatientID,
			Period:       d.Reminder.Period,
			Time:         d.Reminder.Time,
		})
	}
	return c.JSON(fiber.Map{"minute": minute, "due": items})
}

// handleManualTick runs one tick synchronously at the current minute
func (s *Server) handleManualTick(c *fiber.Ctx) error {
	s.engine.RunMinuteTick(c.Context(), time.Now())
	return c.JSON(fiber.Map{"status": "ok"})
}

// ==================== Calendar ====================

func (s *Server) handleCalendarAuth(c *fiber.Ctx) error {
	if s.calendar == nil {
		return s.respondError(c, errors.ErrChannelNotConfigured)
	}
	return c.Redirect(s.calendar.AuthURL("medremind"), fiber.StatusTemporaryRedirect)
}

func (s *Server) handleCalendarCallback(c *fiber.Ctx) error {
	if s.calendar == nil {
		return s.respondError(c, errors.ErrChannelNotConfigured)
	}
	code := c.Query("code")
	if code == "" {
		return s.respondError(c, errors.ErrBadRequest)
	}

	if err := s.calendar.ExchangeCode(c.Context(), code); err != nil {
		return s.respondError(c, errors.Wrap(err, errors.ErrChannelUnavailable.Code, "calendar authorization failed"))
	}
	return c.JSON(fiber.Map{"status": "authorized"})
}

// handleCalendarSync creates calendar events for one medication. Sync is
// best effort and never touches reminder dispatch; a failure here leaves
// the medication untouched.
func (s *Server) handleCalendarSync(c *fiber.Ctx) error {
	if s.calendar == nil {
		return s.respondError(c, errors.ErrChannelNotConfigured)
	}

	med, err := s.store.GetMedication(c.Params("id"))
	if err != nil {
		return s.respondError(c, err)
	}
	if med == nil {
		return s.respondError(c, errors.ErrMedicationNotFound)
	}

	patient, err := s.store.GetPatient(med.PatientID)
	if err != nil {
		return s.respondError(c, err)
	}
	if patient == nil {
		return s.respondError(c, errors.ErrPatientNotFound)
	}
	if !med.Settings.CalendarEnabled || !patient.NotifyCalendar {
		return s.respondError(c, errors.ErrChannelNotConfigured)
	}

	if err := s.calendar.SyncMedication(c.Context(), *med); err != nil {
		metrics.CalendarSyncs.WithLabelValues("error").Inc()
		return s.respondError(c, errors.Wrap(err, errors.ErrChannelUnavailable.Code, "calendar sync failed"))
	}

	metrics.CalendarSyncs.WithLabelValues("ok").Inc()
	return c.JSON(fiber.Map{"status": "synced", "events": len(med.Reminders)})
}
