package notify

import (
	"fmt"
	"strings"

	"github.com/gmsas95/medremind/internal/schedule"
	"github.com/gmsas95/medremind/internal/store"
)

var periodLabels = map[string]string{
	schedule.PeriodMorning:   "Morning",
	schedule.PeriodAfternoon: "Afternoon",
	schedule.PeriodEvening:   "Evening",
	schedule.PeriodNight:     "Night",
}

var mealRelationLabels = map[string]string{
	schedule.BeforeMeals:        "before your meal",
	schedule.WithMeals:          "with your meal",
	schedule.AfterMeals:         "after your meal",
	schedule.IndependentOfMeals: "",
}

func periodLabel(period string) string {
	if label, ok := periodLabels[period]; ok {
		return label
	}
	return period
}

// SMSText renders the reminder SMS body
func SMSText(due store.DueMedication) string {
	med := due.Medication

	var b strings.Builder
	fmt.Fprintf(&b, "%s reminder: take %s", periodLabel(due.Reminder.Period), med.Name)
	if med.Dosage != "" {
		fmt.Fprintf(&b, " (%s)", med.Dosage)
	}
	if med.Quantity > 1 {
		fmt.Fprintf(&b, " x%d", med.Quantity)
	}
	if rel := mealRelationLabels[med.MealRelation]; rel != "" {
		fmt.Fprintf(&b, " %s", rel)
	}
	fmt.Fprintf(&b, " at %s.", due.Reminder.Time)
	if med.Notes != "" {
		fmt.Fprintf(&b, " %s", truncate(med.Notes, 60))
	}
	return b.String()
}

// truncate keeps SMS bodies inside a single segment
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// ReminderSubject renders the reminder email subject
func ReminderSubject(due store.DueMedication) string {
	return fmt.Sprintf("Medication reminder: %s (%s)", due.Medication.Name, periodLabel(due.Reminder.Period))
}

// ReminderHTML renders the reminder email body
func ReminderHTML(due store.DueMedication) string {
	med := due.Medication

	var b strings.Builder
	b.WriteString("<html><body>")
	fmt.Fprintf(&b, "<h2>Time for your %s medication</h2>", strings.ToLower(periodLabel(due.Reminder.Period)))
	fmt.Fprintf(&b, "<p><strong>%s</strong>", htmlEscape(med.Name))
	if med.Dosage != "" {
		fmt.Fprintf(&b, " &mdash; %s", htmlEscape(med.Dosage))
	}
	if med.Quantity > 1 {
		fmt.Fprintf(&b, " (take %d)", med.Quantity)
	}
	b.WriteString("</p>")
	if rel := mealRelationLabels[med.MealRelation]; rel != "" {
		fmt.Fprintf(&b, "<p>Take this %s.</p>", rel)
	}
	if med.Notes != "" {
		fmt.Fprintf(&b, "<p><em>%s</em></p>", htmlEscape(med.Notes))
	}
	fmt.Fprintf(&b, "<p>Scheduled for %s.</p>", due.Reminder.Time)
	b.WriteString("</body></html>")
	return b.String()
}

// DigestSubject renders the daily digest email subject
func DigestSubject() string {
	return "Your medication schedule for today"
}

// DigestHTML renders the daily digest email listing every active
// medication's reminders in day order
func DigestHTML(patient store.Patient, meds []store.Medication) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	fmt.Fprintf(&b, "<h2>Good morning, %s</h2>", htmlEscape(firstName(patient.FullName)))
	b.WriteString("<p>Here is your medication schedule for today:</p>")
	b.WriteString("<table border=\"0\" cellpadding=\"6\">")
	b.WriteString("<tr><th align=\"left\">Time</th><th align=\"left\">Medication</th><th align=\"left\">Dosage</th></tr>")

	for _, period := range schedule.Periods {
		for _, med := range meds {
			for _, r := range med.Reminders {
				if r.Period != period {
					continue
				}
				fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%s</td></tr>",
					r.Time, htmlEscape(med.Name), htmlEscape(med.Dosage))
			}
		}
	}

	b.WriteString("</table>")
	b.WriteString("</body></html>")
	return b.String()
}

func firstName(full string) string {
	if i := strings.IndexByte(full, ' '); i > 0 {
		return full[:i]
	}
	return full
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

func htmlEscape(s string) string {
	return htmlEscaper.Replace(s)
}
