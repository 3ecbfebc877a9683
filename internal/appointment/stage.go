package appointment

import "regexp"

// Stage is the dialogue progress derived from the slot record.
type Stage string

const (
	StageAwaitingName         Stage = "awaiting_name"
	StageAwaitingConfirmation Stage = "awaiting_confirmation"
	StageConfirmed            Stage = "confirmed"
	StageRescheduling         Stage = "rescheduling"
)

var reschedulePattern = regexp.MustCompile(`(?i)\b(?:no|cancel|reschedule|another time|different time)\b`)

// StageOf classifies the conversation from the current record and the
// utterance being answered. A confirmed record stays confirmed regardless
// of what the patient says next.
func StageOf(d Details, utterance string) Stage {
	switch {
	case d.Confirmed:
		return StageConfirmed
	case !d.HasName():
		return StageAwaitingName
	case reschedulePattern.MatchString(utterance):
		return StageRescheduling
	default:
		return StageAwaitingConfirmation
	}
}

// Label is the human readable form used in prompts.
func (s Stage) Label() string {
	switch s {
	case StageAwaitingName:
		return "Awaiting patient name"
	case StageAwaitingConfirmation:
		return "Awaiting appointment confirmation"
	case StageConfirmed:
		return "Appointment confirmed"
	case StageRescheduling:
		return "Patient wants to reschedule"
	default:
		return "Unknown"
	}
}
