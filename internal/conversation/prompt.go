package conversation

import (
	"fmt"
	"strings"

	"github.com/wolfman30/voice-appointment-confirm/internal/appointment"
)

const notProvided = "Not yet provided"

const confirmationTask = `You are a professional medical clinic appointment confirmation agent speaking with a patient on the phone. Your job is to:
1. Confirm the patient's identity by getting their name
2. Verify their appointment details (date, time, doctor)
3. Ask if they can confirm the appointment
4. Handle rescheduling requests politely
5. Keep responses brief, friendly, and professional

When you mention the appointment, say the weekday or month with the day number, the time as H:MM am/pm, and the doctor as "Dr. <last name>".
Respond in a conversational, empathetic manner. Keep responses under 2 sentences when possible. Never use lists, emoji or formatting; the reply is read aloud.`

// BuildSystemPrompt renders the instruction block for one turn. Each slot is
// shown as its value or "Not yet provided" so the model never re-asks for
// facts already gathered.
func BuildSystemPrompt(details appointment.Details, stage appointment.Stage) string {
	var b strings.Builder
	b.WriteString(confirmationTask)
	b.WriteString("\n\nCurrent appointment details gathered:\n")
	fmt.Fprintf(&b, "- Patient Name: %s\n", orNotProvided(details.PatientName))
	fmt.Fprintf(&b, "- Date: %s\n", orNotProvided(details.Date))
	fmt.Fprintf(&b, "- Time: %s\n", orNotProvided(details.Time))
	fmt.Fprintf(&b, "- Doctor: %s\n", orNotProvided(details.Doctor))
	fmt.Fprintf(&b, "- Confirmed: %s\n", yesNo(details.Confirmed))
	fmt.Fprintf(&b, "\nConversation stage: %s", stage.Label())
	return b.String()
}

func orNotProvided(v string) string {
	if strings.TrimSpace(v) == "" {
		return notProvided
	}
	return v
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
