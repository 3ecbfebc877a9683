package appointment

import (
	"encoding/json"
	"strings"
)

// Details is the appointment record assembled over a conversation.
// An empty string means the field has not been provided yet.
type Details struct {
	PatientName string `json:"patientName,omitempty"`
	Date        string `json:"date,omitempty"`
	Time        string `json:"time,omitempty"`
	Doctor      string `json:"doctor,omitempty"`
	Confirmed   bool   `json:"confirmed"`
}

// Field names a slot of the appointment record.
type Field string

const (
	FieldPatientName Field = "patientName"
	FieldDate        Field = "date"
	FieldTime        Field = "time"
	FieldDoctor      Field = "doctor"
	FieldConfirmed   Field = "confirmed"
)

// Fields lists every slot in display order.
var Fields = []Field{FieldPatientName, FieldDate, FieldTime, FieldDoctor, FieldConfirmed}

// HasName reports whether the patient has identified themselves.
func (d Details) HasName() bool {
	return d.PatientName != ""
}

// Complete reports whether every slot is filled and the patient confirmed.
func (d Details) Complete() bool {
	return d.PatientName != "" && d.Date != "" && d.Time != "" && d.Doctor != "" && d.Confirmed
}

// Normalize trims whitespace so blank values read as unset.
func (d Details) Normalize() Details {
	d.PatientName = strings.TrimSpace(d.PatientName)
	d.Date = strings.TrimSpace(d.Date)
	d.Time = strings.TrimSpace(d.Time)
	d.Doctor = strings.TrimSpace(d.Doctor)
	return d
}

// Filled returns the slots set in next but not in prev.
func Filled(prev, next Details) []Field {
	var out []Field
	if prev.PatientName == "" && next.PatientName != "" {
		out = append(out, FieldPatientName)
	}
	if prev.Date == "" && next.Date != "" {
		out = append(out, FieldDate)
	}
	if prev.Time == "" && next.Time != "" {
		out = append(out, FieldTime)
	}
	if prev.Doctor == "" && next.Doctor != "" {
		out = append(out, FieldDoctor)
	}
	if !prev.Confirmed && next.Confirmed {
		out = append(out, FieldConfirmed)
	}
	return out
}

// ParseDetails decodes a slot record leniently. Missing, null or mistyped
// fields are left unset and input that is not a JSON object yields an empty
// record.
func ParseDetails(data []byte) Details {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Details{}
	}
	d := Details{
		PatientName: rawString(raw[string(FieldPatientName)]),
		Date:        rawString(raw[string(FieldDate)]),
		Time:        rawString(raw[string(FieldTime)]),
		Doctor:      rawString(raw[string(FieldDoctor)]),
	}
	var confirmed bool
	if v, ok := raw[string(FieldConfirmed)]; ok && json.Unmarshal(v, &confirmed) == nil {
		d.Confirmed = confirmed
	}
	return d.Normalize()
}

// UnmarshalJSON applies the same lenient rules as ParseDetails so records
// embedded in larger request bodies never fail the whole decode.
func (d *Details) UnmarshalJSON(data []byte) error {
	*d = ParseDetails(data)
	return nil
}

func rawString(v json.RawMessage) string {
	if len(v) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return ""
	}
	return s
}
