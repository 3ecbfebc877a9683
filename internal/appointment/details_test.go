package appointment

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDetails(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Details
	}{
		{"empty object", `{}`, Details{}},
		{"not json", `not json`, Details{}},
		{"array", `[1,2]`, Details{}},
		{"empty input", ``, Details{}},
		{
			"full record",
			`{"patientName":"Ann Lee","date":"Tuesday 14th","time":"2:30pm","doctor":"Dr. Lee","confirmed":true}`,
			Details{PatientName: "Ann Lee", Date: "Tuesday 14th", Time: "2:30pm", Doctor: "Dr. Lee", Confirmed: true},
		},
		{
			"mistyped fields are unset",
			`{"patientName":42,"date":null,"time":["2pm"],"doctor":"Dr. Lee","confirmed":"yes"}`,
			Details{Doctor: "Dr. Lee"},
		},
		{"whitespace trimmed", `{"patientName":"  Ann  ","date":"   "}`, Details{PatientName: "Ann"}},
		{"unknown fields ignored", `{"patientName":"Ann","foo":"bar"}`, Details{PatientName: "Ann"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseDetails([]byte(tt.raw)))
		})
	}
}

func TestDetails_JSONShape(t *testing.T) {
	data, err := json.Marshal(Details{PatientName: "Ann"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"patientName":"Ann","confirmed":false}`, string(data))
}

func TestDetails_UnmarshalEmbeddedIsLenient(t *testing.T) {
	var body struct {
		Details Details `json:"appointmentDetails"`
		Other   string  `json:"other"`
	}
	err := json.Unmarshal([]byte(`{"appointmentDetails":{"date":7,"time":"3:00pm"},"other":"x"}`), &body)
	require.NoError(t, err)
	assert.Equal(t, Details{Time: "3:00pm"}, body.Details)
	assert.Equal(t, "x", body.Other)
}

func TestFilled(t *testing.T) {
	prev := Details{PatientName: "Ann"}
	next := Details{PatientName: "Ann", Date: "May 1st", Confirmed: true}
	assert.Equal(t, []Field{FieldDate, FieldConfirmed}, Filled(prev, next))
	assert.Empty(t, Filled(next, next))
}

func TestDetails_Complete(t *testing.T) {
	d := Details{PatientName: "Ann", Date: "May 1st", Time: "9:00am", Doctor: "Dr. Lee"}
	assert.False(t, d.Complete())
	d.Confirmed = true
	assert.True(t, d.Complete())
}

func TestStageOf(t *testing.T) {
	tests := []struct {
		name      string
		details   Details
		utterance string
		want      Stage
	}{
		{"no name yet", Details{}, "hello", StageAwaitingName},
		{"no name even when declining", Details{}, "no", StageAwaitingName},
		{"named", Details{PatientName: "Ann"}, "what time was it?", StageAwaitingConfirmation},
		{"wants to reschedule", Details{PatientName: "Ann"}, "Can I reschedule?", StageRescheduling},
		{"declines", Details{PatientName: "Ann"}, "No, that doesn't work", StageRescheduling},
		{"know is not no", Details{PatientName: "Ann"}, "I know", StageAwaitingConfirmation},
		{"confirmed wins", Details{PatientName: "Ann", Confirmed: true}, "cancel", StageConfirmed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StageOf(tt.details, tt.utterance))
		})
	}
}

func TestStageLabel(t *testing.T) {
	assert.Equal(t, "Awaiting patient name", StageAwaitingName.Label())
	assert.Equal(t, "Unknown", Stage("bogus").Label())
}
