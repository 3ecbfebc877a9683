package appointment

import (
	"regexp"
	"strings"
)

// Source selects which side of a turn a rule inspects.
type Source int

const (
	SourceUser Source = iota
	SourceAgent
)

// Rule maps one pattern to one slot. Apply receives the submatches of the
// first match and reports whether it changed the record.
type Rule struct {
	Name    string
	Field   Field
	Source  Source
	Pattern *regexp.Regexp
	Apply   func(d *Details, match []string) bool
}

var (
	namePattern         = regexp.MustCompile(`(?i)(?:my name is|i[’']m|i am|this is)\s+([a-z]+(?:\s+[a-z]+)?)`)
	confirmationPattern = regexp.MustCompile(`(?i)\b(?:yes|confirm|correct|that[’']?s right|absolutely|sure)\b`)
	datePattern         = regexp.MustCompile(`(?i)\b(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday|january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2}(?:st|nd|rd|th)?\b`)
	timePattern         = regexp.MustCompile(`(?i)\b\d{1,2}:\d{2}\s*(?:am|pm)\b`)
	doctorPattern       = regexp.MustCompile(`(?i)\b(?:dr\.?|doctor)\s+([a-z]+)`)
)

// DefaultRules is the appointment confirmation rule set. Patient facts come
// from the patient; schedule facts come from what the agent said.
var DefaultRules = []Rule{
	{
		Name: "name", Field: FieldPatientName, Source: SourceUser, Pattern: namePattern,
		Apply: func(d *Details, m []string) bool {
			if d.PatientName != "" {
				return false
			}
			d.PatientName = strings.TrimSpace(m[1])
			return d.PatientName != ""
		},
	},
	{
		Name: "confirmation", Field: FieldConfirmed, Source: SourceUser, Pattern: confirmationPattern,
		Apply: func(d *Details, _ []string) bool {
			if d.Confirmed {
				return false
			}
			d.Confirmed = true
			return true
		},
	},
	{
		Name: "date", Field: FieldDate, Source: SourceAgent, Pattern: datePattern,
		Apply: func(d *Details, m []string) bool {
			if d.Date != "" {
				return false
			}
			d.Date = m[0]
			return true
		},
	},
	{
		Name: "time", Field: FieldTime, Source: SourceAgent, Pattern: timePattern,
		Apply: func(d *Details, m []string) bool {
			if d.Time != "" {
				return false
			}
			d.Time = m[0]
			return true
		},
	},
	{
		Name: "doctor", Field: FieldDoctor, Source: SourceAgent, Pattern: doctorPattern,
		Apply: func(d *Details, m []string) bool {
			if d.Doctor != "" {
				return false
			}
			d.Doctor = "Dr. " + m[1]
			return true
		},
	},
}

// Extractor derives slot updates from one turn.
type Extractor struct {
	rules []Rule
}

// NewExtractor builds an extractor over rules, or DefaultRules when none are given.
func NewExtractor(rules ...Rule) *Extractor {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Extractor{rules: rules}
}

var defaultExtractor = NewExtractor()

// Extract applies DefaultRules. See (*Extractor).Extract.
func Extract(userUtterance, agentUtterance string, current Details) Details {
	return defaultExtractor.Extract(userUtterance, agentUtterance, current)
}

// Extract returns current with any slots the turn fills. Populated text
// slots are never overwritten and Confirmed never goes back to false.
func (e *Extractor) Extract(userUtterance, agentUtterance string, current Details) Details {
	updated := current
	for _, rule := range e.rules {
		text := userUtterance
		if rule.Source == SourceAgent {
			text = agentUtterance
		}
		if text == "" || rule.Pattern == nil || rule.Apply == nil {
			continue
		}
		m := rule.Pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		rule.Apply(&updated, m)
	}
	return keepPopulated(current, updated)
}

func keepPopulated(current, updated Details) Details {
	if current.PatientName != "" {
		updated.PatientName = current.PatientName
	}
	if current.Date != "" {
		updated.Date = current.Date
	}
	if current.Time != "" {
		updated.Time = current.Time
	}
	if current.Doctor != "" {
		updated.Doctor = current.Doctor
	}
	if current.Confirmed {
		updated.Confirmed = true
	}
	return updated
}

// MatchName returns the name a patient introduces themselves with.
func MatchName(text string) (string, bool) {
	m := namePattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	name := strings.TrimSpace(m[1])
	return name, name != ""
}

// MatchConfirmation reports whether the utterance affirms the appointment.
func MatchConfirmation(text string) bool {
	return confirmationPattern.MatchString(text)
}

// MatchDate returns the first weekday or month date mention, verbatim.
func MatchDate(text string) (string, bool) {
	m := datePattern.FindString(text)
	return m, m != ""
}

// MatchTime returns the first clock time with am/pm, verbatim.
func MatchTime(text string) (string, bool) {
	m := timePattern.FindString(text)
	return m, m != ""
}

// MatchDoctor returns the provider as "Dr. <name>".
func MatchDoctor(text string) (string, bool) {
	m := doctorPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return "Dr. " + m[1], true
}
