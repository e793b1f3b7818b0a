package interfaces

import (
	"context"
	"time"
)

// TimeFormat is the layout of AttendanceRecord.Time.
const TimeFormat = "2006-01-02 15:04:05"

// AttendanceRecord is one attendee's sign-in. Records are created once per
// successful submission and never mutated.
type AttendanceRecord struct {
	Secret      string `json:"secret"`
	Major       string `json:"major"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	AddToCCDC   bool   `json:"add_to_ccdc"`
	AddToCDT    bool   `json:"add_to_cdt"`
	AddToSigSec bool   `json:"add_to_sig_sec"`
	Time        string `json:"time"`
	IP          string `json:"ip"`
}

// FormatTime renders t the way AttendanceRecord.Time expects.
func FormatTime(t time.Time) string {
	return t.Format(TimeFormat)
}

// AttendanceLog is the append-only collection of records for one secret.
type AttendanceLog struct {
	Attendees []AttendanceRecord `json:"attendees"`
}

// NewAttendanceLog returns an empty log whose attendees serialize as [] rather than null.
func NewAttendanceLog() *AttendanceLog {
	return &AttendanceLog{Attendees: []AttendanceRecord{}}
}

// Form field names accepted by the sign-in page.
const (
	FieldSecret      = "secret"
	FieldMajor       = "major"
	FieldName        = "name"
	FieldEmail       = "email"
	FieldAddToCCDC   = "add_to_ccdc"
	FieldAddToCDT    = "add_to_cdt"
	FieldAddToSigSec = "add_to_sig_sec"
)

// RequiredFields lists the fields that must be non-blank, in validation order.
var RequiredFields = []string{FieldSecret, FieldMajor, FieldName, FieldEmail}

// SignInForm holds a submission as received. Text fields are kept verbatim;
// checkbox fields record only whether the box was sent at all.
type SignInForm struct {
	Secret string
	Major  string
	Name   string
	Email  string

	AddToCCDC   bool
	AddToCDT    bool
	AddToSigSec bool
}

// Field returns the value of a text field by its form name.
func (f SignInForm) Field(name string) string {
	switch name {
	case FieldSecret:
		return f.Secret
	case FieldMajor:
		return f.Major
	case FieldName:
		return f.Name
	case FieldEmail:
		return f.Email
	default:
		return ""
	}
}

// KeySource yields the current list of accepted secret keys.
type KeySource interface {
	Keys(ctx context.Context) ([]string, error)
}
