package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/labalert/internal/classification"
)

// ResultRecord is one clinical measurement. The id and timestamp are fixed
// at creation; patient metadata, the critical flag and notes can be corrected
// through setters.
type ResultRecord struct {
	id             string
	patientID      string
	patientName    string
	testType       string
	value          float64
	unit           string
	referenceRange string
	critical       bool
	timestamp      time.Time
	doctorNotes    string
}

// ResultData is the flat form of a ResultRecord used for JSON and rows.
type ResultData struct {
	ID             string    `json:"id" db:"id"`
	PatientID      string    `json:"patient_id" db:"patient_id"`
	PatientName    string    `json:"patient_name" db:"patient_name"`
	TestType       string    `json:"test_type" db:"test_type"`
	Value          float64   `json:"value" db:"result_value"`
	Unit           string    `json:"unit" db:"unit"`
	ReferenceRange string    `json:"reference_range" db:"reference_range"`
	Critical       bool      `json:"critical" db:"is_critical"`
	Timestamp      time.Time `json:"timestamp" db:"created_at"`
	DoctorNotes    string    `json:"doctor_notes" db:"doctor_notes"`
}

var now = time.Now

func newResult(id, patientID, patientName, testType string, value float64, unit, referenceRange string, critical bool, ts time.Time) *ResultRecord {
	if id == "" {
		id = uuid.NewString()
	}
	if ts.IsZero() {
		ts = now()
	}
	return &ResultRecord{
		id:             id,
		patientID:      patientID,
		patientName:    patientName,
		testType:       testType,
		value:          value,
		unit:           unit,
		referenceRange: referenceRange,
		critical:       critical,
		timestamp:      ts,
	}
}

// FromPrimaryFields builds a record from an explicit patient id.
func FromPrimaryFields(patientID, patientName, testType string, value float64, unit string, critical bool) *ResultRecord {
	return newResult("", patientID, patientName, testType, value, unit, "", critical, time.Time{})
}

// FromNameFirst builds a record for a patient known only by name. The
// patient id is derived from the first word of the name.
func FromNameFirst(patientName, testType string, value float64, unit string, critical bool) *ResultRecord {
	return newResult("", PatientIDFromName(patientName), patientName, testType, value, unit, "", critical, time.Time{})
}

// FromTextValue builds a record from a textual value. Text that does not
// parse as a number is stored as 0.
func FromTextValue(patientID, patientName, testType, valueText, unit, referenceRange string, critical bool) *ResultRecord {
	return newResult("", patientID, patientName, testType, ParseValue(valueText), unit, referenceRange, critical, time.Time{})
}

// FromData rehydrates a record, keeping its id and timestamp when present.
func FromData(d ResultData) *ResultRecord {
	r := newResult(d.ID, d.PatientID, d.PatientName, d.TestType, d.Value, d.Unit, d.ReferenceRange, d.Critical, d.Timestamp)
	r.doctorNotes = d.DoctorNotes
	return r
}

// maxPatientIDPrefix leaves room for the _NNNN suffix in a 64 character
// patient id.
const maxPatientIDPrefix = 59

// PatientIDFromName returns FIRSTWORD_NNNN for a name, PAT<millis> when the
// name is blank. The first word is cut to maxPatientIDPrefix runes.
func PatientIDFromName(name string) string {
	millis := now().UnixMilli()
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return fmt.Sprintf("PAT%d", millis)
	}
	first := []rune(strings.ToUpper(fields[0]))
	if len(first) > maxPatientIDPrefix {
		first = first[:maxPatientIDPrefix]
	}
	return fmt.Sprintf("%s_%d", string(first), millis%10000)
}

// ParseValue converts measurement text to a finite float, degrading to 0.
func ParseValue(text string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		log.Warn().Str("value", text).Msg("non-numeric result value, using 0")
		return 0
	}
	return v
}

func (r *ResultRecord) ID() string { return r.id }
func (r *ResultRecord) PatientID() string { return r.patientID }
func (r *ResultRecord) PatientName() string { return r.patientName }
func (r *ResultRecord) TestType() string { return r.testType }
func (r *ResultRecord) Value() float64 { return r.value }
func (r *ResultRecord) Unit() string { return r.unit }
func (r *ResultRecord) Critical() bool { return r.critical }
func (r *ResultRecord) Timestamp() time.Time { return r.timestamp }
func (r *ResultRecord) DoctorNotes() string { return r.doctorNotes }

// ReferenceRange falls back to the default range of the test type when no
// range was set.
func (r *ResultRecord) ReferenceRange() string {
	if strings.TrimSpace(r.referenceRange) == "" {
		return classification.DefaultReferenceRange(r.testType)
	}
	return r.referenceRange
}

func (r *ResultRecord) SetPatientID(id string) { r.patientID = id }
func (r *ResultRecord) SetPatientName(name string) { r.patientName = name }
func (r *ResultRecord) SetTestType(testType string) { r.testType = testType }
func (r *ResultRecord) SetUnit(unit string) { r.unit = unit }
func (r *ResultRecord) SetReferenceRange(rng string) { r.referenceRange = rng }
func (r *ResultRecord) SetCritical(critical bool) { r.critical = critical }
func (r *ResultRecord) SetDoctorNotes(notes string) { r.doctorNotes = notes }

// Clone returns an independent copy.
func (r *ResultRecord) Clone() *ResultRecord {
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}

// FormattedValue renders the value with two decimals and its unit.
func (r *ResultRecord) FormattedValue() string {
	return fmt.Sprintf("%.2f %s", r.value, r.unit)
}

// Status is CRITICAL or NORMAL.
func (r *ResultRecord) Status() string {
	if r.critical {
		return "CRITICAL"
	}
	return "NORMAL"
}

func (r *ResultRecord) String() string {
	return fmt.Sprintf("%s - %s: %s [%s] (%s)",
		r.patientName, r.testType, r.FormattedValue(), r.Status(), r.timestamp.Format("2006-01-02 15:04:05"))
}

// Data returns the flat view of the record.
func (r *ResultRecord) Data() ResultData {
	return ResultData{
		ID:             r.id,
		PatientID:      r.patientID,
		PatientName:    r.patientName,
		TestType:       r.testType,
		Value:          r.value,
		Unit:           r.unit,
		ReferenceRange: r.ReferenceRange(),
		Critical:       r.critical,
		Timestamp:      r.timestamp,
		DoctorNotes:    r.doctorNotes,
	}
}

func (r *ResultRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Data())
}

func (r *ResultRecord) UnmarshalJSON(b []byte) error {
	var d ResultData
	if err := json.Unmarshal(b, &d); err != nil {
		return err
	}
	*r = *FromData(d)
	return nil
}

// Records converts a slice of rows into records.
func Records(rows []ResultData) []*ResultRecord {
	out := make([]*ResultRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromData(row))
	}
	return out
}
