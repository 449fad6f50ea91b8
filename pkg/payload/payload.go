// Package payload reads and writes the flat key:value text carried on the
// archive and alert channels:
//
//	{"patientName":"Ali","testType":"Glucose","resultValue":"1.45","unit":"g/L","referenceRange":"0.70-1.10 g/L","isCritical":true}
//
// Decoding is a best-effort scan, not a JSON parse. Values that contain a
// comma or a closing brace are cut short; callers needing arbitrary text
// must use another encoding.
package payload

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Payload keys.
const (
	KeyPatientName    = "patientName"
	KeyTestType       = "testType"
	KeyResultValue    = "resultValue"
	KeyUnit           = "unit"
	KeyReferenceRange = "referenceRange"
	KeyIsCritical     = "isCritical"
)

// Out-of-band attribute keys sent next to the payload.
const (
	AttrRecordID  = "recordId"
	AttrPatientID = "patientId"
	AttrTestType  = "testType"
	AttrValue     = "value"
	AttrCritical  = "critical"
	AttrTimestamp = "timestamp"
	AttrSource    = "source"
)

// Fields are the typed values carried by a payload.
type Fields struct {
	PatientName    string
	TestType       string
	ResultValue    float64
	Unit           string
	ReferenceRange string
	Critical       bool
}

// Encode renders fields in the flat format.
func Encode(f Fields) string {
	return fmt.Sprintf(`{"%s":"%s","%s":"%s","%s":"%s","%s":"%s","%s":"%s","%s":%t}`,
		KeyPatientName, f.PatientName,
		KeyTestType, f.TestType,
		KeyResultValue, FormatFloat(f.ResultValue),
		KeyUnit, f.Unit,
		KeyReferenceRange, f.ReferenceRange,
		KeyIsCritical, f.Critical,
	)
}

// Decode scans body for every known key. Missing keys decode to zero values.
func Decode(body string) Fields {
	return Fields{
		PatientName:    Extract(body, KeyPatientName),
		TestType:       Extract(body, KeyTestType),
		ResultValue:    ParseFloat(Extract(body, KeyResultValue)),
		Unit:           Extract(body, KeyUnit),
		ReferenceRange: Extract(body, KeyReferenceRange),
		Critical:       ParseBool(Extract(body, KeyIsCritical)),
	}
}

// Extract returns the raw value of field, or "" when the key is absent. The
// value runs from the key to the next comma or closing brace.
func Extract(body, field string) string {
	key := `"` + field + `":`
	idx := strings.Index(body, key)
	if idx < 0 {
		return ""
	}
	rest := body[idx+len(key):]
	end := strings.IndexAny(rest, ",}")
	if end < 0 {
		return ""
	}
	return unquote(strings.TrimSpace(rest[:end]))
}

func unquote(v string) string {
	if !strings.HasPrefix(v, `"`) {
		return v
	}
	v = v[1:]
	return strings.TrimSuffix(v, `"`)
}

// ParseFloat degrades malformed and non-finite numbers to 0 and logs a
// warning.
func ParseFloat(v string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		log.Warn().Str("value", v).Msg("malformed numeric payload value, using 0")
		return 0
	}
	return f
}

// ParseBool is true only for a case-insensitive "true".
func ParseBool(v string) bool {
	return strings.EqualFold(strings.TrimSpace(v), "true")
}

// FormatFloat writes the shortest text that parses back to f.
func FormatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
