package model

// AddResultRequest is the short form accepted by the query interface; unit,
// range and criticality are derived.
type AddResultRequest struct {
	PatientName string   `json:"patient_name" binding:"required,notblank,max=200"`
	TestType    string   `json:"test_type" binding:"required,notblank,max=100"`
	Value       *float64 `json:"value" binding:"required"`
}

// SubmitResultRequest carries an already classified record. Value wins over
// ValueText when both are present.
type SubmitResultRequest struct {
	PatientID      string   `json:"patient_id" binding:"max=64"`
	PatientName    string   `json:"patient_name" binding:"required,notblank,max=200"`
	TestType       string   `json:"test_type" binding:"required,notblank,max=100"`
	Value          *float64 `json:"value"`
	ValueText      string   `json:"value_text" binding:"required_without=Value"`
	Unit           string   `json:"unit" binding:"max=20"`
	ReferenceRange string   `json:"reference_range" binding:"max=50"`
	Critical       bool     `json:"critical"`
	DoctorNotes    string   `json:"doctor_notes"`
}

// Record builds the ResultRecord described by the request.
func (r *SubmitResultRequest) Record() *ResultRecord {
	var rec *ResultRecord
	switch {
	case r.Value != nil && r.PatientID == "":
		rec = FromNameFirst(r.PatientName, r.TestType, *r.Value, r.Unit, r.Critical)
	case r.Value != nil:
		rec = FromPrimaryFields(r.PatientID, r.PatientName, r.TestType, *r.Value, r.Unit, r.Critical)
	default:
		patientID := r.PatientID
		if patientID == "" {
			patientID = PatientIDFromName(r.PatientName)
		}
		rec = FromTextValue(patientID, r.PatientName, r.TestType, r.ValueText, r.Unit, "", r.Critical)
	}
	rec.SetReferenceRange(r.ReferenceRange)
	rec.SetDoctorNotes(r.DoctorNotes)
	return rec
}

// SummaryResponse wraps the confirmation text returned by add/submit.
type SummaryResponse struct {
	Summary string `json:"summary"`
}

// CountsResponse groups the cheap counters.
type CountsResponse struct {
	Total         int `json:"total"`
	Critical      int `json:"critical"`
	PendingAlerts int `json:"pending_alerts"`
}

// PendingAlertsResponse describes the local acknowledgment queue.
type PendingAlertsResponse struct {
	Count      int             `json:"count"`
	HasPending bool            `json:"has_pending"`
	Alerts     []*ResultRecord `json:"alerts,omitempty"`
}

// SimulateAlertsRequest asks for a batch of synthetic critical alerts.
type SimulateAlertsRequest struct {
	Count int `json:"count" binding:"required,min=1,max=100"`
}
