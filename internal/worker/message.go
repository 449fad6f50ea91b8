package worker

import (
	"time"

	"github.com/jwalitptl/labalert/internal/model"
	"github.com/jwalitptl/labalert/pkg/messaging"
	"github.com/jwalitptl/labalert/pkg/payload"
)

// recordFromMessage rebuilds a result from a channel message. The body
// carries the clinical fields; the id, patient id and timestamp come from
// the attributes and are generated when absent.
func recordFromMessage(msg messaging.Message) *model.ResultRecord {
	f := payload.Decode(msg.Body)

	ts, err := time.Parse(time.RFC3339Nano, msg.Attr(payload.AttrTimestamp))
	if err != nil {
		ts = time.Time{}
	}

	return model.FromData(model.ResultData{
		ID:             msg.Attr(payload.AttrRecordID),
		PatientID:      msg.Attr(payload.AttrPatientID),
		PatientName:    f.PatientName,
		TestType:       f.TestType,
		Value:          f.ResultValue,
		Unit:           f.Unit,
		ReferenceRange: f.ReferenceRange,
		Critical:       f.Critical || payload.ParseBool(msg.Attr(payload.AttrCritical)),
		Timestamp:      ts,
	})
}
