package wire

import (
	"errors"
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/vitalsmon/vitalsmon/pkg/vitals"
)

// ErrInvalidReport is wrapped by every structural validation failure.
var ErrInvalidReport = errors.New("wire: invalid report")

// Report is one collection result pushed by an agent for a monitored URL.
// Sample is nil when the collection failed; ErrorMessage then says why.
type Report struct {
	TargetID     string
	URL          string
	ViewMode     string
	Sample       *vitals.Sample
	UptimePct    float64
	ErrorMessage string
	Cert         *CertStatus
}

// CertStatus describes the TLS leaf certificate of the monitored URL.
type CertStatus struct {
	Status   string    `json:"status"` // "ok" | "warning" | "expired" | "error"
	DaysLeft int       `json:"days_left"`
	Issuer   string    `json:"issuer,omitempty"`
	NotAfter time.Time `json:"not_after"`
}

// Ack is the server's reply to a pushed Report.
type Ack struct {
	OK        bool
	SessionID string
	Score     int
	Message   string
}

// ToStruct encodes r for the wire.
func (r *Report) ToStruct() (*structpb.Struct, error) {
	m := map[string]interface{}{
		"target_id":  r.TargetID,
		"url":        r.URL,
		"view_mode":  r.ViewMode,
		"uptime_pct": r.UptimePct,
	}
	if r.ErrorMessage != "" {
		m["error_message"] = r.ErrorMessage
	}
	if r.Sample != nil {
		m["sample"] = map[string]interface{}{
			"lcp":       r.Sample.LCP,
			"fid":       r.Sample.FID,
			"cls":       r.Sample.CLS,
			"timestamp": r.Sample.Timestamp.UTC().Format(time.RFC3339Nano),
		}
	}
	if r.Cert != nil {
		m["cert"] = map[string]interface{}{
			"status":    r.Cert.Status,
			"days_left": r.Cert.DaysLeft,
			"issuer":    r.Cert.Issuer,
			"not_after": r.Cert.NotAfter.UTC().Format(time.RFC3339),
		}
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("wire: encode report: %w", err)
	}
	return s, nil
}

// ReportFromStruct decodes and validates a Report. The URL is required and
// every metric must be a finite, non-negative number.
func ReportFromStruct(s *structpb.Struct) (*Report, error) {
	f := s.GetFields()
	r := &Report{
		TargetID:     f["target_id"].GetStringValue(),
		URL:          f["url"].GetStringValue(),
		ViewMode:     f["view_mode"].GetStringValue(),
		UptimePct:    f["uptime_pct"].GetNumberValue(),
		ErrorMessage: f["error_message"].GetStringValue(),
	}
	if r.URL == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidReport)
	}

	if sv := f["sample"].GetStructValue(); sv != nil {
		sf := sv.GetFields()
		var vals [3]float64
		for i, m := range vitals.Metrics {
			v, err := metricValue(sf, m)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		smp := vitals.Sample{LCP: vals[0], FID: vals[1], CLS: vals[2]}
		if ts := sf["timestamp"].GetStringValue(); ts != "" {
			t, err := time.Parse(time.RFC3339Nano, ts)
			if err != nil {
				return nil, fmt.Errorf("%w: timestamp: %v", ErrInvalidReport, err)
			}
			smp.Timestamp = t
		}
		r.Sample = &smp
	}

	if cv := f["cert"].GetStructValue(); cv != nil {
		cf := cv.GetFields()
		cs := &CertStatus{
			Status:   cf["status"].GetStringValue(),
			DaysLeft: int(cf["days_left"].GetNumberValue()),
			Issuer:   cf["issuer"].GetStringValue(),
		}
		if na := cf["not_after"].GetStringValue(); na != "" {
			if t, err := time.Parse(time.RFC3339, na); err == nil {
				cs.NotAfter = t
			}
		}
		r.Cert = cs
	}
	return r, nil
}

// metricValue reads m from a sample struct. The key must be present and hold
// a finite, non-negative number; absent or non-numeric values are rejected
// rather than read as zero.
func metricValue(sf map[string]*structpb.Value, m vitals.Metric) (float64, error) {
	val, ok := sf[m.String()]
	if !ok {
		return 0, fmt.Errorf("%w: %s is required", ErrInvalidReport, m)
	}
	num, ok := val.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%w: %s must be a number", ErrInvalidReport, m)
	}
	v := num.NumberValue
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, fmt.Errorf("%w: %s must be a finite non-negative number, got %v", ErrInvalidReport, m, v)
	}
	return v, nil
}

// ToStruct encodes a for the wire.
func (a *Ack) ToStruct() (*structpb.Struct, error) {
	s, err := structpb.NewStruct(map[string]interface{}{
		"ok":         a.OK,
		"session_id": a.SessionID,
		"score":      a.Score,
		"message":    a.Message,
	})
	if err != nil {
		return nil, fmt.Errorf("wire: encode ack: %w", err)
	}
	return s, nil
}

// AckFromStruct decodes an Ack. Unknown fields are ignored.
func AckFromStruct(s *structpb.Struct) *Ack {
	f := s.GetFields()
	return &Ack{
		OK:        f["ok"].GetBoolValue(),
		SessionID: f["session_id"].GetStringValue(),
		Score:     int(f["score"].GetNumberValue()),
		Message:   f["message"].GetStringValue(),
	}
}
