package alerts

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vitalsmon/vitalsmon/pkg/vitals"
)

// condition is a parsed rule expression of the form "field op value".
//
// Numeric fields: lcp, fid, cls, score.
// Status fields:  lcp_status, fid_status, cls_status, grade (== and != only).
type condition struct {
	field  string
	op     string
	num    float64
	status vitals.Status
}

// parseCondition validates a rule expression.
func parseCondition(expr string) (condition, error) {
	parts := strings.Fields(expr)
	if len(parts) != 3 {
		return condition{}, fmt.Errorf("alerts: condition %q: want \"field op value\"", expr)
	}
	c := condition{field: parts[0], op: parts[1]}

	switch c.field {
	case "lcp", "fid", "cls", "score":
		switch c.op {
		case ">", ">=", "<", "<=", "==", "!=":
		default:
			return condition{}, fmt.Errorf("alerts: condition %q: unknown operator %q", expr, c.op)
		}
		v, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return condition{}, fmt.Errorf("alerts: condition %q: %w", expr, err)
		}
		c.num = v

	case "lcp_status", "fid_status", "cls_status", "grade":
		if c.op != "==" && c.op != "!=" {
			return condition{}, fmt.Errorf("alerts: condition %q: status fields support == and != only", expr)
		}
		st, err := vitals.ParseStatus(parts[2])
		if err != nil {
			return condition{}, fmt.Errorf("alerts: condition %q: %w", expr, err)
		}
		c.status = st

	default:
		return condition{}, fmt.Errorf("alerts: condition %q: unknown field %q", expr, c.field)
	}
	return c, nil
}

// eval tests the condition against a sample, classifying metrics with ts.
// It returns whether the rule fires and the value that was compared (the
// score for grade, the metric reading for status fields).
func (c condition) eval(s vitals.Sample, ts vitals.Thresholds) (bool, float64) {
	score := vitals.Score(s)

	switch c.field {
	case "lcp", "fid", "cls":
		m, _ := vitals.ParseMetric(c.field)
		v := s.Value(m)
		return compareFloat(v, c.op, c.num), v
	case "score":
		v := float64(score)
		return compareFloat(v, c.op, c.num), v
	case "grade":
		return compareStatus(vitals.Grade(score), c.op, c.status), float64(score)
	default:
		m, _ := vitals.ParseMetric(strings.TrimSuffix(c.field, "_status"))
		return compareStatus(vitals.Classify(s.Value(m), ts[m]), c.op, c.status), s.Value(m)
	}
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	case "!=":
		return v != threshold
	default:
		return false
	}
}

func compareStatus(got vitals.Status, op string, want vitals.Status) bool {
	if op == "!=" {
		return got != want
	}
	return got == want
}
