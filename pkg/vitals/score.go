package vitals

// Band points awarded per metric classification. CLS carries one extra point
// in the good band so that three good metrics sum to exactly 100.
const (
	pointsGood             = 33
	pointsGoodCLS          = 34
	pointsNeedsImprovement = 20
	pointsPoor             = 10
)

// Score bands for Grade.
const (
	GradeGoodMin   = 90
	GradeFairMin   = 50
	MaxScore       = 100
	MinSampleScore = 3 * pointsPoor
)

// Points returns the contribution of one metric classification to the score.
func Points(m Metric, s Status) int {
	switch s {
	case Good:
		if m == CLS {
			return pointsGoodCLS
		}
		return pointsGood
	case NeedsImprovement:
		return pointsNeedsImprovement
	case Poor:
		return pointsPoor
	default:
		return 0
	}
}

// Score classifies each metric of s against the default thresholds and sums
// the band points. The result lies in [30, 100]; there is no interpolation
// inside a band.
func Score(s Sample) int {
	return ScoreWith(s, DefaultThresholds)
}

// ScoreWith is Score against a caller-supplied threshold table.
func ScoreWith(s Sample, ts Thresholds) int {
	total := 0
	for _, m := range Metrics {
		total += Points(m, Classify(s.Value(m), ts[m]))
	}
	return total
}

// ScoreOf returns Score(*s), or 0 when there is no current sample.
func ScoreOf(s *Sample) int {
	if s == nil {
		return 0
	}
	return Score(*s)
}

// Grade maps an aggregate score to the colour band used on the dashboard
// badge: >= 90 good, >= 50 needs-improvement, otherwise poor.
func Grade(score int) Status {
	switch {
	case score >= GradeGoodMin:
		return Good
	case score >= GradeFairMin:
		return NeedsImprovement
	default:
		return Poor
	}
}
