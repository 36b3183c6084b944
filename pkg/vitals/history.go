package vitals

// HistoryCap is the number of most recent samples a history retains.
const HistoryCap = 20

// Append returns a new slice holding history followed by s, trimmed to the
// last HistoryCap entries. The input slice is never written to and the result
// never shares its backing array, so callers holding an older history keep a
// stable view.
func Append(history []Sample, s Sample) []Sample {
	return AppendN(history, s, HistoryCap)
}

// AppendN is Append with an explicit capacity. A capacity below 1 is treated as 1.
func AppendN(history []Sample, s Sample, capacity int) []Sample {
	if capacity < 1 {
		capacity = 1
	}
	keep := history
	if len(keep) >= capacity {
		keep = keep[len(keep)-capacity+1:]
	}
	out := make([]Sample, 0, len(keep)+1)
	out = append(out, keep...)
	return append(out, s)
}

// Latest returns the newest sample in history.
func Latest(history []Sample) (Sample, error) {
	if len(history) == 0 {
		return Sample{}, ErrEmptyHistory
	}
	return history[len(history)-1], nil
}
