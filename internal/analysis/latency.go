package analysis

import "math"

// LatencyStats summarizes trigger-to-application delays in seconds.
type LatencyStats struct {
	Triggers int
	Answered int
	Mean     float64
	Max      float64
	Min      float64
}

// Latency pairs each trigger with the first later (or same-step) command
// application. times, trigger and applied are parallel telemetry columns
// with 1 meaning set. A trigger that arrives before the previous one was
// answered supersedes it.
func Latency(times, trigger, applied []float64) LatencyStats {
	st := LatencyStats{Min: math.Inf(1)}
	pending := -1.0
	sum := 0.0

	n := min(len(times), len(trigger), len(applied))
	for i := 0; i < n; i++ {
		if trigger[i] != 0 {
			st.Triggers++
			pending = times[i]
		}
		if applied[i] != 0 && pending >= 0 {
			d := times[i] - pending
			st.Answered++
			sum += d
			st.Max = math.Max(st.Max, d)
			st.Min = math.Min(st.Min, d)
			pending = -1
		}
	}

	if st.Answered == 0 {
		st.Min = 0
		return st
	}
	st.Mean = sum / float64(st.Answered)
	return st
}
