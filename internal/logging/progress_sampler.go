package logging

// ProgressSampler thins a stream of percentage updates (ffmpeg progress,
// download progress) down to one log line per step-sized bucket. Each file
// being processed gets its own sampler; it is not safe for concurrent use.
type ProgressSampler struct {
	step       float64
	lastBucket int
}

// NewProgressSampler constructs a sampler that emits when the percent crosses
// a step boundary (default 10%).
func NewProgressSampler(step float64) *ProgressSampler {
	if step <= 0 {
		step = 10
	}
	return &ProgressSampler{step: step, lastBucket: -1}
}

// ShouldLog reports whether an update at percent should be logged. Negative
// values mean the total is unknown and never log. Values above 100 are
// clamped so a final overshoot does not produce an extra line.
func (s *ProgressSampler) ShouldLog(percent float64) bool {
	if s == nil {
		return true
	}
	if percent < 0 {
		return false
	}
	if percent > 100 {
		percent = 100
	}
	bucket := int(percent / s.step)
	if bucket <= s.lastBucket {
		return false
	}
	s.lastBucket = bucket
	return true
}

// Reset clears the sampler state.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastBucket = -1
}
