package logging

import "testing"

func TestNewProgressSamplerDefaults(t *testing.T) {
	tests := []struct {
		name     string
		step     float64
		wantStep float64
	}{
		{"default step for zero", 0, 10},
		{"default step for negative", -1, 10},
		{"custom step", 25, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProgressSampler(tt.step)
			if s.step != tt.wantStep {
				t.Errorf("step = %v, want %v", s.step, tt.wantStep)
			}
			if s.lastBucket != -1 {
				t.Errorf("lastBucket = %d, want -1", s.lastBucket)
			}
		})
	}
}

func TestProgressSamplerNilAlwaysLogs(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(50) {
		t.Error("ShouldLog on nil sampler should always return true")
	}
	s.Reset()
}

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(10)

	steps := []struct {
		percent float64
		want    bool
	}{
		{0, true},
		{3, false},
		{9.9, false},
		{10, true},
		{15, false},
		{42, true},
		{41, false},
		{100, true},
		{105, false},
	}
	for _, step := range steps {
		if got := s.ShouldLog(step.percent); got != step.want {
			t.Fatalf("ShouldLog(%v) = %v, want %v", step.percent, got, step.want)
		}
	}
}

func TestProgressSamplerIgnoresUnknownPercent(t *testing.T) {
	s := NewProgressSampler(10)
	if s.ShouldLog(-1) {
		t.Fatal("negative percent should not log")
	}
	if !s.ShouldLog(0) {
		t.Fatal("first known percent should log")
	}
}

func TestProgressSamplerReset(t *testing.T) {
	s := NewProgressSampler(10)
	s.ShouldLog(50)
	s.Reset()
	if s.lastBucket != -1 {
		t.Fatalf("lastBucket = %d, want -1 after reset", s.lastBucket)
	}
	if !s.ShouldLog(20) {
		t.Fatal("should log after reset")
	}
}
