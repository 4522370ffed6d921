package scheduler

import "testing"

func TestAddJob(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	if err := s.AddJob("*/15 * * * *", func() {}); err != nil {
		t.Errorf("valid expression rejected: %v", err)
	}
	if err := s.AddJob(DefaultSweepSpec, func() {}); err != nil {
		t.Errorf("default sweep spec rejected: %v", err)
	}
}

func TestAddJobInvalidExpression(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	if err := s.AddJob("not a cron expr", func() {}); err == nil {
		t.Error("expected error for invalid expression")
	}
	// Six fields means seconds, which the 5-field parser rejects.
	if err := s.AddJob("0 */15 * * * *", func() {}); err == nil {
		t.Error("expected error for 6-field expression")
	}
}
