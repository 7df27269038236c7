package models

import (
	"errors"
	"testing"

	"pgregory.net/rapid"
)

func buildPayload(total, completed int, unlocked bool) []StepPayload {
	steps := make([]StepPayload, total)
	for i := range steps {
		status := StatusLocked
		switch {
		case i < completed:
			status = StatusCompleted
		case i == completed && unlocked:
			status = StatusUnlocked
		}
		steps[i] = StepPayload{
			ID:      i + 1,
			Title:   "Step",
			Status:  status,
			XP:      10 * (i + 1),
			Minutes: 5,
		}
	}
	return steps
}

func validPayload(t *rapid.T) []StepPayload {
	total := rapid.IntRange(0, 15).Draw(t, "total")
	completed := rapid.IntRange(0, total).Draw(t, "completed")
	unlocked := completed < total && rapid.Bool().Draw(t, "unlocked")
	return buildPayload(total, completed, unlocked)
}

func TestFromServerPayload_SingleFrontier(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		snap, err := FromServerPayload(validPayload(t))
		if err != nil {
			t.Fatalf("valid payload rejected: %v", err)
		}

		steps := snap.Steps()
		unlockedIdx := -1
		for i, s := range steps {
			if s.Status == StatusUnlocked {
				if unlockedIdx != -1 {
					t.Fatalf("more than one unlocked step")
				}
				unlockedIdx = i
			}
		}
		if unlockedIdx == -1 {
			return
		}
		for i, s := range steps {
			if i < unlockedIdx && s.Status != StatusCompleted {
				t.Fatalf("step %d before frontier is %s", s.ID, s.Status)
			}
			if i > unlockedIdx && s.Status != StatusLocked {
				t.Fatalf("step %d after frontier is %s", s.ID, s.Status)
			}
		}
	})
}

func TestFromServerPayload_AcceptsExactlyFrontierShapes(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		statuses := rapid.SliceOfN(
			rapid.SampledFrom([]StepStatus{StatusLocked, StatusUnlocked, StatusCompleted}), 0, 8,
		).Draw(t, "statuses")

		payload := make([]StepPayload, len(statuses))
		for i, st := range statuses {
			payload[i] = StepPayload{ID: i + 1, Status: st}
		}

		// completed* unlocked? locked*
		want := true
		phase := 0
		for _, st := range statuses {
			switch st {
			case StatusCompleted:
				if phase > 0 {
					want = false
				}
			case StatusUnlocked:
				if phase > 0 {
					want = false
				}
				phase = 1
			case StatusLocked:
				phase = 2
			}
		}

		_, err := FromServerPayload(payload)
		if want && err != nil {
			t.Fatalf("statuses %v rejected: %v", statuses, err)
		}
		if !want && !errors.Is(err, ErrMalformedSnapshot) {
			t.Fatalf("statuses %v: error = %v, want ErrMalformedSnapshot", statuses, err)
		}
	})
}

func TestFromServerPayload_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		payload []StepPayload
		want    error
	}{
		{
			name: "two unlocked",
			payload: []StepPayload{
				{ID: 1, Status: StatusCompleted},
				{ID: 2, Status: StatusUnlocked},
				{ID: 3, Status: StatusUnlocked},
			},
			want: ErrMalformedSnapshot,
		},
		{
			name: "locked before completed",
			payload: []StepPayload{
				{ID: 1, Status: StatusLocked},
				{ID: 2, Status: StatusCompleted},
			},
			want: ErrMalformedSnapshot,
		},
		{
			name: "locked before unlocked",
			payload: []StepPayload{
				{ID: 1, Status: StatusLocked},
				{ID: 2, Status: StatusUnlocked},
			},
			want: ErrMalformedSnapshot,
		},
		{
			name: "gap in ids",
			payload: []StepPayload{
				{ID: 1, Status: StatusCompleted},
				{ID: 3, Status: StatusUnlocked},
			},
			want: ErrMalformedSnapshot,
		},
		{
			name: "duplicate ids",
			payload: []StepPayload{
				{ID: 1, Status: StatusCompleted},
				{ID: 1, Status: StatusUnlocked},
			},
			want: ErrMalformedSnapshot,
		},
		{
			name: "ids not starting at one",
			payload: []StepPayload{
				{ID: 2, Status: StatusUnlocked},
			},
			want: ErrMalformedSnapshot,
		},
		{
			name: "malformed step",
			payload: []StepPayload{
				{ID: 1, Status: StatusUnlocked, XP: -10},
			},
			want: ErrMalformedStep,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := FromServerPayload(tt.payload)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			if snap != nil {
				t.Fatalf("expected no snapshot on error")
			}
		})
	}
}

func TestCurrentStep(t *testing.T) {
	snap, err := FromServerPayload(buildPayload(10, 3, true))
	if err != nil {
		t.Fatal(err)
	}
	cur, ok := snap.CurrentStep()
	if !ok || cur.ID != 4 {
		t.Fatalf("CurrentStep() = %+v, %v, want step 4", cur, ok)
	}

	done, err := FromServerPayload(buildPayload(10, 10, false))
	if err != nil {
		t.Fatal(err)
	}
	cur, ok = done.CurrentStep()
	if !ok || cur.ID != 10 {
		t.Fatalf("CurrentStep() on finished journey = %+v, %v, want last step", cur, ok)
	}
	if _, ok := done.UnlockedStep(); ok {
		t.Fatalf("finished journey must not report an unlocked step")
	}

	empty, err := FromServerPayload(nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := empty.CurrentStep(); ok {
		t.Fatalf("empty snapshot must have no current step")
	}
}

func TestCurrentStep_Pure(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		snap, err := FromServerPayload(validPayload(t))
		if err != nil {
			t.Fatal(err)
		}
		a, okA := snap.CurrentStep()
		b, okB := snap.CurrentStep()
		if a != b || okA != okB {
			t.Fatalf("CurrentStep() not stable: %+v/%v vs %+v/%v", a, okA, b, okB)
		}
	})
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		total, completed, want int
	}{
		{10, 4, 40},
		{10, 0, 0},
		{10, 10, 100},
		{3, 1, 33},
		{3, 2, 67},
		{0, 0, 0},
	}
	for _, tt := range tests {
		snap, err := FromServerPayload(buildPayload(tt.total, tt.completed, tt.completed < tt.total))
		if err != nil {
			t.Fatal(err)
		}
		if got := snap.Percentage(); got != tt.want {
			t.Errorf("Percentage() with %d/%d = %d, want %d", tt.completed, tt.total, got, tt.want)
		}
	}
}

func TestDerivedStats_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		payload := validPayload(t)
		snap, err := FromServerPayload(payload)
		if err != nil {
			t.Fatal(err)
		}

		completed, xp := 0, 0
		for _, p := range payload {
			if p.Status == StatusCompleted {
				completed++
				xp += p.XP
			}
		}
		if snap.CompletedCount() != completed {
			t.Fatalf("CompletedCount() = %d, want %d", snap.CompletedCount(), completed)
		}
		if snap.TotalXP() != xp {
			t.Fatalf("TotalXP() = %d, want %d", snap.TotalXP(), xp)
		}
		if p := snap.Percentage(); p < 0 || p > 100 {
			t.Fatalf("Percentage() = %d out of range", p)
		}
		if snap.IsFinished() != (len(payload) > 0 && completed == len(payload)) {
			t.Fatalf("IsFinished() mismatch")
		}
	})
}

func TestSteps_ReturnsCopy(t *testing.T) {
	snap, err := FromServerPayload(buildPayload(3, 1, true))
	if err != nil {
		t.Fatal(err)
	}
	steps := snap.Steps()
	steps[0].Status = StatusLocked
	steps[1].XP = 9999

	again := snap.Steps()
	if again[0].Status != StatusCompleted || again[1].XP == 9999 {
		t.Fatalf("snapshot mutated through Steps() copy")
	}
}

func TestSummary(t *testing.T) {
	snap, err := FromServerPayload(buildPayload(4, 2, true))
	if err != nil {
		t.Fatal(err)
	}
	s := snap.Summary()
	if s.Percentage != 50 || s.Completed != 2 || s.Total != 4 || s.TotalXP != 30 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if s.CurrentStep == nil || s.CurrentStep.ID != 3 {
		t.Fatalf("summary current step = %+v, want step 3", s.CurrentStep)
	}

	done, _ := FromServerPayload(buildPayload(2, 2, false))
	if done.Summary().CurrentStep != nil {
		t.Fatalf("finished summary must have nil current step")
	}
}
