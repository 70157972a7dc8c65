package booking

import (
	"testing"
	"time"

	"bookline/backend/internal/domain"
	"bookline/backend/internal/slotgen"
)

func validationSchedule() domain.Schedule {
	return domain.Schedule{
		Timezone:        "America/Vancouver",
		Weekdays:        []int16{1, 2, 3, 4, 5},
		StartDate:       time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		StartTime:       9 * 60,
		EndTime:         17 * 60,
		SlotDuration:    30,
		EarliestBooking: 1440,
		FarthestBooking: 20160,
	}
}

func TestValidateCandidate(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	// Monday 2024-03-04 09:00 Vancouver is 17:00 UTC.
	valid := time.Date(2024, 3, 4, 17, 0, 0, 0, time.UTC)
	vancouver, err := time.LoadLocation("America/Vancouver")
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name     string
		mutate   func(*domain.Schedule)
		start    time.Time
		duration int
		wantErr  bool
	}{
		{name: "valid first slot", start: valid, duration: 30},
		{name: "non-utc start", start: valid.In(vancouver), duration: 30, wantErr: true},
		{name: "zero-offset zone is not utc", start: valid.In(time.FixedZone("GMT", 0)), duration: 30, wantErr: true},
		{name: "wrong duration", start: valid, duration: 60, wantErr: true},
		{name: "off slot boundary", start: valid.Add(7 * time.Minute), duration: 30, wantErr: true},
		{name: "before window opens", start: time.Date(2024, 3, 4, 16, 30, 0, 0, time.UTC), duration: 30, wantErr: true},
		{
			name:    "crosses window end",
			start:   time.Date(2024, 3, 5, 0, 45, 0, 0, time.UTC), // 16:45 local
			wantErr: true, duration: 30,
		},
		{name: "weekend", start: time.Date(2024, 3, 9, 17, 0, 0, 0, time.UTC), duration: 30, wantErr: true},
		{
			name:     "inside earliest lead",
			start:    time.Date(2024, 3, 1, 17, 0, 0, 0, time.UTC),
			duration: 30, wantErr: true,
		},
		{
			name:     "past farthest horizon",
			start:    time.Date(2024, 3, 18, 17, 0, 0, 0, time.UTC),
			duration: 30, wantErr: true,
		},
		{
			name:   "before schedule start date",
			mutate: func(s *domain.Schedule) { s.StartDate = time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC) },
			start:  valid, duration: 30, wantErr: true,
		},
		{
			name: "after schedule end date",
			mutate: func(s *domain.Schedule) {
				end := time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)
				s.EndDate = &end
			},
			start: valid, duration: 30, wantErr: true,
		},
		{
			name: "invalid timezone",
			mutate: func(s *domain.Schedule) {
				s.Timezone = "Mars/Olympus"
			},
			start: valid, duration: 30, wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := validationSchedule()
			if tc.mutate != nil {
				tc.mutate(&s)
			}
			err := validateCandidate(s, tc.start, tc.duration, now)
			if tc.wantErr && err == nil {
				t.Error("validateCandidate accepted an invalid candidate")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("validateCandidate error: %v", err)
			}
		})
	}
}

// Every slot the generator displays must survive validation, including the
// ones on the horizon's final UTC day whose end spills past now+farthest.
func TestValidateAcceptsAllGeneratedSlots(t *testing.T) {
	s := validationSchedule()
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	slots, err := slotgen.Generate(s, now)
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if len(slots) == 0 {
		t.Fatal("generator produced no slots")
	}

	last := slots[len(slots)-1]
	if want := time.Date(2024, 3, 15, 23, 30, 0, 0, time.UTC); !last.StartTime.UTC().Equal(want) {
		t.Fatalf("last generated slot = %v, want %v", last.StartTime.UTC(), want)
	}

	for _, sl := range slots {
		if err := validateCandidate(s, sl.StartTime.UTC(), sl.Duration, now); err != nil {
			t.Errorf("generated slot %v rejected: %v", sl.StartTime.UTC(), err)
		}
	}
}

func TestValidateCandidateWrappedWindow(t *testing.T) {
	s := validationSchedule()
	s.Timezone = "UTC"
	s.StartTime = 22 * 60
	s.EndTime = 2 * 60
	s.EarliestBooking = 0
	s.Weekdays = []int16{1, 2, 3, 4, 5, 6, 7}
	now := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	// 00:30 sits in the window that opened at 22:00 the day before.
	early := time.Date(2024, 3, 5, 0, 30, 0, 0, time.UTC)
	if err := validateCandidate(s, early, 30, now); err != nil {
		t.Errorf("post-midnight slot rejected: %v", err)
	}

	outside := time.Date(2024, 3, 5, 3, 0, 0, 0, time.UTC)
	if err := validateCandidate(s, outside, 30, now); err == nil {
		t.Error("slot after the wrapped window accepted")
	}
}
