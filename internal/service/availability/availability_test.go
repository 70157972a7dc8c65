package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"bookline/backend/internal/domain"
	"bookline/backend/internal/remote"
	"bookline/backend/internal/store"
)

type fakeScheduleReader struct {
	scheduleByID                func(ctx context.Context, id uuid.UUID) (domain.Schedule, error)
	activeScheduleForSubscriber func(ctx context.Context, id uuid.UUID) (domain.Schedule, error)
	subscriberByUsername        func(ctx context.Context, username string) (domain.Subscriber, error)
	subscriberByID              func(ctx context.Context, id uuid.UUID) (domain.Subscriber, error)
	calendarByID                func(ctx context.Context, id uuid.UUID) (domain.Calendar, error)
	connectionByID              func(ctx context.Context, id uuid.UUID) (domain.ExternalConnection, error)
}

func (f *fakeScheduleReader) ScheduleByID(ctx context.Context, id uuid.UUID) (domain.Schedule, error) {
	return f.scheduleByID(ctx, id)
}

func (f *fakeScheduleReader) ActiveScheduleForSubscriber(ctx context.Context, id uuid.UUID) (domain.Schedule, error) {
	return f.activeScheduleForSubscriber(ctx, id)
}

func (f *fakeScheduleReader) SubscriberByUsername(ctx context.Context, username string) (domain.Subscriber, error) {
	return f.subscriberByUsername(ctx, username)
}

func (f *fakeScheduleReader) SubscriberByID(ctx context.Context, id uuid.UUID) (domain.Subscriber, error) {
	return f.subscriberByID(ctx, id)
}

func (f *fakeScheduleReader) CalendarByID(ctx context.Context, id uuid.UUID) (domain.Calendar, error) {
	return f.calendarByID(ctx, id)
}

func (f *fakeScheduleReader) ConnectionByID(ctx context.Context, id uuid.UUID) (domain.ExternalConnection, error) {
	return f.connectionByID(ctx, id)
}

type fakeSlotRepo struct {
	locallyHeld func(ctx context.Context, scheduleID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Slot, error)
}

func (f *fakeSlotRepo) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.BookingTx) error) error {
	return errors.New("not implemented")
}

func (f *fakeSlotRepo) LocallyHeld(ctx context.Context, scheduleID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Slot, error) {
	return f.locallyHeld(ctx, scheduleID, windowStart, windowEnd)
}

func (f *fakeSlotRepo) ExpiredRequested(ctx context.Context, now time.Time) ([]domain.Slot, error) {
	return nil, nil
}

func (f *fakeSlotRepo) AppointmentByID(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	return domain.Appointment{}, store.ErrNotFound
}

func (f *fakeSlotRepo) AttendeeByID(ctx context.Context, id uuid.UUID) (domain.Attendee, error) {
	return domain.Attendee{}, store.ErrNotFound
}

type fakeRemote struct {
	listBusy func(ctx context.Context, start, end time.Time) ([]remote.BusyInterval, error)
}

func (f *fakeRemote) ListBusy(ctx context.Context, start, end time.Time) ([]remote.BusyInterval, error) {
	return f.listBusy(ctx, start, end)
}

func (f *fakeRemote) SaveEvent(ctx context.Context, ev remote.Event) (remote.SavedEvent, error) {
	return remote.SavedEvent{}, errors.New("not implemented")
}

func (f *fakeRemote) DeleteEvent(ctx context.Context, ref string) error {
	return errors.New("not implemented")
}

var (
	testCalendarID   = uuid.MustParse("00000000-0000-0000-0000-0000000000a1")
	testConnectionID = uuid.MustParse("00000000-0000-0000-0000-0000000000a2")
	testSubscriberID = uuid.MustParse("00000000-0000-0000-0000-0000000000a3")
	testScheduleID   = uuid.MustParse("00000000-0000-0000-0000-0000000000a4")
)

func testSchedule() domain.Schedule {
	return domain.Schedule{
		ID:              testScheduleID,
		CalendarID:      testCalendarID,
		Active:          true,
		Name:            "office hours",
		Timezone:        "UTC",
		Weekdays:        []int16{1, 2, 3, 4, 5},
		StartDate:       time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		StartTime:       9 * 60,
		EndTime:         11 * 60,
		SlotDuration:    60,
		FarthestBooking: 24 * 60,
	}
}

func newTestService(repo *fakeSlotRepo, client remote.Client, now time.Time) *Service {
	reader := &fakeScheduleReader{
		calendarByID: func(ctx context.Context, id uuid.UUID) (domain.Calendar, error) {
			return domain.Calendar{ID: testCalendarID, SubscriberID: testSubscriberID, ConnectionID: testConnectionID, Connected: true}, nil
		},
		connectionByID: func(ctx context.Context, id uuid.UUID) (domain.ExternalConnection, error) {
			return domain.ExternalConnection{ID: testConnectionID}, nil
		},
	}
	factory := func(ctx context.Context, cal domain.Calendar, conn domain.ExternalConnection) (remote.Client, error) {
		return client, nil
	}
	svc := New(reader, repo, nil, factory, nil)
	svc.now = func() time.Time { return now }
	return svc
}

func TestOpeningsMergesBusyAndHeld(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	// The 24h horizon ends during 2026-03-03, whose whole day is still
	// offered: candidates are 09:00 and 10:00 UTC on both days.
	busyClient := &fakeRemote{
		listBusy: func(ctx context.Context, start, end time.Time) ([]remote.BusyInterval, error) {
			return []remote.BusyInterval{{
				Start: time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC),
				End:   time.Date(2026, 3, 2, 9, 45, 0, 0, time.UTC),
			}}, nil
		},
	}
	repo := &fakeSlotRepo{
		locallyHeld: func(ctx context.Context, scheduleID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Slot, error) {
			if scheduleID != testScheduleID {
				t.Errorf("LocallyHeld schedule = %s, want %s", scheduleID, testScheduleID)
			}
			return nil, nil
		},
	}

	slots, err := newTestService(repo, busyClient, now).Openings(ctx, testSchedule())
	if err != nil {
		t.Fatalf("Openings error: %v", err)
	}
	if len(slots) != 4 {
		t.Fatalf("got %d slots, want 4", len(slots))
	}
	if slots[0].BookingStatus != domain.BookingStatusBooked {
		t.Errorf("slot 0 status = %s, want booked marker", slots[0].BookingStatus)
	}
	for i, s := range slots[1:] {
		if s.BookingStatus != domain.BookingStatusNone {
			t.Errorf("slot %d status = %s, want none", i+1, s.BookingStatus)
		}
	}
}

func TestOpeningsPropagatesRemoteError(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	failing := &fakeRemote{
		listBusy: func(ctx context.Context, start, end time.Time) ([]remote.BusyInterval, error) {
			return nil, remote.ErrUnavailable
		},
	}
	repo := &fakeSlotRepo{
		locallyHeld: func(ctx context.Context, scheduleID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Slot, error) {
			return nil, nil
		},
	}

	_, err := newTestService(repo, failing, now).Openings(ctx, testSchedule())
	if !errors.Is(err, remote.ErrUnavailable) {
		t.Fatalf("Openings error = %v, want %v", err, remote.ErrUnavailable)
	}
}

func TestIsFree(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	slotStart := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	heldSlot := domain.Slot{
		StartTime:     slotStart,
		Duration:      60,
		BookingStatus: domain.BookingStatusRequested,
	}

	cases := []struct {
		name string
		busy []remote.BusyInterval
		held []domain.Slot
		want bool
	}{
		{name: "free", want: true},
		{
			name: "remote busy overlaps",
			busy: []remote.BusyInterval{{
				Start: time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC),
				End:   time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC),
			}},
			want: false,
		},
		{name: "locally held", held: []domain.Slot{heldSlot}, want: false},
		{
			name: "busy only touches the edge",
			busy: []remote.BusyInterval{{
				Start: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
				End:   time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC),
			}},
			want: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := &fakeRemote{
				listBusy: func(ctx context.Context, start, end time.Time) ([]remote.BusyInterval, error) {
					return tc.busy, nil
				},
			}
			repo := &fakeSlotRepo{
				locallyHeld: func(ctx context.Context, scheduleID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Slot, error) {
					return tc.held, nil
				},
			}
			free, err := newTestService(repo, client, now).IsFree(ctx, testSchedule(), slotStart, 60)
			if err != nil {
				t.Fatalf("IsFree error: %v", err)
			}
			if free != tc.want {
				t.Errorf("IsFree = %v, want %v", free, tc.want)
			}
		})
	}
}
