// Package availability composes the bookable-slot pipeline: rule-based
// candidates, remote busy intervals and locally held slots merged into the
// view the public surface serves.
package availability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bookline/backend/internal/cache"
	"bookline/backend/internal/domain"
	"bookline/backend/internal/reconcile"
	"bookline/backend/internal/remote"
	"bookline/backend/internal/remote/providers"
	"bookline/backend/internal/slotgen"
	"bookline/backend/internal/store"
)

type Service struct {
	schedules store.ScheduleReader
	slots     store.SlotRepository
	cache     *cache.EventCache
	clients   providers.Factory
	now       func() time.Time
	log       *slog.Logger
}

func New(schedules store.ScheduleReader, slots store.SlotRepository, eventCache *cache.EventCache, clients providers.Factory, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		schedules: schedules,
		slots:     slots,
		cache:     eventCache,
		clients:   clients,
		now:       time.Now,
		log:       log.With(slog.String("component", "availability")),
	}
}

// Openings returns the schedule's slots over the booking horizon: free
// candidates in status none and blocked stretches fused into booked
// markers, sorted by start.
func (s *Service) Openings(ctx context.Context, schedule domain.Schedule) ([]domain.Slot, error) {
	candidates, err := slotgen.Generate(schedule, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	windowStart := candidates[0].StartTime
	windowEnd := candidates[len(candidates)-1].EndTime()

	cal, client, err := s.resolveClient(ctx, schedule)
	if err != nil {
		return nil, err
	}
	busy, err := s.cache.WrapClient(client, cal.SubscriberID, cal.ID).ListBusy(ctx, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}

	held, err := s.slots.LocallyHeld(ctx, schedule.ID, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}

	return reconcile.Merge(candidates, busy, held), nil
}

// IsFree re-checks a single slot right before it is written. The cached
// busy intervals are busted first so the remote read is fresh; a stale
// cache must never approve a write.
func (s *Service) IsFree(ctx context.Context, schedule domain.Schedule, slotStart time.Time, duration int) (bool, error) {
	slotEnd := slotStart.Add(time.Duration(duration) * time.Minute)

	cal, client, err := s.resolveClient(ctx, schedule)
	if err != nil {
		return false, err
	}
	if err := s.cache.Bust(ctx, cal.SubscriberID, cal.ID); err != nil {
		// Busting is best effort; the uncached client below reads fresh
		// regardless.
		s.log.Warn("cache bust failed", slog.Any("err", err))
	}

	busy, err := client.ListBusy(ctx, slotStart, slotEnd)
	if err != nil {
		return false, err
	}

	held, err := s.slots.LocallyHeld(ctx, schedule.ID, slotStart, slotEnd)
	if err != nil {
		return false, err
	}

	return !reconcile.Overlaps(slotStart, slotEnd, busy, held), nil
}

// BustCalendar drops the subscriber's cached intervals for the schedule's
// calendar, typically after a remote write changed what is busy.
func (s *Service) BustCalendar(ctx context.Context, schedule domain.Schedule) {
	cal, err := s.schedules.CalendarByID(ctx, schedule.CalendarID)
	if err != nil {
		return
	}
	if err := s.cache.Bust(ctx, cal.SubscriberID, cal.ID); err != nil {
		s.log.Warn("cache bust failed", slog.Any("err", err))
	}
}

func (s *Service) resolveClient(ctx context.Context, schedule domain.Schedule) (domain.Calendar, remote.Client, error) {
	cal, err := s.schedules.CalendarByID(ctx, schedule.CalendarID)
	if err != nil {
		return domain.Calendar{}, nil, fmt.Errorf("load calendar: %w", err)
	}
	conn, err := s.schedules.ConnectionByID(ctx, cal.ConnectionID)
	if err != nil {
		return domain.Calendar{}, nil, fmt.Errorf("load connection: %w", err)
	}
	client, err := s.clients(ctx, cal, conn)
	if err != nil {
		return domain.Calendar{}, nil, err
	}
	return cal, client, nil
}
