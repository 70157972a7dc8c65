package postgres

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"bookline/backend/internal/domain"
	"bookline/backend/internal/store"
)

func TestPostgresIntegration_SlotLifecycle(t *testing.T) {
	databaseURL := strings.TrimSpace(os.Getenv("BOOKLINE_TEST_DATABASE_URL"))
	if databaseURL == "" {
		t.Skip("BOOKLINE_TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := Open(ctx, databaseURL, PoolConfig{MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() {
		_ = Close(db)
	})

	schema := "bookline_test_" + randomHex(t, 8)
	t.Cleanup(func() {
		cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer ccancel()
		_, _ = db.NewRaw("DROP SCHEMA IF EXISTS " + schema + " CASCADE").Exec(cctx)
	})

	err = db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewRaw("CREATE SCHEMA " + schema).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewRaw("SET LOCAL search_path TO " + schema).Exec(ctx); err != nil {
			return err
		}
		if err := applyMigrations(ctx, tx); err != nil {
			return err
		}

		sub := domain.Subscriber{
			ID:            uuid.MustParse("00000000-0000-0000-0000-000000000011"),
			Username:      "host",
			Email:         "host@example.com",
			Name:          "Host",
			Timezone:      "America/Vancouver",
			ShortLinkHash: "abcd",
		}
		if _, err := tx.NewInsert().Model(&sub).Exec(ctx); err != nil {
			return err
		}
		conn := domain.ExternalConnection{
			ID:           uuid.MustParse("00000000-0000-0000-0000-000000000012"),
			SubscriberID: sub.ID,
			Provider:     domain.CalendarProviderCalDAV,
			Name:         "dav",
			Token:        "pw",
		}
		if _, err := tx.NewInsert().Model(&conn).Exec(ctx); err != nil {
			return err
		}
		cal := domain.Calendar{
			ID:           uuid.MustParse("00000000-0000-0000-0000-000000000013"),
			SubscriberID: sub.ID,
			ConnectionID: conn.ID,
			Provider:     domain.CalendarProviderCalDAV,
			Title:        "work",
			URL:          "https://dav.example.com/cal/",
			Connected:    true,
		}
		if _, err := tx.NewInsert().Model(&cal).Exec(ctx); err != nil {
			return err
		}
		sched := domain.Schedule{
			ID:           uuid.MustParse("00000000-0000-0000-0000-000000000014"),
			CalendarID:   cal.ID,
			Active:       true,
			Name:         "office hours",
			Timezone:     "America/Vancouver",
			Weekdays:     []int16{1, 2, 3, 4, 5},
			StartDate:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			StartTime:    9 * 60,
			EndTime:      17 * 60,
			SlotDuration: 30,
		}
		if _, err := tx.NewInsert().Model(&sched).Exec(ctx); err != nil {
			return err
		}

		bt := bookingTx{tx: tx}
		start := time.Date(2026, 1, 5, 17, 0, 0, 0, time.UTC)
		expires := start.Add(24 * time.Hour)

		s1, err := bt.InsertRequested(ctx, domain.Slot{
			ID:               uuid.MustParse("00000000-0000-0000-0000-000000000021"),
			ScheduleID:       &sched.ID,
			StartTime:        start,
			Duration:         30,
			BookingTkn:       "tkn-1",
			BookingExpiresAt: &expires,
		})
		if err != nil {
			return err
		}

		// Same (schedule, start, duration) must conflict.
		_, err = bt.InsertRequested(ctx, domain.Slot{
			ID:               uuid.MustParse("00000000-0000-0000-0000-000000000022"),
			ScheduleID:       &sched.ID,
			StartTime:        start,
			Duration:         30,
			BookingTkn:       "tkn-2",
			BookingExpiresAt: &expires,
		})
		if err != store.ErrConflict {
			return fmt.Errorf("duplicate insert err = %v, want %v", err, store.ErrConflict)
		}

		locked, err := bt.SlotForDecision(ctx, s1.ID, "tkn-1", start)
		if err != nil {
			return err
		}
		if locked.ID != s1.ID {
			return fmt.Errorf("locked id = %s, want %s", locked.ID, s1.ID)
		}

		if _, err := bt.SlotForDecision(ctx, s1.ID, "wrong", start); err != store.ErrNotFound {
			return fmt.Errorf("wrong token err = %v, want %v", err, store.ErrNotFound)
		}
		if _, err := bt.SlotForDecision(ctx, s1.ID, "tkn-1", expires.Add(time.Minute)); err != store.ErrNotFound {
			return fmt.Errorf("expired err = %v, want %v", err, store.ErrNotFound)
		}

		if err := bt.MarkBooked(ctx, s1.ID, "", "https://meet.example.com/x"); err != nil {
			return err
		}
		if err := bt.MarkBooked(ctx, s1.ID, "", ""); err != store.ErrNotFound {
			return fmt.Errorf("second MarkBooked err = %v, want %v", err, store.ErrNotFound)
		}

		// Booked slot still occupies the uniqueness predicate.
		_, err = bt.InsertRequested(ctx, domain.Slot{
			ID:               uuid.MustParse("00000000-0000-0000-0000-000000000023"),
			ScheduleID:       &sched.ID,
			StartTime:        start,
			Duration:         30,
			BookingTkn:       "tkn-3",
			BookingExpiresAt: &expires,
		})
		if err != store.ErrConflict {
			return fmt.Errorf("insert over booked err = %v, want %v", err, store.ErrConflict)
		}

		if err := bt.DeleteSlot(ctx, s1.ID); err != nil {
			return err
		}
		if err := bt.DeleteSlot(ctx, s1.ID); err != store.ErrNotFound {
			return fmt.Errorf("second delete err = %v, want %v", err, store.ErrNotFound)
		}

		return nil
	})
	if err != nil {
		t.Fatalf("integration scenario failed: %v", err)
	}
}

func randomHex(t *testing.T, n int) string {
	t.Helper()
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand.Read error: %v", err)
	}
	return hex.EncodeToString(b)
}

type rawExecutor interface {
	NewRaw(query string, args ...interface{}) *bun.RawQuery
}

func applyMigrations(ctx context.Context, exec rawExecutor) error {
	dir, err := migrationsDir()
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	type mig struct {
		name string
		path string
	}
	migs := make([]mig, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		migs = append(migs, mig{name: e.Name(), path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(migs, func(i, j int) bool { return migs[i].name < migs[j].name })

	for _, m := range migs {
		b, err := os.ReadFile(m.path)
		if err != nil {
			return err
		}
		upSQL, err := extractGooseUp(string(b))
		if err != nil {
			return err
		}
		for _, stmt := range splitSQLStatements(upSQL) {
			if _, err := exec.NewRaw(stmt).Exec(ctx); err != nil {
				return fmt.Errorf("%s: %w", m.name, err)
			}
		}
	}
	return nil
}

func migrationsDir() (string, error) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("runtime.Caller failed")
	}
	base := filepath.Dir(file)
	return filepath.Clean(filepath.Join(base, "..", "..", "..", "migrations")), nil
}

func extractGooseUp(sql string) (string, error) {
	upMarker := "-- +goose Up"
	downMarker := "-- +goose Down"

	upIdx := strings.Index(sql, upMarker)
	if upIdx < 0 {
		return "", fmt.Errorf("missing goose up marker")
	}
	afterUp := strings.TrimLeft(sql[upIdx+len(upMarker):], "\r\n")

	downIdx := strings.Index(afterUp, downMarker)
	if downIdx < 0 {
		return strings.TrimSpace(afterUp), nil
	}
	return strings.TrimSpace(afterUp[:downIdx]), nil
}

func splitSQLStatements(sql string) []string {
	parts := strings.Split(sql, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
