// ABOUTME: Tests for food log creation, soft delete/restore, the daily cap, and pruning
// ABOUTME: Every mutation is checked against the cached daily summary it maintains

package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestLogSystemFoodSnapshotsNameAndMacros(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	user := newTestUser(t, store)

	log, err := store.LogSystemFood(ctx, user.ID, "pho-bo", PortionMedium)
	if err != nil {
		t.Fatalf("LogSystemFood failed: %v", err)
	}

	if log.NameSnapshot != "Phở bò" {
		t.Errorf("NameSnapshot mismatch: got %q, want %q", log.NameSnapshot, "Phở bò")
	}
	if log.Kcal != 450 || log.Protein != 25 {
		t.Errorf("macros mismatch: got kcal=%d protein=%f", log.Kcal, log.Protein)
	}
	if log.FoodType != FoodTypeSystem || log.Portion != PortionMedium {
		t.Errorf("log identity mismatch: %+v", log)
	}
	if log.LoggedDate != log.LoggedAt.Format(DateLayout) {
		t.Errorf("LoggedDate %q does not match LoggedAt %v", log.LoggedDate, log.LoggedAt)
	}
}

func TestLogSystemFoodInvalidPortion(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	user := newTestUser(t, store)
	if _, err := store.LogSystemFood(context.Background(), user.ID, "pho-bo", PortionSingle); err == nil {
		t.Error("expected error for invalid portion")
	}
}

func TestLogCustomFood(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	user := newTestUser(t, store)

	food, err := store.CreateCustomFood(ctx, &CustomFood{
		UserID: user.ID, Name: "Xôi mặn", Kcal: 520, Protein: 15, Fat: 18, Carbs: 72,
	})
	if err != nil {
		t.Fatalf("CreateCustomFood failed: %v", err)
	}

	log, err := store.LogCustomFood(ctx, user.ID, food.ID)
	if err != nil {
		t.Fatalf("LogCustomFood failed: %v", err)
	}
	if log.Portion != PortionSingle {
		t.Errorf("Portion mismatch: got %q, want %q", log.Portion, PortionSingle)
	}
	if log.NameSnapshot != "Xôi mặn" || log.Kcal != 520 {
		t.Errorf("snapshot mismatch: %+v", log)
	}
}

func TestDeleteLogUpdatesSummary(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	user := newTestUser(t, store)

	first, err := store.CreateLog(ctx, &FoodLog{
		UserID: user.ID, FoodType: FoodTypeSystem, FoodID: "com-tam",
		Portion: PortionLarge, NameSnapshot: "Cơm tấm", Kcal: 800, Protein: 34, Fat: 26, Carbs: 90,
	})
	if err != nil {
		t.Fatalf("CreateLog failed: %v", err)
	}
	second, err := store.CreateLog(ctx, &FoodLog{
		UserID: user.ID, FoodType: FoodTypeSystem, FoodID: "pho-bo",
		Portion: PortionMedium, NameSnapshot: "Phở bò", Kcal: 400, Protein: 25, Fat: 9, Carbs: 58,
	})
	if err != nil {
		t.Fatalf("CreateLog failed: %v", err)
	}

	summary, err := store.GetDailySummary(ctx, user.ID, first.LoggedDate)
	if err != nil {
		t.Fatalf("GetDailySummary failed: %v", err)
	}
	if summary.TotalKcal != 1200 || summary.LogCount != 2 {
		t.Errorf("summary mismatch: got kcal=%d count=%d, want 1200/2", summary.TotalKcal, summary.LogCount)
	}

	if err := store.DeleteLog(ctx, user.ID, second.ID); err != nil {
		t.Fatalf("DeleteLog failed: %v", err)
	}

	summary, err = store.GetDailySummary(ctx, user.ID, first.LoggedDate)
	if err != nil {
		t.Fatalf("GetDailySummary after delete failed: %v", err)
	}
	if summary.TotalKcal != 800 || summary.LogCount != 1 {
		t.Errorf("summary mismatch after delete: got kcal=%d count=%d, want 800/1", summary.TotalKcal, summary.LogCount)
	}

	// The row survives soft deletion for undo.
	got, err := store.GetLog(ctx, user.ID, second.ID)
	if err != nil {
		t.Fatalf("GetLog failed: %v", err)
	}
	if got.DeletedAt == nil {
		t.Error("expected DeletedAt to be set")
	}
}

func TestRestoreLogUpdatesSummary(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	user := newTestUser(t, store)

	log, err := store.LogSystemFood(ctx, user.ID, "pho-bo", PortionMedium)
	if err != nil {
		t.Fatalf("LogSystemFood failed: %v", err)
	}
	if err := store.DeleteLog(ctx, user.ID, log.ID); err != nil {
		t.Fatalf("DeleteLog failed: %v", err)
	}
	if err := store.RestoreLog(ctx, user.ID, log.ID); err != nil {
		t.Fatalf("RestoreLog failed: %v", err)
	}

	summary, err := store.GetDailySummary(ctx, user.ID, log.LoggedDate)
	if err != nil {
		t.Fatalf("GetDailySummary failed: %v", err)
	}
	if summary.TotalKcal != 450 || summary.LogCount != 1 {
		t.Errorf("summary mismatch after restore: got kcal=%d count=%d", summary.TotalKcal, summary.LogCount)
	}

	got, err := store.GetLog(ctx, user.ID, log.ID)
	if err != nil {
		t.Fatalf("GetLog failed: %v", err)
	}
	if got.DeletedAt != nil {
		t.Error("expected DeletedAt to be cleared")
	}
}

func TestDeleteLogNotFound(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	user := newTestUser(t, store)
	if err := store.DeleteLog(context.Background(), user.ID, "no-such-log"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDailyLogLimit(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	user := newTestUser(t, store)

	for i := 0; i < MaxLogsPerDay; i++ {
		if _, err := store.LogSystemFood(ctx, user.ID, "ca-phe-sua-da", PortionSmall); err != nil {
			t.Fatalf("LogSystemFood %d failed: %v", i, err)
		}
	}

	_, err := store.LogSystemFood(ctx, user.ID, "ca-phe-sua-da", PortionSmall)
	if !errors.Is(err, ErrLimitReached) {
		t.Fatalf("expected ErrLimitReached, got %v", err)
	}

	// The failed insert must not touch the summary.
	summary, err := store.GetTodaySummary(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetTodaySummary failed: %v", err)
	}
	if summary.LogCount != MaxLogsPerDay {
		t.Errorf("LogCount mismatch: got %d, want %d", summary.LogCount, MaxLogsPerDay)
	}
	if summary.TotalKcal != MaxLogsPerDay*90 {
		t.Errorf("TotalKcal mismatch: got %d, want %d", summary.TotalKcal, MaxLogsPerDay*90)
	}
}

func TestRestoreLogRespectsDailyLimit(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	user := newTestUser(t, store)

	first, err := store.LogSystemFood(ctx, user.ID, "ca-phe-sua-da", PortionSmall)
	if err != nil {
		t.Fatalf("LogSystemFood failed: %v", err)
	}
	if err := store.DeleteLog(ctx, user.ID, first.ID); err != nil {
		t.Fatalf("DeleteLog failed: %v", err)
	}

	// Fill the day back up to the cap while the first log sits deleted.
	for i := 0; i < MaxLogsPerDay; i++ {
		if _, err := store.LogSystemFood(ctx, user.ID, "ca-phe-sua-da", PortionSmall); err != nil {
			t.Fatalf("LogSystemFood %d failed: %v", i, err)
		}
	}

	if err := store.RestoreLog(ctx, user.ID, first.ID); !errors.Is(err, ErrLimitReached) {
		t.Errorf("expected ErrLimitReached on restore into full day, got %v", err)
	}
}

func TestListLogsForDate(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	user := newTestUser(t, store)
	day := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if _, err := store.CreateLog(ctx, &FoodLog{
			UserID: user.ID, FoodType: FoodTypeSystem, FoodID: "pho-bo",
			Portion: PortionMedium, NameSnapshot: "Phở bò", Kcal: 450,
			LoggedAt: day.Add(time.Duration(i) * time.Hour),
		}); err != nil {
			t.Fatalf("CreateLog %d failed: %v", i, err)
		}
	}
	// A log on another day stays out of the listing.
	if _, err := store.CreateLog(ctx, &FoodLog{
		UserID: user.ID, FoodType: FoodTypeSystem, FoodID: "pho-bo",
		Portion: PortionMedium, NameSnapshot: "Phở bò", Kcal: 450,
		LoggedAt: day.AddDate(0, 0, 1),
	}); err != nil {
		t.Fatalf("CreateLog failed: %v", err)
	}

	logs, err := store.ListLogsForDate(ctx, user.ID, "2026-03-10")
	if err != nil {
		t.Fatalf("ListLogsForDate failed: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("log count mismatch: got %d, want 3", len(logs))
	}
	for i := 1; i < len(logs); i++ {
		if logs[i-1].LoggedAt.After(logs[i].LoggedAt) {
			t.Error("logs not ordered oldest first")
		}
	}

	deleted := logs[0]
	if err := store.DeleteLog(ctx, user.ID, deleted.ID); err != nil {
		t.Fatalf("DeleteLog failed: %v", err)
	}
	logs, err = store.ListLogsForDate(ctx, user.ID, "2026-03-10")
	if err != nil {
		t.Fatalf("ListLogsForDate failed: %v", err)
	}
	if len(logs) != 2 {
		t.Errorf("expected deleted log excluded, got %d logs", len(logs))
	}
}

func TestListLogsBetween(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	user := newTestUser(t, store)

	for day := 1; day <= 5; day++ {
		if _, err := store.CreateLog(ctx, &FoodLog{
			UserID: user.ID, FoodType: FoodTypeSystem, FoodID: "pho-bo",
			Portion: PortionMedium, NameSnapshot: "Phở bò", Kcal: 450,
			LoggedAt: time.Date(2026, 3, day, 12, 0, 0, 0, time.UTC),
		}); err != nil {
			t.Fatalf("CreateLog day %d failed: %v", day, err)
		}
	}

	logs, err := store.ListLogsBetween(ctx, user.ID, "2026-03-02", "2026-03-04")
	if err != nil {
		t.Fatalf("ListLogsBetween failed: %v", err)
	}
	if len(logs) != 3 {
		t.Errorf("log count mismatch: got %d, want 3", len(logs))
	}
}

func TestPruneOldLogsKeepsSummaries(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	user := newTestUser(t, store)
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	setClock(store, now)

	oldDay := now.AddDate(0, 0, -(LogRetentionDays + 5))
	old, err := store.CreateLog(ctx, &FoodLog{
		UserID: user.ID, FoodType: FoodTypeSystem, FoodID: "pho-bo",
		Portion: PortionMedium, NameSnapshot: "Phở bò", Kcal: 450,
		LoggedAt: oldDay,
	})
	if err != nil {
		t.Fatalf("CreateLog failed: %v", err)
	}
	recent, err := store.CreateLog(ctx, &FoodLog{
		UserID: user.ID, FoodType: FoodTypeSystem, FoodID: "pho-bo",
		Portion: PortionMedium, NameSnapshot: "Phở bò", Kcal: 450,
		LoggedAt: now.AddDate(0, 0, -2),
	})
	if err != nil {
		t.Fatalf("CreateLog failed: %v", err)
	}

	pruned, err := store.PruneOldLogs(ctx, user.ID)
	if err != nil {
		t.Fatalf("PruneOldLogs failed: %v", err)
	}
	if pruned != 1 {
		t.Errorf("pruned count mismatch: got %d, want 1", pruned)
	}

	if _, err := store.GetLog(ctx, user.ID, old.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected old log gone, got %v", err)
	}
	if _, err := store.GetLog(ctx, user.ID, recent.ID); err != nil {
		t.Errorf("recent log should survive: %v", err)
	}

	// The pruned day's cached summary outlives its raw logs.
	summary, err := store.GetDailySummary(ctx, user.ID, old.LoggedDate)
	if err != nil {
		t.Fatalf("GetDailySummary failed: %v", err)
	}
	if summary.TotalKcal != 450 {
		t.Errorf("summary mismatch: got kcal=%d, want 450", summary.TotalKcal)
	}
}
