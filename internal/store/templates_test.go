// ABOUTME: Tests for meal templates: caps, cached totals, and one-tap logging
// ABOUTME: Template expansion must be all-or-nothing against the daily cap

package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func breakfastItems() []*TemplateItem {
	return []*TemplateItem{
		{FoodType: FoodTypeSystem, FoodID: "pho-bo", Portion: PortionMedium,
			NameSnapshot: "Phở bò", Kcal: 450, Protein: 25, Fat: 9, Carbs: 58, IsRequired: true},
		{FoodType: FoodTypeSystem, FoodID: "ca-phe-sua-da", Portion: PortionSmall,
			NameSnapshot: "Cà phê sữa đá", Kcal: 90, Protein: 1.5, Fat: 2, Carbs: 17, IsRequired: false},
	}
}

func TestCreateTemplateComputesTotals(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	user := newTestUser(t, store)

	tpl, err := store.CreateTemplate(ctx, user.ID, "Breakfast", "weekday morning", breakfastItems())
	if err != nil {
		t.Fatalf("CreateTemplate failed: %v", err)
	}
	if tpl.TotalKcal != 540 {
		t.Errorf("TotalKcal mismatch: got %d, want 540", tpl.TotalKcal)
	}

	got, err := store.GetTemplate(ctx, user.ID, tpl.ID)
	if err != nil {
		t.Fatalf("GetTemplate failed: %v", err)
	}
	if got.Name != "Breakfast" || got.Description != "weekday morning" {
		t.Errorf("template mismatch: %+v", got)
	}
	if len(got.Items) != 2 {
		t.Fatalf("item count mismatch: got %d, want 2", len(got.Items))
	}
	for i, item := range got.Items {
		if item.SortOrder != i {
			t.Errorf("item %d SortOrder mismatch: got %d", i, item.SortOrder)
		}
	}
	if got.Items[0].FoodID != "pho-bo" || !got.Items[0].IsRequired {
		t.Errorf("first item mismatch: %+v", got.Items[0])
	}
	if got.Items[1].IsRequired {
		t.Error("second item should be optional")
	}
}

func TestCreateTemplateItemLimit(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	user := newTestUser(t, store)
	items := make([]*TemplateItem, MaxItemsPerTemplate+1)
	for i := range items {
		items[i] = &TemplateItem{
			FoodType: FoodTypeSystem, FoodID: "pho-bo", Portion: PortionSmall,
			NameSnapshot: "Phở bò", Kcal: 350, IsRequired: true,
		}
	}

	_, err := store.CreateTemplate(context.Background(), user.ID, "Too big", "", items)
	if !errors.Is(err, ErrLimitReached) {
		t.Errorf("expected ErrLimitReached, got %v", err)
	}
}

func TestCreateTemplateLimit(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	user := newTestUser(t, store)

	for i := 0; i < MaxTemplatesPerUser; i++ {
		if _, err := store.CreateTemplate(ctx, user.ID, fmt.Sprintf("tpl-%d", i), "", breakfastItems()); err != nil {
			t.Fatalf("CreateTemplate %d failed: %v", i, err)
		}
	}

	_, err := store.CreateTemplate(ctx, user.ID, "over-cap", "", breakfastItems())
	if !errors.Is(err, ErrLimitReached) {
		t.Errorf("expected ErrLimitReached, got %v", err)
	}

	// Deleting one frees a slot.
	templates, err := store.ListTemplates(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListTemplates failed: %v", err)
	}
	if err := store.DeleteTemplate(ctx, user.ID, templates[0].ID); err != nil {
		t.Fatalf("DeleteTemplate failed: %v", err)
	}
	if _, err := store.CreateTemplate(ctx, user.ID, "fits-now", "", breakfastItems()); err != nil {
		t.Errorf("CreateTemplate after delete failed: %v", err)
	}
}

func TestDeleteTemplateHidesIt(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	user := newTestUser(t, store)

	tpl, err := store.CreateTemplate(ctx, user.ID, "Breakfast", "", breakfastItems())
	if err != nil {
		t.Fatalf("CreateTemplate failed: %v", err)
	}
	if err := store.DeleteTemplate(ctx, user.ID, tpl.ID); err != nil {
		t.Fatalf("DeleteTemplate failed: %v", err)
	}

	if _, err := store.GetTemplate(ctx, user.ID, tpl.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.DeleteTemplate(ctx, user.ID, tpl.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestLogTemplateRequiredOnly(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	user := newTestUser(t, store)

	tpl, err := store.CreateTemplate(ctx, user.ID, "Breakfast", "", breakfastItems())
	if err != nil {
		t.Fatalf("CreateTemplate failed: %v", err)
	}

	logs, err := store.LogTemplate(ctx, user.ID, tpl.ID, false)
	if err != nil {
		t.Fatalf("LogTemplate failed: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("log count mismatch: got %d, want 1", len(logs))
	}
	if logs[0].FoodID != "pho-bo" {
		t.Errorf("logged item mismatch: got %q", logs[0].FoodID)
	}

	summary, err := store.GetTodaySummary(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetTodaySummary failed: %v", err)
	}
	if summary.TotalKcal != 450 || summary.LogCount != 1 {
		t.Errorf("summary mismatch: got kcal=%d count=%d", summary.TotalKcal, summary.LogCount)
	}

	got, err := store.GetTemplate(ctx, user.ID, tpl.ID)
	if err != nil {
		t.Fatalf("GetTemplate failed: %v", err)
	}
	if got.UseCount != 1 {
		t.Errorf("UseCount mismatch: got %d, want 1", got.UseCount)
	}
	if got.LastUsedAt == nil {
		t.Error("expected LastUsedAt to be set")
	}
}

func TestLogTemplateWithOptional(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	user := newTestUser(t, store)

	tpl, err := store.CreateTemplate(ctx, user.ID, "Breakfast", "", breakfastItems())
	if err != nil {
		t.Fatalf("CreateTemplate failed: %v", err)
	}

	logs, err := store.LogTemplate(ctx, user.ID, tpl.ID, true)
	if err != nil {
		t.Fatalf("LogTemplate failed: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("log count mismatch: got %d, want 2", len(logs))
	}

	summary, err := store.GetTodaySummary(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetTodaySummary failed: %v", err)
	}
	if summary.TotalKcal != 540 || summary.LogCount != 2 {
		t.Errorf("summary mismatch: got kcal=%d count=%d", summary.TotalKcal, summary.LogCount)
	}
}

func TestLogTemplateAllOrNothingAtDailyCap(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	user := newTestUser(t, store)

	tpl, err := store.CreateTemplate(ctx, user.ID, "Breakfast", "", breakfastItems())
	if err != nil {
		t.Fatalf("CreateTemplate failed: %v", err)
	}

	// Leave room for exactly one more log; the two-item expansion must fail
	// without logging anything.
	for i := 0; i < MaxLogsPerDay-1; i++ {
		if _, err := store.LogSystemFood(ctx, user.ID, "ca-phe-sua-da", PortionSmall); err != nil {
			t.Fatalf("LogSystemFood %d failed: %v", i, err)
		}
	}

	if _, err := store.LogTemplate(ctx, user.ID, tpl.ID, true); !errors.Is(err, ErrLimitReached) {
		t.Fatalf("expected ErrLimitReached, got %v", err)
	}

	summary, err := store.GetTodaySummary(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetTodaySummary failed: %v", err)
	}
	if summary.LogCount != MaxLogsPerDay-1 {
		t.Errorf("partial expansion leaked: got %d logs, want %d", summary.LogCount, MaxLogsPerDay-1)
	}
}

func TestGetTemplateOwnership(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	owner := newTestUser(t, store)
	other, err := store.CreateUser(ctx, nil, nil, "Other", Goals{Kcal: 2000})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	tpl, err := store.CreateTemplate(ctx, owner.ID, "Breakfast", "", breakfastItems())
	if err != nil {
		t.Fatalf("CreateTemplate failed: %v", err)
	}

	if _, err := store.GetTemplate(ctx, other.ID, tpl.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound across users, got %v", err)
	}
}
