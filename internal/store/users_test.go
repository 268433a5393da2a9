// ABOUTME: Tests for user profile registration, credentials, goals, and cascade delete
// ABOUTME: Covers the MaxUsers cap and the optional email/password contract

package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestCreateAndGetUser(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	email := "ngan@example.com"
	password := "hunter2-but-longer"

	user, err := store.CreateUser(ctx, &email, &password, "Ngân", Goals{Kcal: 1800, Protein: 70, Carbs: 200, Fat: 55})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	got, err := store.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if got.DisplayName != "Ngân" {
		t.Errorf("DisplayName mismatch: got %q, want %q", got.DisplayName, "Ngân")
	}
	if got.Email == nil || *got.Email != email {
		t.Errorf("Email mismatch: got %v, want %q", got.Email, email)
	}
	if got.PasswordHash == nil {
		t.Error("expected password hash to be stored")
	} else if *got.PasswordHash == password {
		t.Error("password was stored in plaintext")
	}
	if got.Goals.Kcal != 1800 || got.Goals.Protein != 70 {
		t.Errorf("Goals mismatch: got %+v", got.Goals)
	}
}

func TestCreateLocalProfileWithoutCredentials(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	user, err := store.CreateUser(ctx, nil, nil, "Partner", Goals{Kcal: 2200, Protein: 80, Carbs: 260, Fat: 70})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	got, err := store.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if got.Email != nil {
		t.Errorf("expected nil email, got %q", *got.Email)
	}
	if got.PasswordHash != nil {
		t.Error("expected nil password hash for local profile")
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	email := "same@example.com"
	password := "a-password"

	if _, err := store.CreateUser(ctx, &email, &password, "First", Goals{Kcal: 2000}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	_, err := store.CreateUser(ctx, &email, &password, "Second", Goals{Kcal: 2000})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestCreateUserLimit(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	for i := 0; i < MaxUsers; i++ {
		if _, err := store.CreateUser(ctx, nil, nil, fmt.Sprintf("user-%d", i), Goals{Kcal: 2000}); err != nil {
			t.Fatalf("CreateUser %d failed: %v", i, err)
		}
	}

	_, err := store.CreateUser(ctx, nil, nil, "one-too-many", Goals{Kcal: 2000})
	if !errors.Is(err, ErrLimitReached) {
		t.Errorf("expected ErrLimitReached, got %v", err)
	}

	count, err := store.CountUsers(ctx)
	if err != nil {
		t.Fatalf("CountUsers failed: %v", err)
	}
	if count != MaxUsers {
		t.Errorf("user count mismatch: got %d, want %d", count, MaxUsers)
	}
}

func TestVerifyCredentials(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	email := "auth@example.com"
	password := "correct-horse"

	user, err := store.CreateUser(ctx, &email, &password, "Auth", Goals{Kcal: 2000})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	got, err := store.VerifyCredentials(ctx, email, password)
	if err != nil {
		t.Fatalf("VerifyCredentials failed: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("ID mismatch: got %q, want %q", got.ID, user.ID)
	}

	if _, err := store.VerifyCredentials(ctx, email, "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for bad password, got %v", err)
	}
	if _, err := store.VerifyCredentials(ctx, "nobody@example.com", password); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for unknown email, got %v", err)
	}
}

func TestVerifyCredentialsLocalProfileNeverMatches(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	email := "local@example.com"
	if _, err := store.CreateUser(ctx, &email, nil, "Local", Goals{Kcal: 2000}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	if _, err := store.VerifyCredentials(ctx, email, ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestGetUserNotFound(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	if _, err := store.GetUser(context.Background(), "no-such-user"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListUsersOrderedByCreation(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	names := []string{"first", "second", "third"}
	for _, name := range names {
		if _, err := store.CreateUser(ctx, nil, nil, name, Goals{Kcal: 2000}); err != nil {
			t.Fatalf("CreateUser %s failed: %v", name, err)
		}
	}

	users, err := store.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(users) != len(names) {
		t.Fatalf("user count mismatch: got %d, want %d", len(users), len(names))
	}
	for i, name := range names {
		if users[i].DisplayName != name {
			t.Errorf("user %d mismatch: got %q, want %q", i, users[i].DisplayName, name)
		}
	}
}

func TestUpdateGoals(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	user := newTestUser(t, store)

	newGoals := Goals{Kcal: 1600, Protein: 90, Carbs: 150, Fat: 50}
	if err := store.UpdateGoals(ctx, user.ID, newGoals); err != nil {
		t.Fatalf("UpdateGoals failed: %v", err)
	}

	got, err := store.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if got.Goals != newGoals {
		t.Errorf("Goals mismatch: got %+v, want %+v", got.Goals, newGoals)
	}

	if err := store.UpdateGoals(ctx, "no-such-user", newGoals); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteUserCascade(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	ctx := context.Background()
	user := newTestUser(t, store)

	log, err := store.LogSystemFood(ctx, user.ID, "pho-bo", PortionMedium)
	if err != nil {
		t.Fatalf("LogSystemFood failed: %v", err)
	}
	if _, err := store.AddFavorite(ctx, user.ID, FoodTypeSystem, "pho-bo", PortionMedium); err != nil {
		t.Fatalf("AddFavorite failed: %v", err)
	}
	if err := store.AddRecentSearch(ctx, user.ID, "pho"); err != nil {
		t.Fatalf("AddRecentSearch failed: %v", err)
	}
	custom, err := store.CreateCustomFood(ctx, &CustomFood{UserID: user.ID, Name: "Trứng chiên", Kcal: 180, Protein: 12, Fat: 14, Carbs: 1})
	if err != nil {
		t.Fatalf("CreateCustomFood failed: %v", err)
	}
	if _, err := store.CreateTemplate(ctx, user.ID, "Breakfast", "", []*TemplateItem{
		{FoodType: FoodTypeSystem, FoodID: "pho-bo", Portion: PortionMedium, NameSnapshot: "Phở bò", Kcal: 450, Protein: 25, Fat: 9, Carbs: 58, IsRequired: true},
	}); err != nil {
		t.Fatalf("CreateTemplate failed: %v", err)
	}

	if err := store.DeleteUserCascade(ctx, user.ID); err != nil {
		t.Fatalf("DeleteUserCascade failed: %v", err)
	}

	if _, err := store.GetUser(ctx, user.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected user gone, got %v", err)
	}
	if _, err := store.GetLog(ctx, user.ID, log.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected log gone, got %v", err)
	}
	if _, err := store.GetCustomFood(ctx, user.ID, custom.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected custom food gone, got %v", err)
	}
	favorites, err := store.ListFavorites(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListFavorites failed: %v", err)
	}
	if len(favorites) != 0 {
		t.Errorf("expected no favorites, got %d", len(favorites))
	}
	templates, err := store.ListTemplates(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListTemplates failed: %v", err)
	}
	if len(templates) != 0 {
		t.Errorf("expected no templates, got %d", len(templates))
	}
}
