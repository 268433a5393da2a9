// ABOUTME: Domain types, sentinel errors, and capacity limits for anlog persistence
// ABOUTME: Defines UserProfile, foods, FoodLog, Favorite, summaries, and templates

package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist or is deleted
var ErrNotFound = errors.New("not found")

// ErrLimitReached is returned when a write would exceed a per-user capacity cap.
// Callers distinguish it with errors.Is and render a "limit reached" message;
// it is never wrapped around a storage failure.
var ErrLimitReached = errors.New("limit reached")

// ErrDuplicateEmail is returned when registering an email that already exists
var ErrDuplicateEmail = errors.New("email already registered")

// Capacity limits. These are part of the observable contract and enforced
// inside single conditional statements, not check-then-act sequences.
const (
	MaxUsers              = 10
	MaxCustomFoodsPerUser = 30
	MaxFavoritesPerUser   = 20
	MaxTemplatesPerUser   = 10
	MaxItemsPerTemplate   = 8
	MaxRecentSearches     = 5
	MaxLogsPerDay         = 30
	MaxSystemFoods        = 500
)

// Retention windows in days. Summaries outlive raw logs on purpose: a pruned
// log's day keeps its cached totals until the summary itself ages out.
const (
	LogRetentionDays     = 30
	SummaryRetentionDays = 90
)

// DateLayout is the calendar-day format used by logged_date and daily_summary.date
const DateLayout = "2006-01-02"

// Portion identifies a serving-size variant of a food
type Portion string

const (
	PortionSmall  Portion = "S"
	PortionMedium Portion = "M"
	PortionLarge  Portion = "L"
	PortionSingle Portion = "single" // custom foods have exactly one portion
)

// FoodType discriminates which catalog a log or favorite references
type FoodType string

const (
	FoodTypeSystem FoodType = "system"
	FoodTypeCustom FoodType = "custom"
)

// Goals holds a user's daily nutrition targets
type Goals struct {
	Kcal    int
	Protein float64
	Carbs   float64
	Fat     float64
}

// UserProfile represents an account or a local household profile.
// Email and PasswordHash are nil for local profiles created by the
// add-partner flow; those profiles skip credential checks entirely.
type UserProfile struct {
	ID           string
	Email        *string
	PasswordHash *string
	DisplayName  string
	Goals        Goals
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PortionMacros holds the nutrition values of one portion variant
type PortionMacros struct {
	Kcal    int
	Protein float64
	Fat     float64
	Carbs   float64
	Fibre   float64
	Sugar   float64
	Sodium  float64
}

// SystemFood is an immutable curated catalog entry with S/M/L portion variants.
// Rows are seeded once at schema init and never mutated afterwards.
type SystemFood struct {
	ID                 string
	NameVI             string
	NameEN             string
	Category           string
	ServingDescription string
	Confidence         float64
	Small              PortionMacros
	Medium             PortionMacros
	Large              PortionMacros
	IsActive           bool
}

// PortionMacros returns the macro values for the requested portion variant.
func (f *SystemFood) PortionMacros(p Portion) (PortionMacros, bool) {
	switch p {
	case PortionSmall:
		return f.Small, true
	case PortionMedium:
		return f.Medium, true
	case PortionLarge:
		return f.Large, true
	}
	return PortionMacros{}, false
}

// CustomFood is a user-owned single-portion food created from manual entries
type CustomFood struct {
	ID        string
	UserID    string
	Name      string
	Kcal      int
	Protein   float64
	Fat       float64
	Carbs     float64
	Fibre     float64
	Sugar     float64
	Sodium    float64
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// FoodLog is one logged meal instance. Name and macros are snapshotted at log
// time so later catalog edits never rewrite history. LoggedDate is the
// calendar-day bucket derived from LoggedAt.
type FoodLog struct {
	ID           string
	UserID       string
	FoodType     FoodType
	FoodID       string
	Portion      Portion
	NameSnapshot string
	Kcal         int
	Protein      float64
	Fat          float64
	Carbs        float64
	LoggedDate   string
	LoggedAt     time.Time
	DeletedAt    *time.Time
}

// Favorite marks a food for quick access. At most one alive row exists per
// (user, food type, food id).
type Favorite struct {
	ID             string
	UserID         string
	FoodType       FoodType
	FoodID         string
	SortOrder      int
	DefaultPortion Portion
	UseCount       int
	LastUsedAt     *time.Time
	CreatedAt      time.Time
	DeletedAt      *time.Time
}

// RecentSearch is one entry in a user's capped FIFO of distinct search terms
type RecentSearch struct {
	ID         string
	UserID     string
	SearchTerm string
	SearchedAt time.Time
}

// DailySummary is the cached per-user-per-day aggregate of alive log totals.
// It is derived state, never a source of truth; GoalKcal and GoalProtein
// snapshot the goals in effect at the last recompute.
type DailySummary struct {
	UserID       string
	Date         string
	TotalKcal    int
	TotalProtein float64
	TotalFat     float64
	TotalCarbs   float64
	LogCount     int
	GoalKcal     int
	GoalProtein  float64
	UpdatedAt    time.Time
}

// MealTemplate is a named reusable bundle of food items with cached totals
type MealTemplate struct {
	ID           string
	UserID       string
	Name         string
	Description  string
	TotalKcal    int
	TotalProtein float64
	TotalFat     float64
	TotalCarbs   float64
	UseCount     int
	LastUsedAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    *time.Time
	Items        []*TemplateItem
}

// TemplateItem is one food inside a template; optional items can be skipped
// when the template is logged.
type TemplateItem struct {
	ID           string
	TemplateID   string
	FoodType     FoodType
	FoodID       string
	Portion      Portion
	NameSnapshot string
	Kcal         int
	Protein      float64
	Fat          float64
	Carbs        float64
	IsRequired   bool
	SortOrder    int
}

// StreakResult reports the current and longest runs of consecutive logged days
type StreakResult struct {
	CurrentStreak int
	LongestStreak int
}

// PeriodSummary aggregates daily summaries over a date window
type PeriodSummary struct {
	StartDate  string
	EndDate    string
	DaysLogged int
	TotalKcal  int
	AvgKcal    float64
	AvgProtein float64
	AvgFat     float64
	AvgCarbs   float64
}

// MonthlySummary adds the goal achievement rate: the fraction of logged days
// whose kcal total stayed within the goal snapshot for that day.
type MonthlySummary struct {
	PeriodSummary
	GoalAchievementRate float64
}

// TrendPoint is one day in a trend window. Days without a summary row appear
// with zero totals so charts can render contiguous windows.
type TrendPoint struct {
	Date     string
	Kcal     int
	GoalKcal int
	LogCount int
}

// ScoredFavorite pairs a favorite with its frequency score
type ScoredFavorite struct {
	*Favorite
	Score float64
}
