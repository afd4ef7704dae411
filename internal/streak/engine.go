package streak

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/calendar"
)

type Engine struct {
	repo            Repository
	tiers           []Tier
	defaultDiscount decimal.Decimal
	clock           calendar.Clock
	loc             *time.Location
}

func NewEngine(repo Repository, tiers []Tier, defaultDiscount decimal.Decimal, clock calendar.Clock, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{
		repo:            repo,
		tiers:           tiers,
		defaultDiscount: defaultDiscount,
		clock:           clock,
		loc:             loc,
	}
}

func (e *Engine) today() (calendar.Day, time.Time) {
	now := e.clock.Now()
	return calendar.DayOf(now, e.loc), now
}

func (e *Engine) longestWindow() int {
	longest := 0
	for _, t := range e.tiers {
		if t.StreakDays > longest {
			longest = t.StreakDays
		}
	}
	return longest
}

// Recompute refreshes today's records. With an empty username every
// requester is graded and each qualifying tier record is replaced; otherwise
// only that user is graded and merged into the tiers they qualify for.
func (e *Engine) Recompute(ctx context.Context, username string) error {
	today, _ := e.today()

	active, err := e.repo.ActiveDays(ctx, today.Window(e.longestWindow()), username)
	if err != nil {
		return fmt.Errorf("streak: failed to load active days: %w", err)
	}

	for _, tier := range e.tiers {
		users := qualifying(active, today.Window(tier.StreakDays))

		if username != "" {
			if len(users) == 0 {
				continue
			}
			if err := e.repo.MergeUser(ctx, today, tier, username); err != nil {
				return fmt.Errorf("streak: failed to merge user: %w", err)
			}
			continue
		}

		if len(users) == 0 {
			continue
		}
		rec := Record{Day: today, StreakDays: tier.StreakDays, StreakDiscount: tier.Discount, Users: users}
		if err := e.repo.ReplaceRecord(ctx, rec); err != nil {
			return fmt.Errorf("streak: failed to store record: %w", err)
		}
		log.Debug().Stringer("day", today).Int("streak_days", tier.StreakDays).Int("users", len(users)).Msg("streak: tier recomputed")
	}

	return nil
}

// qualifying returns the users active on every required day, sorted.
func qualifying(active map[string]map[calendar.Day]struct{}, required []calendar.Day) []string {
	users := make([]string, 0)
	for user, days := range active {
		covered := true
		for _, d := range required {
			if _, ok := days[d]; !ok {
				covered = false
				break
			}
		}
		if covered {
			users = append(users, user)
		}
	}
	sort.Strings(users)
	return users
}

// UserStreak grades username now and returns their best tier for today,
// or tier 0 with the default discount when they hold none.
func (e *Engine) UserStreak(ctx context.Context, username string) (*UserStreak, error) {
	if err := e.Recompute(ctx, username); err != nil {
		return nil, err
	}

	today, now := e.today()
	records, err := e.repo.RecordsForUser(ctx, today, username)
	if err != nil {
		return nil, fmt.Errorf("streak: failed to load user records: %w", err)
	}

	result := &UserStreak{
		Day:          today,
		UserStreak:   0,
		UserDiscount: e.defaultDiscount,
		End:          calendar.EndOfDay(now, e.loc),
	}

	best := -1
	for _, rec := range records {
		if rec.StreakDays > best {
			best = rec.StreakDays
			result.UserStreak = rec.StreakDays
			result.UserDiscount = rec.StreakDiscount
		}
	}

	return result, nil
}

// Records lists the stored tier records of day.
func (e *Engine) Records(ctx context.Context, day calendar.Day) ([]Record, error) {
	records, err := e.repo.RecordsForDay(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("streak: failed to load records for %s: %w", day, err)
	}
	return records, nil
}

// Today is the current business day.
func (e *Engine) Today() calendar.Day {
	day, _ := e.today()
	return day
}
