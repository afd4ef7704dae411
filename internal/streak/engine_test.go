package streak_test

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/calendar"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/streak"
)

type recordKey struct {
	day  calendar.Day
	tier int
}

// memoryRepository keeps confirmed-order days and records in maps.
type memoryRepository struct {
	orders  map[string][]calendar.Day
	records map[recordKey]streak.Record
	failOn  string
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{
		orders:  make(map[string][]calendar.Day),
		records: make(map[recordKey]streak.Record),
	}
}

func (m *memoryRepository) confirm(user string, days ...calendar.Day) {
	m.orders[user] = append(m.orders[user], days...)
}

func (m *memoryRepository) ActiveDays(_ context.Context, days []calendar.Day, username string) (map[string]map[calendar.Day]struct{}, error) {
	if m.failOn == "ActiveDays" {
		return nil, errors.New("boom")
	}
	want := make(map[calendar.Day]struct{}, len(days))
	for _, d := range days {
		want[d] = struct{}{}
	}

	out := make(map[string]map[calendar.Day]struct{})
	for user, active := range m.orders {
		if username != "" && user != username {
			continue
		}
		for _, d := range active {
			if _, ok := want[d]; !ok {
				continue
			}
			if out[user] == nil {
				out[user] = make(map[calendar.Day]struct{})
			}
			out[user][d] = struct{}{}
		}
	}
	return out, nil
}

func (m *memoryRepository) ReplaceRecord(_ context.Context, rec streak.Record) error {
	m.records[recordKey{rec.Day, rec.StreakDays}] = rec
	return nil
}

func (m *memoryRepository) MergeUser(_ context.Context, day calendar.Day, tier streak.Tier, username string) error {
	key := recordKey{day, tier.StreakDays}
	rec, ok := m.records[key]
	if !ok {
		rec = streak.Record{Day: day, StreakDays: tier.StreakDays}
	}
	rec.StreakDiscount = tier.Discount
	for _, u := range rec.Users {
		if u == username {
			m.records[key] = rec
			return nil
		}
	}
	rec.Users = append(rec.Users, username)
	m.records[key] = rec
	return nil
}

func (m *memoryRepository) RecordsForUser(_ context.Context, day calendar.Day, username string) ([]streak.Record, error) {
	var out []streak.Record
	for key, rec := range m.records {
		if key.day != day {
			continue
		}
		for _, u := range rec.Users {
			if u == username {
				out = append(out, rec)
				break
			}
		}
	}
	return out, nil
}

func (m *memoryRepository) RecordsForDay(_ context.Context, day calendar.Day) ([]streak.Record, error) {
	var out []streak.Record
	for key, rec := range m.records {
		if key.day == day {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StreakDays < out[j].StreakDays })
	return out, nil
}

var dubai = time.FixedZone("Asia/Dubai", 4*3600)

func newEngine(t *testing.T, repo streak.Repository) (*streak.Engine, calendar.Day) {
	t.Helper()
	tiers, err := streak.ParsePolicy("0:15,1:15,2:15,3:20")
	require.NoError(t, err)

	now := time.Date(2024, 3, 1, 9, 30, 0, 0, dubai)
	engine := streak.NewEngine(repo, tiers, decimal.NewFromInt(7), calendar.FixedClock{T: now}, dubai)
	return engine, calendar.DayOf(now, dubai)
}

func TestEngine_UserStreak(t *testing.T) {
	repo := newMemoryRepository()
	engine, today := newEngine(t, repo)
	d1, d2, d3 := today.Prev(), today.Prev().Prev(), today.Prev().Prev().Prev()

	repo.confirm("dana", today, d1, d2, d3)
	repo.confirm("eli", today)
	repo.confirm("gus", today, d2, d3)
	repo.confirm("hana", d1, d2, d3)

	tests := []struct {
		name         string
		user         string
		wantStreak   int
		wantDiscount string
	}{
		{name: "four_consecutive_days", user: "dana", wantStreak: 3, wantDiscount: "20"},
		{name: "today_only", user: "eli", wantStreak: 0, wantDiscount: "15"},
		{name: "gap_yesterday", user: "gus", wantStreak: 0, wantDiscount: "15"},
		{name: "nothing_today", user: "hana", wantStreak: 0, wantDiscount: "7"},
		{name: "no_orders", user: "fay", wantStreak: 0, wantDiscount: "7"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.UserStreak(context.Background(), tt.user)
			require.NoError(t, err)
			assert.Equal(t, today, got.Day)
			assert.Equal(t, tt.wantStreak, got.UserStreak)
			assert.Equal(t, tt.wantDiscount, got.UserDiscount.String())
			assert.Equal(t, time.Date(2024, 3, 1, 23, 59, 59, 0, dubai), got.End)
		})
	}
}

func TestEngine_UserStreak_MergeIsIdempotent(t *testing.T) {
	repo := newMemoryRepository()
	engine, today := newEngine(t, repo)
	repo.confirm("dana", today, today.Prev())

	for i := 0; i < 3; i++ {
		_, err := engine.UserStreak(context.Background(), "dana")
		require.NoError(t, err)
	}

	records, err := engine.Records(context.Background(), today)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.Equal(t, []string{"dana"}, rec.Users)
	}
}

func TestEngine_Recompute_AllUsers(t *testing.T) {
	repo := newMemoryRepository()
	engine, today := newEngine(t, repo)
	d1, d2 := today.Prev(), today.Prev().Prev()

	repo.confirm("dana", today, d1, d2)
	repo.confirm("eli", today, today)
	repo.confirm("ivy", d1)

	require.NoError(t, engine.Recompute(context.Background(), ""))

	records, err := engine.Records(context.Background(), today)
	require.NoError(t, err)
	require.Len(t, records, 3, "tier 3 has no qualifying users and must not be stored")

	assert.Equal(t, 0, records[0].StreakDays)
	assert.Equal(t, []string{"dana", "eli"}, records[0].Users)
	assert.Equal(t, []string{"dana"}, records[1].Users)
	assert.Equal(t, []string{"dana"}, records[2].Users)
	assert.Equal(t, "15", records[2].StreakDiscount.String())
}

func TestEngine_Recompute_RepositoryError(t *testing.T) {
	repo := newMemoryRepository()
	repo.failOn = "ActiveDays"
	engine, _ := newEngine(t, repo)

	err := engine.Recompute(context.Background(), "")
	require.Error(t, err)

	_, err = engine.UserStreak(context.Background(), "dana")
	require.Error(t, err)
}

func TestEngine_DayBoundaryUsesLocation(t *testing.T) {
	repo := newMemoryRepository()
	tiers, err := streak.ParsePolicy("0:15")
	require.NoError(t, err)

	// 21:00 UTC on Feb 29 is already Mar 1 in Dubai.
	now := time.Date(2024, 2, 29, 21, 0, 0, 0, time.UTC)
	engine := streak.NewEngine(repo, tiers, decimal.NewFromInt(5), calendar.FixedClock{T: now}, dubai)

	assert.Equal(t, calendar.Day(20240301), engine.Today())
}
