// Package streak grades customers by how many consecutive days they had a
// confirmed order and maps that to a discount tier.
package streak

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/calendar"
)

// Tier grants Discount percent to customers active today and on the
// StreakDays days before it.
type Tier struct {
	StreakDays int
	Discount   decimal.Decimal
}

// Record lists the users that qualified for one tier on one day.
type Record struct {
	Day            calendar.Day    `json:"day"`
	StreakDays     int             `json:"streakDays"`
	StreakDiscount decimal.Decimal `json:"streakDiscount"`
	Users          []string        `json:"users"`
}

// UserStreak is the customer's discount tier at a point in time.
type UserStreak struct {
	Day          calendar.Day    `json:"day"`
	UserStreak   int             `json:"userStreak"`
	UserDiscount decimal.Decimal `json:"userDiscount"`
	End          time.Time       `json:"end"`
}
