package streak

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/config"
)

// ParsePolicy reads "days:percent" pairs separated by commas, e.g.
// "0:15,1:15,2:15,3:20". Tiers come back sorted by StreakDays.
func ParsePolicy(s string) ([]Tier, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: STREAK_POLICY is empty", config.ErrConfig)
	}

	seen := make(map[int]struct{})
	tiers := make([]Tier, 0, strings.Count(s, ",")+1)

	for _, entry := range strings.Split(s, ",") {
		daysPart, discountPart, ok := strings.Cut(strings.TrimSpace(entry), ":")
		if !ok {
			return nil, fmt.Errorf("%w: STREAK_POLICY entry %q must be days:percent", config.ErrConfig, entry)
		}

		days, err := strconv.Atoi(strings.TrimSpace(daysPart))
		if err != nil || days < 0 {
			return nil, fmt.Errorf("%w: STREAK_POLICY entry %q has invalid day count", config.ErrConfig, entry)
		}
		if _, dup := seen[days]; dup {
			return nil, fmt.Errorf("%w: STREAK_POLICY declares %d days twice", config.ErrConfig, days)
		}
		seen[days] = struct{}{}

		discount, err := decimal.NewFromString(strings.TrimSpace(discountPart))
		if err != nil || discount.IsNegative() {
			return nil, fmt.Errorf("%w: STREAK_POLICY entry %q has invalid discount", config.ErrConfig, entry)
		}

		tiers = append(tiers, Tier{StreakDays: days, Discount: discount})
	}

	sort.Slice(tiers, func(i, j int) bool { return tiers[i].StreakDays < tiers[j].StreakDays })
	return tiers, nil
}
