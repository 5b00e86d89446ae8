package analytics

import (
	"sort"

	"github.com/radiusdt/vector-metrics/internal/models"
	"github.com/shopspring/decimal"
)

type ltvAcc struct {
	revenue decimal.Decimal
	users   userSet
}

func (a *ltvAcc) add(userID uint64, revenue decimal.Decimal) {
	if a.users == nil {
		a.users = make(userSet)
	}
	a.revenue = a.revenue.Add(revenue)
	a.users.add(userID)
}

// ltv is revenue per distinct paying user in the group.
func (a *ltvAcc) ltv() float64 {
	if len(a.users) == 0 {
		return 0
	}
	return a.revenue.InexactFloat64() / float64(len(a.users))
}

func accFor[K comparable](m map[K]*ltvAcc, k K) *ltvAcc {
	a, ok := m[k]
	if !ok {
		a = &ltvAcc{}
		m[k] = a
	}
	return a
}

// ComputeMonetization rolls order revenue up into LTV tables.
//
// Join cardinalities:
//   - order -> profile is many-to-one by user id (cohort and source LTV);
//   - session <-> order is many-to-many by user id (device LTV): every
//     session of a paying user adds that user's full revenue to the session's
//     device, so a user with three desktop sessions counts three times there.
//
// Orders without a profile fall into source LTV only when they carry their
// own source id.
func ComputeMonetization(sessions []models.Session, orders []models.Order, profiles map[uint64]models.UserCohortProfile) models.MonetizationReport {
	rep := models.MonetizationReport{
		ByCohort:         make([]models.CohortLTV, 0),
		ByChannel:        make([]models.ChannelLTV, 0),
		ByDevice:         make([]models.DeviceLTV, 0),
		PurchasesByMonth: make([]models.MonthlyPurchases, 0),
	}

	cohorts := make(map[models.MonthKey]*ltvAcc)
	channels := make(map[int]*ltvAcc)
	devices := make(map[models.Device]*ltvAcc)
	purchases := make(map[models.MonthKey]int)
	userRevenue := make(map[uint64]decimal.Decimal)
	var unattributed decimal.Decimal

	for _, o := range orders {
		userRevenue[o.UserID] = userRevenue[o.UserID].Add(o.Revenue)
		purchases[models.MonthKey{Year: o.Year, Month: o.Month}]++

		p, ok := profiles[o.UserID]
		switch {
		case ok:
			accFor(cohorts, p.Cohort()).add(o.UserID, o.Revenue)
			accFor(channels, p.SourceID).add(o.UserID, o.Revenue)
		case o.SourceID > 0:
			accFor(channels, o.SourceID).add(o.UserID, o.Revenue)
		default:
			rep.UnattributedOrders++
			unattributed = unattributed.Add(o.Revenue)
		}
	}

	sessionsByDevice := make(map[uint64]map[models.Device]int64)
	for _, s := range sessions {
		if _, paying := userRevenue[s.UserID]; !paying {
			continue
		}
		if sessionsByDevice[s.UserID] == nil {
			sessionsByDevice[s.UserID] = make(map[models.Device]int64)
		}
		sessionsByDevice[s.UserID][s.Device]++
	}
	var total decimal.Decimal
	for userID, revenue := range userRevenue {
		total = total.Add(revenue)
		for dev, n := range sessionsByDevice[userID] {
			accFor(devices, dev).add(userID, revenue.Mul(decimal.NewFromInt(n)))
		}
	}

	for _, k := range sortedMonthKeys(cohorts) {
		a := cohorts[k]
		rep.ByCohort = append(rep.ByCohort, models.CohortLTV{
			MonthKey:    k,
			Revenue:     a.revenue.InexactFloat64(),
			PayingUsers: len(a.users),
			LTV:         a.ltv(),
		})
	}
	for _, src := range sortedSourceIDs(channels) {
		a := channels[src]
		rep.ByChannel = append(rep.ByChannel, models.ChannelLTV{
			SourceID:    src,
			Revenue:     a.revenue.InexactFloat64(),
			PayingUsers: len(a.users),
			LTV:         a.ltv(),
		})
	}

	deviceKeys := make([]models.Device, 0, len(devices))
	for d := range devices {
		deviceKeys = append(deviceKeys, d)
	}
	sort.Slice(deviceKeys, func(i, j int) bool { return deviceKeys[i] < deviceKeys[j] })
	for _, d := range deviceKeys {
		a := devices[d]
		rep.ByDevice = append(rep.ByDevice, models.DeviceLTV{
			Device:      d,
			Revenue:     a.revenue.InexactFloat64(),
			PayingUsers: len(a.users),
			LTV:         a.ltv(),
		})
	}

	for _, k := range sortedMonthKeys(purchases) {
		rep.PurchasesByMonth = append(rep.PurchasesByMonth, models.MonthlyPurchases{MonthKey: k, Orders: purchases[k]})
	}

	rep.PayingUsers = len(userRevenue)
	if rep.PayingUsers > 0 {
		rep.AvgRevenuePerBuyer = total.InexactFloat64() / float64(rep.PayingUsers)
	}
	rep.UnattributedRevenue = unattributed.InexactFloat64()
	return rep
}
