package analytics

import (
	"sort"
	"time"

	"github.com/radiusdt/vector-metrics/internal/models"
)

type userSet map[uint64]struct{}

func (u userSet) add(id uint64) {
	u[id] = struct{}{}
}

type dayActivity struct {
	users    userSet
	sessions int
}

// ComputeEngagement builds the DAU/WAU/MAU series, sessions per user, the
// session duration mode and the sticky factors.
//
// The DAU series covers every date between the first and last observed
// session, with zero for idle days. Sessions per user is averaged over days
// with activity only (mean of daily ratios).
func ComputeEngagement(sessions []models.Session) models.EngagementReport {
	rep := models.EngagementReport{
		DAU: make([]models.DailyActivity, 0),
		WAU: make([]models.WeeklyActivity, 0),
		MAU: make([]models.MonthlyActivity, 0),
	}
	if len(sessions) == 0 {
		return rep
	}

	days := make(map[time.Time]*dayActivity)
	weeks := make(map[models.WeekKey]userSet)
	months := make(map[models.MonthKey]userSet)
	durations := make(map[int64]int)
	minDate, maxDate := sessions[0].Date, sessions[0].Date

	for _, s := range sessions {
		d, ok := days[s.Date]
		if !ok {
			d = &dayActivity{users: make(userSet)}
			days[s.Date] = d
		}
		d.users.add(s.UserID)
		d.sessions++

		wk := models.WeekKey{Year: s.ISOYear, Week: s.ISOWeek}
		if weeks[wk] == nil {
			weeks[wk] = make(userSet)
		}
		weeks[wk].add(s.UserID)

		mk := models.MonthKey{Year: s.Year, Month: s.Month}
		if months[mk] == nil {
			months[mk] = make(userSet)
		}
		months[mk].add(s.UserID)

		if s.HasValidDuration() {
			durations[s.DurationSec]++
		}
		if s.Date.Before(minDate) {
			minDate = s.Date
		}
		if s.Date.After(maxDate) {
			maxDate = s.Date
		}
	}

	var dauTotal, activeDays int
	var ratioTotal float64
	for d := minDate; !d.After(maxDate); d = d.AddDate(0, 0, 1) {
		point := models.DailyActivity{Date: d.Format(models.DateLayout)}
		if act, ok := days[d]; ok {
			point.Users = len(act.users)
			point.Sessions = act.sessions
			point.SessionsPerUser = float64(act.sessions) / float64(len(act.users))
			ratioTotal += point.SessionsPerUser
			activeDays++
		}
		dauTotal += point.Users
		rep.DAU = append(rep.DAU, point)
	}
	rep.AvgDAU = float64(dauTotal) / float64(len(rep.DAU))
	if activeDays > 0 {
		rep.AvgSessionsPerUser = ratioTotal / float64(activeDays)
	}

	weekKeys := make([]models.WeekKey, 0, len(weeks))
	for k := range weeks {
		weekKeys = append(weekKeys, k)
	}
	sort.Slice(weekKeys, func(i, j int) bool { return weekKeys[i].Less(weekKeys[j]) })
	var wauTotal int
	for _, k := range weekKeys {
		n := len(weeks[k])
		wauTotal += n
		rep.WAU = append(rep.WAU, models.WeeklyActivity{WeekKey: k, Users: n})
	}
	rep.AvgWAU = float64(wauTotal) / float64(len(weekKeys))

	monthKeys := sortedMonthKeys(months)
	var mauTotal int
	for _, k := range monthKeys {
		n := len(months[k])
		mauTotal += n
		rep.MAU = append(rep.MAU, models.MonthlyActivity{MonthKey: k, Users: n})
	}
	rep.AvgMAU = float64(mauTotal) / float64(len(monthKeys))

	rep.SessionDurationMode, rep.DurationSamples = durationMode(durations)
	rep.Sticky = stickyFactors(rep.AvgDAU, rep.AvgWAU, rep.AvgMAU)
	return rep
}

// durationMode returns the most frequent duration, the smallest one on ties,
// and the number of samples.
func durationMode(counts map[int64]int) (int64, int) {
	var mode int64
	best, samples := 0, 0
	for d, n := range counts {
		samples += n
		if n > best || (n == best && d < mode) {
			mode, best = d, n
		}
	}
	return mode, samples
}

func stickyFactors(dau, wau, mau float64) models.StickyFactors {
	var sf models.StickyFactors
	if wau > 0 {
		sf.Daily = 100 * dau / wau
	}
	if mau > 0 {
		sf.Weekly = 100 * wau / mau
	}
	return sf
}

func sortedMonthKeys[V any](m map[models.MonthKey]V) []models.MonthKey {
	keys := make([]models.MonthKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}
