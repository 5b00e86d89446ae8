package analytics

import (
	"testing"
	"time"

	"github.com/radiusdt/vector-metrics/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeEngagement_Empty(t *testing.T) {
	rep := ComputeEngagement(nil)
	assert.Empty(t, rep.DAU)
	assert.NotNil(t, rep.DAU)
	assert.Zero(t, rep.AvgDAU)
	assert.Equal(t, models.StickyFactors{}, rep.Sticky)
}

func TestComputeEngagement_DAUZeroFilled(t *testing.T) {
	rep := ComputeEngagement(mustSessions(
		sess(1, "2017-06-01 10:00:00", "2017-06-01 10:01:00", "desktop", 1),
		sess(1, "2017-06-01 11:00:00", "2017-06-01 11:01:00", "desktop", 1),
		sess(2, "2017-06-01 12:00:00", "2017-06-01 12:01:00", "desktop", 1),
		sess(2, "2017-06-03 12:00:00", "2017-06-03 12:01:00", "desktop", 1),
	))

	require.Len(t, rep.DAU, 3)
	assert.Equal(t, models.DailyActivity{Date: "2017-06-01", Users: 2, Sessions: 3, SessionsPerUser: 1.5}, rep.DAU[0])
	assert.Equal(t, models.DailyActivity{Date: "2017-06-02"}, rep.DAU[1])
	assert.Equal(t, models.DailyActivity{Date: "2017-06-03", Users: 1, Sessions: 1, SessionsPerUser: 1}, rep.DAU[2])

	assert.InDelta(t, 1.0, rep.AvgDAU, 1e-9)
	assert.InDelta(t, 1.25, rep.AvgSessionsPerUser, 1e-9)
}

func TestComputeEngagement_SubsetProperty(t *testing.T) {
	sessions := mustSessions(
		sess(1, "2017-06-01 10:00:00", "2017-06-01 10:01:00", "desktop", 1),
		sess(2, "2017-06-02 10:00:00", "2017-06-02 10:01:00", "touch", 2),
		sess(3, "2017-06-09 10:00:00", "2017-06-09 10:01:00", "desktop", 1),
		sess(1, "2017-06-20 10:00:00", "2017-06-20 10:01:00", "desktop", 1),
		sess(5, "2017-06-30 10:00:00", "2017-06-30 10:01:00", "desktop", 2),
		sess(4, "2017-07-01 10:00:00", "2017-07-01 10:01:00", "desktop", 3),
		sess(1, "2017-07-02 10:00:00", "2017-07-02 10:01:00", "desktop", 1),
	)
	rep := ComputeEngagement(sessions)

	days := make(map[string]userSet)
	weeks := make(map[models.WeekKey]userSet)
	months := make(map[models.MonthKey]userSet)
	for _, s := range sessions {
		dk := s.Date.Format(models.DateLayout)
		if days[dk] == nil {
			days[dk] = make(userSet)
		}
		days[dk].add(s.UserID)
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
	}

	wau := make(map[models.WeekKey]int)
	for _, w := range rep.WAU {
		wau[w.WeekKey] = w.Users
		assert.Equal(t, len(weeks[w.WeekKey]), w.Users)
	}
	mau := make(map[models.MonthKey]int)
	for _, m := range rep.MAU {
		mau[m.MonthKey] = m.Users
		assert.Equal(t, len(months[m.MonthKey]), m.Users)
	}

	for _, d := range rep.DAU {
		date, err := time.Parse(models.DateLayout, d.Date)
		require.NoError(t, err)
		y, w := date.ISOWeek()
		wk := models.WeekKey{Year: y, Week: w}
		mk := models.MonthKey{Year: date.Year(), Month: int(date.Month())}

		assert.Equal(t, len(days[d.Date]), d.Users)
		assert.LessOrEqual(t, d.Users, wau[wk], d.Date)
		assert.LessOrEqual(t, d.Users, mau[mk], d.Date)
		for id := range days[d.Date] {
			assert.Contains(t, weeks[wk], id)
			assert.Contains(t, months[mk], id)
		}
	}

	// ISO week 23 of 2017 (June 5-11) lies inside June
	for id := range weeks[models.WeekKey{Year: 2017, Week: 23}] {
		assert.Contains(t, months[models.MonthKey{Year: 2017, Month: 6}], id)
	}
	assert.Equal(t, 4, mau[models.MonthKey{Year: 2017, Month: 6}])
	assert.Equal(t, 2, mau[models.MonthKey{Year: 2017, Month: 7}])
}

func TestComputeEngagement_YearBoundary(t *testing.T) {
	rep := ComputeEngagement(mustSessions(
		sess(1, "2017-01-10 10:00:00", "2017-01-10 10:01:00", "desktop", 1),
		sess(2, "2018-01-10 10:00:00", "2018-01-10 10:01:00", "desktop", 1),
		sess(3, "2018-12-31 10:00:00", "2018-12-31 10:01:00", "desktop", 1),
	))

	require.Len(t, rep.MAU, 3)
	assert.Equal(t, models.MonthKey{Year: 2017, Month: 1}, rep.MAU[0].MonthKey)
	assert.Equal(t, models.MonthKey{Year: 2018, Month: 1}, rep.MAU[1].MonthKey)
	assert.Equal(t, models.MonthKey{Year: 2018, Month: 12}, rep.MAU[2].MonthKey)

	require.Len(t, rep.WAU, 3)
	assert.Equal(t, models.WeekKey{Year: 2019, Week: 1}, rep.WAU[2].WeekKey)
}

func TestComputeEngagement_DurationMode(t *testing.T) {
	rep := ComputeEngagement(mustSessions(
		sess(1, "2017-06-01 10:00:00", "2017-06-01 10:01:00", "desktop", 1),
		sess(2, "2017-06-01 10:00:00", "2017-06-01 10:01:00", "desktop", 1),
		sess(3, "2017-06-01 10:00:00", "2017-06-01 10:00:00", "desktop", 1),
		sess(4, "2017-06-01 10:00:00", "2017-06-01 10:00:00", "desktop", 1),
		sess(5, "2017-06-01 10:05:00", "2017-06-01 10:00:00", "desktop", 1),
		sess(6, "2017-06-01 10:05:00", "2017-06-01 10:00:00", "desktop", 1),
		sess(7, "2017-06-01 10:05:00", "2017-06-01 10:00:00", "desktop", 1),
	))

	// 0s and 60s tie; negative durations are not samples
	assert.Equal(t, int64(0), rep.SessionDurationMode)
	assert.Equal(t, 4, rep.DurationSamples)
	// but those sessions still count as activity
	assert.Equal(t, 7, rep.DAU[0].Users)
}

func TestStickyFactors(t *testing.T) {
	assert.Equal(t, models.StickyFactors{Daily: 50, Weekly: 25}, stickyFactors(1, 2, 8))
	assert.Equal(t, models.StickyFactors{}, stickyFactors(1, 0, 0))
}
