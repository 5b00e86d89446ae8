package analytics

import (
	"fmt"
	"time"

	"github.com/radiusdt/vector-metrics/internal/models"
)

// AssignCohorts derives one profile per user. The first session is the one
// with the earliest start timestamp, which also fixes the cohort date and
// source; identical timestamps resolve to the lower source id.
func AssignCohorts(sessions []models.Session) map[uint64]models.UserCohortProfile {
	profiles := make(map[uint64]models.UserCohortProfile)
	for _, s := range sessions {
		if p, ok := profiles[s.UserID]; ok && !precedes(s, p) {
			continue
		}
		profiles[s.UserID] = models.UserCohortProfile{
			UserID:            s.UserID,
			FirstSessionDate:  s.Date,
			FirstSessionStart: s.Start,
			Year:              s.Date.Year(),
			Month:             int(s.Date.Month()),
			SourceID:          s.SourceID,
		}
	}
	return profiles
}

func precedes(s models.Session, p models.UserCohortProfile) bool {
	if s.Start.Before(p.FirstSessionStart) {
		return true
	}
	return s.Start.Equal(p.FirstSessionStart) && s.SourceID < p.SourceID
}

// FirstPurchases returns the earliest purchase date per user.
func FirstPurchases(orders []models.Order) map[uint64]time.Time {
	first := make(map[uint64]time.Time)
	for _, o := range orders {
		if d, ok := first[o.UserID]; !ok || o.Date.Before(d) {
			first[o.UserID] = o.Date
		}
	}
	return first
}

// AcquiredUsers counts distinct users per first-session source.
func AcquiredUsers(profiles map[uint64]models.UserCohortProfile) map[int]int {
	acquired := make(map[int]int)
	for _, p := range profiles {
		acquired[p.SourceID]++
	}
	return acquired
}

// MissingCohorts reports every user that has orders but no session, once,
// at the position of the user's first order.
func MissingCohorts(orders []models.Order, profiles map[uint64]models.UserCohortProfile) []models.Issue {
	var issues []models.Issue
	seen := make(map[uint64]struct{})
	for _, o := range orders {
		if _, ok := profiles[o.UserID]; ok {
			continue
		}
		if _, ok := seen[o.UserID]; ok {
			continue
		}
		seen[o.UserID] = struct{}{}

		var err error
		if o.SourceID > 0 {
			err = fmt.Errorf("%w: no sessions for user, orders attributed to source %d", ErrMissingCohort, o.SourceID)
		} else {
			err = fmt.Errorf("%w: no sessions for user, orders excluded from source LTV", ErrMissingCohort)
		}
		is := recordIssue(StreamOrders, o.Index, o.UserID, err)
		is.SourceID = o.SourceID
		issues = append(issues, is)
	}
	return issues
}
