package models

import "time"

// MonthKey identifies a calendar month. Buckets always carry the year so
// January 2017 and January 2018 never merge.
type MonthKey struct {
	Year  int `json:"year" yaml:"year"`
	Month int `json:"month" yaml:"month"`
}

// Less orders month keys chronologically.
func (k MonthKey) Less(o MonthKey) bool {
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	return k.Month < o.Month
}

// WeekKey identifies an ISO-8601 week.
type WeekKey struct {
	Year int `json:"iso_year" yaml:"iso_year"`
	Week int `json:"iso_week" yaml:"iso_week"`
}

// Less orders week keys chronologically.
func (k WeekKey) Less(o WeekKey) bool {
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	return k.Week < o.Week
}

// UserCohortProfile is derived once per user with at least one session.
// SourceID is the source of the first session only.
type UserCohortProfile struct {
	UserID            uint64
	FirstSessionDate  time.Time
	FirstSessionStart time.Time
	Year              int
	Month             int
	SourceID          int
}

// Cohort returns the (year, month) cohort key of the profile.
func (p UserCohortProfile) Cohort() MonthKey {
	return MonthKey{Year: p.Year, Month: p.Month}
}

// ConversionRecord joins a profile with the user's first purchase.
// Anomalous records have a negative Days value and are kept out of means.
type ConversionRecord struct {
	UserID            uint64
	FirstSessionDate  time.Time
	FirstPurchaseDate time.Time
	SourceID          int
	Year              int
	Month             int
	Days              int
	Anomalous         bool
}
