package models

import (
	"bytes"
	"strconv"
	"time"
)

// ===========================================
// RATIO
// ===========================================

// Ratio is a ratio that may be undefined. Undefined ratios encode as null
// and are distinct from a true zero.
type Ratio struct {
	Value   float64
	Defined bool
}

// DefinedRatio returns a defined ratio holding v.
func DefinedRatio(v float64) Ratio {
	return Ratio{Value: v, Defined: true}
}

// UndefinedRatio returns the undefined ratio.
func UndefinedRatio() Ratio {
	return Ratio{}
}

func (r Ratio) String() string {
	if !r.Defined {
		return "undefined"
	}
	return strconv.FormatFloat(r.Value, 'f', -1, 64)
}

func (r Ratio) MarshalJSON() ([]byte, error) {
	if !r.Defined {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, r.Value, 'g', -1, 64), nil
}

func (r *Ratio) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*r = UndefinedRatio()
		return nil
	}
	v, err := strconv.ParseFloat(string(bytes.TrimSpace(b)), 64)
	if err != nil {
		return err
	}
	*r = DefinedRatio(v)
	return nil
}

func (r Ratio) MarshalYAML() (interface{}, error) {
	if !r.Defined {
		return nil, nil
	}
	return r.Value, nil
}

// ===========================================
// ENGAGEMENT
// ===========================================

type DailyActivity struct {
	Date            string  `json:"date" yaml:"date"`
	Users           int     `json:"users" yaml:"users"`
	Sessions        int     `json:"sessions" yaml:"sessions"`
	SessionsPerUser float64 `json:"sessions_per_user" yaml:"sessions_per_user"`
}

type WeeklyActivity struct {
	WeekKey `yaml:",inline"`
	Users   int `json:"users" yaml:"users"`
}

type MonthlyActivity struct {
	MonthKey `yaml:",inline"`
	Users    int `json:"users" yaml:"users"`
}

// StickyFactors are percentages: daily = DAU/WAU, weekly = WAU/MAU.
type StickyFactors struct {
	Daily  float64 `json:"daily" yaml:"daily"`
	Weekly float64 `json:"weekly" yaml:"weekly"`
}

type EngagementReport struct {
	DAU []DailyActivity   `json:"dau_series" yaml:"dau_series"`
	WAU []WeeklyActivity  `json:"wau_series" yaml:"wau_series"`
	MAU []MonthlyActivity `json:"mau_series" yaml:"mau_series"`

	AvgDAU             float64 `json:"avg_dau" yaml:"avg_dau"`
	AvgWAU             float64 `json:"avg_wau" yaml:"avg_wau"`
	AvgMAU             float64 `json:"avg_mau" yaml:"avg_mau"`
	AvgSessionsPerUser float64 `json:"avg_sessions_per_user" yaml:"avg_sessions_per_user"`

	SessionDurationMode int64         `json:"session_duration_mode" yaml:"session_duration_mode"`
	DurationSamples     int           `json:"duration_samples" yaml:"duration_samples"`
	Sticky              StickyFactors `json:"sticky_factors" yaml:"sticky_factors"`
}

// ===========================================
// CONVERSION
// ===========================================

type CohortConversion struct {
	MonthKey    `yaml:",inline"`
	MeanDays    float64 `json:"mean_days" yaml:"mean_days"`
	Conversions int     `json:"conversions" yaml:"conversions"`
	Anomalies   int     `json:"anomalies" yaml:"anomalies"`
}

type ChannelConversion struct {
	SourceID    int     `json:"source_id" yaml:"source_id"`
	MeanDays    float64 `json:"mean_days" yaml:"mean_days"`
	Conversions int     `json:"conversions" yaml:"conversions"`
	Anomalies   int     `json:"anomalies" yaml:"anomalies"`
}

// ChannelFirstSeen is the earliest first-session date among the buyers
// attributed to a source.
type ChannelFirstSeen struct {
	SourceID  int    `json:"source_id" yaml:"source_id"`
	FirstSeen string `json:"first_seen" yaml:"first_seen"`
}

type ConversionReport struct {
	Records          []ConversionRecord  `json:"-" yaml:"-"`
	ByCohort         []CohortConversion  `json:"conversion_by_cohort" yaml:"conversion_by_cohort"`
	ByChannel        []ChannelConversion `json:"conversion_by_channel" yaml:"conversion_by_channel"`
	ChannelFirstSeen []ChannelFirstSeen  `json:"channel_first_seen" yaml:"channel_first_seen"`
}

// ===========================================
// MONETIZATION
// ===========================================

type CohortLTV struct {
	MonthKey    `yaml:",inline"`
	Revenue     float64 `json:"revenue" yaml:"revenue"`
	PayingUsers int     `json:"paying_users" yaml:"paying_users"`
	LTV         float64 `json:"ltv" yaml:"ltv"`
}

type ChannelLTV struct {
	SourceID    int     `json:"source_id" yaml:"source_id"`
	Revenue     float64 `json:"revenue" yaml:"revenue"`
	PayingUsers int     `json:"paying_users" yaml:"paying_users"`
	LTV         float64 `json:"ltv" yaml:"ltv"`
}

type DeviceLTV struct {
	Device      Device  `json:"device" yaml:"device"`
	Revenue     float64 `json:"revenue" yaml:"revenue"`
	PayingUsers int     `json:"paying_users" yaml:"paying_users"`
	LTV         float64 `json:"ltv" yaml:"ltv"`
}

type MonthlyPurchases struct {
	MonthKey `yaml:",inline"`
	Orders   int `json:"orders" yaml:"orders"`
}

type MonetizationReport struct {
	ByCohort         []CohortLTV        `json:"ltv_by_cohort" yaml:"ltv_by_cohort"`
	ByChannel        []ChannelLTV       `json:"ltv_by_channel" yaml:"ltv_by_channel"`
	ByDevice         []DeviceLTV        `json:"ltv_by_device" yaml:"ltv_by_device"`
	PurchasesByMonth []MonthlyPurchases `json:"purchases_by_month" yaml:"purchases_by_month"`

	PayingUsers         int     `json:"paying_users" yaml:"paying_users"`
	AvgRevenuePerBuyer  float64 `json:"avg_revenue_per_buyer" yaml:"avg_revenue_per_buyer"`
	UnattributedOrders  int     `json:"unattributed_orders" yaml:"unattributed_orders"`
	UnattributedRevenue float64 `json:"unattributed_revenue" yaml:"unattributed_revenue"`
}

// ===========================================
// COSTS & UNIT ECONOMICS
// ===========================================

type ChannelMonthCost struct {
	SourceID int     `json:"source_id" yaml:"source_id"`
	Year     int     `json:"year" yaml:"year"`
	Month    int     `json:"month" yaml:"month"`
	Spend    float64 `json:"spend" yaml:"spend"`
}

type ChannelCost struct {
	SourceID int     `json:"source_id" yaml:"source_id"`
	Spend    float64 `json:"spend" yaml:"spend"`
}

type CostReport struct {
	ByChannelMonth []ChannelMonthCost `json:"cost_by_channel_month" yaml:"cost_by_channel_month"`
	ByChannel      []ChannelCost      `json:"cost_by_channel" yaml:"cost_by_channel"`
	Total          float64            `json:"total_spend" yaml:"total_spend"`
}

// ChannelCAC is degenerate when the source acquired no users or recorded no
// spend; CAC is then 0.
type ChannelCAC struct {
	SourceID      int     `json:"source_id" yaml:"source_id"`
	Spend         float64 `json:"spend" yaml:"spend"`
	AcquiredUsers int     `json:"acquired_users" yaml:"acquired_users"`
	CAC           float64 `json:"cac" yaml:"cac"`
	Degenerate    bool    `json:"degenerate" yaml:"degenerate"`
}

type ChannelROMI struct {
	SourceID int     `json:"source_id" yaml:"source_id"`
	LTV      float64 `json:"ltv" yaml:"ltv"`
	Spend    float64 `json:"spend" yaml:"spend"`
	ROMI     Ratio   `json:"romi" yaml:"romi"`
}

type UnitEconomicsReport struct {
	CAC  []ChannelCAC  `json:"cac_by_channel" yaml:"cac_by_channel"`
	ROMI []ChannelROMI `json:"romi_by_channel" yaml:"romi_by_channel"`
}

// ===========================================
// DIAGNOSTICS
// ===========================================

// IssueKind classifies a data anomaly found during a run.
type IssueKind string

const (
	IssueMalformedTimestamp     IssueKind = "malformed_timestamp"
	IssueMissingCohort          IssueKind = "missing_cohort"
	IssueNegativeConversionTime IssueKind = "negative_conversion_time"
	IssueNegativeDuration       IssueKind = "negative_duration"
	IssueInvalidAmount          IssueKind = "invalid_amount"
	IssueDivisionByZero         IssueKind = "division_by_zero"
	IssueMalformedRecord        IssueKind = "malformed_record"
)

// Issue is one traceable anomaly. Index is the position in the raw stream,
// or -1 for issues that are not tied to a single record. Rows rejected
// while loading never reach the stream; Row is their source line instead.
type Issue struct {
	Kind     IssueKind `json:"kind" yaml:"kind"`
	Stream   string    `json:"stream,omitempty" yaml:"stream,omitempty"`
	Index    int       `json:"index" yaml:"index"`
	Row      int       `json:"row,omitempty" yaml:"row,omitempty"`
	UserID   uint64    `json:"user_id,omitempty" yaml:"user_id,omitempty"`
	SourceID int       `json:"source_id,omitempty" yaml:"source_id,omitempty"`
	Detail   string    `json:"detail" yaml:"detail"`
}

type Diagnostics struct {
	Issues           []Issue           `json:"issues" yaml:"issues"`
	Counts           map[IssueKind]int `json:"counts" yaml:"counts"`
	ExcludedSessions int               `json:"excluded_sessions" yaml:"excluded_sessions"`
	ExcludedOrders   int               `json:"excluded_orders" yaml:"excluded_orders"`
	ExcludedCosts    int               `json:"excluded_costs" yaml:"excluded_costs"`
}

// Count returns the number of issues of the given kind.
func (d Diagnostics) Count(kind IssueKind) int {
	return d.Counts[kind]
}

// ===========================================
// REPORT
// ===========================================

// Report holds every aggregate of one run.
type Report struct {
	Engagement    EngagementReport    `json:"engagement" yaml:"engagement"`
	Conversion    ConversionReport    `json:"conversion" yaml:"conversion"`
	Monetization  MonetizationReport  `json:"monetization" yaml:"monetization"`
	Costs         CostReport          `json:"costs" yaml:"costs"`
	UnitEconomics UnitEconomicsReport `json:"unit_economics" yaml:"unit_economics"`
	Diagnostics   Diagnostics         `json:"diagnostics" yaml:"diagnostics"`
}

// RunResult wraps a report with run metadata. Fingerprint identifies the
// input batch; identical batches produce identical reports.
type RunResult struct {
	ID          string        `json:"id" yaml:"id"`
	Fingerprint string        `json:"fingerprint" yaml:"fingerprint"`
	StartedAt   time.Time     `json:"started_at" yaml:"started_at"`
	Elapsed     time.Duration `json:"elapsed_ns" yaml:"elapsed_ns"`
	Report      *Report       `json:"report" yaml:"report"`
}
