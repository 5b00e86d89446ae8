package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TimestampLayout is the canonical textual form loaders emit for timestamps.
const TimestampLayout = "2006-01-02 15:04:05"

// DateLayout is used for every date key in the report tables.
const DateLayout = "2006-01-02"

// ===========================================
// RAW INPUT
// ===========================================

// RawSession is one browsing session as delivered by a loader. Timestamps
// stay textual so the engine can report the ones it cannot parse.
type RawSession struct {
	UserID   uint64 `json:"user_id"`
	Start    string `json:"session_start"`
	End      string `json:"session_end"`
	Device   string `json:"device"`
	SourceID int    `json:"source_id"`
}

// RawOrder is one purchase event. SourceID is optional and only used for
// orders whose user never had a session.
type RawOrder struct {
	UserID   uint64          `json:"user_id"`
	BuyTime  string          `json:"purchase_time"`
	Revenue  decimal.Decimal `json:"revenue"`
	SourceID int             `json:"source_id,omitempty"`
}

// RawCost is one (source, date) marketing spend observation.
type RawCost struct {
	SourceID int             `json:"source_id"`
	Date     string          `json:"date"`
	Spend    decimal.Decimal `json:"spend"`
}

// Batch is the complete, static input of one engine run.
type Batch struct {
	Sessions []RawSession `json:"sessions"`
	Orders   []RawOrder   `json:"orders"`
	Costs    []RawCost    `json:"costs"`

	// Rejected lists source rows that could not be turned into records.
	Rejected []Issue `json:"rejected,omitempty"`
}

// ===========================================
// DEVICE
// ===========================================

// Device is the device class of a session.
type Device string

const (
	DeviceDesktop Device = "desktop"
	DeviceMobile  Device = "mobile"
	DeviceOther   Device = "other"
)

// ParseDevice maps loader device labels onto a Device. The visits log
// labels phones and tablets as "touch".
func ParseDevice(s string) Device {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "desktop":
		return DeviceDesktop
	case "touch", "mobile", "phone", "tablet":
		return DeviceMobile
	default:
		return DeviceOther
	}
}

// ===========================================
// NORMALIZED RECORDS
// ===========================================

// Session is a RawSession with parsed timestamps and calendar fields.
// Index is the record's position in the raw stream.
type Session struct {
	Index    int
	UserID   uint64
	Start    time.Time
	End      time.Time
	Device   Device
	SourceID int

	Date        time.Time // start truncated to midnight UTC
	ISOYear     int
	ISOWeek     int
	Year        int
	Month       int
	DurationSec int64
}

// HasValidDuration reports whether the session ended at or after it started.
func (s Session) HasValidDuration() bool {
	return !s.End.Before(s.Start)
}

// Order is a RawOrder with a parsed purchase time.
type Order struct {
	Index    int
	UserID   uint64
	BuyTime  time.Time
	Date     time.Time
	Year     int
	Month    int
	Revenue  decimal.Decimal
	SourceID int
}

// CostRecord is a RawCost with a parsed date.
type CostRecord struct {
	Index    int
	SourceID int
	Date     time.Time
	Year     int
	Month    int
	Spend    decimal.Decimal
}
