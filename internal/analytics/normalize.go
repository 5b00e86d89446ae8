package analytics

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/radiusdt/vector-metrics/internal/models"
)

var timestampLayouts = []string{
	models.TimestampLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	models.DateLayout,
}

// maxUnixSeconds is 9999-12-31T23:59:59Z. Larger integers are almost always
// millisecond or microsecond epochs.
const maxUnixSeconds = 253402300799

// ParseTimestamp parses the timestamp forms found in the raw logs, or
// integer Unix seconds up to the end of year 9999. Results are in UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrMalformedTimestamp)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		if secs < 0 || secs > maxUnixSeconds {
			return time.Time{}, fmt.Errorf("%w: %q is out of range for unix seconds", ErrMalformedTimestamp, raw)
		}
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, raw)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NormalizeSessions parses session timestamps and derives the calendar
// fields. Sessions with an unparseable timestamp are dropped; sessions that
// end before they start are kept but reported.
func NormalizeSessions(raw []models.RawSession) ([]models.Session, []models.Issue) {
	out := make([]models.Session, 0, len(raw))
	var issues []models.Issue

	for i, r := range raw {
		start, err := ParseTimestamp(r.Start)
		if err != nil {
			issues = append(issues, recordIssue(StreamSessions, i, r.UserID, fmt.Errorf("session_start: %w", err)))
			continue
		}
		end, err := ParseTimestamp(r.End)
		if err != nil {
			issues = append(issues, recordIssue(StreamSessions, i, r.UserID, fmt.Errorf("session_end: %w", err)))
			continue
		}

		isoYear, isoWeek := start.ISOWeek()
		s := models.Session{
			Index:       i,
			UserID:      r.UserID,
			Start:       start,
			End:         end,
			Device:      models.ParseDevice(r.Device),
			SourceID:    r.SourceID,
			Date:        truncateDay(start),
			ISOYear:     isoYear,
			ISOWeek:     isoWeek,
			Year:        start.Year(),
			Month:       int(start.Month()),
			DurationSec: int64(end.Sub(start) / time.Second),
		}
		if !s.HasValidDuration() {
			issues = append(issues, recordIssue(StreamSessions, i, r.UserID,
				fmt.Errorf("%w: ends %ds before it starts", ErrNegativeDuration, -s.DurationSec)))
		}
		out = append(out, s)
	}
	return out, issues
}

// NormalizeOrders parses purchase timestamps. Orders with an unparseable
// timestamp or negative revenue are dropped and reported.
func NormalizeOrders(raw []models.RawOrder) ([]models.Order, []models.Issue) {
	out := make([]models.Order, 0, len(raw))
	var issues []models.Issue

	for i, r := range raw {
		ts, err := ParseTimestamp(r.BuyTime)
		if err != nil {
			issues = append(issues, recordIssue(StreamOrders, i, r.UserID, fmt.Errorf("purchase_time: %w", err)))
			continue
		}
		if r.Revenue.IsNegative() {
			issues = append(issues, recordIssue(StreamOrders, i, r.UserID,
				fmt.Errorf("%w: revenue %s", ErrInvalidAmount, r.Revenue.String())))
			continue
		}
		out = append(out, models.Order{
			Index:    i,
			UserID:   r.UserID,
			BuyTime:  ts,
			Date:     truncateDay(ts),
			Year:     ts.Year(),
			Month:    int(ts.Month()),
			Revenue:  r.Revenue,
			SourceID: r.SourceID,
		})
	}
	return out, issues
}

// NormalizeCosts parses spend dates into (year, month) buckets. Records with
// an unparseable date or negative spend are dropped and reported.
func NormalizeCosts(raw []models.RawCost) ([]models.CostRecord, []models.Issue) {
	out := make([]models.CostRecord, 0, len(raw))
	var issues []models.Issue

	for i, r := range raw {
		dt, err := ParseTimestamp(r.Date)
		if err != nil {
			is := recordIssue(StreamCosts, i, 0, fmt.Errorf("date: %w", err))
			is.SourceID = r.SourceID
			issues = append(issues, is)
			continue
		}
		if r.Spend.IsNegative() {
			is := recordIssue(StreamCosts, i, 0, fmt.Errorf("%w: spend %s", ErrInvalidAmount, r.Spend.String()))
			is.SourceID = r.SourceID
			issues = append(issues, is)
			continue
		}
		out = append(out, models.CostRecord{
			Index:    i,
			SourceID: r.SourceID,
			Date:     truncateDay(dt),
			Year:     dt.Year(),
			Month:    int(dt.Month()),
			Spend:    r.Spend,
		})
	}
	return out, issues
}
