package analytics

import (
	"errors"

	"github.com/radiusdt/vector-metrics/internal/models"
)

// Stream names used in diagnostics.
const (
	StreamSessions = "sessions"
	StreamOrders   = "orders"
	StreamCosts    = "costs"
)

var (
	ErrMalformedTimestamp     = errors.New("malformed timestamp")
	ErrMissingCohort          = errors.New("missing cohort")
	ErrNegativeConversionTime = errors.New("negative conversion time")
	ErrNegativeDuration       = errors.New("negative session duration")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrDivisionByZero         = errors.New("division by zero")
)

// KindOf maps an anomaly error onto its diagnostics kind.
func KindOf(err error) models.IssueKind {
	switch {
	case errors.Is(err, ErrMalformedTimestamp):
		return models.IssueMalformedTimestamp
	case errors.Is(err, ErrMissingCohort):
		return models.IssueMissingCohort
	case errors.Is(err, ErrNegativeConversionTime):
		return models.IssueNegativeConversionTime
	case errors.Is(err, ErrNegativeDuration):
		return models.IssueNegativeDuration
	case errors.Is(err, ErrInvalidAmount):
		return models.IssueInvalidAmount
	case errors.Is(err, ErrDivisionByZero):
		return models.IssueDivisionByZero
	default:
		return ""
	}
}

func recordIssue(stream string, index int, userID uint64, err error) models.Issue {
	return models.Issue{
		Kind:   KindOf(err),
		Stream: stream,
		Index:  index,
		UserID: userID,
		Detail: err.Error(),
	}
}

func sourceIssue(sourceID int, err error) models.Issue {
	return models.Issue{
		Kind:     KindOf(err),
		Index:    -1,
		SourceID: sourceID,
		Detail:   err.Error(),
	}
}

// buildDiagnostics concatenates issue groups in the given order and counts
// them per kind.
func buildDiagnostics(groups ...[]models.Issue) models.Diagnostics {
	diag := models.Diagnostics{
		Issues: make([]models.Issue, 0),
		Counts: make(map[models.IssueKind]int),
	}
	for _, g := range groups {
		for _, is := range g {
			diag.Issues = append(diag.Issues, is)
			diag.Counts[is.Kind]++
		}
	}
	return diag
}

// rejectedByStream counts rows dropped by the loader before the run.
func rejectedByStream(rejected []models.Issue) map[string]int {
	n := make(map[string]int, 3)
	for _, is := range rejected {
		n[is.Stream]++
	}
	return n
}
