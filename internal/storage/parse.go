package storage

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/radiusdt/vector-metrics/internal/models"
)

// Identifiers and amounts must parse at load time; timestamps are passed
// through as text and validated by the engine. Rows failing here are skipped
// and kept in a rejectLog.

var (
	errInvalidField  = errors.New("invalid field")
	errInvalidAmount = errors.New("invalid amount")
)

func parseUserID(s string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: user id %q", errInvalidField, s)
	}
	return id, nil
}

// parseSourceID parses a source id. An empty optional value yields 0.
func parseSourceID(s string, required bool) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" && !required {
		return 0, nil
	}
	id, err := strconv.Atoi(s)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("%w: source id %q", errInvalidField, s)
	}
	return id, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w %q", errInvalidAmount, s)
	}
	return d, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// RejectReporter is implemented by sources that skip unparseable rows.
// Rejected returns the rows skipped by the most recent load of each stream.
type RejectReporter interface {
	Rejected() []models.Issue
}

// rejectLog collects skipped rows per stream. Reloading a stream replaces
// its entries.
type rejectLog struct {
	mu       sync.Mutex
	byStream map[string][]models.Issue
}

func (l *rejectLog) reset(stream string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.byStream == nil {
		l.byStream = make(map[string][]models.Issue)
	}
	l.byStream[stream] = nil
}

func (l *rejectLog) add(stream string, row int, userID uint64, err error) {
	kind := models.IssueMalformedRecord
	if errors.Is(err, errInvalidAmount) {
		kind = models.IssueInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.byStream == nil {
		l.byStream = make(map[string][]models.Issue)
	}
	l.byStream[stream] = append(l.byStream[stream], models.Issue{
		Kind:   kind,
		Stream: stream,
		Index:  -1,
		Row:    row,
		UserID: userID,
		Detail: err.Error(),
	})
}

func (l *rejectLog) Rejected() []models.Issue {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.Issue
	for _, stream := range []string{StageSessions, StageOrders, StageCosts} {
		out = append(out, l.byStream[stream]...)
	}
	return out
}
