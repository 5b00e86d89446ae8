package storage

import (
	"fmt"
	"strings"

	"github.com/radiusdt/vector-metrics/internal/models"
)

// rowScanner is the cursor shape shared by database/sql, pgx and the
// ClickHouse driver. All loader queries return nullable text columns so one
// scanner serves every dialect; NULL timestamps surface as empty strings and
// are reported by the engine as malformed.
type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func render(query, table string) string {
	return strings.ReplaceAll(query, "{table}", table)
}

// scanSessions reads rows of (uid, device, source_id, start_ts, end_ts).
// Rows with a bad id are skipped into rej.
func scanSessions(rows rowScanner, rej *rejectLog) ([]models.RawSession, error) {
	rej.reset(StageSessions)
	var out []models.RawSession
	for n := 1; rows.Next(); n++ {
		var uid, device, source, start, end *string
		if err := rows.Scan(&uid, &device, &source, &start, &end); err != nil {
			return nil, fmt.Errorf("scan session row %d: %w", n, err)
		}
		userID, err := parseUserID(deref(uid))
		if err != nil {
			rej.add(StageSessions, n, 0, fmt.Errorf("session row %d: %w", n, err))
			continue
		}
		sourceID, err := parseSourceID(deref(source), true)
		if err != nil {
			rej.add(StageSessions, n, userID, fmt.Errorf("session row %d: %w", n, err))
			continue
		}
		out = append(out, models.RawSession{
			UserID:   userID,
			Start:    deref(start),
			End:      deref(end),
			Device:   deref(device),
			SourceID: sourceID,
		})
	}
	return out, rows.Err()
}

// scanOrders reads rows of (uid, buy_ts, revenue).
func scanOrders(rows rowScanner, rej *rejectLog) ([]models.RawOrder, error) {
	rej.reset(StageOrders)
	var out []models.RawOrder
	for n := 1; rows.Next(); n++ {
		var uid, buyTS, revenue *string
		if err := rows.Scan(&uid, &buyTS, &revenue); err != nil {
			return nil, fmt.Errorf("scan order row %d: %w", n, err)
		}
		userID, err := parseUserID(deref(uid))
		if err != nil {
			rej.add(StageOrders, n, 0, fmt.Errorf("order row %d: %w", n, err))
			continue
		}
		amount, err := parseAmount(deref(revenue))
		if err != nil {
			rej.add(StageOrders, n, userID, fmt.Errorf("order row %d: %w", n, err))
			continue
		}
		out = append(out, models.RawOrder{
			UserID:  userID,
			BuyTime: deref(buyTS),
			Revenue: amount,
		})
	}
	return out, rows.Err()
}

// scanCosts reads rows of (source_id, dt, costs).
func scanCosts(rows rowScanner, rej *rejectLog) ([]models.RawCost, error) {
	rej.reset(StageCosts)
	var out []models.RawCost
	for n := 1; rows.Next(); n++ {
		var source, dt, spend *string
		if err := rows.Scan(&source, &dt, &spend); err != nil {
			return nil, fmt.Errorf("scan cost row %d: %w", n, err)
		}
		sourceID, err := parseSourceID(deref(source), true)
		if err != nil {
			rej.add(StageCosts, n, 0, fmt.Errorf("cost row %d: %w", n, err))
			continue
		}
		amount, err := parseAmount(deref(spend))
		if err != nil {
			rej.add(StageCosts, n, 0, fmt.Errorf("cost row %d: %w", n, err))
			continue
		}
		out = append(out, models.RawCost{
			SourceID: sourceID,
			Date:     deref(dt),
			Spend:    amount,
		})
	}
	return out, rows.Err()
}
