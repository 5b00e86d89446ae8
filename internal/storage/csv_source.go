package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/radiusdt/vector-metrics/internal/models"
)

// CSVSource reads the visits, orders and costs exports. Column names are
// matched case-insensitively and both the export headers ("Start Ts",
// "Buy Ts", "dt") and snake_case names are accepted. Rows with a bad id or
// amount are skipped and reported through Rejected.
type CSVSource struct {
	sessionsPath string
	ordersPath   string
	costsPath    string

	rejectLog
}

// NewCSVSource creates a source over three CSV files.
func NewCSVSource(sessionsPath, ordersPath, costsPath string) *CSVSource {
	return &CSVSource{
		sessionsPath: sessionsPath,
		ordersPath:   ordersPath,
		costsPath:    costsPath,
	}
}

type columnSet struct {
	aliases  map[string][]string
	required []string
}

var sessionColumns = columnSet{
	aliases: map[string][]string{
		"user":   {"uid", "user_id"},
		"device": {"device"},
		"source": {"source_id", "source_channel", "channel"},
		"start":  {"start_ts", "session_start"},
		"end":    {"end_ts", "session_end"},
	},
	required: []string{"user", "device", "source", "start", "end"},
}

var orderColumns = columnSet{
	aliases: map[string][]string{
		"user":    {"uid", "user_id"},
		"time":    {"buy_ts", "purchase_time"},
		"revenue": {"revenue"},
		"source":  {"source_id", "source_channel", "channel"},
	},
	required: []string{"user", "time", "revenue"},
}

var costColumns = columnSet{
	aliases: map[string][]string{
		"source": {"source_id", "channel"},
		"date":   {"dt", "date"},
		"spend":  {"costs", "spend"},
	},
	required: []string{"source", "date", "spend"},
}

func (s *CSVSource) LoadSessions(ctx context.Context) ([]models.RawSession, error) {
	s.reset(StageSessions)
	var out []models.RawSession
	err := readCSV(ctx, s.sessionsPath, sessionColumns, func(line int, r csvRow, err error) {
		if err != nil {
			s.reject(StageSessions, s.sessionsPath, line, 0, err)
			return
		}
		uid, err := parseUserID(r.get("user"))
		if err != nil {
			s.reject(StageSessions, s.sessionsPath, line, 0, err)
			return
		}
		src, err := parseSourceID(r.get("source"), true)
		if err != nil {
			s.reject(StageSessions, s.sessionsPath, line, uid, err)
			return
		}
		out = append(out, models.RawSession{
			UserID:   uid,
			Start:    r.get("start"),
			End:      r.get("end"),
			Device:   r.get("device"),
			SourceID: src,
		})
	})
	return out, err
}

func (s *CSVSource) LoadOrders(ctx context.Context) ([]models.RawOrder, error) {
	s.reset(StageOrders)
	var out []models.RawOrder
	err := readCSV(ctx, s.ordersPath, orderColumns, func(line int, r csvRow, err error) {
		if err != nil {
			s.reject(StageOrders, s.ordersPath, line, 0, err)
			return
		}
		uid, err := parseUserID(r.get("user"))
		if err != nil {
			s.reject(StageOrders, s.ordersPath, line, 0, err)
			return
		}
		revenue, err := parseAmount(r.get("revenue"))
		if err != nil {
			s.reject(StageOrders, s.ordersPath, line, uid, err)
			return
		}
		src, err := parseSourceID(r.get("source"), false)
		if err != nil {
			s.reject(StageOrders, s.ordersPath, line, uid, err)
			return
		}
		out = append(out, models.RawOrder{
			UserID:   uid,
			BuyTime:  r.get("time"),
			Revenue:  revenue,
			SourceID: src,
		})
	})
	return out, err
}

func (s *CSVSource) LoadCosts(ctx context.Context) ([]models.RawCost, error) {
	s.reset(StageCosts)
	var out []models.RawCost
	err := readCSV(ctx, s.costsPath, costColumns, func(line int, r csvRow, err error) {
		if err != nil {
			s.reject(StageCosts, s.costsPath, line, 0, err)
			return
		}
		src, err := parseSourceID(r.get("source"), true)
		if err != nil {
			s.reject(StageCosts, s.costsPath, line, 0, err)
			return
		}
		spend, err := parseAmount(r.get("spend"))
		if err != nil {
			s.reject(StageCosts, s.costsPath, line, 0, err)
			return
		}
		out = append(out, models.RawCost{
			SourceID: src,
			Date:     r.get("date"),
			Spend:    spend,
		})
	})
	return out, err
}

func (s *CSVSource) reject(stream, path string, line int, userID uint64, err error) {
	s.add(stream, line, userID, fmt.Errorf("%s line %d: %w", path, line, err))
}

type csvRow struct {
	index  map[string]int
	record []string
}

func (r csvRow) get(field string) string {
	i, ok := r.index[field]
	if !ok || i >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[i])
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.ReplaceAll(h, " ", "_")
}

// readCSV maps the header onto cols and calls fn with the line number of
// every data row. A row the csv reader cannot parse is passed to fn with its
// error; only I/O and header problems abort the read.
func readCSV(ctx context.Context, path string, cols columnSet, fn func(int, csvRow, error)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("read header of %s: %w", path, err)
	}
	positions := make(map[string]int, len(header))
	for i, h := range header {
		positions[normalizeHeader(h)] = i
	}
	index := make(map[string]int, len(cols.aliases))
	for field, aliases := range cols.aliases {
		for _, a := range aliases {
			if i, ok := positions[a]; ok {
				index[field] = i
				break
			}
		}
	}
	for _, field := range cols.required {
		if _, ok := index[field]; !ok {
			return fmt.Errorf("%s: missing column for %q (one of %s)", path, field, strings.Join(cols.aliases[field], ", "))
		}
	}

	for n := 1; ; n++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			fn(perr.StartLine, csvRow{}, err)
			continue
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if n%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		line, _ := r.FieldPos(0)
		fn(line, csvRow{index: index, record: record}, nil)
	}
}
