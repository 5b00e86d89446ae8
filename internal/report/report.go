// Package report encodes run reports and exposes their named tables.
package report

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/radiusdt/vector-metrics/internal/models"
	"gopkg.in/yaml.v3"
)

// Format is a report serialization format.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var ErrUnknownTable = errors.New("unknown table")

// ParseFormat parses a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatJSON, "":
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown report format %q", s)
	}
}

// ContentType returns the HTTP content type for f.
func (f Format) ContentType() string {
	if f == FormatYAML {
		return "application/yaml"
	}
	return "application/json"
}

// Encode writes v in the given format. JSON output is indented.
func Encode(w io.Writer, v any, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown report format %q", f)
	}
}

// SessionDuration is the session_duration_mode table.
type SessionDuration struct {
	ModeSeconds int64 `json:"mode_seconds" yaml:"mode_seconds"`
	Samples     int   `json:"samples" yaml:"samples"`
}

var tables = map[string]func(r *models.Report) any{
	"dau_series":            func(r *models.Report) any { return r.Engagement.DAU },
	"wau_series":            func(r *models.Report) any { return r.Engagement.WAU },
	"mau_series":            func(r *models.Report) any { return r.Engagement.MAU },
	"sticky_factors":        func(r *models.Report) any { return r.Engagement.Sticky },
	"session_duration_mode": sessionDuration,
	"conversion_by_cohort":  func(r *models.Report) any { return r.Conversion.ByCohort },
	"conversion_by_channel": func(r *models.Report) any { return r.Conversion.ByChannel },
	"channel_first_seen":    func(r *models.Report) any { return r.Conversion.ChannelFirstSeen },
	"ltv_by_cohort":         func(r *models.Report) any { return r.Monetization.ByCohort },
	"ltv_by_channel":        func(r *models.Report) any { return r.Monetization.ByChannel },
	"ltv_by_device":         func(r *models.Report) any { return r.Monetization.ByDevice },
	"purchases_by_month":    func(r *models.Report) any { return r.Monetization.PurchasesByMonth },
	"cost_by_channel_month": func(r *models.Report) any { return r.Costs.ByChannelMonth },
	"cost_by_channel":       func(r *models.Report) any { return r.Costs.ByChannel },
	"cac_by_channel":        func(r *models.Report) any { return r.UnitEconomics.CAC },
	"romi_by_channel":       func(r *models.Report) any { return r.UnitEconomics.ROMI },
	"diagnostics":           func(r *models.Report) any { return r.Diagnostics },
}

func sessionDuration(r *models.Report) any {
	return SessionDuration{
		ModeSeconds: r.Engagement.SessionDurationMode,
		Samples:     r.Engagement.DurationSamples,
	}
}

// TableNames returns the names accepted by Table, sorted.
func TableNames() []string {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Table returns the named table of r.
func Table(r *models.Report, name string) (any, error) {
	fn, ok := tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	return fn(r), nil
}
