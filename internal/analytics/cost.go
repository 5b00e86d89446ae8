package analytics

import (
	"sort"

	"github.com/radiusdt/vector-metrics/internal/models"
	"github.com/shopspring/decimal"
)

type channelMonth struct {
	sourceID    int
	year, month int
}

// AggregateCosts sums spend per (source, year, month) and per source.
func AggregateCosts(costs []models.CostRecord) models.CostReport {
	rep := models.CostReport{
		ByChannelMonth: make([]models.ChannelMonthCost, 0),
		ByChannel:      make([]models.ChannelCost, 0),
	}

	monthly := make(map[channelMonth]decimal.Decimal)
	totals := make(map[int]decimal.Decimal)
	var grand decimal.Decimal
	for _, c := range costs {
		k := channelMonth{sourceID: c.SourceID, year: c.Year, month: c.Month}
		monthly[k] = monthly[k].Add(c.Spend)
		totals[c.SourceID] = totals[c.SourceID].Add(c.Spend)
		grand = grand.Add(c.Spend)
	}

	keys := make([]channelMonth, 0, len(monthly))
	for k := range monthly {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.sourceID != b.sourceID {
			return a.sourceID < b.sourceID
		}
		if a.year != b.year {
			return a.year < b.year
		}
		return a.month < b.month
	})
	for _, k := range keys {
		rep.ByChannelMonth = append(rep.ByChannelMonth, models.ChannelMonthCost{
			SourceID: k.sourceID,
			Year:     k.year,
			Month:    k.month,
			Spend:    monthly[k].InexactFloat64(),
		})
	}

	for _, src := range sortedSourceIDs(totals) {
		rep.ByChannel = append(rep.ByChannel, models.ChannelCost{
			SourceID: src,
			Spend:    totals[src].InexactFloat64(),
		})
	}
	rep.Total = grand.InexactFloat64()
	return rep
}
