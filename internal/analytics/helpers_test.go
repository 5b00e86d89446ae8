package analytics

import (
	"github.com/radiusdt/vector-metrics/internal/models"
	"github.com/shopspring/decimal"
)

func sess(uid uint64, start, end, device string, source int) models.RawSession {
	return models.RawSession{UserID: uid, Start: start, End: end, Device: device, SourceID: source}
}

func order(uid uint64, ts string, revenue string) models.RawOrder {
	return models.RawOrder{UserID: uid, BuyTime: ts, Revenue: decimal.RequireFromString(revenue)}
}

func cost(source int, date, spend string) models.RawCost {
	return models.RawCost{SourceID: source, Date: date, Spend: decimal.RequireFromString(spend)}
}

func mustSessions(raw ...models.RawSession) []models.Session {
	out, _ := NormalizeSessions(raw)
	return out
}

func mustOrders(raw ...models.RawOrder) []models.Order {
	out, _ := NormalizeOrders(raw)
	return out
}

func mustCosts(raw ...models.RawCost) []models.CostRecord {
	out, _ := NormalizeCosts(raw)
	return out
}
