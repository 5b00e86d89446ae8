package analytics

import (
	"testing"

	"github.com/radiusdt/vector-metrics/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateCosts(t *testing.T) {
	rep := AggregateCosts(mustCosts(
		cost(2, "2017-06-01", "10.10"),
		cost(1, "2017-06-01", "5"),
		cost(1, "2017-06-02", "5.5"),
		cost(1, "2018-01-10", "1"),
		cost(1, "2017-01-10", "2"),
	))

	require.Len(t, rep.ByChannelMonth, 4)
	assert.Equal(t, models.ChannelMonthCost{SourceID: 1, Year: 2017, Month: 1, Spend: 2}, rep.ByChannelMonth[0])
	assert.Equal(t, models.ChannelMonthCost{SourceID: 1, Year: 2017, Month: 6, Spend: 10.5}, rep.ByChannelMonth[1])
	assert.Equal(t, models.ChannelMonthCost{SourceID: 1, Year: 2018, Month: 1, Spend: 1}, rep.ByChannelMonth[2])
	assert.Equal(t, models.ChannelMonthCost{SourceID: 2, Year: 2017, Month: 6, Spend: 10.1}, rep.ByChannelMonth[3])

	assert.Equal(t, []models.ChannelCost{{SourceID: 1, Spend: 13.5}, {SourceID: 2, Spend: 10.1}}, rep.ByChannel)
	assert.Equal(t, 23.6, rep.Total)
}

func TestAggregateCosts_Empty(t *testing.T) {
	rep := AggregateCosts(nil)
	assert.NotNil(t, rep.ByChannel)
	assert.Empty(t, rep.ByChannelMonth)
	assert.Zero(t, rep.Total)
}
