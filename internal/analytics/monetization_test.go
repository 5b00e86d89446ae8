package analytics

import (
	"testing"

	"github.com/radiusdt/vector-metrics/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeMonetization_LTVPerPayingUser(t *testing.T) {
	sessions := mustSessions(
		sess(1, "2017-06-01 10:00:00", "2017-06-01 10:10:00", "desktop", 3),
		sess(2, "2017-06-05 10:00:00", "2017-06-05 10:10:00", "desktop", 3),
		sess(3, "2017-06-05 10:00:00", "2017-06-05 10:10:00", "desktop", 3),
	)
	orders := mustOrders(
		order(1, "2017-06-01 11:00:00", "10"),
		order(1, "2017-07-01 11:00:00", "20"),
		order(2, "2017-06-05 11:00:00", "6"),
	)

	rep := ComputeMonetization(sessions, orders, AssignCohorts(sessions))

	require.Len(t, rep.ByChannel, 1)
	assert.Equal(t, models.ChannelLTV{SourceID: 3, Revenue: 36, PayingUsers: 2, LTV: 18}, rep.ByChannel[0])

	require.Len(t, rep.ByCohort, 1)
	assert.Equal(t, models.MonthKey{Year: 2017, Month: 6}, rep.ByCohort[0].MonthKey)
	assert.InDelta(t, 18.0, rep.ByCohort[0].LTV, 1e-9)

	require.Len(t, rep.PurchasesByMonth, 2)
	assert.Equal(t, 2, rep.PurchasesByMonth[0].Orders)
	assert.Equal(t, 1, rep.PurchasesByMonth[1].Orders)

	assert.Equal(t, 2, rep.PayingUsers)
	assert.InDelta(t, 18.0, rep.AvgRevenuePerBuyer, 1e-9)
}

func TestComputeMonetization_DeviceFanOut(t *testing.T) {
	sessions := mustSessions(
		sess(1, "2017-06-01 10:00:00", "2017-06-01 10:10:00", "desktop", 3),
		sess(1, "2017-06-02 10:00:00", "2017-06-02 10:10:00", "desktop", 3),
		sess(1, "2017-06-03 10:00:00", "2017-06-03 10:10:00", "touch", 3),
		sess(2, "2017-06-03 10:00:00", "2017-06-03 10:10:00", "touch", 3),
	)
	orders := mustOrders(order(1, "2017-06-01 11:00:00", "10"))

	rep := ComputeMonetization(sessions, orders, AssignCohorts(sessions))

	require.Len(t, rep.ByDevice, 2)
	assert.Equal(t, models.DeviceLTV{Device: models.DeviceDesktop, Revenue: 20, PayingUsers: 1, LTV: 20}, rep.ByDevice[0])
	assert.Equal(t, models.DeviceLTV{Device: models.DeviceMobile, Revenue: 10, PayingUsers: 1, LTV: 10}, rep.ByDevice[1])
}

func TestComputeMonetization_OrphanOrders(t *testing.T) {
	sessions := mustSessions(
		sess(1, "2017-06-01 10:00:00", "2017-06-01 10:10:00", "desktop", 3),
	)
	raw := []models.RawOrder{
		order(1, "2017-06-01 11:00:00", "10"),
		order(8, "2017-06-01 11:00:00", "7"),
		order(9, "2017-06-01 11:00:00", "4.5"),
	}
	raw[1].SourceID = 4
	orders := mustOrders(raw...)

	rep := ComputeMonetization(sessions, orders, AssignCohorts(sessions))

	require.Len(t, rep.ByChannel, 2)
	assert.Equal(t, 4, rep.ByChannel[1].SourceID)
	assert.InDelta(t, 7.0, rep.ByChannel[1].LTV, 1e-9)

	// orphans never reach cohort tables
	require.Len(t, rep.ByCohort, 1)
	assert.Equal(t, 1, rep.ByCohort[0].PayingUsers)

	assert.Equal(t, 1, rep.UnattributedOrders)
	assert.InDelta(t, 4.5, rep.UnattributedRevenue, 1e-9)
	assert.Equal(t, 3, rep.PayingUsers)
}

func TestComputeMonetization_ExactSums(t *testing.T) {
	sessions := mustSessions(sess(1, "2017-06-01 10:00:00", "2017-06-01 10:10:00", "desktop", 3))
	orders := mustOrders(
		order(1, "2017-06-01 11:00:00", "0.1"),
		order(1, "2017-06-01 12:00:00", "0.2"),
	)

	rep := ComputeMonetization(sessions, orders, AssignCohorts(sessions))
	assert.Equal(t, 0.3, rep.ByChannel[0].Revenue)
}
