package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radiusdt/vector-metrics/internal/models"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCSVSource_LoadAll(t *testing.T) {
	dir := t.TempDir()
	sessions := writeFile(t, dir, "visits.csv",
		"\ufeffDevice,End Ts,Source Id,Start Ts,Uid\n"+
			"touch,2017-12-20 17:38:00,4,2017-12-20 17:20:00,16879256277535980062\n"+
			"desktop,2018-02-19 17:21:00,2,2018-02-19 16:53:00,104060357244891740\n")
	orders := writeFile(t, dir, "orders.csv",
		"Buy Ts,Revenue,Uid\n"+
			"2017-06-01 00:10:00,17.00,10329302124590727494\n")
	costs := writeFile(t, dir, "costs.csv",
		"source_id,dt,costs\n"+
			"1,2017-06-01,75.20\n")

	src := NewCSVSource(sessions, orders, costs)
	batch, err := LoadBatch(context.Background(), src, nil)
	require.NoError(t, err)

	require.Len(t, batch.Sessions, 2)
	s := batch.Sessions[0]
	assert.Equal(t, uint64(16879256277535980062), s.UserID)
	assert.Equal(t, "touch", s.Device)
	assert.Equal(t, 4, s.SourceID)
	assert.Equal(t, "2017-12-20 17:20:00", s.Start)
	assert.Equal(t, "2017-12-20 17:38:00", s.End)

	require.Len(t, batch.Orders, 1)
	assert.True(t, decimal.RequireFromString("17").Equal(batch.Orders[0].Revenue))
	assert.Equal(t, 0, batch.Orders[0].SourceID)

	require.Len(t, batch.Costs, 1)
	assert.Equal(t, 1, batch.Costs[0].SourceID)
	assert.Equal(t, "2017-06-01", batch.Costs[0].Date)
	assert.True(t, decimal.RequireFromString("75.2").Equal(batch.Costs[0].Spend))
}

func TestCSVSource_OrderSourceColumn(t *testing.T) {
	dir := t.TempDir()
	orders := writeFile(t, dir, "orders.csv",
		"uid,buy_ts,revenue,source_id\n"+
			"1,2017-06-01 00:10:00,5.5,3\n"+
			"2,2017-06-01 00:10:00,1,\n")

	got, err := NewCSVSource("", orders, "").LoadOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 3, got[0].SourceID)
	assert.Equal(t, 0, got[1].SourceID)
}

func TestCSVSource_MissingColumn(t *testing.T) {
	dir := t.TempDir()
	costs := writeFile(t, dir, "costs.csv", "source_id,dt\n1,2017-06-01\n")

	_, err := NewCSVSource("", "", costs).LoadCosts(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spend")
}

func TestCSVSource_BadRowsRejected(t *testing.T) {
	dir := t.TempDir()
	orders := writeFile(t, dir, "orders.csv",
		"Buy Ts,Revenue,Uid\n"+
			"2017-06-01 00:10:00,17.00,7\n"+
			"2017-06-01 00:11:00,n/a,8\n"+
			"2017-06-01 00:12:00,3.50,abc\n"+
			"2017-06-01 00:13:00,2.00,9\n")

	src := NewCSVSource("", orders, "")
	got, err := src.LoadOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(7), got[0].UserID)
	assert.Equal(t, uint64(9), got[1].UserID)

	rejected := src.Rejected()
	require.Len(t, rejected, 2)
	assert.Equal(t, models.IssueInvalidAmount, rejected[0].Kind)
	assert.Equal(t, StageOrders, rejected[0].Stream)
	assert.Equal(t, 3, rejected[0].Row)
	assert.Equal(t, uint64(8), rejected[0].UserID)
	assert.Contains(t, rejected[0].Detail, `"n/a"`)
	assert.Equal(t, models.IssueMalformedRecord, rejected[1].Kind)
	assert.Equal(t, 4, rejected[1].Row)

	// a reload replaces the previous rejects
	require.NoError(t, os.WriteFile(orders, []byte("uid,buy_ts,revenue\n1,2017-06-01 00:10:00,1\n"), 0o644))
	_, err = src.LoadOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, src.Rejected())
}

func TestCSVSource_UnparseableLineRejected(t *testing.T) {
	dir := t.TempDir()
	costs := writeFile(t, dir, "costs.csv",
		"source_id,dt,costs\n"+
			"1,2017-06-01,75.20\n"+
			"2,2017-06-01,1\"0\n"+
			"3,2017-06-02,10\n")

	src := NewCSVSource("", "", costs)
	got, err := src.LoadCosts(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 3, got[1].SourceID)

	rejected := src.Rejected()
	require.Len(t, rejected, 1)
	assert.Equal(t, models.IssueMalformedRecord, rejected[0].Kind)
	assert.Equal(t, 3, rejected[0].Row)
}

func TestLoadBatch_CarriesRejected(t *testing.T) {
	dir := t.TempDir()
	sessions := writeFile(t, dir, "visits.csv",
		"uid,device,source_id,start_ts,end_ts\n"+
			"1,desktop,x,2017-06-01 00:00:00,2017-06-01 00:10:00\n"+
			"2,desktop,1,2017-06-01 00:00:00,2017-06-01 00:10:00\n")
	orders := writeFile(t, dir, "orders.csv", "uid,buy_ts,revenue\n2,2017-06-01 00:10:00,n/a\n")
	costs := writeFile(t, dir, "costs.csv", "source_id,dt,costs\n1,2017-06-01,5\n")

	batch, err := LoadBatch(context.Background(), NewCSVSource(sessions, orders, costs), nil)
	require.NoError(t, err)
	assert.Len(t, batch.Sessions, 1)
	assert.Empty(t, batch.Orders)
	assert.Len(t, batch.Costs, 1)

	require.Len(t, batch.Rejected, 2)
	assert.Equal(t, StageSessions, batch.Rejected[0].Stream)
	assert.Equal(t, uint64(1), batch.Rejected[0].UserID)
	assert.Equal(t, StageOrders, batch.Rejected[1].Stream)
}

func TestCSVSource_MalformedTimestampPassesThrough(t *testing.T) {
	dir := t.TempDir()
	sessions := writeFile(t, dir, "visits.csv",
		"uid,device,source_id,start_ts,end_ts\n1,desktop,1,not-a-time,2017-06-01 00:10:00\n")

	got, err := NewCSVSource(sessions, "", "").LoadSessions(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "not-a-time", got[0].Start)
}

func TestCSVSource_MissingFile(t *testing.T) {
	_, err := NewCSVSource(filepath.Join(t.TempDir(), "nope.csv"), "", "").LoadSessions(context.Background())
	assert.Error(t, err)
}
