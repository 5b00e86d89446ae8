package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/radiusdt/vector-metrics/internal/models"
)

const day = 24 * time.Hour

type meanAcc struct {
	total     int
	n         int
	anomalies int
}

func (a *meanAcc) mean() float64 {
	if a.n == 0 {
		return 0
	}
	return float64(a.total) / float64(a.n)
}

// ComputeConversion joins each profile one-to-one with the user's first
// purchase date and averages conversion time by cohort month and by source.
// Negative conversion times are reported and kept out of the means.
func ComputeConversion(profiles map[uint64]models.UserCohortProfile, firstPurchases map[uint64]time.Time) (models.ConversionReport, []models.Issue) {
	rep := models.ConversionReport{
		Records:          make([]models.ConversionRecord, 0),
		ByCohort:         make([]models.CohortConversion, 0),
		ByChannel:        make([]models.ChannelConversion, 0),
		ChannelFirstSeen: make([]models.ChannelFirstSeen, 0),
	}
	var issues []models.Issue

	userIDs := make([]uint64, 0, len(profiles))
	for id := range profiles {
		userIDs = append(userIDs, id)
	}
	sort.Slice(userIDs, func(i, j int) bool { return userIDs[i] < userIDs[j] })

	cohorts := make(map[models.MonthKey]*meanAcc)
	channels := make(map[int]*meanAcc)
	firstSeen := make(map[int]time.Time)

	for _, id := range userIDs {
		p := profiles[id]
		purchase, ok := firstPurchases[id]
		if !ok {
			continue
		}
		if d, ok := firstSeen[p.SourceID]; !ok || p.FirstSessionDate.Before(d) {
			firstSeen[p.SourceID] = p.FirstSessionDate
		}
		rec := models.ConversionRecord{
			UserID:            id,
			FirstSessionDate:  p.FirstSessionDate,
			FirstPurchaseDate: purchase,
			SourceID:          p.SourceID,
			Year:              p.Year,
			Month:             p.Month,
			Days:              int(purchase.Sub(p.FirstSessionDate) / day),
		}

		ca := cohorts[p.Cohort()]
		if ca == nil {
			ca = &meanAcc{}
			cohorts[p.Cohort()] = ca
		}
		ch := channels[p.SourceID]
		if ch == nil {
			ch = &meanAcc{}
			channels[p.SourceID] = ch
		}

		if rec.Days < 0 {
			rec.Anomalous = true
			ca.anomalies++
			ch.anomalies++
			is := recordIssue("", -1, id, fmt.Errorf("%w: first purchase %s is %d days before first session %s",
				ErrNegativeConversionTime,
				purchase.Format(models.DateLayout), -rec.Days, p.FirstSessionDate.Format(models.DateLayout)))
			is.SourceID = p.SourceID
			issues = append(issues, is)
		} else {
			ca.total += rec.Days
			ca.n++
			ch.total += rec.Days
			ch.n++
		}
		rep.Records = append(rep.Records, rec)
	}

	for _, k := range sortedMonthKeys(cohorts) {
		a := cohorts[k]
		rep.ByCohort = append(rep.ByCohort, models.CohortConversion{
			MonthKey:    k,
			MeanDays:    a.mean(),
			Conversions: a.n,
			Anomalies:   a.anomalies,
		})
	}
	for _, src := range sortedSourceIDs(channels) {
		a := channels[src]
		rep.ByChannel = append(rep.ByChannel, models.ChannelConversion{
			SourceID:    src,
			MeanDays:    a.mean(),
			Conversions: a.n,
			Anomalies:   a.anomalies,
		})
	}
	for _, src := range sortedSourceIDs(firstSeen) {
		rep.ChannelFirstSeen = append(rep.ChannelFirstSeen, models.ChannelFirstSeen{
			SourceID:  src,
			FirstSeen: firstSeen[src].Format(models.DateLayout),
		})
	}
	return rep, issues
}

func sortedSourceIDs[V any](m map[int]V) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
