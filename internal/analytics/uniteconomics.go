package analytics

import (
	"fmt"

	"github.com/radiusdt/vector-metrics/internal/models"
)

// ComputeUnitEconomics derives CAC and ROMI per source over the union of
// sources with spend, acquired users or LTV.
//
//	CAC  = spend / acquired users  (0 and degenerate when either side is 0)
//	ROMI = LTV / spend             (undefined when spend is 0)
func ComputeUnitEconomics(spend []models.ChannelCost, acquired map[int]int, ltv []models.ChannelLTV) (models.UnitEconomicsReport, []models.Issue) {
	rep := models.UnitEconomicsReport{
		CAC:  make([]models.ChannelCAC, 0),
		ROMI: make([]models.ChannelROMI, 0),
	}
	var issues []models.Issue

	sources := make(map[int]struct{})
	spendBy := make(map[int]float64, len(spend))
	for _, s := range spend {
		spendBy[s.SourceID] = s.Spend
		sources[s.SourceID] = struct{}{}
	}
	ltvBy := make(map[int]float64, len(ltv))
	for _, l := range ltv {
		ltvBy[l.SourceID] = l.LTV
		sources[l.SourceID] = struct{}{}
	}
	for src := range acquired {
		sources[src] = struct{}{}
	}

	for _, src := range sortedSourceIDs(sources) {
		sp, users := spendBy[src], acquired[src]

		cac := models.ChannelCAC{SourceID: src, Spend: sp, AcquiredUsers: users}
		switch {
		case users == 0:
			cac.Degenerate = true
			issues = append(issues, sourceIssue(src, fmt.Errorf("%w: CAC for source %d has no acquired users", ErrDivisionByZero, src)))
		case sp == 0:
			cac.Degenerate = true
			issues = append(issues, sourceIssue(src, fmt.Errorf("%w: CAC for source %d has no recorded spend", ErrDivisionByZero, src)))
		default:
			cac.CAC = sp / float64(users)
		}
		rep.CAC = append(rep.CAC, cac)

		romi := models.ChannelROMI{SourceID: src, LTV: ltvBy[src], Spend: sp}
		if sp == 0 {
			romi.ROMI = models.UndefinedRatio()
			issues = append(issues, sourceIssue(src, fmt.Errorf("%w: ROMI for source %d is undefined without spend", ErrDivisionByZero, src)))
		} else {
			romi.ROMI = models.DefinedRatio(romi.LTV / sp)
		}
		rep.ROMI = append(rep.ROMI, romi)
	}
	return rep, issues
}
