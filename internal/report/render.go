package report

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	service "github.com/okian/armory/internal/app"
	"github.com/okian/armory/internal/domain/model"
)

var roleOrder = map[model.Role]int{
	model.RoleTank:   0,
	model.RoleHealer: 1,
	model.RoleDPS:    2,
}

// Sort orders overviews by role (tanks, healers, dps), then by performance
// score and mythic rating, both descending.
func Sort(overviews []model.CharacterOverview) {
	sort.SliceStable(overviews, func(i, j int) bool {
		a, b := overviews[i], overviews[j]
		if roleOrder[a.Role] != roleOrder[b.Role] {
			return roleOrder[a.Role] < roleOrder[b.Role]
		}
		if a.BestPerfAvgScore != b.BestPerfAvgScore {
			return a.BestPerfAvgScore > b.BestPerfAvgScore
		}
		return a.MythicRating > b.MythicRating
	})
}

// Render writes res as an aligned table followed by failures.
func Render(w io.Writer, res service.BatchResult, verbose bool) error {
	overviews := append([]model.CharacterOverview(nil), res.Overviews...)
	Sort(overviews)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ROLE\tNAME\tREALM\tCLASS\tSPEC\tILVL\tM+\tPERF")
	for _, o := range overviews {
		rating := "-"
		if o.HasMythicRating {
			rating = fmt.Sprint(o.MythicRating)
		}
		perf := "-"
		if o.HasPerformanceData {
			perf = fmt.Sprintf("%.1f", o.BestPerfAvgScore)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			o.Role, o.Name, o.RealmName, o.ClassName, o.ActiveSpec, o.EquippedItemLevel, rating, perf)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(res.Failures) == 0 {
		return nil
	}
	fmt.Fprintf(w, "\n%d character(s) failed\n", len(res.Failures))
	for _, f := range res.Failures {
		if verbose {
			fmt.Fprintf(w, "  %s/%s: %s (%s)\n", f.Realm, f.Name, f.Kind, f.Message)
			continue
		}
		fmt.Fprintf(w, "  %s/%s: %s\n", f.Realm, f.Name, f.Kind)
	}
	return nil
}
