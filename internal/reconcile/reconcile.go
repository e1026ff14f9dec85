// Package reconcile computes the changes that bring the remote flow set in
// line with the local one.
//
// Matching is by name only. A flow present on both sides is always updated,
// even when its content is unchanged.
package reconcile

import (
	"fmt"

	"github.com/roach88/botsync/internal/bot"
)

// Plan partitions local and remote flows into the three change groups.
//
// Every remote flow appears in exactly one of Update or Delete. Every local
// flow appears in Create or contributes to exactly one entry of Update.
type Plan struct {
	Delete []bot.RemoteFlow
	Update []bot.MergedFlow
	Create []bot.Flow
}

// Summary counts the entries of each group.
type Summary struct {
	Delete int `json:"delete"`
	Update int `json:"update"`
	Create int `json:"create"`
}

func (s Summary) String() string {
	return fmt.Sprintf("%d to delete, %d to update, %d to create", s.Delete, s.Update, s.Create)
}

// Summary returns the group sizes.
func (p Plan) Summary() Summary {
	return Summary{Delete: len(p.Delete), Update: len(p.Update), Create: len(p.Create)}
}

// Empty reports whether the plan has no flow changes.
func (p Plan) Empty() bool {
	return len(p.Delete) == 0 && len(p.Update) == 0 && len(p.Create) == 0
}

// Reconcile is a pure function of its inputs.
//
// Remote flows are visited in remote order: a remote flow whose name matches
// a local flow becomes a merged update (remote fields overlaid by local
// fields, remote id kept), otherwise it is deleted. Local flows whose name
// matches no remote flow are created, in local order.
//
// When several local flows share a name, the first one is used for matching.
func Reconcile(local []bot.Flow, remote []bot.RemoteFlow) (Plan, error) {
	byName := make(map[string]bot.Flow, len(local))
	for _, f := range local {
		if _, seen := byName[f.Name]; !seen {
			byName[f.Name] = f
		}
	}

	remoteNames := make(map[string]struct{}, len(remote))
	plan := Plan{
		Delete: []bot.RemoteFlow{},
		Update: []bot.MergedFlow{},
		Create: []bot.Flow{},
	}

	for _, rf := range remote {
		remoteNames[rf.Name] = struct{}{}
		lf, ok := byName[rf.Name]
		if !ok {
			plan.Delete = append(plan.Delete, rf)
			continue
		}
		merged, err := bot.Merge(rf, lf)
		if err != nil {
			return Plan{}, fmt.Errorf("reconcile %q: %w", rf.Name, err)
		}
		plan.Update = append(plan.Update, merged)
	}

	for _, lf := range local {
		if _, ok := remoteNames[lf.Name]; !ok {
			plan.Create = append(plan.Create, lf)
		}
	}

	return plan, nil
}
