package engine

import (
	"fmt"

	"github.com/roach88/botsync/internal/bot"
	"github.com/roach88/botsync/internal/loader"
	"github.com/roach88/botsync/internal/reconcile"
)

// Report describes what an operation did, or for a dry run, would do.
type Report struct {
	RunID    string             `json:"run_id"`
	Command  string             `json:"command"`
	DryRun   bool               `json:"dry_run,omitempty"`
	Summary  *reconcile.Summary `json:"summary,omitempty"`
	Changes  []Change           `json:"changes,omitempty"`
	Rules    *RulesReport       `json:"rules,omitempty"`
	Snapshot string             `json:"snapshot,omitempty"`

	// Applied counts remote mutations that succeeded.
	Applied int `json:"applied"`
}

// Change is one planned flow mutation.
type Change struct {
	Kind     OpKind `json:"kind"`
	Name     string `json:"name"`
	RemoteID string `json:"remote_id,omitempty"`
	Digest   string `json:"digest,omitempty"`
}

// RulesReport describes the AI rule set pushed by an update.
type RulesReport struct {
	Count   int    `json:"count"`
	Status  string `json:"status"`
	Digest  string `json:"digest"`
	Warning string `json:"warning,omitempty"`
}

func newRulesReport(res loader.RulesResult) *RulesReport {
	rules := res.RulesOrEmpty()
	r := &RulesReport{
		Count:  len(rules),
		Status: res.Status.String(),
	}
	if digest, err := bot.RulesDigest(rules); err == nil {
		r.Digest = digest
	}
	if res.Err != nil {
		r.Warning = res.Err.Error()
	}
	return r
}

// describePlan lists the plan's changes in application order. Digests are
// taken over the local side of each change.
func describePlan(plan reconcile.Plan, local []bot.Flow) ([]Change, error) {
	byName := make(map[string]bot.Flow, len(local))
	for _, f := range local {
		if _, seen := byName[f.Name]; !seen {
			byName[f.Name] = f
		}
	}

	changes := make([]Change, 0, len(plan.Delete)+len(plan.Update)+len(plan.Create))
	for _, rf := range plan.Delete {
		changes = append(changes, Change{Kind: OpDelete, Name: rf.Name, RemoteID: rf.ID})
	}
	for _, mf := range plan.Update {
		digest, err := bot.FlowDigest(byName[mf.Name])
		if err != nil {
			return nil, fmt.Errorf("describe update %q: %w", mf.Name, err)
		}
		changes = append(changes, Change{Kind: OpUpdate, Name: mf.Name, RemoteID: mf.ID, Digest: digest})
	}
	for _, f := range plan.Create {
		digest, err := bot.FlowDigest(f)
		if err != nil {
			return nil, fmt.Errorf("describe create %q: %w", f.Name, err)
		}
		changes = append(changes, Change{Kind: OpCreate, Name: f.Name, Digest: digest})
	}
	return changes, nil
}

func digestsByName(changes []Change, kind OpKind) map[string]string {
	out := make(map[string]string)
	for _, c := range changes {
		if c.Kind == kind {
			out[c.Name] = c.Digest
		}
	}
	return out
}

// details is the journal summary of a report.
func (r *Report) details() map[string]any {
	d := map[string]any{"applied": r.Applied}
	if r.DryRun {
		d["dry_run"] = true
	}
	if r.Summary != nil {
		d["delete"] = r.Summary.Delete
		d["update"] = r.Summary.Update
		d["create"] = r.Summary.Create
	}
	if r.Rules != nil {
		d["rules"] = r.Rules.Count
		d["rules_status"] = r.Rules.Status
	}
	if r.Snapshot != "" {
		d["snapshot"] = r.Snapshot
	}
	return d
}
