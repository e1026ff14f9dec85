package reconcile

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/botsync/internal/bot"
)

func remoteFlow(t *testing.T, id, name, content string) bot.RemoteFlow {
	t.Helper()
	var rf bot.RemoteFlow
	doc := fmt.Sprintf(`{"id":%q,"name":%q,"content":%q,"bot_id":"bot-1"}`, id, name, content)
	require.NoError(t, json.Unmarshal([]byte(doc), &rf))
	return rf
}

func localFlow(name, content string) bot.Flow {
	return bot.Flow{Name: name, Content: content, Source: "flows/" + name + ".csml"}
}

func names[T interface{ bot.Flow | bot.RemoteFlow | bot.MergedFlow }](items []T) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		switch v := any(it).(type) {
		case bot.Flow:
			out = append(out, v.Name)
		case bot.RemoteFlow:
			out = append(out, v.Name)
		case bot.MergedFlow:
			out = append(out, v.Name)
		}
	}
	return out
}

func TestReconcile_LocalAB_RemoteBC(t *testing.T) {
	local := []bot.Flow{localFlow("A", "a"), localFlow("B", "b-local")}
	remote := []bot.RemoteFlow{remoteFlow(t, "id-b", "B", "b-remote"), remoteFlow(t, "id-c", "C", "c")}

	plan, err := Reconcile(local, remote)
	require.NoError(t, err)

	assert.Equal(t, []string{"C"}, names(plan.Delete))
	assert.Equal(t, "id-c", plan.Delete[0].ID)

	require.Len(t, plan.Update, 1)
	assert.Equal(t, "B", plan.Update[0].Name)
	assert.Equal(t, "id-b", plan.Update[0].ID)
	out, err := json.Marshal(plan.Update[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"id-b","name":"B","content":"b-local","bot_id":"bot-1"}`, string(out))

	assert.Equal(t, []string{"A"}, names(plan.Create))
}

func TestReconcile_EmptyLocal(t *testing.T) {
	remote := []bot.RemoteFlow{remoteFlow(t, "id-b", "B", "b")}

	plan, err := Reconcile(nil, remote)
	require.NoError(t, err)

	assert.Equal(t, []string{"B"}, names(plan.Delete))
	assert.Empty(t, plan.Update)
	assert.Empty(t, plan.Create)
}

func TestReconcile_EmptyRemote(t *testing.T) {
	local := []bot.Flow{localFlow("A", "a"), localFlow("B", "b")}

	plan, err := Reconcile(local, nil)
	require.NoError(t, err)

	assert.Empty(t, plan.Delete)
	assert.Empty(t, plan.Update)
	assert.Equal(t, []string{"A", "B"}, names(plan.Create))
}

func TestReconcile_BothEmpty(t *testing.T) {
	plan, err := Reconcile(nil, nil)
	require.NoError(t, err)

	assert.True(t, plan.Empty())
	assert.NotNil(t, plan.Delete)
	assert.NotNil(t, plan.Update)
	assert.NotNil(t, plan.Create)
}

// Identical content still produces an update. This is the current contract:
// there is no content-equality short-circuit.
func TestReconcile_IdenticalContentStillUpdates(t *testing.T) {
	local := []bot.Flow{localFlow("Same", "start:\n  goto end")}
	remote := []bot.RemoteFlow{remoteFlow(t, "id-s", "Same", "start:\n  goto end")}

	plan, err := Reconcile(local, remote)
	require.NoError(t, err)

	require.Len(t, plan.Update, 1)
	assert.Equal(t, "id-s", plan.Update[0].ID)
	assert.Empty(t, plan.Delete)
	assert.Empty(t, plan.Create)
}

func TestReconcile_PreservesOrder(t *testing.T) {
	local := []bot.Flow{localFlow("Z", ""), localFlow("M", ""), localFlow("A", ""), localFlow("K", "")}
	remote := []bot.RemoteFlow{
		remoteFlow(t, "1", "Y", ""),
		remoteFlow(t, "2", "K", ""),
		remoteFlow(t, "3", "B", ""),
		remoteFlow(t, "4", "M", ""),
	}

	plan, err := Reconcile(local, remote)
	require.NoError(t, err)

	assert.Equal(t, []string{"Y", "B"}, names(plan.Delete))
	assert.Equal(t, []string{"K", "M"}, names(plan.Update))
	assert.Equal(t, []string{"Z", "A"}, names(plan.Create))
}

func TestReconcile_DuplicateLocalNames(t *testing.T) {
	local := []bot.Flow{localFlow("A", "first"), localFlow("A", "second")}
	remote := []bot.RemoteFlow{remoteFlow(t, "id-a", "A", "old")}

	plan, err := Reconcile(local, remote)
	require.NoError(t, err)

	require.Len(t, plan.Update, 1)
	out, err := json.Marshal(plan.Update[0])
	require.NoError(t, err)
	assert.Contains(t, string(out), `"content":"first"`)
	assert.Empty(t, plan.Create)
}

func TestReconcile_DuplicateRemoteNames(t *testing.T) {
	local := []bot.Flow{localFlow("A", "a")}
	remote := []bot.RemoteFlow{remoteFlow(t, "1", "A", ""), remoteFlow(t, "2", "A", "")}

	plan, err := Reconcile(local, remote)
	require.NoError(t, err)

	require.Len(t, plan.Update, 2)
	assert.Equal(t, "1", plan.Update[0].ID)
	assert.Equal(t, "2", plan.Update[1].ID)
}

func TestReconcile_DoesNotMutateInputs(t *testing.T) {
	local := []bot.Flow{localFlow("B", "new")}
	remote := []bot.RemoteFlow{remoteFlow(t, "id-b", "B", "old")}

	_, err := Reconcile(local, remote)
	require.NoError(t, err)

	assert.JSONEq(t, `"old"`, string(remote[0].Fields["content"]))
	assert.Equal(t, "new", local[0].Content)
}

// Randomized partition check over small name alphabets.
func TestReconcile_PartitionProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	alphabet := []string{"a", "b", "c", "d", "e", "f", "g"}

	for iter := 0; iter < 200; iter++ {
		var local []bot.Flow
		var remote []bot.RemoteFlow
		localNames := map[string]bool{}
		remoteNames := map[string]bool{}

		for _, n := range alphabet {
			if rng.Intn(2) == 0 {
				local = append(local, localFlow(n, "l-"+n))
				localNames[n] = true
			}
			if rng.Intn(2) == 0 {
				remote = append(remote, remoteFlow(t, "id-"+n, n, "r-"+n))
				remoteNames[n] = true
			}
		}

		plan, err := Reconcile(local, remote)
		require.NoError(t, err)

		// Every remote flow in exactly one of Update/Delete.
		seen := map[string]int{}
		for _, rf := range plan.Delete {
			seen[rf.ID]++
			assert.False(t, localNames[rf.Name], "deleted flow %s exists locally", rf.Name)
		}
		for _, mf := range plan.Update {
			seen[mf.ID]++
			assert.True(t, localNames[mf.Name], "updated flow %s missing locally", mf.Name)
			assert.Equal(t, "id-"+mf.Name, mf.ID, "remote id must be preserved")
		}
		for _, rf := range remote {
			assert.Equal(t, 1, seen[rf.ID], "remote flow %s seen %d times", rf.Name, seen[rf.ID])
		}

		// Every local-only flow in Create, and nothing else.
		for _, lf := range plan.Create {
			assert.False(t, remoteNames[lf.Name], "created flow %s exists remotely", lf.Name)
		}
		assert.Equal(t, len(local), len(plan.Create)+len(plan.Update))
	}
}

func TestPlan_Summary(t *testing.T) {
	plan := Plan{
		Delete: []bot.RemoteFlow{{ID: "1"}},
		Create: []bot.Flow{{Name: "a"}, {Name: "b"}},
	}
	s := plan.Summary()

	assert.Equal(t, Summary{Delete: 1, Update: 0, Create: 2}, s)
	assert.Equal(t, "1 to delete, 0 to update, 2 to create", s.String())
	assert.False(t, plan.Empty())
}
