package sessions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/bdistudio/internal/bdi"
	"github.com/hpungsan/bdistudio/internal/contexts"
)

// TestWorkflow_ConversationalStages walks a session through the stages an
// authoring conversation goes through: context setup, belief import,
// incremental BDI construction, report, archive.
func TestWorkflow_ConversationalStages(t *testing.T) {
	ctx := context.Background()
	dataDir := t.TempDir()
	reg := contexts.NewRegistry(dataDir)
	store := NewStore(dataDir)

	_, err := reg.Create("Rural Health", "clinics and outreach")
	require.NoError(t, err)
	_, err = reg.SaveBeliefBase("rural_health", []any{
		map[string]any{"subject": "distance", "statement": "clinics are far"},
	})
	require.NoError(t, err)

	sess, err := store.Create(CreateInput{
		Name:        "Outreach plan",
		Context:     "rural_health",
		LLMProvider: "Gemini",
		LLMModel:    "gemini-2.5-pro",
	})
	require.NoError(t, err)
	id := sess.SessionID

	imported, err := store.ImportContextBeliefs(id, "rural_health", reg)
	require.NoError(t, err)
	assert.Equal(t, 1, imported.Imported)

	// Beneficiary stage.
	summary := "Maternal health outreach in remote villages"
	beneficiary := map[string]any{"name": "Community health worker", "description": "visits households"}
	_, err = store.UpdateBDI(id, bdi.Update{DomainSummary: &summary, Beneficiario: &beneficiary})
	require.NoError(t, err)

	// Desire stage, two turns.
	d1 := []any{map[string]any{"desire_id": "D1", "desire_statement": "Reach every household", "priority": "high"}}
	_, err = store.AppendBDI(id, bdi.Update{Desires: &d1})
	require.NoError(t, err)
	d2 := []any{map[string]any{"desire_id": "D2", "desire_statement": "Track visits", "priority": "medium"}}
	_, err = store.AppendBDI(id, bdi.Update{Desires: &d2})
	require.NoError(t, err)

	// Belief stage references desires by id.
	beliefs := []any{map[string]any{
		"subject":         "B1",
		"statement":       "Phones are widely available",
		"related_desires": []any{"D2"},
	}}
	_, err = store.AppendBDI(id, bdi.Update{Beliefs: &beliefs})
	require.NoError(t, err)

	doc, err := store.BDI(id)
	require.NoError(t, err)
	assert.Equal(t, summary, doc.DomainSummary)
	assert.Equal(t, beneficiary, doc.Beneficiario)
	require.Len(t, doc.Desires, 2)
	require.Len(t, doc.Beliefs, 1)
	assert.Empty(t, doc.Intentions)
	assert.Equal(t, []string{"D2"}, bdi.RelatedDesireIDs(doc.Beliefs[0]))

	// Re-applying the same beliefs does not drift.
	beliefs = doc.Beliefs
	again, err := store.UpdateBDI(id, bdi.Update{Beliefs: &beliefs})
	require.NoError(t, err)
	assert.Equal(t, *doc, *again)

	report, err := store.WriteReport(id)
	require.NoError(t, err)
	assert.Contains(t, report.Markdown, "Reach every household")

	_, err = store.Delete(id)
	require.NoError(t, err)

	archived, err := store.List(ctx, ListInput{Status: StatusArchived})
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, id, archived[0].SessionID)

	ctxs, err := reg.List(ctx, contexts.ListInput{})
	require.NoError(t, err)
	require.Len(t, ctxs, 1)
	assert.Equal(t, 1, ctxs[0].BeliefCount)
}
