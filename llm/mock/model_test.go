package mock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibeagent"
	"vibeagent/guard"
)

func TestModel_ScriptOrder(t *testing.T) {
	m := NewModel().
		On(vibeagent.StagePropose, Fail(guard.NewError(guard.KindRateLimit, "busy", nil)), Text(`{"intents":[]}`)).
		On(vibeagent.StagePlan, JSON(map[string]any{"queries": []any{}}))

	ctx := context.Background()
	_, err := m.CompleteStructured(ctx, vibeagent.StructuredRequest{Stage: "propose"})
	assert.ErrorIs(t, err, guard.ErrRateLimit)

	for range 2 {
		got, err := m.CompleteStructured(ctx, vibeagent.StructuredRequest{Stage: "propose"})
		require.NoError(t, err)
		assert.Equal(t, `{"intents":[]}`, got)
	}

	got, err := m.CompleteStructured(ctx, vibeagent.StructuredRequest{Stage: "plan"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"queries":[]}`, got)

	assert.Equal(t, 3, m.Calls(vibeagent.StagePropose))
	assert.Len(t, m.Requests(), 4)
}

func TestModel_Unscripted(t *testing.T) {
	_, err := NewModel().CompleteStructured(context.Background(), vibeagent.StructuredRequest{Stage: "curate"})
	var gerr *guard.Error
	require.ErrorAs(t, err, &gerr)
	assert.False(t, gerr.Retryable)
}
