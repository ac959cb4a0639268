package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepLedgerFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	jobID := createJob(t, st)

	_, err := st.Steps().Get(ctx, jobID, "generate_core_ingredients")
	assert.ErrorIs(t, err, ErrRecordNotFound)

	require.NoError(t, st.Steps().MarkCompleted(ctx, jobID, "generate_core_ingredients", []byte(`{"proteins":["chicken"]}`)))

	// a racing second writer loses silently
	require.NoError(t, st.Steps().MarkCompleted(ctx, jobID, "generate_core_ingredients", []byte(`{"proteins":["beef"]}`)))

	row, err := st.Steps().Get(ctx, jobID, "generate_core_ingredients")
	require.NoError(t, err)
	assert.Contains(t, string(row.Result), "chicken")
	assert.False(t, row.CompletedAt.IsZero())
}
