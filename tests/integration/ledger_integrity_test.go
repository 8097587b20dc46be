package integration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praktika-foundation/server/internal/domain/ledger"
)

func TestSweepVerifiesAllChainsAfterTraffic(t *testing.T) {
	env := setupTestEnv(t)

	opp := openOpportunity(t, env, "emp-acme", "inst-tu")
	app := activeApplication(t, env, opp, "stu-ana")
	acceptedEvidence(t, env, opp, app, "Midterm report")
	waitForAppend(t, env)

	report, err := env.Validator.ValidateAll(env.Context, ledger.SweepOptions{Concurrency: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Chains, "opportunity, application, and evidence chains")
	assert.Zero(t, report.Pending)
	assert.Empty(t, report.Corrupted)
}

func TestValidatorFlagsTamperedPayload(t *testing.T) {
	env := setupTestEnv(t)

	opp := openOpportunity(t, env, "emp-acme", "inst-tu")
	waitForAppend(t, env)

	tag, err := env.Pool.Exec(env.Context,
		`UPDATE ledger_events SET payload = $1 WHERE entity_type = 'opportunity' AND entity_id = $2 AND seq = 1`,
		`{"title":"Totally legitimate posting"}`, opp.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, tag.RowsAffected())

	report, err := env.Validator.ValidateChain(env.Context, "opportunity", opp.ID)
	require.NoError(t, err)
	assert.False(t, report.IsValid)

	failures := report.Failures()
	require.Len(t, failures, 1)
	assert.EqualValues(t, 1, failures[0].Seq)
	assert.False(t, failures[0].HashOK)
	// The link structure is untouched; only the recomputation fails.
	assert.True(t, failures[0].LinkOK)
}

func TestValidatorFlagsRewrittenHash(t *testing.T) {
	env := setupTestEnv(t)

	opp := openOpportunity(t, env, "emp-acme", "inst-tu")
	waitForAppend(t, env)

	// Rewriting a stored hash breaks that event's recomputation and orphans
	// the successor's predecessor link in the same pass.
	tag, err := env.Pool.Exec(env.Context,
		`UPDATE ledger_events SET hash = repeat('0', 64) WHERE entity_type = 'opportunity' AND entity_id = $1 AND seq = 1`,
		opp.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, tag.RowsAffected())

	report, err := env.Validator.ValidateChain(env.Context, "opportunity", opp.ID)
	require.NoError(t, err)
	assert.False(t, report.IsValid)

	failures := report.Failures()
	require.Len(t, failures, 2)
	assert.EqualValues(t, 1, failures[0].Seq)
	assert.False(t, failures[0].HashOK)
	assert.EqualValues(t, 2, failures[1].Seq)
	assert.True(t, failures[1].HashOK)
	assert.False(t, failures[1].LinkOK)
}

func TestValidatorFlagsDeletedEvent(t *testing.T) {
	env := setupTestEnv(t)

	opp := openOpportunity(t, env, "emp-acme", "inst-tu")
	app := activeApplication(t, env, opp, "stu-ana")
	waitForAppend(t, env)

	tag, err := env.Pool.Exec(env.Context,
		`DELETE FROM ledger_events WHERE entity_type = 'application' AND entity_id = $1 AND seq = 2`,
		app.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, tag.RowsAffected())

	report, err := env.Validator.ValidateChain(env.Context, "application", app.ID)
	require.NoError(t, err)
	assert.False(t, report.IsValid)
	assert.Equal(t, 3, report.EventCount)
	// A missing event looks like one position still in flight; the broken
	// links downstream are what prove it was removed.
	assert.EqualValues(t, 1, report.Pending())

	failures := report.Failures()
	require.NotEmpty(t, failures)
	for _, f := range failures {
		assert.True(t, f.HashOK, "seq %d: surviving events still hash correctly", f.Seq)
		assert.False(t, f.LinkOK, "seq %d: position or predecessor link must fail", f.Seq)
	}
}

func TestValidatorFlagsRewoundCounter(t *testing.T) {
	env := setupTestEnv(t)

	opp := openOpportunity(t, env, "emp-acme", "inst-tu")
	waitForAppend(t, env)

	tag, err := env.Pool.Exec(env.Context,
		`UPDATE ledger_sequences SET last_seq = 1 WHERE entity_type = 'opportunity' AND entity_id = $1`,
		opp.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, tag.RowsAffected())

	report, err := env.Validator.ValidateChain(env.Context, "opportunity", opp.ID)
	require.NoError(t, err)
	assert.False(t, report.IsValid, "more appended events than assigned positions")
	assert.Empty(t, report.Failures(), "the events themselves are intact")
}

func TestSweepIsolatesTheCorruptedChain(t *testing.T) {
	env := setupTestEnv(t)

	healthy := openOpportunity(t, env, "emp-acme", "inst-tu")
	tampered := openOpportunity(t, env, "emp-beta", "inst-tu")
	waitForAppend(t, env)

	_, err := env.Pool.Exec(env.Context,
		`UPDATE ledger_events SET payload = '{}' WHERE entity_type = 'opportunity' AND entity_id = $1 AND seq = 2`,
		tampered.ID)
	require.NoError(t, err)

	report, err := env.Validator.ValidateAll(env.Context, ledger.SweepOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Chains)
	require.Len(t, report.Corrupted, 1)
	assert.Equal(t, tampered.ID, report.Corrupted[0].EntityID)
	assert.NotEqual(t, healthy.ID, report.Corrupted[0].EntityID)
}
