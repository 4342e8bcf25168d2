package kernel

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/turnkernel/pkg/config"
	"github.com/Mindburn-Labs/turnkernel/pkg/contracts"
	"github.com/Mindburn-Labs/turnkernel/pkg/resume"
	"github.com/Mindburn-Labs/turnkernel/pkg/thread"
)

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	cfg := config.Load()
	cfg.Store.Backend = backend
	cfg.OTel.Enabled = false
	cfg.Identity.SigningSecret = ""
	return cfg
}

func TestOpen_Memory(t *testing.T) {
	ctx := context.Background()
	k, closeFn, err := Open(ctx, testConfig(t, config.BackendMemory))
	require.NoError(t, err)
	defer func() { require.NoError(t, closeFn(ctx)) }()

	res, err := k.Process(ctx, chatTurn("th-open", 1))
	require.NoError(t, err)
	assert.Equal(t, contracts.MoveRespond, res.Decision.NextMove)
}

func TestOpen_SQLiteKeepsPendingAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, config.BackendSQLite)
	cfg.Store.DatabaseURL = "file:" + filepath.Join(t.TempDir(), "threads.db")

	vague := chatTurn("th-sql", 1)
	vague.Intent = &contracts.IntentDraft{
		Type:          contracts.IntentSetReminder,
		Confidence:    contracts.ConfidenceHigh,
		MissingFields: []string{"reminder_time"},
	}

	k1, close1, err := Open(ctx, cfg)
	require.NoError(t, err)
	res, err := k1.Process(ctx, vague)
	require.NoError(t, err)
	require.Equal(t, contracts.MoveClarify, res.Decision.NextMove)
	require.NoError(t, close1(ctx))

	k2, close2, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer func() { require.NoError(t, close2(ctx)) }()

	st, err := k2.store.Load(ctx, "th-sql")
	require.NoError(t, err)
	c, ok := st.Pending.(*thread.ClarifyPending)
	require.True(t, ok, "pending %T", st.Pending)
	assert.Equal(t, "reminder_time", c.MissingField)
	assert.Equal(t, 1, c.Attempt)
}

func TestOpen_SQLiteExpiresResumeBufferAfterRestart(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, config.BackendSQLite)
	cfg.Store.DatabaseURL = "file:" + filepath.Join(t.TempDir(), "threads.db")

	k1, close1, err := Open(ctx, cfg)
	require.NoError(t, err)
	stale := &resume.Buffer{AnswerID: "ans-1", SpokenPrefix: "The ", UnsaidRemainder: "forecast is sunny.", ExpiresAt: 5_010_000}
	live := &resume.Buffer{AnswerID: "ans-2", SpokenPrefix: "The ", UnsaidRemainder: "news is quiet.", ExpiresAt: resume.NewMonotonicClock().Now().Add(time.Hour)}
	require.NoError(t, k1.store.Save(ctx, "th-stale", thread.State{Resume: stale}))
	require.NoError(t, k1.store.Save(ctx, "th-live", thread.State{Resume: live}))
	require.NoError(t, close1(ctx))

	k2, close2, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer func() { require.NoError(t, close2(ctx)) }()

	res, err := k2.Process(ctx, chatTurn("th-stale", 1))
	require.NoError(t, err)
	assert.Nil(t, res.State.Resume, "a buffer that lapsed before the restart is dropped")

	res, err = k2.Process(ctx, chatTurn("th-live", 1))
	require.NoError(t, err)
	assert.Equal(t, live, res.State.Resume)
}

func TestOpen_Errors(t *testing.T) {
	ctx := context.Background()

	cfg := testConfig(t, "floppy")
	_, _, err := Open(ctx, cfg)
	require.Error(t, err)

	cfg = testConfig(t, config.BackendMemory)
	cfg.Governance.Rules[0].Allow = "this is not cel"
	_, _, err = Open(ctx, cfg)
	require.ErrorContains(t, err, "governance policy")

	cfg = testConfig(t, config.BackendMemory)
	cfg.Identity.SigningSecret = "short"
	_, _, err = Open(ctx, cfg)
	require.ErrorContains(t, err, "identity")
}
