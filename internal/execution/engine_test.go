package execution

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fwtrader/internal/contracts"
	"github.com/wonny/fwtrader/pkg/logger"
)

type memJournal struct {
	intents []contracts.TradeIntent
	results []contracts.IntentResult
	err     error
}

func (j *memJournal) SaveIntent(ctx context.Context, engine string, intent contracts.TradeIntent) error {
	j.intents = append(j.intents, intent)
	return j.err
}

func (j *memJournal) SaveResult(ctx context.Context, result contracts.IntentResult) error {
	j.results = append(j.results, result)
	return j.err
}

func TestAs_FindsCapabilityThroughDecorators(t *testing.T) {
	paper := NewPaperEngine(100)
	wrapped := NewJournaledEngine(NewRateLimitedEngine(paper, 10), &memJournal{}, logger.NewNop())

	lister, ok := As[OpenOrderLister](wrapped)
	require.True(t, ok)
	assert.Same(t, paper, lister)

	_, ok = As[CashReporter](wrapped)
	assert.True(t, ok)

	_, ok = As[interface{ Missing() }](wrapped)
	assert.False(t, ok)
}

func TestRateLimitedEngine_Submit(t *testing.T) {
	paper := NewPaperEngine(1_000)
	paper.SetPrice("A", 10)
	e := NewRateLimitedEngine(paper, 100)

	for i := 0; i < 3; i++ {
		res, err := e.Submit(context.Background(), buy("A", 1))
		require.NoError(t, err)
		assert.Equal(t, contracts.IntentFilled, res.Status)
	}
	assert.Equal(t, "paper", e.Name())
}

func TestRateLimitedEngine_CanceledContext(t *testing.T) {
	e := NewRateLimitedEngine(NewPaperEngine(0), 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Submit(ctx, buy("A", 1))
	assert.Error(t, err)
}

func TestJournaledEngine_RecordsIntentAndResult(t *testing.T) {
	paper := NewPaperEngine(1_000)
	paper.SetPrice("A", 10)
	j := &memJournal{}
	e := NewJournaledEngine(paper, j, logger.NewNop())

	res, err := e.Submit(context.Background(), buy("A", 2))
	require.NoError(t, err)
	assert.Equal(t, contracts.IntentFilled, res.Status)

	require.Len(t, j.intents, 1)
	require.Len(t, j.results, 1)
	assert.Equal(t, "b-A", j.results[0].IntentID)
	assert.Equal(t, contracts.IntentFilled, j.results[0].Status)
}

func TestJournaledEngine_EngineErrorJournaled(t *testing.T) {
	boom := errors.New("down")
	paper := NewPaperEngine(1_000)
	paper.FailSubmit("A", boom)
	j := &memJournal{}
	e := NewJournaledEngine(paper, j, logger.NewNop())

	_, err := e.Submit(context.Background(), buy("A", 1))
	assert.ErrorIs(t, err, boom)
	require.Len(t, j.results, 1)
	assert.Equal(t, contracts.IntentError, j.results[0].Status)
	assert.Equal(t, "down", j.results[0].Message)
}

func TestJournaledEngine_JournalFailureDoesNotBlock(t *testing.T) {
	paper := NewPaperEngine(1_000)
	paper.SetPrice("A", 10)
	e := NewJournaledEngine(paper, &memJournal{err: errors.New("db down")}, logger.NewNop())

	res, err := e.Submit(context.Background(), buy("A", 1))
	require.NoError(t, err)
	assert.Equal(t, contracts.IntentFilled, res.Status)
}
