package db

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yumyai/genevalidator/pkg/model"
)

func openTestStore(t *testing.T) *ResultStore {
	t.Helper()
	store, err := OpenResultStore(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "sub", "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestResultStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.BeginRun(ctx, RunRecord{
		ID: "run-1", Input: "in.fa", Threads: 4,
		Validation: []string{"LengthCluster", "Dup"}, StartedAt: started,
	}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out := &model.Output{
				RunID: "run-1", Index: i, QueryID: "q" + string(rune('a'+i)), Score: 10 * i,
				Reports: []*model.Report{{Kind: model.KindDuplication, Result: model.ResultNo, Expected: model.ResultNo}},
			}
			assert.NoError(t, store.SaveOutput(ctx, out))
		}(i)
	}
	wg.Wait()

	require.NoError(t, store.FinishRun(ctx, "run-1", 3, 8, started.Add(time.Minute)))

	run, err := store.Run(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"LengthCluster", "Dup"}, run.Validation)
	assert.Equal(t, 3, run.Good)
	assert.Equal(t, 8, run.Total)
	assert.True(t, run.StartedAt.Equal(started))
	assert.True(t, run.FinishedAt.Equal(started.Add(time.Minute)))

	outs, err := store.Outputs(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, outs, 8)
	for i, o := range outs {
		assert.Equal(t, i, o.Index)
		assert.Equal(t, 10*i, o.Score)
	}

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(outs[0].Payload, &decoded))
	assert.Equal(t, "qa", decoded["query_id"])
}

func TestResultStoreKeepsNoEvidenceOutputs(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.SaveOutput(ctx, &model.Output{RunID: "r", Index: 0, QueryID: "scored", Score: 80}))
	require.NoError(t, store.SaveOutput(ctx, &model.Output{
		RunID: "r", Index: 1, QueryID: "orphan", NoEvidence: true,
		Reports: []*model.Report{{Kind: model.KindLengthCluster, Result: model.ResultWarning, Expected: model.ResultYes}},
	}))

	outs, err := store.Outputs(ctx, "r")
	require.NoError(t, err)
	require.Len(t, outs, 2)
	assert.False(t, outs[0].NoEvidence)
	assert.True(t, outs[1].NoEvidence)
	assert.Equal(t, "orphan", outs[1].QueryID)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(outs[1].Payload, &decoded))
	assert.Equal(t, true, decoded["no_evidence"])
}

func TestResultStoreDuplicateOutput(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	out := &model.Output{RunID: "r", Index: 0, QueryID: "q"}
	require.NoError(t, store.SaveOutput(ctx, out))
	assert.Error(t, store.SaveOutput(ctx, out))
}

func TestResultStoreFinishUnknownRun(t *testing.T) {
	store := openTestStore(t)
	assert.Error(t, store.FinishRun(context.Background(), "nope", 0, 0, time.Now()))
}

func TestOpenResultStoreDrivers(t *testing.T) {
	_, err := OpenResultStore(context.Background(), "mysql", "")
	assert.ErrorIs(t, err, ErrUnknownDriver)

	_, err = OpenResultStore(context.Background(), DriverPostgres, "")
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	pg := &ResultStore{driver: DriverPostgres}
	assert.Equal(t, "SELECT $1, $2", pg.rebind("SELECT ?, ?"))
	lite := &ResultStore{driver: DriverSQLite}
	assert.Equal(t, "SELECT ?, ?", lite.rebind("SELECT ?, ?"))
}
