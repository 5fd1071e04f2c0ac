package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goran-ethernal/BountyIndexor/internal/bounty"
	"github.com/goran-ethernal/BountyIndexor/internal/checkpoint"
	"github.com/goran-ethernal/BountyIndexor/internal/db"
	"github.com/goran-ethernal/BountyIndexor/internal/logger"
	"github.com/goran-ethernal/BountyIndexor/internal/migrations"
	"github.com/goran-ethernal/BountyIndexor/internal/processor"
	"github.com/goran-ethernal/BountyIndexor/internal/proof"
	"github.com/goran-ethernal/BountyIndexor/internal/store"
	"github.com/goran-ethernal/BountyIndexor/pkg/config"
	"github.com/stretchr/testify/require"
)

const (
	creator = "0xaaaa00000000000000000000000000000000000a"
	worker  = "0xbbbb00000000000000000000000000000000000b"
	// 2025-01-01T00:00:00Z
	day0 = 1735689600
)

type fakeStatus struct {
	status processor.Status
}

func (f *fakeStatus) Status() processor.Status { return f.status }

type fakeProofs struct {
	rec *bounty.ProofRecord
	err error
	got proof.Submission
}

func (f *fakeProofs) Submit(_ context.Context, sub proof.Submission) (*bounty.ProofRecord, error) {
	f.got = sub
	return f.rec, f.err
}

func logMeta(block uint64, txIndex uint) bounty.LogMeta {
	return bounty.LogMeta{
		BlockNumber: block,
		BlockHash:   common.BigToHash(new(big.Int).SetUint64(block)),
		Timestamp:   day0 + (block-100)*3600,
		TxHash:      common.BigToHash(new(big.Int).SetUint64(block<<8 | uint64(txIndex))),
		TxIndex:     txIndex,
		LogIndex:    txIndex,
	}
}

// seedStore indexes bounty 1 (completed and paid to worker) and bounty 2 (active).
func seedStore(t *testing.T) *store.Store {
	t.Helper()

	database, err := db.NewSQLiteDB(filepath.Join(t.TempDir(), "api.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	log := logger.NewNopLogger()
	require.NoError(t, migrations.RunMigrations(log, database))

	st := store.New(database, nil, checkpoint.NewManager(database, nil, log), log)

	b := st.NewBatch()
	for _, id := range []int64{1, 2} {
		_, err := b.UpsertBounty(&bounty.BountyCreated{
			LogMeta:   logMeta(100, uint(id)),
			BountyID:  big.NewInt(id),
			Creator:   creator,
			Action:    bounty.ActionMergePR,
			RepoOwner: "octo",
			RepoName:  "repo",
			Reward:    new(big.Int).Mul(big.NewInt(id*100), big.NewInt(1e18)),
		})
		require.NoError(t, err)
	}
	_, err = b.CompleteBounty(&bounty.BountyCompleted{
		LogMeta: logMeta(101, 0), BountyID: big.NewInt(1), Worker: worker, Reward: big.NewInt(100),
	})
	require.NoError(t, err)
	_, err = b.RecordPayout(&bounty.FundsReleased{
		LogMeta: logMeta(102, 0), BountyID: big.NewInt(1), Recipient: worker,
		Amount: new(big.Int).Mul(big.NewInt(100), big.NewInt(1e18)),
	}, nil)
	require.NoError(t, err)
	require.NoError(t, b.SetWorkerScore(worker, 23.4))
	require.NoError(t, b.Commit(context.Background(), checkpoint.State{Height: 102}))

	return st
}

func newTestServer(t *testing.T, status *fakeStatus, proofs ProofSubmitter) http.Handler {
	t.Helper()

	cfg := &config.APIConfig{Enabled: true, ListenAddress: ":0"}
	cfg.ApplyDefaults()

	return NewServer(cfg, seedStore(t), status, proofs, logger.NewNopLogger()).Handler()
}

func get(t *testing.T, h http.Handler, path string, out any) int {
	t.Helper()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w.Code
}

func TestHealth(t *testing.T) {
	status := &fakeStatus{status: processor.Status{State: processor.StateIdle}}
	h := newTestServer(t, status, nil)

	var resp HealthResponse
	require.Equal(t, http.StatusOK, get(t, h, "/health", &resp))
	require.Equal(t, "ok", resp.Status)
	require.Equal(t, "idle", resp.State)

	status.status.State = processor.StateFailed
	require.Equal(t, http.StatusServiceUnavailable, get(t, h, "/health", &resp))
	require.Equal(t, "failed", resp.Status)
}

func TestGetStatus(t *testing.T) {
	status := &fakeStatus{status: processor.Status{
		State:         processor.StateFetching,
		LastCommitted: 102,
		HasCheckpoint: true,
		Head:          110,
		Lag:           8,
		Deferred:      2,
		UpdatedAt:     time.Unix(day0, 0),
	}}
	h := newTestServer(t, status, nil)

	var resp StatusResponse
	require.Equal(t, http.StatusOK, get(t, h, "/api/v1/status", &resp))
	require.Equal(t, "fetching", resp.State)
	require.NotNil(t, resp.LastCommittedHeight)
	require.Equal(t, uint64(102), *resp.LastCommittedHeight)
	require.Equal(t, uint64(8), resp.Lag)
	require.Equal(t, 2, resp.DeferredEvents)

	status.status.HasCheckpoint = false
	require.Equal(t, http.StatusOK, get(t, h, "/api/v1/status", &resp))
	require.Nil(t, resp.LastCommittedHeight)
}

func TestGetWorker(t *testing.T) {
	h := newTestServer(t, &fakeStatus{}, nil)

	var resp WorkerResponse
	require.Equal(t, http.StatusOK, get(t, h, "/api/v1/workers/0xBBBB00000000000000000000000000000000000B", &resp))
	require.Equal(t, worker, resp.Address)
	require.Equal(t, uint64(1), resp.CompletedBounties)
	require.Equal(t, "100000000000000000000", resp.TotalEarnings)
	require.Equal(t, 23.4, resp.ReputationScore)
	require.Equal(t, float64(bounty.DefaultSuccessRate), resp.SuccessRate)
	require.NotNil(t, resp.FirstBountyAt)
	require.Equal(t, time.Unix(day0+2*3600, 0).UTC(), *resp.FirstBountyAt)

	var errResp ErrorResponse
	require.Equal(t, http.StatusNotFound, get(t, h, "/api/v1/workers/"+creator, &errResp))
	require.Equal(t, http.StatusNotFound, errResp.Code)

	require.Equal(t, http.StatusBadRequest, get(t, h, "/api/v1/workers/bob", &errResp))
}

func TestGetTopWorkersAndPayouts(t *testing.T) {
	h := newTestServer(t, &fakeStatus{}, nil)

	var workers []WorkerResponse
	require.Equal(t, http.StatusOK, get(t, h, "/api/v1/workers/top?limit=5", &workers))
	require.Len(t, workers, 1)
	require.Equal(t, worker, workers[0].Address)

	var errResp ErrorResponse
	for _, limit := range []string{"0", "-1", "abc", fmt.Sprint(store.MaxListLimit + 1)} {
		require.Equal(t, http.StatusBadRequest, get(t, h, "/api/v1/workers/top?limit="+limit, &errResp), limit)
	}

	var payouts []PayoutResponse
	require.Equal(t, http.StatusOK, get(t, h, "/api/v1/workers/"+worker+"/payouts", &payouts))
	require.Len(t, payouts, 1)
	require.Equal(t, "1-102-0", payouts[0].ID)
	require.Equal(t, "100000000000000000000", payouts[0].Amount)
	require.Nil(t, payouts[0].ProofID)

	require.Equal(t, http.StatusOK, get(t, h, "/api/v1/workers/"+creator+"/payouts", &payouts))
	require.Empty(t, payouts)
}

func TestGetBounty(t *testing.T) {
	h := newTestServer(t, &fakeStatus{}, nil)

	var resp BountyResponse
	require.Equal(t, http.StatusOK, get(t, h, "/api/v1/bounties/1", &resp))
	require.Equal(t, "1", resp.ID)
	require.Equal(t, "completed", resp.Status)
	require.Equal(t, "merge_pr", resp.Action)
	require.Equal(t, "100000000000000000000", resp.Reward)
	require.NotNil(t, resp.CompletedBy)
	require.Equal(t, worker, *resp.CompletedBy)

	require.Equal(t, http.StatusOK, get(t, h, "/api/v1/bounties/2", &resp))
	require.Equal(t, "active", resp.Status)
	require.Nil(t, resp.CompletedBy)
	require.Nil(t, resp.CompletedAt)

	var errResp ErrorResponse
	require.Equal(t, http.StatusNotFound, get(t, h, "/api/v1/bounties/99", &errResp))
	require.Equal(t, http.StatusBadRequest, get(t, h, "/api/v1/bounties/xyz", &errResp))
}

func TestGetStats(t *testing.T) {
	h := newTestServer(t, &fakeStatus{}, nil)

	var stats StatsResponse
	require.Equal(t, http.StatusOK, get(t, h, "/api/v1/stats", &stats))
	require.Equal(t, uint64(2), stats.TotalBounties)
	require.Equal(t, uint64(1), stats.ActiveBounties)
	require.Equal(t, uint64(1), stats.CompletedBounties)
	require.Equal(t, uint64(1), stats.PaymentCount)
	require.Equal(t, uint64(1), stats.TotalWorkers)
	require.Equal(t, "100000000000000000000", stats.TotalPayments)
	require.Equal(t, "100000000000000000000", stats.AveragePayment)

	var days []DailyStatsResponse
	require.Equal(t, http.StatusOK, get(t, h, "/api/v1/stats/daily?from=2025-01-01&to=2025-01-31", &days))
	require.Len(t, days, 1)
	require.Equal(t, "2025-01-01", days[0].Day)
	require.Equal(t, uint64(1), days[0].UniqueWorkers)

	require.Equal(t, http.StatusOK, get(t, h, "/api/v1/stats/daily?from=2025-02-01", &days))
	require.Empty(t, days)

	var errResp ErrorResponse
	require.Equal(t, http.StatusBadRequest, get(t, h, "/api/v1/stats/daily?from=2025-02-01&to=2025-01-01", &errResp))
	require.Equal(t, http.StatusBadRequest, get(t, h, "/api/v1/stats/daily?from=yesterday", &errResp))
}

func postProof(t *testing.T, h http.Handler, id string, body string, out any) int {
	t.Helper()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bounties/"+id+"/proofs", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(w, req)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	return w.Code
}

func TestSubmitProof(t *testing.T) {
	proofs := &fakeProofs{rec: &bounty.ProofRecord{
		ID:        "5f1d7c2e-0000-4000-8000-000000000001",
		BountyID:  "1",
		Worker:    worker,
		ClaimURL:  "https://github.com/octo/repo/pull/7",
		Verified:  true,
		ClaimData: `{"pr":7}`,
		CreatedAt: day0,
	}}
	h := newTestServer(t, &fakeStatus{}, proofs)

	var resp ProofResponse
	code := postProof(t, h, "1", `{"worker":"`+worker+`","claim_url":"https://github.com/octo/repo/pull/7",`+
		`"headers":["Accept: application/json"]}`, &resp)
	require.Equal(t, http.StatusCreated, code)
	require.True(t, resp.Verified)
	require.JSONEq(t, `{"pr":7}`, string(resp.ClaimData))
	require.Equal(t, proof.Submission{
		BountyID: "1",
		Worker:   worker,
		ClaimURL: "https://github.com/octo/repo/pull/7",
		Headers:  []string{"Accept: application/json"},
	}, proofs.got)

	var errResp ErrorResponse
	require.Equal(t, http.StatusBadRequest, postProof(t, h, "1", `{"worker":`, &errResp))
	require.Equal(t, http.StatusBadRequest, postProof(t, h, "1", `{"unknown":1}`, &errResp))

	proofs.err = fmt.Errorf("%w: claim url", store.ErrInvalidArgument)
	require.Equal(t, http.StatusBadRequest, postProof(t, h, "1", `{}`, &errResp))

	proofs.err = errors.New("verifier down")
	require.Equal(t, http.StatusBadGateway, postProof(t, h, "1", `{}`, &errResp))
}

func TestSubmitProof_NotConfigured(t *testing.T) {
	h := newTestServer(t, &fakeStatus{}, nil)

	var errResp ErrorResponse
	require.Equal(t, http.StatusServiceUnavailable, postProof(t, h, "1", `{}`, &errResp))
}

func TestSwaggerDoc(t *testing.T) {
	h := newTestServer(t, &fakeStatus{}, nil)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "BountyIndexor API")
	require.Contains(t, w.Body.String(), "/workers/top")
}

func TestUnknownRoute(t *testing.T) {
	h := newTestServer(t, &fakeStatus{}, nil)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/indexers", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/bounties/1", nil))
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

