package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ww-care/bank-data-simulation/internal/loan/application"
	"github.com/ww-care/bank-data-simulation/internal/loan/domain"
	"github.com/ww-care/bank-data-simulation/internal/loan/infrastructure/persistence/mysql"
	"github.com/ww-care/bank-data-simulation/internal/loan/infrastructure/publisher"
	"github.com/ww-care/bank-data-simulation/pkg/config"
)

type memLoanRepo struct {
	mu    sync.Mutex
	loans map[string]*domain.LoanRecord
}

func (r *memLoanRepo) SaveLoan(ctx context.Context, loan *domain.LoanRecord, batchID string) error {
	return r.SaveLoans(ctx, []*domain.LoanRecord{loan}, batchID)
}

func (r *memLoanRepo) SaveLoans(ctx context.Context, loans []*domain.LoanRecord, batchID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, loan := range loans {
		r.loans[loan.LoanID] = loan
	}
	return nil
}

func (r *memLoanRepo) GetLoan(ctx context.Context, loanID string) (*domain.LoanRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if loan, ok := r.loans[loanID]; ok {
		return loan, nil
	}
	return nil, mysql.ErrLoanNotFound
}

func (r *memLoanRepo) ListLoans(ctx context.Context, filter domain.LoanFilter) ([]*domain.LoanRecord, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.LoanRecord, 0, len(r.loans))
	for _, loan := range r.loans {
		out = append(out, loan)
	}
	return out, int64(len(out)), nil
}

type memBatchRepo struct {
	mu      sync.Mutex
	batches map[string]domain.GenerationBatch
}

func (r *memBatchRepo) SaveBatch(ctx context.Context, batch *domain.GenerationBatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches[batch.BatchID] = *batch
	return nil
}

func (r *memBatchRepo) GetBatch(ctx context.Context, batchID string) (*domain.GenerationBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if batch, ok := r.batches[batchID]; ok {
		return &batch, nil
	}
	return nil, mysql.ErrBatchNotFound
}

type memProgressStore struct {
	mu    sync.Mutex
	done  map[string]int
	total map[string]int
}

func (p *memProgressStore) InitProgress(ctx context.Context, batchID string, total int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total[batchID] = total
	return nil
}

func (p *memProgressStore) IncrProgress(ctx context.Context, batchID string, succeeded, failed int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done[batchID] += succeeded + failed
	return nil
}

func (p *memProgressStore) GetProgress(ctx context.Context, batchID string) (int, int, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done[batchID], 0, p.total[batchID], nil
}

func (p *memProgressStore) MarkCompleted(ctx context.Context, batchID string) error { return nil }

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)

	loans := &memLoanRepo{loans: make(map[string]*domain.LoanRecord)}
	batches := &memBatchRepo{batches: make(map[string]domain.GenerationBatch)}
	progress := &memProgressStore{done: make(map[string]int), total: make(map[string]int)}

	cfg := config.GeneratorConfig{StartDate: "2024-01-01", EndDate: "2025-01-01", BatchSize: 10, Workers: 2}
	app := application.NewService(loans, batches, progress, publisher.NopPublisher{}, nil, cfg)

	r := gin.New()
	NewHandler(r, app)
	return r
}

func doRequest(t *testing.T, r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	r := newTestRouter()
	w := doRequest(t, r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestGenerateLoanEndpoint(t *testing.T) {
	r := newTestRouter()
	body := `{"customer":{"customer_id":"CUST-0001","credit_score":720,"annual_income":180000,"age":35},"seed":42}`

	w := doRequest(t, r, http.MethodPost, "/api/v1/loans/generate", body)
	require.Equal(t, http.StatusCreated, w.Code)

	var loan domain.LoanRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &loan))
	assert.NotEmpty(t, loan.LoanID)
	assert.Equal(t, "CUST-0001", loan.CustomerID)

	// 生成后可按编号查回
	w = doRequest(t, r, http.MethodGet, "/api/v1/loans/"+loan.LoanID, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGenerateLoanEndpointValidation(t *testing.T) {
	r := newTestRouter()

	w := doRequest(t, r, http.MethodPost, "/api/v1/loans/generate", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 起止日期颠倒
	w = doRequest(t, r, http.MethodPost, "/api/v1/loans/generate",
		`{"start_date":"2025-01-01","end_date":"2024-01-01","seed":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 信用评分超出合法区间被绑定校验拦截
	w = doRequest(t, r, http.MethodPost, "/api/v1/loans/generate",
		`{"customer":{"credit_score":200},"seed":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetLoanNotFound(t *testing.T) {
	r := newTestRouter()
	w := doRequest(t, r, http.MethodGet, "/api/v1/loans/LOAN-20250101-00001", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGenerateBatchEndpoint(t *testing.T) {
	r := newTestRouter()

	w := doRequest(t, r, http.MethodPost, "/api/v1/loans/batches", `{"count":5,"seed":7,"workers":2}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var batch application.BatchDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &batch))
	assert.NotEmpty(t, batch.BatchID)
	assert.Equal(t, 5, batch.Requested)
	assert.Equal(t, "running", batch.Status)

	// 批次编号路由优先于贷款编号路由
	require.Eventually(t, func() bool {
		w := doRequest(t, r, http.MethodGet, "/api/v1/loans/batches/"+batch.BatchID, "")
		if w.Code != http.StatusOK {
			return false
		}
		var got application.BatchDTO
		if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
			return false
		}
		return got.Status == "completed"
	}, 30*time.Second, 50*time.Millisecond)
}

func TestGenerateBatchEndpointValidation(t *testing.T) {
	r := newTestRouter()

	// count 必填且不小于 1
	w := doRequest(t, r, http.MethodPost, "/api/v1/loans/batches", `{"count":0}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, r, http.MethodPost, "/api/v1/loans/batches", `{"count":200000}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetBatchNotFoundEndpoint(t *testing.T) {
	r := newTestRouter()
	w := doRequest(t, r, http.MethodGet, "/api/v1/loans/batches/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListLoansEndpoint(t *testing.T) {
	r := newTestRouter()

	// 先生成两笔
	for _, seed := range []string{"11", "12"} {
		body := `{"customer":{"customer_id":"CUST-0001","credit_score":720,"annual_income":180000,"age":35},"seed":` + seed + `}`
		w := doRequest(t, r, http.MethodPost, "/api/v1/loans/generate", body)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doRequest(t, r, http.MethodGet, "/api/v1/loans?page=1&page_size=10", "")
	require.Equal(t, http.StatusOK, w.Code)

	var list application.LoanListDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, int64(2), list.Total)
	assert.Len(t, list.Items, 2)
	assert.Equal(t, 10, list.PageSize)
}
