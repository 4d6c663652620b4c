package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ww-care/bank-data-simulation/internal/loan/domain"
	"github.com/ww-care/bank-data-simulation/pkg/config"
)

// 内存仓储与发布器，替代 MySQL/Redis/Kafka 适配器

type fakeLoanRepo struct {
	mu       sync.Mutex
	loans    map[string]*domain.LoanRecord
	batchIDs map[string]string
	err      error
}

func newFakeLoanRepo() *fakeLoanRepo {
	return &fakeLoanRepo{loans: make(map[string]*domain.LoanRecord), batchIDs: make(map[string]string)}
}

func (r *fakeLoanRepo) SaveLoan(ctx context.Context, loan *domain.LoanRecord, batchID string) error {
	return r.SaveLoans(ctx, []*domain.LoanRecord{loan}, batchID)
}

func (r *fakeLoanRepo) SaveLoans(ctx context.Context, loans []*domain.LoanRecord, batchID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	for _, loan := range loans {
		r.loans[loan.LoanID] = loan
		r.batchIDs[loan.LoanID] = batchID
	}
	return nil
}

func (r *fakeLoanRepo) GetLoan(ctx context.Context, loanID string) (*domain.LoanRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	loan, ok := r.loans[loanID]
	if !ok {
		return nil, errors.New("loan record not found")
	}
	return loan, nil
}

func (r *fakeLoanRepo) ListLoans(ctx context.Context, filter domain.LoanFilter) ([]*domain.LoanRecord, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.LoanRecord, 0, len(r.loans))
	for _, loan := range r.loans {
		out = append(out, loan)
	}
	return out, int64(len(out)), nil
}

func (r *fakeLoanRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.loans)
}

type fakeBatchRepo struct {
	mu      sync.Mutex
	batches map[string]domain.GenerationBatch
}

func newFakeBatchRepo() *fakeBatchRepo {
	return &fakeBatchRepo{batches: make(map[string]domain.GenerationBatch)}
}

func (r *fakeBatchRepo) SaveBatch(ctx context.Context, batch *domain.GenerationBatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches[batch.BatchID] = *batch
	return nil
}

func (r *fakeBatchRepo) GetBatch(ctx context.Context, batchID string) (*domain.GenerationBatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	batch, ok := r.batches[batchID]
	if !ok {
		return nil, errors.New("batch not found")
	}
	return &batch, nil
}

type fakeProgressStore struct {
	mu        sync.Mutex
	total     map[string]int
	done      map[string]int
	failed    map[string]int
	completed map[string]bool
	getErr    error
}

func newFakeProgressStore() *fakeProgressStore {
	return &fakeProgressStore{
		total:     make(map[string]int),
		done:      make(map[string]int),
		failed:    make(map[string]int),
		completed: make(map[string]bool),
	}
}

func (p *fakeProgressStore) InitProgress(ctx context.Context, batchID string, total int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total[batchID] = total
	return nil
}

func (p *fakeProgressStore) IncrProgress(ctx context.Context, batchID string, succeeded, failed int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done[batchID] += succeeded
	p.failed[batchID] += failed
	return nil
}

func (p *fakeProgressStore) GetProgress(ctx context.Context, batchID string) (int, int, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.getErr != nil {
		return 0, 0, 0, p.getErr
	}
	return p.done[batchID], p.failed[batchID], p.total[batchID], nil
}

func (p *fakeProgressStore) MarkCompleted(ctx context.Context, batchID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed[batchID] = true
	return nil
}

func (p *fakeProgressStore) isCompleted(batchID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completed[batchID]
}

type publishedEvent struct {
	topic string
	key   string
	event any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *fakePublisher) Publish(ctx context.Context, topic, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{topic: topic, key: key, event: event})
	return nil
}

func (p *fakePublisher) byTopic(topic string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]publishedEvent, 0)
	for _, e := range p.events {
		if e.topic == topic {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	loans     *fakeLoanRepo
	batches   *fakeBatchRepo
	progress  *fakeProgressStore
	publisher *fakePublisher
	command   *LoanCommandService
	query     *LoanQueryService
}

func newTestEnv(cfg config.GeneratorConfig) *testEnv {
	env := &testEnv{
		loans:     newFakeLoanRepo(),
		batches:   newFakeBatchRepo(),
		progress:  newFakeProgressStore(),
		publisher: &fakePublisher{},
	}
	env.command = NewLoanCommandService(env.loans, env.batches, env.progress, env.publisher, nil, cfg)
	env.query = NewLoanQueryService(env.loans, env.batches, env.progress)
	return env
}

func testWindowConfig() config.GeneratorConfig {
	return config.GeneratorConfig{
		StartDate: "2024-01-01",
		EndDate:   "2025-01-01",
		BatchSize: 10,
		Workers:   2,
	}
}

func TestGenerateLoanPersistsAndPublishes(t *testing.T) {
	env := newTestEnv(testWindowConfig())

	loan, err := env.command.GenerateLoan(context.Background(), GenerateLoanCommand{
		Customer: &CustomerInput{
			CustomerID:   "CUST-0001",
			CreditScore:  720,
			AnnualIncome: 180000,
			Age:          35,
		},
		Seed: 42,
	})
	require.NoError(t, err)
	require.NotNil(t, loan)
	assert.Equal(t, "CUST-0001", loan.CustomerID)

	// 记录已落库
	saved, err := env.loans.GetLoan(context.Background(), loan.LoanID)
	require.NoError(t, err)
	assert.Equal(t, loan.LoanID, saved.LoanID)

	// 按结果发布到对应主题
	topic := domain.TopicLoanGenerated
	if loan.IsRejected() {
		topic = domain.TopicLoanRejected
	}
	events := env.publisher.byTopic(topic)
	require.Len(t, events, 1)
	assert.Equal(t, loan.LoanID, events[0].key)
}

func TestGenerateLoanSeedReproducible(t *testing.T) {
	cmd := GenerateLoanCommand{
		Customer: &CustomerInput{CustomerID: "CUST-0001", CreditScore: 700, AnnualIncome: 150000, Age: 40},
		Seed:     99,
	}

	loan1, err := newTestEnv(testWindowConfig()).command.GenerateLoan(context.Background(), cmd)
	require.NoError(t, err)
	loan2, err := newTestEnv(testWindowConfig()).command.GenerateLoan(context.Background(), cmd)
	require.NoError(t, err)

	assert.Equal(t, loan1.LoanID, loan2.LoanID)
	assert.Equal(t, loan1.CurrentStatus, loan2.CurrentStatus)
	assert.Equal(t, loan1.Amount, loan2.Amount)
}

func TestGenerateLoanSimpleMode(t *testing.T) {
	cfg := testWindowConfig()
	cfg.Mode = "simple"
	env := newTestEnv(cfg)

	for seed := int64(0); seed < 20; seed++ {
		loan, err := env.command.GenerateLoan(context.Background(), GenerateLoanCommand{
			Customer: &CustomerInput{CustomerID: "CUST-0001", CreditScore: 720, AnnualIncome: 150000, Age: 35},
			Seed:     seed + 1,
		})
		require.NoError(t, err)
		if loan.IsRejected() {
			continue
		}
		// 简化状态模型的历史时间线固定从放款起步
		require.NotEmpty(t, loan.Timeline)
		assert.Equal(t, domain.StatusDisbursed, loan.Timeline[0].Status)
		require.NotNil(t, loan.RepaymentSummary)
	}
}

func TestGenerateLoanStatusWeightsOverride(t *testing.T) {
	cfg := testWindowConfig()
	cfg.StatusWeights = map[string]float64{"settled": 1}
	env := newTestEnv(cfg)

	for seed := int64(0); seed < 20; seed++ {
		loan, err := env.command.GenerateLoan(context.Background(), GenerateLoanCommand{
			Customer: &CustomerInput{CustomerID: "CUST-0001", CreditScore: 720, AnnualIncome: 150000, Age: 35},
			Seed:     seed + 1,
		})
		require.NoError(t, err)
		if loan.IsRejected() {
			continue
		}
		require.NotEmpty(t, loan.Timeline)
		assert.Equal(t, domain.StatusSettled, loan.Timeline[0].Status)
	}
}

func TestGenerateLoanOverridesLoanType(t *testing.T) {
	env := newTestEnv(testWindowConfig())

	loan, err := env.command.GenerateLoan(context.Background(), GenerateLoanCommand{
		Customer: &CustomerInput{CustomerID: "CUST-0001", CreditScore: 700, AnnualIncome: 150000, Age: 40},
		LoanType: "car",
		Seed:     7,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.LoanTypeCar, loan.LoanType)
}

func TestGenerateLoanWindowValidation(t *testing.T) {
	env := newTestEnv(config.GeneratorConfig{})

	_, err := env.command.GenerateLoan(context.Background(), GenerateLoanCommand{
		StartDate: "2025-01-01",
		EndDate:   "2024-01-01",
		Seed:      1,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidDateRange)

	_, err = env.command.GenerateLoan(context.Background(), GenerateLoanCommand{
		StartDate: "01/02/2024",
		Seed:      1,
	})
	assert.Error(t, err)
	assert.Zero(t, env.loans.count())
}

func TestGenerateBatchRunsToCompletion(t *testing.T) {
	env := newTestEnv(testWindowConfig())

	dto, err := env.command.GenerateBatch(context.Background(), GenerateBatchCommand{
		Count:   20,
		Seed:    2024,
		Workers: 3,
	})
	require.NoError(t, err)
	require.NotNil(t, dto)
	assert.Equal(t, "running", dto.Status)
	assert.Equal(t, 20, dto.Requested)
	assert.NotEmpty(t, dto.BatchID)

	// 批次在后台执行，等待收尾
	require.Eventually(t, func() bool {
		batch, err := env.batches.GetBatch(context.Background(), dto.BatchID)
		return err == nil && batch.Status != "running"
	}, 30*time.Second, 50*time.Millisecond)

	batch, err := env.batches.GetBatch(context.Background(), dto.BatchID)
	require.NoError(t, err)
	assert.Equal(t, "completed", batch.Status)
	assert.Equal(t, 20, batch.Succeeded+batch.Failed)
	assert.LessOrEqual(t, batch.Rejected, batch.Succeeded)
	assert.False(t, batch.CompletedAt.IsZero())

	// 成功记录全部落库且携带批次号
	assert.Equal(t, batch.Succeeded, env.loans.count())
	env.loans.mu.Lock()
	for loanID, batchID := range env.loans.batchIDs {
		assert.Equal(t, dto.BatchID, batchID, "loan %s", loanID)
	}
	env.loans.mu.Unlock()

	// 进度收尾与完成事件
	assert.True(t, env.progress.isCompleted(dto.BatchID))
	completed := env.publisher.byTopic(domain.TopicBatchCompleted)
	require.Len(t, completed, 1)
	evt, ok := completed[0].event.(domain.BatchCompletedEvent)
	require.True(t, ok)
	assert.Equal(t, batch.Succeeded, evt.Succeeded)
	assert.Equal(t, 20, evt.Requested)

	// 每笔贷款各发布一条事件
	perLoan := len(env.publisher.byTopic(domain.TopicLoanGenerated)) + len(env.publisher.byTopic(domain.TopicLoanRejected))
	assert.Equal(t, batch.Succeeded, perLoan)
}

func TestGenerateBatchUsesConfigDefaults(t *testing.T) {
	cfg := testWindowConfig()
	cfg.BatchSize = 5
	cfg.Seed = 77
	env := newTestEnv(cfg)

	dto, err := env.command.GenerateBatch(context.Background(), GenerateBatchCommand{})
	require.NoError(t, err)
	assert.Equal(t, 5, dto.Requested)
	assert.Equal(t, int64(77), dto.Seed)

	require.Eventually(t, func() bool {
		return env.progress.isCompleted(dto.BatchID)
	}, 30*time.Second, 50*time.Millisecond)
}

func TestGetBatchMergesProgress(t *testing.T) {
	env := newTestEnv(testWindowConfig())
	ctx := context.Background()

	batch := &domain.GenerationBatch{BatchID: "batch-1", Requested: 100, Status: "running", StartedAt: time.Now()}
	require.NoError(t, env.batches.SaveBatch(ctx, batch))
	require.NoError(t, env.progress.InitProgress(ctx, "batch-1", 100))
	require.NoError(t, env.progress.IncrProgress(ctx, "batch-1", 40, 10))

	dto, err := env.query.GetBatch(ctx, "batch-1")
	require.NoError(t, err)
	assert.InDelta(t, 50.0, dto.Progress, 1e-9)
	assert.Equal(t, "running", dto.Status)
}

func TestGetBatchFallsBackWithoutProgress(t *testing.T) {
	env := newTestEnv(testWindowConfig())
	ctx := context.Background()
	env.progress.getErr = errors.New("progress gone")

	batch := &domain.GenerationBatch{
		BatchID: "batch-2", Requested: 10, Succeeded: 9, Failed: 1,
		Status: "completed", StartedAt: time.Now(), CompletedAt: time.Now(),
	}
	require.NoError(t, env.batches.SaveBatch(ctx, batch))

	dto, err := env.query.GetBatch(ctx, "batch-2")
	require.NoError(t, err)
	// 进度缺失时按数据库事实折算
	assert.InDelta(t, 100.0, dto.Progress, 1e-9)
}

func TestGetBatchNotFound(t *testing.T) {
	env := newTestEnv(testWindowConfig())
	_, err := env.query.GetBatch(context.Background(), "missing")
	assert.Error(t, err)
}

func TestListLoansNormalizesPaging(t *testing.T) {
	env := newTestEnv(testWindowConfig())

	list, err := env.query.ListLoans(context.Background(), ListLoansQuery{Page: -2, PageSize: 9999})
	require.NoError(t, err)
	assert.Equal(t, 1, list.Page)
	assert.Equal(t, 20, list.PageSize)
	assert.Empty(t, list.Items)
}
