package application

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ww-care/bank-data-simulation/internal/loan/domain"
	"github.com/ww-care/bank-data-simulation/pkg/config"
	"github.com/ww-care/bank-data-simulation/pkg/logger"
	"github.com/ww-care/bank-data-simulation/pkg/metrics"

	"golang.org/x/sync/errgroup"
)

// LoanCommandService 贷款生成命令服务
type LoanCommandService struct {
	loans     domain.LoanRepository
	batches   domain.BatchRepository
	progress  domain.BatchProgressStore
	publisher domain.EventPublisher
	collector metrics.MetricsCollector
	cfg       config.GeneratorConfig
}

// NewLoanCommandService 创建命令服务
func NewLoanCommandService(
	loans domain.LoanRepository,
	batches domain.BatchRepository,
	progress domain.BatchProgressStore,
	publisher domain.EventPublisher,
	collector metrics.MetricsCollector,
	cfg config.GeneratorConfig,
) *LoanCommandService {
	return &LoanCommandService{
		loans:     loans,
		batches:   batches,
		progress:  progress,
		publisher: publisher,
		collector: collector,
		cfg:       cfg,
	}
}

// GenerateLoan 生成单笔贷款记录并持久化
func (s *LoanCommandService) GenerateLoan(ctx context.Context, cmd GenerateLoanCommand) (*domain.LoanRecord, error) {
	seed := cmd.Seed
	if seed == 0 {
		seed = s.cfg.Seed
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	customer := s.resolveCustomer(cmd.Customer, rng)
	start, end, err := s.resolveWindow(cmd.StartDate, cmd.EndDate)
	if err != nil {
		return nil, err
	}

	var overrides *domain.LoanOverrides
	if cmd.LoanType != "" || cmd.Amount > 0 || cmd.TermMonths > 0 {
		overrides = &domain.LoanOverrides{
			LoanType:   domain.LoanType(cmd.LoanType),
			Amount:     cmd.Amount,
			TermMonths: cmd.TermMonths,
		}
	}

	gen := s.newGenerator(rng)

	began := time.Now()
	loan, err := gen.GenerateLoan(customer, start, end, overrides)
	if err != nil {
		return nil, fmt.Errorf("generate loan: %w", err)
	}

	if err := s.loans.SaveLoan(ctx, loan, ""); err != nil {
		return nil, fmt.Errorf("save loan %s: %w", loan.LoanID, err)
	}
	s.publishLoanEvent(ctx, loan, "")
	s.recordLoan(loan, time.Since(began).Seconds())

	logger.Info(ctx, "Loan record generated",
		"loan_id", loan.LoanID,
		"customer_id", loan.CustomerID,
		"loan_type", loan.LoanType,
		"status", loan.CurrentStatus,
		"seed", seed)
	return loan, nil
}

// GenerateBatch 启动批量生成，批次在后台执行，进度写入 Redis
func (s *LoanCommandService) GenerateBatch(ctx context.Context, cmd GenerateBatchCommand) (*BatchDTO, error) {
	count := cmd.Count
	if count <= 0 {
		count = s.cfg.BatchSize
	}
	seed := cmd.Seed
	if seed == 0 {
		seed = s.cfg.Seed
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	workers := cmd.Workers
	if workers <= 0 {
		workers = s.cfg.Workers
	}
	if workers <= 0 {
		workers = 4
	}
	if workers > count {
		workers = count
	}

	start, end, err := s.resolveWindow(cmd.StartDate, cmd.EndDate)
	if err != nil {
		return nil, err
	}

	batch := &domain.GenerationBatch{
		BatchID:   uuid.NewString(),
		Requested: count,
		Seed:      seed,
		Status:    "running",
		StartedAt: time.Now(),
	}
	if err := s.batches.SaveBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("save batch: %w", err)
	}
	if err := s.progress.InitProgress(ctx, batch.BatchID, count); err != nil {
		logger.Warn(ctx, "Failed to init batch progress", "batch_id", batch.BatchID, "error", err)
	}
	if s.collector != nil {
		s.collector.RecordBatchStarted()
	}

	go s.runBatch(batch, cmd.Customer, count, workers, seed, start, end)

	logger.Info(ctx, "Generation batch started",
		"batch_id", batch.BatchID,
		"count", count,
		"workers", workers,
		"seed", seed)
	return toBatchDTO(batch, 0, count), nil
}

// runBatch 在独立 goroutine 内执行批次，使用 errgroup 限定并发
func (s *LoanCommandService) runBatch(batch *domain.GenerationBatch, customer *CustomerInput, count, workers int, seed int64, start, end time.Time) {
	ctx := context.Background()
	began := time.Now()

	type workerStats struct {
		succeeded int
		failed    int
		rejected  int
	}

	var mu sync.Mutex
	total := workerStats{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	// 把 count 均分给各 worker，每个 worker 独立派生随机源
	base := count / workers
	extra := count % workers
	for i := 0; i < workers; i++ {
		index := i
		share := base
		if index < extra {
			share++
		}
		if share == 0 {
			continue
		}
		g.Go(func() error {
			rng := rand.New(rand.NewSource(seed + int64(index)))
			gen := s.newGenerator(rng)
			stats := workerStats{}

			pending := make([]*domain.LoanRecord, 0, share)
			for n := 0; n < share; n++ {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				cust := s.resolveCustomer(customer, rng)
				loanBegan := time.Now()
				loan, err := gen.GenerateLoan(cust, start, end, nil)
				if err != nil {
					stats.failed++
					logger.Warn(gctx, "Loan generation failed in batch",
						"batch_id", batch.BatchID, "worker", index, "error", err)
					continue
				}
				stats.succeeded++
				if loan.IsRejected() {
					stats.rejected++
				}
				pending = append(pending, loan)
				s.recordLoan(loan, time.Since(loanBegan).Seconds())
			}

			if len(pending) > 0 {
				if err := s.loans.SaveLoans(gctx, pending, batch.BatchID); err != nil {
					return fmt.Errorf("save batch loans: %w", err)
				}
				for _, loan := range pending {
					s.publishLoanEvent(gctx, loan, batch.BatchID)
				}
			}
			if err := s.progress.IncrProgress(gctx, batch.BatchID, stats.succeeded, stats.failed); err != nil {
				logger.Warn(gctx, "Failed to update batch progress", "batch_id", batch.BatchID, "error", err)
			}

			mu.Lock()
			total.succeeded += stats.succeeded
			total.failed += stats.failed
			total.rejected += stats.rejected
			mu.Unlock()
			return nil
		})
	}

	batch.Status = "completed"
	if err := g.Wait(); err != nil {
		batch.Status = "failed"
		logger.Error(ctx, "Generation batch failed", "batch_id", batch.BatchID, "error", err)
	}

	batch.Succeeded = total.succeeded
	batch.Failed = total.failed
	batch.Rejected = total.rejected
	batch.CompletedAt = time.Now()
	if err := s.batches.SaveBatch(ctx, batch); err != nil {
		logger.Error(ctx, "Failed to finalize batch record", "batch_id", batch.BatchID, "error", err)
	}
	if err := s.progress.MarkCompleted(ctx, batch.BatchID); err != nil {
		logger.Warn(ctx, "Failed to mark batch progress completed", "batch_id", batch.BatchID, "error", err)
	}

	duration := time.Since(began)
	if s.collector != nil {
		s.collector.RecordBatchFinished(duration.Seconds())
	}
	if err := s.publisher.Publish(ctx, domain.TopicBatchCompleted, batch.BatchID, domain.BatchCompletedEvent{
		BatchID:   batch.BatchID,
		Requested: batch.Requested,
		Succeeded: batch.Succeeded,
		Failed:    batch.Failed,
		Rejected:  batch.Rejected,
		Duration:  duration.Seconds(),
		Timestamp: batch.CompletedAt,
	}); err != nil {
		logger.Warn(ctx, "Failed to publish batch completed event", "batch_id", batch.BatchID, "error", err)
	}

	logger.Info(ctx, "Generation batch finished",
		"batch_id", batch.BatchID,
		"status", batch.Status,
		"succeeded", batch.Succeeded,
		"failed", batch.Failed,
		"rejected", batch.Rejected,
		"duration", duration.String())
}

func (s *LoanCommandService) newGenerator(rng *rand.Rand) *domain.LoanRecordGenerator {
	opts := []domain.Option{}
	if s.cfg.Mode == "simple" {
		opts = append(opts,
			domain.WithParameterModel(domain.NewSimpleParameterModel(rng)),
			domain.WithApplicationModel(domain.NewSimpleApplicationModel(rng)),
			domain.WithRiskModel(domain.SimpleRiskModel{}),
			domain.WithApprovalModel(domain.NewSimpleApprovalModel(rng)),
			domain.WithRepaymentModel(domain.NewSimpleRepaymentModel(rng)),
			domain.WithStatusModel(domain.SimpleStatusModel{}),
		)
	} else if s.cfg.BaseRate > 0 {
		opts = append(opts, domain.WithBenchmarkRate(s.cfg.BaseRate))
	}
	if len(s.cfg.TypeWeights) > 0 {
		weights := make(map[domain.LoanType]float64, len(s.cfg.TypeWeights))
		for name, w := range s.cfg.TypeWeights {
			weights[domain.LoanType(name)] = w
		}
		opts = append(opts, domain.WithTypeWeights(weights))
	}
	if len(s.cfg.StatusWeights) > 0 && s.cfg.Mode != "simple" {
		prior := make(map[domain.LoanStatus]float64, len(s.cfg.StatusWeights))
		for name, w := range s.cfg.StatusWeights {
			prior[domain.LoanStatus(name)] = w
		}
		opts = append(opts, domain.WithStatusPrior(prior))
	}
	return domain.NewLoanRecordGenerator(rng, opts...)
}

// resolveCustomer 请求未携带客户时随机合成一个客户画像
func (s *LoanCommandService) resolveCustomer(in *CustomerInput, rng *rand.Rand) domain.CustomerSnapshot {
	if in != nil {
		snapshot := toCustomerSnapshot(in)
		if snapshot.CustomerID == "" {
			snapshot.CustomerID = "CUST-" + uuid.NewString()[:8]
		}
		if snapshot.CreditScore == 0 {
			snapshot.CreditScore = 350 + rng.Intn(501)
		}
		if snapshot.Age == 0 {
			snapshot.Age = 22 + rng.Intn(44)
		}
		return snapshot
	}

	age := 22 + rng.Intn(44)
	income := float64(40000 + rng.Intn(560001))
	history := make([]domain.PaymentHistoryRecord, 12)
	lateEvery := 0
	if rng.Float64() < 0.3 {
		lateEvery = 3 + rng.Intn(6)
	}
	for i := range history {
		history[i] = domain.PaymentHistoryRecord{
			Amount: 500 + rng.Float64()*4500,
			IsLate: lateEvery > 0 && (i+1)%lateEvery == 0,
		}
	}
	return domain.CustomerSnapshot{
		CustomerID:      "CUST-" + uuid.NewString()[:8],
		CreditScore:     350 + rng.Intn(501),
		AnnualIncome:    income,
		ExistingDebt:    income * (0.1 + rng.Float64()*0.4),
		EmploymentYears: float64(rng.Intn(20)) + rng.Float64(),
		Age:             age,
		IsVIP:           rng.Float64() < 0.1,
		IsCorporate:     rng.Float64() < 0.05,
		PaymentHistory:  history,
	}
}

func (s *LoanCommandService) resolveWindow(startStr, endStr string) (time.Time, time.Time, error) {
	if startStr == "" {
		startStr = s.cfg.StartDate
	}
	if endStr == "" {
		endStr = s.cfg.EndDate
	}

	var start, end time.Time
	var err error
	if startStr != "" {
		start, err = time.Parse("2006-01-02", startStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse start_date %q: %w", startStr, err)
		}
	}
	if endStr != "" {
		end, err = time.Parse("2006-01-02", endStr)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parse end_date %q: %w", endStr, err)
		}
	}
	if !start.IsZero() && !end.IsZero() && !start.Before(end) {
		return time.Time{}, time.Time{}, domain.ErrInvalidDateRange
	}
	return start, end, nil
}

func (s *LoanCommandService) publishLoanEvent(ctx context.Context, loan *domain.LoanRecord, batchID string) {
	var err error
	if loan.IsRejected() {
		err = s.publisher.Publish(ctx, domain.TopicLoanRejected, loan.LoanID, domain.LoanRejectedEvent{
			LoanID:          loan.LoanID,
			ApplicationID:   loan.ApplicationID,
			CustomerID:      loan.CustomerID,
			BatchID:         batchID,
			LoanType:        loan.LoanType,
			RejectionReason: loan.RejectionReason,
			Timestamp:       time.Now(),
		})
	} else {
		err = s.publisher.Publish(ctx, domain.TopicLoanGenerated, loan.LoanID, domain.LoanGeneratedEvent{
			LoanID:        loan.LoanID,
			CustomerID:    loan.CustomerID,
			BatchID:       batchID,
			LoanType:      loan.LoanType,
			Amount:        loan.Amount,
			TermMonths:    loan.TermMonths,
			InterestRate:  loan.InterestRate,
			CurrentStatus: loan.CurrentStatus,
			Timestamp:     time.Now(),
		})
	}
	if err != nil {
		logger.Warn(ctx, "Failed to publish loan event", "loan_id", loan.LoanID, "error", err)
	}
}

func (s *LoanCommandService) recordLoan(loan *domain.LoanRecord, seconds float64) {
	if s.collector == nil {
		return
	}
	if loan.IsRejected() {
		s.collector.RecordLoanRejected()
		return
	}
	s.collector.RecordLoanGenerated(seconds)
}
