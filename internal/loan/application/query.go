package application

import (
	"context"
	"fmt"

	"github.com/ww-care/bank-data-simulation/internal/loan/domain"
	"github.com/ww-care/bank-data-simulation/pkg/logger"
)

// LoanQueryService 贷款查询服务
type LoanQueryService struct {
	loans    domain.LoanRepository
	batches  domain.BatchRepository
	progress domain.BatchProgressStore
}

// NewLoanQueryService 创建查询服务
func NewLoanQueryService(loans domain.LoanRepository, batches domain.BatchRepository, progress domain.BatchProgressStore) *LoanQueryService {
	return &LoanQueryService{loans: loans, batches: batches, progress: progress}
}

// GetLoan 按贷款编号查询完整记录
func (s *LoanQueryService) GetLoan(ctx context.Context, loanID string) (*domain.LoanRecord, error) {
	loan, err := s.loans.GetLoan(ctx, loanID)
	if err != nil {
		return nil, fmt.Errorf("get loan %s: %w", loanID, err)
	}
	return loan, nil
}

// ListLoans 分页查询贷款记录
func (s *LoanQueryService) ListLoans(ctx context.Context, query ListLoansQuery) (*LoanListDTO, error) {
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.PageSize <= 0 || query.PageSize > 200 {
		query.PageSize = 20
	}

	filter := domain.LoanFilter{
		CustomerID: query.CustomerID,
		LoanType:   domain.LoanType(query.LoanType),
		Status:     domain.LoanStatus(query.Status),
		BatchID:    query.BatchID,
		Page:       query.Page,
		PageSize:   query.PageSize,
	}
	loans, total, err := s.loans.ListLoans(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}

	items := make([]LoanSummaryDTO, 0, len(loans))
	for _, loan := range loans {
		items = append(items, toSummaryDTO(loan))
	}
	return &LoanListDTO{
		Items:    items,
		Total:    total,
		Page:     query.Page,
		PageSize: query.PageSize,
	}, nil
}

// GetBatch 查询批次，叠加 Redis 实时进度
func (s *LoanQueryService) GetBatch(ctx context.Context, batchID string) (*BatchDTO, error) {
	batch, err := s.batches.GetBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("get batch %s: %w", batchID, err)
	}

	done, failed, total, err := s.progress.GetProgress(ctx, batchID)
	if err != nil {
		// 进度缺失只影响展示，批次事实以数据库为准
		logger.Debug(ctx, "Batch progress unavailable", "batch_id", batchID, "error", err)
		return toBatchDTO(batch, batch.Succeeded+batch.Failed, batch.Requested), nil
	}
	return toBatchDTO(batch, done+failed, total), nil
}
