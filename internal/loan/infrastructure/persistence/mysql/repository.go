package mysql

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/ww-care/bank-data-simulation/internal/loan/domain"
	"github.com/ww-care/bank-data-simulation/pkg/db"
)

// ErrLoanNotFound 贷款记录不存在
var ErrLoanNotFound = errors.New("loan record not found")

// ErrBatchNotFound 批次不存在
var ErrBatchNotFound = errors.New("generation batch not found")

// LoanRepository 贷款记录仓储的 MySQL 实现
type LoanRepository struct {
	db *db.DB
}

// NewLoanRepository 创建贷款仓储
func NewLoanRepository(database *db.DB) *LoanRepository {
	return &LoanRepository{db: database}
}

// AutoMigrate 建表
func (r *LoanRepository) AutoMigrate() error {
	return r.db.AutoMigrate(
		&LoanRecordModel{},
		&RepaymentScheduleModel{},
		&RepaymentRecordModel{},
		&StatusHistoryModel{},
		&GenerationBatchModel{},
	)
}

// SaveLoan 保存单条贷款记录及其子表数据，同一事务提交
func (r *LoanRepository) SaveLoan(ctx context.Context, loan *domain.LoanRecord, batchID string) error {
	return r.saveLoans(ctx, []*domain.LoanRecord{loan}, batchID)
}

// SaveLoans 批量保存贷款记录
func (r *LoanRepository) SaveLoans(ctx context.Context, loans []*domain.LoanRecord, batchID string) error {
	return r.saveLoans(ctx, loans, batchID)
}

func (r *LoanRepository) saveLoans(ctx context.Context, loans []*domain.LoanRecord, batchID string) error {
	if len(loans) == 0 {
		return nil
	}

	records := make([]*LoanRecordModel, 0, len(loans))
	schedules := make([]RepaymentScheduleModel, 0)
	repayments := make([]RepaymentRecordModel, 0)
	statuses := make([]StatusHistoryModel, 0)
	for _, loan := range loans {
		m, err := toLoanModel(loan, batchID)
		if err != nil {
			return fmt.Errorf("map loan %s: %w", loan.LoanID, err)
		}
		records = append(records, m)
		schedules = append(schedules, toScheduleModels(loan)...)
		repayments = append(repayments, toRepaymentModels(loan)...)
		statuses = append(statuses, toStatusModels(loan)...)
	}

	return r.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(records, 500).Error; err != nil {
			return fmt.Errorf("insert loan records: %w", err)
		}
		if len(schedules) > 0 {
			if err := tx.CreateInBatches(schedules, 1000).Error; err != nil {
				return fmt.Errorf("insert repayment schedules: %w", err)
			}
		}
		if len(repayments) > 0 {
			if err := tx.CreateInBatches(repayments, 1000).Error; err != nil {
				return fmt.Errorf("insert repayment records: %w", err)
			}
		}
		if len(statuses) > 0 {
			if err := tx.CreateInBatches(statuses, 1000).Error; err != nil {
				return fmt.Errorf("insert status history: %w", err)
			}
		}
		return nil
	})
}

// GetLoan 按贷款编号加载完整聚合
func (r *LoanRepository) GetLoan(ctx context.Context, loanID string) (*domain.LoanRecord, error) {
	var record LoanRecordModel
	err := r.db.WithContext(ctx).Where("loan_id = ?", loanID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLoanNotFound
		}
		return nil, fmt.Errorf("query loan: %w", err)
	}

	loan, err := fromLoanModel(&record)
	if err != nil {
		return nil, err
	}

	var schedules []RepaymentScheduleModel
	if err := r.db.WithContext(ctx).Where("loan_id = ?", loanID).Order("period").Find(&schedules).Error; err != nil {
		return nil, fmt.Errorf("query schedules: %w", err)
	}
	for i := range schedules {
		loan.Schedule = append(loan.Schedule, fromScheduleModel(&schedules[i]))
	}

	var repayments []RepaymentRecordModel
	if err := r.db.WithContext(ctx).Where("loan_id = ?", loanID).Order("period").Find(&repayments).Error; err != nil {
		return nil, fmt.Errorf("query repayments: %w", err)
	}
	for i := range repayments {
		loan.History = append(loan.History, fromRepaymentModel(&repayments[i]))
	}

	var statuses []StatusHistoryModel
	if err := r.db.WithContext(ctx).Where("loan_id = ?", loanID).Order("sequence").Find(&statuses).Error; err != nil {
		return nil, fmt.Errorf("query status history: %w", err)
	}
	for i := range statuses {
		loan.Timeline = append(loan.Timeline, fromStatusModel(&statuses[i]))
	}
	sort.Slice(loan.Timeline, func(i, j int) bool {
		return loan.Timeline[i].StartDate.Before(loan.Timeline[j].StartDate)
	})

	return loan, nil
}

// ListLoans 条件分页查询，仅返回主表字段
func (r *LoanRepository) ListLoans(ctx context.Context, filter domain.LoanFilter) ([]*domain.LoanRecord, int64, error) {
	query := r.db.WithContext(ctx).Model(&LoanRecordModel{})
	if filter.CustomerID != "" {
		query = query.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.LoanType != "" {
		query = query.Where("loan_type = ?", string(filter.LoanType))
	}
	if filter.Status != "" {
		query = query.Where("current_status = ?", string(filter.Status))
	}
	if filter.BatchID != "" {
		query = query.Where("batch_id = ?", filter.BatchID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count loans: %w", err)
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	var records []LoanRecordModel
	err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&records).Error
	if err != nil {
		return nil, 0, fmt.Errorf("query loans: %w", err)
	}

	loans := make([]*domain.LoanRecord, 0, len(records))
	for i := range records {
		loan, err := fromLoanModel(&records[i])
		if err != nil {
			return nil, 0, err
		}
		loans = append(loans, loan)
	}
	return loans, total, nil
}

// BatchRepository 生成批次仓储的 MySQL 实现
type BatchRepository struct {
	db *db.DB
}

// NewBatchRepository 创建批次仓储
func NewBatchRepository(database *db.DB) *BatchRepository {
	return &BatchRepository{db: database}
}

// SaveBatch 按 batch_id 幂等保存批次
func (r *BatchRepository) SaveBatch(ctx context.Context, batch *domain.GenerationBatch) error {
	model := toBatchModel(batch)
	err := r.db.UpsertWithConflict(ctx, model,
		[]string{"batch_id"},
		[]string{"requested", "succeeded", "failed", "rejected", "status", "completed_at", "updated_at"},
	)
	if err != nil {
		return fmt.Errorf("upsert batch %s: %w", batch.BatchID, err)
	}
	return nil
}

// GetBatch 按批次编号查询
func (r *BatchRepository) GetBatch(ctx context.Context, batchID string) (*domain.GenerationBatch, error) {
	var model GenerationBatchModel
	err := r.db.WithContext(ctx).Where("batch_id = ?", batchID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBatchNotFound
		}
		return nil, fmt.Errorf("query batch: %w", err)
	}
	return fromBatchModel(&model), nil
}
