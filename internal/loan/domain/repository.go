package domain

import (
	"context"
	"time"
)

// LoanFilter 贷款记录查询条件
type LoanFilter struct {
	CustomerID string
	LoanType   LoanType
	Status     LoanStatus
	BatchID    string
	Page       int
	PageSize   int
}

// GenerationBatch 生成批次
type GenerationBatch struct {
	BatchID     string    `json:"batch_id"`
	Requested   int       `json:"requested"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	Rejected    int       `json:"rejected"`
	Seed        int64     `json:"seed"`
	Status      string    `json:"status"` // running / completed / failed
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

// LoanRepository 贷款记录仓储接口
type LoanRepository interface {
	SaveLoan(ctx context.Context, loan *LoanRecord, batchID string) error
	SaveLoans(ctx context.Context, loans []*LoanRecord, batchID string) error
	GetLoan(ctx context.Context, loanID string) (*LoanRecord, error)
	ListLoans(ctx context.Context, filter LoanFilter) ([]*LoanRecord, int64, error)
}

// BatchRepository 生成批次仓储接口
type BatchRepository interface {
	SaveBatch(ctx context.Context, batch *GenerationBatch) error
	GetBatch(ctx context.Context, batchID string) (*GenerationBatch, error)
}

// BatchProgressStore 批次进度存储（redis）
type BatchProgressStore interface {
	InitProgress(ctx context.Context, batchID string, total int) error
	IncrProgress(ctx context.Context, batchID string, succeeded, failed int) error
	GetProgress(ctx context.Context, batchID string) (done int, failed int, total int, err error)
	MarkCompleted(ctx context.Context, batchID string) error
}
