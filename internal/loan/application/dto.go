// Package application 贷款生成服务的应用层：命令/查询服务与 DTO
package application

import (
	"time"

	"github.com/ww-care/bank-data-simulation/internal/loan/domain"
)

// CustomerInput 请求中的客户快照
type CustomerInput struct {
	CustomerID      string  `json:"customer_id"`
	CreditScore     int     `json:"credit_score" binding:"omitempty,min=350,max=850"`
	AnnualIncome    float64 `json:"annual_income"`
	ExistingDebt    float64 `json:"existing_debt"`
	EmploymentYears float64 `json:"employment_years"`
	Age             int     `json:"age"`
	IsVIP           bool    `json:"is_vip"`
	IsCorporate     bool    `json:"is_corporate"`
}

// GenerateLoanCommand 单笔生成命令
type GenerateLoanCommand struct {
	Customer   *CustomerInput `json:"customer"`
	LoanType   string         `json:"loan_type,omitempty"`
	Amount     float64        `json:"amount,omitempty"`
	TermMonths int            `json:"term_months,omitempty"`
	StartDate  string         `json:"start_date,omitempty"` // 2006-01-02
	EndDate    string         `json:"end_date,omitempty"`
	Seed       int64          `json:"seed,omitempty"`
}

// GenerateBatchCommand 批量生成命令
type GenerateBatchCommand struct {
	Count     int            `json:"count" binding:"required,min=1,max=100000"`
	Customer  *CustomerInput `json:"customer,omitempty"` // 为空时每笔随机合成客户
	StartDate string         `json:"start_date,omitempty"`
	EndDate   string         `json:"end_date,omitempty"`
	Seed      int64          `json:"seed,omitempty"`
	Workers   int            `json:"workers,omitempty"`
}

// LoanSummaryDTO 贷款记录列表行
type LoanSummaryDTO struct {
	LoanID        string    `json:"loan_id"`
	ApplicationID string    `json:"application_id"`
	CustomerID    string    `json:"customer_id"`
	LoanType      string    `json:"loan_type"`
	Amount        float64   `json:"amount"`
	InterestRate  float64   `json:"interest_rate"`
	TermMonths    int       `json:"term_months"`
	Status        string    `json:"status"`
	RiskLevel     string    `json:"risk_level"`
	CreatedAt     time.Time `json:"created_at"`
}

// BatchDTO 批次视图，含实时进度
type BatchDTO struct {
	BatchID     string    `json:"batch_id"`
	Requested   int       `json:"requested"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	Rejected    int       `json:"rejected"`
	Seed        int64     `json:"seed"`
	Status      string    `json:"status"`
	Progress    float64   `json:"progress"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

// ListLoansQuery 列表查询参数
type ListLoansQuery struct {
	CustomerID string `form:"customer_id"`
	LoanType   string `form:"loan_type"`
	Status     string `form:"status"`
	BatchID    string `form:"batch_id"`
	Page       int    `form:"page,default=1"`
	PageSize   int    `form:"page_size,default=20"`
}

// LoanListDTO 分页列表结果
type LoanListDTO struct {
	Items    []LoanSummaryDTO `json:"items"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

func toCustomerSnapshot(in *CustomerInput) domain.CustomerSnapshot {
	return domain.CustomerSnapshot{
		CustomerID:      in.CustomerID,
		CreditScore:     in.CreditScore,
		AnnualIncome:    in.AnnualIncome,
		ExistingDebt:    in.ExistingDebt,
		EmploymentYears: in.EmploymentYears,
		Age:             in.Age,
		IsVIP:           in.IsVIP,
		IsCorporate:     in.IsCorporate,
	}
}

func toSummaryDTO(loan *domain.LoanRecord) LoanSummaryDTO {
	return LoanSummaryDTO{
		LoanID:        loan.LoanID,
		ApplicationID: loan.ApplicationID,
		CustomerID:    loan.CustomerID,
		LoanType:      string(loan.LoanType),
		Amount:        loan.Amount,
		InterestRate:  loan.InterestRate,
		TermMonths:    loan.TermMonths,
		Status:        string(loan.CurrentStatus),
		RiskLevel:     string(loan.RiskLevel),
		CreatedAt:     loan.LastUpdated,
	}
}

func toBatchDTO(batch *domain.GenerationBatch, done, total int) *BatchDTO {
	dto := &BatchDTO{
		BatchID:     batch.BatchID,
		Requested:   batch.Requested,
		Succeeded:   batch.Succeeded,
		Failed:      batch.Failed,
		Rejected:    batch.Rejected,
		Seed:        batch.Seed,
		Status:      batch.Status,
		StartedAt:   batch.StartedAt,
		CompletedAt: batch.CompletedAt,
	}
	if total > 0 {
		dto.Progress = float64(done) / float64(total) * 100
	} else if batch.Status == "completed" {
		dto.Progress = 100
	}
	return dto
}
