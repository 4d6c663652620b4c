// Package mysql 贷款记录的 MySQL 持久化实现
package mysql

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ww-care/bank-data-simulation/internal/loan/domain"
)

// LoanRecordModel 贷款记录主表。申请、审批、事件等嵌套结构以 JSON 列存储，
// 还款计划、还款记录、状态时间线落独立子表便于按期查询。
type LoanRecordModel struct {
	ID               uint64    `gorm:"primaryKey;autoIncrement"`
	LoanID           string    `gorm:"column:loan_id;type:varchar(32);uniqueIndex;not null"`
	ApplicationID    string    `gorm:"column:application_id;type:varchar(32);index"`
	CustomerID       string    `gorm:"column:customer_id;type:varchar(64);index;not null"`
	AccountID        string    `gorm:"column:account_id;type:varchar(32)"`
	BatchID          string    `gorm:"column:batch_id;type:varchar(64);index"`
	LoanType         string    `gorm:"column:loan_type;type:varchar(32);index;not null"`
	Amount           float64   `gorm:"column:amount;type:decimal(16,2)"`
	InterestRate     float64   `gorm:"column:interest_rate;type:decimal(8,6)"`
	APR              float64   `gorm:"column:apr;type:decimal(8,6)"`
	TermMonths       int       `gorm:"column:term_months"`
	RepaymentMethod  string    `gorm:"column:repayment_method;type:varchar(32)"`
	DisbursementDate time.Time `gorm:"column:disbursement_date"`
	FirstPaymentDate time.Time `gorm:"column:first_payment_date"`
	MaturityDate     time.Time `gorm:"column:maturity_date"`
	RepaymentDay     int       `gorm:"column:repayment_day"`
	RiskLevel        string    `gorm:"column:risk_level;type:varchar(16);index"`
	IsVIP            bool      `gorm:"column:is_vip"`
	Purpose          string    `gorm:"column:purpose;type:varchar(128)"`
	CurrentStatus    string    `gorm:"column:current_status;type:varchar(32);index"`
	RejectionReason  string    `gorm:"column:rejection_reason;type:varchar(255)"`
	Fees             string    `gorm:"column:fees;type:json"`
	Statistics       string    `gorm:"column:statistics;type:json"`
	Application      string    `gorm:"column:application_data;type:json"`
	Approval         string    `gorm:"column:approval_data;type:json"`
	Events           string    `gorm:"column:status_events;type:json"`
	OverdueReport    string    `gorm:"column:overdue_report;type:json"`
	RepaymentSummary string    `gorm:"column:repayment_summary;type:json"`
	StatusSummary    string    `gorm:"column:status_summary;type:json"`
	LastUpdated      time.Time `gorm:"column:last_updated"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName 指定表名
func (LoanRecordModel) TableName() string {
	return "loan_records"
}

// RepaymentScheduleModel 还款计划子表
type RepaymentScheduleModel struct {
	ID                 uint64    `gorm:"primaryKey;autoIncrement"`
	LoanID             string    `gorm:"column:loan_id;type:varchar(32);index;not null"`
	PaymentID          string    `gorm:"column:payment_id;type:varchar(48);uniqueIndex"`
	Period             int       `gorm:"column:period"`
	DueDate            time.Time `gorm:"column:due_date"`
	Principal          float64   `gorm:"column:principal;type:decimal(16,2)"`
	Interest           float64   `gorm:"column:interest;type:decimal(16,2)"`
	TotalPayment       float64   `gorm:"column:total_payment;type:decimal(16,2)"`
	RemainingPrincipal float64   `gorm:"column:remaining_principal;type:decimal(16,2)"`
}

// TableName 指定表名
func (RepaymentScheduleModel) TableName() string {
	return "loan_repayment_schedules"
}

// RepaymentRecordModel 实际还款记录子表
type RepaymentRecordModel struct {
	ID                 uint64    `gorm:"primaryKey;autoIncrement"`
	LoanID             string    `gorm:"column:loan_id;type:varchar(32);index;not null"`
	PaymentID          string    `gorm:"column:payment_id;type:varchar(48);index"`
	Period             int       `gorm:"column:period"`
	DueDate            time.Time `gorm:"column:due_date"`
	Principal          float64   `gorm:"column:principal;type:decimal(16,2)"`
	Interest           float64   `gorm:"column:interest;type:decimal(16,2)"`
	TotalPayment       float64   `gorm:"column:total_payment;type:decimal(16,2)"`
	RemainingPrincipal float64   `gorm:"column:remaining_principal;type:decimal(16,2)"`
	Status             string    `gorm:"column:status;type:varchar(32);index"`
	ActualDate         time.Time `gorm:"column:actual_payment_date"`
	ActualPrincipal    float64   `gorm:"column:actual_principal;type:decimal(16,2)"`
	ActualInterest     float64   `gorm:"column:actual_interest;type:decimal(16,2)"`
	ActualTotal        float64   `gorm:"column:actual_payment;type:decimal(16,2)"`
	LateFee            float64   `gorm:"column:late_fee;type:decimal(16,2)"`
	PenaltyInterest    float64   `gorm:"column:penalty_interest;type:decimal(16,2)"`
	OverdueDays        int       `gorm:"column:days_overdue"`
	IsOverdue          bool      `gorm:"column:is_overdue"`
	IsEarlyRepayment   bool      `gorm:"column:is_early_repayment"`
	EarlyRepaidAmount  float64   `gorm:"column:early_repaid_amount;type:decimal(16,2)"`
	EarlySettlement    bool      `gorm:"column:early_settlement"`
	PaymentMethod      string    `gorm:"column:payment_method;type:varchar(32)"`
}

// TableName 指定表名
func (RepaymentRecordModel) TableName() string {
	return "loan_repayment_records"
}

// StatusHistoryModel 状态时间线子表
type StatusHistoryModel struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement"`
	LoanID       string    `gorm:"column:loan_id;type:varchar(32);index;not null"`
	Status       string    `gorm:"column:status;type:varchar(32)"`
	StartDate    time.Time `gorm:"column:start_date"`
	EndDate      time.Time `gorm:"column:end_date"`
	DurationDays int       `gorm:"column:duration_days"`
	Sequence     int       `gorm:"column:sequence"`
}

// TableName 指定表名
func (StatusHistoryModel) TableName() string {
	return "loan_status_history"
}

// GenerationBatchModel 生成批次表
type GenerationBatchModel struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	BatchID     string    `gorm:"column:batch_id;type:varchar(64);uniqueIndex;not null"`
	Requested   int       `gorm:"column:requested"`
	Succeeded   int       `gorm:"column:succeeded"`
	Failed      int       `gorm:"column:failed"`
	Rejected    int       `gorm:"column:rejected"`
	Seed        int64     `gorm:"column:seed"`
	Status      string    `gorm:"column:status;type:varchar(16);index"`
	StartedAt   time.Time `gorm:"column:started_at"`
	CompletedAt time.Time `gorm:"column:completed_at"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName 指定表名
func (GenerationBatchModel) TableName() string {
	return "loan_generation_batches"
}

// toLoanModel 领域聚合转主表模型
func toLoanModel(loan *domain.LoanRecord, batchID string) (*LoanRecordModel, error) {
	fees, err := json.Marshal(loan.Fees)
	if err != nil {
		return nil, fmt.Errorf("marshal fees: %w", err)
	}
	stats, err := json.Marshal(loan.Statistics)
	if err != nil {
		return nil, fmt.Errorf("marshal statistics: %w", err)
	}
	app, err := json.Marshal(loan.Application)
	if err != nil {
		return nil, fmt.Errorf("marshal application: %w", err)
	}
	approval, err := json.Marshal(loan.Approval)
	if err != nil {
		return nil, fmt.Errorf("marshal approval: %w", err)
	}
	events, err := json.Marshal(loan.Events)
	if err != nil {
		return nil, fmt.Errorf("marshal events: %w", err)
	}
	overdue, err := json.Marshal(loan.OverdueReport)
	if err != nil {
		return nil, fmt.Errorf("marshal overdue report: %w", err)
	}
	repaySummary, err := json.Marshal(loan.RepaymentSummary)
	if err != nil {
		return nil, fmt.Errorf("marshal repayment summary: %w", err)
	}
	statusSummary, err := json.Marshal(loan.StatusSummary)
	if err != nil {
		return nil, fmt.Errorf("marshal status summary: %w", err)
	}

	return &LoanRecordModel{
		LoanID:           loan.LoanID,
		ApplicationID:    loan.ApplicationID,
		CustomerID:       loan.CustomerID,
		AccountID:        loan.AccountID,
		BatchID:          batchID,
		LoanType:         string(loan.LoanType),
		Amount:           loan.Amount,
		InterestRate:     loan.InterestRate,
		APR:              loan.APR,
		TermMonths:       loan.TermMonths,
		RepaymentMethod:  string(loan.RepaymentMethod),
		DisbursementDate: loan.DisbursementDate,
		FirstPaymentDate: loan.FirstPaymentDate,
		MaturityDate:     loan.MaturityDate,
		RepaymentDay:     loan.RepaymentDay,
		RiskLevel:        string(loan.RiskLevel),
		IsVIP:            loan.IsVIP,
		Purpose:          loan.Purpose,
		CurrentStatus:    string(loan.CurrentStatus),
		RejectionReason:  loan.RejectionReason,
		Fees:             string(fees),
		Statistics:       string(stats),
		Application:      string(app),
		Approval:         string(approval),
		Events:           string(events),
		OverdueReport:    string(overdue),
		RepaymentSummary: string(repaySummary),
		StatusSummary:    string(statusSummary),
		LastUpdated:      loan.LastUpdated,
	}, nil
}

// fromLoanModel 主表模型还原领域聚合（不含子表数据）
func fromLoanModel(m *LoanRecordModel) (*domain.LoanRecord, error) {
	loan := &domain.LoanRecord{
		LoanID:           m.LoanID,
		ApplicationID:    m.ApplicationID,
		CustomerID:       m.CustomerID,
		AccountID:        m.AccountID,
		LoanType:         domain.LoanType(m.LoanType),
		Amount:           m.Amount,
		InterestRate:     m.InterestRate,
		APR:              m.APR,
		TermMonths:       m.TermMonths,
		RepaymentMethod:  domain.RepaymentMethod(m.RepaymentMethod),
		DisbursementDate: m.DisbursementDate,
		FirstPaymentDate: m.FirstPaymentDate,
		MaturityDate:     m.MaturityDate,
		RepaymentDay:     m.RepaymentDay,
		RiskLevel:        domain.RiskLevel(m.RiskLevel),
		IsVIP:            m.IsVIP,
		Purpose:          m.Purpose,
		CurrentStatus:    domain.LoanStatus(m.CurrentStatus),
		RejectionReason:  m.RejectionReason,
		LastUpdated:      m.LastUpdated,
	}

	if m.Fees != "" {
		if err := json.Unmarshal([]byte(m.Fees), &loan.Fees); err != nil {
			return nil, fmt.Errorf("unmarshal fees: %w", err)
		}
	}
	if m.Statistics != "" {
		if err := json.Unmarshal([]byte(m.Statistics), &loan.Statistics); err != nil {
			return nil, fmt.Errorf("unmarshal statistics: %w", err)
		}
	}
	if m.Application != "" && m.Application != "null" {
		loan.Application = &domain.Application{}
		if err := json.Unmarshal([]byte(m.Application), loan.Application); err != nil {
			return nil, fmt.Errorf("unmarshal application: %w", err)
		}
	}
	if m.Approval != "" && m.Approval != "null" {
		loan.Approval = &domain.ApprovalProcess{}
		if err := json.Unmarshal([]byte(m.Approval), loan.Approval); err != nil {
			return nil, fmt.Errorf("unmarshal approval: %w", err)
		}
	}
	if m.Events != "" && m.Events != "null" {
		if err := json.Unmarshal([]byte(m.Events), &loan.Events); err != nil {
			return nil, fmt.Errorf("unmarshal events: %w", err)
		}
	}
	if m.OverdueReport != "" && m.OverdueReport != "null" {
		loan.OverdueReport = &domain.OverdueReport{}
		if err := json.Unmarshal([]byte(m.OverdueReport), loan.OverdueReport); err != nil {
			return nil, fmt.Errorf("unmarshal overdue report: %w", err)
		}
	}
	if m.RepaymentSummary != "" && m.RepaymentSummary != "null" {
		loan.RepaymentSummary = &domain.RepaymentSummary{}
		if err := json.Unmarshal([]byte(m.RepaymentSummary), loan.RepaymentSummary); err != nil {
			return nil, fmt.Errorf("unmarshal repayment summary: %w", err)
		}
	}
	if m.StatusSummary != "" && m.StatusSummary != "null" {
		loan.StatusSummary = &domain.StatusSummary{}
		if err := json.Unmarshal([]byte(m.StatusSummary), loan.StatusSummary); err != nil {
			return nil, fmt.Errorf("unmarshal status summary: %w", err)
		}
	}
	return loan, nil
}

func toScheduleModels(loan *domain.LoanRecord) []RepaymentScheduleModel {
	models := make([]RepaymentScheduleModel, 0, len(loan.Schedule))
	for _, p := range loan.Schedule {
		models = append(models, RepaymentScheduleModel{
			LoanID:             loan.LoanID,
			PaymentID:          p.PaymentID,
			Period:             p.Period,
			DueDate:            p.DueDate,
			Principal:          p.Principal,
			Interest:           p.Interest,
			TotalPayment:       p.TotalPayment,
			RemainingPrincipal: p.RemainingPrincipal,
		})
	}
	return models
}

func fromScheduleModel(m *RepaymentScheduleModel) domain.SchedulePeriod {
	return domain.SchedulePeriod{
		PaymentID:          m.PaymentID,
		Period:             m.Period,
		DueDate:            m.DueDate,
		Principal:          m.Principal,
		Interest:           m.Interest,
		TotalPayment:       m.TotalPayment,
		RemainingPrincipal: m.RemainingPrincipal,
	}
}

func toRepaymentModels(loan *domain.LoanRecord) []RepaymentRecordModel {
	models := make([]RepaymentRecordModel, 0, len(loan.History))
	for _, r := range loan.History {
		models = append(models, RepaymentRecordModel{
			LoanID:             loan.LoanID,
			PaymentID:          r.PaymentID,
			Period:             r.Period,
			DueDate:            r.DueDate,
			Principal:          r.Principal,
			Interest:           r.Interest,
			TotalPayment:       r.TotalPayment,
			RemainingPrincipal: r.RemainingPrincipal,
			Status:             string(r.Status),
			ActualDate:         r.ActualDate,
			ActualPrincipal:    r.ActualPrincipal,
			ActualInterest:     r.ActualInterest,
			ActualTotal:        r.ActualTotal,
			LateFee:            r.LateFee,
			PenaltyInterest:    r.PenaltyInterest,
			OverdueDays:        r.OverdueDays,
			IsOverdue:          r.IsOverdue,
			IsEarlyRepayment:   r.IsEarlyRepayment,
			EarlyRepaidAmount:  r.EarlyRepaidAmount,
			EarlySettlement:    r.EarlySettlement,
			PaymentMethod:      r.PaymentMethod,
		})
	}
	return models
}

func fromRepaymentModel(m *RepaymentRecordModel) domain.RepaymentRecord {
	return domain.RepaymentRecord{
		SchedulePeriod: domain.SchedulePeriod{
			PaymentID:          m.PaymentID,
			Period:             m.Period,
			DueDate:            m.DueDate,
			Principal:          m.Principal,
			Interest:           m.Interest,
			TotalPayment:       m.TotalPayment,
			RemainingPrincipal: m.RemainingPrincipal,
		},
		Status:            domain.PaymentStatus(m.Status),
		ActualDate:        m.ActualDate,
		ActualPrincipal:   m.ActualPrincipal,
		ActualInterest:    m.ActualInterest,
		ActualTotal:       m.ActualTotal,
		LateFee:           m.LateFee,
		PenaltyInterest:   m.PenaltyInterest,
		OverdueDays:       m.OverdueDays,
		IsOverdue:         m.IsOverdue,
		IsEarlyRepayment:  m.IsEarlyRepayment,
		EarlyRepaidAmount: m.EarlyRepaidAmount,
		EarlySettlement:   m.EarlySettlement,
		PaymentMethod:     m.PaymentMethod,
	}
}

func toStatusModels(loan *domain.LoanRecord) []StatusHistoryModel {
	models := make([]StatusHistoryModel, 0, len(loan.Timeline))
	for i, e := range loan.Timeline {
		models = append(models, StatusHistoryModel{
			LoanID:       loan.LoanID,
			Status:       string(e.Status),
			StartDate:    e.StartDate,
			EndDate:      e.EndDate,
			DurationDays: e.DurationDays,
			Sequence:     i + 1,
		})
	}
	return models
}

func fromStatusModel(m *StatusHistoryModel) domain.StatusEntry {
	return domain.StatusEntry{
		Status:       domain.LoanStatus(m.Status),
		StartDate:    m.StartDate,
		EndDate:      m.EndDate,
		DurationDays: m.DurationDays,
	}
}

func toBatchModel(b *domain.GenerationBatch) *GenerationBatchModel {
	return &GenerationBatchModel{
		BatchID:     b.BatchID,
		Requested:   b.Requested,
		Succeeded:   b.Succeeded,
		Failed:      b.Failed,
		Rejected:    b.Rejected,
		Seed:        b.Seed,
		Status:      b.Status,
		StartedAt:   b.StartedAt,
		CompletedAt: b.CompletedAt,
	}
}

func fromBatchModel(m *GenerationBatchModel) *domain.GenerationBatch {
	return &domain.GenerationBatch{
		BatchID:     m.BatchID,
		Requested:   m.Requested,
		Succeeded:   m.Succeeded,
		Failed:      m.Failed,
		Rejected:    m.Rejected,
		Seed:        m.Seed,
		Status:      m.Status,
		StartedAt:   m.StartedAt,
		CompletedAt: m.CompletedAt,
	}
}
