package domain

import (
	"context"
	"time"
)

// EventPublisher 领域事件发布接口
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key string, event any) error
}

// 事件主题
const (
	TopicLoanGenerated  = "loan.generated"
	TopicLoanRejected   = "loan.rejected"
	TopicBatchCompleted = "loan.batch.completed"
)

// LoanGeneratedEvent 贷款记录生成事件
type LoanGeneratedEvent struct {
	LoanID        string     `json:"loan_id"`
	CustomerID    string     `json:"customer_id"`
	BatchID       string     `json:"batch_id,omitempty"`
	LoanType      LoanType   `json:"loan_type"`
	Amount        float64    `json:"amount"`
	TermMonths    int        `json:"term_months"`
	InterestRate  float64    `json:"interest_rate"`
	CurrentStatus LoanStatus `json:"current_status"`
	Timestamp     time.Time  `json:"timestamp"`
}

// LoanRejectedEvent 拒绝记录生成事件
type LoanRejectedEvent struct {
	LoanID          string    `json:"loan_id"`
	ApplicationID   string    `json:"application_id"`
	CustomerID      string    `json:"customer_id"`
	BatchID         string    `json:"batch_id,omitempty"`
	LoanType        LoanType  `json:"loan_type"`
	RejectionReason string    `json:"rejection_reason"`
	Timestamp       time.Time `json:"timestamp"`
}

// BatchCompletedEvent 批次完成事件
type BatchCompletedEvent struct {
	BatchID   string    `json:"batch_id"`
	Requested int       `json:"requested"`
	Succeeded int       `json:"succeeded"`
	Failed    int       `json:"failed"`
	Rejected  int       `json:"rejected"`
	Duration  float64   `json:"duration_seconds"`
	Timestamp time.Time `json:"timestamp"`
}
