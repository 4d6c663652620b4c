// Package domain 贷款生命周期模拟的领域模型。
// 所有模型均为纯函数式组件：随机性通过注入的 *rand.Rand 提供，便于测试时固定种子复现。
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LoanType 贷款类型
type LoanType string

const (
	LoanTypeMortgage      LoanType = "mortgage"             // 住房贷款
	LoanTypeCar           LoanType = "car"                  // 汽车贷款
	LoanTypePersonal      LoanType = "personal_consumption" // 个人消费贷
	LoanTypeEducation     LoanType = "education"            // 教育贷款
	LoanTypeSmallBusiness LoanType = "small_business"       // 小微企业贷
)

// AllLoanTypes 全部贷款类型，遍历顺序固定以保证随机选择可复现
var AllLoanTypes = []LoanType{
	LoanTypePersonal,
	LoanTypeMortgage,
	LoanTypeCar,
	LoanTypeEducation,
	LoanTypeSmallBusiness,
}

// RepaymentMethod 还款方式
type RepaymentMethod string

const (
	MethodEqualInstallment RepaymentMethod = "equal_installment" // 等额本息
	MethodEqualPrincipal   RepaymentMethod = "equal_principal"   // 等额本金
	MethodInterestOnly     RepaymentMethod = "interest_only"     // 先息后本
	MethodBalloon          RepaymentMethod = "balloon"           // 一次性还本付息
)

// RiskLevel 风险等级
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskVeryHigh RiskLevel = "very_high"
)

// ApplicationStatus 申请状态
type ApplicationStatus string

const (
	AppStatusSubmitted       ApplicationStatus = "submitted"
	AppStatusDocsRequired    ApplicationStatus = "additional_documents_required"
	AppStatusUnderReview     ApplicationStatus = "under_review"
	AppStatusRiskAssessment  ApplicationStatus = "risk_assessment"
	AppStatusPendingDecision ApplicationStatus = "pending_decision"
	AppStatusApproved        ApplicationStatus = "approved"
	AppStatusRejected        ApplicationStatus = "rejected"
	AppStatusCancelled       ApplicationStatus = "cancelled"
	AppStatusExpired         ApplicationStatus = "expired"
)

// DocumentStatus 申请材料状态
type DocumentStatus string

const (
	DocSubmitted DocumentStatus = "submitted"
	DocPending   DocumentStatus = "pending"
	DocIssue     DocumentStatus = "issue"
)

// LoanStatus 贷款状态（九态状态机）
type LoanStatus string

const (
	StatusApplying     LoanStatus = "applying"
	StatusApproved     LoanStatus = "approved"
	StatusRejected     LoanStatus = "rejected"
	StatusDisbursed    LoanStatus = "disbursed"
	StatusRepaying     LoanStatus = "repaying"
	StatusOverdue      LoanStatus = "overdue"
	StatusDefaulted    LoanStatus = "defaulted"
	StatusSettled      LoanStatus = "settled"
	StatusEarlySettled LoanStatus = "early_settled"
)

// PaymentStatus 还款记录状态
type PaymentStatus string

const (
	PaymentScheduled PaymentStatus = "scheduled"
	PaymentPaid      PaymentStatus = "paid"
	PaymentPaidLate  PaymentStatus = "paid_late"
)

// PaymentHistoryRecord 客户历史还款记录（模型输入）
type PaymentHistoryRecord struct {
	Amount float64 `json:"amount"`
	IsLate bool    `json:"is_late"`
}

// CustomerSnapshot 客户快照，生成过程的只读输入
type CustomerSnapshot struct {
	CustomerID      string                 `json:"customer_id"`
	CreditScore     int                    `json:"credit_score"` // 350-850
	AnnualIncome    float64                `json:"annual_income"`
	ExistingDebt    float64                `json:"existing_debt"`
	EmploymentYears float64                `json:"employment_years"`
	Age             int                    `json:"age"`
	IsVIP           bool                   `json:"is_vip"`
	IsCorporate     bool                   `json:"is_corporate"`
	PaymentHistory  []PaymentHistoryRecord `json:"payment_history,omitempty"`
}

// LateRatio 历史逾期比例，无历史记录时返回 0
func (c CustomerSnapshot) LateRatio() float64 {
	if len(c.PaymentHistory) == 0 {
		return 0
	}
	late := 0
	for _, p := range c.PaymentHistory {
		if p.IsLate {
			late++
		}
	}
	return float64(late) / float64(len(c.PaymentHistory))
}

// FeeStructure 贷款费用结构
type FeeStructure struct {
	ApplicationFee        float64 `json:"application_fee"`
	ServiceFeeRate        float64 `json:"service_fee_rate"`
	InsuranceFee          float64 `json:"insurance_fee"`
	GuaranteeFee          float64 `json:"guarantee_fee"`
	EarlyRepaymentPenalty float64 `json:"early_repayment_penalty"` // 剩余本金的比例
	LateFeeDailyRate      float64 `json:"late_fee_daily_rate"`     // 当期应还总额的日率
	PenaltyDailyRate      float64 `json:"penalty_daily_rate"`      // 当期本金的日率
}

// LoanParameters 贷款参数，生成后不可变
type LoanParameters struct {
	LoanType        LoanType        `json:"loan_type"`
	Amount          float64         `json:"amount"`
	TermMonths      int             `json:"term_months"`
	InterestRate    float64         `json:"interest_rate"`
	APR             float64         `json:"annual_percentage_rate"`
	RepaymentMethod RepaymentMethod `json:"repayment_method"`
	Fees            FeeStructure    `json:"fees"`
}

// TrackingEvent 申请处理过程事件
type TrackingEvent struct {
	EventID    string    `json:"event_id"` // EVT-{appid}-NNN
	EventType  string    `json:"event_type"`
	EventDate  time.Time `json:"event_date"`
	Actor      string    `json:"actor"`
	Visibility string    `json:"visibility"` // public / internal
	Detail     string    `json:"detail"`
}

// PreviousApplication 历史申请记录
type PreviousApplication struct {
	ApplicationID string    `json:"application_id"`
	Date          time.Time `json:"date"`
	Status        string    `json:"status"` // rejected / cancelled / approved_not_taken
	Amount        float64   `json:"amount"`
	Reason        string    `json:"reason,omitempty"`
}

// RiskAssessment 初步风险评估结论
type RiskAssessment struct {
	RiskLevel          RiskLevel          `json:"risk_level"`
	DefaultProbability float64            `json:"default_probability"`
	Factors            []RiskFactor       `json:"risk_factors,omitempty"`
	Eligibility        *EligibilityResult `json:"eligibility,omitempty"`
	AssessorID         string             `json:"assessor_id,omitempty"` // RA-####
	AssessedAt         time.Time          `json:"assessed_at,omitempty"`
}

// Application 贷款申请
type Application struct {
	ApplicationID        string                    `json:"application_id"` // LOAN-YYYYMMDD-#####
	CustomerID           string                    `json:"customer_id"`
	LoanType             LoanType                  `json:"loan_type"`
	Amount               float64                   `json:"amount"`
	TermMonths           int                       `json:"term_months"`
	Channel              string                    `json:"channel"`
	Purpose              string                    `json:"purpose"`
	SubmitDate           time.Time                 `json:"submit_date"`
	Status               ApplicationStatus         `json:"status"`
	StatusDate           time.Time                 `json:"status_date"`
	Documents            []string                  `json:"documents"`
	DocumentStatus       map[string]DocumentStatus `json:"document_status"`
	ExpectedDays         int                       `json:"expected_processing_days"`
	ExpectedDecisionDate time.Time                 `json:"expected_decision_date"`
	IsFirstApplication   bool                      `json:"is_first_application"`
	PreviousApplications []PreviousApplication     `json:"previous_applications,omitempty"`
	InitialRisk          *RiskAssessment           `json:"initial_risk_assessment,omitempty"`
	Notes                []string                  `json:"notes,omitempty"`
	Events               []TrackingEvent           `json:"events,omitempty"`
	IsVIP                bool                      `json:"is_vip"`
	CancelReason         string                    `json:"cancel_reason,omitempty"`
}

// IncompleteDocuments 返回未提交或有问题的材料数
func (a *Application) IncompleteDocuments() int {
	n := 0
	for _, st := range a.DocumentStatus {
		if st != DocSubmitted {
			n++
		}
	}
	return n
}

// ApprovalFlowType 审批流程类型
type ApprovalFlowType string

const (
	FlowExpress  ApprovalFlowType = "express"
	FlowStandard ApprovalFlowType = "standard"
	FlowEnhanced ApprovalFlowType = "enhanced"
)

// ApprovalStep 审批步骤
type ApprovalStep struct {
	StepID    string         `json:"step_id"` // STEP-{appid}-NN
	Name      string         `json:"name"`
	Role      string         `json:"role"`
	Handler   string         `json:"handler"`
	Committee []string       `json:"committee,omitempty"` // COM-### 委员会成员
	StartDate time.Time      `json:"start_date"`
	EndDate   time.Time      `json:"end_date"`
	Duration  float64        `json:"duration_days"`
	Status    string         `json:"status"` // completed / pending
	Result    map[string]any `json:"result,omitempty"`
}

// ApprovalConditions 批准附加条件
type ApprovalConditions struct {
	ApprovedAmount     float64   `json:"approved_amount"`
	ApprovedTermMonths int       `json:"approved_term_months"`
	InterestRate       float64   `json:"interest_rate"`
	APR                float64   `json:"annual_percentage_rate"`
	RequiresGuarantor  bool      `json:"requires_guarantor"`
	RequiresCollateral bool      `json:"requires_collateral"`
	ValidityDays       int       `json:"validity_period_days"`
	ExpirationDate     time.Time `json:"expiration_date"`
	SpecialConditions  []string  `json:"special_conditions,omitempty"`
}

// Rejection 拒绝详情
type Rejection struct {
	RejectionCode       string    `json:"rejection_code"` // REJ-###
	Reasons             []string  `json:"reasons"`
	Details             string    `json:"details"`
	CanReapply          bool      `json:"can_reapply"`
	EarliestReapplyDate time.Time `json:"earliest_reapply_date"`
}

// ApprovalDecision 审批决定
type ApprovalDecision struct {
	DecisionID string              `json:"decision_id"` // DEC-YYYYMMDD-####
	Decision   string              `json:"decision"`    // approved / rejected / pending / error
	Date       time.Time           `json:"decision_date"`
	RiskLevel  RiskLevel           `json:"risk_level"`
	Conditions *ApprovalConditions `json:"approval_details,omitempty"`
	Rejection  *Rejection          `json:"rejection_details,omitempty"`
}

// ApprovalProcess 审批流程
type ApprovalProcess struct {
	FlowID        string            `json:"flow_id"` // APF-YYYYMMDD-####
	ApplicationID string            `json:"application_id"`
	FlowType      ApprovalFlowType  `json:"flow_type"`
	Steps         []ApprovalStep    `json:"steps"`
	StartDate     time.Time         `json:"start_date"`
	EndDate       time.Time         `json:"end_date"`
	DurationDays  float64           `json:"duration_days"`
	Decision      *ApprovalDecision `json:"decision,omitempty"`
	FinalStatus   string            `json:"final_status"`
	ProcessedBy   []string          `json:"processed_by,omitempty"`
	Summary       string            `json:"summary,omitempty"`
}

// SchedulePeriod 还款计划单期
type SchedulePeriod struct {
	PaymentID          string    `json:"payment_id"` // PAY-{loanid}-NNN
	Period             int       `json:"period"`
	DueDate            time.Time `json:"due_date"`
	Principal          float64   `json:"principal"`
	Interest           float64   `json:"interest"`
	TotalPayment       float64   `json:"total_payment"`
	RemainingPrincipal float64   `json:"remaining_principal"`
}

// RepaymentRecord 实际还款记录，计划单期叠加实际行为
type RepaymentRecord struct {
	SchedulePeriod
	Status            PaymentStatus `json:"status"`
	ActualDate        time.Time     `json:"actual_payment_date,omitempty"`
	ActualPrincipal   float64       `json:"actual_principal"`
	ActualInterest    float64       `json:"actual_interest"`
	ActualTotal       float64       `json:"actual_payment"`
	LateFee           float64       `json:"late_fee"`
	PenaltyInterest   float64       `json:"penalty_interest"`
	OverdueDays       int           `json:"days_overdue"`
	IsOverdue         bool          `json:"is_overdue"`
	IsEarlyRepayment  bool          `json:"is_early_repayment"`
	EarlyRepaidAmount float64       `json:"early_repaid_amount,omitempty"`
	EarlySettlement   bool          `json:"early_settlement,omitempty"`
	PaymentMethod     string        `json:"payment_method,omitempty"`
}

// StatusEntry 状态时间线条目
type StatusEntry struct {
	Status       LoanStatus `json:"status"`
	StartDate    time.Time  `json:"start_date"`
	EndDate      time.Time  `json:"end_date"`
	DurationDays int        `json:"duration_days"`
}

// StatusEvent 状态相关事件
type StatusEvent struct {
	EventType string         `json:"event_type"`
	EventDate time.Time      `json:"event_date"`
	Actor     string         `json:"actor,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// LoanStatistics 贷款汇总统计
type LoanStatistics struct {
	TotalPaid            float64 `json:"total_paid"`
	PaidPrincipal        float64 `json:"paid_principal"`
	PaidInterest         float64 `json:"paid_interest"`
	RemainingPrincipal   float64 `json:"remaining_principal"`
	OverduePayments      int     `json:"overdue_payments"`
	OverdueFees          float64 `json:"overdue_fees"`
	CompletionPercentage float64 `json:"completion_percentage"`
}

// LoanRecord 贷款记录聚合根
type LoanRecord struct {
	LoanID           string            `json:"loan_id"` // LOAN-YYYYMMDD-#####
	ApplicationID    string            `json:"application_id"`
	CustomerID       string            `json:"customer_id"`
	AccountID        string            `json:"account_id"` // ACC-######
	LoanType         LoanType          `json:"loan_type"`
	Amount           float64           `json:"loan_amount"`
	InterestRate     float64           `json:"interest_rate"`
	APR              float64           `json:"annual_percentage_rate"`
	TermMonths       int               `json:"loan_term_months"`
	RepaymentMethod  RepaymentMethod   `json:"repayment_method"`
	DisbursementDate time.Time         `json:"disbursement_date"`
	FirstPaymentDate time.Time         `json:"first_payment_date"`
	MaturityDate     time.Time         `json:"maturity_date"`
	RepaymentDay     int               `json:"repayment_day"` // 1-28
	RiskLevel        RiskLevel         `json:"risk_level"`
	IsVIP            bool              `json:"is_vip_customer"`
	Purpose          string            `json:"purpose"`
	Fees             FeeStructure      `json:"fees"`
	CurrentStatus    LoanStatus        `json:"current_status"`
	Schedule         []SchedulePeriod  `json:"repayment_schedule,omitempty"`
	History          []RepaymentRecord `json:"repayment_history,omitempty"`
	Timeline         []StatusEntry     `json:"status_timeline,omitempty"`
	Events           []StatusEvent     `json:"status_events,omitempty"`
	Statistics       LoanStatistics    `json:"statistics"`
	OverdueReport    *OverdueReport    `json:"overdue_report,omitempty"`
	RepaymentSummary *RepaymentSummary `json:"repayment_summary,omitempty"`
	StatusSummary    *StatusSummary    `json:"status_summary,omitempty"`
	Application      *Application      `json:"application_data,omitempty"`
	Approval         *ApprovalProcess  `json:"approval_data,omitempty"`
	RejectionReason  string            `json:"rejection_reason,omitempty"`
	LastUpdated      time.Time         `json:"last_updated"`
}

// IsRejected 是否为拒绝记录（无放款数据）。历史回填的状态时间线
// 允许出现申请阶段状态，因此不能只看当前状态。
func (r *LoanRecord) IsRejected() bool {
	return r.CurrentStatus == StatusRejected && r.DisbursementDate.IsZero()
}

// round2 金额按半进位舍入到分
func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// roundTo 按给定粒度取整（如整百、整千）
func roundTo(v, granularity float64) float64 {
	if granularity <= 0 {
		return v
	}
	d := decimal.NewFromFloat(v).Div(decimal.NewFromFloat(granularity)).Round(0)
	f, _ := d.Mul(decimal.NewFromFloat(granularity)).Float64()
	return f
}

// clampFloat 将 v 限制在 [lo, hi]
func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
