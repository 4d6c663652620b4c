package domain

import (
	"fmt"
	"math/rand"
	"time"
)

// defaultTypeWeights 默认贷款类型分布
var defaultTypeWeights = map[LoanType]float64{
	LoanTypePersonal:      0.40,
	LoanTypeMortgage:      0.30,
	LoanTypeCar:           0.12,
	LoanTypeEducation:     0.08,
	LoanTypeSmallBusiness: 0.10,
}

// ParameterGenerator 贷款参数子模型
type ParameterGenerator interface {
	GenerateParameters(customer CustomerSnapshot, loanType LoanType, preferredAmount float64, preferredTerm int) (LoanParameters, error)
}

// ApplicationGenerator 贷款申请子模型
type ApplicationGenerator interface {
	GenerateApplication(customer CustomerSnapshot, params LoanParameters, submitDate time.Time) *Application
	SimulateProcessing(app *Application, risk *RiskAssessment) time.Time
	ApprovalProbability(app *Application, level RiskLevel) float64
	MarkDecision(app *Application, decision *ApprovalDecision)
}

// RiskScorer 风险子模型
type RiskScorer interface {
	CalculateDefaultProbability(customer CustomerSnapshot, params LoanParameters) float64
	DetermineRiskLevel(dp float64, params LoanParameters) RiskLevel
	AnalyzeRiskFactors(customer CustomerSnapshot, params LoanParameters) []RiskFactor
	IsEligibleForApproval(customer CustomerSnapshot, params LoanParameters, dp float64, level RiskLevel) EligibilityResult
}

// ApprovalGenerator 审批子模型
type ApprovalGenerator interface {
	GenerateCompleteApproval(app *Application, customer CustomerSnapshot, params LoanParameters, risk *RiskAssessment, approvalP float64, startDate time.Time) *ApprovalProcess
}

// RepaymentSimulator 还款子模型
type RepaymentSimulator interface {
	GenerateSchedule(loan *LoanRecord) ([]SchedulePeriod, error)
	SimulateBehavior(loan *LoanRecord, schedule []SchedulePeriod, customer CustomerSnapshot, asOf time.Time) []RepaymentRecord
	GenerateOverdueReport(loan *LoanRecord, history []RepaymentRecord, asOf time.Time) *OverdueReport
	GenerateRepaymentSummary(loan *LoanRecord, history []RepaymentRecord, asOf time.Time) *RepaymentSummary
}

// TimelineGenerator 状态子模型
type TimelineGenerator interface {
	InitialStatus(loanType LoanType, creditScore int, historical bool) LoanStatus
	GenerateTimeline(initial LoanStatus, startDate time.Time, loan *LoanRecord, customer CustomerSnapshot, historical bool) []StatusEntry
	GenerateStatusEvents(timeline []StatusEntry, loan *LoanRecord) []StatusEvent
	GetStatusSummary(loan *LoanRecord, timeline []StatusEntry, asOf time.Time) *StatusSummary
}

// LoanOverrides 单笔生成时的参数覆盖，零值字段表示由模型决定
type LoanOverrides struct {
	LoanType   LoanType
	Amount     float64
	TermMonths int
}

// Option 生成器可选配置
type Option func(*LoanRecordGenerator)

// WithTypeWeights 覆盖贷款类型分布
func WithTypeWeights(weights map[LoanType]float64) Option {
	return func(g *LoanRecordGenerator) {
		if len(weights) > 0 {
			g.typeWeights = weights
		}
	}
}

// WithParameterModel 替换参数子模型
func WithParameterModel(m ParameterGenerator) Option {
	return func(g *LoanRecordGenerator) { g.params = m }
}

// WithApplicationModel 替换申请子模型
func WithApplicationModel(m ApplicationGenerator) Option {
	return func(g *LoanRecordGenerator) { g.apps = m }
}

// WithRiskModel 替换风险子模型
func WithRiskModel(m RiskScorer) Option {
	return func(g *LoanRecordGenerator) { g.risk = m }
}

// WithApprovalModel 替换审批子模型
func WithApprovalModel(m ApprovalGenerator) Option {
	return func(g *LoanRecordGenerator) { g.approval = m }
}

// WithRepaymentModel 替换还款子模型
func WithRepaymentModel(m RepaymentSimulator) Option {
	return func(g *LoanRecordGenerator) { g.repayment = m }
}

// WithStatusModel 替换状态子模型
func WithStatusModel(m TimelineGenerator) Option {
	return func(g *LoanRecordGenerator) { g.status = m }
}

// WithBenchmarkRate 覆盖基准利率（作用于默认参数子模型）
func WithBenchmarkRate(rate float64) Option {
	return func(g *LoanRecordGenerator) {
		g.params = NewParameterModel(g.rng, rate)
	}
}

// WithStatusPrior 覆盖历史状态回填先验（作用于默认状态子模型）
func WithStatusPrior(prior map[LoanStatus]float64) Option {
	return func(g *LoanRecordGenerator) {
		if len(prior) > 0 {
			g.status = NewStatusModelWithPrior(g.rng, prior)
		}
	}
}

// LoanRecordGenerator 贷款记录生成器：整合各子模型生成完整贷款记录。
// 非并发安全，批量并行时每个 worker 持有独立实例。
type LoanRecordGenerator struct {
	rng         *rand.Rand
	seq         *idSequence
	typeWeights map[LoanType]float64

	params    ParameterGenerator
	apps      ApplicationGenerator
	risk      RiskScorer
	approval  ApprovalGenerator
	repayment RepaymentSimulator
	status    TimelineGenerator
}

// NewLoanRecordGenerator 创建生成器，默认装配全量子模型（共享同一 rng）
func NewLoanRecordGenerator(rng *rand.Rand, opts ...Option) *LoanRecordGenerator {
	g := &LoanRecordGenerator{
		rng:         rng,
		seq:         newIDSequence(rng),
		typeWeights: defaultTypeWeights,
		params:      NewParameterModel(rng, 0),
		apps:        NewApplicationModel(rng, nil),
		risk:        NewRiskModel(rng),
		approval:    NewApprovalModel(rng),
		repayment:   NewRepaymentModel(rng),
		status:      NewStatusModel(rng),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SelectLoanType 按客户特征调整类型分布后加权选择
func (g *LoanRecordGenerator) SelectLoanType(customer CustomerSnapshot) LoanType {
	weights := make(map[LoanType]float64, len(g.typeWeights))
	for k, v := range g.typeWeights {
		weights[k] = v
	}

	if customer.IsCorporate {
		weights[LoanTypeSmallBusiness] *= 5
		for _, t := range []LoanType{LoanTypePersonal, LoanTypeMortgage, LoanTypeCar, LoanTypeEducation} {
			weights[t] *= 0.2
		}
	} else {
		if customer.AnnualIncome > 200000 {
			weights[LoanTypeMortgage] *= 1.5
		} else if customer.AnnualIncome < 50000 {
			weights[LoanTypePersonal] *= 1.3
		}
		if customer.Age < 25 {
			weights[LoanTypeEducation] *= 2
		}
		if customer.Age >= 30 && customer.Age <= 45 {
			weights[LoanTypeMortgage] *= 1.2
			weights[LoanTypeCar] *= 1.2
		}
	}

	ws := make([]float64, len(AllLoanTypes))
	for i, t := range AllLoanTypes {
		ws[i] = weights[t]
	}
	return weightedChoice(g.rng, AllLoanTypes, ws)
}

// GenerateLoan 生成一笔完整贷款记录：类型 → 参数 → 申请 → 审批 →
// 放款 → 还款计划与行为 → 状态时间线 → 汇总。
// 审批拒绝或申请取消时返回仅含申请与审批数据的最小记录。
func (g *LoanRecordGenerator) GenerateLoan(customer CustomerSnapshot, start, end time.Time, overrides *LoanOverrides) (*LoanRecord, error) {
	if end.IsZero() {
		end = time.Now()
	}
	if start.IsZero() {
		start = end.AddDate(0, 0, -randIntRange(g.rng, 30, 365))
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("generate loan for %s: %w", customer.CustomerID, ErrInvalidDateRange)
	}

	var ov LoanOverrides
	if overrides != nil {
		ov = *overrides
	}

	loanType := ov.LoanType
	if loanType == "" {
		loanType = g.SelectLoanType(customer)
	}

	params, err := g.params.GenerateParameters(customer, loanType, ov.Amount, ov.TermMonths)
	if err != nil {
		return nil, fmt.Errorf("generate parameters: %w", err)
	}

	dp := g.risk.CalculateDefaultProbability(customer, params)
	level := g.risk.DetermineRiskLevel(dp, params)
	eligibility := g.risk.IsEligibleForApproval(customer, params, dp, level)
	risk := &RiskAssessment{
		RiskLevel:          level,
		DefaultProbability: dp,
		Factors:            g.risk.AnalyzeRiskFactors(customer, params),
		Eligibility:        &eligibility,
	}

	app := g.apps.GenerateApplication(customer, params, start)
	decisionStart := g.apps.SimulateProcessing(app, risk)

	if app.Status == AppStatusCancelled {
		return g.buildRejectedRecord(customer, app, nil, loanType, decisionStart, "申请已取消："+app.CancelReason), nil
	}

	approvalP := g.apps.ApprovalProbability(app, risk.RiskLevel)
	process := g.approval.GenerateCompleteApproval(app, customer, params, risk, approvalP, decisionStart)
	g.apps.MarkDecision(app, process.Decision)

	if process.FinalStatus != "approved" {
		reason := "未指明原因"
		if process.Decision != nil && process.Decision.Rejection != nil && len(process.Decision.Rejection.Reasons) > 0 {
			reason = process.Decision.Rejection.Reasons[0]
		}
		return g.buildRejectedRecord(customer, app, process, loanType, process.EndDate, reason), nil
	}

	loan, err := g.buildApprovedRecord(customer, app, process, params, risk)
	if err != nil {
		return nil, err
	}

	schedule, err := g.repayment.GenerateSchedule(loan)
	if err != nil {
		return nil, err
	}
	loan.Schedule = schedule
	loan.History = g.repayment.SimulateBehavior(loan, schedule, customer, end)

	initial := g.status.InitialStatus(loan.LoanType, customer.CreditScore, true)
	loan.Timeline = g.status.GenerateTimeline(initial, loan.DisbursementDate, loan, customer, true)
	loan.Events = g.status.GenerateStatusEvents(loan.Timeline, loan)
	loan.CurrentStatus = GetStatusAtDate(loan.Timeline, end)

	g.mergeStatistics(loan)
	loan.OverdueReport = g.repayment.GenerateOverdueReport(loan, loan.History, end)
	loan.RepaymentSummary = g.repayment.GenerateRepaymentSummary(loan, loan.History, end)
	loan.StatusSummary = g.status.GetStatusSummary(loan, loan.Timeline, end)
	loan.LastUpdated = end

	return loan, nil
}

// buildRejectedRecord 拒绝或取消路径的最小记录
func (g *LoanRecordGenerator) buildRejectedRecord(customer CustomerSnapshot, app *Application, process *ApprovalProcess, loanType LoanType, at time.Time, reason string) *LoanRecord {
	return &LoanRecord{
		LoanID:          loanID(at, g.seq.Next()),
		ApplicationID:   app.ApplicationID,
		CustomerID:      customer.CustomerID,
		LoanType:        loanType,
		Amount:          app.Amount,
		TermMonths:      app.TermMonths,
		CurrentStatus:   StatusRejected,
		RejectionReason: reason,
		Application:     app,
		Approval:        process,
		Timeline: []StatusEntry{{
			Status:       StatusRejected,
			StartDate:    at,
			EndDate:      at.AddDate(0, 0, 1),
			DurationDays: 1,
		}},
		LastUpdated: at,
	}
}

// buildApprovedRecord 由批准的申请构造贷款记录
func (g *LoanRecordGenerator) buildApprovedRecord(customer CustomerSnapshot, app *Application, process *ApprovalProcess, params LoanParameters, risk *RiskAssessment) (*LoanRecord, error) {
	decision := process.Decision
	if decision == nil || decision.Decision != "approved" || decision.Conditions == nil {
		return nil, fmt.Errorf("build loan record for %s: %w", app.ApplicationID, ErrNotApproved)
	}
	cond := decision.Conditions

	disbursement := decision.Date.AddDate(0, 0, randIntRange(g.rng, 1, 3))
	repaymentDay := randIntRange(g.rng, 1, 28)

	// 首个还款日为放款次月的还款日
	firstOfMonth := time.Date(disbursement.Year(), disbursement.Month(), 1, 0, 0, 0, 0, disbursement.Location())
	firstPayment := AddMonths(firstOfMonth, 1).AddDate(0, 0, repaymentDay-1)

	loan := &LoanRecord{
		LoanID:           loanID(decision.Date, g.seq.Next()),
		ApplicationID:    app.ApplicationID,
		CustomerID:       customer.CustomerID,
		AccountID:        accountID(g.rng),
		LoanType:         params.LoanType,
		Amount:           cond.ApprovedAmount,
		InterestRate:     cond.InterestRate,
		APR:              cond.APR,
		TermMonths:       cond.ApprovedTermMonths,
		RepaymentMethod:  params.RepaymentMethod,
		DisbursementDate: disbursement,
		FirstPaymentDate: firstPayment,
		MaturityDate:     AddMonths(disbursement, cond.ApprovedTermMonths),
		RepaymentDay:     repaymentDay,
		RiskLevel:        risk.RiskLevel,
		IsVIP:            customer.IsVIP,
		Purpose:          app.Purpose,
		Fees:             params.Fees,
		CurrentStatus:    StatusDisbursed,
		Application:      app,
		Approval:         process,
	}
	return loan, nil
}

// mergeStatistics 根据还款记录回填汇总统计
func (g *LoanRecordGenerator) mergeStatistics(loan *LoanRecord) {
	var stats LoanStatistics
	for _, r := range loan.History {
		if r.Status == PaymentScheduled {
			continue
		}
		stats.PaidPrincipal += r.ActualPrincipal
		stats.PaidInterest += r.ActualInterest
		if r.IsOverdue {
			stats.OverduePayments++
			stats.OverdueFees += r.LateFee + r.PenaltyInterest
		}
	}
	stats.PaidPrincipal = round2(stats.PaidPrincipal)
	stats.PaidInterest = round2(stats.PaidInterest)
	stats.TotalPaid = round2(stats.PaidPrincipal + stats.PaidInterest)
	stats.OverdueFees = round2(stats.OverdueFees)
	stats.RemainingPrincipal = round2(maxFloat(0, loan.Amount-stats.PaidPrincipal))
	if loan.Amount > 0 {
		stats.CompletionPercentage = round2(stats.PaidPrincipal / loan.Amount * 100)
	}
	loan.Statistics = stats
}

// BatchResult 批量生成结果
type BatchResult struct {
	Loans     []*LoanRecord
	Succeeded int
	Failed    int
	Errors    []error
}

// GenerateLoansBatch 批量生成。单笔出错不中断整批，错误被收集返回。
func (g *LoanRecordGenerator) GenerateLoansBatch(customer CustomerSnapshot, count int, windowStart, windowEnd time.Time) *BatchResult {
	if windowEnd.IsZero() {
		windowEnd = time.Now()
	}
	if windowStart.IsZero() {
		windowStart = windowEnd.AddDate(0, 0, -365)
	}

	result := &BatchResult{Loans: make([]*LoanRecord, 0, count)}

	for i := 0; i < count; i++ {
		daysRange := int(windowEnd.Sub(windowStart).Hours()/24) - 30
		var start time.Time
		if daysRange <= 0 {
			start = windowEnd.AddDate(0, 0, -randIntRange(g.rng, 30, 365))
		} else {
			start = windowStart.AddDate(0, 0, g.rng.Intn(daysRange+1))
		}

		loan, err := g.GenerateLoan(customer, start, windowEnd, nil)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, err)
			continue
		}
		result.Succeeded++
		result.Loans = append(result.Loans, loan)
	}

	return result
}
