package domain

import (
	"math/rand"
	"time"
)

// 简化子模型：全量模型不可用或不需要细粒度行为时的缺省实现。
// 只保留基础分布，常量与全量模型的退化路径一致。

// SimpleParameterModel 简化参数模型：固定基准利率加信用调整
type SimpleParameterModel struct {
	rng *rand.Rand
}

// NewSimpleParameterModel 创建简化参数模型
func NewSimpleParameterModel(rng *rand.Rand) *SimpleParameterModel {
	return &SimpleParameterModel{rng: rng}
}

var simpleBaseRates = map[LoanType]float64{
	LoanTypeMortgage:      0.045,
	LoanTypeCar:           0.055,
	LoanTypePersonal:      0.065,
	LoanTypeEducation:     0.05,
	LoanTypeSmallBusiness: 0.06,
}

var simpleAmountMultipliers = map[LoanType][2]float64{
	LoanTypeMortgage:      {4, 6},
	LoanTypeCar:           {0.5, 1},
	LoanTypePersonal:      {0.3, 0.8},
	LoanTypeEducation:     {0.2, 0.6},
	LoanTypeSmallBusiness: {1, 3},
}

// GenerateParameters 实现 ParameterGenerator
func (m *SimpleParameterModel) GenerateParameters(customer CustomerSnapshot, loanType LoanType, preferredAmount float64, preferredTerm int) (LoanParameters, error) {
	amount := preferredAmount
	if amount <= 0 {
		income := customer.AnnualIncome
		if income <= 0 {
			income = 60000
		}
		mult, ok := simpleAmountMultipliers[loanType]
		if !ok {
			mult = [2]float64{0.5, 1}
		}
		amount = roundTo(income*uniform(m.rng, mult[0], mult[1]), 100)
	}
	if amount <= 0 {
		return LoanParameters{}, ErrInvalidAmount
	}

	term := preferredTerm
	if term <= 0 {
		opt, ok := typeTermOptions[loanType]
		if !ok {
			opt = typeTermOptions[LoanTypePersonal]
		}
		term = opt.months[m.rng.Intn(len(opt.months))]
	}

	rate, ok := simpleBaseRates[loanType]
	if !ok {
		rate = 0.06
	}
	switch {
	case customer.CreditScore >= 800:
		rate -= 0.01
	case customer.CreditScore >= 700:
		rate -= 0.005
	case customer.CreditScore <= 500:
		rate += 0.02
	case customer.CreditScore <= 600:
		rate += 0.01
	}
	if rate < 0.01 {
		rate = 0.01
	}

	method := MethodEqualInstallment
	switch {
	case loanType == LoanTypeMortgage:
		if m.rng.Float64() < 0.4 {
			method = MethodEqualPrincipal
		}
	case loanType == LoanTypePersonal && term <= 12:
		if m.rng.Float64() < 0.3 {
			method = MethodBalloon
		}
	}

	return LoanParameters{
		LoanType:        loanType,
		Amount:          amount,
		TermMonths:      term,
		InterestRate:    rate,
		APR:             rate + 0.003,
		RepaymentMethod: method,
		Fees: FeeStructure{
			EarlyRepaymentPenalty: 0.01,
			LateFeeDailyRate:      0.0005,
			PenaltyDailyRate:      0.0001,
		},
	}, nil
}

// SimpleRiskModel 简化风险模型：信用评分分档
type SimpleRiskModel struct{}

// CalculateDefaultProbability 实现 RiskScorer
func (SimpleRiskModel) CalculateDefaultProbability(customer CustomerSnapshot, _ LoanParameters) float64 {
	switch {
	case customer.CreditScore >= 750:
		return 0.05
	case customer.CreditScore >= 650:
		return 0.1
	case customer.CreditScore >= 550:
		return 0.2
	default:
		return 0.3
	}
}

// DetermineRiskLevel 实现 RiskScorer
func (SimpleRiskModel) DetermineRiskLevel(dp float64, _ LoanParameters) RiskLevel {
	switch {
	case dp <= 0.05:
		return RiskLow
	case dp <= 0.1:
		return RiskMedium
	case dp <= 0.2:
		return RiskHigh
	default:
		return RiskVeryHigh
	}
}

// AnalyzeRiskFactors 实现 RiskScorer：只分解信用评分单因子
func (m SimpleRiskModel) AnalyzeRiskFactors(customer CustomerSnapshot, _ LoanParameters) []RiskFactor {
	score := creditRiskScore(customer.CreditScore)
	return []RiskFactor{{
		Name:      "credit_score",
		Value:     float64(customer.CreditScore),
		Score:     score,
		Bucket:    bucketOf(score),
		Weight:    1,
		Rationale: "简化模型仅采用信用评分",
	}}
}

// IsEligibleForApproval 实现 RiskScorer：信用评分单阈值准入
func (SimpleRiskModel) IsEligibleForApproval(customer CustomerSnapshot, _ LoanParameters, _ float64, level RiskLevel) EligibilityResult {
	if customer.CreditScore < 550 {
		return EligibilityResult{Eligible: false, Reason: "信用评分低于准入下限"}
	}
	return EligibilityResult{
		Eligible:          true,
		AmountFactor:      1,
		RequiresGuarantor: level == RiskVeryHigh,
	}
}

// SimpleApplicationModel 简化申请模型：直达待决定，无补件回路
type SimpleApplicationModel struct {
	rng *rand.Rand
	seq *idSequence
}

// NewSimpleApplicationModel 创建简化申请模型
func NewSimpleApplicationModel(rng *rand.Rand) *SimpleApplicationModel {
	return &SimpleApplicationModel{rng: rng, seq: newIDSequence(rng)}
}

// GenerateApplication 实现 ApplicationGenerator
func (m *SimpleApplicationModel) GenerateApplication(customer CustomerSnapshot, params LoanParameters, submitDate time.Time) *Application {
	docs := append(append([]string{}, baseDocuments...), typeExtraDocuments[params.LoanType]...)
	docStatus := make(map[string]DocumentStatus, len(docs))
	for _, doc := range docs {
		docStatus[doc] = DocSubmitted
	}

	spec, ok := typeProcessingDays[params.LoanType]
	if !ok {
		spec = defaultProcessingDays
	}
	days := randIntRange(m.rng, spec.lo, spec.hi)
	if customer.IsVIP {
		days = int(float64(days) * 0.7)
		if days < 1 {
			days = 1
		}
	}

	return &Application{
		ApplicationID:        applicationID(submitDate, m.seq.Next()),
		CustomerID:           customer.CustomerID,
		LoanType:             params.LoanType,
		Amount:               params.Amount,
		TermMonths:           params.TermMonths,
		Channel:              ChannelMobileApp,
		SubmitDate:           submitDate,
		Status:               AppStatusSubmitted,
		StatusDate:           submitDate,
		Documents:            docs,
		DocumentStatus:       docStatus,
		ExpectedDays:         days,
		ExpectedDecisionDate: submitDate.AddDate(0, 0, days),
		IsFirstApplication:   true,
		IsVIP:                customer.IsVIP,
	}
}

// SimulateProcessing 实现 ApplicationGenerator
func (m *SimpleApplicationModel) SimulateProcessing(app *Application, risk *RiskAssessment) time.Time {
	app.InitialRisk = risk
	decisionDate := app.SubmitDate.AddDate(0, 0, app.ExpectedDays)
	app.Status = AppStatusPendingDecision
	app.StatusDate = decisionDate
	return decisionDate
}

// ApprovalProbability 实现 ApplicationGenerator：风险档基准加 VIP 与大额修正
func (m *SimpleApplicationModel) ApprovalProbability(app *Application, level RiskLevel) float64 {
	p, ok := approvalProbabilityBase[level]
	if !ok {
		p = 0.7
	}
	if app.Amount > 1000000 {
		p *= 0.9
	}
	if app.IsVIP {
		p *= 1.2
	}
	return clampFloat(p, 0.05, 0.98)
}

// MarkDecision 实现 ApplicationGenerator
func (m *SimpleApplicationModel) MarkDecision(app *Application, decision *ApprovalDecision) {
	switch decision.Decision {
	case "approved":
		app.Status = AppStatusApproved
	case "rejected":
		app.Status = AppStatusRejected
	}
	app.StatusDate = decision.Date
}

// SimpleApprovalModel 简化审批模型：单步决策，无流程步骤
type SimpleApprovalModel struct {
	rng *rand.Rand
}

// NewSimpleApprovalModel 创建简化审批模型
func NewSimpleApprovalModel(rng *rand.Rand) *SimpleApprovalModel {
	return &SimpleApprovalModel{rng: rng}
}

// GenerateCompleteApproval 实现 ApprovalGenerator。approvalP<=0 时按风险档基准兜底。
func (m *SimpleApprovalModel) GenerateCompleteApproval(app *Application, customer CustomerSnapshot, params LoanParameters, risk *RiskAssessment, approvalP float64, startDate time.Time) *ApprovalProcess {
	level := riskLevelOf(risk)
	p := approvalP
	if p <= 0 {
		base, ok := approvalProbabilityBase[level]
		if !ok {
			base = 0.7
		}
		p = base
		if customer.IsVIP {
			p = minFloat(0.98, p*1.2)
		}
	}

	decisionDate := startDate.AddDate(0, 0, 1)
	process := &ApprovalProcess{
		FlowID:        flowID(startDate, m.rng),
		ApplicationID: app.ApplicationID,
		FlowType:      FlowStandard,
		StartDate:     startDate,
		EndDate:       decisionDate,
		DurationDays:  1,
	}

	decision := &ApprovalDecision{
		DecisionID: decisionID(decisionDate, m.rng),
		Date:       decisionDate,
		RiskLevel:  level,
	}

	eligible := risk == nil || risk.Eligibility == nil || risk.Eligibility.Eligible
	if eligible && m.rng.Float64() < p {
		amount := params.Amount
		rate := params.InterestRate
		switch level {
		case RiskHigh:
			if m.rng.Float64() < 0.5 {
				amount = roundTo(amount*uniform(m.rng, 0.7, 0.9), 100)
			}
			rate += 0.01
		case RiskVeryHigh:
			amount = roundTo(amount*uniform(m.rng, 0.5, 0.8), 100)
			rate += 0.02
		}
		decision.Decision = "approved"
		decision.Conditions = &ApprovalConditions{
			ApprovedAmount:     amount,
			ApprovedTermMonths: params.TermMonths,
			InterestRate:       rate,
			APR:                rate + 0.003,
			RequiresGuarantor:  level == RiskHigh || level == RiskVeryHigh,
			RequiresCollateral: level == RiskVeryHigh || (level == RiskHigh && params.Amount > 300000),
			ValidityDays:       30,
			ExpirationDate:     decisionDate.AddDate(0, 0, 30),
		}
	} else {
		decision.Decision = "rejected"
		var reason string
		if !eligible && risk.Eligibility.Reason != "" {
			reason = risk.Eligibility.Reason
		} else {
			pool := rejectionReasonsByRisk[level]
			if len(pool) == 0 {
				pool = genericRejectionReasons
			}
			reason = pool[m.rng.Intn(len(pool))]
		}
		decision.Rejection = &Rejection{
			RejectionCode:       rejectionCode(m.rng),
			Reasons:             []string{reason},
			Details:             "经审核，您的" + reason + "，不符合我行贷款条件。",
			CanReapply:          true,
			EarliestReapplyDate: decisionDate.AddDate(0, 0, randIntRange(m.rng, 30, 90)),
		}
	}

	process.Decision = decision
	process.FinalStatus = decision.Decision
	return process
}

// SimpleRepaymentModel 简化还款模型：等额本息计划与单因子逾期模拟
type SimpleRepaymentModel struct {
	rng *rand.Rand
}

// NewSimpleRepaymentModel 创建简化还款模型
func NewSimpleRepaymentModel(rng *rand.Rand) *SimpleRepaymentModel {
	return &SimpleRepaymentModel{rng: rng}
}

// GenerateSchedule 实现 RepaymentSimulator
func (m *SimpleRepaymentModel) GenerateSchedule(loan *LoanRecord) ([]SchedulePeriod, error) {
	schedule, err := equalInstallmentStrategy{}.Schedule(loan.Amount, loan.InterestRate, loan.TermMonths, loan.FirstPaymentDate)
	if err != nil {
		return nil, err
	}
	for i := range schedule {
		schedule[i].PaymentID = paymentID(loan.LoanID, schedule[i].Period)
	}
	return schedule, nil
}

// SimulateBehavior 实现 RepaymentSimulator
func (m *SimpleRepaymentModel) SimulateBehavior(loan *LoanRecord, schedule []SchedulePeriod, customer CustomerSnapshot, asOf time.Time) []RepaymentRecord {
	records := make([]RepaymentRecord, 0, len(schedule))

	p, ok := overdueBaseProbability[loan.RiskLevel]
	if !ok {
		p = 0.08
	}
	if customer.CreditScore >= 750 {
		p *= 0.5
	} else if customer.CreditScore <= 600 {
		p *= 2
	}
	if loan.IsVIP {
		p *= 0.5
	}

	for _, period := range schedule {
		record := RepaymentRecord{SchedulePeriod: period, Status: PaymentScheduled}
		if period.DueDate.After(asOf) {
			records = append(records, record)
			continue
		}

		if m.rng.Float64() < p {
			days := randIntRange(m.rng, 1, 30)
			record.Status = PaymentPaidLate
			record.IsOverdue = true
			record.OverdueDays = days
			record.ActualDate = period.DueDate.AddDate(0, 0, days)
			record.LateFee = round2(period.TotalPayment * 0.0005 * float64(days))
			record.PenaltyInterest = round2(period.Principal * 0.0001 * float64(days))
			record.ActualTotal = round2(period.TotalPayment + record.LateFee + record.PenaltyInterest)
		} else {
			record.Status = PaymentPaid
			record.ActualDate = period.DueDate.AddDate(0, 0, -m.rng.Intn(4))
			record.ActualTotal = period.TotalPayment
		}
		record.ActualPrincipal = period.Principal
		record.ActualInterest = period.Interest
		records = append(records, record)
	}

	return records
}

// GenerateOverdueReport 实现 RepaymentSimulator
func (m *SimpleRepaymentModel) GenerateOverdueReport(loan *LoanRecord, history []RepaymentRecord, asOf time.Time) *OverdueReport {
	return buildOverdueReport(loan, history, asOf)
}

// GenerateRepaymentSummary 实现 RepaymentSimulator
func (m *SimpleRepaymentModel) GenerateRepaymentSummary(loan *LoanRecord, history []RepaymentRecord, asOf time.Time) *RepaymentSummary {
	return buildRepaymentSummary(loan, history, asOf)
}

// SimpleStatusModel 简化状态模型：放款后即进入还款期直至期满
type SimpleStatusModel struct{}

// InitialStatus 实现 TimelineGenerator：历史回填一律从放款起算
func (SimpleStatusModel) InitialStatus(_ LoanType, _ int, historical bool) LoanStatus {
	if historical {
		return StatusDisbursed
	}
	return StatusApplying
}

// GenerateTimeline 实现 TimelineGenerator
func (SimpleStatusModel) GenerateTimeline(initial LoanStatus, startDate time.Time, loan *LoanRecord, _ CustomerSnapshot, _ bool) []StatusEntry {
	repayingStart := startDate.AddDate(0, 0, 1)
	repayingDays := loan.TermMonths * 30
	return []StatusEntry{
		{Status: initial, StartDate: startDate, EndDate: repayingStart, DurationDays: 1},
		{Status: StatusRepaying, StartDate: repayingStart, EndDate: repayingStart.AddDate(0, 0, repayingDays), DurationDays: repayingDays},
	}
}

// GenerateStatusEvents 实现 TimelineGenerator
func (SimpleStatusModel) GenerateStatusEvents(timeline []StatusEntry, loan *LoanRecord) []StatusEvent {
	if len(timeline) == 0 {
		return nil
	}
	return []StatusEvent{{
		EventType: "loan_disbursed",
		EventDate: timeline[0].StartDate,
		Actor:     "system",
		Detail:    map[string]any{"amount": loan.Amount},
	}}
}

// GetStatusSummary 实现 TimelineGenerator
func (SimpleStatusModel) GetStatusSummary(loan *LoanRecord, timeline []StatusEntry, asOf time.Time) *StatusSummary {
	return buildStatusSummary(loan, timeline, asOf)
}
