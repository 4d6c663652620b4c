package domain

import (
	"fmt"
	"math/rand"
	"time"
)

// 还款渠道
var paymentMethods = []string{"auto_deduction", "online_banking", "mobile_app", "counter", "third_party"}
var paymentMethodWeights = []float64{0.50, 0.20, 0.15, 0.05, 0.10}

// overdueBaseProbability 各风险等级单期逾期基础概率
var overdueBaseProbability = map[RiskLevel]float64{
	RiskLow:      0.03,
	RiskMedium:   0.08,
	RiskHigh:     0.15,
	RiskVeryHigh: 0.25,
}

// 上期还款状态对本期逾期概率的放大
const (
	prevStatusNormal          = 0
	prevStatusOverdue         = 1
	prevStatusSeverelyOverdue = 2
)

var prevStatusMultiplier = [3]float64{1.0, 3.0, 5.0}

// 逾期天数分段分布
type overdueBand struct {
	lo, hi int
	weight float64
}

var overdueBands = []overdueBand{
	{1, 7, 0.6},
	{8, 30, 0.3},
	{31, 90, 0.1},
}

// OverdueRiskIndicators 逾期风险指标
type OverdueRiskIndicators struct {
	OverdueRate float64 `json:"overdue_rate"`
	AverageDays float64 `json:"average_days"`
	RecentCount int     `json:"recent_overdue_count"`
	Severity    string  `json:"severity"` // none/low/medium/high/severe
	Trend       string  `json:"trend"`    // stable/worsening/improving
	RiskScore   float64 `json:"risk_score"`
	RiskLevel   string  `json:"risk_level"` // low/medium/high/critical
}

// CurrentOverdue 当前逾期情况
type CurrentOverdue struct {
	Period     int       `json:"period"`
	DueDate    time.Time `json:"due_date"`
	Days       int       `json:"days"`
	Amount     float64   `json:"amount"`
	LateFee    float64   `json:"late_fee"`
	PenaltyFee float64   `json:"penalty_interest"`
}

// OverdueReport 逾期报告（读侧）
type OverdueReport struct {
	ReportID        string                `json:"report_id"` // OVD-{loanid}-YYYYMMDD
	LoanID          string                `json:"loan_id"`
	GeneratedAt     time.Time             `json:"generated_at"`
	OverdueCount    int                   `json:"overdue_count"`
	MaxOverdueDays  int                   `json:"max_overdue_days"`
	TotalFees       float64               `json:"total_fees"`
	Current         *CurrentOverdue       `json:"current_overdue,omitempty"`
	Indicators      OverdueRiskIndicators `json:"risk_indicators"`
	Recommendations []string              `json:"recommendations,omitempty"`
}

// EarlySettlementAnalysis 提前结清测算
type EarlySettlementAnalysis struct {
	RemainingPrincipal float64 `json:"remaining_principal"`
	SettlementFee      float64 `json:"settlement_fee"`
	InterestSaved      float64 `json:"interest_saved"`
	IsBeneficial       bool    `json:"is_beneficial"`
}

// RepaymentSummary 还款摘要（读侧）
type RepaymentSummary struct {
	LoanID              string                   `json:"loan_id"`
	LoanStatus          string                   `json:"loan_status"` // active/overdue/defaulted/completed
	TotalPeriods        int                      `json:"total_periods"`
	CompletedPeriods    int                      `json:"completed_periods"`
	ProgressPercentage  float64                  `json:"progress_percentage"`
	PaidPrincipal       float64                  `json:"paid_principal"`
	PaidInterest        float64                  `json:"paid_interest"`
	PaidFees            float64                  `json:"paid_fees"`
	RemainingPrincipal  float64                  `json:"remaining_principal"`
	RemainingInterest   float64                  `json:"remaining_interest"`
	InterestToPrincipal float64                  `json:"interest_to_principal_ratio"`
	RecentPayments      []RepaymentRecord        `json:"recent_payments,omitempty"`
	NextDue             *SchedulePeriod          `json:"next_due,omitempty"`
	EarlySettlement     *EarlySettlementAnalysis `json:"early_settlement,omitempty"`
}

// RepaymentModel 还款模型：计划生成与还款行为模拟
type RepaymentModel struct {
	rng *rand.Rand
}

// NewRepaymentModel 创建还款模型
func NewRepaymentModel(rng *rand.Rand) *RepaymentModel {
	return &RepaymentModel{rng: rng}
}

// GenerateSchedule 按还款方式生成还款计划并编号
func (m *RepaymentModel) GenerateSchedule(loan *LoanRecord) ([]SchedulePeriod, error) {
	strategy := StrategyFor(loan.RepaymentMethod)
	schedule, err := strategy.Schedule(loan.Amount, loan.InterestRate, loan.TermMonths, loan.FirstPaymentDate)
	if err != nil {
		return nil, fmt.Errorf("generate schedule for %s: %w", loan.LoanID, err)
	}
	for i := range schedule {
		schedule[i].PaymentID = paymentID(loan.LoanID, schedule[i].Period)
	}
	return schedule, nil
}

// SimulateBehavior 模拟截止 asOf 的实际还款行为。
// 每期先掷提前结清，再掷逾期；全额提前结清后剩余期数不再出现在记录中。
// 部分提前还款只增加当期实还本金，计划不重算；提前还款的当期不会再逾期。
func (m *RepaymentModel) SimulateBehavior(loan *LoanRecord, schedule []SchedulePeriod, customer CustomerSnapshot, asOf time.Time) []RepaymentRecord {
	records := make([]RepaymentRecord, 0, len(schedule))
	prevStatus := prevStatusNormal

	for _, period := range schedule {
		if period.DueDate.After(asOf) {
			records = append(records, RepaymentRecord{
				SchedulePeriod: period,
				Status:         PaymentScheduled,
			})
			continue
		}

		// 全额提前结清
		if m.rng.Float64() < m.fullSettlementProbability(loan, period) {
			records = append(records, m.settleEarly(loan, period, customer))
			return records
		}

		record := RepaymentRecord{SchedulePeriod: period}

		// 部分提前还款
		if period.RemainingPrincipal > 0 && m.rng.Float64() < m.partialPrepayProbability(loan, period) {
			extra := roundTo(period.RemainingPrincipal*uniform(m.rng, 0.2, 0.5), 100)
			extra = clampFloat(extra, 100, period.RemainingPrincipal)
			record.IsEarlyRepayment = true
			record.EarlyRepaidAmount = extra
		}

		if !record.IsEarlyRepayment && m.rng.Float64() < m.overdueProbability(loan, customer, prevStatus, period.DueDate) {
			days := m.overdueDays(prevStatus)
			lateFee := round2(period.TotalPayment * loan.Fees.LateFeeDailyRate * float64(days))
			penalty := round2(period.Principal * loan.Fees.PenaltyDailyRate * float64(days))

			record.Status = PaymentPaidLate
			record.IsOverdue = true
			record.OverdueDays = days
			record.ActualDate = period.DueDate.AddDate(0, 0, days)
			record.ActualPrincipal = round2(period.Principal + record.EarlyRepaidAmount)
			record.ActualInterest = period.Interest
			record.LateFee = lateFee
			record.PenaltyInterest = penalty
			record.ActualTotal = round2(period.TotalPayment + record.EarlyRepaidAmount + lateFee + penalty)

			if days > 30 {
				prevStatus = prevStatusSeverelyOverdue
			} else {
				prevStatus = prevStatusOverdue
			}
		} else {
			record.Status = PaymentPaid
			record.ActualDate = period.DueDate.AddDate(0, 0, -m.rng.Intn(4))
			record.ActualPrincipal = round2(period.Principal + record.EarlyRepaidAmount)
			record.ActualInterest = period.Interest
			record.ActualTotal = round2(period.TotalPayment + record.EarlyRepaidAmount)
			prevStatus = prevStatusNormal
		}

		record.PaymentMethod = m.selectPaymentMethod(customer)
		records = append(records, record)
	}

	return records
}

// fullSettlementProbability 全额提前结清概率，基础约 3%
func (m *RepaymentModel) fullSettlementProbability(loan *LoanRecord, period SchedulePeriod) float64 {
	if loan.TermMonths <= 1 || period.Period == loan.TermMonths {
		return 0
	}
	p := 0.03
	progress := float64(period.Period) / float64(loan.TermMonths)
	switch {
	case progress < 0.2:
		p *= 0.3
	case progress > 0.5:
		p *= 1.3
	}
	switch loan.RiskLevel {
	case RiskLow:
		p *= 1.2
	case RiskHigh:
		p *= 0.7
	case RiskVeryHigh:
		p *= 0.4
	}
	if loan.IsVIP {
		p *= 1.2
	}
	return p
}

// partialPrepayProbability 部分提前还款概率，基础约 8%
func (m *RepaymentModel) partialPrepayProbability(loan *LoanRecord, period SchedulePeriod) float64 {
	if period.Period == loan.TermMonths {
		return 0
	}
	p := 0.08
	switch loan.RiskLevel {
	case RiskHigh:
		p *= 0.6
	case RiskVeryHigh:
		p *= 0.3
	}
	if loan.RepaymentMethod == MethodBalloon || loan.RepaymentMethod == MethodInterestOnly {
		p *= 0.5
	}
	if loan.IsVIP {
		p *= 1.2
	}
	return p
}

// settleEarly 生成全额提前结清记录
func (m *RepaymentModel) settleEarly(loan *LoanRecord, period SchedulePeriod, customer CustomerSnapshot) RepaymentRecord {
	// 结清额 = 当期本金 + 期末剩余本金
	principal := round2(period.Principal + period.RemainingPrincipal)
	fee := round2((period.Principal + period.RemainingPrincipal) * loan.Fees.EarlyRepaymentPenalty)

	return RepaymentRecord{
		SchedulePeriod:    period,
		Status:            PaymentPaid,
		ActualDate:        period.DueDate.AddDate(0, 0, -randIntRange(m.rng, 1, 10)),
		ActualPrincipal:   principal,
		ActualInterest:    period.Interest,
		ActualTotal:       round2(principal + period.Interest + fee),
		LateFee:           0,
		PenaltyInterest:   0,
		IsEarlyRepayment:  true,
		EarlySettlement:   true,
		EarlyRepaidAmount: round2(period.RemainingPrincipal),
		PaymentMethod:     m.selectPaymentMethod(customer),
	}
}

// overdueProbability 单期逾期概率
func (m *RepaymentModel) overdueProbability(loan *LoanRecord, customer CustomerSnapshot, prevStatus int, dueDate time.Time) float64 {
	p, ok := overdueBaseProbability[loan.RiskLevel]
	if !ok {
		p = 0.08
	}
	p *= prevStatusMultiplier[prevStatus]

	if customer.CreditScore >= 750 {
		p *= 0.5
	} else if customer.CreditScore < 600 {
		p *= 2.0
	}
	if loan.IsVIP {
		p *= 0.5
	}
	// 年末年初资金紧张
	if month := dueDate.Month(); month == time.January || month == time.December {
		p *= 1.2
	}

	return clampFloat(p, 0.01, 0.9)
}

// overdueDays 逾期天数：分段抽样后按上期状态放大，限制 [1, 180]
func (m *RepaymentModel) overdueDays(prevStatus int) int {
	bands := make([]int, len(overdueBands))
	weights := make([]float64, len(overdueBands))
	for i, b := range overdueBands {
		bands[i] = i
		weights[i] = b.weight
	}
	band := overdueBands[weightedChoice(m.rng, bands, weights)]
	days := float64(randIntRange(m.rng, band.lo, band.hi))

	switch prevStatus {
	case prevStatusOverdue:
		days *= 1.5
	case prevStatusSeverelyOverdue:
		days *= 2.0
	}

	return int(clampFloat(days, 1, 180))
}

// selectPaymentMethod 按年龄和 VIP 调整权重选择还款渠道
func (m *RepaymentModel) selectPaymentMethod(customer CustomerSnapshot) string {
	weights := make([]float64, len(paymentMethodWeights))
	copy(weights, paymentMethodWeights)

	if customer.Age < 30 {
		weights[2] *= 1.5 // mobile_app
		weights[3] *= 0.5 // counter
	} else if customer.Age > 55 {
		weights[3] *= 2.0
		weights[2] *= 0.5
	}
	if customer.IsVIP {
		weights[0] *= 1.2 // auto_deduction
	}

	return weightedChoice(m.rng, paymentMethods, weights)
}

// GenerateOverdueReport 生成逾期报告，含风险指标与处置建议
func (m *RepaymentModel) GenerateOverdueReport(loan *LoanRecord, history []RepaymentRecord, asOf time.Time) *OverdueReport {
	return buildOverdueReport(loan, history, asOf)
}

func buildOverdueReport(loan *LoanRecord, history []RepaymentRecord, asOf time.Time) *OverdueReport {
	report := &OverdueReport{
		ReportID:    overdueReportID(loan.LoanID, asOf),
		LoanID:      loan.LoanID,
		GeneratedAt: asOf,
	}

	completed := 0
	maxDays := 0
	totalDays := 0
	recent := 0
	var firstHalf, secondHalf int

	overdueIdx := make([]int, 0)
	for i, r := range history {
		if r.Status == PaymentScheduled {
			continue
		}
		completed++
		if r.IsOverdue {
			report.OverdueCount++
			report.TotalFees = round2(report.TotalFees + r.LateFee + r.PenaltyInterest)
			totalDays += r.OverdueDays
			if r.OverdueDays > maxDays {
				maxDays = r.OverdueDays
			}
			overdueIdx = append(overdueIdx, i)
		}
	}
	report.MaxOverdueDays = maxDays

	// 最近 3 期的逾期数与前后趋势
	start := len(history) - 3
	if start < 0 {
		start = 0
	}
	for _, r := range history[start:] {
		if r.IsOverdue {
			recent++
		}
	}
	mid := completed / 2
	seen := 0
	for _, r := range history {
		if r.Status == PaymentScheduled {
			continue
		}
		if r.IsOverdue {
			if seen < mid {
				firstHalf++
			} else {
				secondHalf++
			}
		}
		seen++
	}

	// 当前逾期：到期未还的计划期
	var current *CurrentOverdue
	for _, r := range history {
		if r.Status == PaymentScheduled && r.DueDate.Before(asOf) {
			days := int(asOf.Sub(r.DueDate).Hours() / 24)
			current = &CurrentOverdue{
				Period:     r.Period,
				DueDate:    r.DueDate,
				Days:       days,
				Amount:     r.TotalPayment,
				LateFee:    round2(r.TotalPayment * loan.Fees.LateFeeDailyRate * float64(days)),
				PenaltyFee: round2(r.Principal * loan.Fees.PenaltyDailyRate * float64(days)),
			}
			break
		}
	}
	report.Current = current

	rate := 0.0
	avgDays := 0.0
	if completed > 0 {
		rate = float64(report.OverdueCount) / float64(completed)
	}
	if report.OverdueCount > 0 {
		avgDays = float64(totalDays) / float64(report.OverdueCount)
	}

	severity := "none"
	switch {
	case maxDays > 90:
		severity = "severe"
	case maxDays > 30:
		severity = "high"
	case maxDays > 7:
		severity = "medium"
	case maxDays > 0:
		severity = "low"
	}

	trend := "stable"
	if secondHalf > firstHalf {
		trend = "worsening"
	} else if secondHalf < firstHalf {
		trend = "improving"
	}

	score := rate * 40
	score += minFloat(40, float64(maxDays)/3)
	score += float64(recent) * 10
	if current != nil {
		score += minFloat(10, float64(current.Days)/3)
	}

	level := "low"
	switch {
	case score >= 80:
		level = "critical"
	case score >= 60:
		level = "high"
	case score >= 30:
		level = "medium"
	}

	report.Indicators = OverdueRiskIndicators{
		OverdueRate: round2(rate),
		AverageDays: round2(avgDays),
		RecentCount: recent,
		Severity:    severity,
		Trend:       trend,
		RiskScore:   round2(score),
		RiskLevel:   level,
	}

	if current != nil {
		switch {
		case current.Days > 60:
			report.Recommendations = append(report.Recommendations, "逾期超过60天，移交专项催收并评估担保处置")
		case current.Days > 30:
			report.Recommendations = append(report.Recommendations, "逾期超过30天，安排人工电话催收")
		default:
			report.Recommendations = append(report.Recommendations, "发送还款提醒短信")
		}
	}
	if trend == "worsening" {
		report.Recommendations = append(report.Recommendations, "逾期呈恶化趋势，建议重新评估客户风险等级")
	}
	if report.OverdueCount >= 3 {
		report.Recommendations = append(report.Recommendations, "累计逾期3期以上，建议启动法务审查")
	}

	return report
}

// GenerateRepaymentSummary 生成还款摘要与提前结清测算
func (m *RepaymentModel) GenerateRepaymentSummary(loan *LoanRecord, history []RepaymentRecord, asOf time.Time) *RepaymentSummary {
	return buildRepaymentSummary(loan, history, asOf)
}

func buildRepaymentSummary(loan *LoanRecord, history []RepaymentRecord, asOf time.Time) *RepaymentSummary {
	summary := &RepaymentSummary{
		LoanID:       loan.LoanID,
		TotalPeriods: len(history),
	}

	var paidPrincipal, paidInterest, paidFees, remainingInterest float64
	var nextDue *SchedulePeriod
	currentOverdueDays := 0

	for i := range history {
		r := &history[i]
		switch r.Status {
		case PaymentScheduled:
			remainingInterest += r.Interest
			if r.DueDate.Before(asOf) {
				days := int(asOf.Sub(r.DueDate).Hours() / 24)
				if days > currentOverdueDays {
					currentOverdueDays = days
				}
			} else if nextDue == nil {
				nextDue = &r.SchedulePeriod
			}
		default:
			summary.CompletedPeriods++
			paidPrincipal += r.ActualPrincipal
			paidInterest += r.ActualInterest
			paidFees += r.LateFee + r.PenaltyInterest
			if r.EarlySettlement {
				paidFees += r.ActualTotal - r.ActualPrincipal - r.ActualInterest
			}
		}
	}

	summary.PaidPrincipal = round2(paidPrincipal)
	summary.PaidInterest = round2(paidInterest)
	summary.PaidFees = round2(paidFees)
	summary.RemainingPrincipal = round2(maxFloat(0, loan.Amount-paidPrincipal))
	summary.RemainingInterest = round2(remainingInterest)
	if summary.TotalPeriods > 0 {
		summary.ProgressPercentage = round2(float64(summary.CompletedPeriods) / float64(summary.TotalPeriods) * 100)
	}
	if paidPrincipal > 0 {
		summary.InterestToPrincipal = round2(paidInterest / paidPrincipal)
	}
	summary.NextDue = nextDue

	switch {
	case currentOverdueDays > 90:
		summary.LoanStatus = "defaulted"
	case currentOverdueDays > 0:
		summary.LoanStatus = "overdue"
	case summary.RemainingPrincipal <= loan.Amount*0.01:
		summary.LoanStatus = "completed"
	default:
		summary.LoanStatus = "active"
	}

	// 最近 3 期已还记录
	for i := len(history) - 1; i >= 0 && len(summary.RecentPayments) < 3; i-- {
		if history[i].Status != PaymentScheduled {
			summary.RecentPayments = append(summary.RecentPayments, history[i])
		}
	}

	if summary.RemainingPrincipal > 0 && summary.LoanStatus == "active" {
		fee := round2(summary.RemainingPrincipal * loan.Fees.EarlyRepaymentPenalty)
		summary.EarlySettlement = &EarlySettlementAnalysis{
			RemainingPrincipal: summary.RemainingPrincipal,
			SettlementFee:      fee,
			InterestSaved:      summary.RemainingInterest,
			IsBeneficial:       summary.RemainingInterest > fee,
		}
	}

	return summary
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
