package domain

import (
	"fmt"
	"math/rand"
)

// 风险因子权重
const (
	weightCredit     = 0.35
	weightDTI        = 0.20
	weightLTI        = 0.15
	weightLateRatio  = 0.20
	weightEmployment = 0.10
)

// typeRiskFactors 贷款类型对违约概率的调整（抵押类贷款风险更低）
var typeRiskFactors = map[LoanType]float64{
	LoanTypeMortgage:      0.85,
	LoanTypeCar:           0.95,
	LoanTypePersonal:      1.10,
	LoanTypeEducation:     0.90,
	LoanTypeSmallBusiness: 1.15,
}

// typeMaxDTI 审批准入的债务收入比上限
var typeMaxDTI = map[LoanType]float64{
	LoanTypeMortgage:      0.55,
	LoanTypeCar:           0.50,
	LoanTypePersonal:      0.45,
	LoanTypeEducation:     0.50,
	LoanTypeSmallBusiness: 0.60,
}

// typeMinCreditScore 审批准入的最低信用评分
var typeMinCreditScore = map[LoanType]int{
	LoanTypeMortgage:      620,
	LoanTypeCar:           580,
	LoanTypePersonal:      550,
	LoanTypeEducation:     560,
	LoanTypeSmallBusiness: 600,
}

// levelMaxDP 各风险等级可接受的违约概率上限
var levelMaxDP = map[RiskLevel]float64{
	RiskLow:      0.10,
	RiskMedium:   0.25,
	RiskHigh:     0.45,
	RiskVeryHigh: 0.60,
}

// RiskFactor 单项风险因子分析结果
type RiskFactor struct {
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Score     float64 `json:"score"` // 0-1，越高风险越大
	Bucket    string  `json:"bucket"`
	Weight    float64 `json:"weight"`
	Rationale string  `json:"rationale"`
}

// EligibilityResult 审批准入判定结果
type EligibilityResult struct {
	Eligible           bool    `json:"eligible"`
	Reason             string  `json:"reason,omitempty"`
	RateAdjustment     float64 `json:"rate_adjustment"`
	AmountFactor       float64 `json:"amount_factor"`
	RequiresGuarantor  bool    `json:"requires_guarantor"`
	RequiresCollateral bool    `json:"requires_collateral"`
}

// RiskModel 贷款风险模型：违约概率、风险等级、因子分解与准入判定
type RiskModel struct {
	rng *rand.Rand
}

// NewRiskModel 创建风险模型
func NewRiskModel(rng *rand.Rand) *RiskModel {
	return &RiskModel{rng: rng}
}

// CalculateDefaultProbability 计算违约概率，结果限制在 [0.01, 0.95]
func (m *RiskModel) CalculateDefaultProbability(customer CustomerSnapshot, params LoanParameters) float64 {
	score := m.weightedRiskScore(customer, params)

	factor, ok := typeRiskFactors[params.LoanType]
	if !ok {
		factor = 1.0
	}
	dp := score * factor

	if customer.IsVIP {
		dp *= 0.85
	}

	// 对称扰动
	dp += uniform(m.rng, -0.02, 0.02)

	return clampFloat(dp, 0.01, 0.95)
}

// weightedRiskScore 五因子加权风险分（0-1）
func (m *RiskModel) weightedRiskScore(customer CustomerSnapshot, params LoanParameters) float64 {
	return creditRiskScore(customer.CreditScore)*weightCredit +
		dtiRiskScore(postLoanDTI(customer, params))*weightDTI +
		ltiRiskScore(loanToIncome(customer, params))*weightLTI +
		lateRatioRiskScore(customer.LateRatio())*weightLateRatio +
		employmentRiskScore(customer.EmploymentYears)*weightEmployment
}

// postLoanDTI 贷后债务收入比：现有负债加新贷款年供占年收入比例
func postLoanDTI(customer CustomerSnapshot, params LoanParameters) float64 {
	if customer.AnnualIncome <= 0 {
		return 1.0
	}
	termYears := float64(params.TermMonths) / 12
	if termYears <= 0 {
		termYears = 1
	}
	annualDebtService := params.Amount/termYears + params.Amount*params.InterestRate
	return (customer.ExistingDebt + annualDebtService) / customer.AnnualIncome
}

// loanToIncome 贷款收入比
func loanToIncome(customer CustomerSnapshot, params LoanParameters) float64 {
	if customer.AnnualIncome <= 0 {
		return 10
	}
	return params.Amount / customer.AnnualIncome
}

func creditRiskScore(creditScore int) float64 {
	return clampFloat(float64(850-creditScore)/500, 0, 1)
}

func dtiRiskScore(dti float64) float64 {
	switch {
	case dti >= 0.6:
		return 1.0
	case dti >= 0.5:
		return 0.8
	case dti >= 0.4:
		return 0.6
	case dti >= 0.3:
		return 0.4
	case dti >= 0.2:
		return 0.25
	default:
		return 0.1
	}
}

func ltiRiskScore(lti float64) float64 {
	switch {
	case lti >= 6:
		return 1.0
	case lti >= 4:
		return 0.7
	case lti >= 2:
		return 0.45
	case lti >= 1:
		return 0.3
	default:
		return 0.15
	}
}

func lateRatioRiskScore(ratio float64) float64 {
	return clampFloat(ratio*2, 0, 1)
}

func employmentRiskScore(years float64) float64 {
	switch {
	case years < 1:
		return 0.9
	case years < 3:
		return 0.6
	case years < 5:
		return 0.4
	case years < 10:
		return 0.25
	default:
		return 0.1
	}
}

// DetermineRiskLevel 违约概率分桶，阈值随类型和金额调整
func (m *RiskModel) DetermineRiskLevel(dp float64, params LoanParameters) RiskLevel {
	lowTh, mediumTh, highTh := 0.08, 0.18, 0.35

	// 抵押类贷款阈值放宽，小微企业收紧
	switch params.LoanType {
	case LoanTypeMortgage:
		lowTh, mediumTh, highTh = lowTh*1.1, mediumTh*1.1, highTh*1.1
	case LoanTypeSmallBusiness:
		lowTh, mediumTh, highTh = lowTh*0.9, mediumTh*0.9, highTh*0.9
	}
	// 大额贷款收紧
	if params.Amount > 500000 {
		lowTh, mediumTh, highTh = lowTh*0.9, mediumTh*0.9, highTh*0.9
	}

	switch {
	case dp < lowTh:
		return RiskLow
	case dp < mediumTh:
		return RiskMedium
	case dp < highTh:
		return RiskHigh
	default:
		return RiskVeryHigh
	}
}

// AnalyzeRiskFactors 逐项分解风险因子，供审批步骤与报告使用
func (m *RiskModel) AnalyzeRiskFactors(customer CustomerSnapshot, params LoanParameters) []RiskFactor {
	dti := postLoanDTI(customer, params)
	lti := loanToIncome(customer, params)
	lateRatio := customer.LateRatio()

	return []RiskFactor{
		{
			Name:      "credit_score",
			Value:     float64(customer.CreditScore),
			Score:     creditRiskScore(customer.CreditScore),
			Bucket:    bucketOf(creditRiskScore(customer.CreditScore)),
			Weight:    weightCredit,
			Rationale: fmt.Sprintf("信用评分 %d", customer.CreditScore),
		},
		{
			Name:      "debt_to_income",
			Value:     dti,
			Score:     dtiRiskScore(dti),
			Bucket:    bucketOf(dtiRiskScore(dti)),
			Weight:    weightDTI,
			Rationale: fmt.Sprintf("贷后债务收入比 %.2f", dti),
		},
		{
			Name:      "loan_to_income",
			Value:     lti,
			Score:     ltiRiskScore(lti),
			Bucket:    bucketOf(ltiRiskScore(lti)),
			Weight:    weightLTI,
			Rationale: fmt.Sprintf("贷款收入比 %.2f", lti),
		},
		{
			Name:      "payment_history",
			Value:     lateRatio,
			Score:     lateRatioRiskScore(lateRatio),
			Bucket:    bucketOf(lateRatioRiskScore(lateRatio)),
			Weight:    weightLateRatio,
			Rationale: fmt.Sprintf("历史逾期比例 %.1f%%", lateRatio*100),
		},
		{
			Name:      "employment_years",
			Value:     customer.EmploymentYears,
			Score:     employmentRiskScore(customer.EmploymentYears),
			Bucket:    bucketOf(employmentRiskScore(customer.EmploymentYears)),
			Weight:    weightEmployment,
			Rationale: fmt.Sprintf("工作年限 %.1f 年", customer.EmploymentYears),
		},
	}
}

func bucketOf(score float64) string {
	switch {
	case score < 0.3:
		return "low"
	case score < 0.6:
		return "medium"
	default:
		return "high"
	}
}

// IsEligibleForApproval 审批准入判定。按顺序检查违约概率上限、
// 债务收入比上限、最低信用评分，首个未通过项即为拒绝原因。
func (m *RiskModel) IsEligibleForApproval(customer CustomerSnapshot, params LoanParameters, dp float64, level RiskLevel) EligibilityResult {
	if maxDP, ok := levelMaxDP[level]; ok && dp > maxDP {
		return EligibilityResult{
			Eligible: false,
			Reason:   fmt.Sprintf("违约概率 %.1f%% 超出 %s 等级可接受上限", dp*100, level),
		}
	}

	dti := postLoanDTI(customer, params)
	maxDTI, ok := typeMaxDTI[params.LoanType]
	if !ok {
		maxDTI = 0.5
	}
	if dti > maxDTI {
		return EligibilityResult{
			Eligible: false,
			Reason:   fmt.Sprintf("债务收入比 %.2f 超出 %s 类型上限 %.2f", dti, params.LoanType, maxDTI),
		}
	}

	minScore, ok := typeMinCreditScore[params.LoanType]
	if !ok {
		minScore = 550
	}
	if customer.CreditScore < minScore {
		return EligibilityResult{
			Eligible: false,
			Reason:   fmt.Sprintf("信用评分 %d 低于 %s 类型准入下限 %d", customer.CreditScore, params.LoanType, minScore),
		}
	}

	result := EligibilityResult{Eligible: true, AmountFactor: 1.0}
	switch level {
	case RiskHigh:
		result.RateAdjustment = 0.01
		result.AmountFactor = 0.9
		result.RequiresGuarantor = true
		result.RequiresCollateral = params.Amount > 300000
	case RiskVeryHigh:
		result.RateAdjustment = 0.02
		result.AmountFactor = 0.7
		result.RequiresGuarantor = true
		result.RequiresCollateral = true
	}
	return result
}
