package domain

import (
	"math/rand"
)

// benchmarkRate 默认基准年利率，配置覆盖时各类型利率区间整体平移
const benchmarkRate = 0.0325

// rateBand 贷款类型利率区间（相对默认基准）
type rateBand struct {
	base float64
	min  float64
	max  float64
}

var typeRateBands = map[LoanType]rateBand{
	LoanTypeMortgage:      {base: 0.045, min: 0.0425, max: 0.049},
	LoanTypeCar:           {base: 0.055, min: 0.050, max: 0.062},
	LoanTypePersonal:      {base: 0.065, min: 0.058, max: 0.075},
	LoanTypeEducation:     {base: 0.050, min: 0.045, max: 0.056},
	LoanTypeSmallBusiness: {base: 0.060, min: 0.054, max: 0.068},
}

// termOption 期限选项及权重
type termOption struct {
	months []int
	weight []float64
}

var typeTermOptions = map[LoanType]termOption{
	// 住房贷款不出现短期限
	LoanTypeMortgage:      {months: []int{180, 240, 300, 360}, weight: []float64{0.20, 0.30, 0.20, 0.30}},
	LoanTypeCar:           {months: []int{36, 48, 60}, weight: []float64{0.40, 0.35, 0.25}},
	LoanTypePersonal:      {months: []int{12, 24, 36}, weight: []float64{0.35, 0.35, 0.30}},
	LoanTypeEducation:     {months: []int{24, 36, 48}, weight: []float64{0.30, 0.40, 0.30}},
	LoanTypeSmallBusiness: {months: []int{12, 24, 36, 48, 60}, weight: []float64{0.20, 0.25, 0.25, 0.15, 0.15}},
}

// amountRange 金额为年收入的倍数区间
type amountRange struct {
	lo, hi      float64
	granularity float64
}

var typeAmountRanges = map[LoanType]amountRange{
	LoanTypeMortgage:      {lo: 4.0, hi: 6.0, granularity: 100},
	LoanTypeCar:           {lo: 0.5, hi: 1.0, granularity: 100},
	LoanTypePersonal:      {lo: 0.3, hi: 0.8, granularity: 100},
	LoanTypeEducation:     {lo: 0.2, hi: 0.6, granularity: 100},
	LoanTypeSmallBusiness: {lo: 1.0, hi: 3.0, granularity: 1000},
}

// feeProfile 贷款类型费率画像
type feeProfile struct {
	applicationFee float64
	serviceRate    float64
	insuranceRate  float64
	guaranteeRate  float64
}

var typeFeeProfiles = map[LoanType]feeProfile{
	LoanTypeMortgage:      {applicationFee: 500, serviceRate: 0.003, insuranceRate: 0.002, guaranteeRate: 0.001},
	LoanTypeCar:           {applicationFee: 300, serviceRate: 0.004, insuranceRate: 0.003, guaranteeRate: 0.001},
	LoanTypePersonal:      {applicationFee: 100, serviceRate: 0.005, insuranceRate: 0.001, guaranteeRate: 0.002},
	LoanTypeEducation:     {applicationFee: 100, serviceRate: 0.002, insuranceRate: 0.001, guaranteeRate: 0.001},
	LoanTypeSmallBusiness: {applicationFee: 800, serviceRate: 0.006, insuranceRate: 0.002, guaranteeRate: 0.003},
}

// ParameterModel 贷款参数模型：利率、期限、金额、还款方式与费用的统一来源。
// 随机性全部来自注入的 rng。
type ParameterModel struct {
	rng       *rand.Rand
	benchmark float64
}

// NewParameterModel 创建参数模型。benchmark 为基准年利率，<=0 时使用默认值。
func NewParameterModel(rng *rand.Rand, benchmark float64) *ParameterModel {
	if benchmark <= 0 {
		benchmark = benchmarkRate
	}
	return &ParameterModel{rng: rng, benchmark: benchmark}
}

// GenerateParameters 为指定客户和贷款类型生成完整贷款参数。
// preferredAmount/preferredTerm 为客户意向，>0 时直接采用（金额仍按粒度取整）。
func (m *ParameterModel) GenerateParameters(customer CustomerSnapshot, loanType LoanType, preferredAmount float64, preferredTerm int) (LoanParameters, error) {
	term := preferredTerm
	if term <= 0 {
		term = m.DetermineTerm(loanType)
	}

	amount := preferredAmount
	if amount <= 0 {
		amount = m.DetermineAmount(customer, loanType)
	} else {
		gran := typeAmountRanges[loanType].granularity
		if gran <= 0 {
			gran = 100
		}
		amount = roundTo(amount, gran)
	}
	if amount <= 0 {
		return LoanParameters{}, ErrInvalidAmount
	}
	if term <= 0 {
		return LoanParameters{}, ErrInvalidTerm
	}

	rate := m.DetermineRate(customer, loanType, term)
	method := m.SelectRepaymentMethod(loanType, term)
	fees := m.CalculateFees(customer, loanType, amount, term, rate)

	return LoanParameters{
		LoanType:        loanType,
		Amount:          amount,
		TermMonths:      term,
		InterestRate:    rate,
		APR:             rate + 0.003,
		RepaymentMethod: method,
		Fees:            fees,
	}, nil
}

// DetermineRate 确定年利率：类型基准 + 信用调整 + 期限调整 + 扰动，限制在类型区间内
func (m *ParameterModel) DetermineRate(customer CustomerSnapshot, loanType LoanType, termMonths int) float64 {
	band, ok := typeRateBands[loanType]
	if !ok {
		band = typeRateBands[LoanTypePersonal]
	}
	// 配置基准偏移时区间整体平移
	shift := m.benchmark - benchmarkRate
	rate := band.base + shift

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

	if termMonths <= 12 {
		rate -= 0.002
	} else if termMonths > 60 {
		rate += 0.003
	}

	rate += uniform(m.rng, -0.002, 0.002)
	rate = clampFloat(rate, band.min+shift, band.max+shift)
	if rate < 0.01 {
		rate = 0.01
	}
	return rate
}

// DetermineTerm 按类型期限桶加权抽取期限
func (m *ParameterModel) DetermineTerm(loanType LoanType) int {
	opt, ok := typeTermOptions[loanType]
	if !ok {
		opt = typeTermOptions[LoanTypePersonal]
	}
	return weightedChoice(m.rng, opt.months, opt.weight)
}

// DetermineAmount 基于年收入和信用评分确定贷款金额，按类型粒度取整
func (m *ParameterModel) DetermineAmount(customer CustomerSnapshot, loanType LoanType) float64 {
	rng, ok := typeAmountRanges[loanType]
	if !ok {
		rng = typeAmountRanges[LoanTypePersonal]
	}

	income := customer.AnnualIncome
	if income <= 0 {
		income = 60000
	}

	lo := income * rng.lo
	hi := income * rng.hi

	// 信用越好，均值越靠近区间上沿
	var position float64
	switch {
	case customer.CreditScore >= 750:
		position = 0.7
	case customer.CreditScore >= 650:
		position = 0.5
	case customer.CreditScore >= 550:
		position = 0.4
	default:
		position = 0.3
	}
	mean := lo + (hi-lo)*position

	amount := boundedNormal(m.rng, lo, hi, mean)
	return roundTo(amount, rng.granularity)
}

// methodWeights 还款方式权重，按类型和期限选择
func methodWeights(loanType LoanType, termMonths int) ([]RepaymentMethod, []float64) {
	switch loanType {
	case LoanTypeMortgage:
		return []RepaymentMethod{MethodEqualInstallment, MethodEqualPrincipal}, []float64{0.60, 0.40}
	case LoanTypeCar:
		return []RepaymentMethod{MethodEqualInstallment, MethodEqualPrincipal}, []float64{0.85, 0.15}
	case LoanTypeEducation:
		return []RepaymentMethod{MethodEqualInstallment, MethodInterestOnly}, []float64{0.90, 0.10}
	case LoanTypeSmallBusiness:
		if termMonths <= 24 {
			return []RepaymentMethod{MethodEqualInstallment, MethodInterestOnly, MethodBalloon}, []float64{0.50, 0.30, 0.20}
		}
		return []RepaymentMethod{MethodEqualInstallment, MethodEqualPrincipal, MethodInterestOnly}, []float64{0.70, 0.15, 0.15}
	default:
		if termMonths <= 12 {
			return []RepaymentMethod{MethodEqualInstallment, MethodBalloon}, []float64{0.70, 0.30}
		}
		return []RepaymentMethod{MethodEqualInstallment, MethodEqualPrincipal}, []float64{0.90, 0.10}
	}
}

// SelectRepaymentMethod 按类型和期限加权选择还款方式
func (m *ParameterModel) SelectRepaymentMethod(loanType LoanType, termMonths int) RepaymentMethod {
	methods, weights := methodWeights(loanType, termMonths)
	return weightedChoice(m.rng, methods, weights)
}

// CalculateFees 计算费用结构：类型基础费率 × 期限因子，VIP 享受折扣
func (m *ParameterModel) CalculateFees(customer CustomerSnapshot, loanType LoanType, amount float64, termMonths int, rate float64) FeeStructure {
	profile, ok := typeFeeProfiles[loanType]
	if !ok {
		profile = typeFeeProfiles[LoanTypePersonal]
	}

	// 期限越长服务与保险费越高
	termFactor := 1.0
	switch {
	case termMonths > 120:
		termFactor = 1.5
	case termMonths > 60:
		termFactor = 1.3
	case termMonths > 24:
		termFactor = 1.1
	}

	discount := 1.0
	if customer.IsVIP {
		discount = 0.8
	}

	earlyPenalty := 0.01
	if rate > 0.06 {
		earlyPenalty = 0.02
	}

	return FeeStructure{
		ApplicationFee:        round2(profile.applicationFee * discount),
		ServiceFeeRate:        profile.serviceRate * termFactor * discount,
		InsuranceFee:          round2(amount * profile.insuranceRate * termFactor * discount),
		GuaranteeFee:          round2(amount * profile.guaranteeRate * discount),
		EarlyRepaymentPenalty: earlyPenalty,
		LateFeeDailyRate:      0.0005,
		PenaltyDailyRate:      0.0001,
	}
}
