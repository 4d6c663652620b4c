package domain

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCustomer() CustomerSnapshot {
	return CustomerSnapshot{
		CustomerID:      "CUST-0001",
		CreditScore:     720,
		AnnualIncome:    150000,
		ExistingDebt:    20000,
		EmploymentYears: 6,
		Age:             35,
	}
}

func TestGenerateParametersHonorsPreferences(t *testing.T) {
	m := NewParameterModel(rand.New(rand.NewSource(1)), 0)

	params, err := m.GenerateParameters(testCustomer(), LoanTypePersonal, 123456, 24)
	require.NoError(t, err)

	assert.Equal(t, LoanTypePersonal, params.LoanType)
	assert.Equal(t, 24, params.TermMonths)
	// 意向金额按类型粒度取整
	assert.InDelta(t, 123500, params.Amount, 0.01)
	assert.InDelta(t, params.InterestRate+0.003, params.APR, 1e-9)
	assert.NotEmpty(t, params.RepaymentMethod)
}

func TestGenerateParametersRejectsTinyAmount(t *testing.T) {
	m := NewParameterModel(rand.New(rand.NewSource(1)), 0)

	// 不足半个取整粒度的意向金额取整后为 0
	_, err := m.GenerateParameters(testCustomer(), LoanTypePersonal, 20, 12)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestDetermineRateStaysWithinTypeBand(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	m := NewParameterModel(rng, 0)

	bands := map[LoanType][2]float64{
		LoanTypeMortgage:      {0.0425, 0.049},
		LoanTypeCar:           {0.050, 0.062},
		LoanTypePersonal:      {0.058, 0.075},
		LoanTypeEducation:     {0.045, 0.056},
		LoanTypeSmallBusiness: {0.054, 0.068},
	}

	for i := 0; i < 500; i++ {
		customer := CustomerSnapshot{
			CreditScore:  350 + rng.Intn(501),
			AnnualIncome: 50000 + rng.Float64()*400000,
		}
		for loanType, band := range bands {
			rate := m.DetermineRate(customer, loanType, 12+rng.Intn(349))
			assert.GreaterOrEqual(t, rate, band[0]-1e-9, "type %s", loanType)
			assert.LessOrEqual(t, rate, band[1]+1e-9, "type %s", loanType)
		}
	}
}

func TestDetermineRateShiftsWithBenchmark(t *testing.T) {
	// 基准上浮 50bp 时区间整体平移
	m := NewParameterModel(rand.New(rand.NewSource(7)), 0.0375)
	for i := 0; i < 200; i++ {
		rate := m.DetermineRate(testCustomer(), LoanTypeMortgage, 240)
		assert.GreaterOrEqual(t, rate, 0.0425+0.005-1e-9)
		assert.LessOrEqual(t, rate, 0.049+0.005+1e-9)
	}
}

func TestDetermineTermPicksFromTypeBuckets(t *testing.T) {
	m := NewParameterModel(rand.New(rand.NewSource(3)), 0)

	allowed := map[LoanType]map[int]bool{
		LoanTypeMortgage:      {180: true, 240: true, 300: true, 360: true},
		LoanTypeCar:           {36: true, 48: true, 60: true},
		LoanTypePersonal:      {12: true, 24: true, 36: true},
		LoanTypeEducation:     {24: true, 36: true, 48: true},
		LoanTypeSmallBusiness: {12: true, 24: true, 36: true, 48: true, 60: true},
	}

	for loanType, terms := range allowed {
		for i := 0; i < 100; i++ {
			assert.True(t, terms[m.DetermineTerm(loanType)], "type %s", loanType)
		}
	}
}

func TestDetermineAmountScalesWithIncome(t *testing.T) {
	m := NewParameterModel(rand.New(rand.NewSource(11)), 0)
	customer := testCustomer()

	// 住房贷款金额为年收入 4-6 倍，按百元取整
	for i := 0; i < 200; i++ {
		amount := m.DetermineAmount(customer, LoanTypeMortgage)
		assert.GreaterOrEqual(t, amount, customer.AnnualIncome*4-100)
		assert.LessOrEqual(t, amount, customer.AnnualIncome*6+100)
		assert.Zero(t, math.Mod(amount, 100))
	}

	// 小微企业贷按千元取整
	corp := customer
	corp.IsCorporate = true
	for i := 0; i < 200; i++ {
		amount := m.DetermineAmount(corp, LoanTypeSmallBusiness)
		assert.GreaterOrEqual(t, amount, corp.AnnualIncome*1-1000)
		assert.LessOrEqual(t, amount, corp.AnnualIncome*3+1000)
		assert.Zero(t, math.Mod(amount, 1000))
	}
}

func TestSelectRepaymentMethodMatchesTypeMenu(t *testing.T) {
	m := NewParameterModel(rand.New(rand.NewSource(5)), 0)

	for i := 0; i < 200; i++ {
		method := m.SelectRepaymentMethod(LoanTypeMortgage, 240)
		assert.Contains(t, []RepaymentMethod{MethodEqualInstallment, MethodEqualPrincipal}, method)
	}
	for i := 0; i < 200; i++ {
		method := m.SelectRepaymentMethod(LoanTypeSmallBusiness, 12)
		assert.Contains(t, []RepaymentMethod{MethodEqualInstallment, MethodInterestOnly, MethodBalloon}, method)
	}
}

func TestCalculateFees(t *testing.T) {
	m := NewParameterModel(rand.New(rand.NewSource(1)), 0)
	customer := testCustomer()

	fees := m.CalculateFees(customer, LoanTypePersonal, 100000, 36, 0.065)
	assert.InDelta(t, 100, fees.ApplicationFee, 0.01)
	// 36 期的期限因子 1.1
	assert.InDelta(t, 0.005*1.1, fees.ServiceFeeRate, 1e-9)
	assert.InDelta(t, 0.0005, fees.LateFeeDailyRate, 1e-9)
	assert.InDelta(t, 0.0001, fees.PenaltyDailyRate, 1e-9)
	// 利率超过 6% 时提前还款违约金上调
	assert.InDelta(t, 0.02, fees.EarlyRepaymentPenalty, 1e-9)

	lowRateFees := m.CalculateFees(customer, LoanTypeMortgage, 600000, 240, 0.045)
	assert.InDelta(t, 0.01, lowRateFees.EarlyRepaymentPenalty, 1e-9)

	// VIP 客户费用打 8 折
	vip := customer
	vip.IsVIP = true
	vipFees := m.CalculateFees(vip, LoanTypePersonal, 100000, 36, 0.065)
	assert.InDelta(t, fees.ApplicationFee*0.8, vipFees.ApplicationFee, 0.01)
	assert.InDelta(t, fees.InsuranceFee*0.8, vipFees.InsuranceFee, 0.01)
	assert.InDelta(t, fees.GuaranteeFee*0.8, vipFees.GuaranteeFee, 0.01)
}
