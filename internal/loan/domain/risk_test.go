package domain

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func personalParams(amount float64, term int, rate float64) LoanParameters {
	return LoanParameters{
		LoanType:     LoanTypePersonal,
		Amount:       amount,
		TermMonths:   term,
		InterestRate: rate,
		APR:          rate + 0.003,
	}
}

func TestDefaultProbabilityBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	m := NewRiskModel(rng)

	for i := 0; i < 2000; i++ {
		customer := CustomerSnapshot{
			CreditScore:     350 + rng.Intn(501),
			AnnualIncome:    float64(rng.Intn(600000)),
			ExistingDebt:    float64(rng.Intn(300000)),
			EmploymentYears: rng.Float64() * 20,
			IsVIP:           rng.Float64() < 0.1,
		}
		params := personalParams(float64(1000+rng.Intn(900000)), 12+rng.Intn(48), 0.06)
		dp := m.CalculateDefaultProbability(customer, params)
		assert.GreaterOrEqual(t, dp, 0.01)
		assert.LessOrEqual(t, dp, 0.95)
	}
}

func TestDefaultProbabilityPrimeCustomerStaysLow(t *testing.T) {
	m := NewRiskModel(rand.New(rand.NewSource(9)))
	prime := CustomerSnapshot{
		CreditScore:     800,
		AnnualIncome:    200000,
		ExistingDebt:    0,
		EmploymentYears: 12,
	}
	params := personalParams(60000, 24, 0.055)

	for i := 0; i < 500; i++ {
		dp := m.CalculateDefaultProbability(prime, params)
		assert.LessOrEqual(t, dp, 0.15)
		level := m.DetermineRiskLevel(dp, params)
		assert.Contains(t, []RiskLevel{RiskLow, RiskMedium}, level)
	}
}

func TestDefaultProbabilityOrdering(t *testing.T) {
	m := NewRiskModel(rand.New(rand.NewSource(33)))
	params := personalParams(80000, 24, 0.065)

	prime := CustomerSnapshot{CreditScore: 810, AnnualIncome: 300000, EmploymentYears: 15}
	subprime := CustomerSnapshot{
		CreditScore:     420,
		AnnualIncome:    60000,
		ExistingDebt:    40000,
		EmploymentYears: 0.5,
		PaymentHistory:  []PaymentHistoryRecord{{Amount: 800, IsLate: true}, {Amount: 800, IsLate: true}, {Amount: 800}},
	}

	// 扰动幅度 ±0.02，取均值比较
	var primeSum, subprimeSum float64
	const n = 300
	for i := 0; i < n; i++ {
		primeSum += m.CalculateDefaultProbability(prime, params)
		subprimeSum += m.CalculateDefaultProbability(subprime, params)
	}
	assert.Greater(t, subprimeSum/n, primeSum/n+0.2)
}

func TestDetermineRiskLevelThresholds(t *testing.T) {
	m := NewRiskModel(rand.New(rand.NewSource(1)))
	params := personalParams(100000, 24, 0.06)

	assert.Equal(t, RiskLow, m.DetermineRiskLevel(0.05, params))
	assert.Equal(t, RiskMedium, m.DetermineRiskLevel(0.10, params))
	assert.Equal(t, RiskHigh, m.DetermineRiskLevel(0.20, params))
	assert.Equal(t, RiskVeryHigh, m.DetermineRiskLevel(0.40, params))

	// 住房贷款阈值放宽 10%
	mortgage := LoanParameters{LoanType: LoanTypeMortgage, Amount: 400000, TermMonths: 240, InterestRate: 0.045}
	assert.Equal(t, RiskLow, m.DetermineRiskLevel(0.085, mortgage))
	// 小微企业贷阈值收紧 10%
	sb := LoanParameters{LoanType: LoanTypeSmallBusiness, Amount: 200000, TermMonths: 36, InterestRate: 0.06}
	assert.Equal(t, RiskMedium, m.DetermineRiskLevel(0.075, sb))
	// 大额贷款同样收紧
	big := personalParams(600000, 36, 0.06)
	assert.Equal(t, RiskMedium, m.DetermineRiskLevel(0.075, big))
}

func TestAnalyzeRiskFactors(t *testing.T) {
	m := NewRiskModel(rand.New(rand.NewSource(1)))
	factors := m.AnalyzeRiskFactors(testCustomer(), personalParams(80000, 24, 0.06))

	require.Len(t, factors, 5)
	totalWeight := 0.0
	names := make([]string, 0, len(factors))
	for _, f := range factors {
		totalWeight += f.Weight
		names = append(names, f.Name)
		assert.GreaterOrEqual(t, f.Score, 0.0)
		assert.LessOrEqual(t, f.Score, 1.0)
		assert.NotEmpty(t, f.Bucket)
		assert.NotEmpty(t, f.Rationale)
	}
	assert.InDelta(t, 1.0, totalWeight, 1e-9)
	assert.ElementsMatch(t, []string{"credit_score", "debt_to_income", "loan_to_income", "payment_history", "employment_years"}, names)
}

func TestIsEligibleForApproval(t *testing.T) {
	m := NewRiskModel(rand.New(rand.NewSource(1)))

	t.Run("违约概率超出等级上限", func(t *testing.T) {
		customer := testCustomer()
		result := m.IsEligibleForApproval(customer, personalParams(50000, 24, 0.06), 0.30, RiskMedium)
		assert.False(t, result.Eligible)
		assert.NotEmpty(t, result.Reason)
	})

	t.Run("债务收入比超限", func(t *testing.T) {
		customer := CustomerSnapshot{CreditScore: 700, AnnualIncome: 100000, ExistingDebt: 50000}
		// 年供 30000 + 1800，贷后 DTI 约 0.82 远超个人贷 0.45 上限
		result := m.IsEligibleForApproval(customer, personalParams(30000, 12, 0.06), 0.20, RiskHigh)
		assert.False(t, result.Eligible)
		assert.Contains(t, result.Reason, "债务收入比")
	})

	t.Run("信用评分低于类型准入线", func(t *testing.T) {
		customer := CustomerSnapshot{CreditScore: 600, AnnualIncome: 200000}
		params := LoanParameters{LoanType: LoanTypeMortgage, Amount: 100000, TermMonths: 240, InterestRate: 0.045}
		result := m.IsEligibleForApproval(customer, params, 0.05, RiskLow)
		assert.False(t, result.Eligible)
		assert.Contains(t, result.Reason, "信用评分")
	})

	t.Run("低风险客户直接通过", func(t *testing.T) {
		result := m.IsEligibleForApproval(testCustomer(), personalParams(50000, 24, 0.06), 0.05, RiskLow)
		assert.True(t, result.Eligible)
		assert.Zero(t, result.RateAdjustment)
		assert.Equal(t, 1.0, result.AmountFactor)
		assert.False(t, result.RequiresGuarantor)
	})

	t.Run("极高风险附加担保与抵押", func(t *testing.T) {
		customer := CustomerSnapshot{CreditScore: 680, AnnualIncome: 300000, EmploymentYears: 5}
		result := m.IsEligibleForApproval(customer, personalParams(50000, 24, 0.07), 0.50, RiskVeryHigh)
		require.True(t, result.Eligible)
		assert.InDelta(t, 0.02, result.RateAdjustment, 1e-9)
		assert.InDelta(t, 0.7, result.AmountFactor, 1e-9)
		assert.True(t, result.RequiresGuarantor)
		assert.True(t, result.RequiresCollateral)
	})
}
