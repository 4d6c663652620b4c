package domain

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSimpleGenerator(seed int64) *LoanRecordGenerator {
	rng := rand.New(rand.NewSource(seed))
	return NewLoanRecordGenerator(rng,
		WithParameterModel(NewSimpleParameterModel(rng)),
		WithApplicationModel(NewSimpleApplicationModel(rng)),
		WithRiskModel(SimpleRiskModel{}),
		WithApprovalModel(NewSimpleApprovalModel(rng)),
		WithRepaymentModel(NewSimpleRepaymentModel(rng)),
		WithStatusModel(SimpleStatusModel{}),
	)
}

func TestSimpleStackGeneratesCompleteRecords(t *testing.T) {
	g := newSimpleGenerator(19)
	customer := testCustomer()

	approved := 0
	for i := 0; i < 40; i++ {
		loan, err := g.GenerateLoan(customer, windowStart, windowEnd, nil)
		require.NoError(t, err)

		assert.Regexp(t, loanIDPattern, loan.LoanID)
		require.NotEmpty(t, loan.Timeline)
		if loan.IsRejected() {
			continue
		}
		approved++

		// 简化状态模型历史回填固定从放款起步
		assert.Equal(t, StatusDisbursed, loan.Timeline[0].Status)
		assert.Len(t, loan.Schedule, loan.TermMonths)
		require.NotNil(t, loan.OverdueReport)
		require.NotNil(t, loan.RepaymentSummary)
		require.NotNil(t, loan.StatusSummary)
		assert.Equal(t, loan.LoanID, loan.StatusSummary.LoanID)
	}
	require.Greater(t, approved, 0)
}

func TestSimpleRiskModelEligibility(t *testing.T) {
	m := SimpleRiskModel{}
	params := personalParams(50000, 24, 0.06)

	good := testCustomer()
	result := m.IsEligibleForApproval(good, params, 0.1, RiskMedium)
	assert.True(t, result.Eligible)

	bad := testCustomer()
	bad.CreditScore = 520
	result = m.IsEligibleForApproval(bad, params, 0.3, RiskVeryHigh)
	assert.False(t, result.Eligible)
	assert.NotEmpty(t, result.Reason)

	factors := m.AnalyzeRiskFactors(good, params)
	require.Len(t, factors, 1)
	assert.Equal(t, "credit_score", factors[0].Name)
}

func TestSimpleApplicationModelApprovalProbability(t *testing.T) {
	m := NewSimpleApplicationModel(rand.New(rand.NewSource(2)))
	app := &Application{Amount: 80000}

	pLow := m.ApprovalProbability(app, RiskLow)
	pVeryHigh := m.ApprovalProbability(app, RiskVeryHigh)
	assert.Greater(t, pLow, pVeryHigh)

	vip := &Application{Amount: 80000, IsVIP: true}
	assert.Greater(t, m.ApprovalProbability(vip, RiskMedium), m.ApprovalProbability(app, RiskMedium))
}

func TestSimpleApprovalModelIneligibleRejected(t *testing.T) {
	customer := testCustomer()
	params := personalParams(80000, 24, 0.065)
	appModel := NewSimpleApplicationModel(rand.New(rand.NewSource(3)))
	app := appModel.GenerateApplication(customer, params, submitDate)
	risk := &RiskAssessment{
		RiskLevel:          RiskVeryHigh,
		DefaultProbability: 0.4,
		Eligibility:        &EligibilityResult{Eligible: false, Reason: "信用评分低于准入下限"},
	}

	for seed := int64(0); seed < 30; seed++ {
		m := NewSimpleApprovalModel(rand.New(rand.NewSource(seed)))
		process := m.GenerateCompleteApproval(app, customer, params, risk, 0.95, approvalStart)

		assert.Equal(t, "rejected", process.FinalStatus)
		require.NotNil(t, process.Decision.Rejection)
		assert.Contains(t, process.Decision.Rejection.Reasons, "信用评分低于准入下限")
	}
}
