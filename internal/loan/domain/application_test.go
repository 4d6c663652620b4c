package domain

import (
	"math/rand"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var submitDate = time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

func TestRequiredDocuments(t *testing.T) {
	m := NewApplicationModel(rand.New(rand.NewSource(1)), nil)

	base := []string{"身份证明", "收入证明", "个人征信报告"}
	for _, doc := range base {
		assert.Contains(t, m.RequiredDocuments(LoanTypePersonal), doc)
	}

	// 个人消费贷只需基础材料，住房贷款附加 4 份
	assert.Len(t, m.RequiredDocuments(LoanTypePersonal), 3)
	assert.Len(t, m.RequiredDocuments(LoanTypeMortgage), 7)
	assert.Len(t, m.RequiredDocuments(LoanTypeCar), 6)
	assert.Len(t, m.RequiredDocuments(LoanTypeEducation), 5)
	assert.Len(t, m.RequiredDocuments(LoanTypeSmallBusiness), 7)
	assert.Contains(t, m.RequiredDocuments(LoanTypeMortgage), "房产评估报告")
}

func TestGenerateApplication(t *testing.T) {
	m := NewApplicationModel(rand.New(rand.NewSource(17)), nil)
	customer := testCustomer()
	params := personalParams(80000, 24, 0.065)

	app := m.GenerateApplication(customer, params, submitDate)

	assert.Regexp(t, regexp.MustCompile(`^LOAN-20250401-\d{5}$`), app.ApplicationID)
	assert.Equal(t, customer.CustomerID, app.CustomerID)
	assert.Equal(t, AppStatusSubmitted, app.Status)
	assert.Equal(t, submitDate, app.SubmitDate)
	assert.Equal(t, params.Amount, app.Amount)
	assert.Equal(t, params.TermMonths, app.TermMonths)
	assert.Contains(t, []string{ChannelOnlineBanking, ChannelMobileApp, ChannelBranch, ChannelThirdParty}, app.Channel)
	assert.NotEmpty(t, app.Purpose)

	// 每份材料都有状态
	require.Len(t, app.Documents, 3)
	assert.Len(t, app.DocumentStatus, 3)
	for _, doc := range app.Documents {
		assert.Contains(t, app.DocumentStatus, doc)
	}

	assert.Equal(t, submitDate.AddDate(0, 0, app.ExpectedDays), app.ExpectedDecisionDate)
	require.NotEmpty(t, app.Events)
	assert.Equal(t, "application_submitted", app.Events[0].EventType)
}

func TestGenerateApplicationNotes(t *testing.T) {
	m := NewApplicationModel(rand.New(rand.NewSource(5)), nil)

	vip := testCustomer()
	vip.IsVIP = true
	vip.CreditScore = 560
	app := m.GenerateApplication(vip, personalParams(600000, 36, 0.07), submitDate)

	// VIP、低评分、大额三类备注全部出现
	require.Len(t, app.Notes, 3)
	assert.Contains(t, app.Notes[0], "VIP")
}

func TestSimulateProcessingReachesDecisionOrCancellation(t *testing.T) {
	customer := testCustomer()
	params := personalParams(80000, 24, 0.065)

	cancelled := 0
	for seed := int64(0); seed < 200; seed++ {
		m := NewApplicationModel(rand.New(rand.NewSource(seed)), nil)
		app := m.GenerateApplication(customer, params, submitDate)
		risk := &RiskAssessment{RiskLevel: RiskMedium, DefaultProbability: 0.12}

		decisionDate := m.SimulateProcessing(app, risk)

		assert.False(t, decisionDate.Before(submitDate))
		assert.Same(t, risk, app.InitialRisk)
		require.Contains(t, []ApplicationStatus{AppStatusPendingDecision, AppStatusCancelled}, app.Status)
		if app.Status == AppStatusCancelled {
			cancelled++
			assert.Equal(t, "超期未补齐申请材料", app.CancelReason)
		}

		// 事件按时间排序且编号连续
		for i := 1; i < len(app.Events); i++ {
			assert.False(t, app.Events[i].EventDate.Before(app.Events[i-1].EventDate))
		}
		for i, evt := range app.Events {
			assert.Equal(t, eventID(app.ApplicationID, i+1), evt.EventID)
		}
	}
	// 绝大多数申请应走到待决定
	assert.Less(t, cancelled, 40)
}

func TestSimulateProcessingHighRiskAddsAssessment(t *testing.T) {
	found := false
	for seed := int64(0); seed < 50 && !found; seed++ {
		m := NewApplicationModel(rand.New(rand.NewSource(seed)), nil)
		app := m.GenerateApplication(testCustomer(), personalParams(80000, 24, 0.07), submitDate)
		risk := &RiskAssessment{RiskLevel: RiskVeryHigh, DefaultProbability: 0.45}
		m.SimulateProcessing(app, risk)

		for _, evt := range app.Events {
			if evt.EventType == "risk_assessment_completed" {
				found = true
				assert.NotEmpty(t, risk.AssessorID)
				assert.False(t, risk.AssessedAt.IsZero())
			}
		}
	}
	assert.True(t, found, "高风险申请应触发专项风险评估")
}

func TestApprovalProbability(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	m := NewApplicationModel(rng, nil)
	params := personalParams(80000, 24, 0.065)

	for i := 0; i < 1000; i++ {
		customer := CustomerSnapshot{
			CustomerID:   "CUST-X",
			CreditScore:  350 + rng.Intn(501),
			AnnualIncome: float64(30000 + rng.Intn(500000)),
			Age:          22 + rng.Intn(45),
			IsVIP:        rng.Float64() < 0.1,
		}
		app := m.GenerateApplication(customer, params, submitDate)

		pLow := m.ApprovalProbability(app, RiskLow)
		pVeryHigh := m.ApprovalProbability(app, RiskVeryHigh)

		assert.GreaterOrEqual(t, pVeryHigh, 0.05)
		assert.LessOrEqual(t, pLow, 0.98)
		// 同一申请下，风险等级越高通过率越低
		assert.Less(t, pVeryHigh, pLow)
	}
}

func TestMarkDecision(t *testing.T) {
	m := NewApplicationModel(rand.New(rand.NewSource(2)), nil)
	decisionDate := submitDate.AddDate(0, 0, 5)

	app := m.GenerateApplication(testCustomer(), personalParams(50000, 12, 0.06), submitDate)
	m.MarkDecision(app, &ApprovalDecision{Decision: "approved", Date: decisionDate})
	assert.Equal(t, AppStatusApproved, app.Status)
	assert.Equal(t, decisionDate, app.StatusDate)

	app = m.GenerateApplication(testCustomer(), personalParams(50000, 12, 0.06), submitDate)
	m.MarkDecision(app, &ApprovalDecision{Decision: "rejected", Date: decisionDate})
	assert.Equal(t, AppStatusRejected, app.Status)
}
