package domain

import (
	"math/rand"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLoan(riskLevel RiskLevel, termMonths int) *LoanRecord {
	first := time.Date(2023, 2, 10, 0, 0, 0, 0, time.UTC)
	return &LoanRecord{
		LoanID:           "LOAN-20230110-10001",
		CustomerID:       "CUST-0001",
		LoanType:         LoanTypePersonal,
		Amount:           120000,
		InterestRate:     0.06,
		TermMonths:       termMonths,
		RepaymentMethod:  MethodEqualInstallment,
		DisbursementDate: first.AddDate(0, -1, 0),
		FirstPaymentDate: first,
		RiskLevel:        riskLevel,
		Fees: FeeStructure{
			EarlyRepaymentPenalty: 0.01,
			LateFeeDailyRate:      0.0005,
			PenaltyDailyRate:      0.0001,
		},
	}
}

func TestGenerateScheduleAssignsPaymentIDs(t *testing.T) {
	m := NewRepaymentModel(rand.New(rand.NewSource(1)))
	loan := testLoan(RiskLow, 12)

	schedule, err := m.GenerateSchedule(loan)
	require.NoError(t, err)
	require.Len(t, schedule, 12)

	idPattern := regexp.MustCompile(`^PAY-LOAN-20230110-10001-\d{3}$`)
	for i, p := range schedule {
		assert.Regexp(t, idPattern, p.PaymentID)
		assert.Equal(t, paymentID(loan.LoanID, i+1), p.PaymentID)
	}
}

func TestGenerateScheduleInvalidLoan(t *testing.T) {
	m := NewRepaymentModel(rand.New(rand.NewSource(1)))
	loan := testLoan(RiskLow, 12)
	loan.Amount = 0

	_, err := m.GenerateSchedule(loan)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestSimulateBehaviorDeterministic(t *testing.T) {
	loan := testLoan(RiskMedium, 24)
	customer := testCustomer()
	asOf := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	m1 := NewRepaymentModel(rand.New(rand.NewSource(42)))
	m2 := NewRepaymentModel(rand.New(rand.NewSource(42)))

	schedule, err := m1.GenerateSchedule(loan)
	require.NoError(t, err)
	schedule2, err := m2.GenerateSchedule(loan)
	require.NoError(t, err)

	history1 := m1.SimulateBehavior(loan, schedule, customer, asOf)
	history2 := m2.SimulateBehavior(loan, schedule2, customer, asOf)
	assert.Equal(t, history1, history2)
}

func TestSimulateBehaviorFutureDuesStayScheduled(t *testing.T) {
	m := NewRepaymentModel(rand.New(rand.NewSource(3)))
	loan := testLoan(RiskLow, 12)

	schedule, err := m.GenerateSchedule(loan)
	require.NoError(t, err)

	// 观察点早于首个还款日，全部应为待还
	asOf := loan.FirstPaymentDate.AddDate(0, 0, -1)
	history := m.SimulateBehavior(loan, schedule, testCustomer(), asOf)

	require.Len(t, history, 12)
	for _, r := range history {
		assert.Equal(t, PaymentScheduled, r.Status)
		assert.Zero(t, r.ActualTotal)
	}
}

func TestSimulateBehaviorPaidRecords(t *testing.T) {
	m := NewRepaymentModel(rand.New(rand.NewSource(8)))
	loan := testLoan(RiskLow, 12)
	customer := testCustomer()
	customer.CreditScore = 780

	schedule, err := m.GenerateSchedule(loan)
	require.NoError(t, err)
	asOf := schedule[len(schedule)-1].DueDate.AddDate(0, 1, 0)
	history := m.SimulateBehavior(loan, schedule, customer, asOf)

	for _, r := range history {
		if r.Status == PaymentScheduled {
			continue
		}
		assert.NotEmpty(t, r.PaymentMethod)
		assert.GreaterOrEqual(t, r.ActualPrincipal, r.Principal)
		assert.Equal(t, r.Interest, r.ActualInterest)
		if r.IsOverdue {
			assert.Equal(t, PaymentPaidLate, r.Status)
			assert.Greater(t, r.OverdueDays, 0)
			assert.True(t, r.ActualDate.After(r.DueDate))
			assert.Greater(t, r.LateFee, 0.0)
		} else {
			assert.Equal(t, PaymentPaid, r.Status)
			assert.False(t, r.ActualDate.After(r.DueDate))
			assert.Zero(t, r.LateFee)
		}
		if r.EarlySettlement {
			break
		}
	}
}

func TestSimulateBehaviorOverdueRateTracksRiskLevel(t *testing.T) {
	customer := testCustomer()
	customer.CreditScore = 700 // 避开信用分修正，只看风险等级差异

	overdueRate := func(level RiskLevel, seed int64) float64 {
		m := NewRepaymentModel(rand.New(rand.NewSource(seed)))
		overdue, total := 0, 0
		for i := 0; i < 200; i++ {
			loan := testLoan(level, 24)
			schedule, err := m.GenerateSchedule(loan)
			require.NoError(t, err)
			asOf := schedule[len(schedule)-1].DueDate.AddDate(0, 6, 0)
			for _, r := range m.SimulateBehavior(loan, schedule, customer, asOf) {
				if r.Status == PaymentScheduled {
					continue
				}
				total++
				if r.IsOverdue {
					overdue++
				}
			}
		}
		return float64(overdue) / float64(total)
	}

	low := overdueRate(RiskLow, 101)
	veryHigh := overdueRate(RiskVeryHigh, 101)

	// 低风险单期基础逾期率 3%，极高风险 25% 且逾期后连锁放大
	assert.Less(t, low, 0.10)
	assert.Greater(t, veryHigh, 0.25)
	assert.Greater(t, veryHigh, low*3)
}

func TestSimulateBehaviorEarlySettlementTruncates(t *testing.T) {
	customer := testCustomer()
	found := false

	for seed := int64(0); seed < 300 && !found; seed++ {
		m := NewRepaymentModel(rand.New(rand.NewSource(seed)))
		loan := testLoan(RiskLow, 36)
		schedule, err := m.GenerateSchedule(loan)
		require.NoError(t, err)
		asOf := schedule[len(schedule)-1].DueDate.AddDate(0, 1, 0)
		history := m.SimulateBehavior(loan, schedule, customer, asOf)

		last := history[len(history)-1]
		if !last.EarlySettlement {
			continue
		}
		found = true

		// 结清后不再有任何记录
		assert.Less(t, len(history), 36)
		for _, r := range history[:len(history)-1] {
			assert.False(t, r.EarlySettlement)
		}
		assert.Equal(t, PaymentPaid, last.Status)
		assert.True(t, last.IsEarlyRepayment)
		assert.InDelta(t, round2(last.Principal+last.RemainingPrincipal), last.ActualPrincipal, 0.01)
		assert.True(t, last.ActualDate.Before(last.DueDate))
	}
	assert.True(t, found, "36 期低风险贷款在 300 个种子内应出现全额提前结清")
}

func TestSimulateBehaviorEarlyRepaymentNeverOverdue(t *testing.T) {
	customer := testCustomer()
	customer.CreditScore = 560 // 抬高逾期基础概率，充分覆盖提前还款路径

	earlySeen := 0
	for seed := int64(0); seed < 200; seed++ {
		m := NewRepaymentModel(rand.New(rand.NewSource(seed)))
		loan := testLoan(RiskHigh, 24)
		schedule, err := m.GenerateSchedule(loan)
		require.NoError(t, err)
		asOf := schedule[len(schedule)-1].DueDate.AddDate(0, 1, 0)

		for _, r := range m.SimulateBehavior(loan, schedule, customer, asOf) {
			if r.IsEarlyRepayment {
				earlySeen++
				// 当期已提前还款就不可能再逾期
				assert.False(t, r.IsOverdue, "seed %d period %d", seed, r.Period)
				assert.NotEqual(t, PaymentPaidLate, r.Status)
				assert.Zero(t, r.LateFee)
			}
		}
	}
	require.Greater(t, earlySeen, 0)
}

func TestGenerateOverdueReport(t *testing.T) {
	m := NewRepaymentModel(rand.New(rand.NewSource(1)))
	loan := testLoan(RiskMedium, 12)
	asOf := time.Date(2023, 8, 1, 0, 0, 0, 0, time.UTC)

	mkPeriod := func(period int, due time.Time) SchedulePeriod {
		return SchedulePeriod{Period: period, DueDate: due, Principal: 10000, Interest: 500, TotalPayment: 10500}
	}
	history := []RepaymentRecord{
		{SchedulePeriod: mkPeriod(1, time.Date(2023, 2, 10, 0, 0, 0, 0, time.UTC)), Status: PaymentPaid, ActualPrincipal: 10000, ActualInterest: 500},
		{SchedulePeriod: mkPeriod(2, time.Date(2023, 3, 10, 0, 0, 0, 0, time.UTC)), Status: PaymentPaidLate, IsOverdue: true, OverdueDays: 10, LateFee: 52.5, PenaltyInterest: 10},
		{SchedulePeriod: mkPeriod(3, time.Date(2023, 4, 10, 0, 0, 0, 0, time.UTC)), Status: PaymentPaid, ActualPrincipal: 10000, ActualInterest: 500},
		{SchedulePeriod: mkPeriod(4, time.Date(2023, 5, 10, 0, 0, 0, 0, time.UTC)), Status: PaymentPaidLate, IsOverdue: true, OverdueDays: 40, LateFee: 210, PenaltyInterest: 40},
		{SchedulePeriod: mkPeriod(5, time.Date(2023, 7, 10, 0, 0, 0, 0, time.UTC)), Status: PaymentScheduled},
	}

	report := m.GenerateOverdueReport(loan, history, asOf)

	assert.Equal(t, overdueReportID(loan.LoanID, asOf), report.ReportID)
	assert.Equal(t, 2, report.OverdueCount)
	assert.Equal(t, 40, report.MaxOverdueDays)
	assert.InDelta(t, 312.5, report.TotalFees, 0.01)
	assert.Equal(t, "high", report.Indicators.Severity)

	// 第 5 期到期未还构成当前逾期
	require.NotNil(t, report.Current)
	assert.Equal(t, 5, report.Current.Period)
	assert.Equal(t, 22, report.Current.Days)
	assert.NotEmpty(t, report.Recommendations)
}

func TestGenerateRepaymentSummary(t *testing.T) {
	m := NewRepaymentModel(rand.New(rand.NewSource(1)))
	loan := testLoan(RiskLow, 12)
	asOf := time.Date(2023, 4, 1, 0, 0, 0, 0, time.UTC)

	history := []RepaymentRecord{
		{SchedulePeriod: SchedulePeriod{Period: 1, DueDate: time.Date(2023, 2, 10, 0, 0, 0, 0, time.UTC), Principal: 10000, Interest: 600}, Status: PaymentPaid, ActualPrincipal: 10000, ActualInterest: 600},
		{SchedulePeriod: SchedulePeriod{Period: 2, DueDate: time.Date(2023, 3, 10, 0, 0, 0, 0, time.UTC), Principal: 10000, Interest: 550}, Status: PaymentPaid, ActualPrincipal: 10000, ActualInterest: 550},
		{SchedulePeriod: SchedulePeriod{Period: 3, DueDate: time.Date(2023, 4, 10, 0, 0, 0, 0, time.UTC), Principal: 10000, Interest: 500}, Status: PaymentScheduled},
	}

	summary := m.GenerateRepaymentSummary(loan, history, asOf)

	assert.Equal(t, 3, summary.TotalPeriods)
	assert.Equal(t, 2, summary.CompletedPeriods)
	assert.Equal(t, "active", summary.LoanStatus)
	assert.InDelta(t, 20000, summary.PaidPrincipal, 0.01)
	assert.InDelta(t, 1150, summary.PaidInterest, 0.01)
	assert.InDelta(t, 100000, summary.RemainingPrincipal, 0.01)
	require.NotNil(t, summary.NextDue)
	assert.Equal(t, 3, summary.NextDue.Period)
	assert.Len(t, summary.RecentPayments, 2)

	// 结清手续费 1000 超过可省利息 500，提前结清不划算
	require.NotNil(t, summary.EarlySettlement)
	assert.InDelta(t, 1000, summary.EarlySettlement.SettlementFee, 0.01)
	assert.False(t, summary.EarlySettlement.IsBeneficial)
}
