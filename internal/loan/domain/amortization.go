package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// AmortizationStrategy 按还款方式生成还款计划。
// 所有实现满足：本金合计 = 贷款金额 ±0.01，剩余本金单调递减至 0。
type AmortizationStrategy interface {
	Schedule(amount, annualRate float64, termMonths int, firstPayment time.Time) ([]SchedulePeriod, error)
}

// amortizationStrategies 还款方式到策略的映射表
var amortizationStrategies = map[RepaymentMethod]AmortizationStrategy{
	MethodEqualInstallment: equalInstallmentStrategy{},
	MethodEqualPrincipal:   equalPrincipalStrategy{},
	MethodInterestOnly:     interestOnlyStrategy{},
	MethodBalloon:          balloonStrategy{},
}

// StrategyFor 返回还款方式对应的摊还策略，未知方式回退到等额本息
func StrategyFor(method RepaymentMethod) AmortizationStrategy {
	if s, ok := amortizationStrategies[method]; ok {
		return s
	}
	return equalInstallmentStrategy{}
}

func validateLoanTerms(amount float64, termMonths int) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if termMonths <= 0 {
		return ErrInvalidTerm
	}
	return nil
}

// equalInstallmentStrategy 等额本息：每期还款额固定，利息递减本金递增
type equalInstallmentStrategy struct{}

func (equalInstallmentStrategy) Schedule(amount, annualRate float64, termMonths int, firstPayment time.Time) ([]SchedulePeriod, error) {
	if err := validateLoanTerms(amount, termMonths); err != nil {
		return nil, err
	}

	monthlyRate := annualRate / 12
	var payment float64
	if monthlyRate > 0 {
		factor := math.Pow(1+monthlyRate, float64(termMonths))
		payment = amount * monthlyRate * factor / (factor - 1)
	} else {
		// 零利率退化为本金均摊
		payment = amount / float64(termMonths)
	}
	payment = round2(payment)

	schedule := make([]SchedulePeriod, 0, termMonths)
	remaining := decimal.NewFromFloat(amount)

	for period := 1; period <= termMonths; period++ {
		rem, _ := remaining.Float64()
		interest := round2(rem * monthlyRate)

		var principal, total float64
		if period == termMonths {
			// 最后一期吸收舍入余差
			principal = round2(rem)
			total = round2(principal + interest)
		} else {
			principal = round2(payment - interest)
			total = payment
		}

		remaining = remaining.Sub(decimal.NewFromFloat(principal))
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}
		after, _ := remaining.Round(2).Float64()

		schedule = append(schedule, SchedulePeriod{
			Period:             period,
			DueDate:            AddMonths(firstPayment, period-1),
			Principal:          principal,
			Interest:           interest,
			TotalPayment:       total,
			RemainingPrincipal: after,
		})
	}

	return schedule, nil
}

// equalPrincipalStrategy 等额本金：每期本金固定，利息随剩余本金递减
type equalPrincipalStrategy struct{}

func (equalPrincipalStrategy) Schedule(amount, annualRate float64, termMonths int, firstPayment time.Time) ([]SchedulePeriod, error) {
	if err := validateLoanTerms(amount, termMonths); err != nil {
		return nil, err
	}

	monthlyRate := annualRate / 12
	basePrincipal := round2(amount / float64(termMonths))

	schedule := make([]SchedulePeriod, 0, termMonths)
	remaining := decimal.NewFromFloat(amount)

	for period := 1; period <= termMonths; period++ {
		rem, _ := remaining.Float64()
		interest := round2(rem * monthlyRate)

		principal := basePrincipal
		if period == termMonths {
			principal = round2(rem)
		}
		total := round2(principal + interest)

		remaining = remaining.Sub(decimal.NewFromFloat(principal))
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}
		after, _ := remaining.Round(2).Float64()

		schedule = append(schedule, SchedulePeriod{
			Period:             period,
			DueDate:            AddMonths(firstPayment, period-1),
			Principal:          principal,
			Interest:           interest,
			TotalPayment:       total,
			RemainingPrincipal: after,
		})
	}

	return schedule, nil
}

// interestOnlyStrategy 先息后本：每期只还利息，到期一次性还本
type interestOnlyStrategy struct{}

func (interestOnlyStrategy) Schedule(amount, annualRate float64, termMonths int, firstPayment time.Time) ([]SchedulePeriod, error) {
	if err := validateLoanTerms(amount, termMonths); err != nil {
		return nil, err
	}

	monthlyRate := annualRate / 12
	monthlyInterest := round2(amount * monthlyRate)

	schedule := make([]SchedulePeriod, 0, termMonths)
	for period := 1; period <= termMonths; period++ {
		principal := 0.0
		remaining := amount
		if period == termMonths {
			principal = round2(amount)
			remaining = 0
		}
		schedule = append(schedule, SchedulePeriod{
			Period:             period,
			DueDate:            AddMonths(firstPayment, period-1),
			Principal:          principal,
			Interest:           monthlyInterest,
			TotalPayment:       round2(principal + monthlyInterest),
			RemainingPrincipal: remaining,
		})
	}

	return schedule, nil
}

// balloonStrategy 一次性还本付息：按单利计息，到期一次性偿还本息
type balloonStrategy struct{}

func (balloonStrategy) Schedule(amount, annualRate float64, termMonths int, firstPayment time.Time) ([]SchedulePeriod, error) {
	if err := validateLoanTerms(amount, termMonths); err != nil {
		return nil, err
	}

	totalInterest := round2(amount * annualRate * float64(termMonths) / 12)

	schedule := make([]SchedulePeriod, 0, termMonths)
	for period := 1; period <= termMonths; period++ {
		p := SchedulePeriod{
			Period:             period,
			DueDate:            AddMonths(firstPayment, period-1),
			RemainingPrincipal: amount,
		}
		if period == termMonths {
			p.Principal = round2(amount)
			p.Interest = totalInterest
			p.TotalPayment = round2(p.Principal + p.Interest)
			p.RemainingPrincipal = 0
		}
		schedule = append(schedule, p)
	}

	return schedule, nil
}
