package domain

import (
	"math/rand"
	"sort"
	"time"
)

// statusTransitions 九态状态机的合法迁移表
var statusTransitions = map[LoanStatus][]LoanStatus{
	StatusApplying:  {StatusApproved, StatusRejected},
	StatusApproved:  {StatusDisbursed, StatusRejected},
	StatusDisbursed: {StatusRepaying},
	StatusRepaying:  {StatusOverdue, StatusEarlySettled, StatusSettled},
	StatusOverdue:   {StatusDefaulted, StatusRepaying, StatusSettled},
}

// terminalStatuses 终态集合，时间线保证终态之后不再有条目
var terminalStatuses = map[LoanStatus]bool{
	StatusSettled:      true,
	StatusEarlySettled: true,
	StatusRejected:     true,
	StatusDefaulted:    true,
}

// historicalStatusPrior 历史回填时初始状态的先验分布
var historicalStatusPrior = map[LoanStatus]float64{
	StatusApplying:  0.06,
	StatusApproved:  0.04,
	StatusDisbursed: 0.04,
	StatusRepaying:  0.75,
	StatusSettled:   0.07,
	StatusOverdue:   0.03,
	StatusRejected:  0.01,
}

// statusDescriptions 状态中文描述
var statusDescriptions = map[LoanStatus]string{
	StatusApplying:     "申请中",
	StatusApproved:     "已批准",
	StatusRejected:     "已拒绝",
	StatusDisbursed:    "已放款",
	StatusRepaying:     "还款中",
	StatusOverdue:      "已逾期",
	StatusDefaulted:    "已违约",
	StatusSettled:      "已结清",
	StatusEarlySettled: "提前结清",
}

// IsTerminalStatus 判断状态是否为终态
func IsTerminalStatus(status LoanStatus) bool {
	return terminalStatuses[status]
}

// StatusDescription 返回状态的中文描述
func StatusDescription(status LoanStatus) string {
	if d, ok := statusDescriptions[status]; ok {
		return d
	}
	return string(status)
}

// ValidateTransition 校验状态迁移合法性，从终态迁移返回 ErrTerminalStatus
func ValidateTransition(from, to LoanStatus) error {
	if IsTerminalStatus(from) {
		return ErrTerminalStatus
	}
	for _, next := range statusTransitions[from] {
		if next == to {
			return nil
		}
	}
	return ErrTerminalStatus
}

// StatusSummary 状态摘要
type StatusSummary struct {
	LoanID               string        `json:"loan_id"`
	CurrentStatus        LoanStatus    `json:"current_status"`
	Description          string        `json:"description"`
	DaysInCurrentStatus  int           `json:"days_in_current_status"`
	HasRisk              bool          `json:"has_risk"`
	CompletionPercentage float64       `json:"completion_percentage"`
	History              []StatusEntry `json:"history,omitempty"`
}

// StatusModel 贷款状态模型：初始状态、时间线、事件与查询
type StatusModel struct {
	rng   *rand.Rand
	prior map[LoanStatus]float64
}

// NewStatusModel 创建状态模型，历史回填先验为默认分布
func NewStatusModel(rng *rand.Rand) *StatusModel {
	return &StatusModel{rng: rng, prior: historicalStatusPrior}
}

// NewStatusModelWithPrior 创建状态模型并整体替换历史回填先验。
// prior 为空时退回默认分布。
func NewStatusModelWithPrior(rng *rand.Rand, prior map[LoanStatus]float64) *StatusModel {
	if len(prior) == 0 {
		prior = historicalStatusPrior
	}
	return &StatusModel{rng: rng, prior: prior}
}

// InitialStatus 确定初始状态。增量生成固定为 applying；
// 历史回填按先验分布抽取，并按信用和类型重掷异常组合。
func (m *StatusModel) InitialStatus(loanType LoanType, creditScore int, historical bool) LoanStatus {
	if !historical {
		return StatusApplying
	}

	statuses := make([]LoanStatus, 0, len(m.prior))
	weights := make([]float64, 0, len(m.prior))
	for _, s := range []LoanStatus{StatusApplying, StatusApproved, StatusDisbursed, StatusRepaying, StatusSettled, StatusOverdue, StatusRejected} {
		statuses = append(statuses, s)
		weights = append(weights, m.prior[s])
	}

	for attempt := 0; attempt < 5; attempt++ {
		status := weightedChoice(m.rng, statuses, weights)

		if creditScore > 700 && (status == StatusOverdue || status == StatusDefaulted) && m.rng.Float64() < 0.8 {
			continue
		}
		if creditScore > 650 && status == StatusRejected && m.rng.Float64() < 0.9 {
			continue
		}
		if loanType == LoanTypeMortgage && status == StatusRejected && m.rng.Float64() < 0.7 {
			continue
		}
		return status
	}
	return StatusRepaying
}

// transitionContext 状态迁移概率计算所需的上下文
type transitionContext struct {
	loan          *LoanRecord
	customer      CustomerSnapshot
	monthsElapsed int
	overdueMonths int
}

// nextStatus 从当前状态抽取下一状态。
// repaying/overdue 的剩余概率质量在合法出边上重新归一化。
func (m *StatusModel) nextStatus(current LoanStatus, ctx transitionContext) LoanStatus {
	switch current {
	case StatusApplying:
		p := m.approvalEdgeProbability(ctx)
		if m.rng.Float64() < p {
			return StatusApproved
		}
		return StatusRejected

	case StatusApproved:
		if m.rng.Float64() < 0.95 {
			return StatusDisbursed
		}
		return StatusRejected

	case StatusDisbursed:
		return StatusRepaying

	case StatusRepaying:
		pOverdue := m.overdueEdgeProbability(ctx)
		pEarly := m.earlySettleEdgeProbability(ctx)
		pSettled := m.settleEdgeProbability(ctx)
		return weightedChoice(m.rng,
			[]LoanStatus{StatusOverdue, StatusEarlySettled, StatusSettled},
			[]float64{pOverdue, pEarly, pSettled})

	case StatusOverdue:
		pDefault := m.defaultEdgeProbability(ctx)
		pRecover := maxFloat(0.1, 0.4-0.1*float64(ctx.overdueMonths))
		return weightedChoice(m.rng,
			[]LoanStatus{StatusDefaulted, StatusRepaying, StatusSettled},
			[]float64{pDefault, pRecover, 0.05})
	}
	return current
}

// approvalEdgeProbability applying→approved 概率
func (m *StatusModel) approvalEdgeProbability(ctx transitionContext) float64 {
	cs := float64(ctx.customer.CreditScore)
	p := 0.2 + (cs-350)/500*0.75

	switch ctx.loan.LoanType {
	case LoanTypeMortgage:
		p *= 1.1
	case LoanTypeCar:
		p *= 1.05
	case LoanTypeSmallBusiness:
		p *= 0.9
	}
	if ctx.loan.Amount > 1000000 {
		p *= 0.8
	} else if ctx.loan.Amount > 500000 {
		p *= 0.9
	}
	return clampFloat(p, 0.1, 0.95)
}

// overdueEdgeProbability repaying→overdue 概率
func (m *StatusModel) overdueEdgeProbability(ctx transitionContext) float64 {
	cs := float64(ctx.customer.CreditScore)
	p := 0.3 - (cs-350)/500*0.29

	switch ctx.loan.LoanType {
	case LoanTypeMortgage:
		p *= 0.7
	case LoanTypeCar:
		p *= 0.9
	case LoanTypePersonal:
		p *= 1.2
	}

	// 贷款早期逾期较少，后期略多
	if ctx.loan.TermMonths > 0 {
		progress := float64(ctx.monthsElapsed) / float64(ctx.loan.TermMonths)
		switch {
		case progress < 0.25:
			p *= 0.8
		case progress > 0.75:
			p *= 1.2
		}
	}

	p *= 1 + minFloat(1, ctx.customer.LateRatio()*2)
	return clampFloat(p, 0.01, 0.5)
}

// earlySettleEdgeProbability repaying→early_settled 概率
func (m *StatusModel) earlySettleEdgeProbability(ctx transitionContext) float64 {
	p := 0.01
	switch ctx.loan.LoanType {
	case LoanTypeMortgage:
		p *= 1.5
	case LoanTypeCar:
		p *= 1.2
	case LoanTypeSmallBusiness:
		p *= 0.8
	}
	if ctx.loan.TermMonths > 0 {
		progress := float64(ctx.monthsElapsed) / float64(ctx.loan.TermMonths)
		if progress > 0.3 && progress < 0.7 {
			p *= 1.5
		}
	}
	if ctx.loan.RepaymentMethod == MethodBalloon || ctx.loan.RepaymentMethod == MethodInterestOnly {
		p *= 0.5
	}
	return clampFloat(p, 0.001, 0.1)
}

// settleEdgeProbability repaying→settled 概率，临近到期迅速升高
func (m *StatusModel) settleEdgeProbability(ctx transitionContext) float64 {
	remaining := ctx.loan.TermMonths - ctx.monthsElapsed
	switch {
	case remaining <= 1:
		return 0.8
	case remaining <= 3:
		return 0.4
	default:
		return 0
	}
}

// defaultEdgeProbability overdue→defaulted 概率，随逾期时长与金额上升
func (m *StatusModel) defaultEdgeProbability(ctx transitionContext) float64 {
	var base float64
	switch {
	case ctx.overdueMonths <= 1:
		base = 0.05
	case ctx.overdueMonths <= 3:
		base = 0.15
	case ctx.overdueMonths <= 6:
		base = 0.30
	default:
		base = 0.50
	}

	amountRatio := minFloat(1, ctx.loan.Amount/1000000)
	p := base * (0.5 + amountRatio*0.5)

	if ctx.customer.CreditScore >= 700 {
		p *= 0.7
	}
	return clampFloat(p, 0.01, 0.95)
}

// statusDuration 状态停留天数
func (m *StatusModel) statusDuration(status LoanStatus, ctx transitionContext) int {
	switch status {
	case StatusApplying:
		var days int
		switch {
		case ctx.loan.LoanType == LoanTypePersonal && ctx.loan.Amount < 50000:
			days = randIntRange(m.rng, 1, 3)
		case ctx.loan.LoanType == LoanTypeMortgage:
			days = randIntRange(m.rng, 5, 14)
		case ctx.loan.LoanType == LoanTypeCar:
			days = randIntRange(m.rng, 2, 7)
		case ctx.loan.LoanType == LoanTypeSmallBusiness:
			days = randIntRange(m.rng, 3, 10)
		default:
			days = randIntRange(m.rng, 2, 5)
		}
		if ctx.loan.Amount > 500000 {
			days += m.rng.Intn(4)
		}
		return days

	case StatusApproved:
		switch ctx.loan.LoanType {
		case LoanTypeMortgage:
			return randIntRange(m.rng, 3, 10)
		case LoanTypeCar:
			return randIntRange(m.rng, 1, 5)
		default:
			return randIntRange(m.rng, 1, 3)
		}

	case StatusDisbursed:
		return randIntRange(m.rng, 1, 2)

	case StatusRepaying:
		remaining := ctx.loan.TermMonths - ctx.monthsElapsed
		if remaining < 1 {
			remaining = 1
		}
		return remaining * 30

	case StatusOverdue:
		var days int
		switch {
		case ctx.customer.CreditScore >= 700:
			days = randIntRange(m.rng, 5, 30)
		case ctx.customer.CreditScore >= 600:
			days = randIntRange(m.rng, 10, 60)
		default:
			days = randIntRange(m.rng, 15, 90)
		}
		if ctx.loan.Amount > 200000 {
			days += 30
		}
		return days

	case StatusDefaulted:
		return randIntRange(m.rng, 180, 365)

	default:
		return 1
	}
}

// GenerateTimeline 从初始状态沿状态机游走生成时间线。
// 条目首尾相接、互不重叠；最多 10 次迁移；终态后不再有条目。
// historical 为真时还款期可能被截断以模拟观察窗口。
func (m *StatusModel) GenerateTimeline(initial LoanStatus, startDate time.Time, loan *LoanRecord, customer CustomerSnapshot, historical bool) []StatusEntry {
	timeline := make([]StatusEntry, 0, 8)
	current := initial
	currentStart := startDate
	monthsElapsed := 0
	overdueMonths := 0

	for i := 0; i < 10; i++ {
		ctx := transitionContext{
			loan:          loan,
			customer:      customer,
			monthsElapsed: monthsElapsed,
			overdueMonths: overdueMonths,
		}
		duration := m.statusDuration(current, ctx)
		truncated := false

		if current == StatusRepaying && historical && m.rng.Float64() < 0.7 {
			capped := randIntRange(m.rng, 30, 180)
			if capped < duration {
				duration = capped
			}
			truncated = m.rng.Float64() < 0.5
		}

		end := currentStart.AddDate(0, 0, duration)
		timeline = append(timeline, StatusEntry{
			Status:       current,
			StartDate:    currentStart,
			EndDate:      end,
			DurationDays: duration,
		})

		if IsTerminalStatus(current) || truncated {
			break
		}

		monthsElapsed += duration / 30
		if current == StatusOverdue {
			overdueMonths = duration/30 + 1
		} else {
			overdueMonths = 0
		}

		// 迁移概率基于本条目结束时刻的状态计算
		ctx.monthsElapsed = monthsElapsed
		ctx.overdueMonths = overdueMonths
		current = m.nextStatus(current, ctx)
		currentStart = end
	}

	return timeline
}

// GenerateStatusEvents 为时间线条目生成业务事件，按时间排序
func (m *StatusModel) GenerateStatusEvents(timeline []StatusEntry, loan *LoanRecord) []StatusEvent {
	events := make([]StatusEvent, 0, len(timeline)*2)

	for _, entry := range timeline {
		switch entry.Status {
		case StatusApplying:
			events = append(events, StatusEvent{
				EventType: "loan_application",
				EventDate: entry.StartDate,
				Actor:     "customer",
				Detail:    map[string]any{"loan_type": string(loan.LoanType), "amount": loan.Amount},
			})

		case StatusApproved:
			actor := "approval_officer"
			if m.rng.Float64() < 0.7 {
				actor = "system"
			}
			events = append(events, StatusEvent{
				EventType: "loan_approved",
				EventDate: entry.StartDate,
				Actor:     actor,
			})

		case StatusRejected:
			events = append(events, StatusEvent{
				EventType: "loan_rejected",
				EventDate: entry.StartDate,
				Actor:     "system",
				Detail:    map[string]any{"can_reapply": m.rng.Float64() < 0.7},
			})

		case StatusDisbursed:
			events = append(events, StatusEvent{
				EventType: "loan_disbursed",
				EventDate: entry.StartDate,
				Actor:     "system",
				Detail:    map[string]any{"amount": loan.Amount, "account_id": loan.AccountID},
			})

		case StatusRepaying:
			months := entry.DurationDays / 30
			if months > 12 {
				months = 12
			}
			for i := 1; i <= months; i++ {
				onTime := m.rng.Float64() < 0.95
				events = append(events, StatusEvent{
					EventType: "repayment",
					EventDate: AddMonths(entry.StartDate, i),
					Actor:     "customer",
					Detail:    map[string]any{"on_time": onTime},
				})
			}

		case StatusOverdue:
			events = append(events, StatusEvent{
				EventType: "overdue",
				EventDate: entry.StartDate,
				Actor:     "system",
				Detail:    map[string]any{"duration_days": entry.DurationDays},
			})
			if entry.DurationDays >= 60 {
				events = append(events, StatusEvent{
					EventType: "collection_action",
					EventDate: entry.StartDate.AddDate(0, 0, randIntRange(m.rng, 5, 15)),
					Actor:     "collection_officer",
				})
			}

		case StatusDefaulted:
			events = append(events, StatusEvent{
				EventType: "default",
				EventDate: entry.StartDate,
				Actor:     "system",
			})

		case StatusSettled:
			events = append(events, StatusEvent{
				EventType: "settlement",
				EventDate: entry.StartDate,
				Actor:     "customer",
			})

		case StatusEarlySettled:
			events = append(events, StatusEvent{
				EventType: "early_settlement",
				EventDate: entry.StartDate,
				Actor:     "customer",
				Detail:    map[string]any{"interest_discount": true},
			})
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].EventDate.Before(events[j].EventDate)
	})
	return events
}

// GetStatusAtDate 查询指定日期所处的状态。早于时间线返回首条状态，
// 晚于时间线返回末条状态。
func GetStatusAtDate(timeline []StatusEntry, date time.Time) LoanStatus {
	if len(timeline) == 0 {
		return StatusApplying
	}
	for _, entry := range timeline {
		if !date.Before(entry.StartDate) && date.Before(entry.EndDate) {
			return entry.Status
		}
	}
	if date.Before(timeline[0].StartDate) {
		return timeline[0].Status
	}
	return timeline[len(timeline)-1].Status
}

// GetStatusSummary 生成状态摘要
func (m *StatusModel) GetStatusSummary(loan *LoanRecord, timeline []StatusEntry, asOf time.Time) *StatusSummary {
	return buildStatusSummary(loan, timeline, asOf)
}

func buildStatusSummary(loan *LoanRecord, timeline []StatusEntry, asOf time.Time) *StatusSummary {
	summary := &StatusSummary{
		LoanID:               loan.LoanID,
		CurrentStatus:        GetStatusAtDate(timeline, asOf),
		CompletionPercentage: loan.Statistics.CompletionPercentage,
		History:              timeline,
	}
	summary.Description = StatusDescription(summary.CurrentStatus)
	summary.HasRisk = summary.CurrentStatus == StatusOverdue || summary.CurrentStatus == StatusDefaulted

	if len(timeline) > 0 {
		last := timeline[len(timeline)-1]
		for _, entry := range timeline {
			if !asOf.Before(entry.StartDate) && asOf.Before(entry.EndDate) {
				last = entry
				break
			}
		}
		days := int(asOf.Sub(last.StartDate).Hours() / 24)
		if days < 0 {
			days = 0
		}
		if days > last.DurationDays {
			days = last.DurationDays
		}
		summary.DaysInCurrentStatus = days
	}

	return summary
}
