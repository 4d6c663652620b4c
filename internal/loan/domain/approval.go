package domain

import (
	"fmt"
	"math/rand"
	"time"
)

// 审批步骤名称
const (
	StepDocumentCheck     = "document_check"
	StepAutomatedReview   = "automated_review"
	StepCreditReview      = "credit_review"
	StepRiskAssessment    = "risk_assessment"
	StepSeniorReview      = "senior_review"
	StepApprovalDecision  = "approval_decision"
	StepCommitteeApproval = "committee_approval"
)

// flowSpec 审批流程规格
type flowSpec struct {
	steps          []string
	avgDays        float64
	durationFactor float64
}

var flowSpecs = map[ApprovalFlowType]flowSpec{
	FlowExpress: {
		steps:          []string{StepDocumentCheck, StepAutomatedReview, StepApprovalDecision},
		avgDays:        2,
		durationFactor: 0.7,
	},
	FlowStandard: {
		steps:          []string{StepDocumentCheck, StepCreditReview, StepRiskAssessment, StepApprovalDecision},
		avgDays:        5,
		durationFactor: 1.0,
	},
	FlowEnhanced: {
		steps:          []string{StepDocumentCheck, StepCreditReview, StepRiskAssessment, StepSeniorReview, StepCommitteeApproval},
		avgDays:        8,
		durationFactor: 1.2,
	},
}

// 流程金额界限
const (
	expressCeiling  = 50000.0
	standardCeiling = 300000.0
)

// stepBaseDurations 步骤基础耗时（天）
var stepBaseDurations = map[string]float64{
	StepDocumentCheck:     1.0,
	StepAutomatedReview:   0.5,
	StepCreditReview:      1.5,
	StepRiskAssessment:    1.0,
	StepSeniorReview:      1.5,
	StepApprovalDecision:  1.0,
	StepCommitteeApproval: 2.0,
}

// stepRoles 步骤处理角色
var stepRoles = map[string]string{
	StepDocumentCheck:     "document_officer",
	StepAutomatedReview:   "system",
	StepCreditReview:      "credit_officer",
	StepRiskAssessment:    "risk_officer",
	StepSeniorReview:      "senior_credit_officer",
	StepApprovalDecision:  "approval_manager",
	StepCommitteeApproval: "committee_member",
}

// handlerNames 审批人员姓名库
var handlerNames = []string{"王伟", "李娜", "张敏", "刘洋", "陈静", "杨军", "赵丽", "黄强"}

// decisionApprovalBase 决策环节各风险等级的基础通过率
var decisionApprovalBase = map[RiskLevel]float64{
	RiskLow:      0.95,
	RiskMedium:   0.80,
	RiskHigh:     0.40,
	RiskVeryHigh: 0.15,
}

// defaultBaseRates 无参数模型时各类型的缺省利率
var defaultBaseRates = map[LoanType]float64{
	LoanTypeMortgage:      0.0425,
	LoanTypeEducation:     0.0475,
	LoanTypeCar:           0.055,
	LoanTypeSmallBusiness: 0.06,
	LoanTypePersonal:      0.045,
}

// rejectionReasonsByRisk 拒绝原因库
var rejectionReasonsByRisk = map[RiskLevel][]string{
	RiskHigh: {
		"信用评分不足",
		"申请人有严重的历史逾期记录",
		"债务收入比过高",
	},
	RiskVeryHigh: {
		"信用评分不足",
		"申请人当前负债水平过高",
		"无法验证申请人的收入来源",
		"申请人有严重的历史逾期记录",
	},
}

var genericRejectionReasons = []string{
	"信用评分不足",
	"收入证明不足以支持贷款额度",
	"债务收入比过高",
	"申请材料不完整或有误",
}

// ApprovalModel 贷款审批模型：流程选择、步骤生成与审批决定
type ApprovalModel struct {
	rng *rand.Rand
}

// NewApprovalModel 创建审批模型
func NewApprovalModel(rng *rand.Rand) *ApprovalModel {
	return &ApprovalModel{rng: rng}
}

// DetermineFlow 按金额和客户属性选择审批流程。
// 住房贷款和小微企业贷不走快速流程；VIP 在额度允许时可降级到快速流程。
func (m *ApprovalModel) DetermineFlow(app *Application) ApprovalFlowType {
	var flow ApprovalFlowType
	switch {
	case app.Amount <= expressCeiling:
		flow = FlowExpress
	case app.Amount <= standardCeiling:
		flow = FlowStandard
	default:
		flow = FlowEnhanced
	}

	if flow == FlowExpress && (app.LoanType == LoanTypeMortgage || app.LoanType == LoanTypeSmallBusiness) {
		flow = FlowStandard
	}
	if flow == FlowStandard && app.IsVIP && app.Amount <= standardCeiling*0.8 &&
		app.LoanType != LoanTypeMortgage && app.LoanType != LoanTypeSmallBusiness {
		flow = FlowExpress
	}
	return flow
}

// GenerateProcess 生成审批流程与全部步骤。
// 非末位步骤均为 completed，末位步骤 70% completed / 30% pending。
func (m *ApprovalModel) GenerateProcess(app *Application, flow ApprovalFlowType, customer CustomerSnapshot, risk *RiskAssessment, startDate time.Time) *ApprovalProcess {
	spec := flowSpecs[flow]

	process := &ApprovalProcess{
		FlowID:        flowID(startDate, m.rng),
		ApplicationID: app.ApplicationID,
		FlowType:      flow,
		StartDate:     startDate,
	}

	current := startDate
	for i, name := range spec.steps {
		duration := stepBaseDurations[name] * spec.durationFactor * uniform(m.rng, 0.8, 1.2)
		if app.IsVIP {
			duration *= 0.7
		}
		floor := 1.0
		if stepBaseDurations[name] < 1 {
			floor = 0.5
		}
		if duration < floor {
			duration = floor
		}

		end := current.Add(time.Duration(duration * 24 * float64(time.Hour)))

		step := ApprovalStep{
			StepID:    stepID(app.ApplicationID, i+1),
			Name:      name,
			Role:      stepRoles[name],
			Handler:   handlerNames[m.rng.Intn(len(handlerNames))],
			StartDate: current,
			EndDate:   end,
			Duration:  duration,
			Status:    "completed",
			Result:    m.stepResult(name, app, customer, risk),
		}
		if name == StepAutomatedReview {
			step.Handler = "system"
		}
		if name == StepCommitteeApproval {
			step.Committee = []string{committeeMemberID(m.rng), committeeMemberID(m.rng), committeeMemberID(m.rng)}
		}
		if i == len(spec.steps)-1 && m.rng.Float64() < 0.3 {
			step.Status = "pending"
		}

		process.Steps = append(process.Steps, step)
		current = end
	}

	process.EndDate = current
	process.DurationDays = current.Sub(startDate).Hours() / 24
	for _, s := range process.Steps {
		process.ProcessedBy = append(process.ProcessedBy, s.Handler)
	}
	return process
}

// stepResult 生成步骤结果载荷
func (m *ApprovalModel) stepResult(name string, app *Application, customer CustomerSnapshot, risk *RiskAssessment) map[string]any {
	switch name {
	case StepDocumentCheck:
		return map[string]any{
			"total_documents":      len(app.Documents),
			"incomplete_documents": app.IncompleteDocuments(),
		}
	case StepAutomatedReview:
		result := "approve"
		switch {
		case customer.CreditScore < 600:
			result = "reject"
		case app.Amount > expressCeiling:
			result = "review"
		}
		return map[string]any{
			"credit_rule_passed": customer.CreditScore >= 600,
			"amount_within_gate": app.Amount <= expressCeiling,
			"blacklist_hit":      false,
			"fraud_suspected":    false,
			"result":             result,
		}
	case StepCreditReview:
		dti := 0.0
		if customer.AnnualIncome > 0 {
			dti = customer.ExistingDebt / customer.AnnualIncome
		}
		assessment := "good"
		switch {
		case dti > 0.4 || customer.CreditScore < 600:
			assessment = "poor"
		case dti > 0.3 || customer.CreditScore < 680:
			assessment = "marginal"
		}
		return map[string]any{
			"debt_to_income": round2(dti),
			"dti_passed":     dti <= 0.4,
			"score_passed":   customer.CreditScore >= 600,
			"assessment":     assessment,
		}
	case StepRiskAssessment:
		if risk != nil {
			result := map[string]any{
				"risk_level":          string(risk.RiskLevel),
				"default_probability": risk.DefaultProbability,
			}
			if len(risk.Factors) > 0 {
				factors := make([]map[string]any, 0, len(risk.Factors))
				for _, f := range risk.Factors {
					factors = append(factors, map[string]any{
						"name":   f.Name,
						"value":  f.Value,
						"score":  f.Score,
						"bucket": f.Bucket,
						"weight": f.Weight,
					})
				}
				result["risk_factors"] = factors
			}
			if risk.Eligibility != nil {
				result["eligible"] = risk.Eligibility.Eligible
				if risk.Eligibility.Reason != "" {
					result["ineligible_reason"] = risk.Eligibility.Reason
				}
			}
			return result
		}
		// 无风险模型时模拟一个评估结果
		levels := []RiskLevel{RiskLow, RiskMedium, RiskHigh, RiskVeryHigh}
		level := levels[m.rng.Intn(len(levels))]
		return map[string]any{
			"risk_level":          string(level),
			"default_probability": uniform(m.rng, 0.05, 0.4),
		}
	default:
		return nil
	}
}

// GenerateDecision 生成审批决定。所有步骤完成后先做准入判定，
// 再按综合批准概率掷签；approvalP 为 0 时退回风险等级通过率。
// 存在未完成步骤时返回 pending。
func (m *ApprovalModel) GenerateDecision(app *Application, process *ApprovalProcess, customer CustomerSnapshot, params LoanParameters, risk *RiskAssessment, approvalP float64) *ApprovalDecision {
	for _, step := range process.Steps {
		if step.Status != "completed" {
			return &ApprovalDecision{
				DecisionID: decisionID(process.EndDate, m.rng),
				Decision:   "pending",
				Date:       process.EndDate,
				RiskLevel:  riskLevelOf(risk),
			}
		}
	}

	level := riskLevelOf(risk)
	decision := &ApprovalDecision{
		DecisionID: decisionID(process.EndDate, m.rng),
		Date:       process.EndDate,
		RiskLevel:  level,
	}

	// 准入不通过时直接拒绝，不再掷签
	if risk != nil && risk.Eligibility != nil && !risk.Eligibility.Eligible {
		decision.Decision = "rejected"
		decision.Rejection = m.rejectionWithReason(risk.Eligibility.Reason, process.EndDate)
		return decision
	}

	p := approvalP
	if p <= 0 {
		base, ok := decisionApprovalBase[level]
		if !ok {
			base = 0.5
		}
		p = base
	}
	p = clampFloat(p*uniform(m.rng, 0.9, 1.1), 0.01, 0.99)

	if m.rng.Float64() >= p {
		decision.Decision = "rejected"
		decision.Rejection = m.generateRejection(level, process.EndDate)
		return decision
	}

	decision.Decision = "approved"
	decision.Conditions = m.generateConditions(app, params, level, process.EndDate)
	return decision
}

// generateConditions 生成批准条件，按风险等级调整金额、期限与利率
func (m *ApprovalModel) generateConditions(app *Application, params LoanParameters, level RiskLevel, date time.Time) *ApprovalConditions {
	amount := params.Amount
	term := params.TermMonths
	rate := params.InterestRate
	if rate <= 0 {
		rate = defaultBaseRateFor(params.LoanType, term)
	}

	var conditions []string

	switch level {
	case RiskMedium:
		rate += 0.005
	case RiskHigh:
		rate += 0.01
		if m.rng.Float64() < 0.3 {
			amount = roundTo(amount*uniform(m.rng, 0.7, 0.9), 100)
		}
	case RiskVeryHigh:
		rate += 0.02
		if m.rng.Float64() < 0.6 {
			amount = roundTo(amount*uniform(m.rng, 0.5, 0.8), 100)
		}
		if m.rng.Float64() < 0.4 {
			term = int(float64(term) * 0.8)
			if term < 12 {
				term = 12
			}
		}
	}

	requiresGuarantor := level == RiskHigh || level == RiskVeryHigh
	requiresCollateral := level == RiskVeryHigh || (level == RiskHigh && params.Amount > 300000)

	if amount < params.Amount {
		conditions = append(conditions,
			fmt.Sprintf("批准金额(%.2f元)低于申请金额(%.2f元)，原因：风险控制", amount, params.Amount))
	}
	if rate > params.InterestRate {
		conditions = append(conditions,
			fmt.Sprintf("利率上浮%.1f%%，原因：风险定价", (rate-params.InterestRate)*100))
	}
	if term < params.TermMonths {
		conditions = append(conditions,
			fmt.Sprintf("批准期限缩短至%d个月，原因：风险控制", term))
	}
	if requiresGuarantor {
		conditions = append(conditions, "需要提供担保人，担保人须满足：年收入不低于10万元，信用评分不低于650分")
	}
	if requiresCollateral {
		conditions = append(conditions, "需要提供抵押物，抵押物价值不低于贷款金额的120%")
	}

	return &ApprovalConditions{
		ApprovedAmount:     amount,
		ApprovedTermMonths: term,
		InterestRate:       rate,
		APR:                rate + 0.003,
		RequiresGuarantor:  requiresGuarantor,
		RequiresCollateral: requiresCollateral,
		ValidityDays:       30,
		ExpirationDate:     date.AddDate(0, 0, 30),
		SpecialConditions:  conditions,
	}
}

// generateRejection 生成结构化拒绝详情
func (m *ApprovalModel) generateRejection(level RiskLevel, date time.Time) *Rejection {
	pool := rejectionReasonsByRisk[level]
	if len(pool) == 0 {
		pool = genericRejectionReasons
	}
	reason := pool[m.rng.Intn(len(pool))]

	return &Rejection{
		RejectionCode:       rejectionCode(m.rng),
		Reasons:             []string{reason},
		Details:             fmt.Sprintf("经审核，您的%s，不符合我行贷款条件。", reason),
		CanReapply:          true,
		EarliestReapplyDate: date.AddDate(0, 0, randIntRange(m.rng, 30, 90)),
	}
}

// rejectionWithReason 以给定原因生成拒绝详情，用于准入判定失败的场景
func (m *ApprovalModel) rejectionWithReason(reason string, date time.Time) *Rejection {
	if reason == "" {
		reason = genericRejectionReasons[m.rng.Intn(len(genericRejectionReasons))]
	}
	return &Rejection{
		RejectionCode:       rejectionCode(m.rng),
		Reasons:             []string{reason},
		Details:             fmt.Sprintf("经审核，%s，不符合我行贷款审批条件。", reason),
		CanReapply:          true,
		EarliestReapplyDate: date.AddDate(0, 0, randIntRange(m.rng, 30, 90)),
	}
}

// GenerateCompleteApproval 编排完整审批：流程选择、步骤、决定与摘要。
// approvalP 为申请侧算出的综合批准概率。
func (m *ApprovalModel) GenerateCompleteApproval(app *Application, customer CustomerSnapshot, params LoanParameters, risk *RiskAssessment, approvalP float64, startDate time.Time) *ApprovalProcess {
	flow := m.DetermineFlow(app)
	process := m.GenerateProcess(app, flow, customer, risk, startDate)
	decision := m.GenerateDecision(app, process, customer, params, risk, approvalP)

	// 决策卡在未完成步骤时强制收尾，保证生成的数据有终态
	if decision.Decision == "pending" {
		for i := range process.Steps {
			process.Steps[i].Status = "completed"
		}
		decision = m.GenerateDecision(app, process, customer, params, risk, approvalP)
	}

	process.Decision = decision
	process.FinalStatus = decision.Decision
	process.Summary = m.buildSummary(process, decision)
	return process
}

// buildSummary 生成审批结论的可读摘要
func (m *ApprovalModel) buildSummary(process *ApprovalProcess, decision *ApprovalDecision) string {
	if decision.Decision == "approved" && decision.Conditions != nil {
		return fmt.Sprintf("审批通过（%s流程，历时%.1f天）：批准金额%.2f元，期限%d个月，年利率%.2f%%。",
			flowNameCN(process.FlowType), process.DurationDays,
			decision.Conditions.ApprovedAmount, decision.Conditions.ApprovedTermMonths,
			decision.Conditions.InterestRate*100)
	}
	if decision.Rejection != nil {
		return fmt.Sprintf("审批未通过（%s流程）：%s。建议改善信用记录或降低负债后，于%s之后重新申请。",
			flowNameCN(process.FlowType), decision.Rejection.Reasons[0],
			decision.Rejection.EarliestReapplyDate.Format("2006-01-02"))
	}
	return fmt.Sprintf("审批处理中（%s流程）。", flowNameCN(process.FlowType))
}

func flowNameCN(flow ApprovalFlowType) string {
	switch flow {
	case FlowExpress:
		return "快速"
	case FlowEnhanced:
		return "增强"
	default:
		return "标准"
	}
}

func defaultBaseRateFor(loanType LoanType, termMonths int) float64 {
	rate, ok := defaultBaseRates[loanType]
	if !ok {
		rate = 0.045
	}
	if termMonths > 60 {
		rate += 0.003
	}
	return rate
}

func riskLevelOf(risk *RiskAssessment) RiskLevel {
	if risk == nil {
		return RiskMedium
	}
	return risk.RiskLevel
}
