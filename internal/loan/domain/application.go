package domain

import (
	"fmt"
	"math/rand"
	"sort"
	"time"
)

// 申请渠道
const (
	ChannelOnlineBanking = "online_banking"
	ChannelMobileApp     = "mobile_app"
	ChannelBranch        = "branch"
	ChannelThirdParty    = "third_party"
)

// defaultChannelWeights 默认渠道分布，可由配置覆盖
var defaultChannelWeights = map[string]float64{
	ChannelOnlineBanking: 0.30,
	ChannelMobileApp:     0.35,
	ChannelBranch:        0.20,
	ChannelThirdParty:    0.15,
}

// baseDocuments 所有贷款都需要的基础材料
var baseDocuments = []string{"身份证明", "收入证明", "个人征信报告"}

// typeExtraDocuments 贷款类型附加材料
var typeExtraDocuments = map[LoanType][]string{
	LoanTypeMortgage:      {"房产信息", "购房合同", "首付款证明", "房产评估报告"},
	LoanTypeCar:           {"购车协议", "驾驶证", "首付款证明"},
	LoanTypeEducation:     {"学生证或录取通知书", "学费单"},
	LoanTypeSmallBusiness: {"营业执照", "财务报表", "业务计划书", "税务登记证"},
}

// typePurposes 贷款类型用途库
var typePurposes = map[LoanType][]string{
	LoanTypeMortgage:      {"购买首套住房", "购买二套住房", "住房装修", "置换住房"},
	LoanTypeCar:           {"购买新车", "购买二手车", "汽车置换"},
	LoanTypePersonal:      {"日常消费", "大额消费", "医疗支出", "旅游度假", "婚庆支出", "家庭装修", "偿还其他债务"},
	LoanTypeEducation:     {"本科学费", "研究生学费", "出国留学", "职业培训"},
	LoanTypeSmallBusiness: {"经营周转", "扩大生产", "购买设备", "增加库存", "支付员工工资"},
}

// processingDaysSpec 各类型预期处理时间
type processingDaysSpec struct {
	lo, hi, mean int
}

var typeProcessingDays = map[LoanType]processingDaysSpec{
	LoanTypeMortgage:      {5, 15, 8},
	LoanTypeCar:           {2, 7, 4},
	LoanTypePersonal:      {1, 5, 2},
	LoanTypeSmallBusiness: {3, 10, 6},
	LoanTypeEducation:     {2, 7, 4},
}

var defaultProcessingDays = processingDaysSpec{1, 7, 3}

// previousRejectionReasons 历史申请的拒绝原因库
var previousRejectionReasons = []string{
	"信用评分不足",
	"收入证明不足以支持贷款额度",
	"债务收入比过高",
	"申请材料不完整或有误",
	"申请人当前负债水平过高",
}

// approvalProbabilityBase 各风险等级的基础批准概率
var approvalProbabilityBase = map[RiskLevel]float64{
	RiskLow:      0.95,
	RiskMedium:   0.75,
	RiskHigh:     0.40,
	RiskVeryHigh: 0.15,
}

// ApplicationModel 贷款申请模型：渠道选择、材料生成、申请状态机模拟
type ApplicationModel struct {
	rng            *rand.Rand
	seq            *idSequence
	channelWeights map[string]float64
}

// NewApplicationModel 创建申请模型。channelWeights 为空时使用默认分布。
func NewApplicationModel(rng *rand.Rand, channelWeights map[string]float64) *ApplicationModel {
	if len(channelWeights) == 0 {
		channelWeights = defaultChannelWeights
	}
	return &ApplicationModel{
		rng:            rng,
		seq:            newIDSequence(rng),
		channelWeights: channelWeights,
	}
}

// SelectChannel 按年龄、VIP、企业属性调整渠道权重后加权选择
func (m *ApplicationModel) SelectChannel(customer CustomerSnapshot) string {
	weights := make(map[string]float64, len(m.channelWeights))
	for k, v := range m.channelWeights {
		weights[k] = v
	}

	if customer.Age < 30 {
		weights[ChannelMobileApp] *= 1.3
		weights[ChannelOnlineBanking] *= 1.2
		weights[ChannelBranch] *= 0.7
	} else if customer.Age > 55 {
		weights[ChannelBranch] *= 1.5
		weights[ChannelMobileApp] *= 0.7
	}
	if customer.IsVIP {
		weights[ChannelBranch] *= 1.4
	}
	if customer.IsCorporate {
		weights[ChannelBranch] *= 1.3
		weights[ChannelOnlineBanking] *= 1.2
		weights[ChannelMobileApp] *= 0.8
	}

	channels := []string{ChannelOnlineBanking, ChannelMobileApp, ChannelBranch, ChannelThirdParty}
	ws := make([]float64, len(channels))
	for i, c := range channels {
		ws[i] = weights[c]
	}
	return weightedChoice(m.rng, channels, ws)
}

// RequiredDocuments 返回贷款类型所需的材料清单
func (m *ApplicationModel) RequiredDocuments(loanType LoanType) []string {
	docs := make([]string, 0, 7)
	docs = append(docs, baseDocuments...)
	docs = append(docs, typeExtraDocuments[loanType]...)
	return docs
}

// GenerateApplication 生成申请单：渠道、材料及其状态、用途、预期处理时间、
// 历史申请与备注。状态机推进由 SimulateProcessing 完成。
func (m *ApplicationModel) GenerateApplication(customer CustomerSnapshot, params LoanParameters, submitDate time.Time) *Application {
	appID := applicationID(submitDate, m.seq.Next())

	docs := m.RequiredDocuments(params.LoanType)
	docStatus := make(map[string]DocumentStatus, len(docs))
	for _, doc := range docs {
		docStatus[doc] = weightedChoice(m.rng,
			[]DocumentStatus{DocSubmitted, DocPending, DocIssue},
			[]float64{0.85, 0.10, 0.05})
	}

	days := m.expectedProcessingDays(params.LoanType, customer.IsVIP)

	purposes := typePurposes[params.LoanType]
	if len(purposes) == 0 {
		purposes = []string{"个人消费"}
	}

	app := &Application{
		ApplicationID:        appID,
		CustomerID:           customer.CustomerID,
		LoanType:             params.LoanType,
		Amount:               params.Amount,
		TermMonths:           params.TermMonths,
		Channel:              m.SelectChannel(customer),
		Purpose:              purposes[m.rng.Intn(len(purposes))],
		SubmitDate:           submitDate,
		Status:               AppStatusSubmitted,
		StatusDate:           submitDate,
		Documents:            docs,
		DocumentStatus:       docStatus,
		ExpectedDays:         days,
		ExpectedDecisionDate: submitDate.AddDate(0, 0, days),
		IsFirstApplication:   m.rng.Float64() < 0.7,
		IsVIP:                customer.IsVIP,
	}

	if !app.IsFirstApplication {
		app.PreviousApplications = m.generatePreviousApplications(submitDate, params.Amount)
	}

	if customer.IsVIP {
		app.Notes = append(app.Notes, "VIP客户申请，优先处理。")
	}
	if customer.CreditScore < 600 {
		app.Notes = append(app.Notes, "客户信用评分偏低，需重点关注收入证明和负债情况。")
	}
	if params.Amount > 500000 {
		app.Notes = append(app.Notes, "大额贷款申请，需多人审核。")
	}

	m.appendEvent(app, "application_submitted", submitDate, "customer", "public",
		fmt.Sprintf("客户通过%s提交贷款申请", app.Channel))

	return app
}

// generatePreviousApplications 生成 1-3 条历史申请
func (m *ApplicationModel) generatePreviousApplications(submitDate time.Time, amount float64) []PreviousApplication {
	count := 1 + m.rng.Intn(3)
	prev := make([]PreviousApplication, 0, count)
	for i := 0; i < count; i++ {
		daysAgo := randIntRange(m.rng, 60, 365)
		date := submitDate.AddDate(0, 0, -daysAgo)
		status := weightedChoice(m.rng,
			[]string{"rejected", "cancelled", "approved_not_taken"},
			[]float64{0.5, 0.3, 0.2})
		p := PreviousApplication{
			ApplicationID: applicationID(date, m.seq.Next()),
			Date:          date,
			Status:        status,
			Amount:        roundTo(amount*uniform(m.rng, 0.8, 1.2), 100),
		}
		if status == "rejected" {
			p.Reason = previousRejectionReasons[m.rng.Intn(len(previousRejectionReasons))]
		}
		prev = append(prev, p)
	}
	return prev
}

// expectedProcessingDays 预期处理天数，VIP 客户缩短至 70%
func (m *ApplicationModel) expectedProcessingDays(loanType LoanType, isVIP bool) int {
	spec, ok := typeProcessingDays[loanType]
	if !ok {
		spec = defaultProcessingDays
	}
	days := int(boundedNormal(m.rng, float64(spec.lo), float64(spec.hi), float64(spec.mean)) + 0.5)
	if isVIP {
		days = int(float64(days) * 0.7)
	}
	if days < spec.lo {
		days = spec.lo
	}
	if isVIP && days < 1 {
		days = 1
	}
	return days
}

// SimulateProcessing 推进申请状态机至待决定或取消。
// 路径：submitted → (材料不全时 additional_documents_required 补件回路)
// → under_review → (高风险时 risk_assessment) → pending_decision。
// 返回状态机走到的最后日期，供审批流程衔接。
func (m *ApplicationModel) SimulateProcessing(app *Application, risk *RiskAssessment) time.Time {
	app.InitialRisk = risk
	current := app.SubmitDate

	// 补件回路
	if app.IncompleteDocuments() > 0 && m.rng.Float64() < 0.9 {
		requestDate := current.AddDate(0, 0, m.rng.Intn(4))
		m.transition(app, AppStatusDocsRequired, requestDate)
		m.appendEvent(app, "documents_requested", requestDate, "system", "public",
			fmt.Sprintf("需补充 %d 份材料，预计 %s 前提交", app.IncompleteDocuments(),
				requestDate.AddDate(0, 0, 5).Format("2006-01-02")))

		waited := 0
		for app.IncompleteDocuments() > 0 {
			wait := randIntRange(m.rng, 3, 10)
			waited += wait
			current = requestDate.AddDate(0, 0, waited)

			if m.rng.Float64() < 0.8 {
				// 一次性补齐
				for doc := range app.DocumentStatus {
					app.DocumentStatus[doc] = DocSubmitted
				}
			} else {
				for doc, st := range app.DocumentStatus {
					if st != DocSubmitted && m.rng.Float64() < 0.5 {
						app.DocumentStatus[doc] = DocSubmitted
					}
				}
			}
			m.appendEvent(app, "documents_resubmitted", current, "customer", "public", "客户补充提交申请材料")

			if app.IncompleteDocuments() > 0 && waited > 15 {
				if m.rng.Float64() < 0.7 {
					m.transition(app, AppStatusCancelled, current)
					app.CancelReason = "超期未补齐申请材料"
					m.appendEvent(app, "application_cancelled", current, "system", "public", app.CancelReason)
					m.finalizeEvents(app)
					return current
				}
				// 剩余材料视为最终补齐
				for doc := range app.DocumentStatus {
					app.DocumentStatus[doc] = DocSubmitted
				}
			}
		}
	} else {
		current = current.AddDate(0, 0, m.rng.Intn(2))
	}

	// 审核
	m.transition(app, AppStatusUnderReview, current)
	m.appendEvent(app, "review_started", current, "credit_officer", "internal", "进入人工审核")

	reviewDays := app.ExpectedDays
	if risk != nil && (risk.RiskLevel == RiskHigh || risk.RiskLevel == RiskVeryHigh) {
		reviewDays += 2
	}
	if app.IsVIP {
		reviewDays -= 2
		if reviewDays < 2 {
			reviewDays = 2
		}
	}
	current = current.AddDate(0, 0, reviewDays)

	// 高风险申请进入专项风险评估
	if risk != nil && (risk.RiskLevel == RiskHigh || risk.RiskLevel == RiskVeryHigh) && m.rng.Float64() < 0.8 {
		m.transition(app, AppStatusRiskAssessment, current)
		assessor := assessorID(m.rng)
		m.appendEvent(app, "risk_assessment_started", current, assessor, "internal", "启动专项风险评估")

		current = current.AddDate(0, 0, randIntRange(m.rng, 1, 3))
		risk.AssessorID = assessor
		risk.AssessedAt = current
		m.appendEvent(app, "risk_assessment_completed", current, assessor, "internal",
			fmt.Sprintf("风险等级 %s，违约概率 %.1f%%", risk.RiskLevel, risk.DefaultProbability*100))
	}

	m.transition(app, AppStatusPendingDecision, current)
	current = current.AddDate(0, 0, randIntRange(m.rng, 1, 2))
	m.appendEvent(app, "decision_pending", current, "system", "internal", "等待审批决定")

	m.finalizeEvents(app)
	return current
}

// ApprovalProbability 综合批准概率：风险等级基础值 × 材料完整度 × VIP ×
// 历史拒绝 × 大额系数，限制在 [0.05, 0.98]。
func (m *ApplicationModel) ApprovalProbability(app *Application, level RiskLevel) float64 {
	p, ok := approvalProbabilityBase[level]
	if !ok {
		p = 0.5
	}

	if total := len(app.Documents); total > 0 {
		p *= 1 - float64(app.IncompleteDocuments())/float64(total)*0.5
	}
	if app.IsVIP {
		p *= 1.2
	}

	rejected := 0
	for _, prev := range app.PreviousApplications {
		if prev.Status == "rejected" {
			rejected++
		}
	}
	if rejected > 0 {
		factor := 1 - float64(rejected)*0.2
		if factor < 0.6 {
			factor = 0.6
		}
		p *= factor
	}

	if app.Amount > 500000 {
		p *= 0.9
	}

	return clampFloat(p, 0.05, 0.98)
}

// MarkDecision 将审批结论回写到申请状态
func (m *ApplicationModel) MarkDecision(app *Application, decision *ApprovalDecision) {
	switch decision.Decision {
	case "approved":
		m.transition(app, AppStatusApproved, decision.Date)
		m.appendEvent(app, "application_approved", decision.Date, "system", "public", "贷款申请已批准")
	case "rejected":
		m.transition(app, AppStatusRejected, decision.Date)
		m.appendEvent(app, "application_rejected", decision.Date, "system", "public", "贷款申请未通过审批")
	}
	m.finalizeEvents(app)
}

func (m *ApplicationModel) transition(app *Application, to ApplicationStatus, at time.Time) {
	app.Status = to
	app.StatusDate = at
}

func (m *ApplicationModel) appendEvent(app *Application, eventType string, at time.Time, actor, visibility, detail string) {
	app.Events = append(app.Events, TrackingEvent{
		EventType:  eventType,
		EventDate:  at,
		Actor:      actor,
		Visibility: visibility,
		Detail:     detail,
	})
}

// finalizeEvents 按时间排序并重新编号事件
func (m *ApplicationModel) finalizeEvents(app *Application) {
	sort.SliceStable(app.Events, func(i, j int) bool {
		return app.Events[i].EventDate.Before(app.Events[j].EventDate)
	})
	for i := range app.Events {
		app.Events[i].EventID = eventID(app.ApplicationID, i+1)
	}
}
