package domain

import "errors"

// 领域校验错误。单笔贷款生成失败时由批量编排捕获并计入失败数，不中断整批。
var (
	// ErrInvalidDateRange 开始日期不早于结束日期
	ErrInvalidDateRange = errors.New("start date must be before end date")
	// ErrInvalidAmount 贷款金额非正
	ErrInvalidAmount = errors.New("loan amount must be positive")
	// ErrInvalidTerm 贷款期限非正
	ErrInvalidTerm = errors.New("loan term months must be positive")
	// ErrNotApproved 仅批准的申请可以生成贷款记录
	ErrNotApproved = errors.New("loan record requires an approved application")
	// ErrTerminalStatus 终态不允许再迁移
	ErrTerminalStatus = errors.New("status is terminal, no further transitions allowed")
)
