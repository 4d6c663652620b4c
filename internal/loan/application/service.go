package application

import (
	"github.com/ww-care/bank-data-simulation/internal/loan/domain"
	"github.com/ww-care/bank-data-simulation/pkg/config"
	"github.com/ww-care/bank-data-simulation/pkg/metrics"
)

// Service 贷款生成应用服务门面，聚合命令与查询
type Service struct {
	Command *LoanCommandService
	Query   *LoanQueryService
}

// NewService 创建应用服务
func NewService(
	loans domain.LoanRepository,
	batches domain.BatchRepository,
	progress domain.BatchProgressStore,
	publisher domain.EventPublisher,
	collector metrics.MetricsCollector,
	cfg config.GeneratorConfig,
) *Service {
	return &Service{
		Command: NewLoanCommandService(loans, batches, progress, publisher, collector, cfg),
		Query:   NewLoanQueryService(loans, batches, progress),
	}
}
