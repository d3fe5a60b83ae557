package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReportRun records one generated report for auditing.
type ReportRun struct {
	ID             uuid.UUID
	GeneratedAt    time.Time
	Format         string
	ChartMode      string
	Filename       string
	SizeBytes      int
	Rows           int
	PeriodFrom     time.Time
	PeriodTo       time.Time
	Latest         decimal.Decimal
	DayChangePct   decimal.Decimal
	WeekChangePct  decimal.Decimal
	MonthChangePct decimal.Decimal
}
