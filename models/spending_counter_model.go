package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	PeriodDay   = "day"
	PeriodMonth = "month"
)

// SpendingCounter accumulates a child's approved purchase spend for one
// period. The counter is incremented in the same transaction that records
// an approval, so two concurrent purchases cannot both slip under a limit.
// PeriodKey is "2006-01-02" for days and "2006-01" for months.
type SpendingCounter struct {
	ID         uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	ChildID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_child_period" json:"child_id"`
	PeriodKind string          `gorm:"size:10;not null;uniqueIndex:idx_child_period" json:"period_kind"`
	PeriodKey  string          `gorm:"size:10;not null;uniqueIndex:idx_child_period" json:"period_key"`
	Consumed   decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0.00" json:"consumed"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func DayKey(t time.Time) string   { return t.Format("2006-01-02") }
func MonthKey(t time.Time) string { return t.Format("2006-01") }
