package models

import (
	"context"
	"fmt"
	"time"

	"github.com/mmdatafocus/mkitchen_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProductionNumberSeries is a per-business counter row. It is locked
// FOR UPDATE inside the production transaction so numbers stay unique
// and gap-free under concurrency.
type ProductionNumberSeries struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"uniqueIndex;not null" json:"business_id"`
	Prefix     string    `gorm:"size:10;not null;default:'PRD'" json:"prefix"`
	NextNumber int       `gorm:"not null;default:1" json:"next_number"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func CreateDefaultProductionNumberSeries(tx *gorm.DB, ctx context.Context, businessId string) (*ProductionNumberSeries, error) {

	series := ProductionNumberSeries{
		BusinessId: businessId,
		Prefix:     "PRD",
		NextNumber: 1,
	}
	if err := tx.WithContext(ctx).Create(&series).Error; err != nil {
		return nil, err
	}
	return &series, nil
}

// nextProductionNumber reserves the next number within the caller's
// transaction. Locks the series row so concurrent runs serialize here.
func nextProductionNumber(tx *gorm.DB, businessId string) (string, error) {

	var series ProductionNumberSeries
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ?", businessId).
		First(&series).Error
	if err != nil {
		return "", utils.ErrorRecordNotFound
	}

	number := fmt.Sprintf("%s-%06d", series.Prefix, series.NextNumber)

	err = tx.Model(&series).UpdateColumn("next_number", series.NextNumber+1).Error
	if err != nil {
		return "", err
	}
	return number, nil
}
