package models

import (
	"errors"
	"strconv"
)

type Precision string

const (
	PrecisionZero  Precision = "0"
	PrecisionOne   Precision = "1"
	PrecisionTwo   Precision = "2"
	PrecisionThree Precision = "3"
	PrecisionFour  Precision = "4"
)

func (p *Precision) UnmarshalJSON(b []byte) error {
	str, err := strconv.Unquote(string(b))
	if err != nil {
		return errors.New("precision must be string")
	}

	switch str {
	case "0":
		*p = PrecisionZero
	case "1":
		*p = PrecisionOne
	case "2":
		*p = PrecisionTwo
	case "3":
		*p = PrecisionThree
	case "4":
		*p = PrecisionFour
	default:
		return errors.New("invalid precision")
	}
	return nil
}

type ProductType string

const (
	ProductTypeRaw          ProductType = "R"
	ProductTypeSemiFinished ProductType = "S"
	ProductTypeFinished     ProductType = "F"
)

func (t *ProductType) UnmarshalJSON(b []byte) error {
	str, err := strconv.Unquote(string(b))
	if err != nil {
		return errors.New("product type must be string")
	}
	switch str {
	case "R":
		*t = ProductTypeRaw
	case "S":
		*t = ProductTypeSemiFinished
	case "F":
		*t = ProductTypeFinished
	default:
		return errors.New("invalid product type")
	}
	return nil
}

// derived from current_stock vs min_stock, never stored
type StockStatus string

const (
	StockStatusInStock    StockStatus = "In Stock"
	StockStatusLowStock   StockStatus = "Low Stock"
	StockStatusOutOfStock StockStatus = "Out of Stock"
)

type BomType string

const (
	BomTypeProduction BomType = "P"
	BomTypeMenu       BomType = "M"
)

func (t *BomType) UnmarshalJSON(b []byte) error {
	str, err := strconv.Unquote(string(b))
	if err != nil {
		return errors.New("bom type must be string")
	}
	switch str {
	case "P":
		*t = BomTypeProduction
	case "M":
		*t = BomTypeMenu
	default:
		return errors.New("invalid bom type")
	}
	return nil
}

type ProductionMode string

const (
	ProductionModeManual    ProductionMode = "manual"
	ProductionModeAutomatic ProductionMode = "automatic"
)

func (m *ProductionMode) UnmarshalJSON(b []byte) error {
	str, err := strconv.Unquote(string(b))
	if err != nil {
		return errors.New("production mode must be string")
	}
	switch str {
	case "manual":
		*m = ProductionModeManual
	case "automatic":
		*m = ProductionModeAutomatic
	default:
		return errors.New("invalid production mode")
	}
	return nil
}

type BomItemType string

const (
	BomItemTypeInput  BomItemType = "input"
	BomItemTypeOutput BomItemType = "output"
)

func (t *BomItemType) UnmarshalJSON(b []byte) error {
	str, err := strconv.Unquote(string(b))
	if err != nil {
		return errors.New("item type must be string")
	}
	switch str {
	case "input":
		*t = BomItemTypeInput
	case "output":
		*t = BomItemTypeOutput
	default:
		return errors.New("invalid item type")
	}
	return nil
}

type StockTransactionType string

const (
	StockTransactionTypeIn            StockTransactionType = "IN"
	StockTransactionTypeOut           StockTransactionType = "OUT"
	StockTransactionTypeAdd           StockTransactionType = "Add"
	StockTransactionTypeDeduct        StockTransactionType = "Deduct"
	StockTransactionTypeProductionIn  StockTransactionType = "Production_IN"
	StockTransactionTypeProductionOut StockTransactionType = "Production_OUT"
	StockTransactionTypeAdjustment    StockTransactionType = "Adjustment"
)

func (t *StockTransactionType) UnmarshalJSON(b []byte) error {
	str, err := strconv.Unquote(string(b))
	if err != nil {
		return errors.New("transaction type must be string")
	}
	switch str {
	case "IN":
		*t = StockTransactionTypeIn
	case "OUT":
		*t = StockTransactionTypeOut
	case "Add":
		*t = StockTransactionTypeAdd
	case "Deduct":
		*t = StockTransactionTypeDeduct
	case "Production_IN":
		*t = StockTransactionTypeProductionIn
	case "Production_OUT":
		*t = StockTransactionTypeProductionOut
	case "Adjustment":
		*t = StockTransactionTypeAdjustment
	default:
		return errors.New("invalid transaction type")
	}
	return nil
}

type ProductionRunStatus string

const (
	ProductionRunStatusCompleted ProductionRunStatus = "Completed"
	ProductionRunStatusFailed    ProductionRunStatus = "Failed"
)
