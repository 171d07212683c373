package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// sentinel errors shared by the stock and production code paths
var (
	ErrInvalidUnitConfiguration = errors.New("invalid unit configuration: conversion factor must be greater than zero")
	ErrProductionChainTooDeep   = errors.New("automatic production chain exceeds maximum depth")
	ErrNegativeStockRejected    = errors.New("operation would drive stock negative")
	ErrReferencedByHistory      = errors.New("record is referenced by historical transactions")
	ErrResourceBusy             = errors.New("stock is locked by another operation, try again")
)

// ShortageDetail reports one unmet input of an availability check,
// quantities in the product's base unit.
type ShortageDetail struct {
	ProductId   int             `json:"product_id"`
	ProductName string          `json:"product_name"`
	Required    decimal.Decimal `json:"required"`
	Available   decimal.Decimal `json:"available"`
	Shortage    decimal.Decimal `json:"shortage"`
}

type InsufficientStockError struct {
	BomId     int
	Shortages []ShortageDetail
}

func (e *InsufficientStockError) Error() string {
	names := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		names = append(names, fmt.Sprintf("%s (short %s)", s.ProductName, s.Shortage.String()))
	}
	return "insufficient stock: " + strings.Join(names, ", ")
}

type CircularBomDependencyError struct {
	Path []int // bom ids along the cycle, first repeats last
}

func (e *CircularBomDependencyError) Error() string {
	parts := make([]string, 0, len(e.Path))
	for _, id := range e.Path {
		parts = append(parts, fmt.Sprint(id))
	}
	return "circular recipe dependency: " + strings.Join(parts, " -> ")
}
