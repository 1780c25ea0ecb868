package entities

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Common errors
var (
	ErrVisitorNotFound  = errors.New("visitor not found")
	ErrDuplicateVisitor = errors.New("visitor already exists")
	ErrCorruptStore     = errors.New("corrupt cart store")
	ErrInvalidCount     = errors.New("invalid count")
	ErrUnknownItem      = errors.New("unknown item kind")
	ErrInvalidDelta     = errors.New("invalid delta")
	ErrIDSpaceExhausted = errors.New("visitor identifier space exhausted")
	ErrInvalidVisitorID = errors.New("invalid visitor identifier")
	ErrFileExists       = errors.New("file already exists")
	ErrInvalidFilename  = errors.New("invalid filename")
	ErrFileTooLarge     = errors.New("file too large")
	ErrMissingField     = errors.New("missing required field")
	ErrInvalidOperand   = errors.New("invalid operand")
	ErrInvalidOperator  = errors.New("invalid operator")
	ErrDivisionByZero   = errors.New("division by zero")
)

// ItemKind names one of the counters held by a visitor record
type ItemKind string

const (
	ItemComputer ItemKind = "computer"
	ItemPhone    ItemKind = "phone"
	ItemPrinter  ItemKind = "printer"
)

// ItemKinds lists the recognised item kinds in counter order
var ItemKinds = []ItemKind{ItemComputer, ItemPhone, ItemPrinter}

// IsValid reports whether the kind is part of the closed item set
func (k ItemKind) IsValid() bool {
	switch k {
	case ItemComputer, ItemPhone, ItemPrinter:
		return true
	}
	return false
}

// Counts holds the three cart counters of a visitor
type Counts struct {
	Computers int `json:"computers" db:"computers"`
	Phones    int `json:"phones" db:"phones"`
	Printers  int `json:"printers" db:"printers"`
}

// Get returns the counter for kind, or false for an unknown kind
func (c Counts) Get(kind ItemKind) (int, bool) {
	switch kind {
	case ItemComputer:
		return c.Computers, true
	case ItemPhone:
		return c.Phones, true
	case ItemPrinter:
		return c.Printers, true
	}
	return 0, false
}

func (c *Counts) set(kind ItemKind, v int) {
	switch kind {
	case ItemComputer:
		c.Computers = v
	case ItemPhone:
		c.Phones = v
	case ItemPrinter:
		c.Printers = v
	}
}

// Valid reports whether every counter is non-negative
func (c Counts) Valid() bool {
	return c.Computers >= 0 && c.Phones >= 0 && c.Printers >= 0
}

// VisitorRecord represents the persisted cart of one visitor
type VisitorRecord struct {
	ID     string `json:"id" db:"id"`
	Counts Counts `json:"counts"`
}

// DeltaOutcome classifies the result of applying a delta to a record
type DeltaOutcome string

const (
	DeltaApplied DeltaOutcome = "applied"
	DeltaIgnored DeltaOutcome = "ignored"
	DeltaInvalid DeltaOutcome = "invalid"
)

// DeltaResult reports what ApplyDelta did.
// Err is set for DeltaIgnored and DeltaInvalid so callers can pick a policy.
type DeltaResult struct {
	Outcome DeltaOutcome
	Kind    ItemKind
	Count   int
	Err     error
}

// ParseCount parses the count form field. An empty value is zero.
func ParseCount(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCount, raw)
	}
	return n, nil
}
