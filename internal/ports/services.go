package ports

import (
	"context"
	"encoding/json"
	"io"

	"github.com/storefront/core/internal/domain/entities"
)

// CartService interface for visitor cart operations
type CartService interface {
	AddToCart(ctx context.Context, req AddToCartRequest) (*CartResult, error)
	GetVisitor(ctx context.Context, id string) (*entities.VisitorRecord, error)
	ListVisitors(ctx context.Context) ([]entities.VisitorRecord, error)
}

// CalculatorService interface for the form calculator
type CalculatorService interface {
	Calculate(req CalculationRequest) (*CalculationResult, error)
}

// UploadService interface for storing uploaded files
type UploadService interface {
	Save(ctx context.Context, filename string, content io.Reader) (string, error)
}

// CookieService interface for the JSON-to-cookie endpoints
type CookieService interface {
	Items(items []string, payload map[string]json.Number) ([]CookieItem, error)
	Color(req ColorRequest) (string, error)
}

// Request/Response Types

// Cart related types
type AddToCartRequest struct {
	// VisitorID is the decoded identifier from the request cookie, empty if none
	VisitorID string
	Item      entities.ItemKind
	Count     int
}

type CartResult struct {
	VisitorID string               `json:"visitor_id"`
	Created   bool                 `json:"created"`
	Counts    entities.Counts      `json:"counts"`
	Delta     entities.DeltaResult `json:"-"`
}

// CartForm is the raw form input of the cart page
type CartForm struct {
	Item  string `form:"item" query:"item"`
	Count string `form:"count" query:"count"`
}

// Calculator related types
type CalculationRequest struct {
	N1 string `form:"n1" query:"n1" validate:"required"`
	Op string `form:"op" query:"op" validate:"required"`
	N2 string `form:"n2" query:"n2" validate:"required"`
}

type CalculationResult struct {
	Expression string `json:"expression"`
	Answer     string `json:"answer"`
}

// Cookie related types
type CookieItem struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// Channels are JSON numbers or numeric strings
type ColorRequest struct {
	Red   json.Number `json:"red" validate:"required"`
	Green json.Number `json:"green" validate:"required"`
	Blue  json.Number `json:"blue" validate:"required"`
}
