package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/storefront/core/internal/domain/entities"
	"github.com/storefront/core/internal/infrastructure/config"
	"github.com/storefront/core/internal/infrastructure/logger"
	"github.com/storefront/core/internal/ports"
)

// CartHandler handles the shopping cart page and the visitor API
type CartHandler struct {
	cartService  ports.CartService
	codec        ports.TokenCodec
	cfg          config.CartConfig
	cookieMaxAge int
	logger       *logger.Logger
}

// NewCartHandler creates a new cart handler
func NewCartHandler(cartService ports.CartService, codec ports.TokenCodec, cfg config.CartConfig, cookieMaxAge int, logger *logger.Logger) *CartHandler {
	return &CartHandler{
		cartService:  cartService,
		codec:        codec,
		cfg:          cfg,
		cookieMaxAge: cookieMaxAge,
		logger:       logger,
	}
}

// CartPage is the data of the cart template
type CartPage struct {
	Counts  entities.Counts
	Notice  string
	ShopURL string
}

// AddToCart applies the item/count form to the visitor's cart and renders it
func (h *CartHandler) AddToCart(c echo.Context) error {
	var form ports.CartForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	count, err := entities.ParseCount(form.Count)
	if err != nil {
		if h.cfg.StrictInput {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		h.logger.Debugw("Malformed count treated as zero", "count", form.Count)
		count = 0
	}

	req := ports.AddToCartRequest{
		VisitorID: h.visitorID(c),
		Item:      entities.ItemKind(strings.ToLower(strings.TrimSpace(form.Item))),
		Count:     count,
	}

	res, err := h.cartService.AddToCart(c.Request().Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, entities.ErrUnknownItem),
			errors.Is(err, entities.ErrInvalidDelta),
			errors.Is(err, entities.ErrVisitorNotFound):
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		case errors.Is(err, entities.ErrIDSpaceExhausted):
			h.logger.Errorw("Visitor id space exhausted", "error", err)
			return echo.NewHTTPError(http.StatusServiceUnavailable, "No visitor identifiers left")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to update cart").SetInternal(err)
	}

	if res.Created {
		token, err := h.codec.Encode(res.VisitorID)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "Failed to issue visitor cookie").SetInternal(err)
		}
		c.SetCookie(&http.Cookie{
			Name:     h.cfg.CookieName,
			Value:    token,
			Path:     "/",
			MaxAge:   h.cookieMaxAge,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	page := CartPage{Counts: res.Counts, ShopURL: h.cfg.ShopURL}
	if res.Delta.Outcome == entities.DeltaInvalid {
		page.Notice = "Your cart was not changed."
	}
	return c.Render(http.StatusOK, "cart.html", page)
}

// GetVisitor returns one visitor record as JSON
func (h *CartHandler) GetVisitor(c echo.Context) error {
	rec, err := h.cartService.GetVisitor(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, entities.ErrVisitorNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Visitor not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load visitor").SetInternal(err)
	}
	return c.JSON(http.StatusOK, rec)
}

// ListVisitors returns every visitor record as JSON
func (h *CartHandler) ListVisitors(c echo.Context) error {
	records, err := h.cartService.ListVisitors(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to load visitors").SetInternal(err)
	}
	return c.JSON(http.StatusOK, ListResponse[entities.VisitorRecord]{Data: records, Total: len(records)})
}

// visitorID decodes the visitor cookie. Missing or unverifiable cookies yield "".
func (h *CartHandler) visitorID(c echo.Context) string {
	cookie, err := c.Cookie(h.cfg.CookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}

	id, err := h.codec.Decode(cookie.Value)
	if err != nil {
		h.logger.LogSecurityEvent("invalid_visitor_cookie", c.RealIP(), map[string]interface{}{
			"error": err.Error(),
		})
		return ""
	}
	return id
}

// Request/Response types
type MessageResponse struct {
	Message string `json:"message"`
}

type ListResponse[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
}
