package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/storefront/core/internal/infrastructure/logger"
	"github.com/storefront/core/internal/ports"
)

// CookieHandler handles the JSON endpoints that mirror their payload into cookies
type CookieHandler struct {
	cookieService ports.CookieService
	maxAge        int
	logger        *logger.Logger
}

// NewCookieHandler creates a new cookie handler
func NewCookieHandler(cookieService ports.CookieService, maxAge int, logger *logger.Logger) *CookieHandler {
	return &CookieHandler{
		cookieService: cookieService,
		maxAge:        maxAge,
		logger:        logger,
	}
}

// Items returns a handler storing each named item of the JSON body as a cookie
func (h *CookieHandler) Items(items []string) echo.HandlerFunc {
	return func(c echo.Context) error {
		payload := make(map[string]json.Number)
		dec := json.NewDecoder(c.Request().Body)
		dec.UseNumber()
		if err := dec.Decode(&payload); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON body")
		}

		values, err := h.cookieService.Items(items, payload)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}

		body := make(map[string]int64, len(values))
		for _, v := range values {
			h.setCookie(c, v.Name, strconv.FormatInt(v.Value, 10))
			body[v.Name] = v.Value
		}
		return c.JSON(http.StatusOK, body)
	}
}

// SaveColor stores the red/green/blue body as a hex colour cookie
func (h *CookieHandler) SaveColor(c echo.Context) error {
	var req ports.ColorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	hex, err := h.cookieService.Color(req)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	h.setCookie(c, "color", hex)
	return c.JSON(http.StatusOK, map[string]string{"color": hex})
}

func (h *CookieHandler) setCookie(c echo.Context, name, value string) {
	c.SetCookie(&http.Cookie{
		Name:   name,
		Value:  value,
		Path:   "/",
		MaxAge: h.maxAge,
	})
}
