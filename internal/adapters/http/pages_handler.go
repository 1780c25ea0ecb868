package http

import (
	"net"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/storefront/core/internal/application/services"
	"github.com/storefront/core/internal/infrastructure/logger"
	"github.com/storefront/core/internal/ports"
)

// PageHandler serves the informational pages and the calculator
type PageHandler struct {
	calculator ports.CalculatorService
	software   string
	logger     *logger.Logger
}

// NewPageHandler creates a new page handler
func NewPageHandler(calculator ports.CalculatorService, software string, logger *logger.Logger) *PageHandler {
	return &PageHandler{
		calculator: calculator,
		software:   software,
		logger:     logger,
	}
}

// Simple echoes the request URI back to the visitor
func (h *PageHandler) Simple(c echo.Context) error {
	uri := c.Request().RequestURI
	if uri == "" {
		uri = "not found, server operator probably goofed"
	}
	return c.Render(http.StatusOK, "simple.html", map[string]string{"URI": uri})
}

// MetaVariable is one row of the meta-variable table
type MetaVariable struct {
	Name  string
	Value string
}

// MetaTable renders the CGI meta-variables of the request with the given status
func (h *PageHandler) MetaTable(status int) echo.HandlerFunc {
	return func(c echo.Context) error {
		vars := MetaVariables(c.Request(), h.software)
		return c.Render(status, "meta.html", map[string]interface{}{"Variables": vars})
	}
}

// CalculatorPage is the data of the calculator template
type CalculatorPage struct {
	Title   string
	Message string
}

// Calculate evaluates the n1/op/n2 form. Failures are reported on the page, not as HTTP errors.
func (h *PageHandler) Calculate(c echo.Context) error {
	var req ports.CalculationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	page := CalculatorPage{}
	if err := c.Validate(&req); err != nil {
		page.Title = "Failure"
		page.Message = "Please enter all required fields."
		return c.Render(http.StatusOK, "calculator.html", page)
	}

	res, err := h.calculator.Calculate(req)
	if err != nil {
		page.Title = "Failure"
		page.Message = services.CalculationMessage(err)
		return c.Render(http.StatusOK, "calculator.html", page)
	}

	page.Title = "Success"
	page.Message = res.Expression + " = " + res.Answer
	return c.Render(http.StatusOK, "calculator.html", page)
}

// MetaVariables derives the RFC 3875 meta-variables for r, sorted by name
func MetaVariables(r *http.Request, software string) []MetaVariable {
	env := map[string]string{
		"GATEWAY_INTERFACE": "CGI/1.1",
		"SERVER_SOFTWARE":   software,
		"SERVER_PROTOCOL":   r.Proto,
		"REQUEST_METHOD":    r.Method,
		"REQUEST_URI":       r.RequestURI,
		"QUERY_STRING":      r.URL.RawQuery,
		"SCRIPT_NAME":       r.URL.Path,
		"HTTP_HOST":         r.Host,
	}

	host, port, err := net.SplitHostPort(r.Host)
	if err != nil {
		host = r.Host
		port = "80"
		if r.TLS != nil {
			port = "443"
		}
	}
	env["SERVER_NAME"] = host
	env["SERVER_PORT"] = port

	if remoteHost, remotePort, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		env["REMOTE_ADDR"] = remoteHost
		env["REMOTE_HOST"] = remoteHost
		env["REMOTE_PORT"] = remotePort
	} else if r.RemoteAddr != "" {
		env["REMOTE_ADDR"] = r.RemoteAddr
		env["REMOTE_HOST"] = r.RemoteAddr
	}

	if r.ContentLength > 0 {
		env["CONTENT_LENGTH"] = strconv.FormatInt(r.ContentLength, 10)
	}
	if ct := r.Header.Get(echo.HeaderContentType); ct != "" {
		env["CONTENT_TYPE"] = ct
	}

	for name, values := range r.Header {
		key := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
		if key == "PROXY" || key == "CONTENT_TYPE" || key == "CONTENT_LENGTH" {
			continue
		}
		env["HTTP_"+key] = strings.Join(values, ", ")
	}

	vars := make([]MetaVariable, 0, len(env))
	for name, value := range env {
		vars = append(vars, MetaVariable{Name: name, Value: value})
	}
	sort.Slice(vars, func(i, j int) bool { return vars[i].Name < vars[j].Name })
	return vars
}
