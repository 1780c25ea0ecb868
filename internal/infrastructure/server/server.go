package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cgi"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"

	"github.com/storefront/core/docs"
	httpHandlers "github.com/storefront/core/internal/adapters/http"
	"github.com/storefront/core/internal/application/services"
	"github.com/storefront/core/internal/infrastructure/config"
	"github.com/storefront/core/internal/infrastructure/logger"
	"github.com/storefront/core/internal/infrastructure/metrics"
	"github.com/storefront/core/internal/ports"
)

// Server represents the HTTP server
type Server struct {
	echo     *echo.Echo
	config   *config.Config
	logger   *logger.Logger
	cartRepo ports.CartRepository
	metrics  *metrics.Metrics
}

// CustomValidator wraps the validator
type CustomValidator struct {
	validator *validator.Validate
}

// Validate validates structs
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// NewValidator returns the echo validator used by the server
func NewValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

// New creates a new server instance around cartRepo
func New(cfg *config.Config, cartRepo ports.CartRepository, appLogger *logger.Logger) (*Server, error) {
	e := echo.New()

	e.Validator = NewValidator()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = cfg.App.IsDevelopment()

	renderer, err := httpHandlers.NewRenderer()
	if err != nil {
		return nil, err
	}
	e.Renderer = renderer
	e.HTTPErrorHandler = customErrorHandler(appLogger)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	ids, err := services.NewIDAllocator(cfg.Cart.IDAllocator, cfg.Cart.IDWidth, cfg.Cart.MaxAllocationAttempts)
	if err != nil {
		return nil, err
	}
	codec := services.NewTokenCodec(cfg.Cart.SigningSecret, cfg.App.Name)

	// Initialize services
	cartService := services.NewCartService(cartRepo, ids, cfg.Cart.StrictInput, m, appLogger)
	calculatorService := services.NewCalculatorService(m)
	uploadService := services.NewUploadService(cfg.Upload.Dir, cfg.Upload.MaxBytes, m, appLogger)
	cookieService := services.NewCookieService()

	// Initialize handlers
	cartHandler := httpHandlers.NewCartHandler(cartService, codec, cfg.Cart, cfg.Security.CookieMaxAge, appLogger)
	pageHandler := httpHandlers.NewPageHandler(calculatorService, fmt.Sprintf("%s/%s", cfg.App.Name, cfg.App.Version), appLogger)
	uploadHandler := httpHandlers.NewUploadHandler(uploadService, appLogger)
	cookieHandler := httpHandlers.NewCookieHandler(cookieService, cfg.Security.CookieMaxAge, appLogger)

	server := &Server{
		echo:     e,
		config:   cfg,
		logger:   appLogger,
		cartRepo: cartRepo,
		metrics:  m,
	}

	server.setupMiddleware()
	server.setupRoutes(cartHandler, pageHandler, uploadHandler, cookieHandler)

	if m != nil {
		server.setupMetrics()
	}

	return server, nil
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(cartHandler *httpHandlers.CartHandler, pageHandler *httpHandlers.PageHandler, uploadHandler *httpHandlers.UploadHandler, cookieHandler *httpHandlers.CookieHandler) {
	// Health check routes
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/ready", s.readinessCheck)

	// API documentation
	docs.SwaggerInfo.Version = s.config.App.Version
	s.echo.GET("/swagger/*", echoSwagger.WrapHandler)

	// Pages
	pages := s.echo.Group("/cgi-bin")
	pages.GET("/simple_cgi", pageHandler.Simple)
	pages.GET("/fullcgi", pageHandler.MetaTable(http.StatusOK))
	pages.GET("/teapot", pageHandler.MetaTable(http.StatusTeapot))
	pages.GET("/not_found", pageHandler.MetaTable(http.StatusNotFound))
	pages.GET("/calculator", pageHandler.Calculate)
	pages.POST("/calculator", pageHandler.Calculate)

	// Cart
	pages.GET("/shoppingcart", cartHandler.AddToCart)
	pages.POST("/shoppingcart", cartHandler.AddToCart)

	// Uploads
	pages.POST("/file_upload", uploadHandler.Upload, s.bodyLimit())

	// JSON cookie endpoints
	pages.POST("/shoppingcart2", cookieHandler.Items(services.CartCookieItems))
	pages.POST("/add_to_cart", cookieHandler.Items(services.ShopCookieItems))
	pages.POST("/save_color", cookieHandler.SaveColor)

	// Visitor API
	v1 := s.echo.Group("/api/v1")
	v1.GET("/visitors", cartHandler.ListVisitors)
	v1.GET("/visitors/:id", cartHandler.GetVisitor)
}

// setupMetrics exposes the Prometheus registry
func (s *Server) setupMetrics() {
	s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
}

// Health check handlers
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) readinessCheck(c echo.Context) error {
	if err := s.cartRepo.HealthCheck(c.Request().Context()); err != nil {
		s.logger.Warnw("Readiness check failed", "error", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": "cart_store_not_ready",
		})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ready",
		"storage": s.config.Storage.Driver,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start(address string) error {
	s.echo.Server.ReadTimeout = s.config.Server.ReadTimeout
	s.echo.Server.WriteTimeout = s.config.Server.WriteTimeout
	s.echo.Server.IdleTimeout = s.config.Server.IdleTimeout

	s.logger.Infow("Starting server", "address", address)
	if err := s.echo.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ServeCGI answers the single request described by the CGI environment.
// A non-empty path overrides the request path used for routing.
func (s *Server) ServeCGI(path string) error {
	var h http.Handler = s.echo
	if path != "" {
		h = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.URL.Path = path
			r.URL.RawPath = ""
			s.echo.ServeHTTP(w, r)
		})
	}
	return cgi.Serve(h)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Infow("Shutting down server")
	return s.echo.Shutdown(ctx)
}

// ErrorPage is the data of the error template
type ErrorPage struct {
	Code    int
	Status  string
	Message string
}

// customErrorHandler handles HTTP errors. Browsers get an HTML page, everything else JSON.
func customErrorHandler(logger *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		var (
			code = http.StatusInternalServerError
			msg  interface{}
		)

		var he *echo.HTTPError
		var ve validator.ValidationErrors
		if errors.As(err, &he) {
			code = he.Code
			msg = he.Message
			if he.Internal != nil {
				err = fmt.Errorf("%v, %v", err, he.Internal)
			}
		} else if errors.As(err, &ve) {
			code = http.StatusBadRequest
			msg = "validation failed: " + ve.Error()
		} else {
			msg = http.StatusText(code)
		}

		if code >= http.StatusInternalServerError {
			logger.WithRequestID(c.Response().Header().Get(echo.HeaderXRequestID)).
				Errorw("Internal server error", "error", err, "path", c.Request().URL.Path)
		}

		if c.Response().Committed {
			return
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else if wantsHTML(c) {
			err = c.Render(code, "error.html", ErrorPage{
				Code:    code,
				Status:  http.StatusText(code),
				Message: fmt.Sprint(msg),
			})
		} else {
			err = c.JSON(code, map[string]interface{}{"message": msg})
		}
		if err != nil {
			logger.Errorw("Error sending response", "error", err)
		}
	}
}
