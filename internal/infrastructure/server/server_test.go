package server

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/core/internal/adapters/repository"
	"github.com/storefront/core/internal/infrastructure/config"
	"github.com/storefront/core/internal/infrastructure/logger"
)

type testEnv struct {
	server    *Server
	storePath string
	uploadDir string
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		App:     config.AppConfig{Name: "storefront", Version: "test", Environment: "test"},
		Server:  config.ServerConfig{Port: 8080, RequestTimeout: 5 * time.Second},
		Storage: config.StorageConfig{Driver: "file", Path: filepath.Join(dir, "shoppingcart.txt")},
		Cart: config.CartConfig{
			CookieName:            "UID",
			ShopURL:               "/shop.html",
			IDAllocator:           "sequential",
			IDWidth:               6,
			MaxAllocationAttempts: 100,
		},
		Upload:   config.UploadConfig{Dir: filepath.Join(dir, "uploads"), MaxBytes: 1 << 20},
		Security: config.SecurityConfig{CookieMaxAge: 3600},
		Metrics:  config.MetricsConfig{Enabled: true},
	}
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := testConfig(dir)
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, os.MkdirAll(cfg.Upload.Dir, 0o755))

	log := logger.NewNop()
	repo := repository.NewFlatFileCartRepository(cfg.Storage.Path, log)
	srv, err := New(cfg, repo, log)
	require.NoError(t, err)

	return &testEnv{server: srv, storePath: cfg.Storage.Path, uploadDir: cfg.Upload.Dir}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func formRequest(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestShoppingCartNewVisitor(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(formRequest("/cgi-bin/shoppingcart", url.Values{"item": {"computer"}, "count": {"3"}}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "There are 3 computers, 0 phones and 0 printers in your cart.")
	assert.Contains(t, rec.Body.String(), `href="/shop.html"`)

	cookie := cookieNamed(rec, "UID")
	require.NotNil(t, cookie)
	assert.Equal(t, "100000", cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, 3600, cookie.MaxAge)

	data, err := os.ReadFile(env.storePath)
	require.NoError(t, err)
	assert.Equal(t, "100000,3,0,0\n", string(data))
}

func TestShoppingCartReturningVisitor(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, os.WriteFile(env.storePath, []byte("42,1,2,0\n"), 0o644))

	req := formRequest("/cgi-bin/shoppingcart", url.Values{"item": {"phone"}, "count": {"2"}})
	req.AddCookie(&http.Cookie{Name: "UID", Value: "42"})
	rec := env.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "There are 1 computers, 4 phones and 0 printers in your cart.")
	assert.Nil(t, cookieNamed(rec, "UID"))

	data, err := os.ReadFile(env.storePath)
	require.NoError(t, err)
	assert.Equal(t, "42,1,4,0\n", string(data))
}

func TestShoppingCartViewOnly(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, os.WriteFile(env.storePath, []byte("42,1,2,0\n"), 0o644))

	req := httptest.NewRequest(http.MethodGet, "/cgi-bin/shoppingcart", nil)
	req.AddCookie(&http.Cookie{Name: "UID", Value: "42"})
	rec := env.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "There are 1 computers, 2 phones and 0 printers in your cart.")
	assert.NotContains(t, rec.Body.String(), "Your cart was not changed.")
}

func TestShoppingCartNegativeCountRejected(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, os.WriteFile(env.storePath, []byte("42,1,2,0\n"), 0o644))

	req := formRequest("/cgi-bin/shoppingcart", url.Values{"item": {"phone"}, "count": {"-5"}})
	req.AddCookie(&http.Cookie{Name: "UID", Value: "42"})
	rec := env.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "There are 1 computers, 2 phones and 0 printers in your cart.")
	assert.Contains(t, rec.Body.String(), "Your cart was not changed.")
}

func TestShoppingCartStrictInput(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) { cfg.Cart.StrictInput = true })

	rec := env.do(formRequest("/cgi-bin/shoppingcart", url.Values{"item": {"toaster"}, "count": {"1"}}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(formRequest("/cgi-bin/shoppingcart", url.Values{"item": {"phone"}, "count": {"lots"}}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	_, err := os.Stat(env.storePath)
	assert.True(t, os.IsNotExist(err))
}

func TestShoppingCartSignedCookie(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) { cfg.Cart.SigningSecret = "s3cret" })

	rec := env.do(formRequest("/cgi-bin/shoppingcart", url.Values{"item": {"printer"}, "count": {"1"}}))
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := cookieNamed(rec, "UID")
	require.NotNil(t, cookie)
	assert.NotEqual(t, "100000", cookie.Value)

	req := formRequest("/cgi-bin/shoppingcart", url.Values{"item": {"printer"}, "count": {"1"}})
	req.AddCookie(cookie)
	rec = env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "0 phones and 2 printers")

	// A forged cookie starts a fresh cart
	req = formRequest("/cgi-bin/shoppingcart", url.Values{"item": {"printer"}, "count": {"1"}})
	req.AddCookie(&http.Cookie{Name: "UID", Value: "100000"})
	rec = env.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "0 phones and 1 printers")
	assert.NotNil(t, cookieNamed(rec, "UID"))
}

func TestCalculatorPage(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/cgi-bin/calculator?n1=7&op=div&n2=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<title>Success</title>")
	assert.Contains(t, rec.Body.String(), "7 / 2 = 3.5")

	rec = env.do(formRequest("/cgi-bin/calculator", url.Values{"n1": {"1"}, "op": {"div"}, "n2": {"0"}}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<title>Failure</title>")
	assert.Contains(t, rec.Body.String(), "Division by zero.")

	rec = env.do(httptest.NewRequest(http.MethodGet, "/cgi-bin/calculator?n1=7", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Please enter all required fields.")
}

func TestMetaPages(t *testing.T) {
	env := newTestEnv(t, nil)

	cases := []struct {
		path   string
		status int
	}{
		{"/cgi-bin/fullcgi", http.StatusOK},
		{"/cgi-bin/teapot", http.StatusTeapot},
		{"/cgi-bin/not_found", http.StatusNotFound},
	}

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, tc.path+"?a=b", nil)
		req.Header.Set("X-Custom", "yes")
		rec := env.do(req)

		assert.Equal(t, tc.status, rec.Code, tc.path)
		body := rec.Body.String()
		assert.Contains(t, body, "<td>GATEWAY_INTERFACE</td><td>CGI/1.1</td>")
		assert.Contains(t, body, "<td>QUERY_STRING</td><td>a=b</td>")
		assert.Contains(t, body, "<td>HTTP_X_CUSTOM</td><td>yes</td>")
	}
}

func TestSimplePage(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/cgi-bin/simple_cgi?x=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "This is the URL you requested: /cgi-bin/simple_cgi?x=1")
}

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/cgi-bin/file_upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestFileUpload(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(uploadRequest(t, "notes.txt", "hello"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "was uploaded successfully")

	data, err := os.ReadFile(filepath.Join(env.uploadDir, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	rec = env.do(uploadRequest(t, "notes.txt", "again"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, rec.Body.String())

	data, err = os.ReadFile(filepath.Join(env.uploadDir, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestFileUploadTooLarge(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) { cfg.Upload.MaxBytes = 8 })

	rec := env.do(uploadRequest(t, "big.bin", "0123456789abcdef"))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	_, err := os.Stat(filepath.Join(env.uploadDir, "big.bin"))
	assert.True(t, os.IsNotExist(err))
}

func jsonRequest(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestCookieEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(jsonRequest("/cgi-bin/shoppingcart2", `{"computer":1,"phone":0,"printer":7}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"computer":1,"phone":0,"printer":7}`, rec.Body.String())
	require.NotNil(t, cookieNamed(rec, "printer"))
	assert.Equal(t, "7", cookieNamed(rec, "printer").Value)

	rec = env.do(jsonRequest("/cgi-bin/add_to_cart", `{"paperclip":2,"monalisa":1}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, cookieNamed(rec, "paperclip"))

	rec = env.do(jsonRequest("/cgi-bin/add_to_cart", `{"paperclip":2,"monalisa":1,"spaceshuttle":0}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", cookieNamed(rec, "monalisa").Value)

	rec = env.do(jsonRequest("/cgi-bin/shoppingcart2", `not json`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaveColor(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(jsonRequest("/cgi-bin/save_color", `{"red":255,"green":0,"blue":16}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"color":"#ff0010"}`, rec.Body.String())
	require.NotNil(t, cookieNamed(rec, "color"))
	assert.Equal(t, "#ff0010", cookieNamed(rec, "color").Value)

	// Numeric strings are accepted like numbers
	rec = env.do(jsonRequest("/cgi-bin/save_color", `{"red":"12","green":"0","blue":"255"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"color":"#0c00ff"}`, rec.Body.String())

	rec = env.do(jsonRequest("/cgi-bin/save_color", `{"red":256,"green":0,"blue":0}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(jsonRequest("/cgi-bin/save_color", `{"red":"red","green":0,"blue":0}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(jsonRequest("/cgi-bin/save_color", `{"red":1,"green":2}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVisitorAPI(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, os.WriteFile(env.storePath, []byte("42,1,2,0\n7,0,0,5\n"), 0o644))

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/visitors", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[
		{"id":"42","counts":{"computers":1,"phones":2,"printers":0}},
		{"id":"7","counts":{"computers":0,"phones":0,"printers":5}}
	],"total":2}`, rec.Body.String())

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/visitors/nobody", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"Visitor not found"}`, rec.Body.String())
}

func TestErrorPageNegotiation(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	rec := env.do(req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h1>404 Not Found</h1>")

	rec = env.do(httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"message":"Not Found"}`, rec.Body.String())
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"storage":"file"`)

	env.do(formRequest("/cgi-bin/shoppingcart", url.Values{"item": {"phone"}, "count": {"1"}}))

	rec = env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `storefront_cart_updates_total{item="phone",outcome="applied"} 1`)
	assert.Contains(t, rec.Body.String(), "storefront_visitors_created_total 1")
}

func TestRateLimiter(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Security.RateLimitRequests = 2
		cfg.Security.RateLimitWindow = time.Hour
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
