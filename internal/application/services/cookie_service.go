package services

import (
	"encoding/json"
	"fmt"

	"github.com/storefront/core/internal/domain/entities"
	"github.com/storefront/core/internal/ports"
)

// Item sets of the two JSON cart endpoints
var (
	CartCookieItems = []string{"computer", "phone", "printer"}
	ShopCookieItems = []string{"paperclip", "monalisa", "spaceshuttle"}
)

// CookieService turns JSON payloads into cookie values
type CookieService struct{}

// NewCookieService creates a new cookie service
func NewCookieService() *CookieService {
	return &CookieService{}
}

// Items extracts every named item from payload. Each must be present and a
// non-negative integer.
func (s *CookieService) Items(items []string, payload map[string]json.Number) ([]ports.CookieItem, error) {
	out := make([]ports.CookieItem, 0, len(items))
	for _, name := range items {
		raw, ok := payload[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", entities.ErrMissingField, name)
		}
		n, err := raw.Int64()
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: %s=%s", entities.ErrInvalidCount, name, raw.String())
		}
		out = append(out, ports.CookieItem{Name: name, Value: n})
	}
	return out, nil
}

// Color formats the request as a #rrggbb hex colour. Each channel must be an
// integer in [0, 255].
func (s *CookieService) Color(req ports.ColorRequest) (string, error) {
	names := []string{"red", "green", "blue"}
	var rgb [3]int64
	for i, raw := range []json.Number{req.Red, req.Green, req.Blue} {
		if raw == "" {
			return "", fmt.Errorf("%w: %s", entities.ErrMissingField, names[i])
		}
		n, err := raw.Int64()
		if err != nil || n < 0 || n > 255 {
			return "", fmt.Errorf("%w: %s=%s", entities.ErrInvalidCount, names[i], raw.String())
		}
		rgb[i] = n
	}
	return fmt.Sprintf("#%02x%02x%02x", rgb[0], rgb[1], rgb[2]), nil
}
