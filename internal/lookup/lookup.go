// Package lookup fetches product details from the Open Food Facts API.
package lookup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the Open Food Facts v2 API root.
	DefaultBaseURL = "https://world.openfoodfacts.org/api/v2"

	// DefaultLocale is the language requested for localized fields.
	DefaultLocale = "fr"

	// DefaultTimeout bounds one lookup.
	DefaultTimeout = 10 * time.Second

	// Unavailable replaces localized fields the product does not have.
	Unavailable = "Non disponible"

	// UnspecifiedQuantity replaces a missing quantity.
	UnspecifiedQuantity = "Non spécifiée"
)

var (
	// ErrNotFound is returned when the API does not know the barcode.
	ErrNotFound = errors.New("product not found")

	// ErrInvalidBarcode is returned for an empty barcode.
	ErrInvalidBarcode = errors.New("invalid barcode")

	// ErrUnavailable is returned when the API cannot be reached or answers
	// with an unexpected status.
	ErrUnavailable = errors.New("product lookup unavailable")
)

// Nutriments holds values per 100g. Nil means the product has no value.
type Nutriments struct {
	EnergyKcal    *float64 `json:"energy-kcal_100g"`
	Proteins      *float64 `json:"proteins_100g"`
	Carbohydrates *float64 `json:"carbohydrates_100g"`
	Fat           *float64 `json:"fat_100g"`
}

// Product is the subset of an Open Food Facts product the application uses.
type Product struct {
	Name        string     `json:"name"`
	Brands      string     `json:"brands"`
	Code        string     `json:"code"`
	Nutriscore  *string    `json:"nutriscore"`
	Ingredients string     `json:"ingredients"`
	ImageURL    string     `json:"imageUrl"`
	Nutriments  Nutriments `json:"nutriments"`
	Quantity    string     `json:"quantity"`
	Categories  string     `json:"categories"`
	Labels      string     `json:"labels"`
	Origins     string     `json:"origins"`
}

// Client queries the product endpoint.
//
// Thread-safety: Client is safe for concurrent use.
type Client struct {
	baseURL string
	locale  string
	client  *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLocale sets the language of localized fields.
func WithLocale(locale string) Option {
	return func(c *Client) {
		if locale != "" {
			c.locale = locale
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// WithTimeout sets the timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.client = &http.Client{Timeout: d}
		}
	}
}

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient returns a client for the API rooted at baseURL. An empty
// baseURL uses DefaultBaseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		locale:  DefaultLocale,
		client:  &http.Client{Timeout: DefaultTimeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "lookup")
	return c
}

type productResponse struct {
	Status  int            `json:"status"`
	Product map[string]any `json:"product"`
}

// Fetch looks up barcode. A product is returned only for an HTTP 200
// response with status 1 and a product body; anything else the API reports
// as unknown is ErrNotFound.
func (c *Client) Fetch(ctx context.Context, barcode string) (*Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, ErrInvalidBarcode
	}

	u := fmt.Sprintf("%s/product/%s.json?%s", c.baseURL, url.PathEscape(barcode),
		url.Values{"lc": {c.locale}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", barcode, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w: %w", barcode, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("lookup %s: %w", barcode, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("lookup %s: %w: status %d: %s", barcode, ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var pr productResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("lookup %s: decode: %w", barcode, err)
	}
	if pr.Status != 1 || pr.Product == nil {
		return nil, fmt.Errorf("lookup %s: %w", barcode, ErrNotFound)
	}

	p := c.convert(pr.Product, barcode)
	c.logger.Debug("product found", "barcode", barcode, "name", p.Name)
	return p, nil
}

func (c *Client) convert(raw map[string]any, barcode string) *Product {
	p := &Product{
		Name:        c.localized(raw, "product_name"),
		Brands:      c.localized(raw, "brands"),
		Code:        firstString(raw, "code"),
		Ingredients: c.localized(raw, "ingredients_text"),
		ImageURL:    imageURL(raw),
		Nutriments:  nutriments(raw),
		Quantity:    firstString(raw, "quantity"),
		Categories:  c.localized(raw, "categories"),
		Labels:      c.localized(raw, "labels"),
		Origins:     c.localized(raw, "origins"),
	}
	if p.Code == "" {
		p.Code = barcode
	}
	if p.Quantity == "" {
		p.Quantity = UnspecifiedQuantity
	}
	if grade := firstString(raw, "nutriscore_grade"); grade != "" {
		p.Nutriscore = &grade
	}
	return p
}

// localized returns field in the client locale, then the default field,
// then Unavailable.
func (c *Client) localized(raw map[string]any, field string) string {
	if v := firstString(raw, field+"_"+c.locale, field); v != "" {
		return v
	}
	return Unavailable
}

// imageURL prefers the selected front display image.
func imageURL(raw map[string]any) string {
	if display, ok := dig(raw, "selected_images", "front", "display").(map[string]any); ok {
		if v := firstString(display, "fr", "en"); v != "" {
			return v
		}
	}
	return firstString(raw, "image_front_url", "image_url")
}

func nutriments(raw map[string]any) Nutriments {
	n, _ := raw["nutriments"].(map[string]any)
	return Nutriments{
		EnergyKcal:    number(n["energy-kcal_100g"]),
		Proteins:      number(n["proteins_100g"]),
		Carbohydrates: number(n["carbohydrates_100g"]),
		Fat:           number(n["fat_100g"]),
	}
}

// firstString returns the first non-empty string value among keys.
func firstString(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := raw[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func dig(raw map[string]any, path ...string) any {
	var cur any = raw
	for _, k := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[k]
	}
	return cur
}

// number accepts JSON numbers and numeric strings.
func number(v any) *float64 {
	switch x := v.(type) {
	case float64:
		return &x
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}
