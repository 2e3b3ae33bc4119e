package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the format of ExpirationDate and ConsumedDate.
const DateLayout = "2006-01-02"

// Category groups items for expiry warnings.
type Category string

const (
	CategoryFresh Category = "fresh"
	CategoryOther Category = "other"
)

var (
	// ErrNotFound is returned when no item matches.
	ErrNotFound = errors.New("item not found")

	// ErrInvalidItem is returned for items that fail validation.
	ErrInvalidItem = errors.New("invalid item")
)

// NutritionalInfo holds values per 100g.
type NutritionalInfo struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// Item is one row of the catalog.
type Item struct {
	ID              int64            `json:"id"`
	Ref             string           `json:"ref"`
	Name            string           `json:"name"`
	Brand           string           `json:"brand,omitempty"`
	Category        Category         `json:"category,omitempty"`
	Barcode         string           `json:"barcode,omitempty"`
	Quantity        int              `json:"quantity"`
	ExpirationDate  string           `json:"expirationDate"`
	StorageLocation string           `json:"storageLocation"`
	ImageURL        string           `json:"imageUrl,omitempty"`
	NutritionalInfo *NutritionalInfo `json:"nutritionalInfo,omitempty"`
	Consumed        bool             `json:"consumed,omitempty"`
	ConsumedDate    string           `json:"consumedDate,omitempty"`
}

// IsFresh reports whether the item uses the fresh-product warning: its
// category is fresh or it is stored in a fridge.
func (it Item) IsFresh() bool {
	return it.Category == CategoryFresh || strings.Contains(strings.ToLower(it.StorageLocation), "frigo")
}

// DaysUntilExpiry returns the whole days from now until the expiration date,
// rounded up. ok is false when the date is unset or malformed.
func (it Item) DaysUntilExpiry(now time.Time) (days int, ok bool) {
	exp, err := time.Parse(DateLayout, it.ExpirationDate)
	if err != nil {
		return 0, false
	}
	d := exp.Sub(now)
	days = int(d / (24 * time.Hour))
	if d > 0 && d%(24*time.Hour) != 0 {
		days++
	}
	return days, true
}

// Validate reports whether it can be stored.
func (it Item) Validate() error {
	if strings.TrimSpace(it.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidItem)
	}
	switch it.Category {
	case "", CategoryFresh, CategoryOther:
	default:
		return fmt.Errorf("%w: unknown category %q", ErrInvalidItem, it.Category)
	}
	if it.Quantity < 0 {
		return fmt.Errorf("%w: quantity must be >= 0, got %d", ErrInvalidItem, it.Quantity)
	}
	if it.ExpirationDate != "" {
		if _, err := time.Parse(DateLayout, it.ExpirationDate); err != nil {
			return fmt.Errorf("%w: expirationDate %q is not %s", ErrInvalidItem, it.ExpirationDate, DateLayout)
		}
	}
	if it.ConsumedDate != "" {
		if _, err := time.Parse(DateLayout, it.ConsumedDate); err != nil {
			return fmt.Errorf("%w: consumedDate %q is not %s", ErrInvalidItem, it.ConsumedDate, DateLayout)
		}
	}
	return nil
}

// Patch lists the fields Update changes. Nil fields are kept.
type Patch struct {
	Name            *string
	Brand           *string
	Category        *Category
	Barcode         *string
	Quantity        *int
	ExpirationDate  *string
	StorageLocation *string
	ImageURL        *string
	NutritionalInfo *NutritionalInfo
	Consumed        *bool
	ConsumedDate    *string
}

// apply returns it with p merged in.
func (p Patch) apply(it Item) Item {
	if p.Name != nil {
		it.Name = *p.Name
	}
	if p.Brand != nil {
		it.Brand = *p.Brand
	}
	if p.Category != nil {
		it.Category = *p.Category
	}
	if p.Barcode != nil {
		it.Barcode = *p.Barcode
	}
	if p.Quantity != nil {
		it.Quantity = *p.Quantity
	}
	if p.ExpirationDate != nil {
		it.ExpirationDate = *p.ExpirationDate
	}
	if p.StorageLocation != nil {
		it.StorageLocation = *p.StorageLocation
	}
	if p.ImageURL != nil {
		it.ImageURL = *p.ImageURL
	}
	if p.NutritionalInfo != nil {
		info := *p.NutritionalInfo
		it.NutritionalInfo = &info
	}
	if p.Consumed != nil {
		it.Consumed = *p.Consumed
	}
	if p.ConsumedDate != nil {
		it.ConsumedDate = *p.ConsumedDate
	}
	return it
}
