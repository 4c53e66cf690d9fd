package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/backend-parfum/internal/common"
	"github.com/noah-isme/backend-parfum/internal/db"
	"github.com/noah-isme/backend-parfum/internal/pricing"
)

const (
	cacheKey = "settings:site"

	keyBusiness = "business"
	keyCharges  = "charges"
	keyInvoice  = "invoice"
)

// Queries lists the settings statements.
type Queries interface {
	ListSettings(ctx context.Context) ([]db.SiteSetting, error)
	UpsertSetting(ctx context.Context, arg db.UpsertSettingParams) error
}

// Business identifies the seller on invoices and decides the GST jurisdiction.
type Business struct {
	Name    string `json:"name" validate:"required,max=200"`
	Address string `json:"address" validate:"required,max=500"`
	State   string `json:"state" validate:"required,max=100"`
	GSTIN   string `json:"gstin" validate:"omitempty,alphanum,len=15"`
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone" validate:"omitempty,max=20"`
}

// Invoice controls invoice numbering.
type Invoice struct {
	Prefix string `json:"prefix" validate:"required,max=12"`
}

// Charges mirrors pricing.ChargeSettings with validation rules.
type Charges struct {
	FreeShippingThreshold float64 `json:"freeShippingThreshold" validate:"gte=0"`
	ShippingCharge        float64 `json:"shippingCharge" validate:"gte=0"`
	BulkDiscountThreshold int     `json:"bulkDiscountThreshold" validate:"gte=0"`
	BulkDiscountPercent   float64 `json:"bulkDiscountPercent" validate:"gte=0,lte=100"`
}

// Site is the full settings document.
type Site struct {
	Business Business `json:"business"`
	Charges  Charges  `json:"charges"`
	Invoice  Invoice  `json:"invoice"`
}

// Pricing converts the charge rules for the pricing engine.
func (s Site) Pricing() pricing.ChargeSettings {
	return pricing.ChargeSettings(s.Charges)
}

// Defaults returns the settings used before an admin saves any.
func Defaults() Site {
	return Site{
		Business: Business{Name: "Parfum", Address: "", State: "Maharashtra"},
		Charges:  Charges{FreeShippingThreshold: 999, ShippingCharge: 99},
		Invoice:  Invoice{Prefix: "INV"},
	}
}

// Service reads and writes site settings through a Redis cache.
type Service struct {
	Queries Queries
	Redis   *redis.Client
	TTL     time.Duration
}

// Get returns the current settings, falling back to Defaults for missing keys.
func (s *Service) Get(ctx context.Context) (Site, error) {
	if s.Redis != nil {
		raw, err := s.Redis.Get(ctx, cacheKey).Bytes()
		if err == nil {
			var cached Site
			if json.Unmarshal(raw, &cached) == nil {
				return cached, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			return Site{}, fmt.Errorf("settings cache: %w", err)
		}
	}

	rows, err := s.Queries.ListSettings(ctx)
	if err != nil {
		return Site{}, fmt.Errorf("list settings: %w", err)
	}
	site := Defaults()
	for _, row := range rows {
		var target any
		switch row.Key {
		case keyBusiness:
			target = &site.Business
		case keyCharges:
			target = &site.Charges
		case keyInvoice:
			target = &site.Invoice
		default:
			continue
		}
		if err := json.Unmarshal(row.Value, target); err != nil {
			return Site{}, fmt.Errorf("decode setting %s: %w", row.Key, err)
		}
	}
	s.store(ctx, site)
	return site, nil
}

// Update validates and persists site, replacing the cached copy.
func (s *Service) Update(ctx context.Context, site Site) (Site, error) {
	site.Business.GSTIN = strings.ToUpper(strings.TrimSpace(site.Business.GSTIN))
	site.Business.State = strings.TrimSpace(site.Business.State)
	site.Invoice.Prefix = strings.ToUpper(strings.TrimSpace(site.Invoice.Prefix))
	if err := common.ValidateStruct(site); err != nil {
		return Site{}, err
	}
	for key, value := range map[string]any{
		keyBusiness: site.Business,
		keyCharges:  site.Charges,
		keyInvoice:  site.Invoice,
	} {
		raw, err := json.Marshal(value)
		if err != nil {
			return Site{}, err
		}
		if err := s.Queries.UpsertSetting(ctx, db.UpsertSettingParams{Key: key, Value: raw}); err != nil {
			return Site{}, fmt.Errorf("save setting %s: %w", key, err)
		}
	}
	if s.Redis != nil {
		_ = s.Redis.Del(ctx, cacheKey).Err()
	}
	return site, nil
}

func (s *Service) store(ctx context.Context, site Site) {
	if s.Redis == nil {
		return
	}
	raw, err := json.Marshal(site)
	if err != nil {
		return
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	_ = s.Redis.Set(ctx, cacheKey, raw, ttl).Err()
}
