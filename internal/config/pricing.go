package config

import (
	"fmt"
	"log"

	"scholarpay/internal/models"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Pricing holds the platform price tables. A user's pricing mode picks the
// table; package and scholarship overrides are applied on top by the checkout
// builder.
type Pricing struct {
	DefaultMode        models.PricingMode
	MinimumCharge      decimal.Decimal
	DependentSurcharge decimal.Decimal
	Tables             map[models.PricingMode]map[models.FeeType]decimal.Decimal
}

// DefaultPricing returns the built-in price tables.
func DefaultPricing() *Pricing {
	return &Pricing{
		DefaultMode:        models.PricingSimplified,
		MinimumCharge:      decimal.RequireFromString("0.50"),
		DependentSurcharge: decimal.NewFromInt(100),
		Tables: map[models.PricingMode]map[models.FeeType]decimal.Decimal{
			models.PricingLegacy: {
				models.FeeTypeSelectionProcess: decimal.NewFromInt(400),
				models.FeeTypeApplicationFee:   decimal.NewFromInt(350),
				models.FeeTypeScholarshipFee:   decimal.NewFromInt(900),
				models.FeeTypeI20ControlFee:    decimal.NewFromInt(900),
			},
			models.PricingSimplified: {
				models.FeeTypeSelectionProcess: decimal.NewFromInt(350),
				models.FeeTypeApplicationFee:   decimal.NewFromInt(350),
				models.FeeTypeScholarshipFee:   decimal.NewFromInt(550),
				models.FeeTypeI20ControlFee:    decimal.NewFromInt(900),
			},
		},
	}
}

// Default returns the platform amount for a fee in the given mode. An unknown
// or empty mode falls back to the default mode.
func (p *Pricing) Default(mode models.PricingMode, ft models.FeeType) (decimal.Decimal, error) {
	if !mode.Valid() {
		mode = p.DefaultMode
	}
	amount, ok := p.Tables[mode][ft]
	if !ok {
		return decimal.Zero, fmt.Errorf("no %s price for fee type %s", mode, ft)
	}
	return amount, nil
}

type pricingFile struct {
	DefaultMode        string                        `mapstructure:"default_mode"`
	MinimumCharge      *float64                      `mapstructure:"minimum_charge"`
	DependentSurcharge *float64                      `mapstructure:"dependent_surcharge"`
	Modes              map[string]map[string]float64 `mapstructure:"modes"`
}

// LoadPricing overlays a YAML pricing file on the built-in tables. An empty
// path returns the defaults.
//
//	default_mode: simplified
//	minimum_charge: 0.50
//	dependent_surcharge: 100
//	modes:
//	  legacy:
//	    selection_process: 400
func LoadPricing(path string) (*Pricing, error) {
	p := DefaultPricing()
	if path == "" {
		return p, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read pricing file: %w", err)
	}

	var raw pricingFile
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("decode pricing file: %w", err)
	}

	if raw.DefaultMode != "" {
		mode := models.PricingMode(raw.DefaultMode)
		if !mode.Valid() {
			return nil, fmt.Errorf("invalid default_mode %q", raw.DefaultMode)
		}
		p.DefaultMode = mode
	}
	if raw.MinimumCharge != nil {
		p.MinimumCharge = decimal.NewFromFloat(*raw.MinimumCharge)
	}
	if raw.DependentSurcharge != nil {
		p.DependentSurcharge = decimal.NewFromFloat(*raw.DependentSurcharge)
	}
	for modeName, fees := range raw.Modes {
		mode := models.PricingMode(modeName)
		if !mode.Valid() {
			return nil, fmt.Errorf("invalid pricing mode %q", modeName)
		}
		for feeName, amount := range fees {
			ft, err := models.ParseFeeType(feeName)
			if err != nil {
				return nil, err
			}
			p.Tables[mode][ft] = decimal.NewFromFloat(amount)
		}
	}

	log.Printf("pricing loaded from %s (default mode %s)", path, p.DefaultMode)
	return p, nil
}
