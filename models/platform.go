package models

import (
	"database/sql/driver"
	"fmt"
)

// Platform represents a supported marketplace
type Platform string

const (
	PlatformAmazonJP      Platform = "amazon_jp"
	PlatformRakuten       Platform = "rakuten"
	PlatformMercari       Platform = "mercari"
	PlatformYahooShopping Platform = "yahoo_shopping"
	PlatformQoo10         Platform = "qoo10"
	PlatformAuPayMarket   Platform = "au_pay_market"
)

// AllPlatforms lists every supported marketplace
var AllPlatforms = []Platform{
	PlatformAmazonJP,
	PlatformRakuten,
	PlatformMercari,
	PlatformYahooShopping,
	PlatformQoo10,
	PlatformAuPayMarket,
}

// String returns the string representation of the platform
func (p Platform) String() string {
	return string(p)
}

// Valid checks if the platform is a known marketplace
func (p Platform) Valid() bool {
	switch p {
	case PlatformAmazonJP, PlatformRakuten, PlatformMercari,
		PlatformYahooShopping, PlatformQoo10, PlatformAuPayMarket:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for Platform
func (p *Platform) Scan(value any) error {
	if value == nil {
		*p = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*p = Platform(v)
	case []byte:
		*p = Platform(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Platform", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for Platform
func (p Platform) Value() (driver.Value, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid Platform: %s", p)
	}
	return string(p), nil
}

// GetDisplayName returns a human-readable platform name
func (p Platform) GetDisplayName() string {
	switch p {
	case PlatformAmazonJP:
		return "Amazon Japan"
	case PlatformRakuten:
		return "Rakuten"
	case PlatformMercari:
		return "Mercari"
	case PlatformYahooShopping:
		return "Yahoo! Shopping"
	case PlatformQoo10:
		return "Qoo10"
	case PlatformAuPayMarket:
		return "au PAY Market"
	default:
		return "Unknown"
	}
}
