// Package services provides external-facing service clients and domain services used by business flows
package services

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/amane-dev/kakaku-tracker/models"
)

// ErrIdentityUnresolvable is returned when no stable platform identifier can
// be derived from a listing. Callers skip the listing and continue.
var ErrIdentityUnresolvable = errors.New("no stable identifier could be derived from listing")

// IdentityResolver derives a stable platform-specific identifier from a raw
// listing. Resolution prefers URL structure and falls back to title patterns.
type IdentityResolver interface {
	ResolvePlatformID(listing *models.RawListing) (string, error)
	CleanURL(platform models.Platform, rawURL string) string
}

// IdentityResolverImpl implements IdentityResolver
type IdentityResolverImpl struct{}

// NewIdentityResolver creates a new identity resolver
func NewIdentityResolver() IdentityResolver {
	return &IdentityResolverImpl{}
}

// Model-number patterns tried against titles when the URL carries no stable
// id. Ordered from most to least specific.
var titleIDPatterns = []*regexp.Regexp{
	// Camera models
	regexp.MustCompile(`(?i)\b(ILCE-\w+|α\d+\w*|X100\w*|EOS\s*\w+)\b`),
	// GPU models
	regexp.MustCompile(`(?i)\b(RTX\s*\d+\w*|RX\s*\d+\w*|GeForce\s*\w+)\b`),
	// CPU models
	regexp.MustCompile(`(?i)\b(Ryzen\s*\d+\s*\w+|Core\s*i\d+\w*)\b`),
	// Guitar strings and music gear
	regexp.MustCompile(`(?i)\b(ERNIE\s*BALL\s*\d+|Regular\s*Slinky|NYXL\s*[\d-]+|BOSS\s*\w+\s*\d*)\b`),
	// Lens models
	regexp.MustCompile(`(?i)\b(\d+mm\s*[Ff]\d+\.?\d*|RF\d+mm|FE\s*\d+-\d+mm|DG\s*DN)\b`),
	// Nintendo/PlayStation models
	regexp.MustCompile(`(?i)\b(Nintendo\s*Switch\s*\w*|PS\d+\s*\w*|OLED\s*\w*)\b`),
	// General model numbers (letters + numbers)
	regexp.MustCompile(`\b([A-Z]{2,}\d+[A-Z]*\w*)\b`),
}

// Promotional fragments stripped before a title is used as an identifier.
// They vary between scrapes of the same product.
var promotionalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\s*amazon\.?co\.?jp\s*exclusive`),
	regexp.MustCompile(`\s*\d+年.*保証`),
	regexp.MustCompile(`\s*送料無料`),
	regexp.MustCompile(`\s*新品`),
	regexp.MustCompile(`\s*中古`),
	regexp.MustCompile(`\s*\d+%\s*off`),
	regexp.MustCompile(`\s*限定`),
	regexp.MustCompile(`\s*セット`),
}

var (
	nonWordRe    = regexp.MustCompile(`[^\p{L}\p{N}\s_-]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	underscoreRe = regexp.MustCompile(`_+`)
)

// ResolvePlatformID derives the platform-specific stable identifier for a
// listing. URL structure wins; titles are only consulted when the URL is
// absent or carries no recognizable id.
func (r *IdentityResolverImpl) ResolvePlatformID(listing *models.RawListing) (string, error) {
	if listing.URL != "" {
		if id := r.extractFromURL(listing.Platform, listing.URL); id != "" {
			return id, nil
		}
	}
	if id := r.extractFromTitle(listing.Title); id != "" {
		return id, nil
	}
	return "", ErrIdentityUnresolvable
}

func (r *IdentityResolverImpl) extractFromURL(platform models.Platform, rawURL string) string {
	switch platform {
	case models.PlatformAmazonJP:
		if id := segmentAfter(rawURL, "/dp/"); id != "" {
			return id
		}
		if id := segmentAfter(rawURL, "/gp/product/"); id != "" {
			return id
		}
		if strings.Contains(rawURL, "asin=") {
			if parsed, err := url.Parse(rawURL); err == nil {
				if asin := parsed.Query().Get("asin"); asin != "" {
					return asin
				}
			}
		}

	case models.PlatformRakuten:
		if id := segmentAfter(rawURL, "/product/"); id != "" {
			return id
		}
		if id := segmentAfter(rawURL, "item/"); id != "" {
			return id
		}

	case models.PlatformMercari:
		if id := tailAfter(rawURL, "/item/"); id != "" {
			return id
		}
		if id := tailAfter(rawURL, "/shops/product/"); id != "" {
			return id
		}

	case models.PlatformYahooShopping:
		if strings.Contains(rawURL, "store/") && strings.Contains(rawURL, "item/") {
			parts := strings.Split(rawURL, "/")
			store, item := "", ""
			for i, part := range parts {
				if part == "store" && i < len(parts)-1 {
					store = parts[i+1]
				}
				if part == "item" && i < len(parts)-1 {
					item = strings.SplitN(parts[i+1], "?", 2)[0]
				}
			}
			if store != "" && item != "" {
				return fmt.Sprintf("%s:%s", store, item)
			}
		}
	}

	return ""
}

// segmentAfter returns the path segment following the marker, stripped of
// trailing path and query parts
func segmentAfter(rawURL, marker string) string {
	idx := strings.Index(rawURL, marker)
	if idx < 0 {
		return ""
	}
	rest := rawURL[idx+len(marker):]
	rest = strings.SplitN(rest, "/", 2)[0]
	return strings.SplitN(rest, "?", 2)[0]
}

// tailAfter returns everything following the marker up to the query string
func tailAfter(rawURL, marker string) string {
	idx := strings.Index(rawURL, marker)
	if idx < 0 {
		return ""
	}
	rest := rawURL[idx+len(marker):]
	return strings.SplitN(rest, "?", 2)[0]
}

func (r *IdentityResolverImpl) extractFromTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return ""
	}

	for _, pattern := range titleIDPatterns {
		match := pattern.FindStringSubmatch(title)
		if len(match) > 1 {
			modelID := strings.ReplaceAll(strings.ToUpper(match[1]), " ", "_")
			return fmt.Sprintf("%s_%s", modelID, shortHash(title, 6))
		}
	}

	// Last resort: normalized title plus a hash for uniqueness.
	// Length checks and truncation count runes so multibyte titles
	// never get cut mid-character.
	runes := []rune(normalizeTitleForID(title))
	if len(runes) > 10 {
		if len(runes) > 30 {
			runes = runes[:30]
		}
		return fmt.Sprintf("%s_%s", string(runes), shortHash(title, 8))
	}

	return ""
}

func normalizeTitleForID(title string) string {
	normalized := nonWordRe.ReplaceAllString(strings.ToLower(title), "")
	for _, pattern := range promotionalPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}
	normalized = whitespaceRe.ReplaceAllString(strings.TrimSpace(normalized), "_")
	normalized = underscoreRe.ReplaceAllString(normalized, "_")
	return strings.Trim(normalized, "_")
}

func shortHash(s string, n int) string {
	sum := md5.Sum([]byte(strings.ToLower(s)))
	return hex.EncodeToString(sum[:])[:n]
}

// CleanURL reduces a listing URL to a stable monitoring pattern without
// tracking or session query parameters
func (r *IdentityResolverImpl) CleanURL(platform models.Platform, rawURL string) string {
	if rawURL == "" {
		return ""
	}

	switch platform {
	case models.PlatformAmazonJP:
		if asin := segmentAfter(rawURL, "/dp/"); asin != "" {
			return fmt.Sprintf("https://www.amazon.co.jp/dp/%s", asin)
		}
	case models.PlatformRakuten:
		if strings.Contains(rawURL, "/product/") {
			return strings.SplitN(rawURL, "?", 2)[0]
		}
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return strings.SplitN(rawURL, "?", 2)[0]
	}
	return fmt.Sprintf("%s://%s%s", parsed.Scheme, parsed.Host, parsed.Path)
}
