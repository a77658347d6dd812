package domain

import (
	"fmt"
	"strings"
)

// Classification labels.
const (
	LabelCity     = "city"
	LabelGlobal   = "global"
	LabelIndustry = "industry"
	LabelTrash    = "trash"
)

// Classification is the classifier's verdict on an article. Exactly one
// of CitySlug or IndustrySlug is meaningful, selected by Label.
type Classification struct {
	Label        string `mapstructure:"label"         json:"label"`
	CitySlug     string `mapstructure:"city_slug"     json:"city_slug,omitempty"`
	IndustrySlug string `mapstructure:"industry_slug" json:"industry_slug,omitempty"`
}

// Trash returns the fallback classification used when the classifier
// fails or returns something unusable.
func Trash() Classification {
	return Classification{Label: LabelTrash}
}

// Normalize coerces the classification into a usable form: unknown
// labels and labels missing their slug collapse to trash, and a city
// slug without a state gets ", Unknown State" appended.
func (c Classification) Normalize() Classification {
	switch c.Label {
	case LabelGlobal, LabelTrash:
		return Classification{Label: c.Label}
	case LabelCity:
		slug := strings.TrimSpace(c.CitySlug)
		if slug == "" {
			return Trash()
		}
		if !strings.Contains(slug, ",") {
			slug += ", Unknown State"
		}
		return Classification{Label: LabelCity, CitySlug: slug}
	case LabelIndustry:
		slug := strings.TrimSpace(c.IndustrySlug)
		if slug == "" {
			return Trash()
		}
		return Classification{Label: LabelIndustry, IndustrySlug: slug}
	default:
		return Trash()
	}
}

// IsTrash reports whether the article should be discarded.
func (c Classification) IsTrash() bool {
	return c.Label == LabelTrash
}

// IsCity reports whether the article is city-scoped. City articles get
// medium and long summaries; everything else gets the short tier only.
func (c Classification) IsCity() bool {
	return c.Label == LabelCity
}

// AudienceScope renders the classification as a scope tag:
// "[city:seattle, WA]", "[global]", "[industry:fintech]" or "[trash]".
func (c Classification) AudienceScope() string {
	switch c.Label {
	case LabelCity:
		return fmt.Sprintf("[city:%s]", c.CitySlug)
	case LabelGlobal:
		return "[global]"
	case LabelIndustry:
		return fmt.Sprintf("[industry:%s]", c.IndustrySlug)
	default:
		return "[trash]"
	}
}

// CityTag returns the city name used for processed-URL deduplication:
// the part of the city slug before the comma, or "unknown" for
// non-city articles.
func (c Classification) CityTag() string {
	if c.Label != LabelCity || c.CitySlug == "" {
		return "unknown"
	}
	city, _, _ := strings.Cut(c.CitySlug, ",")
	return strings.TrimSpace(city)
}

// ParseAudienceScope parses a scope tag back into a Classification. It
// is the inverse of AudienceScope for well-formed tags; malformed input
// parses as trash.
func ParseAudienceScope(scope string) Classification {
	if !strings.HasPrefix(scope, "[") || !strings.HasSuffix(scope, "]") {
		return Trash()
	}
	inner := scope[1 : len(scope)-1]
	switch {
	case inner == "global":
		return Classification{Label: LabelGlobal}
	case strings.HasPrefix(inner, "city:"):
		return Classification{Label: LabelCity, CitySlug: strings.TrimPrefix(inner, "city:")}
	case strings.HasPrefix(inner, "industry:"):
		return Classification{Label: LabelIndustry, IndustrySlug: strings.TrimPrefix(inner, "industry:")}
	default:
		return Trash()
	}
}
