package extraction

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// DefaultReviewThreshold is the confidence cutoff below which a field is
// considered unreliable.
const DefaultReviewThreshold = 0.75

// absentConfidence is the floor assigned to a field the parser could not find.
const absentConfidence = 0.2

// Fields holds the typed values parsed from raw OCR text. Zero values mean
// the field was not found; Currency always carries a value.
type Fields struct {
	Vendor     string `json:"vendor,omitempty"`
	Date       string `json:"date,omitempty"` // YYYY-MM-DD
	TotalCents int64  `json:"total_cents,omitempty"`
	Currency   string `json:"currency"`
	Category   string `json:"category,omitempty"`
}

// Confidence scores each core field independently; currency and category are
// not covered.
type Confidence struct {
	Vendor float64 `json:"vendor"`
	Date   float64 `json:"date"`
	Total  float64 `json:"total"`
}

// Result is the complete outcome of parsing one OCR pass.
type Result struct {
	Fields            Fields     `json:"fields"`
	Confidence        Confidence `json:"confidence"`
	RawText           string     `json:"raw_text"`
	OverallConfidence float64    `json:"overall_confidence"`
	RequiresReview    bool       `json:"requires_review"`
}

var (
	isoDateRE  = regexp.MustCompile(`(\d{4})[-/](\d{1,2})[-/](\d{1,2})`)
	usDateRE   = regexp.MustCompile(`(\d{1,2})[/-](\d{1,2})[/-](\d{2,4})`)
	amountRE   = regexp.MustCompile(`(?i)(?:\$|USD\s*)?(\d{1,4}(?:,\d{3})*\.\d{2})`)
	currencyRE = regexp.MustCompile(`(?i)\b(USD|EUR|GBP|CAD|AUD)\b`)
	categoryRE = regexp.MustCompile(`(?i)\b(?:category|department|expense type)[:\s]+([A-Za-z\s]+)`)
)

// ParseFields turns raw OCR text into typed receipt fields with per-field
// confidence scores. Pure function of its inputs; no I/O.
func ParseFields(text string, overallConfidence, reviewThreshold float64) Result {
	vendor := firstLine(text)
	date := findDate(text)
	totalCents := findTotalCents(text)
	currency := findCurrency(text)
	category := findCategory(text)

	conf := Confidence{Vendor: absentConfidence, Date: absentConfidence, Total: absentConfidence}
	if vendor != "" {
		conf.Vendor = math.Min(0.98, overallConfidence)
	}
	if date != "" {
		conf.Date = math.Min(0.95, overallConfidence*0.92)
	}
	if totalCents > 0 {
		conf.Total = math.Min(0.97, overallConfidence*0.9)
	}

	requiresReview := vendor == "" || date == "" || totalCents <= 0 ||
		conf.Vendor < reviewThreshold ||
		conf.Date < reviewThreshold ||
		conf.Total < reviewThreshold

	return Result{
		Fields: Fields{
			Vendor:     vendor,
			Date:       date,
			TotalCents: totalCents,
			Currency:   currency,
			Category:   category,
		},
		Confidence:        conf,
		RawText:           text,
		OverallConfidence: overallConfidence,
		RequiresReview:    requiresReview,
	}
}

// firstLine returns the first non-blank line verbatim; receipts put the
// merchant name at the top.
func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
		if line != "" {
			return line
		}
	}
	return ""
}

// findDate prefers an ISO-like date over a US-like one.
func findDate(text string) string {
	if m := isoDateRE.FindStringSubmatch(text); m != nil {
		return normalizeDate(m[1], m[2], m[3])
	}
	if m := usDateRE.FindStringSubmatch(text); m != nil {
		year := m[3]
		if len(year) == 2 {
			year = "20" + year
		}
		return normalizeDate(year, m[1], m[2])
	}
	return ""
}

// normalizeDate zero-pads to YYYY-MM-DD. Normalizing an already-normalized
// date is a no-op.
func normalizeDate(year, month, day string) string {
	m, err := strconv.Atoi(month)
	if err != nil {
		return ""
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%s-%02d-%02d", year, m, d)
}

// findTotalCents collects every monetary-looking token and keeps the maximum:
// receipts list subtotal, tax and total in ascending order, so the largest
// amount is the best guess for the total due.
func findTotalCents(text string) int64 {
	var max float64
	found := false
	for _, m := range amountRE.FindAllStringSubmatch(text, -1) {
		value, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			continue
		}
		if !found || value > max {
			max = value
			found = true
		}
	}
	if !found {
		return 0
	}
	return int64(math.Round(max * 100))
}

func findCurrency(text string) string {
	if m := currencyRE.FindStringSubmatch(text); m != nil {
		return strings.ToUpper(m[1])
	}
	return "USD"
}

func findCategory(text string) string {
	if m := categoryRE.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}
