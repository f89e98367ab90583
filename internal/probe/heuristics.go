package probe

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/leadscan/internal/lead"
)

// footerWindow is how many trailing characters of page text are searched for
// a copyright notice.
const footerWindow = 2000

var (
	emailPattern     = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phonePattern     = regexp.MustCompile(`\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
	copyrightPattern = regexp.MustCompile(`(?is)(?:copyright|©).*?(\d{4})`)
)

type signature struct {
	label   string
	needles []string
}

var techSignatures = []signature{
	{label: "WordPress", needles: []string{"wp-content"}},
	{label: "Wix", needles: []string{"wix.com", "_wix_"}},
	{label: "Squarespace", needles: []string{"squarespace"}},
	{label: "Shopify", needles: []string{"shopify"}},
	{label: "GoDaddy", needles: []string{"go daddy", "godaddy"}},
}

// analyzeContent fills the content-derived report fields from an HTML body.
func analyzeContent(body []byte, report *lead.AnalysisReport) error {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("parse html: %w", err)
	}

	report.Logf("🔍 Analyzing Tech Stack...")
	report.TechStack = detectTechStack(strings.ToLower(string(body)))
	report.Logf("🛠️ Tech: %s", report.TechStack)

	if hasMobileViewport(doc) {
		report.MobileViewport = true
		report.Logf("📱 Mobile: Optimized")
	} else {
		report.Logf("📵 Mobile: Not Optimized")
	}

	// Only rendered text counts; the raw HTML above already covered tech detection.
	doc.Find("script, style, noscript, template").Remove()
	text := doc.Text()
	if hasContactInfo(text) {
		report.ContactInfoFound = true
		report.Logf("✉️ Contact: Found on homepage")
	} else {
		report.Logf("❓ Contact: Not found in text")
	}

	if year, ok := copyrightYear(text); ok {
		report.CopyrightYear = &year
		report.Logf("📅 Copyright: %d", year)
	}
	return nil
}

func detectTechStack(lowerHTML string) string {
	var stack []string
	for _, sig := range techSignatures {
		for _, needle := range sig.needles {
			if strings.Contains(lowerHTML, needle) {
				stack = append(stack, sig.label)
				break
			}
		}
	}
	if len(stack) == 0 {
		return "Custom/Other"
	}
	return strings.Join(stack, ", ")
}

// hasMobileViewport inspects the first viewport meta tag.
func hasMobileViewport(doc *goquery.Document) bool {
	viewport := doc.Find("meta").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.AttrOr("name", "") == "viewport"
	}).First()
	if viewport.Length() == 0 {
		return false
	}
	return strings.Contains(strings.ToLower(viewport.AttrOr("content", "")), "width=device-width")
}

func hasContactInfo(text string) bool {
	return emailPattern.MatchString(text) || phonePattern.MatchString(text)
}

func copyrightYear(text string) (int, bool) {
	runes := []rune(text)
	if len(runes) > footerWindow {
		runes = runes[len(runes)-footerWindow:]
	}
	match := copyrightPattern.FindStringSubmatch(string(runes))
	if match == nil {
		return 0, false
	}
	year, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return year, true
}
