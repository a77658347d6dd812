package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/macsteckler/lightspeeed-scraper/internal/domain"
)

// Boilerplate selectors removed before the clean HTML and text are
// produced. The attribute selectors catch ad slots and promo rails that
// sites label by class or id.
const (
	boilerplateTags  = "nav, header, footer, aside, script, style, noscript"
	boilerplateAttrs = "[class*=ad], [id*=ad], [class*=promo], [class*=sidebar]"
)

var (
	spaceRun   = regexp.MustCompile(`[ \t]+`)
	newlineRun = regexp.MustCompile(`\n{3,}`)
)

// jsonLDKeys are the structured-data fields worth lifting into the flat
// metadata map for the date cascade and the classifier.
var jsonLDKeys = []string{"datePublished", "dateModified", "headline"}

// refine parses a captured page and normalizes it: metadata first (from
// the intact document), then boilerplate removal, then clean HTML,
// plain text, and Markdown off the stripped body.
func refine(rawHTML, pageURL string) (*domain.ExtractedContent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	metadata := collectMetadata(doc)

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = metadata["og:title"]
	}

	doc.Find(boilerplateTags).Remove()
	doc.Find(boilerplateAttrs).Remove()

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}

	cleanHTML, err := body.Html()
	if err != nil {
		return nil, fmt.Errorf("serialize clean html: %w", err)
	}
	cleanHTML = strings.TrimSpace(cleanHTML)

	text := collapseWhitespace(body.Text())

	markdown := ""
	if cleanHTML != "" {
		markdown, err = toMarkdown(cleanHTML, pageURL)
		if err != nil {
			// Markdown is a convenience for the summarizer; text
			// still carries the content.
			markdown = ""
		}
	}

	return &domain.ExtractedContent{
		Title:     title,
		Text:      text,
		Markdown:  markdown,
		CleanHTML: cleanHTML,
		Metadata:  metadata,
	}, nil
}

// toMarkdown converts clean HTML to Markdown, resolving relative links
// against the page URL.
func toMarkdown(cleanHTML, pageURL string) (string, error) {
	converter := md.NewConverter(pageURL, true, nil)
	return converter.ConvertString(cleanHTML)
}

// collectMetadata flattens <meta> tags (name, property, itemprop), the
// canonical link, and selected JSON-LD fields into one map keyed by the
// raw attribute value, first occurrence winning.
func collectMetadata(doc *goquery.Document) map[string]string {
	metadata := make(map[string]string)

	doc.Find("meta").Each(func(_ int, sel *goquery.Selection) {
		content, ok := sel.Attr("content")
		if !ok || strings.TrimSpace(content) == "" {
			return
		}
		for _, attr := range []string{"name", "property", "itemprop"} {
			key, ok := sel.Attr(attr)
			if !ok || key == "" {
				continue
			}
			if _, dup := metadata[key]; !dup {
				metadata[key] = strings.TrimSpace(content)
			}
		}
	})

	if canonical, ok := doc.Find("link[rel='canonical']").Attr("href"); ok {
		if canonical = strings.TrimSpace(canonical); canonical != "" {
			metadata["canonical"] = canonical
		}
	}

	doc.Find("script[type='application/ld+json']").Each(func(_ int, sel *goquery.Selection) {
		var data any
		if err := json.Unmarshal([]byte(sel.Text()), &data); err != nil {
			return
		}
		liftJSONLD(data, metadata)
	})

	return metadata
}

// liftJSONLD walks a decoded JSON-LD node, including arrays and @graph
// containers, copying the known keys into the metadata map.
func liftJSONLD(node any, metadata map[string]string) {
	switch v := node.(type) {
	case []any:
		for _, item := range v {
			liftJSONLD(item, metadata)
		}
	case map[string]any:
		for _, key := range jsonLDKeys {
			if s, ok := v[key].(string); ok && s != "" {
				if _, dup := metadata[key]; !dup {
					metadata[key] = s
				}
			}
		}
		if graph, ok := v["@graph"]; ok {
			liftJSONLD(graph, metadata)
		}
	}
}

// filterLinks keeps absolute http(s) URLs, drops pseudo-scheme and
// fragment links, and deduplicates preserving order.
func filterLinks(hrefs []string) []string {
	seen := make(map[string]struct{}, len(hrefs))
	links := make([]string, 0, len(hrefs))

	for _, href := range hrefs {
		href = strings.TrimSpace(href)
		if href == "" ||
			strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") ||
			strings.HasPrefix(href, "mailto:") ||
			strings.HasPrefix(href, "tel:") {
			continue
		}
		if !strings.HasPrefix(href, "http://") && !strings.HasPrefix(href, "https://") {
			continue
		}
		if _, dup := seen[href]; dup {
			continue
		}
		seen[href] = struct{}{}
		links = append(links, href)
	}

	return links
}

// collapseWhitespace squeezes space runs and bounds blank lines so text
// extracted from deeply nested markup stays readable.
func collapseWhitespace(text string) string {
	text = spaceRun.ReplaceAllString(text, " ")
	text = newlineRun.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
