package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// Result reports a validation decision and, when rejected, the rule that
// fired. The source pipeline logs the reason before recording the link
// as trash.
type Result struct {
	Valid  bool
	Reason string
}

func accept() Result {
	return Result{Valid: true}
}

func reject(format string, args ...any) Result {
	return Result{Valid: false, Reason: fmt.Sprintf(format, args...)}
}

// nonContentExtensions rejects links to binary assets, media, office
// documents, stylesheets, scripts, and feeds.
var nonContentExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".svg", ".webp", ".ico", ".bmp",
	".mp4", ".avi", ".mov", ".wmv", ".webm", ".mkv", ".flv",
	".mp3", ".wav", ".ogg", ".m4a", ".aac", ".flac",
	".zip", ".rar", ".tar", ".gz", ".7z",
	".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
	".css", ".js", ".rss", ".atom", ".xml",
}

// staticSubdomainPrefixes identify hosts that serve assets rather than pages.
var staticSubdomainPrefixes = []string{
	"images.", "img.", "cdn.", "static.", "media.", "assets.",
	"photos.", "video.", "videos.", "files.", "downloads.",
}

// skipQueryParams mark print views, share dialogs, paginated listings, and
// other non-article variants of a page.
var skipQueryParams = map[string]struct{}{
	"print":      {},
	"share":      {},
	"format":     {},
	"action":     {},
	"view":       {},
	"search":     {},
	"page":       {},
	"sort":       {},
	"filter":     {},
	"replytocom": {},
}

// socialSharePatterns match share-intent URLs on any host.
var socialSharePatterns = []string{
	"/sharer/",
	"/share?",
	"share-offsite",
	"/intent/tweet",
	"sharer.php",
}

// socialShareRoots are path roots that indicate a share dialog.
var socialShareRoots = []string{"/share", "/sharer", "/sharing"}

// socialHosts are social-media domains that never host source articles.
var socialHosts = []string{
	"facebook.com", "twitter.com", "x.com", "instagram.com",
	"linkedin.com", "youtube.com", "tiktok.com", "pinterest.com",
	"reddit.com", "threads.net", "snapchat.com", "whatsapp.com",
	"telegram.org", "t.me",
}

// sectionRoots are landing pages for site sections. An exact match is a
// listing page, not an article; a deeper path under the same section is
// allowed.
var sectionRoots = map[string]struct{}{
	"/news": {}, "/sports": {}, "/weather": {}, "/about": {},
	"/entertainment": {}, "/business": {}, "/politics": {},
	"/opinion": {}, "/lifestyle": {}, "/health": {},
	"/technology": {}, "/science": {}, "/local": {}, "/world": {},
	"/national": {}, "/events": {}, "/obituaries": {},
	"/classifieds": {}, "/calendar": {}, "/community": {},
}

// govSkipPatterns are municipal-site sections that never contain news
// articles.
var govSkipPatterns = []string{
	"/departments", "/city-council", "/government", "/services",
	"/agendas", "/meetings", "/boards", "/commissions", "/employment",
	"/jobs", "/permits", "/forms", "/payments", "/directory",
	"/staff", "/mayor", "/elected-officials", "/residents",
	"/visitors", "/how-do-i",
}

// nonArticlePathPatterns are site plumbing pages matched at the path root.
var nonArticlePathPatterns = []string{
	"/about", "/careers", "/advertise", "/advertising", "/privacy",
	"/terms", "/contact", "/subscribe", "/subscriptions",
	"/newsletter", "/newsletters", "/login", "/register", "/signup",
	"/account", "/profile", "/settings", "/donate", "/shop", "/store",
	"/search", "/feed", "/rss", "/sitemap", "/faq", "/help",
	"/support", "/legal", "/accessibility",
}

// cdnHostMarkers allow cross-domain asset hosts that some publishers use
// for article pages.
var cdnHostMarkers = []string{"cdn.", "media.", "assets.", "img.", "images."}

// multiPartTLDs are second-level public suffixes where the registrable
// domain spans three labels.
var multiPartTLDs = map[string]struct{}{
	"co.uk": {}, "org.uk": {}, "gov.uk": {}, "ac.uk": {},
	"com.au": {}, "net.au": {}, "org.au": {},
	"co.nz": {}, "co.jp": {}, "com.br": {}, "co.in": {},
}

// IsArticleURL reports whether the candidate link should be followed as a
// potential article on the given source site.
func IsArticleURL(rawURL, baseURL string) bool {
	return ValidateArticleURL(rawURL, baseURL).Valid
}

// ValidateArticleURL classifies a candidate link against the layered
// rejection rules, checked in order with the first match winning. Two
// escape hatches override every rule: CivicAlerts pages and
// campaign-archive newsletters are always accepted.
func ValidateArticleURL(rawURL, baseURL string) Result {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return reject("unparseable url: %v", err)
	}

	host := strings.ToLower(parsed.Hostname())
	path := parsed.Path
	lowerPath := strings.ToLower(path)
	lowerURL := strings.ToLower(rawURL)

	if strings.Contains(lowerPath, "civicalerts.aspx") {
		return accept()
	}
	if host == "campaign-archive.com" || strings.HasSuffix(host, ".campaign-archive.com") {
		return accept()
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return reject("scheme %q is not http(s)", parsed.Scheme)
	}

	if path == "" || path == "/" {
		return reject("root or empty path")
	}
	if parsed.Fragment != "" {
		return reject("contains fragment")
	}

	for _, ext := range nonContentExtensions {
		if strings.HasSuffix(lowerPath, ext) {
			return reject("non-content extension %s", ext)
		}
	}

	for _, prefix := range staticSubdomainPrefixes {
		if strings.HasPrefix(host, prefix) {
			return reject("static or media subdomain %s", prefix)
		}
	}

	for key := range parsed.Query() {
		if _, skip := skipQueryParams[strings.ToLower(key)]; skip {
			return reject("skip query parameter %q", key)
		}
	}

	for _, pattern := range socialSharePatterns {
		if strings.Contains(lowerURL, pattern) {
			return reject("social share pattern %q", pattern)
		}
	}
	for _, root := range socialShareRoots {
		if pathEqualsOrUnder(lowerPath, root) {
			return reject("social share path %s", root)
		}
	}

	for _, social := range socialHosts {
		if host == social || strings.HasSuffix(host, "."+social) {
			return reject("social media host %s", social)
		}
	}

	if _, isSection := sectionRoots[strings.TrimRight(lowerPath, "/")]; isSection {
		return reject("section landing page")
	}

	if strings.Contains(host, ".gov") {
		if result, decided := validateGovPath(lowerPath); decided {
			return result
		}
	}

	for _, pattern := range nonArticlePathPatterns {
		if pathEqualsOrUnder(lowerPath, pattern) {
			return reject("non-article path %s", pattern)
		}
	}

	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || base.Hostname() == "" {
		return reject("unparseable base url")
	}
	if !sameRegistrableDomain(host, strings.ToLower(base.Hostname())) && !isCDNHost(host) {
		return reject("domain %s does not match base %s", host, base.Hostname())
	}

	return accept()
}

// validateGovPath applies the government-site rules. City-news articles at
// least two segments deep are allowed through; shallower city-news paths
// are listings, and known municipal sections are rejected outright. The
// second return value is false when the remaining rules should still run.
func validateGovPath(lowerPath string) (Result, bool) {
	if lowerPath == "/city-news" || strings.HasPrefix(lowerPath, "/city-news/") {
		if countSegments(lowerPath) >= 2 {
			return accept(), false
		}
		return reject("government news listing page"), true
	}

	for _, pattern := range govSkipPatterns {
		if pathEqualsOrUnder(lowerPath, pattern) {
			return reject("government section %s", pattern), true
		}
	}

	return accept(), false
}

// pathEqualsOrUnder reports whether path equals the pattern or sits below
// it as a deeper segment. Matching is segment-aware so "/about" does not
// swallow "/about-the-downtown-plan".
func pathEqualsOrUnder(path, pattern string) bool {
	trimmed := strings.TrimRight(path, "/")
	if trimmed == "" {
		trimmed = "/"
	}

	return trimmed == pattern || strings.HasPrefix(trimmed, pattern+"/")
}

func countSegments(path string) int {
	count := 0
	for _, segment := range strings.Split(path, "/") {
		if segment != "" {
			count++
		}
	}

	return count
}

// registrableDomain approximates the eTLD+1 of a host: the last two
// labels, or three when the suffix is a known multi-part TLD.
func registrableDomain(host string) string {
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}

	lastTwo := strings.Join(labels[len(labels)-2:], ".")
	if _, multi := multiPartTLDs[lastTwo]; multi && len(labels) >= 3 {
		return strings.Join(labels[len(labels)-3:], ".")
	}

	return lastTwo
}

func sameRegistrableDomain(host, baseHost string) bool {
	return registrableDomain(strings.TrimPrefix(host, "www.")) ==
		registrableDomain(strings.TrimPrefix(baseHost, "www."))
}

func isCDNHost(host string) bool {
	for _, marker := range cdnHostMarkers {
		if strings.Contains(host, marker) {
			return true
		}
	}

	return false
}
