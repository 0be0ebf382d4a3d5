package webfetch

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Regex-based extraction is deliberate: the Red Hat documentation pages this
// fetcher targets are well-formed enough that a full DOM parse buys nothing,
// and the patterns below survive markup drift better than brittle selectors.
var (
	stripRes = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script>`),
		regexp.MustCompile(`(?is)<style\b[^>]*>.*?</style>`),
		regexp.MustCompile(`(?is)<nav\b[^>]*>.*?</nav>`),
		regexp.MustCompile(`(?is)<header\b[^>]*>.*?</header>`),
		regexp.MustCompile(`(?is)<footer\b[^>]*>.*?</footer>`),
		regexp.MustCompile(`(?is)<aside\b[^>]*>.*?</aside>`),
		regexp.MustCompile(`(?is)<noscript\b[^>]*>.*?</noscript>`),
		regexp.MustCompile(`(?is)<!--.*?-->`),
	}

	// Content containers tried most-specific first.
	containerRes = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<main\b[^>]*>(.*)</main>`),
		regexp.MustCompile(`(?is)<article\b[^>]*>(.*)</article>`),
		regexp.MustCompile(`(?is)<div\b[^>]*(?:class|id)="[^"]*(?:main-content|article-content|documentation-content|book-content|chapter-content|section-content)[^"]*"[^>]*>(.*)</div>`),
		regexp.MustCompile(`(?is)<body\b[^>]*>(.*)</body>`),
	}

	titleRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	h1Re    = regexp.MustCompile(`(?is)<h1\b[^>]*>(.*?)</h1>`)
	tagRe   = regexp.MustCompile(`<[^>]*>`)
	wsRe    = regexp.MustCompile(`\s+`)
)

// cleanHTML strips markup down to readable text: drop non-content elements,
// pick the most specific content container present, remove remaining tags,
// and collapse whitespace.
func cleanHTML(raw string) string {
	for _, re := range stripRes {
		raw = re.ReplaceAllString(raw, " ")
	}

	body := raw
	for _, re := range containerRes {
		if m := re.FindStringSubmatch(raw); m != nil {
			body = m[1]
			break
		}
	}

	text := tagRe.ReplaceAllString(body, " ")
	text = html.UnescapeString(text)
	return strings.TrimSpace(wsRe.ReplaceAllString(text, " "))
}

// extractTitle pulls the page title, falling back to the first heading.
func extractTitle(raw string) string {
	if m := titleRe.FindStringSubmatch(raw); m != nil {
		if t := strings.TrimSpace(tagRe.ReplaceAllString(html.UnescapeString(m[1]), " ")); t != "" {
			return wsRe.ReplaceAllString(t, " ")
		}
	}
	if m := h1Re.FindStringSubmatch(raw); m != nil {
		if t := strings.TrimSpace(tagRe.ReplaceAllString(html.UnescapeString(m[1]), " ")); t != "" {
			return wsRe.ReplaceAllString(t, " ")
		}
	}
	return "Red Hat Documentation"
}

// classifyDocType labels a document by product line based on its URL and
// title. The label travels with the source record so answers can tell the
// reader which documentation set a citation came from.
func classifyDocType(url, title string) string {
	u := strings.ToLower(url)
	t := strings.ToLower(title)

	switch {
	case strings.Contains(u, "openshift") || strings.Contains(t, "openshift"):
		switch {
		case strings.Contains(u, "virtualization") || strings.Contains(t, "virtualization"):
			return "OpenShift Virtualization"
		case strings.Contains(u, "postinstall") || strings.Contains(t, "post-install"):
			return "OpenShift Post-Installation"
		default:
			return "OpenShift Container Platform"
		}
	case strings.Contains(u, "rhel") || strings.Contains(u, "red_hat_enterprise_linux"):
		return "Red Hat Enterprise Linux"
	case strings.Contains(u, "ansible") || strings.Contains(u, "automation_platform"):
		return "Red Hat Ansible Automation Platform"
	default:
		return "Red Hat Documentation"
	}
}

// clampToRune cuts s to at most limit bytes without splitting a multi-byte
// rune at the cut point.
func clampToRune(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
