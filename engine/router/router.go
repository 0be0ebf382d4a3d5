// Package router maps free-text questions onto the documentation sources
// worth consulting for them. Classification is table-driven substring
// matching so the routing behavior stays auditable: a misrouted query
// degrades answers silently, and a keyword table is the one place to look.
package router

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/InfraSageAI/infrasage-mvp/engine/domain"
	"github.com/InfraSageAI/infrasage-mvp/pkg/fn"
)

// Product version mentions: digits trailing the product keyword.
var (
	openshiftVersionRe = regexp.MustCompile(`(?i)openshift(?:\s+container\s+platform)?\s+v?(\d+\.\d+)`)
	rhelVersionRe      = regexp.MustCompile(`(?i)(?:rhel|red\s+hat\s+enterprise\s+linux)\s+v?(\d+)`)

	// Resource paths like "pod.spec" resolve to a live oc explain call
	// instead of a documentation page.
	ocResourceRe = regexp.MustCompile(`(?i)\b(pod|deployment|service)\.spec\b`)
)

// Router resolves queries to categories and knowledge-source locators.
type Router struct {
	cfg    Config
	logger *slog.Logger
}

// New validates the routing tables and returns a Router.
func New(cfg Config, logger *slog.Logger) (*Router, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxLocators == 0 {
		cfg.MaxLocators = DefaultMaxLocators
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Router{cfg: cfg, logger: logger}, nil
}

// Classify returns every category whose keyword table matches the query,
// in table order. A query matching nothing gets the fallback category.
func (r *Router) Classify(query string) []string {
	q := strings.ToLower(query)
	var categories []string
	for _, cat := range r.cfg.Categories {
		for _, kw := range cat.Keywords {
			if strings.Contains(q, kw) {
				categories = append(categories, cat.Name)
				break
			}
		}
	}
	if len(categories) == 0 {
		categories = []string{FallbackCategory}
	}
	return categories
}

// ExtractVersions scans the query for product version mentions. Products
// without a mention are absent from the result.
func (r *Router) ExtractVersions(query string) map[string]string {
	versions := make(map[string]string)
	if m := openshiftVersionRe.FindStringSubmatch(query); m != nil {
		versions["openshift"] = m[1]
	}
	if m := rhelVersionRe.FindStringSubmatch(query); m != nil {
		versions["rhel"] = m[1]
	}
	return versions
}

// ResolveLocators turns categories plus extracted versions into a bounded,
// deduplicated locator list. A category whose product has a known
// version-pinned URL resolves to that URL alone; everything else falls back
// to the category's generic locators.
func (r *Router) ResolveLocators(categories []string, versions map[string]string) []domain.Locator {
	var out []domain.Locator

	for _, name := range categories {
		cat, ok := r.category(name)
		if !ok {
			continue
		}
		if url := r.versionURL(cat.Product, versions); url != "" {
			out = append(out, domain.Locator{
				Kind:     domain.LocatorURL,
				Value:    url,
				Category: cat.Name,
				Version:  versions[cat.Product],
			})
			continue
		}
		for _, url := range cat.Locators {
			out = append(out, domain.Locator{Kind: domain.LocatorURL, Value: url, Category: cat.Name})
		}
	}

	out = fn.UniqueBy(out, func(l domain.Locator) string { return l.Value })
	if len(out) > r.cfg.MaxLocators {
		out = out[:r.cfg.MaxLocators]
	}
	return out
}

// Route is the full per-query resolution: classification, version
// extraction, locator resolution, plus a command locator when the query
// names an API resource path that oc explain can describe directly.
func (r *Router) Route(query string) ([]string, []domain.Locator) {
	categories := r.Classify(query)
	versions := r.ExtractVersions(query)
	locators := r.ResolveLocators(categories, versions)

	if m := ocResourceRe.FindStringSubmatch(query); m != nil {
		cmd := domain.Locator{
			Kind:     domain.LocatorCommand,
			Value:    "oc explain " + strings.ToLower(m[0]),
			Category: "openshift",
		}
		if len(locators) < r.cfg.MaxLocators {
			locators = append([]domain.Locator{cmd}, locators...)
		} else {
			locators = append([]domain.Locator{cmd}, locators[:r.cfg.MaxLocators-1]...)
		}
	}

	r.logger.Debug("router: resolved query",
		"categories", categories,
		"versions", versions,
		"locators", len(locators))
	return categories, locators
}

func (r *Router) category(name string) (Category, bool) {
	for _, cat := range r.cfg.Categories {
		if cat.Name == name {
			return cat, true
		}
	}
	return Category{}, false
}

func (r *Router) versionURL(product string, versions map[string]string) string {
	if product == "" {
		return ""
	}
	v, ok := versions[product]
	if !ok {
		return ""
	}
	table, ok := r.cfg.VersionLocators[product]
	if !ok {
		return ""
	}
	return table[v]
}
