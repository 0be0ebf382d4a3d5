package router

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/InfraSageAI/infrasage-mvp/engine/domain"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	r, err := New(DefaultConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestClassify(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		query string
		want  []string
	}{
		{"How do I create an OpenShift route", []string{"openshift"}},
		{"systemd service fails to start on RHEL", []string{"rhel"}},
		{"podman build an image from a dockerfile", []string{"containerization"}},
		{"write an ansible playbook", []string{"ansible"}},
		{"what is the meaning of life", []string{"general"}},
	}
	for _, tc := range tests {
		got := r.Classify(tc.query)
		if len(got) == 0 {
			t.Fatalf("Classify(%q) returned nothing", tc.query)
		}
		for _, want := range tc.want {
			found := false
			for _, g := range got {
				if g == want {
					found = true
				}
			}
			if !found {
				t.Errorf("Classify(%q) = %v, missing %q", tc.query, got, want)
			}
		}
	}
}

func TestClassify_MultipleCategories(t *testing.T) {
	r := newTestRouter(t)
	got := r.Classify("deploy a container on an openshift cluster")
	if len(got) < 2 {
		t.Fatalf("expected multiple categories, got %v", got)
	}
}

func TestExtractVersions(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		query   string
		product string
		version string
	}{
		{"set up an OpenShift 4.18 cluster", "openshift", "4.18"},
		{"OpenShift Container Platform 4.16 networking", "openshift", "4.16"},
		{"install packages on RHEL 9", "rhel", "9"},
		{"Red Hat Enterprise Linux 8 firewall", "rhel", "8"},
	}
	for _, tc := range tests {
		got := r.ExtractVersions(tc.query)
		if got[tc.product] != tc.version {
			t.Errorf("ExtractVersions(%q) = %v, want %s=%s", tc.query, got, tc.product, tc.version)
		}
	}

	if got := r.ExtractVersions("generic linux question"); len(got) != 0 {
		t.Errorf("expected no versions, got %v", got)
	}
}

// An OpenShift query carrying a version known to the version table resolves
// to the version-pinned URL instead of the generic documentation root.
func TestRoute_VersionPinnedLocator(t *testing.T) {
	r := newTestRouter(t)

	categories, locators := r.Route("How do I set up an OpenShift 4.18 cluster")
	if categories[0] != "openshift" {
		t.Fatalf("expected openshift category, got %v", categories)
	}
	if len(locators) == 0 {
		t.Fatal("expected locators")
	}
	if locators[0].Value != ocpDocs+"/4.18" {
		t.Fatalf("expected 4.18-pinned locator first, got %s", locators[0].Value)
	}
	if locators[0].Version != "4.18" {
		t.Fatalf("locator should carry the version, got %q", locators[0].Version)
	}
}

func TestRoute_UnknownVersionFallsBackToGeneric(t *testing.T) {
	r := newTestRouter(t)

	_, locators := r.Route("set up an OpenShift 3.11 cluster")
	if len(locators) == 0 {
		t.Fatal("expected locators")
	}
	if locators[0].Value != ocpDocs {
		t.Fatalf("expected generic locator, got %s", locators[0].Value)
	}
}

func TestResolveLocators_DedupAndCap(t *testing.T) {
	r := newTestRouter(t)

	// containerization and configuration both carry the RHEL docs root;
	// it must appear once.
	locs := r.ResolveLocators([]string{"containerization", "configuration"}, nil)
	counts := make(map[string]int)
	for _, l := range locs {
		counts[l.Value]++
	}
	for url, n := range counts {
		if n > 1 {
			t.Errorf("locator %s appears %d times", url, n)
		}
	}
	if len(locs) > DefaultMaxLocators {
		t.Errorf("locator count %d exceeds cap %d", len(locs), DefaultMaxLocators)
	}
}

func TestRoute_CommandLocatorForResourcePath(t *testing.T) {
	r := newTestRouter(t)

	_, locators := r.Route("explain the fields under pod.spec in openshift")
	if len(locators) == 0 {
		t.Fatal("expected locators")
	}
	if locators[0].Kind != domain.LocatorCommand {
		t.Fatalf("expected command locator first, got %s", locators[0].Kind)
	}
	if locators[0].Value != "oc explain pod.spec" {
		t.Fatalf("unexpected command: %s", locators[0].Value)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routes.yaml")
	data := `
categories:
  - name: storage
    keywords: [ceph, odf]
    locators: ["https://docs.redhat.com/en/documentation/red_hat_openshift_data_foundation"]
  - name: general
    locators: ["https://docs.redhat.com"]
max_locators: 4
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Categories) != 2 || cfg.MaxLocators != 4 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadConfig_RejectsMissingFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routes.yaml")
	data := `
categories:
  - name: storage
    keywords: [ceph]
    locators: ["https://docs.redhat.com"]
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadConfig(path)
	var cfgErr *domain.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}
