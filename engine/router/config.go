package router

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/InfraSageAI/infrasage-mvp/engine/domain"
)

const (
	// FallbackCategory receives queries that match no keyword table.
	FallbackCategory = "general"

	// DefaultMaxLocators bounds how many locators one query may fan out to.
	DefaultMaxLocators = 8
)

// Category associates a topic with its trigger keywords and the generic
// documentation locators to consult for it. Order in the table is
// significant: locators are resolved in table order.
type Category struct {
	Name     string   `yaml:"name"`
	Product  string   `yaml:"product,omitempty"`
	Keywords []string `yaml:"keywords"`
	Locators []string `yaml:"locators"`
}

// Config holds the full routing tables. Tables are plain data so operators
// can audit and extend them without touching code.
type Config struct {
	Categories []Category `yaml:"categories"`

	// VersionLocators maps product -> exact version -> version-pinned URL.
	// A category whose Product has an extracted version resolves here first.
	VersionLocators map[string]map[string]string `yaml:"version_locators"`

	MaxLocators int `yaml:"max_locators"`
}

const (
	ocpDocs     = "https://docs.redhat.com/en/documentation/openshift_container_platform"
	rhelDocs    = "https://docs.redhat.com/en/documentation/red_hat_enterprise_linux"
	ansibleDocs = "https://docs.redhat.com/en/documentation/red_hat_ansible_automation_platform"
)

// DefaultConfig returns the built-in Red Hat documentation routing tables.
func DefaultConfig() Config {
	return Config{
		Categories: []Category{
			{
				Name:     "openshift",
				Product:  "openshift",
				Keywords: []string{"openshift", "oc command", "cluster", "operator", "route", "pod", "deployment", "postinstall", "post-install"},
				Locators: []string{ocpDocs},
			},
			{
				Name:     "kubernetes",
				Product:  "openshift",
				Keywords: []string{"kubernetes", "kubectl", "pod", "deployment", "service", "ingress", "container"},
				Locators: []string{ocpDocs},
			},
			{
				Name:     "rhel",
				Product:  "rhel",
				Keywords: []string{"rhel", "red hat", "linux", "systemd", "rpm", "yum", "dnf", "enterprise linux", "installation", "install"},
				Locators: []string{rhelDocs},
			},
			{
				Name:     "ansible",
				Keywords: []string{"ansible", "automation", "playbook", "tower", "awx", "automation platform"},
				Locators: []string{ansibleDocs},
			},
			{
				Name:     "virtualization",
				Product:  "openshift",
				Keywords: []string{"virtualization", "virtual machine", "vm", "virt", "kvm", "libvirt", "hypervisor"},
				Locators: []string{ocpDocs},
			},
			{
				Name:     "containerization",
				Keywords: []string{"docker", "podman", "container", "image", "dockerfile", "buildah"},
				Locators: []string{ocpDocs, rhelDocs},
			},
			{
				Name:     "configuration",
				Keywords: []string{"yaml", "config", "configuration", "settings", "parameters", "setup", "postinstall"},
				Locators: []string{rhelDocs, ocpDocs},
			},
			{
				Name:     FallbackCategory,
				Locators: []string{ansibleDocs, rhelDocs, ocpDocs},
			},
		},
		VersionLocators: map[string]map[string]string{
			"openshift": {
				"4.12": ocpDocs + "/4.12",
				"4.13": ocpDocs + "/4.13",
				"4.14": ocpDocs + "/4.14",
				"4.15": ocpDocs + "/4.15",
				"4.16": ocpDocs + "/4.16",
				"4.17": ocpDocs + "/4.17",
				"4.18": ocpDocs + "/4.18",
				"4.19": ocpDocs + "/4.19",
			},
			"rhel": {
				"7": rhelDocs + "/7",
				"8": rhelDocs + "/8",
				"9": rhelDocs + "/9",
			},
		},
		MaxLocators: DefaultMaxLocators,
	}
}

// LoadConfig reads routing tables from a YAML file. Malformed tables are a
// startup error, never a silent fallback.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("router: read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("router: parse config %s: %w", path, err)
	}
	if cfg.MaxLocators == 0 {
		cfg.MaxLocators = DefaultMaxLocators
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if len(c.Categories) == 0 {
		return &domain.ConfigError{Field: "categories", Reason: "table is empty"}
	}
	if c.MaxLocators <= 0 {
		return &domain.ConfigError{Field: "max_locators", Reason: "must be positive"}
	}
	seen := make(map[string]bool, len(c.Categories))
	hasFallback := false
	for _, cat := range c.Categories {
		if cat.Name == "" {
			return &domain.ConfigError{Field: "categories", Reason: "category with empty name"}
		}
		if seen[cat.Name] {
			return &domain.ConfigError{Field: "categories", Reason: "duplicate category " + cat.Name}
		}
		seen[cat.Name] = true
		if len(cat.Locators) == 0 {
			return &domain.ConfigError{Field: "categories", Reason: "category " + cat.Name + " has no locators"}
		}
		if cat.Name == FallbackCategory {
			hasFallback = true
		}
	}
	if !hasFallback {
		return &domain.ConfigError{Field: "categories", Reason: "missing fallback category " + FallbackCategory}
	}
	return nil
}
