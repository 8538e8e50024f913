package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Environment variables read by FromEnv
const (
	EnvRoot           = "MATERIALSYNC_ROOT"
	EnvTemplate       = "YAML_TEMPLATE"
	EnvMaterialDir    = "MATERIAL_DIR"
	EnvSSHKeyFile     = "MATERIALSYNC_SSH_KEY_FILE"
	EnvHTTPSTokenFile = "MATERIALSYNC_HTTPS_TOKEN_FILE"
)

// Defaults, relative to the project root
const (
	DefaultTemplate    = "config/oxford.yaml"
	DefaultMaterialDir = ".material"
)

// Settings holds the resolved process configuration. It is built once at
// startup and passed to everything that needs a path.
type Settings struct {
	ProjectRoot  string
	TemplatePath string
	MaterialDir  string
	Auth         AuthConfig
}

// AuthConfig configures Git authentication
type AuthConfig struct {
	SSHKeyFile     string
	HTTPSTokenFile string
}

// Document is the material template
type Document struct {
	Material map[string]Entry `yaml:"material"`
}

// Entry is one repository to keep in sync
type Entry struct {
	Path string `yaml:"path"`
	URL  string `yaml:"url"`
}

// FromEnv resolves settings from the environment, falling back to defaults.
func FromEnv() (*Settings, error) {
	root := os.Getenv(EnvRoot)
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		root = wd
	}

	root, err := filepath.Abs(os.ExpandEnv(root))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}

	s := &Settings{
		ProjectRoot:  root,
		TemplatePath: resolve(root, envOr(EnvTemplate, DefaultTemplate)),
		MaterialDir:  resolve(root, envOr(EnvMaterialDir, DefaultMaterialDir)),
		Auth: AuthConfig{
			SSHKeyFile:     os.ExpandEnv(os.Getenv(EnvSSHKeyFile)),
			HTTPSTokenFile: os.ExpandEnv(os.Getenv(EnvHTTPSTokenFile)),
		},
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	return s, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return os.ExpandEnv(v)
	}
	return def
}

// resolve joins p onto root unless p is already absolute
func resolve(root, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, p)
}

// Validate checks the settings for errors
func (s *Settings) Validate() error {
	if !filepath.IsAbs(s.ProjectRoot) {
		return fmt.Errorf("project root must be an absolute path: %s", s.ProjectRoot)
	}

	if !within(resolveExisting(s.ProjectRoot), resolveExisting(s.MaterialDir)) {
		return fmt.Errorf("material directory %s must be inside project root %s", s.MaterialDir, s.ProjectRoot)
	}

	if s.Auth.SSHKeyFile != "" && s.Auth.HTTPSTokenFile != "" {
		return fmt.Errorf("auth: only one of %s or %s may be set", EnvSSHKeyFile, EnvHTTPSTokenFile)
	}

	return nil
}

// CheckTemplate verifies that the template is a regular file
func (s *Settings) CheckTemplate() error {
	info, err := os.Stat(s.TemplatePath)
	if err != nil {
		return fmt.Errorf("template not found: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("template is not a regular file: %s", s.TemplatePath)
	}
	return nil
}

// Prepare checks the template and creates the material directory.
func (s *Settings) Prepare() error {
	if err := s.CheckTemplate(); err != nil {
		return err
	}

	if err := os.MkdirAll(s.MaterialDir, 0755); err != nil {
		return fmt.Errorf("failed to create material directory: %w", err)
	}

	return nil
}

// AuthMethod returns a description of the configured auth method
func (s *Settings) AuthMethod() string {
	if s.Auth.SSHKeyFile != "" {
		return "ssh"
	}
	if s.Auth.HTTPSTokenFile != "" {
		return "https"
	}
	return "none"
}

// resolveExisting resolves symlinks in the longest existing prefix of p and
// appends the remainder unchanged.
func resolveExisting(p string) string {
	p = filepath.Clean(p)
	rest := ""
	for {
		if resolved, err := filepath.EvalSymlinks(p); err == nil {
			return filepath.Join(resolved, rest)
		}
		parent := filepath.Dir(p)
		if parent == p {
			return filepath.Join(p, rest)
		}
		rest = filepath.Join(filepath.Base(p), rest)
		p = parent
	}
}

// within reports whether target is base or lies beneath it
func within(base, target string) bool {
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return false
	}
	return rel == "." || filepath.IsLocal(rel)
}

// Load reads and parses the material template
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	if doc.Material == nil {
		return nil, fmt.Errorf("template %s has no top-level %q key", path, "material")
	}

	doc.expandEnv()

	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}

	return &doc, nil
}

// expandEnv expands environment variables in all entry fields
func (d *Document) expandEnv() {
	for name, e := range d.Material {
		d.Material[name] = Entry{
			Path: os.ExpandEnv(e.Path),
			URL:  os.ExpandEnv(e.URL),
		}
	}
}

// Validate checks every entry. Entry paths must stay beneath the material root.
func (d *Document) Validate() error {
	for _, name := range d.Names() {
		e := d.Material[name]
		if e.Path == "" {
			return fmt.Errorf("material.%s.path is required", name)
		}
		if e.URL == "" {
			return fmt.Errorf("material.%s.url is required", name)
		}
		if !filepath.IsLocal(filepath.FromSlash(e.Path)) {
			return fmt.Errorf("material.%s.path must be relative and stay inside the material directory: %s", name, e.Path)
		}
	}
	return nil
}

// Names returns the entry names in sorted order
func (d *Document) Names() []string {
	names := make([]string, 0, len(d.Material))
	for name := range d.Material {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dir returns the working copy directory of the entry beneath root
func (e Entry) Dir(root string) string {
	return filepath.Join(root, filepath.FromSlash(e.Path))
}
