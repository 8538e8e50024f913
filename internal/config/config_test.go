package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemplate(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "oxford.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeTemplate(t, `
material:
  hpc:
    path: "hpc"
    url: "https://github.com/UNIVERSE-HPC/course-material.git"
  intro:
    path: "intro/python"
    url: "git@github.com:test/intro.git"
`)

	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(doc.Material) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(doc.Material))
	}
	if got := doc.Material["hpc"].URL; got != "https://github.com/UNIVERSE-HPC/course-material.git" {
		t.Errorf("unexpected hpc url %s", got)
	}
	if got := doc.Material["intro"].Path; got != "intro/python" {
		t.Errorf("unexpected intro path %s", got)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "malformed yaml", content: "material: [\n"},
		{name: "missing material key", content: "other:\n  a: b\n"},
		{name: "null material", content: "material:\n"},
		{name: "missing url", content: "material:\n  foo:\n    path: foo\n"},
		{name: "missing path", content: "material:\n  foo:\n    url: https://example.com/foo.git\n"},
		{name: "absolute path", content: "material:\n  foo:\n    path: /etc\n    url: https://example.com/foo.git\n"},
		{name: "escaping path", content: "material:\n  foo:\n    path: ../../foo\n    url: https://example.com/foo.git\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeTemplate(t, tt.content)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml")); err == nil {
		t.Fatal("expected error for missing template, got nil")
	}
}

func TestLoad_EmptyMaterial(t *testing.T) {
	doc, err := Load(writeTemplate(t, "material: {}\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(doc.Names()) != 0 {
		t.Errorf("expected no entries, got %v", doc.Names())
	}
}

func TestLoad_ExpandEnv(t *testing.T) {
	t.Setenv("MATERIALSYNC_TEST_ORG", "UNIVERSE-HPC")

	doc, err := Load(writeTemplate(t, `
material:
  hpc:
    path: "${MATERIALSYNC_TEST_ORG}/hpc"
    url: "https://github.com/${MATERIALSYNC_TEST_ORG}/course-material.git"
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	e := doc.Material["hpc"]
	if e.Path != "UNIVERSE-HPC/hpc" {
		t.Errorf("Path = %s, want UNIVERSE-HPC/hpc", e.Path)
	}
	if e.URL != "https://github.com/UNIVERSE-HPC/course-material.git" {
		t.Errorf("URL = %s", e.URL)
	}
}

func TestNames(t *testing.T) {
	doc := Document{Material: map[string]Entry{
		"zeta":  {Path: "z", URL: "u"},
		"alpha": {Path: "a", URL: "u"},
		"mid":   {Path: "m", URL: "u"},
	}}

	got := doc.Names()
	want := []string{"alpha", "mid", "zeta"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestEntryDir(t *testing.T) {
	e := Entry{Path: "intro/python"}
	if got, want := e.Dir("/root/.material"), filepath.Join("/root/.material", "intro", "python"); got != want {
		t.Errorf("Dir() = %s, want %s", got, want)
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	root := t.TempDir()
	t.Setenv(EnvRoot, root)
	t.Setenv(EnvTemplate, "")
	t.Setenv(EnvMaterialDir, "")
	t.Setenv(EnvSSHKeyFile, "")
	t.Setenv(EnvHTTPSTokenFile, "")

	s, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}

	if s.ProjectRoot != root {
		t.Errorf("ProjectRoot = %s, want %s", s.ProjectRoot, root)
	}
	if want := filepath.Join(root, "config", "oxford.yaml"); s.TemplatePath != want {
		t.Errorf("TemplatePath = %s, want %s", s.TemplatePath, want)
	}
	if want := filepath.Join(root, ".material"); s.MaterialDir != want {
		t.Errorf("MaterialDir = %s, want %s", s.MaterialDir, want)
	}
	if s.AuthMethod() != "none" {
		t.Errorf("AuthMethod() = %s, want none", s.AuthMethod())
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	root := t.TempDir()
	t.Setenv(EnvRoot, root)
	t.Setenv(EnvTemplate, "config/test.yaml")
	t.Setenv(EnvMaterialDir, "build/material")
	t.Setenv(EnvSSHKeyFile, "")
	t.Setenv(EnvHTTPSTokenFile, "")

	s, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}

	if want := filepath.Join(root, "config", "test.yaml"); s.TemplatePath != want {
		t.Errorf("TemplatePath = %s, want %s", s.TemplatePath, want)
	}
	if want := filepath.Join(root, "build", "material"); s.MaterialDir != want {
		t.Errorf("MaterialDir = %s, want %s", s.MaterialDir, want)
	}
}

func TestFromEnv_MaterialDirOutsideRoot(t *testing.T) {
	tests := []struct {
		name  string
		dir   string
		setup func(t *testing.T, root string)
	}{
		{name: "parent traversal", dir: "../elsewhere"},
		{name: "absolute outside", dir: os.TempDir()},
		{
			name: "symlink escaping root",
			dir:  "link/courses",
			setup: func(t *testing.T, root string) {
				if err := os.Symlink(t.TempDir(), filepath.Join(root, "link")); err != nil {
					t.Skipf("symlinks not supported: %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := filepath.Join(t.TempDir(), "project")
			if tt.setup != nil {
				if err := os.MkdirAll(root, 0755); err != nil {
					t.Fatal(err)
				}
				tt.setup(t, root)
			}
			t.Setenv(EnvRoot, root)
			t.Setenv(EnvMaterialDir, tt.dir)
			t.Setenv(EnvSSHKeyFile, "")
			t.Setenv(EnvHTTPSTokenFile, "")

			if _, err := FromEnv(); err == nil {
				t.Error("expected error for material dir outside project root, got nil")
			}
		})
	}
}

func TestFromEnv_MaterialDirSymlinkInsideRoot(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "store"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(root, "store"), filepath.Join(root, "link")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	t.Setenv(EnvRoot, root)
	t.Setenv(EnvMaterialDir, "link")
	t.Setenv(EnvSSHKeyFile, "")
	t.Setenv(EnvHTTPSTokenFile, "")

	if _, err := FromEnv(); err != nil {
		t.Errorf("expected symlink resolving inside the root to be accepted, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		wantErr  bool
	}{
		{
			name:     "valid settings",
			settings: Settings{ProjectRoot: "/project", MaterialDir: "/project/.material"},
		},
		{
			name:     "material dir equals root",
			settings: Settings{ProjectRoot: "/project", MaterialDir: "/project"},
		},
		{
			name:     "relative root",
			settings: Settings{ProjectRoot: "project", MaterialDir: "project/.material"},
			wantErr:  true,
		},
		{
			name:     "sibling with shared prefix",
			settings: Settings{ProjectRoot: "/project", MaterialDir: "/project-material"},
			wantErr:  true,
		},
		{
			name: "both auth methods set",
			settings: Settings{
				ProjectRoot: "/project",
				MaterialDir: "/project/.material",
				Auth:        AuthConfig{SSHKeyFile: "/key", HTTPSTokenFile: "/token"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.settings.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPrepare(t *testing.T) {
	root := t.TempDir()
	tmpl := filepath.Join(root, "oxford.yaml")
	if err := os.WriteFile(tmpl, []byte("material: {}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	s := &Settings{
		ProjectRoot:  root,
		TemplatePath: tmpl,
		MaterialDir:  filepath.Join(root, ".material", "nested"),
	}
	if err := s.Prepare(); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}

	info, err := os.Stat(s.MaterialDir)
	if err != nil {
		t.Fatalf("material dir not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("material dir is not a directory")
	}
}

func TestPrepare_TemplateErrors(t *testing.T) {
	root := t.TempDir()

	missing := &Settings{ProjectRoot: root, TemplatePath: filepath.Join(root, "missing.yaml"), MaterialDir: filepath.Join(root, ".material")}
	if err := missing.Prepare(); err == nil {
		t.Error("expected error for missing template")
	}

	dir := &Settings{ProjectRoot: root, TemplatePath: root, MaterialDir: filepath.Join(root, ".material")}
	if err := dir.Prepare(); err == nil {
		t.Error("expected error for directory template")
	}

	if _, err := os.Stat(filepath.Join(root, ".material")); !os.IsNotExist(err) {
		t.Error("material dir must not be created when the template is invalid")
	}
}

func TestAuthMethod(t *testing.T) {
	tests := []struct {
		name string
		auth AuthConfig
		want string
	}{
		{name: "ssh key set", auth: AuthConfig{SSHKeyFile: "/key"}, want: "ssh"},
		{name: "https token set", auth: AuthConfig{HTTPSTokenFile: "/token"}, want: "https"},
		{name: "no auth", auth: AuthConfig{}, want: "none"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Settings{Auth: tt.auth}
			if got := s.AuthMethod(); got != tt.want {
				t.Errorf("AuthMethod() = %s, want %s", got, tt.want)
			}
		})
	}
}
