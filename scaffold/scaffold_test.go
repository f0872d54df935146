package scaffold

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGenerateRendersTemplates(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "myblog")
	created, err := Generate(dir, Data{ProjectName: "myblog", SiteName: "My Blog", SiteURL: "https://blog.example.com"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(created) == 0 {
		t.Fatalf("expected files to be created")
	}

	cfg, err := os.ReadFile(filepath.Join(dir, "pubfeed.yaml"))
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !strings.Contains(string(cfg), `url: "https://blog.example.com"`) {
		t.Fatalf("site url not rendered:\n%s", cfg)
	}

	for _, name := range []string{".env.example", ".gitignore", "public/robots.txt", "src/content/posts/hello-world/index.md"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "dotenv")); !os.IsNotExist(err) {
		t.Fatalf("dotenv should have been renamed")
	}
}

func TestGenerateRefusesExistingDir(t *testing.T) {
	dir := t.TempDir()
	if _, err := Generate(dir, Data{}); err == nil {
		t.Fatalf("expected error for existing directory")
	}
}

func TestTitle(t *testing.T) {
	cases := map[string]string{
		"my-blog": "My Blog",
		"myblog":  "Myblog",
		"a--b":    "A  B",
	}
	for in, want := range cases {
		if got := Title(in); got != want {
			t.Errorf("Title(%q) = %q, want %q", in, got, want)
		}
	}
}
