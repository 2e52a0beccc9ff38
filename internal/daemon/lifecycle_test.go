package daemon

import "testing"

func TestLoginShellPrefersEnv(t *testing.T) {
	t.Setenv("SHELL", "/usr/local/bin/fish")
	if got := loginShell(); got != "/usr/local/bin/fish" {
		t.Fatalf("loginShell() = %q, want /usr/local/bin/fish", got)
	}
}

func TestLoginShellFallsBackToSh(t *testing.T) {
	t.Setenv("SHELL", "")
	if got := loginShell(); got != "/bin/sh" {
		t.Fatalf("loginShell() = %q, want /bin/sh", got)
	}
}

func TestBaseName(t *testing.T) {
	cases := map[string]string{
		"/bin/bash":     "bash",
		"/usr/bin/zsh":  "zsh",
		"fish":          "fish",
		"/a/b/c/-weird": "-weird",
	}
	for in, want := range cases {
		if got := baseName(in); got != want {
			t.Errorf("baseName(%q) = %q, want %q", in, got, want)
		}
	}
}
