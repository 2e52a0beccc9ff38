package zmxpath

import "testing"

func TestEncodeDecodeNameRoundTrip(t *testing.T) {
	cases := []string{
		"simple",
		"has/slash",
		"has\\backslash",
		"has%percent",
		"has\x00nul",
		"plain unicode café",
	}
	for _, name := range cases {
		encoded := EncodeName(name)
		for _, b := range []byte(encoded) {
			if b == '/' || b == '\\' || b == 0 {
				t.Fatalf("EncodeName(%q) = %q still contains a raw reserved byte", name, encoded)
			}
		}
		decoded, err := DecodeName(encoded)
		if err != nil {
			t.Fatalf("DecodeName(%q): %v", encoded, err)
		}
		if decoded != name {
			t.Fatalf("round trip: got %q, want %q", decoded, name)
		}
	}
}

func TestEncodeNamePassesThroughPlainBytes(t *testing.T) {
	if EncodeName("plain-name_123") != "plain-name_123" {
		t.Fatal("plain names should be left untouched")
	}
}

func TestGroupDefaultsAndRejectsTraversal(t *testing.T) {
	t.Setenv("ZMX_GROUP", "")
	if g := Group(); g != defaultGroup {
		t.Fatalf("Group() = %q, want %q", g, defaultGroup)
	}
	t.Setenv("ZMX_GROUP", "../escape")
	if g := Group(); g != defaultGroup {
		t.Fatalf("Group() with traversal = %q, want fallback %q", g, defaultGroup)
	}
	t.Setenv("ZMX_GROUP", "work")
	if g := Group(); g != "work" {
		t.Fatalf("Group() = %q, want %q", g, "work")
	}
}

func TestSocketRootResolutionChain(t *testing.T) {
	ResetCache()
	t.Cleanup(ResetCache)
	t.Setenv("ZMX_DIR", "/tmp/explicit-zmx-dir")
	if got := SocketRoot(); got != "/tmp/explicit-zmx-dir" {
		t.Fatalf("SocketRoot() = %q, want explicit ZMX_DIR", got)
	}
}
