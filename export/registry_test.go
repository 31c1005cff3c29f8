package export

import "testing"

func TestDefaultRendererRegistry(t *testing.T) {
	registry := NewDefaultRendererRegistry()

	for _, kind := range []ArtifactKind{ArtifactHTMLMax, ArtifactHTMLMid, ArtifactHTMLMin, ArtifactHTMLSdc, ArtifactMarkdown} {
		if _, ok := registry.Resolve(kind); !ok {
			t.Fatalf("expected renderer for %q", kind)
		}
	}
	if _, ok := registry.Resolve(ArtifactManifest); ok {
		t.Fatal("manifest is written directly, not rendered")
	}
}

func TestRendererRegistryRegister(t *testing.T) {
	registry := NewRendererRegistry()

	if err := registry.Register(ArtifactHTMLMin, HTMLRenderer{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register(ArtifactHTMLMin, HTMLRenderer{}); err == nil {
		t.Fatal("expected duplicate registration to fail")
	} else if kind := KindFromError(err); kind != KindValidation {
		t.Fatalf("expected validation error, got %q", kind)
	}

	if err := registry.Register("", HTMLRenderer{}); err == nil {
		t.Fatal("expected empty kind to fail")
	}
	if err := registry.Register(ArtifactHTMLMax, nil); err == nil {
		t.Fatal("expected nil renderer to fail")
	}
	if _, ok := registry.Resolve(ArtifactHTMLMax); ok {
		t.Fatal("rejected registration must not resolve")
	}
}

func TestDefaultParserRegistry(t *testing.T) {
	registry := NewDefaultParserRegistry()

	for _, format := range []string{FormatLines, FormatJSON} {
		if _, ok := registry.Resolve(format); !ok {
			t.Fatalf("expected parser for %q", format)
		}
	}
	if _, ok := registry.Resolve("csv"); ok {
		t.Fatal("expected unknown format to miss")
	}
}

func TestParserRegistryRegister(t *testing.T) {
	registry := NewParserRegistry()

	if err := registry.Register(FormatLines, LineParser{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register(FormatLines, JSONParser{}); err == nil {
		t.Fatal("expected duplicate registration to fail")
	} else if kind := KindFromError(err); kind != KindValidation {
		t.Fatalf("expected validation error, got %q", kind)
	}

	if err := registry.Register("", LineParser{}); err == nil {
		t.Fatal("expected empty format to fail")
	}
	if err := registry.Register(FormatJSON, nil); err == nil {
		t.Fatal("expected nil parser to fail")
	}
}
