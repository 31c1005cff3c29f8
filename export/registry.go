package export

import (
	"fmt"
	"sync"
)

// RendererRegistry stores renderers by artifact kind.
type RendererRegistry struct {
	mu        sync.RWMutex
	renderers map[ArtifactKind]Renderer
}

// NewRendererRegistry creates an empty registry.
func NewRendererRegistry() *RendererRegistry {
	return &RendererRegistry{renderers: make(map[ArtifactKind]Renderer)}
}

// NewDefaultRendererRegistry creates a registry with the built-in
// renderers wired for every renderable artifact kind.
func NewDefaultRendererRegistry() *RendererRegistry {
	r := NewRendererRegistry()
	html := HTMLRenderer{}
	for _, kind := range []ArtifactKind{ArtifactHTMLMax, ArtifactHTMLMid, ArtifactHTMLMin, ArtifactHTMLSdc} {
		if err := r.Register(kind, html); err != nil {
			panic(err)
		}
	}
	if err := r.Register(ArtifactMarkdown, MarkdownRenderer{}); err != nil {
		panic(err)
	}
	return r
}

// Register adds a renderer for an artifact kind.
func (r *RendererRegistry) Register(kind ArtifactKind, renderer Renderer) error {
	if kind == "" {
		return NewError(KindValidation, "artifact kind is required", nil)
	}
	if renderer == nil {
		return NewError(KindValidation, "renderer is required", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.renderers[kind]; exists {
		return NewError(KindValidation, fmt.Sprintf("renderer for %q already registered", kind), nil)
	}
	r.renderers[kind] = renderer
	return nil
}

// Resolve returns the renderer for an artifact kind.
func (r *RendererRegistry) Resolve(kind ArtifactKind) (Renderer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	renderer, ok := r.renderers[kind]
	return renderer, ok
}

// ParserRegistry stores chat parsers by format name.
type ParserRegistry struct {
	mu      sync.RWMutex
	parsers map[string]ChatParser
}

// NewParserRegistry creates an empty registry.
func NewParserRegistry() *ParserRegistry {
	return &ParserRegistry{parsers: make(map[string]ChatParser)}
}

// NewDefaultParserRegistry creates a registry with the built-in
// parsers registered.
func NewDefaultParserRegistry() *ParserRegistry {
	r := NewParserRegistry()
	if err := r.Register(FormatLines, LineParser{}); err != nil {
		panic(err)
	}
	if err := r.Register(FormatJSON, JSONParser{}); err != nil {
		panic(err)
	}
	return r
}

// Register adds a parser for a chat format.
func (r *ParserRegistry) Register(format string, parser ChatParser) error {
	if format == "" {
		return NewError(KindValidation, "parser format is required", nil)
	}
	if parser == nil {
		return NewError(KindValidation, "parser is required", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.parsers[format]; exists {
		return NewError(KindValidation, fmt.Sprintf("parser for %q already registered", format), nil)
	}
	r.parsers[format] = parser
	return nil
}

// Resolve returns the parser for a chat format.
func (r *ParserRegistry) Resolve(format string) (ChatParser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	parser, ok := r.parsers[format]
	return parser, ok
}
