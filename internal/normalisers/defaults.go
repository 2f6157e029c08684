package normalisers

import (
	"github.com/custodia-labs/knowledge-core/internal/normalisers/code"
	"github.com/custodia-labs/knowledge-core/internal/normalisers/jsondoc"
	"github.com/custodia-labs/knowledge-core/internal/normalisers/markdown"
	"github.com/custodia-labs/knowledge-core/internal/normalisers/plaintext"
)

// NewDefaultRegistry returns a registry with every built-in normaliser
// registered. The supported set covers .md, .txt, .py, .js and .json.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(markdown.New())
	r.Register(plaintext.New())
	r.Register(code.New())
	r.Register(jsondoc.New())
	return r
}
