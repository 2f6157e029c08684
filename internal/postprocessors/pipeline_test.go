package postprocessors

import (
	"context"
	"errors"
	"testing"

	"github.com/custodia-labs/knowledge-core/internal/core/domain"
)

// mockProcessor is a test processor that returns predefined chunks.
type mockProcessor struct {
	name   string
	chunks []domain.Chunk
	err    error
}

func (m *mockProcessor) Name() string {
	return m.name
}

func (m *mockProcessor) Process(_ context.Context, _ *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.chunks != nil {
		return m.chunks, nil
	}
	return chunks, nil
}

func TestNewPipeline(t *testing.T) {
	p := NewPipeline()
	if p == nil {
		t.Fatal("expected non-nil pipeline")
	}
	if p.Len() != 0 {
		t.Errorf("expected 0 processors, got %d", p.Len())
	}
}

func TestPipeline_Add(t *testing.T) {
	p := NewPipeline()
	p.Add(&mockProcessor{name: "test"})

	if p.Len() != 1 {
		t.Errorf("expected 1 processor, got %d", p.Len())
	}
}

func TestPipeline_Process_NilDocument(t *testing.T) {
	p := NewPipeline()

	_, err := p.Process(context.Background(), nil)
	if err == nil {
		t.Error("expected error for nil document")
	}
}

func TestPipeline_Process_EmptyPipeline(t *testing.T) {
	p := NewPipeline()
	doc := &domain.Document{
		Path:    "/docs/test.txt",
		Content: "test content",
	}

	chunks, err := p.Process(context.Background(), doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chunks != nil {
		t.Errorf("expected nil chunks from empty pipeline, got %v", chunks)
	}
}

func TestPipeline_Process_SingleProcessor(t *testing.T) {
	expectedChunks := []domain.Chunk{
		{Content: "test", Index: 0},
	}

	p := NewPipeline(&mockProcessor{
		name:   "chunker",
		chunks: expectedChunks,
	})

	doc := &domain.Document{
		Path:    "/docs/test.txt",
		Content: "test content",
	}

	chunks, err := p.Process(context.Background(), doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Content != "test" {
		t.Errorf("unexpected chunks: %v", chunks)
	}
}

func TestPipeline_Process_ChainsProcessors(t *testing.T) {
	first := &mockProcessor{
		name:   "chunker",
		chunks: []domain.Chunk{{Content: "a"}, {Content: "b"}},
	}
	// Second processor drops the first chunk.
	second := &dropFirstProcessor{}

	p := NewPipeline(first, second)
	doc := &domain.Document{Path: "/docs/test.txt", Content: "content"}

	chunks, err := p.Process(context.Background(), doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 || chunks[0].Content != "b" {
		t.Errorf("expected second processor to see first's output, got %v", chunks)
	}
}

type dropFirstProcessor struct{}

func (d *dropFirstProcessor) Name() string { return "dropfirst" }

func (d *dropFirstProcessor) Process(_ context.Context, _ *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	if len(chunks) == 0 {
		return chunks, nil
	}
	return chunks[1:], nil
}

func TestPipeline_Process_ErrorPropagates(t *testing.T) {
	wantErr := errors.New("boom")
	p := NewPipeline(&mockProcessor{name: "broken", err: wantErr})

	doc := &domain.Document{Path: "/docs/test.txt", Content: "content"}

	_, err := p.Process(context.Background(), doc)
	if !errors.Is(err, wantErr) {
		t.Errorf("expected wrapped processor error, got %v", err)
	}
}
