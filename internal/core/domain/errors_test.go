package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrAlreadyExists", ErrAlreadyExists},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrUnsupportedType", ErrUnsupportedType},
		{"ErrConfiguration", ErrConfiguration},
		{"ErrEmbedding", ErrEmbedding},
		{"ErrReranking", ErrReranking},
		{"ErrVectorStore", ErrVectorStore},
		{"ErrKnowledge", ErrKnowledge},
		{"ErrSourceInactive", ErrSourceInactive},
		{"ErrPathNotDirectory", ErrPathNotDirectory},
		{"ErrRateLimited", ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

// TestErrors_Wrapping tests that wrapped sentinels stay matchable
func TestErrors_Wrapping(t *testing.T) {
	wrapped := fmt.Errorf("embed query: %w", ErrEmbedding)
	assert.True(t, errors.Is(wrapped, ErrEmbedding))
	assert.False(t, errors.Is(wrapped, ErrReranking))

	doubly := fmt.Errorf("search: %w", wrapped)
	assert.True(t, errors.Is(doubly, ErrEmbedding))
}

// TestErrors_Distinct tests that stage sentinels do not alias each other
func TestErrors_Distinct(t *testing.T) {
	stages := []error{ErrConfiguration, ErrEmbedding, ErrReranking, ErrVectorStore, ErrKnowledge}
	for i, a := range stages {
		for j, b := range stages {
			if i == j {
				continue
			}
			assert.False(t, errors.Is(a, b), "%v must not match %v", a, b)
		}
	}
}
