package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromDocument(t *testing.T) {
	got := FromDocument("a", map[string]any{"title": "Buy milk", "complete": true})
	assert.Equal(t, Todo{ID: "a", Title: "Buy milk", Complete: true}, got)

	// wrong types and missing fields fall back to zero values
	got = FromDocument("b", map[string]any{"title": 42})
	assert.Equal(t, Todo{ID: "b"}, got)
}

func TestStats(t *testing.T) {
	done, pending := Stats([]Todo{{Complete: true}, {}, {}})
	assert.Equal(t, 1, done)
	assert.Equal(t, 2, pending)
}
