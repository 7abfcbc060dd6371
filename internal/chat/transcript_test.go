package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTranscriptAppend(t *testing.T) {
	tr := NewTranscript()
	assert.Equal(t, 0, tr.Len())

	tr.Append("a")
	tr.Append("b")
	entries := tr.Entries()
	assert.Equal(t, []string{"a", "b"}, entries)

	entries[0] = "mutated"
	assert.Equal(t, []string{"a", "b"}, tr.Entries())
	assert.Equal(t, 2, tr.Len())
}
