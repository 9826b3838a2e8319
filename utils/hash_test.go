package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentID(t *testing.T) {
	// md5("report.pdf")
	assert.Equal(t, "5c6813f49dfba292cc1008edce1c90e2", DocumentID("report.pdf"))
	assert.Equal(t, DocumentID("a.pdf"), DocumentID("a.pdf"))
	assert.NotEqual(t, DocumentID("a.pdf"), DocumentID("b.pdf"))
	assert.Len(t, DocumentID(""), 32)
}

func TestContentKey(t *testing.T) {
	assert.Len(t, ContentKey("model", "text"), 64)
	assert.NotEqual(t, ContentKey("ab", "c"), ContentKey("a", "bc"))
}
