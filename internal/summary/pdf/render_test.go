package pdf

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/docchat/internal/summary"
)

func fixedRenderer() *Renderer {
	return &Renderer{now: func() time.Time { return time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC) }}
}

func TestRenderFallbackSummary(t *testing.T) {
	var buf bytes.Buffer
	err := fixedRenderer().Render(&buf, "u1", "s1", summary.FallbackSummary())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Contains(t, buf.String(), "%%EOF")
}

func TestRenderPaginatesLongSummaries(t *testing.T) {
	s := summary.FallbackSummary()
	s.Fallback = false
	s.MedicationsTreatment = nil
	for i := 0; i < 60; i++ {
		s.ActionItems = append(s.ActionItems, fmt.Sprintf("Step %d: résumé of the follow-up plan • keep notes", i))
	}

	doc := fixedRenderer().document("u1", "s1", s)
	require.NoError(t, doc.Error())
	assert.Greater(t, doc.PageNo(), 2)

	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	assert.NotZero(t, buf.Len())
}
