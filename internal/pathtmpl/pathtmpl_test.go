package pathtmpl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSubstitutesFields(t *testing.T) {
	tmpl, err := Parse("video_name", "{{.Title}} [{{.BVID}}]")
	require.NoError(t, err)

	out, err := tmpl.Render(VideoData{BVID: "BV1xx", Title: "a great video"})
	require.NoError(t, err)
	assert.Equal(t, "a great video [BV1xx]", out)
}

func TestRenderPageData(t *testing.T) {
	tmpl, err := Parse("page_name", "{{.PTitle}} - P{{.PID}}")
	require.NoError(t, err)

	out, err := tmpl.Render(PageData{PTitle: "part one", PID: 2})
	require.NoError(t, err)
	assert.Equal(t, "part one - P2", out)
}

func TestTruncateHelperCutsNarrowRunes(t *testing.T) {
	tmpl, err := Parse("t", "{{ truncate .Title 5 }}")
	require.NoError(t, err)

	out, err := tmpl.Render(VideoData{Title: "abcdefgh"})
	require.NoError(t, err)
	assert.Equal(t, "abcde", out)
}

func TestTruncateHelperCountsWideRunesAsTwoColumns(t *testing.T) {
	tmpl, err := Parse("t", "{{ truncate .Title 6 }}")
	require.NoError(t, err)

	out, err := tmpl.Render(VideoData{Title: "测试测试测试"})
	require.NoError(t, err)
	// Each CJK glyph occupies two display columns, so a width-6 budget
	// fits exactly three of them.
	assert.Equal(t, "测试测", out)
}

func TestSanitizeStripsIllegalPathCharacters(t *testing.T) {
	assert.Equal(t, "a b c", Sanitize(`a b: "c`))
}
