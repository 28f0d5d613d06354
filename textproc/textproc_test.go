package textproc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateUnits(t *testing.T) {
	assert.Equal(t, 0, EstimateUnits(""))
	assert.Equal(t, 1, EstimateUnits("abc"))
	assert.Equal(t, 1, EstimateUnits("abcd"))
	assert.Equal(t, 2, EstimateUnits("abcde"))
}

func TestTruncateShortTextUnchanged(t *testing.T) {
	text := strings.Repeat("a", 40)
	assert.Equal(t, text, Truncate(text, 10))
}

func TestTruncateLongText(t *testing.T) {
	text := strings.Repeat("b", 100)

	got := Truncate(text, 10)

	require.True(t, strings.HasSuffix(got, TruncationNotice))
	assert.Equal(t, strings.Repeat("b", 40), strings.TrimSuffix(got, TruncationNotice))
}

func TestTruncateIsIdempotent(t *testing.T) {
	inputs := []string{
		strings.Repeat("x", 1000),
		strings.Repeat("é", 300),
		"short",
	}
	for _, input := range inputs {
		once := Truncate(input, 25)
		assert.Equal(t, once, Truncate(once, 25))
	}
}

func TestTruncateKeepsValidUTF8(t *testing.T) {
	got := Truncate(strings.Repeat("é", 100), 5)
	body := strings.TrimSuffix(got, TruncationNotice)
	assert.Equal(t, strings.Repeat("é", 10), body)
}

func TestSegmentEmptyInput(t *testing.T) {
	assert.Empty(t, Segment("", 10))
	assert.Empty(t, Segment("\n\n  \n\n", 10))
}

func TestSegmentPacksParagraphsUnderBudget(t *testing.T) {
	paragraphs := []string{
		strings.Repeat("a", 15),
		strings.Repeat("b", 15),
		strings.Repeat("c", 15),
		strings.Repeat("d", 30),
		strings.Repeat("e", 5),
	}
	text := strings.Join(paragraphs, "\n\n")

	chunks := Segment(text, 10) // 40 byte budget

	require.Equal(t, []string{
		paragraphs[0] + "\n\n" + paragraphs[1],
		paragraphs[2],
		paragraphs[3] + "\n\n" + paragraphs[4],
	}, chunks)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(chunk), 40)
	}
}

func TestSegmentCoversEveryParagraphInOrder(t *testing.T) {
	var paragraphs []string
	for i := 0; i < 50; i++ {
		paragraphs = append(paragraphs, strings.Repeat(string(rune('a'+i%26)), 3+i%17))
	}
	text := strings.Join(paragraphs, "\n \n")

	chunks := Segment(text, 8)

	var rebuilt []string
	for _, chunk := range chunks {
		rebuilt = append(rebuilt, strings.Split(chunk, "\n\n")...)
	}
	assert.Equal(t, paragraphs, rebuilt)
}

func TestSegmentOversizedParagraphStaysWhole(t *testing.T) {
	huge := strings.Repeat("z", 100)
	text := "intro\n\n" + huge + "\n\noutro"

	chunks := Segment(text, 5) // 20 byte budget

	require.Equal(t, []string{"intro", huge, "outro"}, chunks)
}

func TestSegmentNormalizesCRLF(t *testing.T) {
	chunks := Segment("one\r\n\r\ntwo", 100)
	assert.Equal(t, []string{"one\n\ntwo"}, chunks)
}

func TestNormalizeQuery(t *testing.T) {
	assert.Equal(t, "what is this about?", NormalizeQuery("  What is THIS, about?  "))
	assert.Equal(t, "tax rates 2024", NormalizeQuery("Tax   rates (2024)!"))
}
