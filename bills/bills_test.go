package bills

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	catalog := DefaultCatalog()

	bills := catalog.Bills()
	require.Len(t, bills, 3)
	assert.Equal(t, Bill{ID: 1, Name: "ICT Practitioners bill", Filename: "ICT_Bill_2024.pdf"}, bills[0])
	assert.Equal(t, "Test File", bills[2].Name)

	file, ok := catalog.Filename("Finance Bill")
	require.True(t, ok)
	assert.Equal(t, "TheFinanceBill_2024.pdf", file)
}

func TestParseCatalog(t *testing.T) {
	catalog, err := ParseCatalog([]byte(`
bills:
  - name: Housing Levy Bill
    file: housing.pdf
  - name: " Data Bill "
    file: data.txt
`))
	require.NoError(t, err)
	assert.Equal(t, 2, catalog.Len())

	file, ok := catalog.Filename("Data Bill")
	require.True(t, ok)
	assert.Equal(t, "data.txt", file)
}

func TestParseCatalogRejectsInvalidEntries(t *testing.T) {
	_, err := ParseCatalog([]byte("bills:\n  - name: Missing File\n"))
	assert.ErrorContains(t, err, "name and file are required")

	_, err = ParseCatalog([]byte("bills:\n  - {name: A, file: a.pdf}\n  - {name: A, file: b.pdf}\n"))
	assert.ErrorContains(t, err, "duplicate name")

	_, err = ParseCatalog([]byte("bills: [unterminated"))
	assert.Error(t, err)
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatPDF, DetectFormat("bill.PDF"))
	assert.Equal(t, FormatText, DetectFormat("bill.txt"))
	assert.Equal(t, FormatMarkdown, DetectFormat("bill.md"))
	assert.Equal(t, FormatUnknown, DetectFormat("bill.docx"))
}

func newTestLibrary(t *testing.T, files map[string]string) (*Library, string) {
	t.Helper()
	dir := t.TempDir()

	var entries []catalogEntry
	for name, file := range files {
		entries = append(entries, catalogEntry{Name: name, File: file})
	}
	return NewLibrary(dir, newCatalog(entries), time.Minute, nil), dir
}

func TestLibraryContentReadsTextFiles(t *testing.T) {
	library, dir := newTestLibrary(t, map[string]string{"Test File": "test.txt"})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.txt"), []byte("Section 1  \r\nApplies to all.\r\n"), 0o644))

	content, err := library.Content(context.Background(), "Test File")

	require.NoError(t, err)
	assert.Equal(t, "Section 1\nApplies to all.", content)
}

func TestLibraryContentIsCached(t *testing.T) {
	library, dir := newTestLibrary(t, map[string]string{"Test File": "test.md"})
	path := filepath.Join(dir, "test.md")
	require.NoError(t, os.WriteFile(path, []byte("first"), 0o644))

	first, err := library.Content(context.Background(), "Test File")
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	second, err := library.Content(context.Background(), "Test File")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLibraryContentErrors(t *testing.T) {
	library, dir := newTestLibrary(t, map[string]string{
		"Missing": "missing.pdf",
		"Word":    "bill.docx",
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bill.docx"), []byte("x"), 0o644))

	_, err := library.Content(context.Background(), "Nope")
	assert.ErrorIs(t, err, ErrUnknownBill)

	_, err = library.Content(context.Background(), "Missing")
	assert.ErrorIs(t, err, ErrFileNotFound)

	_, err = library.Content(context.Background(), "Word")
	assert.ErrorContains(t, err, "unsupported bill format")
}

func TestExtractPDFRejectsGarbage(t *testing.T) {
	_, err := extractPDF([]byte("not a pdf"))
	assert.Error(t, err)
}
