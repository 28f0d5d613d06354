// Package bills resolves human-readable bill names to stored documents and
// extracts their text.
package bills

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Bill is one entry of the catalog as exposed to clients.
type Bill struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Filename string `json:"filename"`
}

type catalogEntry struct {
	Name string `yaml:"name"`
	File string `yaml:"file"`
}

type catalogFile struct {
	Bills []catalogEntry `yaml:"bills"`
}

// Catalog is an ordered name -> filename mapping.
type Catalog struct {
	entries []catalogEntry
	index   map[string]string
}

// DefaultCatalog lists the bills shipped with the application.
func DefaultCatalog() Catalog {
	return newCatalog([]catalogEntry{
		{Name: "ICT Practitioners bill", File: "ICT_Bill_2024.pdf"},
		{Name: "Finance Bill", File: "TheFinanceBill_2024.pdf"},
		{Name: "Test File", File: "citizenConnect.pdf"},
	})
}

// LoadCatalog reads a YAML catalog of the form
//
//	bills:
//	  - name: Finance Bill
//	    file: TheFinanceBill_2024.pdf
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("read bill catalog: %w", err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (Catalog, error) {
	var parsed catalogFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return Catalog{}, fmt.Errorf("parse bill catalog: %w", err)
	}

	seen := make(map[string]struct{}, len(parsed.Bills))
	for i, entry := range parsed.Bills {
		name := strings.TrimSpace(entry.Name)
		file := strings.TrimSpace(entry.File)
		if name == "" || file == "" {
			return Catalog{}, fmt.Errorf("bill catalog entry %d: name and file are required", i+1)
		}
		if _, dup := seen[name]; dup {
			return Catalog{}, fmt.Errorf("bill catalog entry %d: duplicate name %q", i+1, name)
		}
		seen[name] = struct{}{}
		parsed.Bills[i] = catalogEntry{Name: name, File: file}
	}

	return newCatalog(parsed.Bills), nil
}

func newCatalog(entries []catalogEntry) Catalog {
	index := make(map[string]string, len(entries))
	for _, entry := range entries {
		index[entry.Name] = entry.File
	}
	return Catalog{entries: entries, index: index}
}

// Filename returns the stored file for a bill name.
func (c Catalog) Filename(name string) (string, bool) {
	file, ok := c.index[name]
	return file, ok
}

// Bills returns the catalog in declaration order with 1-based ids.
func (c Catalog) Bills() []Bill {
	bills := make([]Bill, len(c.entries))
	for i, entry := range c.entries {
		bills[i] = Bill{ID: i + 1, Name: entry.Name, Filename: entry.File}
	}
	return bills
}

func (c Catalog) Len() int {
	return len(c.entries)
}
