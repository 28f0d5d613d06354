package bills

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/fabfab/billchat/logging"
)

var (
	ErrUnknownBill  = errors.New("unknown bill")
	ErrFileNotFound = errors.New("bill file not found")
)

// Library serves bill text from files on disk, keeping extracted text in
// memory for ttl so repeated questions do not re-parse the PDF.
type Library struct {
	dir      string
	catalog  Catalog
	contents *gocache.Cache
	logger   *zap.Logger
}

func NewLibrary(dir string, catalog Catalog, ttl time.Duration, logger *zap.Logger) *Library {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Library{
		dir:      dir,
		catalog:  catalog,
		contents: gocache.New(ttl, 2*ttl),
		logger:   logging.OrNop(logger),
	}
}

func (l *Library) List() []Bill {
	return l.catalog.Bills()
}

// Content returns the extracted text of the named bill. It fails with
// ErrUnknownBill or ErrFileNotFound; empty text is returned without error.
func (l *Library) Content(ctx context.Context, name string) (string, error) {
	filename, ok := l.catalog.Filename(name)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownBill, name)
	}

	if cached, found := l.contents.Get(name); found {
		return cached.(string), nil
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := filepath.Join(l.dir, filename)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrFileNotFound, filename)
		}
		return "", fmt.Errorf("stat bill file: %w", err)
	}

	started := time.Now()
	content, err := extractText(path)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", filename, err)
	}

	l.contents.SetDefault(name, content)
	l.logger.Debug("extracted bill content",
		zap.String("bill", name),
		zap.Int("bytes", len(content)),
		zap.Duration("elapsed", time.Since(started)),
	)

	return content, nil
}
