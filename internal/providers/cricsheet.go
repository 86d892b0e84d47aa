package providers

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stitts-dev/cricket-features/internal/tables"
	"golang.org/x/time/rate"
)

// CricsheetService is the breaker name guarding archive downloads
const CricsheetService = "cricsheet"

// Breaker wraps a call with circuit breaker protection
type Breaker interface {
	Execute(fn func() (interface{}, error)) (interface{}, error)
}

// CricsheetClient downloads the cricsheet JSON archive into a corpus directory
type CricsheetClient struct {
	httpClient *http.Client
	url        string
	limiter    *rate.Limiter
	breaker    Breaker
	logger     *logrus.Logger
}

// NewCricsheetClient creates a client allowed rps archive requests per second
func NewCricsheetClient(url string, timeout time.Duration, rps float64, breaker Breaker, logger *logrus.Logger) *CricsheetClient {
	if rps <= 0 {
		rps = 1
	}
	return &CricsheetClient{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		breaker:    breaker,
		logger:     logger,
	}
}

// Download fetches the archive and extracts every .json match file into
// destDir, returning how many files were written
func (c *CricsheetClient) Download(ctx context.Context, destDir string) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limiter: %w", err)
	}

	tmp, err := os.CreateTemp("", "cricsheet-*.zip")
	if err != nil {
		return 0, fmt.Errorf("failed to create archive file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	fetch := func() (interface{}, error) {
		return nil, c.fetch(ctx, tmp)
	}
	if c.breaker != nil {
		_, err = c.breaker.Execute(fetch)
	} else {
		_, err = fetch()
	}
	if err != nil {
		return 0, err
	}

	info, err := tmp.Stat()
	if err != nil {
		return 0, err
	}
	n, err := extractJSON(tmp, info.Size(), destDir)
	if err != nil {
		return n, err
	}

	c.logger.WithFields(logrus.Fields{
		"url":   c.url,
		"files": n,
		"bytes": info.Size(),
		"dest":  destDir,
	}).Info("Downloaded cricsheet archive")
	return n, nil
}

func (c *CricsheetClient) fetch(ctx context.Context, dst *os.File) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download archive: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("archive download returned status %d", resp.StatusCode)
	}
	if err := dst.Truncate(0); err != nil {
		return err
	}
	if _, err := dst.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := io.Copy(dst, resp.Body); err != nil {
		return fmt.Errorf("failed to read archive: %w", err)
	}
	return nil
}

// extractJSON flattens the archive's .json entries into destDir by base name
func extractJSON(r io.ReaderAt, size int64, destDir string) (int, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return 0, fmt.Errorf("failed to open archive: %w", err)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return 0, err
	}

	n := 0
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := filepath.Base(f.Name)
		if !strings.EqualFold(filepath.Ext(name), ".json") {
			continue
		}
		err := tables.WriteFile(filepath.Join(destDir, name), func(w io.Writer) error {
			rc, err := f.Open()
			if err != nil {
				return err
			}
			defer rc.Close()
			_, err = io.Copy(w, rc)
			return err
		})
		if err != nil {
			return n, fmt.Errorf("failed to extract %s: %w", f.Name, err)
		}
		n++
	}
	return n, nil
}
