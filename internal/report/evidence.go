package report

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Evidence subdirectories.
const (
	RawHTMLDir       = "raw_html"
	ExtractedTextDir = "extracted_text"
	MetaDir          = "meta"
	ScreenshotsDir   = "screenshots"
)

const maxFilenameLength = 200

var (
	unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.\-]`)
	repeatedUnderscores = regexp.MustCompile(`_+`)
)

// Meta is the JSON written to meta/<base>.json.
type Meta struct {
	URL           string  `json:"url"`
	Title         *string `json:"title"`
	FinalURL      string  `json:"final_url"`
	Status        int     `json:"status"`
	FetchTime     string  `json:"fetch_time"`
	ContentLength int     `json:"content_length"`
}

// Evidence is the material kept for one fetched page.
type Evidence struct {
	URL       string
	FinalURL  string
	Status    int
	Title     string
	RawHTML   string
	Text      string
	FetchedAt time.Time
}

// EnsureEvidenceDirs creates the evidence directory tree under dir.
func EnsureEvidenceDirs(dir string, screenshots bool) error {
	subdirs := []string{RawHTMLDir, ExtractedTextDir, MetaDir}
	if screenshots {
		subdirs = append(subdirs, ScreenshotsDir)
	}
	for _, sub := range subdirs {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return fmt.Errorf("create evidence dir: %w", err)
		}
	}
	return nil
}

// WriteEvidence writes raw_html/<base>.html, extracted_text/<base>.txt and
// meta/<base>.json under dir.
func WriteEvidence(dir, base string, ev Evidence) error {
	if err := EnsureEvidenceDirs(dir, false); err != nil {
		return err
	}

	meta := Meta{
		URL:           ev.URL,
		FinalURL:      ev.FinalURL,
		Status:        ev.Status,
		ContentLength: len(ev.RawHTML),
	}
	if ev.Title != "" {
		meta.Title = &ev.Title
	}
	if !ev.FetchedAt.IsZero() {
		meta.FetchTime = FormatTime(ev.FetchedAt)
	}
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode evidence meta: %w", err)
	}

	files := []struct {
		path string
		data []byte
	}{
		{filepath.Join(dir, RawHTMLDir, base+".html"), []byte(ev.RawHTML)},
		{filepath.Join(dir, ExtractedTextDir, base+".txt"), []byte(ev.Text)},
		{filepath.Join(dir, MetaDir, base+".json"), metaJSON},
	}
	for _, f := range files {
		if err := os.WriteFile(f.path, f.data, 0o644); err != nil {
			return fmt.Errorf("write evidence: %w", err)
		}
	}
	return nil
}

// ScreenshotPath returns where the screenshot of base is stored under dir.
func ScreenshotPath(dir, base string) string {
	return filepath.Join(dir, ScreenshotsDir, base+".png")
}

// SafeFilename derives a filesystem-safe base name from a URL: host and
// path joined by "_", unsafe characters replaced, at most 200 characters.
func SafeFilename(rawURL string) string {
	if strings.TrimSpace(rawURL) == "" {
		return "unknown_" + shortID()
	}

	raw := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		host := u.Host
		if host == "" {
			host = "unknown"
		}
		path := strings.Trim(u.Path, "/")
		if path == "" {
			path = "index"
		}
		raw = host + "_" + path
	}

	safe := unsafeFilenameChars.ReplaceAllString(raw, "_")
	safe = strings.Trim(repeatedUnderscores.ReplaceAllString(safe, "_"), "_")
	if len(safe) > maxFilenameLength {
		safe = strings.TrimRight(safe[:maxFilenameLength], "_")
	}
	if safe == "" {
		return "page_" + shortID()
	}
	return safe
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
