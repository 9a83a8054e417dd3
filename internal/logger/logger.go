// Package logger appends one JSON line per scanned page to the scan log.
package logger

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/lisaapatel/partnerscan/internal/redact"
)

// defaultMaxLogBytes is the size at which New rotates the log to "<path>.1".
const defaultMaxLogBytes = 10 << 20

type PageEvent struct {
	Timestamp  string   `json:"timestamp"`
	RunID      string   `json:"run_id"`
	URL        string   `json:"url"`
	FinalURL   string   `json:"final_url,omitempty"`
	Host       string   `json:"host,omitempty"`
	HTTPStatus int      `json:"http_status"`
	Extraction string   `json:"extraction,omitempty"`
	Findings   int      `json:"findings"`
	Suppressed int      `json:"suppressed,omitempty"`
	RuleIDs    []string `json:"rule_ids,omitempty"`
	DurationMS int64    `json:"duration_ms"`
	Error      string   `json:"error,omitempty"`
}

type ScanLogger struct {
	file *os.File
	mu   sync.Mutex
}

func New(path string) (*ScanLogger, error) {
	if info, err := os.Stat(path); err == nil && info.Size() >= defaultMaxLogBytes {
		if err := os.Rename(path, path+".1"); err != nil {
			return nil, err
		}
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}

	return &ScanLogger{file: file}, nil
}

func (l *ScanLogger) Log(event PageEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Redact credentials before logging
	event.URL = redact.URL(event.URL)
	event.FinalURL = redact.URL(event.FinalURL)
	if event.Error != "" {
		event.Error = redact.Redact(event.Error)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	data = append(data, '\n')
	_, err = l.file.Write(data)
	return err
}

func (l *ScanLogger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
