// Package scan runs one scan: load the policy, fetch each URL politely,
// extract and evaluate its text, then write reports, evidence and history.
package scan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lisaapatel/partnerscan/internal/extract"
	"github.com/lisaapatel/partnerscan/internal/fetch"
	"github.com/lisaapatel/partnerscan/internal/history"
	"github.com/lisaapatel/partnerscan/internal/logger"
	"github.com/lisaapatel/partnerscan/internal/metrics"
	"github.com/lisaapatel/partnerscan/internal/normalize"
	"github.com/lisaapatel/partnerscan/internal/policy"
	"github.com/lisaapatel/partnerscan/internal/report"
)

// DefaultRateLimit is the minimum pause between two fetches.
const DefaultRateLimit = 500 * time.Millisecond

// ErrNoURLs is returned when the URL list holds no URLs.
var ErrNoURLs = errors.New("no URLs to scan")

// NoInputError reports a required input file that does not exist.
type NoInputError struct {
	What string
	Path string
}

func (e *NoInputError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.What, e.Path)
}

// Config describes one scan. Empty output paths disable that output.
type Config struct {
	URLsPath   string
	PolicyPath string
	PacksDir   string

	EvidenceDir string
	NoEvidence  bool
	RenderJS    bool
	ChromePath  string

	CSVPath  string
	HTMLPath string

	UserAgent    string
	FetchTimeout time.Duration
	RateLimit    time.Duration

	ScanLogPath string
	HistoryPath string
	MetricsFile string
}

// Fetcher retrieves one page.
type Fetcher interface {
	Fetch(ctx context.Context, url, screenshotPath string) *fetch.Result
}

// ProgressFunc is called after each page is processed.
type ProgressFunc func(index, total int, page report.Page)

// Summary is the outcome of a completed scan.
type Summary struct {
	Run          *report.Run
	Issues       []error
	Packs        []policy.PackInfo
	CSVPath      string
	HTMLPath     string
	EvidenceDir  string
	FetchErrors  int
	Suppressions int
}

// Scanner runs scans with a fixed configuration.
type Scanner struct {
	cfg      Config
	logger   *zap.Logger
	fetcher  Fetcher
	progress ProgressFunc
	now      func() time.Time
}

// Option customizes a Scanner.
type Option func(*Scanner)

// WithFetcher replaces the HTTP fetcher.
func WithFetcher(f Fetcher) Option {
	return func(s *Scanner) { s.fetcher = f }
}

// WithProgress installs a per-page callback.
func WithProgress(fn ProgressFunc) Option {
	return func(s *Scanner) { s.progress = fn }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) { s.now = now }
}

// New returns a Scanner for cfg.
func New(cfg Config, log *zap.Logger, opts ...Option) *Scanner {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	s := &Scanner{cfg: cfg, logger: log, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.fetcher == nil {
		fo := fetch.Options{UserAgent: cfg.UserAgent, Timeout: cfg.FetchTimeout}
		if cfg.RenderJS {
			fo.Renderer = fetch.NewChromeRenderer(cfg.UserAgent, cfg.FetchTimeout, cfg.ChromePath, log)
		}
		s.fetcher = fetch.New(fo, log)
	}
	return s
}

// NewRunID returns an id of the form YYYYMMDD_<8 hex>.
func NewRunID(now time.Time) string {
	return now.UTC().Format("20060102") + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Run performs the scan. The policy is read from disk on every call.
func (s *Scanner) Run(ctx context.Context) (*Summary, error) {
	if _, err := os.Stat(s.cfg.URLsPath); err != nil {
		return nil, &NoInputError{What: "URLs file", Path: s.cfg.URLsPath}
	}
	if _, err := os.Stat(s.cfg.PolicyPath); err != nil {
		return nil, &NoInputError{What: "policy file", Path: s.cfg.PolicyPath}
	}

	urls, err := normalize.LoadURLs(s.cfg.URLsPath)
	if err != nil {
		return nil, fmt.Errorf("read URLs: %w", err)
	}
	if len(urls) == 0 {
		return nil, ErrNoURLs
	}

	engine, packs, err := LoadEngine(s.cfg.PolicyPath, s.cfg.PacksDir, s.logger)
	if err != nil {
		return nil, err
	}

	start := s.now()
	run := &report.Run{ID: NewRunID(start), ScannedAt: start}
	summary := &Summary{
		Run:          run,
		Issues:       engine.Issues(),
		Packs:        packs,
		Suppressions: len(engine.Policy().Suppressions),
	}
	log := s.logger.With(zap.String("run_id", run.ID))
	log.Info("scan started",
		zap.Int("urls", len(urls)),
		zap.Int("rules", len(engine.Registry().Rules())),
		zap.Bool("render_js", s.cfg.RenderJS),
	)

	var scanLog *logger.ScanLogger
	if s.cfg.ScanLogPath != "" {
		scanLog, err = logger.New(s.cfg.ScanLogPath)
		if err != nil {
			return nil, fmt.Errorf("open scan log: %w", err)
		}
		defer scanLog.Close()
	}

	collector := metrics.NewCollector()

	if !s.cfg.NoEvidence {
		if err := report.EnsureEvidenceDirs(s.cfg.EvidenceDir, s.cfg.RenderJS); err != nil {
			return nil, err
		}
		summary.EvidenceDir = s.cfg.EvidenceDir
	}

	limiter := rate.NewLimiter(rate.Every(s.cfg.RateLimit), 1)

	for i, url := range urls {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("scan interrupted: %w", err)
		}

		page := s.scanPage(ctx, engine, url, collector, scanLog, run.ID, log)
		if page.Error != "" {
			summary.FetchErrors++
		}
		run.Pages = append(run.Pages, page)

		if s.progress != nil {
			s.progress(i+1, len(urls), page)
		}
	}

	if err := s.writeOutputs(ctx, summary, collector); err != nil {
		return summary, err
	}

	log.Info("scan finished",
		zap.Int("pages", len(run.Pages)),
		zap.Int("findings", run.TotalFindings()),
		zap.Int("fetch_errors", summary.FetchErrors),
	)
	return summary, nil
}

// scanPage fetches, extracts and evaluates one URL. Fetch failures yield a
// page with Error set and no findings.
func (s *Scanner) scanPage(ctx context.Context, engine *policy.Engine, url string, collector *metrics.Collector, scanLog *logger.ScanLogger, runID string, log *zap.Logger) report.Page {
	base := report.SafeFilename(url)
	screenshot := ""
	if s.cfg.RenderJS && !s.cfg.NoEvidence {
		screenshot = report.ScreenshotPath(s.cfg.EvidenceDir, base)
	}

	res := s.fetcher.Fetch(ctx, url, screenshot)
	page := report.Page{
		URL:        url,
		FinalURL:   res.FinalURL,
		HTTPStatus: res.StatusCode,
		Title:      res.Title,
	}

	method := ""
	if res.Err != nil {
		page.Error = res.Err.Error()
		log.Warn("fetch failed", zap.String("url", url), zap.Error(res.Err))
	} else {
		ex := extract.Extract(res.HTML)
		method = ex.Method
		if n := ex.Stripped(); n > 0 {
			log.Debug("invisible characters stripped", zap.String("url", url), zap.Int("count", n))
		}

		ev := engine.EvaluatePage(ex.Text, page.PageURL())
		page.Findings = ev.Findings
		page.Suppressed = ev.Suppressed
		page.Screenshot = res.Screenshot

		if !s.cfg.NoEvidence {
			err := report.WriteEvidence(s.cfg.EvidenceDir, base, report.Evidence{
				URL:       url,
				FinalURL:  res.FinalURL,
				Status:    res.StatusCode,
				Title:     res.Title,
				RawHTML:   res.HTML,
				Text:      ex.Text,
				FetchedAt: res.FetchedAt,
			})
			if err != nil {
				log.Warn("evidence not written", zap.String("url", url), zap.Error(err))
			}
		}
	}

	collector.RecordPage(res.StatusCode, res.Duration)
	ruleIDs := make([]string, 0, len(page.Findings))
	for _, f := range page.Findings {
		collector.RecordFinding(f.RuleID, string(f.Severity))
		ruleIDs = append(ruleIDs, f.RuleID)
	}
	for _, f := range page.Suppressed {
		collector.RecordSuppressed(f.RuleID)
	}

	if scanLog != nil {
		err := scanLog.Log(logger.PageEvent{
			Timestamp:  report.FormatTime(s.now()),
			RunID:      runID,
			URL:        url,
			FinalURL:   res.FinalURL,
			Host:       normalize.Host(url),
			HTTPStatus: res.StatusCode,
			Extraction: method,
			Findings:   len(page.Findings),
			Suppressed: len(page.Suppressed),
			RuleIDs:    ruleIDs,
			DurationMS: res.Duration.Milliseconds(),
			Error:      page.Error,
		})
		if err != nil {
			log.Warn("scan log write failed", zap.Error(err))
		}
	}

	log.Debug("page scanned",
		zap.String("url", url),
		zap.Int("status", res.StatusCode),
		zap.Int("findings", len(page.Findings)),
		zap.Int("suppressed", len(page.Suppressed)),
	)
	return page
}

func (s *Scanner) writeOutputs(ctx context.Context, summary *Summary, collector *metrics.Collector) error {
	run := summary.Run

	if s.cfg.CSVPath != "" {
		if err := report.WriteCSVFile(s.cfg.CSVPath, run); err != nil {
			return fmt.Errorf("write CSV report: %w", err)
		}
		summary.CSVPath = s.cfg.CSVPath
	}
	if s.cfg.HTMLPath != "" {
		if err := report.WriteHTMLFile(s.cfg.HTMLPath, run); err != nil {
			return fmt.Errorf("write HTML report: %w", err)
		}
		summary.HTMLPath = s.cfg.HTMLPath
	}

	if s.cfg.HistoryPath != "" {
		store, err := history.Open(s.cfg.HistoryPath)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.RecordRun(ctx, run, s.cfg.PolicyPath); err != nil {
			return fmt.Errorf("record history: %w", err)
		}
	}

	if s.cfg.MetricsFile != "" {
		collector.RecordRunComplete(s.now())
		if err := collector.WriteTextfile(s.cfg.MetricsFile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

// LoadEngine reads the policy and its packs and compiles them. Load issues
// are logged as warnings. An empty packsDir means policies.d next to the
// policy.
func LoadEngine(policyPath, packsDir string, log *zap.Logger) (*policy.Engine, []policy.PackInfo, error) {
	if log == nil {
		log = zap.NewNop()
	}
	p, loadReport, err := policy.Load(policyPath)
	if err != nil {
		return nil, nil, err
	}

	if packsDir == "" {
		packsDir = policy.DefaultPacksDir(policyPath)
	}
	merged, packs, err := policy.LoadPacks(packsDir, p, loadReport)
	if err != nil {
		return nil, nil, fmt.Errorf("load packs from %s: %w", packsDir, err)
	}
	loadReport.Log(log)
	for _, info := range packs {
		if info.Err != nil {
			log.Warn("pack not loaded", zap.String("pack", info.Name), zap.Error(info.Err))
		}
	}

	return policy.NewEngine(merged, log), packs, nil
}
