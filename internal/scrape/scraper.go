// Package scrape fetches a web page and reduces it to clean plain text for
// ingestion, or sanitizes directly supplied text. Outbound fetches are
// guarded against SSRF: only http/https schemes, and the host must not
// resolve to loopback, link-local or private address space.
package scrape

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chirp-labs/chirp/internal/domain"
)

// Config controls fetch bounds and text limits.
type Config struct {
	Timeout  time.Duration
	MaxBytes int64
	MaxWords int

	// MinWords is the smallest extraction worth ingesting.
	MinWords int

	// MinPartialWords is the smallest partial extraction worth keeping when a
	// fetch times out after some bytes arrived.
	MinPartialWords int

	UserAgent string
}

// DefaultConfig provides the standard scrape bounds.
func DefaultConfig() Config {
	return Config{
		Timeout:         30 * time.Second,
		MaxBytes:        10 * 1024 * 1024,
		MaxWords:        10000,
		MinWords:        20,
		MinPartialWords: 200,
		UserAgent:       "ChirpBot/1.0 (+https://github.com/chirp-labs/chirp)",
	}
}

var blockedHosts = map[string]struct{}{
	"localhost":                  {},
	"metadata.google.internal":   {},
	"instance-data.ec2.internal": {},
}

// Scraper fetches URLs and extracts clean text.
type Scraper struct {
	cfg    Config
	client *http.Client

	// lookupIP and checkDial are swappable in tests.
	lookupIP  func(ctx context.Context, host string) ([]net.IP, error)
	checkDial func(address string) error
}

// New creates a Scraper with the given configuration.
func New(cfg Config) *Scraper {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultConfig().MaxBytes
	}
	if cfg.MaxWords <= 0 {
		cfg.MaxWords = DefaultConfig().MaxWords
	}
	if cfg.MinWords <= 0 {
		cfg.MinWords = DefaultConfig().MinWords
	}
	if cfg.MinPartialWords <= 0 {
		cfg.MinPartialWords = DefaultConfig().MinPartialWords
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultConfig().UserAgent
	}

	s := &Scraper{
		cfg:       cfg,
		lookupIP:  resolveHost,
		checkDial: checkDialAddress,
	}

	// The dial-time check runs on the address the transport actually
	// connects to, after its own DNS resolution, so a host that rebinds
	// between the pre-fetch check and the dial is still rejected.
	dialer := &net.Dialer{
		Control: func(network, address string, _ syscall.RawConn) error {
			return s.checkDial(address)
		},
	}
	s.client = &http.Client{
		Transport: &http.Transport{DialContext: dialer.DialContext},
		// Per-fetch deadline comes from the request context.
		Timeout: 0,
	}

	return s
}

// ScrapeURL validates the URL, fetches it within the configured bounds and
// returns extracted plain text. On timeout after partial bytes, the partial
// extraction is returned when it exceeds MinPartialWords.
func (s *Scraper) ScrapeURL(ctx context.Context, rawURL string) (string, error) {
	parsed, err := s.validateURL(ctx, rawURL)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return "", domain.ErrScrapeBlocked.WithCause(err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", domain.ErrScrapeTimeout.WithCause(err)
		}
		return "", domain.ErrScrapeBlocked.WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", domain.ErrScrapeBlocked.WithCause(fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if contentType != "" && !strings.Contains(contentType, "text/html") && !strings.Contains(contentType, "text/plain") {
		return "", domain.ErrScrapeBlocked.WithCause(fmt.Errorf("unsupported content type %q", contentType))
	}

	body, readErr := readBounded(resp.Body, s.cfg.MaxBytes)
	if readErr != nil {
		timedOut := ctx.Err() == context.DeadlineExceeded
		if readErr == errTooLarge {
			return "", domain.ErrScrapeTooLarge
		}
		if !timedOut {
			return "", domain.ErrScrapeBlocked.WithCause(readErr)
		}
		// Timeout mid-body: keep the partial text if it is already usable.
		text := extractText(string(body), s.cfg.MaxWords)
		if wordCount(text) >= s.cfg.MinPartialWords {
			return text, nil
		}
		return "", domain.ErrScrapeTimeout.WithCause(readErr)
	}

	text := extractText(string(body), s.cfg.MaxWords)
	if wordCount(text) < s.cfg.MinWords {
		return "", domain.ErrScrapeEmptyContent
	}
	return text, nil
}

// CleanText sanitizes directly supplied text: whitespace collapse, word
// ceiling and minimum-length validation. No network access.
func (s *Scraper) CleanText(text string) (string, error) {
	clean := collapseWhitespace(text)
	words := strings.Fields(clean)
	if len(words) < s.cfg.MinWords {
		return "", domain.ErrScrapeEmptyContent
	}
	if len(words) > s.cfg.MaxWords {
		words = words[:s.cfg.MaxWords]
		clean = strings.Join(words, " ")
	}
	return clean, nil
}

func (s *Scraper) validateURL(ctx context.Context, rawURL string) (*url.URL, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, domain.ErrScrapeBlocked.WithCause(err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, domain.ErrScrapeBlocked.WithCause(fmt.Errorf("scheme %q not allowed", parsed.Scheme))
	}

	host := parsed.Hostname()
	if host == "" {
		return nil, domain.ErrScrapeBlocked.WithCause(fmt.Errorf("missing hostname"))
	}

	if _, blocked := blockedHosts[strings.ToLower(host)]; blocked {
		return nil, domain.ErrScrapeBlocked.WithCause(fmt.Errorf("host %q not allowed", host))
	}

	ips, err := s.lookupIP(ctx, host)
	if err != nil {
		return nil, domain.ErrScrapeBlocked.WithCause(err)
	}
	for _, ip := range ips {
		if isDisallowedIP(ip) {
			return nil, domain.ErrScrapeBlocked.WithCause(fmt.Errorf("host %q resolves to disallowed address %s", host, ip))
		}
	}

	return parsed, nil
}

// resolveHost turns a hostname or IP literal into the set of addresses the
// fetch would reach.
func resolveHost(ctx context.Context, host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, a := range addrs {
		ips = append(ips, a.IP)
	}
	return ips, nil
}

// checkDialAddress rejects disallowed address space at connect time.
func checkDialAddress(address string) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || isDisallowedIP(ip) {
		return fmt.Errorf("address %q not allowed", address)
	}
	return nil
}

func isDisallowedIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified()
}

var errTooLarge = fmt.Errorf("response body exceeds size limit")

// readBounded reads up to maxBytes, returning whatever was read alongside the
// first error so timeout policy can inspect the partial body.
func readBounded(r io.Reader, maxBytes int64) ([]byte, error) {
	var buf strings.Builder
	chunk := make([]byte, 32*1024)
	var total int64

	for {
		n, err := r.Read(chunk)
		if n > 0 {
			total += int64(n)
			if total > maxBytes {
				return []byte(buf.String()), errTooLarge
			}
			buf.Write(chunk[:n])
		}
		if err == io.EOF {
			return []byte(buf.String()), nil
		}
		if err != nil {
			return []byte(buf.String()), err
		}
	}
}

// extractText strips scripts, styles and page chrome from HTML and collapses
// the remainder into a single whitespace-normalized string capped at
// maxWords. Non-HTML input passes through the same normalization.
func extractText(html string, maxWords int) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return truncateWords(collapseWhitespace(html), maxWords)
	}

	doc.Find("script, style, nav, header, footer, aside, noscript, iframe").Remove()

	text := collapseWhitespace(doc.Text())
	return truncateWords(text, maxWords)
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ")
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
