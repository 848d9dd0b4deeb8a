// Package download fetches flyer images and PDFs with browser-like headers.
package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/maltedev/encarte-scraper/internal/models"
)

var (
	ErrHTTPStatus = errors.New("unexpected http status")
	ErrEmptyBody  = errors.New("empty response body")
)

type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.Status)
}

func (e *StatusError) Unwrap() error {
	return ErrHTTPStatus
}

type Options struct {
	UserAgent      string
	AcceptLanguage string
	Timeout        time.Duration
	Retries        int
	RetryDelay     time.Duration
}

func DefaultOptions() Options {
	return Options{
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		AcceptLanguage: "pt-BR,pt;q=0.9,en;q=0.8",
		Timeout:        60 * time.Second,
		Retries:        2,
		RetryDelay:     2 * time.Second,
	}
}

type Fetcher struct {
	client *resty.Client
	jar    http.CookieJar
	logger *slog.Logger
}

func NewFetcher(opts Options, logger *slog.Logger) (*Fetcher, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetCookieJar(jar)
	client.SetTimeout(opts.Timeout)
	client.SetHeaders(map[string]string{
		"User-Agent":      opts.UserAgent,
		"Accept":          "image/avif,image/webp,image/apng,image/*,application/pdf,*/*;q=0.8",
		"Accept-Language": opts.AcceptLanguage,
	})
	client.SetRetryCount(opts.Retries)
	client.SetRetryWaitTime(opts.RetryDelay)
	client.SetRetryMaxWaitTime(opts.RetryDelay)
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return r != nil && r.StatusCode() >= http.StatusInternalServerError
	})

	return &Fetcher{
		client: client,
		jar:    jar,
		logger: logger.With("component", "download"),
	}, nil
}

// LoadCookies copies browser session cookies into the fetcher's jar so
// protected assets resolve the same way they do in the page.
func (f *Fetcher) LoadCookies(cookies []*http.Cookie) {
	for _, c := range cookies {
		host := strings.TrimPrefix(c.Domain, ".")
		if host == "" {
			continue
		}
		p := c.Path
		if p == "" {
			p = "/"
		}
		f.jar.SetCookies(&url.URL{Scheme: "https", Host: host, Path: p}, []*http.Cookie{c})
	}
}

type Payload struct {
	Body        []byte
	ContentType string
	FinalURL    string
}

// Fetch downloads rawURL. referer is sent when not empty.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, referer string) (*Payload, error) {
	req := f.client.R().SetContext(ctx)
	if referer != "" {
		req.SetHeader("Referer", referer)
	}

	resp, err := req.Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		return nil, &StatusError{URL: rawURL, Status: resp.StatusCode()}
	}

	body := resp.Body()
	if len(body) == 0 {
		return nil, fmt.Errorf("%s: %w", rawURL, ErrEmptyBody)
	}

	final := rawURL
	if resp.RawResponse != nil && resp.RawResponse.Request != nil && resp.RawResponse.Request.URL != nil {
		final = resp.RawResponse.Request.URL.String()
	}

	f.logger.Debug("fetched", "url", rawURL, "bytes", len(body), "status", resp.StatusCode())

	return &Payload{
		Body:        body,
		ContentType: resp.Header().Get("Content-Type"),
		FinalURL:    final,
	}, nil
}

var extByType = map[string]string{
	"image/jpeg":      "jpg",
	"image/jpg":       "jpg",
	"image/png":       "png",
	"image/webp":      "webp",
	"image/gif":       "gif",
	"image/avif":      "avif",
	"application/pdf": "pdf",
}

var knownExt = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "webp": true, "gif": true, "avif": true, "pdf": true,
}

// Ext guesses the file extension from the URL path, then the content type.
func (p *Payload) Ext() string {
	if u, err := url.Parse(p.FinalURL); err == nil {
		ext := strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
		if knownExt[ext] {
			if ext == "jpeg" {
				return "jpg"
			}
			return ext
		}
	}

	ct := strings.ToLower(strings.TrimSpace(strings.Split(p.ContentType, ";")[0]))
	if ext, ok := extByType[ct]; ok {
		return ext
	}
	return "bin"
}

func (p *Payload) Kind() models.ArtifactKind {
	if p.Ext() == "pdf" {
		return models.KindPDF
	}
	return models.KindImage
}

// NormalizeURL resolves a src/href found on pageURL. Protocol relative refs
// take the page scheme, rooted refs join the origin, anything else is joined
// to the page URL as if it were a directory.
func NormalizeURL(ref, pageURL string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, "data:") {
		return ref
	}

	page, err := url.Parse(strings.SplitN(pageURL, "#", 2)[0])
	if err != nil {
		return ref
	}

	if strings.HasPrefix(ref, "//") {
		scheme := page.Scheme
		if scheme == "" {
			scheme = "https"
		}
		return scheme + ":" + ref
	}

	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if u.IsAbs() {
		return u.String()
	}

	base := *page
	if !strings.HasPrefix(ref, "/") && !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
		base.RawPath = ""
	}
	return base.ResolveReference(u).String()
}
