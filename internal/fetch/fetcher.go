package fetch

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/c-janith/direct-url-uploader-whatsapp-bot/internal/config"
	"github.com/c-janith/direct-url-uploader-whatsapp-bot/internal/domain"
)

// HTTPFetcher retrieves remote files for the download command. The
// response body is returned unread so large files stream to disk.
type HTTPFetcher struct {
	http *http.Client
}

func New(cfg config.Config) *HTTPFetcher {
	return &HTTPFetcher{
		http: &http.Client{Timeout: cfg.DownloadTimeout},
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*domain.FetchResult, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme %q", parsed.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, err
	}

	res, err := f.http.Do(req)
	if err != nil {
		return nil, err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		res.Body.Close()
		return nil, fmt.Errorf("fetch %s: status %d", parsed.String(), res.StatusCode)
	}

	return &domain.FetchResult{
		Body:     res.Body,
		Filename: responseFilename(res, parsed),
		Size:     res.ContentLength,
	}, nil
}

// responseFilename derives the attachment name: the last URL path
// segment, overridden by a Content-Disposition filename when present.
func responseFilename(res *http.Response, u *url.URL) string {
	if cd := res.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name := sanitizeFilename(params["filename"]); name != "" {
				return name
			}
		}
	}
	if name := sanitizeFilename(path.Base(u.Path)); name != "" {
		return name
	}
	return "download"
}

func sanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-' || r == '+':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "._- ")
	if len(out) > 120 {
		out = strings.Trim(out[:120], "._- ")
	}
	return out
}
