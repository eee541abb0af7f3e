// Package feed fetches the published activity sheet.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// maxBodyBytes caps how much of a sheet export is read.
const maxBodyBytes = 16 << 20

// ErrTooLarge reports a sheet export above the size cap. A cut-off sheet
// would replace the working set with partial rows, so it is refused whole.
var ErrTooLarge = errors.New("sheet export exceeds size limit")

// HTTPSource downloads a CSV export over HTTP, e.g. a published spreadsheet.
type HTTPSource struct {
	client   *http.Client
	url      string
	maxBytes int64
}

// NewHTTPSource constructs an HTTPSource with the given request timeout.
func NewHTTPSource(rawURL string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		client:   &http.Client{Timeout: timeout},
		url:      rawURL,
		maxBytes: maxBodyBytes,
	}
}

// Name identifies the source by host.
func (s *HTTPSource) Name() string {
	if u, err := url.Parse(s.url); err == nil && u.Host != "" {
		return u.Host
	}
	return "http"
}

// Fetch downloads the sheet and returns its text.
func (s *HTTPSource) Fetch(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/csv, text/plain;q=0.9, */*;q=0.5")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", &FetchError{Status: resp.StatusCode}
	}

	body, err := readCapped(resp.Body, s.maxBytes)
	if err != nil {
		return "", err
	}
	return decodeText(body)
}

// readCapped reads r fully, failing with ErrTooLarge past limit bytes.
// A non-positive limit means maxBodyBytes.
func readCapped(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		limit = maxBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, limit)
	}
	return body, nil
}

// FetchError represents a non-successful feed response.
type FetchError struct {
	Status int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("feed request failed with status %d %s", e.Status, http.StatusText(e.Status))
}

// decodeText returns body as UTF-8. Exports that are not valid UTF-8 are
// assumed to be Windows-1252, the usual encoding of spreadsheets saved locally.
func decodeText(body []byte) (string, error) {
	body = trimBOM(body)
	if utf8.Valid(body) {
		return string(body), nil
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(body)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

func trimBOM(body []byte) []byte {
	if len(body) >= 3 && body[0] == 0xEF && body[1] == 0xBB && body[2] == 0xBF {
		return body[3:]
	}
	return body
}
