package observerip

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// controlFields are buttons on the device pages, not settings.
var controlFields = []string{"Cancel", "Apply", "corr_Default", "rain_Default", "reboot", "restore"}

const defaultHTTPTimeout = 10 * time.Second

// FormScraper reads and writes the HTML forms served by the base unit.
// The device's web server is not assumed to cope with concurrent requests;
// callers issue one request at a time.
type FormScraper struct {
	Policy  RetryPolicy
	Metrics *Metrics
	client  *http.Client
	logger  *zap.SugaredLogger
}

// NewFormScraper creates a scraper whose requests each time out after the
// policy's RetryWait.
func NewFormScraper(policy RetryPolicy, logger *zap.SugaredLogger) *FormScraper {
	timeout := policy.RetryWait
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &FormScraper{
		Policy: policy,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Fetch GETs url and returns the current values of its form fields. When
// readable is set, dropdowns report the visible text of the selected option
// instead of its value. A page that cannot be retrieved within the retry
// policy yields an empty map; callers treat that as "no data available".
func (f *FormScraper) Fetch(ctx context.Context, url string, readable bool) map[string]string {
	var body []byte

	err := f.Policy.do(ctx, f.Policy.RetryWait, func(attempt int) error {
		b, err := f.get(ctx, url)
		f.Metrics.observeAttempt("device", err)
		if err != nil {
			return err
		}
		body = b
		return nil
	}, func(attempt int, err error) {
		f.logger.Errorf("data retrieval failed attempt %d of %d: %v", attempt, f.Policy.tries(), err)
	})
	if err != nil {
		f.logger.Errorf("data retrieval failed after %d tries", f.Policy.tries())
		return map[string]string{}
	}

	return ParseForm(bytes.NewReader(body), readable)
}

// Get issues a bare GET, used for pages that act on being requested.
func (f *FormScraper) Get(ctx context.Context, url string) error {
	_, err := f.get(ctx, url)
	return err
}

func (f *FormScraper) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to device: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// Submit POSTs form to url as k=v pairs followed by Apply=Apply. Values are
// sent as given; the device does not decode escapes, so callers must supply
// values that are already safe on the wire.
func (f *FormScraper) Submit(ctx context.Context, url string, form map[string]string) error {
	body := EncodeForm(form)
	if body != "" {
		body += "&"
	}
	body += "Apply=Apply"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to device: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	f.logger.Debugf("submitted %d fields to %s", len(form), url)
	return nil
}

// EncodeForm joins form as k=v pairs separated by '&', sorted by key.
func EncodeForm(form map[string]string) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+form[k])
	}
	return strings.Join(pairs, "&")
}

// ParseForm extracts name/value pairs from the <input> and <select>
// elements of a device page. The device emits one element per line, and
// the scan relies on that: an <input> must carry its name and value on a
// single line, and the selected <option> of a <select> is looked for on
// the lines that follow it. Control buttons are dropped.
func ParseForm(r io.Reader, readable bool) map[string]string {
	form := make(map[string]string)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	for sc.Scan() {
		line := sc.Text()

		if strings.Contains(line, "<input") {
			name, okName := attr(line, "name")
			value, okValue := attr(line, "value")
			if okName && okValue {
				form[name] = value
				continue
			}
		}

		if !strings.Contains(line, "<select") {
			continue
		}
		name, ok := attr(line, "name")
		if !ok {
			continue
		}

		// The selected option may share the <select> line.
		rest := line[strings.Index(line, "<select"):]
		rest = rest[strings.Index(rest, ">")+1:]
		if v, found := selectedOption(rest, readable); found {
			form[name] = v
			continue
		}
		if strings.Contains(rest, "</select") {
			continue
		}
		for sc.Scan() {
			next := sc.Text()
			if v, found := selectedOption(next, readable); found {
				form[name] = v
				break
			}
			if strings.Contains(next, "</select") {
				break
			}
		}
	}

	for _, k := range controlFields {
		delete(form, k)
	}
	return form
}

// attr returns the quoted value of key="..." within line.
func attr(line, key string) (string, bool) {
	marker := key + `="`
	start := strings.Index(line, marker)
	if start < 0 {
		return "", false
	}
	start += len(marker)
	end := strings.IndexByte(line[start:], '"')
	if end < 0 {
		return "", false
	}
	return line[start : start+end], true
}

func selectedOption(line string, readable bool) (string, bool) {
	sl := strings.Index(line, "selected")
	if sl < 0 {
		return "", false
	}

	if !readable {
		// value="..." may sit before or after the selected marker
		opt := line
		if o := strings.LastIndex(line[:sl], "<option"); o >= 0 {
			opt = line[o:]
		}
		return attr(opt, "value")
	}

	gt := strings.IndexByte(line[sl:], '>')
	if gt < 0 {
		return "", false
	}
	text := line[sl+gt+1:]
	lt := strings.IndexByte(text, '<')
	if lt < 0 {
		return "", false
	}
	return strings.TrimSpace(text[:lt]), true
}
