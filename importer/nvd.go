package importer

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

const (
	NVDEndpoint = "https://services.nvd.nist.gov/rest/json/%s/2.0"

	// Rate limits published by the feed: one request per 6 seconds without
	// an API key, one per 600ms with one.
	DefaultPageDelay = 6 * time.Second
	KeyedPageDelay   = 600 * time.Millisecond

	requestTimeout = 30 * time.Second

	lastModStartParam = "lastModStartDate"
)

// feedTimeLayout is the millisecond-precision form the feed accepts for
// date filters. The trailing Z is literal; filters are always UTC.
const feedTimeLayout = "2006-01-02T15:04:05.000"

// FormatFeedTime renders t the way the feed's date filters expect.
func FormatFeedTime(t time.Time) string {
	return t.UTC().Format(feedTimeLayout) + "Z"
}

// APIv2 is a client for the NVD REST API v2 family of endpoints (cpes,
// cves). The zero value is usable and points at the public service.
type APIv2 struct {
	once       sync.Once
	Endpoint   string
	APIKey     string
	HTTPClient *http.Client
}

func (a *APIv2) init() {
	a.once.Do(func() {
		if a.Endpoint == "" {
			a.Endpoint = NVDEndpoint
		}
		if a.HTTPClient == nil {
			a.HTTPClient = &http.Client{Timeout: requestTimeout}
		}
	})
}

// PageDelay is the mandatory pause between page fetches, honoring the
// configured delay but dropping to the keyed rate when an API key is set.
func (a *APIv2) PageDelay(configured time.Duration) time.Duration {
	if a.APIKey != "" {
		return KeyedPageDelay
	}
	if configured > 0 {
		return configured
	}
	return DefaultPageDelay
}

type RequestOptionsFunc func(url.Values) error

func StartIndex(index int) RequestOptionsFunc {
	return func(q url.Values) error {
		q.Set("startIndex", strconv.Itoa(index))
		return nil
	}
}

func ResultsPerPage(nr int) RequestOptionsFunc {
	return func(q url.Values) error {
		q.Set("resultsPerPage", strconv.Itoa(nr))
		return nil
	}
}

func LastModStart(date time.Time) RequestOptionsFunc {
	return func(q url.Values) error {
		q.Set(lastModStartParam, FormatFeedTime(date))
		return nil
	}
}

func buildUrl(endpoint, api string, options []RequestOptionsFunc) (string, error) {
	apiUrl, err := url.Parse(fmt.Sprintf(endpoint, api))
	if err != nil {
		return "", fmt.Errorf("failed to parse endpoint: %w", err)
	}

	query := url.Values{}
	for _, option := range options {
		err = option(query)
		if err != nil {
			return "", fmt.Errorf("failed to apply option: %w", err)
		}
	}

	apiUrl.RawQuery = query.Encode()
	return apiUrl.String(), nil
}

// fetch requests one page from the given API resource and decodes it into
// out. A 404 on a date-filtered request is treated as "filter unsupported
// or no matching window" and retried exactly once without the filter; the
// returned flag tells the caller the filter was dropped so it can stop
// sending it for the remainder of the run. Every other transport or status
// failure is fatal.
func (a *APIv2) fetch(api string, options []RequestOptionsFunc, out any) (filterDropped bool, err error) {
	a.init()

	requestUrl, err := buildUrl(a.Endpoint, api, options)
	if err != nil {
		return false, fmt.Errorf("failed to build url: %w", err)
	}

	status, body, err := a.get(requestUrl)
	if err != nil {
		return false, err
	}

	if status == http.StatusNotFound {
		parsed, parseErr := url.Parse(requestUrl)
		if parseErr == nil && parsed.Query().Has(lastModStartParam) {
			query := parsed.Query()
			query.Del(lastModStartParam)
			parsed.RawQuery = query.Encode()

			status, body, err = a.get(parsed.String())
			if err != nil {
				return false, err
			}
			filterDropped = true
		}
	}

	if status != http.StatusOK {
		return filterDropped, fmt.Errorf("unexpected status %d from feed", status)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return filterDropped, fmt.Errorf("failed to decode feed response: %w", err)
	}
	return filterDropped, nil
}

func (a *APIv2) get(requestUrl string) (int, []byte, error) {
	req, err := http.NewRequest(http.MethodGet, requestUrl, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to build request: %w", err)
	}
	if a.APIKey != "" {
		req.Header.Set("apiKey", a.APIKey)
	}

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("failure in HTTP request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, body, nil
}

// GetCPEs fetches one page of CPE dictionary products.
func (a *APIv2) GetCPEs(options ...RequestOptionsFunc) (*CPEResponse, bool, error) {
	resp := &CPEResponse{}
	dropped, err := a.fetch("cpes", options, resp)
	if err != nil {
		return nil, dropped, err
	}
	return resp, dropped, nil
}

// GetCVEs fetches one page of CVE records.
func (a *APIv2) GetCVEs(options ...RequestOptionsFunc) (*CVEResponse, bool, error) {
	resp := &CVEResponse{}
	dropped, err := a.fetch("cves", options, resp)
	if err != nil {
		return nil, dropped, err
	}
	return resp, dropped, nil
}
