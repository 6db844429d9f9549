package market

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
)

const (
	DefaultBaseURL   = "https://query1.finance.yahoo.com"
	DefaultUserAgent = "Mozilla/5.0 (compatible; MCI-Bot/1.0)"
	DefaultTimeout   = 15 * time.Second
)

var ErrNoPrice = errors.New("no current price in chart payload")

// YahooClient reads daily quotes from the Yahoo Finance v8 chart API. No key
// is required.
type YahooClient struct {
	baseURL   string
	userAgent string
	timeout   time.Duration
	client    *http.Client
}

func NewYahooClient(baseURL, userAgent string, timeout time.Duration) *YahooClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &YahooClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		timeout:   timeout,
		client:    new(http.Client),
	}
}

// Quote fetches 35 days of daily bars for ticker. Each call has its own
// timeout on top of ctx.
func (c *YahooClient) Quote(ctx context.Context, ticker string) (Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	addr := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=35d", c.baseURL, url.PathEscape(ticker))
	var jobj any
	if err := c.jwget(ctx, addr, &jobj); err != nil {
		return Quote{}, fmt.Errorf("error retrieving %q: %w", ticker, err)
	}
	return parseChart(jobj)
}

// jwget performs a GET and unmarshals the JSON response into data.
func (c *YahooClient) jwget(ctx context.Context, addr string, data any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cannot http GET %v%v: %v", resp.Request.URL.Host, resp.Request.URL.Path, resp.Status)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return err
	}
	return json.Unmarshal(buf.Bytes(), data)
}

const (
	pathPrice      = "$.chart.result[0].meta.regularMarketPrice"
	pathPrevClose  = "$.chart.result[0].meta.previousClose"
	pathCloses     = "$.chart.result[0].indicators.quote[0].close"
	pathTimestamps = "$.chart.result[0].timestamp"
)

func parseChart(jobj any) (Quote, error) {
	current, ok := number(jobj, pathPrice)
	if !ok || current == 0 {
		current, ok = number(jobj, pathPrevClose)
	}
	if !ok || current == 0 {
		return Quote{}, ErrNoPrice
	}

	q := Quote{Current: round(current, quotePlaces)}
	closes := list(jobj, pathCloses)
	timestamps := list(jobj, pathTimestamps)
	for i, ts := range timestamps {
		if i >= len(closes) {
			break
		}
		// null closes are days without a trade
		v, ok := closes[i].(float64)
		if !ok {
			continue
		}
		sec, ok := ts.(float64)
		if !ok {
			continue
		}
		q.History = append(q.History, Point{
			Date:  time.Unix(int64(sec), 0).UTC().Format(dateLayout),
			Value: round(v, quotePlaces),
		})
	}
	return q, nil
}

func number(jobj any, path string) (float64, bool) {
	jval, err := jsonpath.Get(path, jobj)
	if err != nil {
		return 0, false
	}
	v, ok := jval.(float64)
	return v, ok
}

func list(jobj any, path string) []any {
	jval, err := jsonpath.Get(path, jobj)
	if err != nil {
		return nil
	}
	l, _ := jval.([]any)
	return l
}
