// Package snpedia fetches and parses SNPedia reference pages.
package snpedia

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/frostyslav/OSGenome/internal/snp"
)

// DefaultBaseURL is the SNPedia bot endpoint.
const DefaultBaseURL = "https://bots.snpedia.com"

const defaultUserAgent = "osgenome (personal genome research tool)"

// descriptionStyle marks the highlighted summary table on an rsid page.
const descriptionStyle = "background-color: #FFFFC0"

// Config controls collector behavior.
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// Fetcher implements snp.Fetcher over SNPedia using a Colly collector. It
// performs exactly one HTTP GET per call; retry policy belongs to the
// caller.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())

	return &Fetcher{cfg: cfg, baseCollector: c, logger: logger}
}

// Fetch retrieves and parses the page for rsid.
func (f *Fetcher) Fetch(ctx context.Context, rsid string) (snp.Record, error) {
	var (
		body     []byte
		status   int
		fetchErr error
	)

	collector := f.baseCollector.Clone()
	collector.UserAgent = f.cfg.UserAgent
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(f.cfg.Timeout)

	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = err
	})

	url := fmt.Sprintf("%s/index.php/%s", f.cfg.BaseURL, rsid)
	visitErr := f.runCollector(ctx, collector, url)

	switch {
	case visitErr != nil && status == 0:
		// No response reached the collector: cancellation or transport
		// failure.
		return snp.Record{}, &snp.FetchError{
			RSID:  rsid,
			Class: snp.FailureNetwork,
			Err:   visitErr,
		}
	case status >= 400:
		err := fetchErr
		if err == nil {
			err = fmt.Errorf("unexpected status %d", status)
		}
		return snp.Record{}, &snp.FetchError{
			RSID:       rsid,
			StatusCode: status,
			Class:      snp.ClassifyStatus(status),
			Err:        err,
		}
	case visitErr != nil:
		return snp.Record{}, &snp.FetchError{
			RSID:       rsid,
			StatusCode: status,
			Class:      snp.FailureOther,
			Err:        visitErr,
		}
	}

	rec := parsePage(body)
	f.logger.Debug("snpedia page fetched",
		zap.String("rsid", rsid),
		zap.String("orientation", rec.StabilizedOrientation),
		zap.Int("variations", len(rec.Variations)),
	)
	return rec, nil
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("snpedia fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("snpedia visit failed: %w", err)
		}
		return nil
	}
}

// parsePage extracts the record fields from an rsid page. Pages without the
// expected tables yield an empty record, not an error.
func parsePage(body []byte) snp.Record {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return snp.Record{}
	}

	var rec snp.Record

	doc.Find("table").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		style, _ := s.Attr("style")
		if !strings.Contains(style, descriptionStyle) {
			return true
		}
		if rows := tableRows(s); len(rows) > 0 && len(rows[0]) > 0 {
			rec.Description = rows[0][0]
		}
		return false
	})

	if rows := tableRows(doc.Find("table.sortable.smwtable").First()); len(rows) > 1 {
		rec.Variations = rows[1:]
	}

	rec.StabilizedOrientation = findOrientation(doc)
	return rec
}

// tableRows flattens a table to trimmed cell text, dropping empty cells and
// empty rows.
func tableRows(table *goquery.Selection) [][]string {
	var rows [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cols []string
		tr.Find("td").Each(func(_ int, td *goquery.Selection) {
			if text := strings.TrimSpace(td.Text()); text != "" {
				cols = append(cols, text)
			}
		})
		if len(cols) > 0 {
			rows = append(rows, cols)
		}
	})
	return rows
}

// findOrientation locates the Rs_StabilizedOrientation row, falling back to
// the property link when the label cell is absent, and reads plus or minus
// from its cells.
func findOrientation(doc *goquery.Document) string {
	row := doc.Find("td").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.TrimSpace(s.Text()) == "Rs_StabilizedOrientation"
	}).First().Parent()

	if row.Length() == 0 {
		row = doc.Find(`a[title="StabilizedOrientation"]`).First().Closest("tr")
	}
	if row.Length() == 0 {
		return ""
	}

	orientation := ""
	row.Find("td").Each(func(_ int, td *goquery.Selection) {
		switch strings.TrimSpace(td.Text()) {
		case "plus":
			if orientation == "" {
				orientation = "plus"
			}
		case "minus":
			orientation = "minus"
		}
	})
	return orientation
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
