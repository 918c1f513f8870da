package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/polytrage/polytrage/internal/scanner"
)

// BlobWriter is the slice of Writer the archiver needs.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

var _ BlobWriter = (*Writer)(nil)

// scanLine opens every archive object and summarises the cycle.
type scanLine struct {
	Type           string    `json:"type"`
	ScannedAt      time.Time `json:"scanned_at"`
	MarketsScanned int       `json:"markets_scanned"`
	Opportunities  int       `json:"opportunities"`
	TotalProfit    float64   `json:"total_profit"`
	Errors         []string  `json:"errors,omitempty"`
}

// opportunityLine follows the summary, one line per hit.
type opportunityLine struct {
	Type           string  `json:"type"`
	MarketID       string  `json:"market_id"`
	MarketSlug     string  `json:"market_slug"`
	MarketQuestion string  `json:"market_question"`
	TotalCost      float64 `json:"total_cost"`
	GrossProfit    float64 `json:"gross_profit"`
	NetProfit      float64 `json:"net_profit"`
	ROIPct         float64 `json:"roi_pct"`
}

// Archiver uploads each completed scan cycle as a JSONL object keyed by
// date, `scans/YYYY/MM/DD/scan-<unix>.jsonl`. Payloads over 5 MiB go
// through the multipart uploader.
type Archiver struct {
	writer BlobWriter
	prefix string
	now    func() time.Time
}

// NewArchiver creates an Archiver. A non-empty prefix is prepended to every
// object key.
func NewArchiver(writer BlobWriter, prefix string) *Archiver {
	return &Archiver{
		writer: writer,
		prefix: strings.Trim(prefix, "/"),
		now:    time.Now,
	}
}

// Archive serializes the result and uploads it.
func (a *Archiver) Archive(ctx context.Context, result scanner.Result) error {
	at := a.now().UTC()

	payload, err := encodeScan(at, result)
	if err != nil {
		return err
	}

	key := a.key(at)
	if int64(len(payload)) > minPartSize {
		if err := a.writer.PutMultipart(ctx, key, bytes.NewReader(payload), minPartSize); err != nil {
			return fmt.Errorf("s3blob: archive scan: %w", err)
		}
		return nil
	}
	if err := a.writer.Put(ctx, key, bytes.NewReader(payload), "application/x-ndjson"); err != nil {
		return fmt.Errorf("s3blob: archive scan: %w", err)
	}
	return nil
}

// key builds the object key for a scan taken at t.
func (a *Archiver) key(t time.Time) string {
	key := fmt.Sprintf("scans/%s/scan-%d.jsonl", t.Format("2006/01/02"), t.Unix())
	if a.prefix != "" {
		key = a.prefix + "/" + key
	}
	return key
}

// encodeScan renders the result as newline-delimited JSON: a summary line
// followed by one line per opportunity.
func encodeScan(at time.Time, result scanner.Result) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	summary := scanLine{
		Type:           "scan",
		ScannedAt:      at,
		MarketsScanned: result.MarketsScanned,
		Opportunities:  len(result.Opportunities),
		TotalProfit:    result.TotalProfit(),
		Errors:         result.Errors,
	}
	if err := enc.Encode(summary); err != nil {
		return nil, fmt.Errorf("s3blob: encode scan summary: %w", err)
	}

	for i, opp := range result.Opportunities {
		line := opportunityLine{
			Type:           "opportunity",
			MarketID:       opp.Market.ID,
			MarketSlug:     opp.Market.Slug,
			MarketQuestion: opp.Market.Question,
			TotalCost:      opp.TotalCost,
			GrossProfit:    opp.GrossProfit,
			NetProfit:      opp.NetProfit,
			ROIPct:         opp.ROIPct,
		}
		if err := enc.Encode(line); err != nil {
			return nil, fmt.Errorf("s3blob: encode opportunity %d: %w", i, err)
		}
	}

	return buf.Bytes(), nil
}
