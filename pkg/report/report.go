// Package report renders diff records, trends and merge summaries. Every
// renderer is a pure function of its input.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/honeybbq/uciconfig/pkg/diff"
	"github.com/honeybbq/uciconfig/pkg/history"
	"github.com/honeybbq/uciconfig/pkg/merge"
	"github.com/honeybbq/uciconfig/pkg/nxerrors"
)

// Format selects the output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatHTML Format = "html"
	FormatCBOR Format = "cbor"
)

// ParseFormat validates a format name. An empty name selects FormatText.
func ParseFormat(name string) (Format, error) {
	switch Format(name) {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatHTML, FormatCBOR:
		return Format(name), nil
	default:
		return "", nxerrors.Errorf(nxerrors.KindValidation, "unknown report format %q", name)
	}
}

// Options tunes the renderers.
type Options struct {
	Color bool   // ANSI colours in text output
	Title string // HTML page title; a default is derived from the input
}

var encMode cbor.EncMode

func init() {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	var err error
	encMode, err = opts.EncMode()
	if err != nil {
		panic("report: CBOR encoder initialization failed: " + err.Error())
	}
}

// Record writes rec in format.
func Record(w io.Writer, rec *diff.Record, format Format, opts Options) error {
	if rec == nil {
		return nxerrors.Errorf(nxerrors.KindValidation, "nil diff record")
	}
	switch format {
	case FormatText, "":
		return recordText(w, rec, opts)
	case FormatHTML:
		title := opts.Title
		if title == "" {
			title = "Configuration diff"
			if rec.Summary.Device != "" {
				title += " for " + rec.Summary.Device
			}
		}
		return writeHTML(w, title, recordMarkdown(rec), fileSections(rec))
	default:
		return encode(w, rec, format)
	}
}

// Trend writes trend in format.
func Trend(w io.Writer, trend *history.Trend, format Format, opts Options) error {
	if trend == nil {
		return nxerrors.Errorf(nxerrors.KindValidation, "nil trend")
	}
	switch format {
	case FormatText, "":
		return trendText(w, trend, opts)
	case FormatHTML:
		title := opts.Title
		if title == "" {
			title = "Configuration history"
			if trend.Device != "" {
				title += " for " + trend.Device
			}
		}
		return writeHTML(w, title, trendMarkdown(trend), nil)
	default:
		return encode(w, trend, format)
	}
}

// Merge writes a merge summary in format.
func Merge(w io.Writer, summary merge.Summary, format Format, opts Options) error {
	switch format {
	case FormatText, "":
		return mergeText(w, summary, opts)
	case FormatHTML:
		title := opts.Title
		if title == "" {
			title = "Merge summary"
		}
		return writeHTML(w, title, mergeMarkdown(summary), nil)
	default:
		return encode(w, summary, format)
	}
}

func encode(w io.Writer, v any, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return nxerrors.New(nxerrors.KindRender, fmt.Errorf("encode json: %w", err))
		}
		return nil
	case FormatCBOR:
		data, err := encMode.Marshal(v)
		if err != nil {
			return nxerrors.New(nxerrors.KindRender, fmt.Errorf("encode cbor: %w", err))
		}
		if _, err := w.Write(data); err != nil {
			return nxerrors.New(nxerrors.KindIO, err)
		}
		return nil
	default:
		return nxerrors.Errorf(nxerrors.KindUnsupported, "report format %q", format)
	}
}
