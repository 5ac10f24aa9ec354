package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/ritzau/syncgraph/pkg/model"
)

// maxListItems bounds how many elements of a slice attribute are printed
const maxListItems = 5

// CompactHandler formats records for console output:
//
//	[LEVEL] HH:MM:SS.mmm message | key=value key=value
//
// Derived handlers (WithAttrs, WithGroup) share the writer lock.
type CompactHandler struct {
	opts  slog.HandlerOptions
	color bool
	mu    *sync.Mutex
	out   io.Writer
	attrs []slog.Attr
	group string
}

// NewCompactHandler creates a new compact console handler
func NewCompactHandler(w io.Writer, opts *slog.HandlerOptions) *CompactHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &CompactHandler{
		opts: *opts,
		mu:   &sync.Mutex{},
		out:  w,
	}
}

// WithColor returns a copy of h that colors level tags
func (h *CompactHandler) WithColor(on bool) *CompactHandler {
	c := h.clone()
	c.color = on
	return c
}

func (h *CompactHandler) clone() *CompactHandler {
	c := *h
	return &c
}

func (h *CompactHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func levelTag(level slog.Level) (string, *color.Color) {
	switch {
	case level <= LevelTrace:
		return "[TRACE]", color.New(color.FgHiBlack)
	case level < slog.LevelInfo:
		return "[DEBUG]", color.New(color.FgCyan)
	case level < slog.LevelWarn:
		return "[INFO] ", color.New(color.FgGreen)
	case level < slog.LevelError:
		return "[WARN] ", color.New(color.FgYellow)
	default:
		return "[ERROR]", color.New(color.FgRed, color.Bold)
	}
}

func (h *CompactHandler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 1024)

	tag, c := levelTag(r.Level)
	if h.color {
		tag = c.Sprint(tag)
	}
	buf = append(buf, tag...)
	buf = append(buf, ' ')
	buf = r.Time.AppendFormat(buf, "15:04:05.000")
	buf = append(buf, ' ')
	buf = append(buf, r.Message...)

	// Handler-level attributes first (already qualified), then the record's own
	sep := " |"
	emit := func(a slog.Attr) bool {
		if a.Equal(slog.Attr{}) {
			return true
		}
		buf = append(buf, sep...)
		buf = append(buf, ' ')
		sep = ""
		buf = appendAttr(buf, a)
		return true
	}
	for _, a := range h.attrs {
		emit(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		return emit(h.qualify(a))
	})
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf)
	return err
}

func appendAttr(buf []byte, a slog.Attr) []byte {
	v := a.Value.Resolve()

	switch a.Key {
	case "requestID", "passID":
		// IDs are uuids; the first 8 chars identify them well enough on a console
		if s, ok := v.Any().(string); ok && len(s) > 8 {
			key := "req="
			if a.Key == "passID" {
				key = "pass="
			}
			buf = append(buf, key...)
			return append(buf, s[:8]...)
		}
	case "durationMs":
		buf = append(buf, "duration="...)
		buf = append(buf, v.String()...)
		return append(buf, "ms"...)
	case "error":
		buf = append(buf, "error="...)
		return strconv.AppendQuote(buf, fmt.Sprint(v.Any()))
	}

	buf = append(buf, a.Key...)
	buf = append(buf, '=')
	return appendValue(buf, v)
}

func appendValue(buf []byte, v slog.Value) []byte {
	switch v.Kind() {
	case slog.KindString:
		return appendString(buf, v.String())
	case slog.KindInt64:
		return strconv.AppendInt(buf, v.Int64(), 10)
	case slog.KindUint64:
		return strconv.AppendUint(buf, v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.AppendFloat(buf, v.Float64(), 'g', -1, 64)
	case slog.KindBool:
		return strconv.AppendBool(buf, v.Bool())
	case slog.KindDuration:
		return append(buf, roundDuration(v.Duration()).String()...)
	case slog.KindTime:
		return v.Time().AppendFormat(buf, time.RFC3339)
	}

	switch x := v.Any().(type) {
	case []string:
		return appendList(buf, x)
	case []model.Label:
		items := make([]string, len(x))
		for i, l := range x {
			items[i] = string(l)
		}
		return appendList(buf, items)
	case model.Label:
		return appendString(buf, string(x))
	}
	return append(buf, fmt.Sprintf("%v", v.Any())...)
}

// appendList prints at most maxListItems elements followed by the number left out
func appendList(buf []byte, items []string) []byte {
	buf = append(buf, '[')
	for i, s := range items {
		if i == maxListItems {
			buf = fmt.Appendf(buf, " +%d more", len(items)-maxListItems)
			break
		}
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = appendString(buf, s)
	}
	return append(buf, ']')
}

func appendString(buf []byte, s string) []byte {
	if needsQuoting(s) {
		return strconv.AppendQuote(buf, s)
	}
	return append(buf, s...)
}

func roundDuration(d time.Duration) time.Duration {
	switch {
	case d >= time.Second:
		return d.Round(time.Millisecond)
	case d >= time.Millisecond:
		return d.Round(10 * time.Microsecond)
	default:
		return d
	}
}

func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '"' || r == '=' {
			return true
		}
	}
	return false
}

// qualify prefixes the key with the open groups
func (h *CompactHandler) qualify(a slog.Attr) slog.Attr {
	if h.group != "" {
		a.Key = h.group + "." + a.Key
	}
	return a
}

func (h *CompactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	c.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	c.attrs = append(c.attrs, h.attrs...)
	for _, a := range attrs {
		c.attrs = append(c.attrs, h.qualify(a))
	}
	return c
}

func (h *CompactHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.group = h.qualify(slog.String(name, "")).Key
	return c
}
