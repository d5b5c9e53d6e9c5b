package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

// newFileHandler writes the JSON copy kept under log_dir. Timestamps are UTC
// so lines from the server and from job scripts sort together.
func newFileHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: addSource,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				if attr.Value.Kind() == slog.KindTime {
					return slog.String("ts", attr.Value.Time().UTC().Format(time.RFC3339))
				}
			case slog.LevelKey:
				return slog.String(slog.LevelKey, strings.ToLower(attr.Value.String()))
			case slog.SourceKey:
				if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
					return slog.String(slog.SourceKey, fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
				}
			}
			return attr
		},
	})
}

// mirrorHandler sends every record to the primary output and to the log
// file copy. Both share one level, so Enabled only asks the primary.
type mirrorHandler struct {
	primary slog.Handler
	file    slog.Handler
}

func (h mirrorHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.primary.Enabled(ctx, level)
}

func (h mirrorHandler) Handle(ctx context.Context, record slog.Record) error {
	primaryErr := h.primary.Handle(ctx, record.Clone())
	if err := h.file.Handle(ctx, record); err != nil {
		return err
	}
	return primaryErr
}

func (h mirrorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return mirrorHandler{primary: h.primary.WithAttrs(attrs), file: h.file.WithAttrs(attrs)}
}

func (h mirrorHandler) WithGroup(name string) slog.Handler {
	return mirrorHandler{primary: h.primary.WithGroup(name), file: h.file.WithGroup(name)}
}
