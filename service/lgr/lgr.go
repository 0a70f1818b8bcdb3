package lgr

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/mdobak/go-xerrors"
	"github.com/natefinch/lumberjack"
	"go.opentelemetry.io/otel/trace"
)

// Logger is the process-wide logger. It writes colored records to stdout
// and JSON records to a rotating file.
var Logger *slog.Logger

func init() {
	Logger = New(os.Stdout, os.Getenv("LOG_FILE"), ParseLevel(os.Getenv("LOG_LEVEL")))
}

// New builds a logger. An empty filename disables the file output.
func New(console io.Writer, filename string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceAttr,
	}

	handlers := []slog.Handler{newPrettyHandler(console, opts)}
	if filename != "" {
		handlers = append(handlers, slog.NewJSONHandler(&lumberjack.Logger{
			Filename:   filename,
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     7, // days
			Compress:   true,
		}, opts))
	}

	return slog.New(&fanoutHandler{handlers: handlers})
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithTrace attaches the caller's stack to err unless err already carries one.
func WithTrace(err error) error {
	if err == nil || len(xerrors.StackTrace(err)) > 0 {
		return err
	}
	return xerrors.WithStackTrace(err, 1)
}

type stackFrame struct {
	Func   string `json:"func"`
	Source string `json:"source"`
	Line   int    `json:"line"`
}

func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindAny {
		return a
	}

	if err, ok := a.Value.Any().(error); ok {
		a.Value = fmtErr(err)
	}
	return a
}

func marshalStack(err error) []stackFrame {
	trace := xerrors.StackTrace(err)
	if len(trace) == 0 {
		return nil
	}

	frames := trace.Frames()
	s := make([]stackFrame, len(frames))
	for i, v := range frames {
		s[i] = stackFrame{
			Source: filepath.Join(filepath.Base(filepath.Dir(v.File)), filepath.Base(v.File)),
			Func:   filepath.Base(v.Function),
			Line:   v.Line,
		}
	}
	return s
}

func fmtErr(err error) slog.Value {
	groupValues := []slog.Attr{slog.String("msg", err.Error())}

	if frames := marshalStack(err); frames != nil {
		groupValues = append(groupValues, slog.Any("trace", frames))
	}

	return slog.GroupValue(groupValues...)
}

// prettyHandler prints one colored line per record followed by its attrs as indented JSON
type prettyHandler struct {
	slog.Handler
	l     *log.Logger
	attrs []slog.Attr
}

func newPrettyHandler(out io.Writer, opts *slog.HandlerOptions) *prettyHandler {
	return &prettyHandler{
		Handler: slog.NewJSONHandler(out, opts),
		l:       log.New(out, "", 0),
	}
}

func (h *prettyHandler) Handle(ctx context.Context, r slog.Record) error {
	level := r.Level.String() + ":"

	switch r.Level {
	case slog.LevelDebug:
		level = color.MagentaString(level)
	case slog.LevelInfo:
		level = color.BlueString(level)
	case slog.LevelWarn:
		level = color.YellowString(level)
	case slog.LevelError:
		level = color.RedString(level)
	}

	fields := make(map[string]interface{}, r.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		fields[a.Key] = attrValue(replaceAttr(nil, a).Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fields[a.Key] = attrValue(replaceAttr(nil, a).Value)
		return true
	})

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields["traceId"] = sc.TraceID().String()
		fields["spanId"] = sc.SpanID().String()
	}

	b, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return err
	}

	timeStr := r.Time.Format("[15:04:05.000]")
	msg := color.CyanString(r.Message)

	if len(fields) == 0 {
		h.l.Println(timeStr, level, msg)
		return nil
	}
	h.l.Println(timeStr, level, msg, color.WhiteString(string(b)))
	return nil
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &prettyHandler{Handler: h.Handler.WithAttrs(attrs), l: h.l, attrs: merged}
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	return &prettyHandler{Handler: h.Handler.WithGroup(name), l: h.l, attrs: h.attrs}
}

func attrValue(v slog.Value) interface{} {
	v = v.Resolve()
	if v.Kind() != slog.KindGroup {
		return v.Any()
	}

	group := map[string]interface{}{}
	for _, a := range v.Group() {
		group[a.Key] = attrValue(a.Value)
	}
	return group
}

// fanoutHandler hands every record to all of its handlers
type fanoutHandler struct {
	handlers []slog.Handler
}

func (h *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, hh := range h.handlers {
		if hh.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, hh := range h.handlers {
		if !hh.Enabled(ctx, r.Level) {
			continue
		}
		if err := hh.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		handlers[i] = hh.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: handlers}
}

func (h *fanoutHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		handlers[i] = hh.WithGroup(name)
	}
	return &fanoutHandler{handlers: handlers}
}
