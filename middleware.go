package reqlog

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/ridge/parallel"
	"github.com/ridge/reqlog/diag"
	"github.com/ridge/reqlog/eventlog"
	"github.com/ridge/reqlog/thttp"
	"github.com/ridge/reqlog/tlog"
	"go.uber.org/zap"
)

// Names of the properties every request event carries, in order
const (
	PropRequestMethod = "RequestMethod"
	PropRequestPath   = "RequestPath"
	PropStatusCode    = "StatusCode"
	PropElapsed       = "Elapsed"
	PropBody          = "Body"
)

var reserved = map[string]bool{
	PropRequestMethod: true,
	PropRequestPath:   true,
	PropStatusCode:    true,
	PropElapsed:       true,
	PropBody:          true,
}

// Middleware logs HTTP requests. It is immutable and serves any number of
// concurrent requests.
type Middleware struct {
	logger       *eventlog.Logger
	template     *eventlog.Template
	getLevel     GetLevelFunc
	enrich       EnrichFunc
	includeQuery bool

	now func() time.Time
}

// New creates the middleware
func New(options Options) (*Middleware, error) {
	if err := options.validate(); err != nil {
		return nil, err
	}
	return &Middleware{
		logger:       options.Logger.ForContext(eventlog.SourceContextProperty, SourceContext),
		template:     eventlog.ParseTemplate(options.MessageTemplate),
		getLevel:     options.GetLevel,
		enrich:       options.EnrichDiagnosticContext,
		includeQuery: options.IncludeQueryInRequestPath,
		now:          time.Now,
	}, nil
}

// Wrap installs the middleware in front of next. Its signature fits
// thttp.Wrap.
//
// A panic of next is logged and then re-raised with the same value. The
// stack of the original panic is attached to the event as parallel.ErrPanic;
// a recoverer further out sees the stack of the re-raise.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.serve(next, w, r)
	})
}

// snapshot holds what is known about the request before the handler runs
type snapshot struct {
	method string
	path   string
	body   string
	start  time.Time
}

// outcome holds what is known after the handler returns
type outcome struct {
	end      time.Time
	status   int
	panicked bool
	fault    error // the panic as parallel.ErrPanic, or the body buffering error
}

func (m *Middleware) serve(next http.Handler, w http.ResponseWriter, r *http.Request) {
	body, bodyErr := thttp.BufferBody(r)
	snap := snapshot{
		method: r.Method,
		path:   m.requestPath(r),
		body:   body,
	}

	ctx, collector := diag.Begin(r.Context())
	defer collector.Dispose()
	r = r.WithContext(ctx)

	sr := thttp.NewStatusRecorder(w)
	snap.start = m.now()

	var out outcome
	var panicValue any
	if bodyErr != nil {
		out.panicked, out.fault, panicValue = true, bodyErr, bodyErr
	} else if errPanic := invoke(next, sr, r); errPanic != nil {
		out.panicked, out.fault, panicValue = true, *errPanic, errPanic.Value
	}
	out.end = m.now()
	out.status = sr.Status()
	if out.panicked {
		out.status = http.StatusInternalServerError
	}

	m.log(r, collector, snap, out, sr.Header())

	if out.panicked {
		// only the event keeps the handler's stack, outer recoverers see this one
		panic(panicValue)
	}
}

// invoke runs the handler and returns its panic, if any
func invoke(next http.Handler, w http.ResponseWriter, r *http.Request) *parallel.ErrPanic {
	err := thttp.RunTask(r.Context(), func(ctx context.Context) error {
		next.ServeHTTP(w, r)
		return nil
	})
	var errPanic parallel.ErrPanic
	if errors.As(err, &errPanic) {
		return &errPanic
	}
	return nil
}

// log writes the event for a finished request. Failures of the callbacks are
// reported to the context logger: logging never fails the request.
func (m *Middleware) log(r *http.Request, collector *diag.Collector, snap snapshot, out outcome, header http.Header) {
	defer func() {
		if p := recover(); p != nil {
			if logger, ok := tlog.Lookup(r.Context()); ok {
				logger.Error("Failed to log HTTP request", zap.Any("panic", p), zap.ByteString("stack", debug.Stack()))
			}
		}
	}()

	x := Exchange{
		Request:    r,
		StatusCode: out.status,
		Header:     header,
	}
	elapsedMs := float64(out.end.Sub(snap.start)) / float64(time.Millisecond)

	level := m.getLevel(x, elapsedMs, out.fault)
	if !m.logger.IsEnabled(level) {
		return
	}

	if m.enrich != nil {
		m.enrich(collector, x)
	}
	completion, ok := collector.TryComplete()
	if !ok {
		return
	}
	err := out.fault
	if err == nil {
		err = completion.Err
	}

	m.logger.Write(m.assemble(snap, out, level, elapsedMs, err, completion.Properties))
}

func (m *Middleware) assemble(snap snapshot, out outcome, level eventlog.Level, elapsedMs float64, err error, ambient []eventlog.Property) *eventlog.Event {
	props := make([]eventlog.Property, 0, len(ambient)+len(reserved))
	for _, p := range ambient {
		if !reserved[p.Name] {
			props = append(props, p)
		}
	}
	props = append(props,
		eventlog.Property{Name: PropRequestMethod, Value: snap.method},
		eventlog.Property{Name: PropRequestPath, Value: snap.path},
		eventlog.Property{Name: PropStatusCode, Value: out.status},
		eventlog.Property{Name: PropElapsed, Value: elapsedMs},
		eventlog.Property{Name: PropBody, Value: snap.body},
	)
	return &eventlog.Event{
		Timestamp:  out.end,
		Level:      level,
		Err:        err,
		Template:   m.template,
		Properties: props,
	}
}

func (m *Middleware) requestPath(r *http.Request) string {
	if m.includeQuery {
		switch {
		case r.RequestURI != "":
			return r.RequestURI
		case r.URL != nil:
			return r.URL.RequestURI()
		default:
			return "/"
		}
	}
	if r.URL == nil || r.URL.Path == "" {
		return "/"
	}
	return r.URL.Path
}
