package reqlog

import (
	"errors"
	"net/http"

	"github.com/ridge/reqlog/diag"
	"github.com/ridge/reqlog/eventlog"
)

// DefaultMessageTemplate is the message template used by DefaultOptions
const DefaultMessageTemplate = "HTTP {RequestMethod} {RequestPath} {Body} responded {StatusCode} in {Elapsed:0.0000}"

// SourceContext is the value of the SourceContext property of request events
const SourceContext = "github.com/ridge/reqlog"

// Configuration errors
var (
	ErrNoLogger          = errors.New("reqlog: logger is not set")
	ErrNoMessageTemplate = errors.New("reqlog: message template is empty")
	ErrNoGetLevel        = errors.New("reqlog: level selector is not set")
)

// Exchange is what the callbacks get to see of a request and its response
type Exchange struct {
	Request    *http.Request
	StatusCode int         // 500 if the handler panicked
	Header     http.Header // response header
}

// GetLevelFunc chooses the level of the event for a finished request.
// err is the fault: the panic of the handler as parallel.ErrPanic, or the
// failure to read the request body. Errors recorded with diag.SetError do not
// reach it; they are only attached to the event.
type GetLevelFunc func(x Exchange, elapsedMs float64, err error) eventlog.Level

// EnrichFunc adds properties to the diagnostic scope of a finished request.
// It is called only for requests that are going to be logged.
type EnrichFunc func(c *diag.Collector, x Exchange)

// Options configures the middleware
type Options struct {
	Logger          *eventlog.Logger
	MessageTemplate string
	GetLevel        GetLevelFunc

	// EnrichDiagnosticContext is optional
	EnrichDiagnosticContext EnrichFunc

	// IncludeQueryInRequestPath makes RequestPath the full request target,
	// query string included
	IncludeQueryInRequestPath bool
}

// DefaultOptions returns the options with the default template and level
// selector
func DefaultOptions(logger *eventlog.Logger) Options {
	return Options{
		Logger:          logger,
		MessageTemplate: DefaultMessageTemplate,
		GetLevel:        DefaultGetLevel,
	}
}

// DefaultGetLevel logs failed requests at Error level and the rest at
// Information level
func DefaultGetLevel(x Exchange, elapsedMs float64, err error) eventlog.Level {
	switch {
	case err != nil:
		return eventlog.Error
	case x.StatusCode >= http.StatusInternalServerError:
		return eventlog.Error
	default:
		return eventlog.Information
	}
}

func (o Options) validate() error {
	switch {
	case o.Logger == nil:
		return ErrNoLogger
	case o.MessageTemplate == "":
		return ErrNoMessageTemplate
	case o.GetLevel == nil:
		return ErrNoGetLevel
	default:
		return nil
	}
}
