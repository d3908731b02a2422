// Package reqlog is an HTTP middleware that writes one structured log event
// per request.
//
// # What is logged
//
// For every request the middleware records the method, the path, the response
// status code, the time spent in the downstream handler (in milliseconds) and
// the request body. The body is buffered before the handler runs, so the
// handler still sees the whole body.
//
// The default message template is
//
//	HTTP {RequestMethod} {RequestPath} {Body} responded {StatusCode} in {Elapsed:0.0000}
//
// # Ambient properties
//
// Each request gets its own diagnostic scope (package diag) carried by the
// request context. Handlers and inner middleware add properties to it:
//
//	func (h *handler) get(w http.ResponseWriter, r *http.Request) {
//	    p := h.store.Get(id)
//	    diag.Set(r.Context(), "ProductName", p.Name)
//	    ...
//	}
//
// These properties are written in front of the fixed ones. The names
// RequestMethod, RequestPath, StatusCode, Elapsed and Body are reserved: an
// ambient property with one of these names is dropped. Avoiding them is up to
// the code that adds properties.
//
// # Panics
//
// A panic in the downstream handler is logged with status 500 and, with the
// default level selector, at Error level. The middleware then panics again
// with the original value, so outer middleware such as thttp.Recover sees
// exactly what the handler panicked with. This also happens when the level
// turns out to be disabled and nothing is logged.
//
// # Levels and sinks
//
// The level of each event is chosen by Options.GetLevel. If no sink of the
// eventlog.Logger accepts that level, the event is not even assembled. Events
// that are assembled go to every sink of the logger; a failing sink never
// affects the request or the other sinks.
package reqlog
