package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-openapi/errors"
	"github.com/go-openapi/runtime"

	"github.com/bnb-chain/blob-stats/logging"
	"github.com/bnb-chain/blob-stats/metrics"
	"github.com/bnb-chain/blob-stats/service"
)

var producer = runtime.JSONProducer()

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{w, http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func Error(err error) (int64, string) {
	switch e := err.(type) {
	case service.Err:
		return e.Code, e.Message
	case nil:
		return service.NoErr.Code, service.NoErr.Message
	default:
		return service.InternalErr.Code, err.Error()
	}
}

// WriteResponse writes payload as JSON, or err through the go-openapi error renderer.
func WriteResponse(w http.ResponseWriter, r *http.Request, payload interface{}, err error) {
	if err != nil {
		code, message := Error(err)
		if code == service.InternalErr.Code {
			metrics.IncError(metrics.ErrTypeQuery)
			logging.Logger.Errorf("failed to serve %s, err=%s", r.URL.Path, message)
		}
		errors.ServeError(w, r, errors.New(int32(code), message))
		return
	}
	w.Header().Set(runtime.HeaderContentType, runtime.JSONMime)
	w.WriteHeader(http.StatusOK)
	if err = producer.Produce(w, payload); err != nil {
		logging.Logger.Errorf("failed to write response for %s, err=%s", r.URL.Path, err.Error())
	}
}

// Instrument records the route and status of every request.
func Instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := newResponseWriter(w)
		next(rw, r)
		metrics.APIRequestsCounter.WithLabelValues(route, strconv.Itoa(rw.statusCode)).Inc()
		logging.Logger.Debugf("%s %s code=%d cost=%s", r.Method, r.URL.RequestURI(), rw.statusCode, time.Since(start))
	}
}
