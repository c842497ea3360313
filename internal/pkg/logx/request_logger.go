/*
Package logx provides a structured logging wrapper based on zerolog.

This file contains the HTTP middleware that logs the request lifecycle (URI, method,
authenticated caller, status, latency) with anonymised client addresses.
*/
package logx

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// anonymizeIP zeroes the last IPv4 octet or the lower half of an IPv6 address.
func anonymizeIP(ipStr string) string {
	host, _, err := net.SplitHostPort(ipStr)
	if err == nil {
		ipStr = host
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return "unknown_ip"
	}

	if ip.IsLoopback() {
		return "127.0.0.1"
	}

	if v4 := ip.To4(); v4 != nil {
		return v4.Mask(net.CIDRMask(24, 32)).String()
	}

	return ip.Mask(net.CIDRMask(64, 128)).String()
}

type callerKey struct{}

// SetCaller records the authenticated user of the request so its completion line names
// them. It is a no-op outside RequestLogger.
func SetCaller(ctx context.Context, userID string) {
	if caller, ok := ctx.Value(callerKey{}).(*string); ok {
		*caller = userID
	}
}

// quietPaths are polled by orchestrators and scrapers; successful hits log at debug.
var quietPaths = map[string]bool{"/health": true, "/metrics": true}

// RequestLogger returns a middleware that logs each request once it completes.
// A per-request logger is injected into the request context.
func RequestLogger() func(next http.Handler) http.Handler {
	baseLogger := Logger()

	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			logger := baseLogger.With().
				Str("component", "http").
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("remote_ip", anonymizeIP(r.RemoteAddr)).
				Str("request_method", r.Method).
				Str("request_uri", r.RequestURI).
				Logger()

			caller := new(string)
			ctx := context.WithValue(logger.WithContext(r.Context()), callerKey{}, caller)

			started := time.Now()
			next.ServeHTTP(ww, r.WithContext(ctx))
			status := ww.Status()

			var logEvent *zerolog.Event
			switch {
			case status >= 500:
				logEvent = logger.Error()
			case status >= 400:
				logEvent = logger.Warn()
			case quietPaths[r.URL.Path]:
				logEvent = logger.Debug()
			default:
				logEvent = logger.Info()
			}
			if *caller != "" {
				logEvent = logEvent.Str("user_id", *caller)
			}

			logEvent.
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("latency", time.Since(started)).
				Msg("Request completed")
		}

		return http.HandlerFunc(fn)
	}
}
