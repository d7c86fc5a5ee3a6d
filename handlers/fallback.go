package handlers

import (
	"net/http"

	"github.com/pitabwire/tenantkit/security/interceptors/httptor"
)

// NotFound answers routes nothing is mounted on.
func NotFound(w http.ResponseWriter, r *http.Request) {
	httptor.WriteError(r.Context(), w, httptor.NotFound("route", r.URL.Path))
}

// MethodNotAllowed answers a known route called with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	httptor.WriteError(r.Context(), w,
		httptor.MethodNotAllowed("Method "+r.Method+" is not allowed on "+r.URL.Path))
}
