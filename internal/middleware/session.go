package middleware

import (
	"context"
	"net/http"

	"storefront/internal/apiclient"
	"storefront/internal/session"
)

// Visitor bundles the per-request session store and the API client bound
// to it.
type Visitor struct {
	Store      *session.Store
	API        *apiclient.Client
	Resolution *session.Resolution
}

// Session resolves the visitor's identity in the background and binds a
// fresh API client to it for the lifetime of the request.
func Session(manager *session.Manager, backend *apiclient.Backend, policy apiclient.LogoutPolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			store, res := manager.Resolve(r)
			client := backend.Client()
			unbind := apiclient.Bind(client, store, policy)
			defer unbind()

			v := &Visitor{Store: store, API: client, Resolution: res}
			cw := &commitWriter{ResponseWriter: w, commit: func(w http.ResponseWriter) { res.Commit(w, r) }}
			next.ServeHTTP(cw, r.WithContext(context.WithValue(r.Context(), VisitorKey, v)))
			cw.flushCommit()
		})
	}
}

func VisitorFrom(r *http.Request) *Visitor {
	v, _ := r.Context().Value(VisitorKey).(*Visitor)
	return v
}

// commitWriter writes pending session cookie changes right before the
// response headers go out.
type commitWriter struct {
	http.ResponseWriter
	commit    func(http.ResponseWriter)
	committed bool
}

func (cw *commitWriter) flushCommit() {
	if cw.committed {
		return
	}
	cw.committed = true
	cw.commit(cw.ResponseWriter)
}

func (cw *commitWriter) WriteHeader(code int) {
	cw.flushCommit()
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *commitWriter) Write(b []byte) (int, error) {
	cw.flushCommit()
	return cw.ResponseWriter.Write(b)
}

func (cw *commitWriter) Unwrap() http.ResponseWriter {
	return cw.ResponseWriter
}
