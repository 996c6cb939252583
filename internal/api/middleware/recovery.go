// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	"github.com/wingedpig/clauderelay/internal/api/handlers"
)

// Recovery turns a handler panic into an INTERNAL_ERROR envelope carrying the
// request id.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			id := RequestID(r.Context())
			log.Printf("api: panic in %s %s [%s]: %v\n%s", r.Method, r.URL.Path, id, v, debug.Stack())

			var details map[string]interface{}
			if id != "" {
				details = map[string]interface{}{"requestId": id}
			}
			handlers.WriteErrorWithDetails(w, http.StatusInternalServerError, handlers.ErrInternalError, "Internal server error", details)
		}()

		next.ServeHTTP(w, r)
	})
}
