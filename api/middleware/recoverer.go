package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/amerta-coffee/amerta-coffee-api/api/responses"
	pkgerrors "github.com/amerta-coffee/amerta-coffee-api/pkg/errors"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/logger"
)

// Recoverer turns a handler panic into a 500 envelope. http.ErrAbortHandler
// is re-raised so net/http can drop the connection.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				panicErr, ok := rec.(error)
				if ok && errors.Is(panicErr, http.ErrAbortHandler) {
					panic(rec)
				}
				if !ok {
					panicErr = fmt.Errorf("%v", rec)
				}
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeInternal, fmt.Errorf("recovered panic: %w", panicErr), "handler panic"))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
