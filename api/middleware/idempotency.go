package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/amerta-coffee/amerta-coffee-api/api/responses"
	"github.com/amerta-coffee/amerta-coffee-api/api/validators"
	pkgerrors "github.com/amerta-coffee/amerta-coffee-api/pkg/errors"
	"github.com/amerta-coffee/amerta-coffee-api/pkg/logger"
	pkgredis "github.com/amerta-coffee/amerta-coffee-api/pkg/redis"
)

const (
	idempotencyHeader     = "Idempotency-Key"
	replayedHeader        = "Idempotent-Replayed"
	defaultIdempotencyTTL = 24 * time.Hour
	// CriticalIdempotencyTTL covers money-moving routes such as checkout.
	CriticalIdempotencyTTL = 7 * 24 * time.Hour
	inFlightTTL            = 30 * time.Second
	maxIdempotencyKeyLen   = 255
)

// IdempotencyRule guards one method and route pattern. Without a key a
// Required rule rejects the request; other rules let it through untracked.
type IdempotencyRule struct {
	Method   string
	Pattern  string
	TTL      time.Duration
	Required bool
}

// DefaultIdempotencyRules requires a key on checkout and honours an optional
// one on address creation.
func DefaultIdempotencyRules(checkoutTTL time.Duration) []IdempotencyRule {
	if checkoutTTL <= 0 {
		checkoutTTL = CriticalIdempotencyTTL
	}
	return []IdempotencyRule{
		{Method: http.MethodPost, Pattern: "/api/v1/checkout", TTL: checkoutTTL, Required: true},
		{Method: http.MethodPost, Pattern: "/api/v1/addresses", TTL: defaultIdempotencyTTL},
	}
}

// storedResponse is the cached outcome of the first request for a key.
type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	Fingerprint string `json:"fingerprint"`
}

// Idempotency replays the stored response for a repeated Idempotency-Key.
// Reusing a key with a different body is rejected. Responses the client is
// expected to retry (5xx, 409 and 429) are never stored.
func Idempotency(store pkgredis.IdempotencyStore, rules []IdempotencyRule, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rule, ok := matchRule(rules, r.Method, routePattern(r))
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			g := idempotencyGuard{store: store, rule: rule, logg: logg}
			if err := g.serve(w, r, next); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
			}
		})
	}
}

type idempotencyGuard struct {
	store pkgredis.IdempotencyStore
	rule  IdempotencyRule
	logg  *logger.Logger
}

// serve returns an error only before next has been invoked.
func (g idempotencyGuard) serve(w http.ResponseWriter, r *http.Request, next http.Handler) error {
	ctx := r.Context()
	clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	switch {
	case clientKey == "" && g.rule.Required:
		return pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required")
	case clientKey == "":
		next.ServeHTTP(w, r)
		return nil
	case len(clientKey) > maxIdempotencyKeyLen:
		return pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header too long")
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, validators.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "request body exceeds %d bytes", tooLarge.Limit)
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request")
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	fingerprint := fingerprintBody(body)
	key := g.store.IdempotencyKey(requestScope(r), clientKey)

	prior, err := g.lookup(ctx, key)
	if err != nil {
		return err
	}
	if prior != nil {
		if prior.Fingerprint != fingerprint {
			return pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body")
		}
		prior.replay(w)
		return nil
	}

	release, err := g.acquire(ctx, key, fingerprint)
	if err != nil {
		return err
	}
	defer release()

	var captured bytes.Buffer
	ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
	ww.Tee(&captured)
	next.ServeHTTP(ww, r)

	status := responseStatus(ww)
	if !replayable(status) {
		return nil
	}
	g.persist(ctx, key, storedResponse{
		Status:      status,
		ContentType: ww.Header().Get("Content-Type"),
		Body:        captured.Bytes(),
		Fingerprint: fingerprint,
	})
	return nil
}

// replayable excludes transient outcomes so a retry with the same key runs
// the handler again.
func replayable(status int) bool {
	switch {
	case status >= http.StatusInternalServerError:
		return false
	case status == http.StatusConflict, status == http.StatusTooManyRequests:
		return false
	}
	return true
}

func (g idempotencyGuard) lookup(ctx context.Context, key string) (*storedResponse, error) {
	raw, err := g.store.Get(ctx, key)
	if errors.Is(err, pkgredis.ErrMiss) || (err == nil && raw == "") {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}
	var prior storedResponse
	if err := json.Unmarshal([]byte(raw), &prior); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}
	return &prior, nil
}

// acquire takes the in-flight marker so concurrent duplicates get 409 rather
// than running the handler twice.
func (g idempotencyGuard) acquire(ctx context.Context, key, fingerprint string) (func(), error) {
	lockKey := key + ":lock"
	ok, err := g.store.SetNX(ctx, lockKey, fingerprint, inFlightTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock idempotency key")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "a request with this idempotency key is already in progress")
	}
	return func() {
		if err := g.store.Del(context.WithoutCancel(ctx), lockKey); err != nil {
			g.logFailure(ctx, "release idempotency lock", err)
		}
	}, nil
}

func (g idempotencyGuard) persist(ctx context.Context, key string, resp storedResponse) {
	payload, err := json.Marshal(resp)
	if err != nil {
		g.logFailure(ctx, "marshal idempotency record", err)
		return
	}
	if _, err := g.store.SetNX(context.WithoutCancel(ctx), key, string(payload), g.rule.TTL); err != nil {
		g.logFailure(ctx, "persist idempotency record", err)
	}
}

func (g idempotencyGuard) logFailure(ctx context.Context, msg string, err error) {
	if g.logg != nil {
		g.logg.Error(ctx, msg, err)
	}
}

func (s storedResponse) replay(w http.ResponseWriter) {
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(s.Status)
	_, _ = w.Write(s.Body)
}

// requestScope keeps keys from different users or routes apart.
func requestScope(r *http.Request) string {
	return UserIDFromContext(r.Context()) + "|" + r.Method + "|" + r.URL.Path
}

func fingerprintBody(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// routePattern prefers the matched chi pattern. Middleware on a sub-router
// runs before the final route resolves, so a wildcard falls back to the path.
func routePattern(r *http.Request) string {
	pattern := r.URL.Path
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" && !strings.HasSuffix(p, "*") {
			pattern = p
		}
	}
	if len(pattern) > 1 {
		pattern = strings.TrimSuffix(pattern, "/")
	}
	return pattern
}

func matchRule(rules []IdempotencyRule, method, pattern string) (IdempotencyRule, bool) {
	for _, rule := range rules {
		if pattern != "" && rule.Method == method && rule.Pattern == pattern {
			return rule, true
		}
	}
	return IdempotencyRule{}, false
}
