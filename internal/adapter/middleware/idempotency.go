package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	HeaderRequestID = "Ax-Request-Id"
	HeaderRequestAt = "Ax-Request-At"
	// Set on responses served from the idempotency store.
	HeaderReplayed = "Ax-Idempotent-Replay"

	// How long we hold the "in-progress" lock before it must be refreshed by finishing the handler.
	provisionalLockTTL = 60 * time.Second
	// Allowed client/server clock skew for Ax-Request-At (in UTC).
	maxClockSkew = 10 * time.Minute
)

type idempEntry struct {
	InProgress  bool      `json:"in_progress"`
	Code        int       `json:"code"`
	Body        []byte    `json:"body"`
	BodySHA256  string    `json:"body_sha256"`
	RequestID   string    `json:"request_id"`
	RequestAtMS int64     `json:"request_at_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

type respRecorder struct {
	w    http.ResponseWriter
	buf  *bytes.Buffer
	code int
}

func (r *respRecorder) Header() http.Header { return r.w.Header() }
func (r *respRecorder) Write(b []byte) (int, error) {
	if r.buf != nil {
		r.buf.Write(b)
	}
	return r.w.Write(b)
}
func (r *respRecorder) WriteHeader(statusCode int) { r.code = statusCode; r.w.WriteHeader(statusCode) }

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
}

// Idempotency deduplicates mutating requests per (method, path, member, Ax-Request-Id).
// A finished request is replayed byte for byte; a reused id with another body, or one
// still in flight, gets 409. 5xx outcomes are not stored so the client may retry them.
// Ax-Request-At must be epoch (seconds or ms) or RFC3339 with a zone.
func Idempotency(rdb *redis.Client, ttl time.Duration, log *zap.Logger) echo.MiddlewareFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			method := req.Method

			switch method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				return next(c)
			}

			reqID := strings.TrimSpace(req.Header.Get(HeaderRequestID))
			if reqID == "" {
				return badRequest(c, "missing "+HeaderRequestID)
			}
			if !validReqID(reqID) {
				return badRequest(c, "invalid "+HeaderRequestID+" format")
			}

			reqAt, err := parseAxRequestAt(req.Header.Get(HeaderRequestAt))
			if err != nil {
				return badRequest(c, err.Error())
			}
			now := nowUTC()
			if reqAt.Before(now.Add(-maxClockSkew)) || reqAt.After(now.Add(maxClockSkew)) {
				return badRequest(c, HeaderRequestAt+" too skewed")
			}

			memberID := strings.TrimSpace(req.Header.Get(HeaderMemberID))
			if memberID == "" {
				return badRequest(c, "missing "+HeaderMemberID)
			}
			if !reHex32.MatchString(memberID) {
				return badRequest(c, "invalid "+HeaderMemberID)
			}

			var body []byte
			if req.Body != nil {
				body, _ = io.ReadAll(req.Body)
			}
			req.Body = io.NopCloser(bytes.NewBuffer(body))
			bhash := bodyHash(body)

			key := buildKey(method, req.URL.Path, memberID, reqID)
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()

			entry := idempEntry{
				InProgress:  true,
				BodySHA256:  bhash,
				RequestID:   reqID,
				RequestAtMS: reqAt.UnixMilli(),
				CreatedAt:   now,
			}
			ok, err := provisionalSet(ctx, rdb, key, entry)
			if err != nil {
				log.Error("idempotency store unavailable", zap.String("key", key), zap.Error(err))
				return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "idempotency store unavailable"})
			}
			if !ok {
				cur, errLoad := loadEntry(ctx, rdb, key)
				if errLoad != nil {
					log.Warn("idempotency entry unreadable", zap.String("key", key), zap.Error(errLoad))
				}
				if cur.BodySHA256 != "" && cur.BodySHA256 != bhash {
					return c.JSON(http.StatusConflict, map[string]string{"error": HeaderRequestID + " reused with different body"})
				}
				if !cur.InProgress && cur.Code != 0 && len(cur.Body) > 0 {
					c.Response().Header().Set(HeaderReplayed, "true")
					return c.Blob(cur.Code, echo.MIMEApplicationJSON, cur.Body)
				}
				return c.JSON(http.StatusConflict, map[string]string{"error": "request is already in progress"})
			}

			rec := &respRecorder{w: c.Response().Writer, buf: &bytes.Buffer{}, code: http.StatusOK}
			c.Response().Writer = rec
			if err := next(c); err != nil {
				c.Error(err)
			}

			// the request context may already be cancelled here
			storeCtx, storeCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer storeCancel()

			if rec.code >= http.StatusInternalServerError {
				if err := rdb.Del(storeCtx, key).Err(); err != nil {
					log.Warn("idempotency release failed", zap.String("key", key), zap.Error(err))
				}
				return nil
			}
			final := idempEntry{
				Code:        rec.code,
				Body:        rec.buf.Bytes(),
				BodySHA256:  bhash,
				RequestID:   reqID,
				RequestAtMS: reqAt.UnixMilli(),
				CreatedAt:   nowUTC(),
			}
			if err := saveFinal(storeCtx, rdb, key, final, ttl); err != nil {
				log.Warn("idempotency save failed", zap.String("key", key), zap.Error(err))
			}
			return nil
		}
	}
}
