package api

import (
	"errors"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"contentdesk/internal/authz"
	"contentdesk/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

const (
	HeaderRequestID = "X-Request-ID"
	ctxRequestID    = "request_id"
)

// ulid-генератор с монотонной энтропией; ulid.Monotonic не потокобезопасен.
type idSource struct {
	mu      sync.Mutex
	entropy io.Reader
}

func newIDSource() *idSource {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &idSource{entropy: ulid.Monotonic(src, 0)}
}

func (s *idSource) next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// RequestID берёт X-Request-ID клиента или выдаёт новый ULID.
func RequestID() gin.HandlerFunc {
	ids := newIDSource()
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if id == "" {
			id = ids.next()
		}
		c.Set(ctxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(ctxRequestID)
}

// AccessLog пишет одну запись на запрос.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := logger.WithFields(logrus.Fields{
			"request_id": requestID(c),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"route":      c.FullPath(),
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		})
		switch {
		case len(c.Errors) > 0:
			entry.Error(c.Errors.String())
		case status >= http.StatusInternalServerError:
			entry.Error("request failed")
		default:
			entry.Info("request")
		}
	}
}

// Recovery превращает панику обработчика в 500.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, rec any) {
		logger.WithField("request_id", requestID(c)).Errorf("panic: %v", rec)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	})
}

// CORS разрешает любой origin без credentials; preflight отвечает 204.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestHeaders := c.GetHeader("Access-Control-Request-Headers")
		requestMethod := c.GetHeader("Access-Control-Request-Method")

		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "false")
		c.Header("Access-Control-Allow-Headers", coalesce(requestHeaders, "Authorization, Content-Type, Accept, Origin, X-Request-ID"))
		c.Header("Access-Control-Allow-Methods", coalesce(requestMethod, "GET, POST, OPTIONS"))
		c.Header("Access-Control-Max-Age", "600")
		c.Header("Access-Control-Expose-Headers", "Content-Length, Content-Type, X-Request-ID")
		if requestMethod != "" || requestHeaders != "" {
			c.Header("Vary", "Origin, Access-Control-Request-Method, Access-Control-Request-Headers")
		} else {
			c.Header("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func coalesce(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Auth кладёт в контекст запроса принципала из Bearer-токена.
// Без tokens (секрет не задан) каждый запрос идёт как анонимный admin.
func Auth(tokens *authz.Service) gin.HandlerFunc {
	if tokens == nil {
		logger.Warnf("auth: no token secret configured, every request runs as admin")
		anonymous := &authz.Principal{Subject: "anonymous", Roles: []string{authz.RoleAdmin}}
		return func(c *gin.Context) {
			c.Request = c.Request.WithContext(authz.WithPrincipal(c.Request.Context(), anonymous))
			c.Next()
		}
	}
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		p, err := tokens.Parse(token)
		if err != nil {
			if !errors.Is(err, authz.ErrInvalidToken) {
				_ = c.Error(err)
			}
			logger.WithError(err).WithField("request_id", requestID(c)).Debug("token rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}
		c.Request = c.Request.WithContext(authz.WithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}
