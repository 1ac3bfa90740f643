package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newTestLimiter(clock *time.Time) *SyncRateLimiter {
	l := NewSyncRateLimiter()
	l.now = func() time.Time { return *clock }
	return l
}

func TestSyncRateLimiter_Check(t *testing.T) {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newTestLimiter(&clock)
	key := ListingSyncKey(7, SyncTypeListing)

	assert.True(t, l.Check(key, time.Minute).Allowed)

	clock = clock.Add(20 * time.Second)
	res := l.Check(key, time.Minute)
	assert.False(t, res.Allowed)
	assert.Equal(t, 40*time.Second, res.RetryAfter)

	// 其他刊登不受影响
	assert.True(t, l.Check(ListingSyncKey(8, SyncTypeListing), time.Minute).Allowed)

	clock = clock.Add(time.Minute)
	assert.True(t, l.Check(key, time.Minute).Allowed)
}

func TestSyncRateLimiter_CheckOnlyAndMark(t *testing.T) {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newTestLimiter(&clock)
	key := GlobalSyncKey(SyncTypeStock)

	assert.True(t, l.CheckOnly(key, time.Minute).Allowed)
	assert.True(t, l.CheckOnly(key, time.Minute).Allowed)

	l.MarkExecuted(key)
	assert.False(t, l.CheckOnly(key, time.Minute).Allowed)

	l.Reset(key)
	assert.True(t, l.CheckOnly(key, time.Minute).Allowed)
}

func TestGetInterval(t *testing.T) {
	assert.Equal(t, 10*time.Minute, GetInterval(SyncTypeStock))
	assert.Equal(t, 5*time.Minute, GetInterval(SyncType("unknown")))
}

func TestFormatRetryMessage(t *testing.T) {
	assert.Equal(t, "同步冷却中，请 30 秒后重试", formatRetryMessage(30*time.Second))
	assert.Equal(t, "同步冷却中，请 2 分钟后重试", formatRetryMessage(2*time.Minute))
	assert.Equal(t, "同步冷却中，请 1 分 5 秒后重试", formatRetryMessage(65*time.Second))
}

func TestSyncRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newTestLimiter(&clock)

	status := http.StatusOK
	r := gin.New()
	r.POST("/listings/:id/upload", SyncRateLimit(l, SyncTypeListing, time.Minute), func(c *gin.Context) {
		c.Status(status)
	})
	r.POST("/sync/stock", SyncRateLimit(l, SyncTypeStock, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	call := func(path string) int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))
		return w.Code
	}

	assert.Equal(t, http.StatusOK, call("/listings/1/upload"))
	assert.Equal(t, http.StatusTooManyRequests, call("/listings/1/upload"))
	assert.Equal(t, http.StatusOK, call("/listings/2/upload"))
	assert.Equal(t, http.StatusBadRequest, call("/listings/x/upload"))

	// 失败的请求释放冷却
	status = http.StatusConflict
	assert.Equal(t, http.StatusConflict, call("/listings/3/upload"))
	assert.Equal(t, http.StatusConflict, call("/listings/3/upload"))

	assert.Equal(t, http.StatusOK, call("/sync/stock"))
	assert.Equal(t, http.StatusTooManyRequests, call("/sync/stock"))
}
