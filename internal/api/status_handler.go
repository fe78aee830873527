package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"GameStatsSync/internal/model"
	"GameStatsSync/internal/service"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// StatusHandler 采集运行期间的只读调试接口
type StatusHandler struct {
	status *service.Status
	logger *logrus.Logger
}

func NewStatusHandler(status *service.Status, logger *logrus.Logger) *StatusHandler {
	return &StatusHandler{status: status, logger: logger}
}

// GetStatus 当前任务的状态、进度与各表计数
// GET /status
func (h *StatusHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.status.Snapshot())
}

// ListCrawls 各平台支持的采集任务
// GET /crawls?platform=steam
func (h *StatusHandler) ListCrawls(c *gin.Context) {
	if name := c.Query("platform"); name != "" {
		p, err := model.ParsePlatform(name)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{string(p): service.Crawls(p)})
		return
	}
	result := gin.H{}
	for _, p := range model.Platforms {
		result[string(p)] = service.Crawls(p)
	}
	c.JSON(http.StatusOK, result)
}

// NewRouter 注册 pprof 与状态接口
func NewRouter(mode string, h *StatusHandler) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	pprof.Register(r)
	r.GET("/status", h.GetStatus)
	r.GET("/crawls", h.ListCrawls)
	return r
}

// Serve 在后台启动调试服务，ctx 结束时关闭
func Serve(ctx context.Context, addr string, handler http.Handler, logger *logrus.Logger) {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.WithField("addr", addr).Info("调试服务启动")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("调试服务异常退出")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("关闭调试服务失败")
		}
	}()
}
