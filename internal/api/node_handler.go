package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/taoyao-code/iot-node/internal/coordinator"
	"github.com/taoyao-code/iot-node/internal/metrics"
	"github.com/taoyao-code/iot-node/internal/nodeconfig"
	"github.com/taoyao-code/iot-node/internal/registry"
)

// NodeHandler 节点协议接口：拉取/注册配置、上传测量值
type NodeHandler struct {
	reg      registry.Registry
	defaults registry.Template
	metrics  *metrics.CoordinatorMetrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewNodeHandler 创建节点接口处理器；defaults 为新注册节点的初始配置
func NewNodeHandler(reg registry.Registry, defaults registry.Template, m *metrics.CoordinatorMetrics, logger *zap.Logger) *NodeHandler {
	if m == nil {
		m = metrics.NewCoordinatorMetrics(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NodeHandler{reg: reg, defaults: defaults, metrics: m, logger: logger, now: time.Now}
}

// GetConfig GET /api/node/:id/config
// 未注册返回 404，节点随后以空 POST 注册
func (h *NodeHandler) GetConfig(c *gin.Context) {
	id := c.Param("id")
	node, err := h.reg.Touch(c.Request.Context(), id, h.now())
	if errors.Is(err, registry.ErrNotFound) {
		h.metrics.ConfigServedTotal.WithLabelValues("not_found").Inc()
		c.JSON(http.StatusNotFound, gin.H{"error": "node not registered"})
		return
	}
	if err != nil {
		h.fail(c, "touch node", id, err)
		return
	}
	h.metrics.ConfigServedTotal.WithLabelValues("ok").Inc()
	h.writeConfig(c, node)
}

// Register POST /api/node/:id/config，幂等
func (h *NodeHandler) Register(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()
	node, created, err := h.reg.Register(ctx, id, h.defaults, h.now())
	if err != nil {
		h.fail(c, "register node", id, err)
		return
	}
	if created {
		h.metrics.RegistrationTotal.Inc()
		h.logger.Info("node registered", zap.String("node", id), zap.Int64("data_id", node.DataID))
		if n, err := h.reg.Count(ctx); err == nil {
			h.metrics.NodesGauge.Set(float64(n))
		}
	} else if node, err = h.reg.Touch(ctx, id, h.now()); err != nil {
		h.fail(c, "touch node", id, err)
		return
	}
	h.writeConfig(c, node)
}

// PostValues POST /api/node/:id/values
// 未注册节点返回 500：节点据此认为自己已被迁移并重新拉取配置
func (h *NodeHandler) PostValues(c *gin.Context) {
	id := c.Param("id")
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, coordinator.MaxBodyBytes+1))
	if err != nil || len(body) > coordinator.MaxBodyBytes {
		h.metrics.ValuesTotal.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "body too large or unreadable"})
		return
	}
	var payload nodeconfig.ValuesPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.metrics.ValuesTotal.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed values payload"})
		return
	}

	node, err := h.reg.RecordValues(c.Request.Context(), id, payload.Values, h.now())
	if errors.Is(err, registry.ErrNotFound) {
		h.metrics.ValuesTotal.WithLabelValues("unknown_node").Inc()
		h.logger.Warn("values from unknown node", zap.String("node", id))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unknown node"})
		return
	}
	if err != nil {
		h.fail(c, "record values", id, err)
		return
	}
	h.metrics.ValuesTotal.WithLabelValues("ok").Inc()
	h.logger.Debug("values received", zap.String("node", id), zap.Int("count", len(payload.Values)))
	h.writeConfig(c, node)
}

func (h *NodeHandler) writeConfig(c *gin.Context, node *registry.Node) {
	b, err := node.ConfigJSON()
	if err != nil {
		h.fail(c, "encode config", node.ID, err)
		return
	}
	c.Data(http.StatusOK, "application/json", b)
}

func (h *NodeHandler) fail(c *gin.Context, op, id string, err error) {
	h.logger.Error(op+" failed", zap.String("node", id), zap.Error(err))
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": op + " failed"})
}
