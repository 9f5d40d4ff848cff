package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/iot-node/internal/nodeconfig"
	"github.com/taoyao-code/iot-node/internal/registry"
)

// AdminHandler 运维接口：查看节点、修改下发配置
type AdminHandler struct {
	reg    registry.Registry
	logger *zap.Logger
	now    func() time.Time
}

// NewAdminHandler 创建运维接口处理器
func NewAdminHandler(reg registry.Registry, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{reg: reg, logger: logger, now: time.Now}
}

// ListNodes GET /api/admin/nodes
func (h *AdminHandler) ListNodes(c *gin.Context) {
	nodes, err := h.reg.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"nodes": nodes, "count": len(nodes)})
}

// GetNode GET /api/admin/nodes/:id
func (h *AdminHandler) GetNode(c *gin.Context) {
	node, err := h.reg.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, registry.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "node not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, node)
}

// UpdateConfig PUT /api/admin/nodes/:id/config
// 节点在下一次拉取或上传时收到新配置
func (h *AdminHandler) UpdateConfig(c *gin.Context) {
	id := c.Param("id")
	var tmpl registry.Template
	if err := c.ShouldBindJSON(&tmpl); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var unknown []string
	for _, set := range []nodeconfig.TagSet{nodeconfig.NewTagSet(tmpl.ActiveSensors...), nodeconfig.NewTagSet(tmpl.ActiveFeatures...)} {
		for _, t := range set.Unknown() {
			unknown = append(unknown, string(t))
		}
	}

	node, err := h.reg.UpdateTemplate(c.Request.Context(), id, tmpl, h.now())
	if errors.Is(err, registry.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "node not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.logger.Info("node config updated", zap.String("node", id), zap.Strings("unknown_tags", unknown))
	c.JSON(http.StatusOK, gin.H{"node": node, "unknownTags": unknown})
}
