package health

import "sync/atomic"

// Readiness 就绪状态聚合：注册表与 HTTP 服务均就绪才算就绪
type Readiness struct {
	registryReady atomic.Bool
	httpReady     atomic.Bool
}

func New() *Readiness { return &Readiness{} }

func (r *Readiness) SetRegistryReady(v bool) { r.registryReady.Store(v) }
func (r *Readiness) SetHTTPReady(v bool)     { r.httpReady.Store(v) }

// Ready 总体就绪
func (r *Readiness) Ready() bool {
	return r.registryReady.Load() && r.httpReady.Load()
}
