package registry

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRegistry 进程内注册表
type MemoryRegistry struct {
	mu     sync.RWMutex
	nodes  map[string]*Node
	nextID int64
}

// NewMemoryRegistry 创建内存注册表
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{nodes: make(map[string]*Node)}
}

func (r *MemoryRegistry) Register(_ context.Context, id string, tmpl Template, at time.Time) (*Node, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.nodes[id]; ok {
		return clone(n), false, nil
	}
	r.nextID++
	n := &Node{
		ID:        id,
		DataID:    r.nextID,
		Template:  copyTemplate(tmpl.Normalize()),
		LastSeen:  at,
		CreatedAt: at,
		UpdatedAt: at,
	}
	r.nodes[id] = n
	return clone(n), true, nil
}

func (r *MemoryRegistry) Get(_ context.Context, id string) (*Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(n), nil
}

func (r *MemoryRegistry) Touch(_ context.Context, id string, at time.Time) (*Node, error) {
	return r.update(id, func(n *Node) { n.LastSeen = at })
}

func (r *MemoryRegistry) RecordValues(_ context.Context, id string, values map[string]string, at time.Time) (*Node, error) {
	return r.update(id, func(n *Node) {
		n.LastSeen = at
		n.LastValues = make(map[string]string, len(values))
		for k, v := range values {
			n.LastValues[k] = v
		}
	})
}

func (r *MemoryRegistry) UpdateTemplate(_ context.Context, id string, tmpl Template, at time.Time) (*Node, error) {
	return r.update(id, func(n *Node) {
		n.Template = copyTemplate(tmpl.Normalize())
		n.UpdatedAt = at
	})
}

func (r *MemoryRegistry) List(context.Context) ([]*Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Node, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, clone(n))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DataID < out[j].DataID })
	return out, nil
}

func (r *MemoryRegistry) Count(context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.nodes)), nil
}

func (r *MemoryRegistry) update(id string, fn func(*Node)) (*Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[id]
	if !ok {
		return nil, ErrNotFound
	}
	fn(n)
	return clone(n), nil
}

func copyTemplate(t Template) Template {
	t.ActiveSensors = append([]string{}, t.ActiveSensors...)
	t.ActiveFeatures = append([]string{}, t.ActiveFeatures...)
	return t
}

func clone(n *Node) *Node {
	c := *n
	c.Template = copyTemplate(n.Template)
	if n.LastValues != nil {
		c.LastValues = make(map[string]string, len(n.LastValues))
		for k, v := range n.LastValues {
			c.LastValues[k] = v
		}
	}
	return &c
}
