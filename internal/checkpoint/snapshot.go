package checkpoint

import (
	"maps"
	"slices"
	"sync"
)

// Kind 快照类型标记，加载时类型不符即丢弃
type Kind string

const (
	KindIDSet  Kind = "id_set"
	KindURLMap Kind = "url_map"
)

// IDSet 并发安全的id集合（已处理的appid、种子玩家id等）
type IDSet struct {
	mu  sync.RWMutex
	ids map[string]struct{}
}

func NewIDSet(ids ...string) *IDSet {
	s := &IDSet{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

// Add 返回 id 是否为新加入
func (s *IDSet) Add(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	return true
}

func (s *IDSet) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

func (s *IDSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ids)
}

// Slice 排序后的拷贝
func (s *IDSet) Slice() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.ids))
}

// URLMap 并发安全的 id → 详情页地址 映射
type URLMap struct {
	mu   sync.RWMutex
	urls map[string]string
}

func NewURLMap() *URLMap {
	return &URLMap{urls: map[string]string{}}
}

func (m *URLMap) Set(id, url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.urls[id] = url
}

func (m *URLMap) Get(id string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.urls[id]
	return u, ok
}

func (m *URLMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.urls)
}

// Copy 当前内容的拷贝
func (m *URLMap) Copy() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.urls)
}

// snapshot 落盘格式
type snapshot struct {
	Kind Kind              `json:"kind"`
	IDs  []string          `json:"ids,omitempty"`
	URLs map[string]string `json:"urls,omitempty"`
}
