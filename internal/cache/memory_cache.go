package cache

import (
	"container/list"
	"sync"
)

type memoryItem struct {
	id   string
	meta Metadata
	data []byte
}

// MemoryStore keeps entries in memory and evicts the least recently used
// one once maxEntries is reached.
type MemoryStore struct {
	mu         sync.Mutex
	maxEntries int
	items      map[string]*list.Element
	lruList    *list.List
}

// NewMemoryStore creates a new in-memory LRU store
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &MemoryStore{
		maxEntries: maxEntries,
		items:      make(map[string]*list.Element),
		lruList:    list.New(),
	}
}

func (s *MemoryStore) Lookup(key string) (*Entry, error) {
	id := EntryID(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}

	s.lruList.MoveToFront(elem)
	item := elem.Value.(*memoryItem)
	return loadedEntry(s, id, item.meta, item.data), nil
}

func (s *MemoryStore) Create() *Entry {
	return newEntry(s)
}

func (s *MemoryStore) persist(id string, meta Metadata, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.items[id]; ok {
		item := elem.Value.(*memoryItem)
		item.meta = meta
		item.data = data
		s.lruList.MoveToFront(elem)
		return nil
	}

	if s.lruList.Len() >= s.maxEntries {
		oldest := s.lruList.Back()
		if oldest != nil {
			delete(s.items, oldest.Value.(*memoryItem).id)
			s.lruList.Remove(oldest)
		}
	}

	elem := s.lruList.PushFront(&memoryItem{id: id, meta: meta, data: data})
	s.items[id] = elem
	return nil
}

func (s *MemoryStore) remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if elem, ok := s.items[id]; ok {
		delete(s.items, id)
		s.lruList.Remove(elem)
	}
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[string]*list.Element)
	s.lruList = list.New()
	return nil
}
