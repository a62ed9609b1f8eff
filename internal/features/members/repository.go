// Package members — repository.go хранит имена в памяти процесса.
// Записи живут до перезапуска; свежесть проверяет Service.
package members

import "sync"

// Kind — пространство ID.
type Kind int

const (
	KindUser Kind = iota
	KindChannel
)

type key struct {
	kind Kind
	id   string
}

// Repository — потокобезопасный кэш имён.
type Repository struct {
	mu      sync.RWMutex
	entries map[key]Entry
}

// NewRepository создаёт пустой кэш.
func NewRepository() *Repository {
	return &Repository{entries: make(map[key]Entry)}
}

// Get возвращает запись, если она есть.
func (r *Repository) Get(kind Kind, id string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[key{kind, id}]
	return e, ok
}

// Put сохраняет запись.
func (r *Repository) Put(kind Kind, e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key{kind, e.ID}] = e
}

// Delete удаляет запись.
func (r *Repository) Delete(kind Kind, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key{kind, id})
}

// Len возвращает число записей.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
