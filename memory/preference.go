package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// PreferenceEntry is one stored preference value with its write time.
type PreferenceEntry struct {
	Value     any       `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PreferenceStore is a durable key-value map per namespace for user
// preferences (tone, devices, communication style).
//
// Preferences are written only through explicit Put calls. There is no
// automatic inference of preferences from conversation text; callers must
// not synthesize preference writes from free text. Downstream components
// rely on this to treat every entry as something the user actually asked
// for.
type PreferenceStore struct {
	path string
	mu   sync.Mutex
	data map[string]map[string]PreferenceEntry
	now  func() time.Time
}

// PreferenceOption configures a PreferenceStore.
type PreferenceOption func(*PreferenceStore)

// WithPreferenceClock overrides the store's time source.
func WithPreferenceClock(now func() time.Time) PreferenceOption {
	return func(p *PreferenceStore) {
		p.now = now
	}
}

// OpenPreferenceStore loads the preference document at path, starting
// empty if the file does not exist yet.
func OpenPreferenceStore(path string, opts ...PreferenceOption) (*PreferenceStore, error) {
	p := &PreferenceStore{
		path: path,
		data: make(map[string]map[string]PreferenceEntry),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read preferences: %w", err)
	}
	if err := json.Unmarshal(raw, &p.data); err != nil {
		return nil, fmt.Errorf("parse preferences %s: %w", path, err)
	}
	return p, nil
}

// Get returns the value for (namespace, key). Reads never create entries.
func (p *PreferenceStore) Get(namespace, key string) (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ns, ok := p.data[namespace]
	if !ok {
		return nil, false
	}
	entry, ok := ns[key]
	if !ok {
		return nil, false
	}
	return entry.Value, true
}

// GetAll returns a copy of every preference in a namespace.
func (p *PreferenceStore) GetAll(namespace string) map[string]PreferenceEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]PreferenceEntry, len(p.data[namespace]))
	for k, v := range p.data[namespace] {
		out[k] = v
	}
	return out
}

// Put stores a value under (namespace, key), stamping updated_at. The
// write is flushed to disk before Put returns; last write wins.
func (p *PreferenceStore) Put(namespace, key string, value any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.data[namespace] == nil {
		p.data[namespace] = make(map[string]PreferenceEntry)
	}
	p.data[namespace][key] = PreferenceEntry{
		Value:     value,
		UpdatedAt: p.now().UTC(),
	}
	return p.save()
}

// Delete removes (namespace, key) entirely. No tombstone is kept.
func (p *PreferenceStore) Delete(namespace, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ns, ok := p.data[namespace]
	if !ok {
		return nil
	}
	if _, ok := ns[key]; !ok {
		return nil
	}
	delete(ns, key)
	if len(ns) == 0 {
		delete(p.data, namespace)
	}
	return p.save()
}

// save writes the whole document and syncs it to disk. Caller holds the
// lock.
func (p *PreferenceStore) save() error {
	if dir := filepath.Dir(p.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create preferences dir: %w", err)
		}
	}

	data, err := json.MarshalIndent(p.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}

	f, err := os.Create(p.path)
	if err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write preferences: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync preferences: %w", err)
	}
	return f.Close()
}
