package cart

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Persister is the durable local storage behind the cart store.
type Persister interface {
	Load() ([]Item, error)
	Save(items []Item) error
}

// NoopPersister keeps nothing; carts live only as long as the process.
type NoopPersister struct{}

func (NoopPersister) Load() ([]Item, error) { return nil, nil }
func (NoopPersister) Save([]Item) error     { return nil }

// FilePersister stores the cart as a JSON file, written atomically via a
// temp file and rename.
type FilePersister struct {
	Path string
}

func (p FilePersister) Load() ([]Item, error) {
	raw, err := os.ReadFile(p.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var items []Item
	if err := json.Unmarshal(raw, &items); err != nil {
		// A corrupt file is treated as an empty cart; the next server
		// hydration restores the real state.
		return nil, nil
	}
	return items, nil
}

func (p FilePersister) Save(items []Item) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	tmp := p.Path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(p.Path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, p.Path)
}
