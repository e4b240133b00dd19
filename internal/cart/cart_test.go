package cart

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddReplacesQuantity(t *testing.T) {
	s := NewStore(nil)

	s.Add(Item{ProductID: "crystal-1", Name: "Rose Quartz", Price: 499, Quantity: 2})
	s.Add(Item{ProductID: "incense-7", Name: "Sandalwood", Price: 120, Quantity: 1})

	// Re-adding sets the absolute quantity, it does not increment.
	s.Add(Item{ProductID: "crystal-1", Name: "Rose Quartz", Price: 499, Quantity: 5})

	items := s.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "crystal-1", items[0].ProductID)
	assert.Equal(t, 5, items[0].Quantity)
	assert.Equal(t, 6, s.TotalItems())
}

func TestUpdateQuantityFloorsAtOne(t *testing.T) {
	s := NewStore(nil)
	s.Add(Item{ProductID: "mala-3", Quantity: 4})

	s.UpdateQuantity("mala-3", 0)
	assert.Equal(t, 1, s.Items()[0].Quantity)

	s.UpdateQuantity("mala-3", -2)
	assert.Equal(t, 1, s.Items()[0].Quantity)

	// Unknown product is a no-op.
	s.UpdateQuantity("ghost", 9)
	assert.Len(t, s.Items(), 1)
}

func TestRemoveAndClear(t *testing.T) {
	s := NewStore(nil)
	s.Add(Item{ProductID: "a", Quantity: 1})
	s.Add(Item{ProductID: "b", Quantity: 1})

	s.Remove("a")
	items := s.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "b", items[0].ProductID)

	s.Clear()
	assert.Empty(t, s.Items())
	assert.Equal(t, 0, s.TotalItems())
}

func TestChangeHook(t *testing.T) {
	s := NewStore(nil)
	calls := 0
	s.SetOnChange(func() { calls++ })

	s.Add(Item{ProductID: "a", Quantity: 1})
	s.UpdateQuantity("a", 3)
	s.Remove("a")
	s.Clear()
	assert.Equal(t, 4, calls)

	// Hydration must not fire the hook.
	s.ReplaceAll([]Item{{ProductID: "b", Quantity: 2}})
	assert.Equal(t, 4, calls)
	assert.Equal(t, 2, s.TotalItems())
}

func TestFilePersisterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cart.json")
	p := FilePersister{Path: path}

	s := NewStore(p)
	s.Add(Item{ProductID: "crystal-1", Name: "Rose Quartz", Price: 499, Quantity: 2})

	// A fresh store against the same file sees the persisted cart.
	reloaded := NewStore(p)
	items := reloaded.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "crystal-1", items[0].ProductID)
	assert.Equal(t, 2, items[0].Quantity)
}

func TestFilePersisterMissingFile(t *testing.T) {
	p := FilePersister{Path: filepath.Join(t.TempDir(), "nope.json")}
	items, err := p.Load()
	require.NoError(t, err)
	assert.Nil(t, items)
}
