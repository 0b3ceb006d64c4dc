package moduletracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binrts/binrts/internal/errs"
)

func TestOnModuleLoadAssignsMonotonicIDs(t *testing.T) {
	tr := New(nil)

	e1, ok := tr.OnModuleLoad(Descriptor{Name: "a", Start: 0x1000, End: 0x2000})
	require.True(t, ok)
	e2, ok := tr.OnModuleLoad(Descriptor{Name: "b", Start: 0x3000, End: 0x4000})
	require.True(t, ok)

	assert.Equal(t, ID(0), e1.ID)
	assert.Equal(t, ID(1), e2.ID)
}

func TestLookupFindsOwningModule(t *testing.T) {
	tr := New(nil)
	tr.OnModuleLoad(Descriptor{Name: "a", Start: 0x1000, End: 0x2000})

	res, err := tr.Lookup(0x1800)
	require.NoError(t, err)
	assert.Equal(t, "a", res.ModuleName)
	assert.Equal(t, uint64(0x1000), res.Base)
}

func TestLookupMiss(t *testing.T) {
	tr := New(nil)
	tr.OnModuleLoad(Descriptor{Name: "a", Start: 0x1000, End: 0x2000})

	_, err := tr.Lookup(0x5000)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUnloadHidesModule(t *testing.T) {
	tr := New(nil)
	tr.OnModuleLoad(Descriptor{Name: "a", Start: 0x1000, End: 0x2000})
	tr.OnModuleUnload(0x1000)

	_, err := tr.Lookup(0x1800)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestReloadRebindsToSameID(t *testing.T) {
	tr := New(nil)
	desc := Descriptor{Name: "a", Start: 0x10000000, End: 0x10010000, EntryPoint: 0x10000100}
	e1, _ := tr.OnModuleLoad(desc)
	tr.OnModuleUnload(desc.Start)

	e2, ok := tr.OnModuleLoad(desc)
	require.True(t, ok)
	assert.Equal(t, e1.ID, e2.ID)
	assert.False(t, e2.Unloaded)
}

func TestReloadWithDifferentIdentityGetsNewID(t *testing.T) {
	tr := New(nil)
	desc := Descriptor{Name: "a", Start: 0x10000000, End: 0x10010000, EntryPoint: 0x10000100}
	e1, _ := tr.OnModuleLoad(desc)
	tr.OnModuleUnload(desc.Start)

	desc2 := desc
	desc2.Checksum = 1
	e2, ok := tr.OnModuleLoad(desc2)
	require.True(t, ok)
	assert.NotEqual(t, e1.ID, e2.ID)
}

func TestAllowListRejectsUnlistedModules(t *testing.T) {
	tr := New([]string{"allowed"})

	_, ok := tr.OnModuleLoad(Descriptor{Name: "other", Start: 0x1000, End: 0x2000})
	assert.False(t, ok)

	e, ok := tr.OnModuleLoad(Descriptor{Name: "allowed", Start: 0x3000, End: 0x4000})
	assert.True(t, ok)
	assert.Equal(t, "allowed", e.Desc.Name)
}

func TestLookupRepeatedlyWarmsCaches(t *testing.T) {
	tr := New(nil)
	tr.OnModuleLoad(Descriptor{Name: "a", Start: 0x1000, End: 0x2000})

	for i := 0; i < 10; i++ {
		res, err := tr.Lookup(0x1500)
		require.NoError(t, err)
		assert.Equal(t, "a", res.ModuleName)
	}
}
