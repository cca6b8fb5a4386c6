// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

package idtable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEntry struct {
	eid EntryID
	s   string
}

func (t *testEntry) SetID(id EntryID) {
	t.eid = id
}

func TestOps(t *testing.T) {
	idt := New()

	checkGetVal := func(id EntryID, s string) {
		entry, err := idt.GetEntry(id)
		require.NoError(t, err, "id=%s", id)
		val, ok := entry.(*testEntry)
		require.True(t, ok, "unexpected type %T", entry)
		assert.Equal(t, s, val.s)
	}

	assert.Equal(t, 0, idt.Len())
	e0 := testEntry{eid: UninitializedEntryID, s: "e0"}
	id0 := idt.AddEntry(&e0)
	assert.Equal(t, id0, e0.eid)
	checkGetVal(e0.eid, "e0")

	e1 := testEntry{eid: UninitializedEntryID, s: "e1"}
	idt.AddEntry(&e1)
	assert.Equal(t, 2, idt.Len())
	checkGetVal(e1.eid, "e1")
	checkGetVal(e0.eid, "e0")

	removed, err := idt.RemoveEntry(e0.eid)
	require.NoError(t, err)
	assert.Same(t, &e0, removed)
	assert.Equal(t, 1, idt.Len())
	_, err = idt.GetEntry(e0.eid)
	assert.Error(t, err)
	_, err = idt.RemoveEntry(e0.eid)
	assert.Error(t, err, "double remove must fail")

	e2 := testEntry{eid: UninitializedEntryID, s: "e2"}
	idt.AddEntry(&e2)
	assert.Equal(t, 2, idt.Len())
	checkGetVal(e1.eid, "e1")
	checkGetVal(e2.eid, "e2")
}

func TestStaleGeneration(t *testing.T) {
	idt := New()
	a := &testEntry{s: "a"}
	idt.AddEntry(a)
	stale := a.eid
	_, err := idt.RemoveEntry(stale)
	require.NoError(t, err)

	b := &testEntry{s: "b"}
	idt.AddEntry(b)
	assert.Equal(t, stale.Slot, b.eid.Slot, "slot is re-used")
	assert.NotEqual(t, stale, b.eid, "generation differs")

	_, err = idt.GetEntry(stale)
	assert.Error(t, err)
	entry, err := idt.GetEntry(b.eid)
	require.NoError(t, err)
	assert.Same(t, b, entry)
}

func TestForEach(t *testing.T) {
	idt := New()
	entries := []*testEntry{{s: "x"}, {s: "y"}, {s: "z"}}
	for _, e := range entries {
		idt.AddEntry(e)
	}
	_, err := idt.RemoveEntry(entries[1].eid)
	require.NoError(t, err)

	var seen []string
	idt.ForEach(func(id EntryID, e Entry) {
		te := e.(*testEntry)
		assert.Equal(t, te.eid, id)
		seen = append(seen, te.s)
	})
	assert.Equal(t, []string{"x", "z"}, seen)
	_, err = idt.GetEntry(EntryID{Slot: 42})
	assert.Error(t, err)
	_, err = idt.GetEntry(UninitializedEntryID)
	assert.Error(t, err)
}
