// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Tetragon

package idtable

import (
	"fmt"
)

// idtable implements a generation-checked id table. Slots are re-used once an
// entry is removed, but every re-use bumps the slot generation so that a stale
// EntryID never resolves to the new occupant. Any required synchronization
// needs to happen on the caller.

var (
	// UninitializedEntryID provides an invalid value for EntryID (since its default value is valid)
	UninitializedEntryID = EntryID{Slot: -1}
)

// EntryID is a table entry identifier. Two ids are equal only if they refer to
// the same slot in the same generation.
type EntryID struct {
	Slot int
	Gen  uint32
}

func (id EntryID) String() string {
	return fmt.Sprintf("%d.%d", id.Slot, id.Gen)
}

// Entry is an interface for table entries
type Entry interface {
	// SetID will set the id of an entry on a table when AddEntry() is
	// called. The id stays with the entry after removal; it just stops
	// resolving.
	SetID(id EntryID)
}

type slot struct {
	entry Entry
	gen   uint32
}

// Table is the id table
type Table struct {
	slots []slot
	free  []int
	live  int
}

// New allocates a new id table
func New() *Table {
	return &Table{}
}

// AddEntry will add an entry to the table. The SetID() method will be called
// with the id for the entry, which is also returned.
func (t *Table) AddEntry(entry Entry) EntryID {
	var idx int
	if n := len(t.free); n > 0 {
		idx = t.free[n-1]
		t.free = t.free[:n-1]
		t.slots[idx].gen++
	} else {
		idx = len(t.slots)
		t.slots = append(t.slots, slot{})
	}
	t.slots[idx].entry = entry
	t.live++
	id := EntryID{Slot: idx, Gen: t.slots[idx].gen}
	entry.SetID(id)
	return id
}

func (t *Table) getValidEntryIndex(id EntryID) (int, error) {
	xid := id.Slot
	if xid >= len(t.slots) || xid < 0 {
		return -1, fmt.Errorf("invalid id (ID=%s)", id)
	}
	s := &t.slots[xid]
	if s.entry == nil {
		return -1, fmt.Errorf("invalid id (ID=%s/empty slot)", id)
	}
	if s.gen != id.Gen {
		return -1, fmt.Errorf("invalid id (ID=%s/stale generation, current %d)", id, s.gen)
	}
	return xid, nil
}

// GetEntry returns an entry or an error
func (t *Table) GetEntry(id EntryID) (Entry, error) {
	idx, err := t.getValidEntryIndex(id)
	if err != nil {
		return nil, err
	}
	return t.slots[idx].entry, nil
}

// RemoveEntry removes an entry and returns it (or an error if entry does not exist)
func (t *Table) RemoveEntry(id EntryID) (Entry, error) {
	idx, err := t.getValidEntryIndex(id)
	if err != nil {
		return nil, err
	}
	entry := t.slots[idx].entry
	t.slots[idx].entry = nil
	t.free = append(t.free, idx)
	t.live--
	return entry, nil
}

// ForEach calls fn for every live entry, in slot order.
func (t *Table) ForEach(fn func(EntryID, Entry)) {
	for i := range t.slots {
		if t.slots[i].entry != nil {
			fn(EntryID{Slot: i, Gen: t.slots[i].gen}, t.slots[i].entry)
		}
	}
}

// Len returns the number of entries
func (t *Table) Len() int {
	return t.live
}
