package recognize

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLabelMapAssign(t *testing.T) {
	m := NewLabelMap()

	a, isNew := m.Assign("alice")
	require.True(t, isNew)
	require.Equal(t, 0, a)

	b, isNew := m.Assign("bob")
	require.True(t, isNew)
	require.Equal(t, 1, b)

	again, isNew := m.Assign("alice")
	require.False(t, isNew)
	require.Equal(t, a, again)

	require.Equal(t, 2, m.Len())
	require.Equal(t, 2, m.Next())
}

func TestLabelMapLookup(t *testing.T) {
	m := NewLabelMap()
	m.Assign("alice")

	label, ok := m.LabelOf("alice")
	require.True(t, ok)

	id, ok := m.IdentityOf(label)
	require.True(t, ok)
	require.Equal(t, "alice", id)

	_, ok = m.LabelOf("nobody")
	require.False(t, ok)
	_, ok = m.IdentityOf(99)
	require.False(t, ok)
}

func TestLabelMapRemoveNeverReuses(t *testing.T) {
	m := NewLabelMap()
	aliceLabel, _ := m.Assign("alice")
	m.Assign("bob")

	m.Remove("alice")
	_, ok := m.LabelOf("alice")
	require.False(t, ok)

	// Re-enrolling gets a fresh label, not the retired one.
	newLabel, isNew := m.Assign("alice")
	require.True(t, isNew)
	require.NotEqual(t, aliceLabel, newLabel)
	require.Equal(t, 2, newLabel)
}

func TestRestoreLabelMap(t *testing.T) {
	m := RestoreLabelMap(map[string]int{"alice": 0, "carol": 4}, 5)

	label, ok := m.LabelOf("carol")
	require.True(t, ok)
	require.Equal(t, 4, label)
	require.Equal(t, 5, m.Next())

	// Counter behind the highest assignment is corrected.
	m = RestoreLabelMap(map[string]int{"carol": 4}, 0)
	require.Equal(t, 5, m.Next())
}

func TestLabelMapAssignments(t *testing.T) {
	m := NewLabelMap()
	m.Assign("alice")
	m.Assign("bob")

	got := m.Assignments()
	require.Equal(t, map[string]int{"alice": 0, "bob": 1}, got)

	// Mutating the copy must not touch the map.
	got["alice"] = 42
	label, _ := m.LabelOf("alice")
	require.Equal(t, 0, label)
}
