package recognize

// LabelMap is a bidirectional identity-id <-> classifier-label map with a
// monotonically increasing next-label counter. Labels are assigned once and
// never reused, even after removal.
type LabelMap struct {
	byIdentity map[string]int
	byLabel    map[int]string
	next       int
}

func NewLabelMap() *LabelMap {
	return &LabelMap{
		byIdentity: make(map[string]int),
		byLabel:    make(map[int]string),
	}
}

// RestoreLabelMap rebuilds a label map from persisted assignments. The
// counter is restored explicitly so removed labels stay retired.
func RestoreLabelMap(assignments map[string]int, next int) *LabelMap {
	m := NewLabelMap()
	for id, label := range assignments {
		m.byIdentity[id] = label
		m.byLabel[label] = id
		if label >= next {
			next = label + 1
		}
	}
	m.next = next
	return m
}

// Assign returns the identity's label, allocating a new one on first use.
func (m *LabelMap) Assign(identityID string) (label int, isNew bool) {
	if label, ok := m.byIdentity[identityID]; ok {
		return label, false
	}
	label = m.next
	m.next++
	m.byIdentity[identityID] = label
	m.byLabel[label] = identityID
	return label, true
}

// LabelOf looks up the label for an identity.
func (m *LabelMap) LabelOf(identityID string) (int, bool) {
	label, ok := m.byIdentity[identityID]
	return label, ok
}

// IdentityOf resolves a label back to its identity id. A missing label is a
// checked outcome, not a panic or a zero value in disguise.
func (m *LabelMap) IdentityOf(label int) (string, bool) {
	id, ok := m.byLabel[label]
	return id, ok
}

// Remove retires the identity's label. The counter is not rewound.
func (m *LabelMap) Remove(identityID string) {
	if label, ok := m.byIdentity[identityID]; ok {
		delete(m.byIdentity, identityID)
		delete(m.byLabel, label)
	}
}

// Next returns the next label the counter would assign.
func (m *LabelMap) Next() int {
	return m.next
}

// Len returns the number of assigned labels.
func (m *LabelMap) Len() int {
	return len(m.byIdentity)
}

// Assignments returns a copy of the identity -> label map for persistence.
func (m *LabelMap) Assignments() map[string]int {
	out := make(map[string]int, len(m.byIdentity))
	for id, label := range m.byIdentity {
		out[id] = label
	}
	return out
}
