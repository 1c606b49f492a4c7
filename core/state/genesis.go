package state

var genesisMarkerKey = []byte("genesis/applied")

// GenesisApplied reports whether a genesis document has been written.
func (m *Manager) GenesisApplied() (bool, error) {
	return m.KVGet(genesisMarkerKey, nil)
}

// MarkGenesisApplied records the genesis timestamp so it is never re-applied.
func (m *Manager) MarkGenesisApplied(unix uint64) error {
	return m.KVPut(genesisMarkerKey, unix)
}
