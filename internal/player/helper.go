package player

// IsReady reports whether p is prepared and waiting for Start.
func IsReady(p *Player) bool {
	return p != nil && p.State().Ready()
}

// IsInitialized reports whether p has a data source attached, that is
// whether its state lies between Initialized and Completed.
func IsInitialized(p *Player) bool {
	return p != nil && p.State().Initialized()
}
