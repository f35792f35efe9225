package simulator

// SetState commits st for symbol as if a tick had produced it.
func (s *Simulator) SetState(symbol string, st QuoteState) {
	s.states.Store(symbol, &st)
}
