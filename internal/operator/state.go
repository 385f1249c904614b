package operator

// State is the process-scoped context the dispatcher and poller share:
// the validated registration table and the processed-id set. Holding them
// here instead of package globals keeps ownership explicit and the loop
// testable.
type State struct {
	registrations []Registration
	byScriptID    map[string]*Registration
	processed     *ProcessedSet
}

// NewState builds the process state from validated registrations.
func NewState(registrations []Registration) *State {
	s := &State{
		registrations: registrations,
		byScriptID:    make(map[string]*Registration, len(registrations)),
		processed:     NewProcessedSet(),
	}
	for i := range s.registrations {
		reg := &s.registrations[i]
		s.byScriptID[reg.ScriptID] = reg
	}
	return s
}

// Registrations returns the registration table.
func (s *State) Registrations() []Registration {
	return s.registrations
}

// RegistrationFor resolves a registration by script transaction id.
func (s *State) RegistrationFor(scriptID string) (*Registration, bool) {
	reg, ok := s.byScriptID[scriptID]
	return reg, ok
}

// ScriptIDs lists the script ids the operator serves.
func (s *State) ScriptIDs() []string {
	ids := make([]string, 0, len(s.registrations))
	for _, reg := range s.registrations {
		ids = append(ids, reg.ScriptID)
	}
	return ids
}

// Processed exposes the processed-id set.
func (s *State) Processed() *ProcessedSet {
	return s.processed
}
