package protocol

import "ecbridge/parallel"

// Session is the state the dispatcher carries between commands
type Session struct {
	// Address is sent as an address cycle before the next read or write
	// when AddressPending is set
	Address        byte
	AddressPending bool

	// Program is the AAI state. Initialized doubles as the "accelerated
	// program in progress" flag and is cleared by any other command.
	Program parallel.ProgramSession
}

// SetAddress stashes an address for the next read or write
func (s *Session) SetAddress(addr byte) {
	s.Address = addr
	s.AddressPending = true
}

// TakeAddress returns the pending address, if any, and clears it
func (s *Session) TakeAddress() (byte, bool) {
	if !s.AddressPending {
		return 0, false
	}
	s.AddressPending = false
	return s.Address, true
}

// EndProgram forgets the flash address pointer
func (s *Session) EndProgram() {
	s.Program = parallel.ProgramSession{}
}

// Reset clears all session state
func (s *Session) Reset() {
	*s = Session{}
}
