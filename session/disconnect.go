package session

import "github.com/mcprotocol/sessioncore/internal/errs"

// Disconnect transitions to Closing, stops the reader, fails all pending
// requests with ErrConnectionClosed, closes the transport, and transitions
// to Closed. Idempotent (§4.7).
func (s *Session) Disconnect() error {
	var err error
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosing))

		if s.dispatcher != nil {
			s.dispatcher.SignalDisconnecting()
		}
		s.pendingTable.FailAll(errs.ErrConnectionClosed)

		if s.runCancel != nil {
			s.runCancel()
		}
		if s.t != nil {
			err = s.t.Close()
		}
		if s.eg != nil {
			_ = s.eg.Wait()
		}

		s.state.Store(int32(StateClosed))
	})
	return err
}
