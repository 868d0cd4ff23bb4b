package client

// Events receives structured notifications from the handshake state
// machine. Display formatting belongs to the implementation; the core
// never writes to the console itself.
type Events interface {
	Subscribed(topic string)
	Acknowledged(topic string)
	Received(topic string, payload []byte)
	Warning(msg string, err error)
	Disconnected(err error)
}

type nopEvents struct{}

func (nopEvents) Subscribed(string)       {}
func (nopEvents) Acknowledged(string)     {}
func (nopEvents) Received(string, []byte) {}
func (nopEvents) Warning(string, error)   {}
func (nopEvents) Disconnected(error)      {}
