package port

// Transport hands one encoded envelope to the host. It never fails: a channel
// whose bridge is missing falls back to the diagnostic console.
type Transport interface {
	Send(message string)
}
