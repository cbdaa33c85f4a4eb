package port

// PipelineMetrics counts what flows through the vitals pipeline.
type PipelineMetrics interface {
	// BatchObserved counts a batch delivered by the observer for an entry type.
	BatchObserved(entryType string, entries int)
	// EnvelopeSent counts an envelope handed to a transport.
	EnvelopeSent(target string)
	// EntryDropped counts entries the pipeline discarded, by reason.
	EntryDropped(reason string, count int)
	// TransportFallback counts messages rerouted to the console.
	TransportFallback(target string)
	// DeliveryProcessed counts host-side deliveries by outcome.
	DeliveryProcessed(target, outcome string)
}

// NoopPipelineMetrics discards every observation.
type NoopPipelineMetrics struct{}

func (NoopPipelineMetrics) BatchObserved(string, int)        {}
func (NoopPipelineMetrics) EnvelopeSent(string)              {}
func (NoopPipelineMetrics) EntryDropped(string, int)         {}
func (NoopPipelineMetrics) TransportFallback(string)         {}
func (NoopPipelineMetrics) DeliveryProcessed(string, string) {}
