package messages

// Header keys the service sets on outgoing envelopes. The envelope itself
// gives them no meaning.
const (
	HeaderMessageID     = "message-id"
	HeaderCorrelationID = "correlation-id"
	HeaderContentType   = "content-type"
	HeaderReturnAddress = "return-address"
	HeaderSentTime      = "sent-time"
	HeaderRoutingKey    = "routing-key"
)
