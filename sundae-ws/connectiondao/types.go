package connectiondao

// Connection is a registered WebSocket connection. Only ConnectionID matters
// to the relay; the remaining attributes are informational.
type Connection struct {
	ConnectionID string `dynamodbav:"pk" ddb:"hash"`
	Endpoint     string `dynamodbav:"endpoint,omitempty"`
	ConnectedAt  int64  `dynamodbav:"connected_at,omitempty"`
	SourceIP     string `dynamodbav:"source_ip,omitempty"`
	UserAgent    string `dynamodbav:"user_agent,omitempty"`
}
