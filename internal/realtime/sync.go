package realtime

// StartSync starts a client on feed and returns its stop function. The stop
// function is idempotent.
func StartSync(feed Feed, decode Decoder, opts Options, onInsert, onUpdate Handler) func() {
	client := NewClient(feed, decode, opts)
	_ = client.Start(onInsert, onUpdate) // a fresh client is never already started
	return client.Stop
}
