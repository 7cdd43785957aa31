package agent

// Event is the tagged union streamed by the orchestrator. Consumers read
// zero or more ContentChunk values followed by exactly one terminal
// Complete or Error; the channel closes after the terminal event.
type Event interface {
	isEvent()
}

// ContentChunk carries one incremental fragment of the answer.
type ContentChunk struct {
	Text string
}

// Complete terminates a successful stream and carries the full answer
// text (the concatenation of every preceding chunk).
type Complete struct {
	Text string
}

// Error terminates a failed stream. No turns were appended to history.
type Error struct {
	Err error
}

func (ContentChunk) isEvent() {}
func (Complete) isEvent()     {}
func (Error) isEvent()        {}
