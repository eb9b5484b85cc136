package protocol

// Event types the agent reacts to.
const (
	EventTaskDone     = "TASK_DONE"
	EventTaskFail     = "TASK_FAIL"
	EventActionResult = "ACTION_RESULT"
	EventChat         = "CHAT"
)

const ChannelWhisper = "WHISPER"

func (e Event) str(key string) string {
	v, _ := e[key].(string)
	return v
}

func (e Event) Type() string    { return e.str("type") }
func (e Event) TaskID() string  { return e.str("task_id") }
func (e Event) Ref() string     { return e.str("ref") }
func (e Event) Code() string    { return e.str("code") }
func (e Event) Message() string { return e.str("message") }
func (e Event) From() string    { return e.str("from") }
func (e Event) Channel() string { return e.str("channel") }
func (e Event) Text() string    { return e.str("text") }

// OK reports the "ok" flag of an ACTION_RESULT event.
func (e Event) OK() bool {
	v, _ := e["ok"].(bool)
	return v
}

// Tick returns the event tick. JSON numbers decode as float64.
func (e Event) Tick() uint64 {
	switch v := e["t"].(type) {
	case float64:
		return uint64(v)
	case uint64:
		return v
	case int:
		return uint64(v)
	}
	return 0
}
