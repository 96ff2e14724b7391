package tap

import "encoding/json"

// Protocol message types emitted by Singer-style taps, one JSON object per
// line. Anything else becomes TypeUnknown.
const (
	TypeSchema  = "SCHEMA"
	TypeRecord  = "RECORD"
	TypeState   = "STATE"
	TypeUnknown = "UNKNOWN"
)

// Message is one classified protocol line. Record and Value are kept as raw
// JSON: record payloads are forwarded to storage opaquely and checkpoint
// values must round-trip byte for byte.
type Message struct {
	Type   string
	Stream string
	Record json.RawMessage
	Value  json.RawMessage
	Raw    string
}

// Classify parses one line of tap output. It never fails: a line that is
// not a well-formed protocol message, or that carries an unrecognized type,
// comes back as TypeUnknown with the original text attached. One bad line
// must never abort a run.
func Classify(line string) Message {
	var envelope struct {
		Type   string          `json:"type"`
		Stream string          `json:"stream"`
		Record json.RawMessage `json:"record"`
		Value  json.RawMessage `json:"value"`
	}

	if err := json.Unmarshal([]byte(line), &envelope); err != nil {
		return Message{Type: TypeUnknown, Raw: line}
	}

	switch envelope.Type {
	case TypeSchema:
		return Message{Type: TypeSchema, Stream: envelope.Stream}
	case TypeRecord:
		return Message{Type: TypeRecord, Stream: envelope.Stream, Record: envelope.Record}
	case TypeState:
		return Message{Type: TypeState, Value: envelope.Value}
	default:
		return Message{Type: TypeUnknown, Raw: line}
	}
}

// StateValue returns the checkpoint payload of a STATE message, or nil when
// the message carries none. A literal JSON null counts as none: a tap that
// ends its stream with an empty STATE leaves no checkpoint to save.
func (m Message) StateValue() json.RawMessage {
	if m.Type != TypeState {
		return nil
	}
	if len(m.Value) == 0 || string(m.Value) == "null" {
		return nil
	}
	return m.Value
}
