package schema

// SchemaVersion is the current message schema version.
const SchemaVersion uint16 = 1

// EventType defines the payload shape carried by a message.
type EventType uint16

const (
	EventUnknown EventType = iota
	EventBookTicker
	EventTrade
	EventOrderIntent
	EventOrderCancel
	EventOrderResult
	EventAccountUpdate
)

// Topic identifies a named channel. Topics are fixed for the process
// lifetime and each one carries exactly one payload shape.
type Topic uint8

const (
	_topic_beg Topic = iota
	TopicBookTicker
	TopicTrade
	TopicOrderIntent
	TopicOrderCancel
	TopicOrderResult
	TopicAccount
	_topic_end
)

// TopicCount is the number of valid topics.
const TopicCount = int(_topic_end) - 1

func (t Topic) IsAvailable() bool {
	return t > _topic_beg && t < _topic_end
}

func (t Topic) String() string {
	switch t {
	case TopicBookTicker:
		return "bookticker"
	case TopicTrade:
		return "trade"
	case TopicOrderIntent:
		return "order_intent"
	case TopicOrderCancel:
		return "order_cancel"
	case TopicOrderResult:
		return "order_result"
	case TopicAccount:
		return "account"
	default:
		return "unknown"
	}
}

// PayloadType returns the payload shape bound to the topic.
func (t Topic) PayloadType() EventType {
	switch t {
	case TopicBookTicker:
		return EventBookTicker
	case TopicTrade:
		return EventTrade
	case TopicOrderIntent:
		return EventOrderIntent
	case TopicOrderCancel:
		return EventOrderCancel
	case TopicOrderResult:
		return EventOrderResult
	case TopicAccount:
		return EventAccountUpdate
	default:
		return EventUnknown
	}
}

// EventHeader is the common metadata attached to every message.
// TsEvent is the logical timestamp that drives delivery order; TsRecv is
// the wall-clock arrival time assigned by a live adapter (zero in backtests).
type EventHeader struct {
	Topic   Topic
	Version uint16
	Source  uint16
	Flags   uint16
	Seq     uint64
	TsEvent int64
	TsRecv  int64
}

// NewHeader builds a header with the current schema version.
func NewHeader(topic Topic, source uint16, seq uint64, tsEvent, tsRecv int64) EventHeader {
	return EventHeader{
		Topic:   topic,
		Version: SchemaVersion,
		Source:  source,
		Seq:     seq,
		TsEvent: tsEvent,
		TsRecv:  tsRecv,
	}
}
