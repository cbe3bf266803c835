package codec

import (
	"main/internal/schema"
	"main/pkg/exception"

	"github.com/yanun0323/errors"
)

// EncodePayload serializes any payload by its topic's wire layout.
func EncodePayload(dst []byte, topic schema.Topic, payload schema.Payload) ([]byte, error) {
	switch p := payload.(type) {
	case schema.BookTicker:
		return EncodeBookTicker(dst, p), nil
	case schema.Trade:
		return EncodeTrade(dst, p), nil
	case schema.OrderIntent:
		return EncodeOrderIntent(dst, p), nil
	case schema.OrderCancel:
		return EncodeOrderCancel(dst, p), nil
	case schema.OrderResult:
		return EncodeOrderResult(dst, p), nil
	case schema.AccountUpdate:
		return EncodeAccountUpdate(dst, p), nil
	default:
		return nil, errors.Wrapf(exception.ErrTypeUnsupported, "no encoder for payload %T on topic %s", payload, topic)
	}
}

// DecodePayload parses a payload by the topic it was recorded on.
func DecodePayload(topic schema.Topic, src []byte) (schema.Payload, error) {
	switch topic {
	case schema.TopicBookTicker:
		if p, ok := DecodeBookTicker(src); ok {
			return p, nil
		}
	case schema.TopicTrade:
		if p, ok := DecodeTrade(src); ok {
			return p, nil
		}
	case schema.TopicOrderIntent:
		if p, ok := DecodeOrderIntent(src); ok {
			return p, nil
		}
	case schema.TopicOrderCancel:
		if p, ok := DecodeOrderCancel(src); ok {
			return p, nil
		}
	case schema.TopicOrderResult:
		if p, ok := DecodeOrderResult(src); ok {
			return p, nil
		}
	case schema.TopicAccount:
		if p, ok := DecodeAccountUpdate(src); ok {
			return p, nil
		}
	default:
		return nil, errors.Wrapf(exception.ErrUnknownTopic, "topic %d", topic)
	}
	return nil, errors.Wrapf(exception.ErrShortPayload, "topic %s, len %d", topic, len(src))
}
