package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Object is the container the decoder builds JSON objects into. Callers
// supply a factory to control the concrete type; keys arrive in document
// order.
type Object interface {
	Set(key string, value any)
	Value() any
}

// ObjectFactory produces a fresh Object per decoded JSON object.
type ObjectFactory func() Object

// PreHook lets callers mutate or normalise the raw payload before decoding.
type PreHook func([]byte) ([]byte, error)

// PostHook lets callers adjust or validate the decoded tree.
type PostHook func(any) (any, error)

// DecoderOption configures a Decoder instance.
type DecoderOption func(*Decoder)

// Decoder converts JSON payloads into nested container trees.
type Decoder struct {
	factory   ObjectFactory
	useNumber bool
	preHooks  []PreHook
	postHooks []PostHook
}

// WithObjectFactory sets the container type decoded JSON objects become.
func WithObjectFactory(factory ObjectFactory) DecoderOption {
	return func(d *Decoder) {
		if factory != nil {
			d.factory = factory
		}
	}
}

// WithUseNumber keeps numbers as json.Number instead of float64.
func WithUseNumber() DecoderOption {
	return func(d *Decoder) {
		d.useNumber = true
	}
}

// WithPreHook applies hook to the raw payload prior to decoding.
func WithPreHook(hook PreHook) DecoderOption {
	return func(d *Decoder) {
		d.preHooks = append(d.preHooks, hook)
	}
}

// WithPostHook applies hook to the tree after decoding completes.
func WithPostHook(hook PostHook) DecoderOption {
	return func(d *Decoder) {
		d.postHooks = append(d.postHooks, hook)
	}
}

func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{factory: newMapObject}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode converts payload into a nested tree. Objects become the factory's
// container with keys in document order, arrays become []any, and scalars
// decode to string, bool, nil, and float64 or json.Number.
func (d *Decoder) Decode(payload []byte) (any, error) {
	if payload == nil {
		return nil, fmt.Errorf("hydrate: payload is nil")
	}

	current := payload
	for _, hook := range d.preHooks {
		if hook == nil {
			continue
		}
		next, err := hook(current)
		if err != nil {
			return nil, fmt.Errorf("hydrate: pre-hook failed: %w", err)
		}
		if next != nil {
			current = next
		}
	}

	dec := json.NewDecoder(bytes.NewReader(current))
	if d.useNumber {
		dec.UseNumber()
	}
	result, err := d.decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("hydrate: trailing data after top-level value")
	}

	for _, hook := range d.postHooks {
		if hook == nil {
			continue
		}
		next, err := hook(result)
		if err != nil {
			return nil, fmt.Errorf("hydrate: post-hook failed: %w", err)
		}
		result = next
	}

	return result, nil
}

func (d *Decoder) decodeValue(dec *json.Decoder) (any, error) {
	token, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("hydrate: decode: %w", err)
	}
	return d.decodeToken(dec, token)
}

func (d *Decoder) decodeToken(dec *json.Decoder, token json.Token) (any, error) {
	delim, ok := token.(json.Delim)
	if !ok {
		// Scalar tokens pass through as decoded.
		return token, nil
	}
	switch delim {
	case '{':
		return d.decodeObject(dec)
	case '[':
		return d.decodeArray(dec)
	default:
		return nil, fmt.Errorf("hydrate: unexpected delimiter %q", delim)
	}
}

func (d *Decoder) decodeObject(dec *json.Decoder) (any, error) {
	obj := d.factory()
	for dec.More() {
		keyToken, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("hydrate: object key: %w", err)
		}
		key, ok := keyToken.(string)
		if !ok {
			return nil, fmt.Errorf("hydrate: object key is %T, want string", keyToken)
		}
		value, err := d.decodeValue(dec)
		if err != nil {
			return nil, err
		}
		obj.Set(key, value)
	}
	// Consume the closing brace.
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("hydrate: object end: %w", err)
	}
	return obj.Value(), nil
}

func (d *Decoder) decodeArray(dec *json.Decoder) (any, error) {
	items := []any{}
	for dec.More() {
		value, err := d.decodeValue(dec)
		if err != nil {
			return nil, err
		}
		items = append(items, value)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("hydrate: array end: %w", err)
	}
	return items, nil
}

// mapObject is the default object container, a plain map that forgets key
// order.
type mapObject struct {
	items map[string]any
}

func newMapObject() Object {
	return &mapObject{items: make(map[string]any)}
}

func (o *mapObject) Set(key string, value any) {
	o.items[key] = value
}

func (o *mapObject) Value() any {
	return o.items
}
