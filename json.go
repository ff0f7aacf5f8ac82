package pytree

import (
	"github.com/goliatone/go-pytree/internal/hydrate"
)

// JSONOption configures JSON decoding.
type JSONOption func(*jsonConfig)

type jsonConfig struct {
	useNumber bool
}

// WithJSONNumbers keeps numeric leaves as json.Number instead of float64.
func WithJSONNumbers() JSONOption {
	return func(cfg *jsonConfig) {
		cfg.useNumber = true
	}
}

// orderedObject adapts *OrderedMap to the decoder's object container so
// document key order survives into the tree.
type orderedObject struct {
	om *OrderedMap
}

func (o orderedObject) Set(key string, value any) {
	o.om.Set(key, value)
}

func (o orderedObject) Value() any {
	return o.om
}

// FromJSON decodes data into a tree of builtin containers: JSON objects
// become *OrderedMap preserving document key order, arrays become []any, and
// scalars become leaves. The result flattens directly.
func FromJSON(data []byte, opts ...JSONOption) (any, error) {
	cfg := jsonConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	decoderOpts := []hydrate.DecoderOption{
		hydrate.WithObjectFactory(func() hydrate.Object {
			return orderedObject{om: NewOrderedMap()}
		}),
	}
	if cfg.useNumber {
		decoderOpts = append(decoderOpts, hydrate.WithUseNumber())
	}
	return hydrate.NewDecoder(decoderOpts...).Decode(data)
}
