// Package kv is the thin core-bus client façade onto the external
// key-path config service, addressed at gg_config. It never
// touches the store directly — even when internal/config/store is running
// in-process, this package only ever talks to it over internal/corebus, so
// swapping in a real external config daemon later requires no client-side
// change.
package kv

import (
	"context"
	"encoding/json"

	apierrors "github.com/edgecore/edgeagentd/internal/errors"
	"github.com/edgecore/edgeagentd/internal/value"
)

// Client is the config KV adapter consumed by every other subsystem
// (lifecycle executor, recipe resolver, fleet status publisher, IPC
// broker's GetConfiguration/UpdateConfiguration operations).
type Client interface {
	Read(ctx context.Context, keyPath []string) (*value.Value, error)
	ReadString(ctx context.Context, keyPath []string) (string, error)
	List(ctx context.Context, keyPath []string) ([]string, error)
	Write(ctx context.Context, keyPath []string, v *value.Value, timestamp float64) error
	Delete(ctx context.Context, keyPath []string) error
	Subscribe(ctx context.Context, keyPath []string, onChange func(keyPath []string)) (unsubscribe func(), err error)
}

// BusClient is the minimal corebus.Client surface kv depends on, kept as
// an interface so tests can fake it without a real socket.
type BusClient interface {
	Call(ctx context.Context, method string, args interface{}, out interface{}) error
	Subscribe(method string, args interface{}, onEvent func(payload json.RawMessage), onClose func()) (func(), error)
}

type wireValue struct {
	Value json.RawMessage `json:"value"`
}

// busClient implements Client over a corebus connection to gg_config.
type busClient struct {
	bus BusClient
}

// New wraps a corebus connection (already dialed to AddressConfig) as a kv
// Client.
func New(bus BusClient) Client {
	return &busClient{bus: bus}
}

func (c *busClient) Read(ctx context.Context, keyPath []string) (*value.Value, error) {
	var resp wireValue
	if err := c.bus.Call(ctx, "Read", map[string]interface{}{"keyPath": keyPath}, &resp); err != nil {
		return nil, err
	}
	return decodeJSONValue(resp.Value)
}

func (c *busClient) ReadString(ctx context.Context, keyPath []string) (string, error) {
	v, err := c.Read(ctx, keyPath)
	if err != nil {
		return "", err
	}
	return v.AsString()
}

func (c *busClient) List(ctx context.Context, keyPath []string) ([]string, error) {
	var resp struct {
		Names []string `json:"names"`
	}
	if err := c.bus.Call(ctx, "List", map[string]interface{}{"keyPath": keyPath}, &resp); err != nil {
		return nil, err
	}
	return resp.Names, nil
}

func (c *busClient) Write(ctx context.Context, keyPath []string, v *value.Value, timestamp float64) error {
	raw, err := encodeJSONValue(v)
	if err != nil {
		return err
	}
	return c.bus.Call(ctx, "Write", map[string]interface{}{
		"keyPath":   keyPath,
		"value":     raw,
		"timestamp": timestamp,
	}, nil)
}

func (c *busClient) Delete(ctx context.Context, keyPath []string) error {
	return c.bus.Call(ctx, "Delete", map[string]interface{}{"keyPath": keyPath}, nil)
}

func (c *busClient) Subscribe(ctx context.Context, keyPath []string, onChange func(keyPath []string)) (func(), error) {
	return c.bus.Subscribe("Subscribe", map[string]interface{}{"keyPath": keyPath}, func(payload json.RawMessage) {
		var evt struct {
			KeyPath []string `json:"keyPath"`
		}
		if err := json.Unmarshal(payload, &evt); err == nil {
			onChange(evt.KeyPath)
		}
	}, func() {})
}

// decodeJSONValue converts an arbitrary JSON document into a value.Value
// tree, the boundary between the wire format's encoding/json documents and
// the arena-free in-memory value tree used everywhere else.
func decodeJSONValue(raw json.RawMessage) (*value.Value, error) {
	if len(raw) == 0 {
		return value.Null(), nil
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, apierrors.WrapKind(err, apierrors.ErrParse, "decode config value")
	}
	return fromGeneric(generic), nil
}

func fromGeneric(g interface{}) *value.Value {
	switch t := g.(type) {
	case nil:
		return value.Null()
	case bool:
		return value.BoolValue(t)
	case float64:
		if t == float64(int64(t)) {
			return value.IntValue(int64(t))
		}
		return value.FloatValue(t)
	case string:
		return value.StringValue(t)
	case []interface{}:
		items := make([]*value.Value, len(t))
		for i, item := range t {
			items[i] = fromGeneric(item)
		}
		return value.ListValue(items)
	case map[string]interface{}:
		m := value.NewMap()
		for k, v := range t {
			m.Set(k, fromGeneric(v))
		}
		return value.MapValue(m)
	default:
		return value.Null()
	}
}

func encodeJSONValue(v *value.Value) (json.RawMessage, error) {
	generic := toGeneric(v)
	b, err := json.Marshal(generic)
	if err != nil {
		return nil, apierrors.WrapKind(err, apierrors.ErrInvalid, "encode config value")
	}
	return b, nil
}

func toGeneric(v *value.Value) interface{} {
	if v.IsNull() {
		return nil
	}
	switch v.Kind {
	case value.KindBool:
		return v.Bool
	case value.KindInt:
		return v.Int
	case value.KindFloat:
		return v.Float
	case value.KindBuffer:
		return string(v.Buffer)
	case value.KindList:
		items := make([]interface{}, len(v.List))
		for i, item := range v.List {
			items[i] = toGeneric(item)
		}
		return items
	case value.KindMap:
		m := make(map[string]interface{}, v.Map.Len())
		for _, k := range v.Map.Keys() {
			child, _ := v.Map.Get(k)
			m[k] = toGeneric(child)
		}
		return m
	default:
		return nil
	}
}
