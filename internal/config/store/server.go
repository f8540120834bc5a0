package store

import (
	"context"
	"encoding/json"

	"github.com/edgecore/edgeagentd/internal/corebus"
	apierrors "github.com/edgecore/edgeagentd/internal/errors"
	"github.com/edgecore/edgeagentd/internal/value"
)

// RegisterHandlers wires s's Read/List/Write/Delete/Subscribe operations
// onto a corebus.Server under the gg_config address, making the in-process
// store reachable exactly like a real external config daemon would be.
func RegisterHandlers(bus *corebus.Server, s *Store) {
	bus.Register("Read", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		var req struct {
			KeyPath []string `json:"keyPath"`
		}
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, apierrors.WrapKind(err, apierrors.ErrInvalid, "decode Read request")
		}
		v, err := s.Read(req.KeyPath)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"value": toGeneric(v)}, nil
	})

	bus.Register("List", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		var req struct {
			KeyPath []string `json:"keyPath"`
		}
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, apierrors.WrapKind(err, apierrors.ErrInvalid, "decode List request")
		}
		names, err := s.List(req.KeyPath)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"names": names}, nil
	})

	bus.Register("Write", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		var req struct {
			KeyPath   []string        `json:"keyPath"`
			Value     json.RawMessage `json:"value"`
			Timestamp float64         `json:"timestamp"`
		}
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, apierrors.WrapKind(err, apierrors.ErrInvalid, "decode Write request")
		}
		var generic interface{}
		if err := json.Unmarshal(req.Value, &generic); err != nil {
			return nil, apierrors.WrapKind(err, apierrors.ErrInvalid, "decode Write value")
		}
		if err := s.Write(req.KeyPath, fromGeneric(generic), req.Timestamp); err != nil {
			return nil, err
		}
		return map[string]interface{}{}, nil
	})

	bus.Register("Delete", func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		var req struct {
			KeyPath []string `json:"keyPath"`
		}
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, apierrors.WrapKind(err, apierrors.ErrInvalid, "decode Delete request")
		}
		if err := s.Delete(req.KeyPath); err != nil {
			return nil, err
		}
		return map[string]interface{}{}, nil
	})

	bus.RegisterSubscription("Subscribe", func(ctx context.Context, params json.RawMessage, stream *corebus.Stream) error {
		var req struct {
			KeyPath []string `json:"keyPath"`
		}
		if err := json.Unmarshal(params, &req); err != nil {
			return apierrors.WrapKind(err, apierrors.ErrInvalid, "decode Subscribe request")
		}
		_, err := s.Subscribe(req.KeyPath, func(keyPath []string) {
			_ = stream.PushEvent(map[string]interface{}{"keyPath": keyPath})
		})
		return err
	})
}

// fromGeneric and toGeneric mirror internal/config/kv's JSON<->value.Value
// boundary conversion so the store's server side and client side agree on
// wire shape without importing each other.
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
