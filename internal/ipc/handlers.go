package ipc

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"sync"

	apierrors "github.com/edgecore/edgeagentd/internal/errors"
	"github.com/edgecore/edgeagentd/internal/eventstream"
	"github.com/edgecore/edgeagentd/internal/value"
)

// handleRequest authorizes and dispatches one APPLICATION_MESSAGE request
// frame on an authenticated connection.
func (b *Broker) handleRequest(ctx context.Context, conn net.Conn, writeMu *sync.Mutex, sess *session, frame *eventstream.Frame) {
	streamID, _ := frame.StreamID()
	op, _ := frame.Operation()

	resource, resourceType := requestResource(op, frame.Payload)
	if !b.authorize(sess.componentName, op, resource, resourceType) {
		b.writeError(conn, writeMu, streamID, apierrors.ErrUnsupported, "UnauthorizedError")
		return
	}

	switch op {
	case "GetConfiguration":
		b.handleGetConfiguration(ctx, conn, writeMu, streamID, sess, frame.Payload)
	case "UpdateConfiguration":
		b.handleUpdateConfiguration(ctx, conn, writeMu, streamID, sess, frame.Payload)
	case "GetSystemConfig":
		b.handleGetSystemConfig(conn, writeMu, streamID, frame.Payload)
	case "PublishToIoTCore":
		b.handlePublishToIoTCore(conn, writeMu, streamID, frame.Payload)
	case "SubscribeToIoTCore":
		b.handleSubscribeToIoTCore(conn, writeMu, streamID, frame.Payload, &subStream{conn: conn, writeMu: writeMu, streamID: streamID})
	case "PublishToTopic":
		b.handlePublishToTopic(conn, writeMu, streamID, frame.Payload)
	case "SubscribeToTopic":
		b.handleSubscribeToTopic(conn, writeMu, streamID, frame.Payload, &subStream{conn: conn, writeMu: writeMu, streamID: streamID})
	default:
		b.writeError(conn, writeMu, streamID, apierrors.ErrNoEntry, "unknown operation "+op)
	}
}

// authorize consults the authz engine with dest=operation, scoping the
// (principal, op, resource) lookup to this IPC operation.
func (b *Broker) authorize(principal, op, resource, resourceType string) bool {
	if b.authz == nil {
		return true
	}
	return b.authz.IsAuthorized(op, principal, op, resource, resourceType)
}

// requestResource extracts the authz resource string (and resourceType)
// from a request payload; MQTT operations use resourceType=MQTT.
func requestResource(op string, payload json.RawMessage) (resource, resourceType string) {
	switch op {
	case "GetConfiguration", "UpdateConfiguration":
		var req struct {
			KeyPath []string `json:"keyPath"`
		}
		_ = json.Unmarshal(payload, &req)
		return strings.Join(req.KeyPath, "/"), ""
	case "PublishToIoTCore", "SubscribeToIoTCore":
		var req struct {
			TopicName string `json:"topicName"`
		}
		_ = json.Unmarshal(payload, &req)
		return req.TopicName, "MQTT"
	case "PublishToTopic", "SubscribeToTopic":
		var req struct {
			Topic string `json:"topic"`
		}
		_ = json.Unmarshal(payload, &req)
		return req.Topic, "MQTT"
	default:
		return "", ""
	}
}

func (b *Broker) handleGetConfiguration(ctx context.Context, conn net.Conn, writeMu *sync.Mutex, streamID int32, sess *session, payload json.RawMessage) {
	var req struct {
		ComponentName string   `json:"componentName"`
		KeyPath       []string `json:"keyPath"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		b.writeError(conn, writeMu, streamID, apierrors.ErrInvalid, "malformed GetConfiguration request")
		return
	}
	scope := req.ComponentName
	if scope == "" {
		scope = sess.componentName
	}
	if b.config == nil {
		b.writeError(conn, writeMu, streamID, apierrors.ErrNoEntry, "ResourceNotFoundError")
		return
	}
	keyPath := append([]string{"services", scope}, req.KeyPath...)
	v, err := b.config.Read(ctx, keyPath)
	if err != nil {
		b.writeError(conn, writeMu, streamID, apierrors.ErrNoEntry, "ResourceNotFoundError")
		return
	}
	b.writeResult(conn, writeMu, streamID, map[string]interface{}{"value": toGeneric(v)})
}

func (b *Broker) handleUpdateConfiguration(ctx context.Context, conn net.Conn, writeMu *sync.Mutex, streamID int32, sess *session, payload json.RawMessage) {
	var req struct {
		KeyPath      []string        `json:"keyPath"`
		ValueToMerge json.RawMessage `json:"valueToMerge"`
		Timestamp    float64         `json:"timestamp"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		b.writeError(conn, writeMu, streamID, apierrors.ErrInvalid, "malformed UpdateConfiguration request")
		return
	}
	if b.config == nil {
		b.writeError(conn, writeMu, streamID, apierrors.ErrFailure, "no config backend configured")
		return
	}
	var generic interface{}
	if err := json.Unmarshal(req.ValueToMerge, &generic); err != nil {
		b.writeError(conn, writeMu, streamID, apierrors.ErrInvalid, "malformed valueToMerge")
		return
	}
	keyPath := append([]string{"services", sess.componentName}, req.KeyPath...)
	if err := b.config.Write(ctx, keyPath, fromGeneric(generic), req.Timestamp); err != nil {
		b.writeError(conn, writeMu, streamID, apierrors.GetKind(err), err.Error())
		return
	}
	b.writeResult(conn, writeMu, streamID, map[string]interface{}{})
}

func (b *Broker) handleGetSystemConfig(conn net.Conn, writeMu *sync.Mutex, streamID int32, payload json.RawMessage) {
	var req struct {
		KeyPath []string `json:"keyPath"`
	}
	if err := json.Unmarshal(payload, &req); err != nil || len(req.KeyPath) == 0 {
		b.writeError(conn, writeMu, streamID, apierrors.ErrInvalid, "malformed GetSystemConfig request")
		return
	}
	var val string
	switch req.KeyPath[0] {
	case "thingName":
		val = b.thingName
	case "rootCaPath":
		val = b.rootCAPath
	case "rootPath":
		val = b.rootPath
	default:
		b.writeError(conn, writeMu, streamID, apierrors.ErrNoEntry, "ResourceNotFoundError")
		return
	}
	b.writeResult(conn, writeMu, streamID, map[string]interface{}{"value": val})
}

func (b *Broker) handlePublishToIoTCore(conn net.Conn, writeMu *sync.Mutex, streamID int32, payload json.RawMessage) {
	var req struct {
		TopicName string `json:"topicName"`
		Payload   string `json:"payload"`
		QOS       byte   `json:"qos"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		b.writeError(conn, writeMu, streamID, apierrors.ErrInvalid, "malformed PublishToIoTCore request")
		return
	}
	decoded, err := base64Decode(req.Payload)
	if err != nil {
		b.writeError(conn, writeMu, streamID, apierrors.ErrInvalid, "malformed payload")
		return
	}
	if b.cloud == nil {
		b.writeError(conn, writeMu, streamID, apierrors.ErrFailure, "no cloud session configured")
		return
	}
	if err := b.cloud.Publish(req.TopicName, req.QOS, decoded); err != nil {
		b.writeError(conn, writeMu, streamID, apierrors.ErrFailure, err.Error())
		return
	}
	b.writeResult(conn, writeMu, streamID, map[string]interface{}{})
}

func (b *Broker) handleSubscribeToIoTCore(conn net.Conn, writeMu *sync.Mutex, streamID int32, payload json.RawMessage, stream *subStream) {
	var req struct {
		TopicName string `json:"topicName"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		b.writeError(conn, writeMu, streamID, apierrors.ErrInvalid, "malformed SubscribeToIoTCore request")
		return
	}
	if b.cloud == nil {
		b.writeError(conn, writeMu, streamID, apierrors.ErrFailure, "no cloud session configured")
		return
	}
	_, err := b.cloud.Subscribe(req.TopicName, func(topic string, payload []byte) {
		stream.push(map[string]interface{}{
			"message": map[string]interface{}{
				"topicName": topic,
				"payload":   base64Encode(payload),
			},
		})
	})
	if err != nil {
		b.writeError(conn, writeMu, streamID, apierrors.ErrFailure, err.Error())
	}
}

func (b *Broker) handlePublishToTopic(conn net.Conn, writeMu *sync.Mutex, streamID int32, payload json.RawMessage) {
	var req struct {
		Topic         string `json:"topic"`
		BinaryMessage *struct {
			Message string `json:"message"`
		} `json:"binaryMessage"`
		JSONMessage *json.RawMessage `json:"jsonMessage"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		b.writeError(conn, writeMu, streamID, apierrors.ErrInvalid, "malformed PublishToTopic request")
		return
	}
	var body []byte
	switch {
	case req.BinaryMessage != nil:
		decoded, err := base64Decode(req.BinaryMessage.Message)
		if err != nil {
			b.writeError(conn, writeMu, streamID, apierrors.ErrInvalid, "malformed binaryMessage")
			return
		}
		body = decoded
	case req.JSONMessage != nil:
		body = *req.JSONMessage
	}
	b.bus.Publish(req.Topic, body)
	b.writeResult(conn, writeMu, streamID, map[string]interface{}{})
}

func (b *Broker) handleSubscribeToTopic(conn net.Conn, writeMu *sync.Mutex, streamID int32, payload json.RawMessage, stream *subStream) {
	var req struct {
		Topic string `json:"topic"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		b.writeError(conn, writeMu, streamID, apierrors.ErrInvalid, "malformed SubscribeToTopic request")
		return
	}
	b.bus.Subscribe(req.Topic, func(body []byte) {
		stream.push(map[string]interface{}{
			"jsonMessage":   json.RawMessage(body),
			"binaryMessage": map[string]interface{}{"message": base64Encode(body)},
		})
	})
}

// toGeneric and fromGeneric mirror the JSON<->value.Value conversion used
// at every config-tree boundary (internal/config/kv, internal/config/store,
// internal/recipe) — duplicated per-package intentionally to avoid
// import coupling between client-facing packages.
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
