// Package fleetstatus periodically and event-triggered publishes the
// fleet health document to the cloud MQTT topic
// $aws/things/<thingName>/greengrassv2/health/json.
package fleetstatus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/edgecore/edgeagentd/internal/config/kv"
	apierrors "github.com/edgecore/edgeagentd/internal/errors"
	"github.com/edgecore/edgeagentd/internal/lifecycle"
	"github.com/edgecore/edgeagentd/internal/metrics"
	"github.com/edgecore/edgeagentd/internal/value"
	"github.com/edgecore/edgeagentd/pkg/logger"
)

// Trigger identifies why a fleet status document was published.
type Trigger string

const (
	TriggerNucleusLaunch Trigger = "NUCLEUS_LAUNCH"
	TriggerReconnect     Trigger = "RECONNECT"
	TriggerCadence       Trigger = "CADENCE"
	TriggerDeployment    Trigger = "DEPLOYMENT"
)

// DeviceStatus is the overall fleet device health.
type DeviceStatus string

const (
	StatusHealthy   DeviceStatus = "HEALTHY"
	StatusUnhealthy DeviceStatus = "UNHEALTHY"
)

// CadenceInterval is the periodic re-publish interval.
const CadenceInterval = 24 * time.Hour

// sequenceNumberKey is where the monotonic sequence number is persisted
//.
var sequenceNumberKey = []string{"system", "fleetStatusSequenceNum"}

// ignoredComponents lists component names excluded from fleet health
// reporting.
var ignoredComponents = map[string]bool{
	"aws.greengrass.NucleusLite":        true,
	"aws.greengrass.fleet_provisioning": true,
	"DeploymentService":                 true,
	"FleetStatusService":                true,
	"main":                              true,
	"TelemetryAgent":                    true,
	"UpdateSystemPolicyService":         true,
}

// ComponentHealth describes one reported component's status line.
type ComponentHealth struct {
	ComponentName string `json:"componentName"`
	State         string `json:"state"`
}

// DeploymentInfo is the deploymentInformation document field.
type DeploymentInfo struct {
	Status       string `json:"status,omitempty"`
	DeploymentID string `json:"deploymentId,omitempty"`
}

// Document is the JSON payload published to the health topic.
type Document struct {
	GGCVersion            string            `json:"ggcVersion"`
	Platform              string            `json:"platform"`
	Architecture          string            `json:"architecture"`
	Runtime               string            `json:"runtime"`
	Thing                 string            `json:"thing"`
	SequenceNumber        int64             `json:"sequenceNumber"`
	Timestamp             int64             `json:"timestamp"`
	MessageType           string            `json:"messageType"`
	Trigger               Trigger           `json:"trigger"`
	OverallDeviceStatus   DeviceStatus      `json:"overallDeviceStatus"`
	Components            []ComponentHealth `json:"components"`
	DeploymentInformation DeploymentInfo    `json:"deploymentInformation"`
}

// Identity holds the compile-time / runtime constants embedded in every
// published document.
type Identity struct {
	GGCVersion   string
	Platform     string
	Architecture string
	Runtime      string
	ThingName    string
}

// Publisher publishes fleet status documents on demand and on a 24h
// cadence.
type Publisher struct {
	identity Identity
	config   kv.Client
	registry *lifecycle.Registry
	mqtt     MQTTPublisher
	metrics  metrics.Collector
	log      logger.Logger

	// DeploymentInfo is attached to the next published document; set by
	// the deployment worker on completion.
	deploymentInfo DeploymentInfo

	nowFunc func() time.Time
}

// MQTTPublisher is the minimal publish surface fleetstatus needs.
type MQTTPublisher interface {
	Publish(topic string, qos byte, payload []byte) error
}

// New creates a Publisher. collector may be nil, in which case publishes
// go unmeasured (tests that don't care about metrics).
func New(identity Identity, config kv.Client, registry *lifecycle.Registry, mqtt MQTTPublisher, collector metrics.Collector, log logger.Logger) *Publisher {
	return &Publisher{identity: identity, config: config, registry: registry, mqtt: mqtt, metrics: collector, log: log, nowFunc: time.Now}
}

// SetDeploymentInfo records the deployment metadata attached to the next
// published document.
func (p *Publisher) SetDeploymentInfo(info DeploymentInfo) {
	p.deploymentInfo = info
}

// Publish increments and persists the sequence number, builds the health
// document, and publishes it.
func (p *Publisher) Publish(ctx context.Context, trigger Trigger) error {
	seq, err := p.nextSequenceNumber(ctx)
	if err != nil {
		return err
	}

	doc := Document{
		GGCVersion:            p.identity.GGCVersion,
		Platform:              p.identity.Platform,
		Architecture:          p.identity.Architecture,
		Runtime:               p.identity.Runtime,
		Thing:                 p.identity.ThingName,
		SequenceNumber:        seq,
		Timestamp:             p.nowFunc().UnixMilli(),
		MessageType:           "COMPLETE",
		Trigger:               trigger,
		Components:            p.componentHealth(),
		DeploymentInformation: p.deploymentInfo,
	}
	doc.OverallDeviceStatus = overallStatus(doc.Components)

	payload, err := json.Marshal(doc)
	if err != nil {
		return apierrors.WrapKind(err, apierrors.ErrInvalid, "encode fleet status document")
	}

	topic := fmt.Sprintf("$aws/things/%s/greengrassv2/health/json", p.identity.ThingName)
	if p.mqtt != nil {
		if err := p.mqtt.Publish(topic, 1, payload); err != nil {
			if p.metrics != nil {
				p.metrics.RecordFleetStatusPublish(string(trigger), false)
			}
			return apierrors.WrapKind(err, apierrors.ErrFailure, "publish fleet status")
		}
	}

	if p.metrics != nil {
		p.metrics.RecordFleetStatusPublish(string(trigger), true)
	}
	if p.log != nil {
		p.log.Info("published fleet status",
			logger.String("trigger", string(trigger)),
			logger.Int64("sequenceNumber", seq))
	}
	return nil
}

func (p *Publisher) nextSequenceNumber(ctx context.Context) (int64, error) {
	var current int64
	v, err := p.config.Read(ctx, sequenceNumberKey)
	if err == nil {
		current, _ = v.AsInt()
	}
	next := current + 1
	if err := p.config.Write(ctx, sequenceNumberKey, value.IntValue(next), float64(p.nowFunc().Unix())); err != nil {
		return 0, err
	}
	return next, nil
}

func (p *Publisher) componentHealth() []ComponentHealth {
	if p.registry == nil {
		return nil
	}
	var out []ComponentHealth
	for _, name := range p.registry.Names() {
		if ignoredComponents[name] {
			continue
		}
		out = append(out, ComponentHealth{
			ComponentName: name,
			State:         string(p.registry.RetrieveComponentStatus(name)),
		})
	}
	return out
}

func overallStatus(components []ComponentHealth) DeviceStatus {
	for _, c := range components {
		if c.State == string(lifecycle.ReportBroken) {
			return StatusUnhealthy
		}
	}
	return StatusHealthy
}

// RunCadence blocks, publishing with TriggerCadence every CadenceInterval
// until ctx is cancelled.
func (p *Publisher) RunCadence(ctx context.Context) {
	ticker := time.NewTicker(CadenceInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Publish(ctx, TriggerCadence); err != nil && p.log != nil {
				p.log.Warn("cadence fleet status publish failed", logger.Error(err))
			}
		}
	}
}
