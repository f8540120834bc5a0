package bootstrap

import (
	"context"

	"github.com/edgecore/edgeagentd/internal/config/kv"
	apierrors "github.com/edgecore/edgeagentd/internal/errors"
	"github.com/edgecore/edgeagentd/internal/value"
	"github.com/edgecore/edgeagentd/pkg/logger"
)

// systemKeys are the startup config keys that together make up
// an existing thing identity.
var (
	keyThingName       = []string{"system", "thingName"}
	keyRootCAPath      = []string{"system", "rootCaPath"}
	keyCertificatePath = []string{"system", "certificateFilePath"}
	keyPrivateKeyPath  = []string{"system", "privateKeyPath"}
)

// TemplateName is the fleet-provisioning template requested when no
// identity exists yet.
type TemplateName string

// Resolver decides whether the device already has a thing identity, and
// provisions one if not.
type Resolver struct {
	config      kv.Client
	provisioner Provisioner
	log         logger.Logger
}

// NewResolver creates a Resolver. provisioner may be nil if the device is
// guaranteed to already be provisioned (e.g. pre-baked images); Resolve
// then fails loudly instead of silently skipping provisioning.
func NewResolver(config kv.Client, provisioner Provisioner, log logger.Logger) *Resolver {
	return &Resolver{config: config, provisioner: provisioner, log: log}
}

// Resolve returns the device's thing identity, reading it from config if
// already present, or provisioning and persisting a new one otherwise.
func (r *Resolver) Resolve(ctx context.Context, templateName TemplateName) (Identity, error) {
	if existing, ok := r.readExisting(ctx); ok {
		if r.log != nil {
			r.log.Info("using existing thing identity", logger.String("thingName", existing.ThingName))
		}
		return existing, nil
	}

	if r.provisioner == nil {
		return Identity{}, apierrors.WrapKind(
			errNoProvisioner, apierrors.ErrFailure, "no thing identity and no provisioner configured")
	}

	if r.log != nil {
		r.log.Info("no thing identity found, provisioning", logger.String("template", string(templateName)))
	}
	identity, err := r.provisioner.Provision(ctx, string(templateName))
	if err != nil {
		return Identity{}, apierrors.WrapKind(err, apierrors.ErrFailure, "fleet-provisioning")
	}

	if err := r.persist(ctx, identity); err != nil {
		return Identity{}, err
	}
	return identity, nil
}

func (r *Resolver) readExisting(ctx context.Context) (Identity, bool) {
	thingName, err := r.config.ReadString(ctx, keyThingName)
	if err != nil || thingName == "" {
		return Identity{}, false
	}
	rootCA, err := r.config.ReadString(ctx, keyRootCAPath)
	if err != nil || rootCA == "" {
		return Identity{}, false
	}
	certPath, err := r.config.ReadString(ctx, keyCertificatePath)
	if err != nil || certPath == "" {
		return Identity{}, false
	}
	keyPath, err := r.config.ReadString(ctx, keyPrivateKeyPath)
	if err != nil || keyPath == "" {
		return Identity{}, false
	}
	return Identity{
		ThingName:       thingName,
		RootCAPath:      rootCA,
		CertificatePath: certPath,
		PrivateKeyPath:  keyPath,
	}, true
}

func (r *Resolver) persist(ctx context.Context, identity Identity) error {
	if err := r.config.Write(ctx, keyThingName, value.StringValue(identity.ThingName), 0); err != nil {
		return apierrors.WrapKind(err, apierrors.ErrFailure, "persist thingName")
	}
	if err := r.config.Write(ctx, keyRootCAPath, value.StringValue(identity.RootCAPath), 0); err != nil {
		return apierrors.WrapKind(err, apierrors.ErrFailure, "persist rootCaPath")
	}
	if err := r.config.Write(ctx, keyCertificatePath, value.StringValue(identity.CertificatePath), 0); err != nil {
		return apierrors.WrapKind(err, apierrors.ErrFailure, "persist certificateFilePath")
	}
	if err := r.config.Write(ctx, keyPrivateKeyPath, value.StringValue(identity.PrivateKeyPath), 0); err != nil {
		return apierrors.WrapKind(err, apierrors.ErrFailure, "persist privateKeyPath")
	}
	return nil
}
