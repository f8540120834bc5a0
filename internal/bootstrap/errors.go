package bootstrap

import "errors"

var errNoProvisioner = errors.New("no thing identity present and no provisioner configured")
