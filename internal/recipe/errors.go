package recipe

import (
	"fmt"

	apierrors "github.com/edgecore/edgeagentd/internal/errors"
)

func errNoManifestMatch(os, arch string) error {
	return apierrors.WrapKind(fmt.Errorf("no manifest matches os=%q arch=%q", os, arch), apierrors.ErrInvalid, "select manifest")
}

func errNoLifecycleForSelection(os, arch string) error {
	return apierrors.WrapKind(fmt.Errorf("no manifest's lifecycle or selections resolved for os=%q arch=%q", os, arch), apierrors.ErrInvalid, "select manifest")
}
