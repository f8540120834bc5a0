package agent

import (
	"fmt"

	apierrors "github.com/edgecore/edgeagentd/internal/errors"
)

func errNoRecipeFile(dir string) error {
	return apierrors.WrapKind(fmt.Errorf("no recipe document found in %s", dir), apierrors.ErrNoEntry, "load deployment recipe")
}
