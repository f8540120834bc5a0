package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryRetrieveComponentStatus(t *testing.T) {
	r := NewRegistry()
	m := NewMachine()
	m.Init()
	r.Register("com.example.Sample", m)

	assert.Equal(t, ReportNew, r.RetrieveComponentStatus("com.example.Sample"))
	assert.Equal(t, ReportUnknown, r.RetrieveComponentStatus("missing"))

	r.Unregister("com.example.Sample")
	assert.Equal(t, ReportUnknown, r.RetrieveComponentStatus("com.example.Sample"))
}
