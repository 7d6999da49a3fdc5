package nodes

import (
	"testing"

	"github.com/EternisAI/netmeasure/internal/gateway"
	"github.com/EternisAI/netmeasure/internal/httpagent"
	"github.com/EternisAI/netmeasure/internal/probe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDirectory() *Directory {
	static := FromConfig([]httpagent.Config{
		{Name: "sg", Endpoint: "http://sg.example", Key: "k1", Description: "Singapore"},
		{Name: "fj", Endpoint: "http://fj.example", Key: "k2", Description: "Fujian"},
	})
	return NewDirectory(static, gateway.NewRegistry())
}

func TestDirectory_LookupIsCaseInsensitive(t *testing.T) {
	d := testDirectory()

	a, err := d.Lookup(" fj ")
	require.NoError(t, err)
	assert.Equal(t, "FJ", a.Name())
	assert.Equal(t, probe.TransportHTTP, a.Transport())
}

func TestDirectory_LookupUnknown(t *testing.T) {
	d := testDirectory()

	_, err := d.Lookup("mars")
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestDirectory_List(t *testing.T) {
	d := testDirectory()

	list := d.List()
	require.Len(t, list, 2)
	assert.Equal(t, "FJ", list[0].Name)
	assert.Equal(t, "Fujian", list[0].Description)
	assert.Equal(t, "SG", list[1].Name)
	assert.Nil(t, list[1].ConnectedAt)
}

func TestDirectory_NilRegistry(t *testing.T) {
	d := NewDirectory(nil, nil)

	assert.Empty(t, d.List())
	_, err := d.Lookup("FJ")
	assert.ErrorIs(t, err, ErrNodeNotFound)
}
