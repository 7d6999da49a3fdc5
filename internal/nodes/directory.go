package nodes

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/EternisAI/netmeasure/internal/gateway"
	"github.com/EternisAI/netmeasure/internal/httpagent"
	"github.com/EternisAI/netmeasure/internal/probe"
)

var ErrNodeNotFound = errors.New("node not found")

// Info describes a node for listings.
type Info struct {
	Name        string          `json:"name"`
	Transport   probe.Transport `json:"transport"`
	Description string          `json:"description"`
	ConnectedAt *time.Time      `json:"connected_at,omitempty"`
	LastSeen    *time.Time      `json:"last_seen,omitempty"`
}

// Directory resolves node names across the static HTTP nodes and the
// persistent nodes currently connected. A connected persistent node shadows
// an HTTP node of the same name.
type Directory struct {
	http       map[string]*httpagent.Agent
	persistent *gateway.Registry
}

func NewDirectory(static []*httpagent.Agent, persistent *gateway.Registry) *Directory {
	d := &Directory{
		http:       make(map[string]*httpagent.Agent, len(static)),
		persistent: persistent,
	}
	for _, a := range static {
		d.http[a.Name()] = a
	}
	return d
}

// FromConfig builds the HTTP agents described in configuration.
func FromConfig(cfgs []httpagent.Config) []*httpagent.Agent {
	agents := make([]*httpagent.Agent, 0, len(cfgs))
	for _, cfg := range cfgs {
		agents = append(agents, httpagent.New(cfg, nil))
	}
	return agents
}

func (d *Directory) Lookup(name string) (probe.Agent, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if d.persistent != nil {
		if a, ok := d.persistent.Get(name); ok {
			return a, nil
		}
	}
	if a, ok := d.http[name]; ok {
		return a, nil
	}
	return nil, ErrNodeNotFound
}

// List returns persistent nodes first, then HTTP nodes, each sorted by name.
func (d *Directory) List() []Info {
	var out []Info
	if d.persistent != nil {
		for _, a := range d.persistent.List() {
			connected, seen := a.ConnectedAt(), a.LastSeen()
			out = append(out, Info{
				Name:        a.Name(),
				Transport:   a.Transport(),
				Description: a.Description(),
				ConnectedAt: &connected,
				LastSeen:    &seen,
			})
		}
	}

	static := make([]Info, 0, len(d.http))
	for _, a := range d.http {
		static = append(static, Info{
			Name:        a.Name(),
			Transport:   a.Transport(),
			Description: a.Description(),
		})
	}
	sort.Slice(static, func(i, j int) bool { return static[i].Name < static[j].Name })

	return append(out, static...)
}
