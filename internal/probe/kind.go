package probe

import (
	"fmt"
	"strings"
)

// Kind identifies one of the diagnostic operations a node can run. The
// numeric value is the code carried in the persistent transport frame header.
type Kind uint32

const (
	KindResolve Kind = iota
	KindPing
	KindTCPing
	KindMTR
	KindSpeed
)

var kindNames = [...]string{
	KindResolve: "resolve",
	KindPing:     "ping",
	KindTCPing:   "tcping",
	KindMTR:      "mtr",
	KindSpeed:    "speed",
}

func (k Kind) String() string {
	if k.Valid() {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint32(k))
}

func (k Kind) Valid() bool {
	return k <= KindSpeed
}

// Path is the HTTP endpoint suffix used by HTTP nodes for this kind.
func (k Kind) Path() string {
	return "/api/" + k.String()
}

func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown probe kind %q", s)
}

// Transport is how an agent is reached.
type Transport string

const (
	TransportHTTP       Transport = "http"
	TransportPersistent Transport = "persistent"
)
