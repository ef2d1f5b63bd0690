// Package registry discovers pose backends announced under a domain.
package registry

const (
	WildcardDomain = "*"
	DefaultDomain  = "yogavision"
)

type Registry interface {
	Init() error
	ListServices(...ListOption) ([]*Service, error)
	Watch(...WatchOption) error
	Options() Options
	Release() error
	String() string
}

// Service is one backend instance. Addr is the Socket.IO base address,
// e.g. http://10.0.0.7:5000.
type Service struct {
	ID       string            `json:"id"`
	Addr     string            `json:"addr"`
	Version  string            `json:"version,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type EventType int

const (
	Create EventType = iota
	Delete
	Update
)

func (t EventType) String() string {
	switch t {
	case Create:
		return "create"
	case Delete:
		return "delete"
	default:
		return "update"
	}
}

type Event struct {
	Type    EventType
	Service *Service
}
