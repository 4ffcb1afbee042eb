package discovery

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
)

const (
	// ServiceType is the only service type plug-ins are looked up under.
	ServiceType   = "_http._tcp."
	DefaultDomain = "local"

	// TXT record keys published by plug-ins.
	AttrURI        = "dpfuri"
	AttrInstanceID = "instanceid"
)

var ErrNoAddress = errors.New("resolved service has no address")

// Advertisement is a service observed on the network. It is only valid for the
// duration of the event that carried it.
type Advertisement struct {
	Name   string // instance name, for logging
	Type   string // e.g. "_http._tcp."
	Domain string

	ref any // owned by the Port that produced it
}

// NewAdvertisement builds an advertisement carrying a port specific reference.
func NewAdvertisement(name, serviceType, domain string, ref any) Advertisement {
	return Advertisement{Name: name, Type: serviceType, Domain: domain, ref: ref}
}

// Ref returns the port specific reference.
func (a Advertisement) Ref() any {
	return a.ref
}

// ResolvedService is the result of resolving an Advertisement.
type ResolvedService struct {
	Name       string
	Host       string
	Port       int
	Attributes map[string][]byte
}

// Attribute returns the value of a TXT key. A key present without a value is
// reported as missing.
func (r ResolvedService) Attribute(key string) ([]byte, bool) {
	v, ok := r.Attributes[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Endpoint is the connectable address of the chosen service.
type Endpoint struct {
	Scheme string
	Host   string
	Port   int
}

// URL renders the endpoint as scheme://host:port.
func (e Endpoint) URL() string {
	return e.Scheme + "://" + net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e Endpoint) String() string {
	return e.URL()
}

// EventKind enumerates the notifications a browse session produces.
type EventKind int

const (
	DiscoveryStarted EventKind = iota
	ServiceFound
	ServiceLost
	DiscoveryStopped
	StartFailed
	StopFailed
)

func (k EventKind) String() string {
	switch k {
	case DiscoveryStarted:
		return "discovery-started"
	case ServiceFound:
		return "service-found"
	case ServiceLost:
		return "service-lost"
	case DiscoveryStopped:
		return "discovery-stopped"
	case StartFailed:
		return "start-failed"
	case StopFailed:
		return "stop-failed"
	default:
		return "unknown"
	}
}

// FailureCode qualifies StartFailed and StopFailed events.
type FailureCode int

const (
	FailureInternalError FailureCode = 0
	FailureAlreadyActive FailureCode = 3
	FailureMaxLimit      FailureCode = 4
)

// BrowseEvent is delivered on the channel returned by Port.Browse.
type BrowseEvent struct {
	Kind          EventKind
	Advertisement Advertisement // set for ServiceFound and ServiceLost
	Code          FailureCode   // set for StartFailed and StopFailed
	Err           error
}

// ResolveResult carries either a resolved service or the reason resolution failed.
type ResolveResult struct {
	Service ResolvedService
	Err     error
}

// Port is the service discovery capability the scanner depends on.
type Port interface {
	// Browse looks for services of serviceType until ctx is cancelled. The
	// returned channel is closed once browsing has ended and must be drained.
	Browse(ctx context.Context, serviceType string) (<-chan BrowseEvent, error)

	// Resolve delivers exactly one result on the returned channel.
	Resolve(ctx context.Context, ad Advertisement) <-chan ResolveResult
}

// Sink receives the endpoint chosen by a discovery session.
type Sink interface {
	LoadEndpoint(endpoint Endpoint)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(endpoint Endpoint)

func (f SinkFunc) LoadEndpoint(endpoint Endpoint) {
	f(endpoint)
}

// Registration describes a service to announce.
type Registration struct {
	Name   string
	Type   string // e.g. "_http._tcp."
	Domain string // e.g. "local"
	Port   int
	Text   map[string]string
}

// Announcer publishes a service until ctx is cancelled.
type Announcer interface {
	Announce(ctx context.Context, reg Registration) error
}

// BrowseName returns the fully qualified name used to browse serviceType,
// e.g. "_http._tcp.local.".
func BrowseName(serviceType, domain string) string {
	return qualify(serviceType) + strings.TrimSuffix(domain, ".") + "."
}

// qualify makes sure a service type carries its trailing dot.
func qualify(serviceType string) string {
	if strings.HasSuffix(serviceType, ".") {
		return serviceType
	}
	return serviceType + "."
}
