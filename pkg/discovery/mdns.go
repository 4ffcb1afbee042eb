package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/brutella/dnssd"
	dnssdlog "github.com/brutella/dnssd/log"
)

// MDNSAdapter implements Port and Announcer on top of brutella/dnssd.
type MDNSAdapter struct {
	Domain string
}

// NewMDNSAdapter returns an adapter for the local domain with the library's
// own loggers silenced.
func NewMDNSAdapter() *MDNSAdapter {
	dnssdlog.Info.SetOutput(io.Discard)
	dnssdlog.Debug.SetOutput(io.Discard)
	return &MDNSAdapter{Domain: DefaultDomain}
}

func (m *MDNSAdapter) domain() string {
	if m.Domain == "" {
		return DefaultDomain
	}
	return m.Domain
}

func (m *MDNSAdapter) Announce(ctx context.Context, reg Registration) error {
	domain := reg.Domain
	if domain == "" {
		domain = m.domain()
	}

	cfg := dnssd.Config{
		Name:   reg.Name,
		Type:   strings.TrimSuffix(reg.Type, "."),
		Domain: domain,
		// mdns will multicast to ip address, so we can leave it nil
		IPs:  nil,
		Text: reg.Text,
		Port: reg.Port,
	}

	service, err := dnssd.NewService(cfg)
	if err != nil {
		return fmt.Errorf("failed to create mDNS service: %w", err)
	}

	rp, err := dnssd.NewResponder()
	if err != nil {
		return fmt.Errorf("failed to create mDNS responder: %w", err)
	}

	if _, err = rp.Add(service); err != nil {
		return fmt.Errorf("failed to add mDNS service: %w", err)
	}

	if err = rp.Respond(ctx); err != nil {
		// Context cancellation is not an error in normal operation
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("failed to respond to mDNS service: %w", err)
	}

	slog.Info("mDNS announcement stopped", "name", reg.Name)
	return nil
}

// Browse runs a dnssd lookup for serviceType. The browse entries travel as the
// advertisements' opaque reference and are turned into ResolvedService by Resolve.
func (m *MDNSAdapter) Browse(ctx context.Context, serviceType string) (<-chan BrowseEvent, error) {
	if serviceType == "" {
		return nil, errors.New("empty service type")
	}
	outCh := make(chan BrowseEvent, 10)
	name := BrowseName(serviceType, m.domain())

	send := func(ev BrowseEvent) {
		select {
		case outCh <- ev:
		case <-ctx.Done():
		}
	}

	addFn := func(e dnssd.BrowseEntry) {
		send(BrowseEvent{Kind: ServiceFound, Advertisement: advertisementFromEntry(e)})
	}

	rmvFn := func(e dnssd.BrowseEntry) {
		send(BrowseEvent{Kind: ServiceLost, Advertisement: advertisementFromEntry(e)})
	}

	go func() {
		defer close(outCh)
		send(BrowseEvent{Kind: DiscoveryStarted})
		err := dnssd.LookupType(ctx, name, addFn, rmvFn)
		if err != nil && ctx.Err() == nil {
			// The lookup ended on its own, so the session never got going.
			outCh <- BrowseEvent{Kind: StartFailed, Code: FailureInternalError, Err: fmt.Errorf("mDNS lookup failed: %w", err)}
			return
		}
		outCh <- BrowseEvent{Kind: DiscoveryStopped}
	}()

	return outCh, nil
}

func (m *MDNSAdapter) Resolve(ctx context.Context, ad Advertisement) <-chan ResolveResult {
	resCh := make(chan ResolveResult, 1)

	if err := ctx.Err(); err != nil {
		resCh <- ResolveResult{Err: err}
		return resCh
	}

	entry, ok := ad.Ref().(dnssd.BrowseEntry)
	if !ok {
		resCh <- ResolveResult{Err: fmt.Errorf("advertisement %q was not produced by the mDNS adapter", ad.Name)}
		return resCh
	}

	resolved, err := resolvedFromEntry(entry)
	resCh <- ResolveResult{Service: resolved, Err: err}
	return resCh
}

func advertisementFromEntry(e dnssd.BrowseEntry) Advertisement {
	return NewAdvertisement(e.Name, qualify(e.Type), e.Domain, e)
}

func resolvedFromEntry(e dnssd.BrowseEntry) (ResolvedService, error) {
	host := ""
	for _, ip := range e.IPs {
		if ip.To4() != nil {
			host = ip.String()
			break
		}
	}
	if host == "" && len(e.IPs) > 0 {
		host = e.IPs[0].String()
	}
	if host == "" {
		host = strings.TrimSuffix(e.Host, ".")
	}
	if host == "" {
		return ResolvedService{}, fmt.Errorf("resolve %q: %w", e.Name, ErrNoAddress)
	}

	attrs := make(map[string][]byte, len(e.Text))
	for k, v := range e.Text {
		attrs[k] = []byte(v)
	}

	return ResolvedService{
		Name:       e.Name,
		Host:       host,
		Port:       e.Port,
		Attributes: attrs,
	}, nil
}
