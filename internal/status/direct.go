// Package status composes the resolver, GeoIP service, codecs, and task
// dispatcher into the two API-facing orchestrations: a controller-side
// direct probe and a fleet-wide distributed probe.
package status

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/minescope/minescope/internal/domain"
	"github.com/minescope/minescope/internal/logger"
	"github.com/minescope/minescope/internal/metrics"
	"github.com/minescope/minescope/internal/netutil"
	"github.com/minescope/minescope/internal/probes"
)

// Resolver is the DNS surface the orchestrator needs.
type Resolver interface {
	ResolveService(ctx context.Context, host string) *domain.SRVRecord
	ResolveIP(ctx context.Context, host string) string
	CollectRecords(ctx context.Context, host string, srv *domain.SRVRecord) []domain.DNSRecord
}

// Geo answers GeoIP enrichment lookups.
type Geo interface {
	Location(ip string) *domain.Location
	ASN(ip string) *domain.ASN
}

// JavaPinger probes a Java Edition server.
type JavaPinger interface {
	Ping(ctx context.Context, ip string, port uint16, hostname string) *domain.ServerStatus
}

// BedrockPinger probes a Bedrock Edition server.
type BedrockPinger interface {
	Ping(ctx context.Context, ip string, port uint16) *domain.ServerStatus
}

// Broadcaster fans one task out to the whole fleet.
type Broadcaster interface {
	Broadcast(target string, port uint16, protocol string) map[string]domain.TaskResult
}

// Fleet exposes the probe sessions the distributed path reads.
type Fleet interface {
	Snapshot() map[string]*probes.Session
	Get(id string) (*probes.Session, bool)
}

// Orchestrator answers status requests.
type Orchestrator struct {
	resolver   Resolver
	geo        Geo
	java       JavaPinger
	bedrock    BedrockPinger
	dispatcher Broadcaster
	registry   Fleet
	log        logger.Logger
	collector  *metrics.Collector
}

// New wires an orchestrator. geo and collector may be nil.
func New(
	res Resolver,
	geo Geo,
	java JavaPinger,
	bedrock BedrockPinger,
	dispatcher Broadcaster,
	registry Fleet,
	log logger.Logger,
	collector *metrics.Collector,
) *Orchestrator {
	return &Orchestrator{
		resolver:   res,
		geo:        geo,
		java:       java,
		bedrock:    bedrock,
		dispatcher: dispatcher,
		registry:   registry,
		log:        log,
		collector:  collector,
	}
}

// Direct probes the target from the controller itself and returns the
// enriched status document.
func (o *Orchestrator) Direct(ctx context.Context, address, protocol string) *domain.ServerStatus {
	host, port := netutil.SplitHostPort(address, netutil.DefaultJavaPort)
	isIP := netutil.IsIP(host)

	if !isIP && !netutil.PlausibleHostname(host) {
		return &domain.ServerStatus{Online: false, Host: host, Port: port, Protocol: protocol, Error: "Invalid hostname"}
	}

	// A Java SRV record redirects both target and port; the original
	// hostname is still what goes into the handshake.
	connectHost := host
	var srv *domain.SRVRecord
	if protocol == domain.ProtocolJava && !isIP {
		if srv = o.resolver.ResolveService(ctx, host); srv != nil {
			connectHost = srv.Target
			port = srv.Port
		}
	}

	connectPort := port
	if protocol == domain.ProtocolBedrock && connectPort == netutil.DefaultJavaPort {
		connectPort = netutil.DefaultBedrockPort
	}

	ip := o.resolver.ResolveIP(ctx, connectHost)
	if ip == "" {
		return &domain.ServerStatus{
			Online:   false,
			Host:     host,
			Port:     connectPort,
			Protocol: protocol,
			Error:    "DNS resolution failed for " + connectHost,
		}
	}

	// Enrichment and the ping itself are independent; run them together.
	var info *domain.IPInfo
	var result *domain.ServerStatus
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		info = o.buildIPInfo(gctx, host, ip, srv)
		return nil
	})
	g.Go(func() error {
		if o.collector != nil {
			o.collector.RecordPing(protocol)
		}
		if protocol == domain.ProtocolBedrock {
			result = o.bedrock.Ping(gctx, ip, connectPort)
		} else {
			result = o.java.Ping(gctx, ip, connectPort, host)
		}
		return nil
	})
	_ = g.Wait()

	result.Host = host
	result.Port = connectPort
	result.Protocol = protocol
	result.IPInfo = info
	return result
}

// buildIPInfo collects the DNS chain for the original host and layers GeoIP
// data on top. Failures leave fields absent; enrichment never blocks a
// probe.
func (o *Orchestrator) buildIPInfo(ctx context.Context, host, primaryIP string, srv *domain.SRVRecord) *domain.IPInfo {
	info := &domain.IPInfo{
		IP:        primaryIP,
		SRVRecord: srv,
	}
	info.DNSRecords = o.resolver.CollectRecords(ctx, host, srv)

	seenIP := make(map[string]bool)
	for _, rec := range info.DNSRecords {
		if rec.Type != "A" && rec.Type != "AAAA" {
			continue
		}
		if seenIP[rec.Data] {
			continue
		}
		seenIP[rec.Data] = true
		info.IPs = append(info.IPs, rec.Data)
	}

	if o.geo != nil {
		seenASN := make(map[uint]bool)
		lookups := info.IPs
		if len(lookups) == 0 {
			lookups = []string{primaryIP}
		}
		for _, ip := range lookups {
			if asn := o.geo.ASN(ip); asn != nil && !seenASN[asn.Number] {
				seenASN[asn.Number] = true
				info.ASN = append(info.ASN, asn)
			}
		}
		info.Location = o.geo.Location(primaryIP)
	}
	return info
}
