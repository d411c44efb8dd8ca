package status

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/minescope/minescope/internal/domain"
	"github.com/minescope/minescope/internal/netutil"
)

// ErrNoProbes means the fleet is empty and a distributed request cannot be
// served.
var ErrNoProbes = errors.New("no probe nodes available")

// NodeResult is one probe's contribution to a distributed response.
type NodeResult struct {
	NodeRegion string               `json:"node_region"`
	Status     *domain.ServerStatus `json:"status"`
}

// DistributedResponse aggregates every probe's result for one target.
type DistributedResponse struct {
	Target      string                `json:"target"`
	ResultCount int                   `json:"result_count"`
	Nodes       map[string]NodeResult `json:"nodes"`
}

// Distributed fans the probe out to every connected node and merges their
// results with controller-side enrichment. Returns ErrNoProbes when the
// fleet is empty.
func (o *Orchestrator) Distributed(ctx context.Context, address, protocol string) (*DistributedResponse, error) {
	snapshot := o.registry.Snapshot()
	if len(snapshot) == 0 {
		return nil, ErrNoProbes
	}

	host, port := netutil.SplitHostPort(address, netutil.DefaultJavaPort)
	isIP := netutil.IsIP(host)
	if !isIP && !netutil.PlausibleHostname(host) {
		return nil, errors.New("invalid hostname")
	}

	targetPort := port
	if protocol == domain.ProtocolBedrock && targetPort == netutil.DefaultJavaPort {
		targetPort = netutil.DefaultBedrockPort
	}

	// Enrichment and the fleet broadcast are independent; neither waits on
	// the other.
	var info *domain.IPInfo
	var results map[string]domain.TaskResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		info = o.enrichForBroadcast(gctx, host, protocol)
		return nil
	})
	g.Go(func() error {
		results = o.dispatcher.Broadcast(host, targetPort, protocol)
		return nil
	})
	_ = g.Wait()

	resp := &DistributedResponse{
		Target:      host,
		ResultCount: len(results),
		Nodes:       make(map[string]NodeResult, len(results)),
	}
	for probeID, res := range results {
		status := res.Data
		if status == nil {
			status = &domain.ServerStatus{Online: false, Error: res.Error}
		} else if !res.Success && status.Error == "" {
			status.Error = res.Error
		}
		status.Protocol = protocol
		status.IPInfo = info.Clone()

		region := "unknown"
		if sess, ok := snapshot[probeID]; ok {
			region = sess.Region
		} else if sess, ok := o.registry.Get(probeID); ok {
			region = sess.Region
		}
		resp.Nodes[probeID] = NodeResult{NodeRegion: region, Status: status}
	}
	return resp, nil
}

// enrichForBroadcast runs the same resolver/GeoIP chain as a direct probe
// but never pings; a failed resolution just leaves the info sparse.
func (o *Orchestrator) enrichForBroadcast(ctx context.Context, host, protocol string) *domain.IPInfo {
	if netutil.IsIP(host) {
		return o.buildIPInfo(ctx, host, host, nil)
	}

	var srv *domain.SRVRecord
	if protocol == domain.ProtocolJava {
		srv = o.resolver.ResolveService(ctx, host)
	}

	connectHost := host
	if srv != nil {
		connectHost = srv.Target
	}
	ip := o.resolver.ResolveIP(ctx, connectHost)
	if ip == "" {
		// Still collect whatever chain exists.
		return &domain.IPInfo{
			SRVRecord:  srv,
			DNSRecords: o.resolver.CollectRecords(ctx, host, srv),
		}
	}
	return o.buildIPInfo(ctx, host, ip, srv)
}
