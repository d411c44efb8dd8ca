package status

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minescope/minescope/internal/domain"
	"github.com/minescope/minescope/internal/logger"
	"github.com/minescope/minescope/internal/probes"
)

type fakeResolver struct {
	srv     map[string]*domain.SRVRecord
	ips     map[string]string
	records []domain.DNSRecord

	srvQueried []string
}

func (f *fakeResolver) ResolveService(_ context.Context, host string) *domain.SRVRecord {
	f.srvQueried = append(f.srvQueried, host)
	return f.srv[host]
}

func (f *fakeResolver) ResolveIP(_ context.Context, host string) string {
	if net.ParseIP(host) != nil {
		return host
	}
	if ip, ok := f.ips[host]; ok {
		return ip
	}
	return ""
}

func (f *fakeResolver) CollectRecords(_ context.Context, _ string, _ *domain.SRVRecord) []domain.DNSRecord {
	return f.records
}

type fakeJava struct {
	ip       string
	port     uint16
	hostname string
	called   bool
	result   *domain.ServerStatus
}

func (f *fakeJava) Ping(_ context.Context, ip string, port uint16, hostname string) *domain.ServerStatus {
	f.called = true
	f.ip, f.port, f.hostname = ip, port, hostname
	if f.result != nil {
		return f.result
	}
	return &domain.ServerStatus{Online: true}
}

type fakeBedrock struct {
	ip     string
	port   uint16
	called bool
}

func (f *fakeBedrock) Ping(_ context.Context, ip string, port uint16) *domain.ServerStatus {
	f.called = true
	f.ip, f.port = ip, port
	return &domain.ServerStatus{Online: true}
}

type fakeBroadcaster struct {
	target   string
	port     uint16
	protocol string
	results  map[string]domain.TaskResult
}

func (f *fakeBroadcaster) Broadcast(target string, port uint16, protocol string) map[string]domain.TaskResult {
	f.target, f.port, f.protocol = target, port, protocol
	return f.results
}

type fakeFleet map[string]*probes.Session

func (f fakeFleet) Snapshot() map[string]*probes.Session {
	out := make(map[string]*probes.Session, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

func (f fakeFleet) Get(id string) (*probes.Session, bool) {
	s, ok := f[id]
	return s, ok
}

func newDirectOrchestrator(res Resolver, java JavaPinger, bedrock BedrockPinger) *Orchestrator {
	return New(res, nil, java, bedrock, nil, nil, logger.New("error", false), nil)
}

func TestDirectJavaSRVIndirection(t *testing.T) {
	res := &fakeResolver{
		srv: map[string]*domain.SRVRecord{
			"play.example.com": {Target: "mc01.example.net", Port: 25580},
		},
		ips: map[string]string{"mc01.example.net": "203.0.113.5"},
		records: []domain.DNSRecord{
			{Hostname: "_minecraft._tcp.play.example.com", Type: "SRV", Data: "1 1 25580 mc01.example.net"},
			{Hostname: "mc01.example.net", Type: "A", Data: "203.0.113.5"},
		},
	}
	java := &fakeJava{}
	o := newDirectOrchestrator(res, java, &fakeBedrock{})

	status := o.Direct(context.Background(), "play.example.com", domain.ProtocolJava)

	// The connection goes to the SRV target; the handshake keeps the
	// user-supplied hostname.
	require.True(t, java.called)
	assert.Equal(t, "203.0.113.5", java.ip)
	assert.Equal(t, uint16(25580), java.port)
	assert.Equal(t, "play.example.com", java.hostname)

	assert.True(t, status.Online)
	assert.Equal(t, "play.example.com", status.Host)
	assert.Equal(t, uint16(25580), status.Port)
	assert.Equal(t, domain.ProtocolJava, status.Protocol)
	require.NotNil(t, status.IPInfo)
	assert.Equal(t, "203.0.113.5", status.IPInfo.IP)
	require.NotNil(t, status.IPInfo.SRVRecord)
	assert.Equal(t, "mc01.example.net", status.IPInfo.SRVRecord.Target)
	assert.Equal(t, []string{"203.0.113.5"}, status.IPInfo.IPs)
}

func TestDirectBedrockDefaultPortSubstitution(t *testing.T) {
	res := &fakeResolver{ips: map[string]string{"bedrock.example.com": "198.51.100.7"}}
	bedrock := &fakeBedrock{}
	o := newDirectOrchestrator(res, &fakeJava{}, bedrock)

	status := o.Direct(context.Background(), "bedrock.example.com", domain.ProtocolBedrock)

	require.True(t, bedrock.called)
	assert.Equal(t, uint16(19132), bedrock.port)
	assert.Equal(t, uint16(19132), status.Port)
	// Bedrock never consults SRV.
	assert.Empty(t, res.srvQueried)
}

func TestDirectBedrockExplicitPortKept(t *testing.T) {
	res := &fakeResolver{ips: map[string]string{"bedrock.example.com": "198.51.100.7"}}
	bedrock := &fakeBedrock{}
	o := newDirectOrchestrator(res, &fakeJava{}, bedrock)

	status := o.Direct(context.Background(), "bedrock.example.com:19200", domain.ProtocolBedrock)
	assert.Equal(t, uint16(19200), bedrock.port)
	assert.Equal(t, uint16(19200), status.Port)
}

func TestDirectInvalidHostnameFastFails(t *testing.T) {
	java := &fakeJava{}
	o := newDirectOrchestrator(&fakeResolver{}, java, &fakeBedrock{})

	status := o.Direct(context.Background(), "ab", domain.ProtocolJava)
	assert.False(t, status.Online)
	assert.Equal(t, "Invalid hostname", status.Error)
	assert.False(t, java.called)
}

func TestDirectDNSFailureSkipsPing(t *testing.T) {
	java := &fakeJava{}
	o := newDirectOrchestrator(&fakeResolver{}, java, &fakeBedrock{})

	status := o.Direct(context.Background(), "gone.example.com", domain.ProtocolJava)
	assert.False(t, status.Online)
	assert.Equal(t, "DNS resolution failed for gone.example.com", status.Error)
	assert.False(t, java.called)
}

func TestDirectIPLiteralSkipsResolution(t *testing.T) {
	res := &fakeResolver{}
	java := &fakeJava{}
	o := newDirectOrchestrator(res, java, &fakeBedrock{})

	status := o.Direct(context.Background(), "203.0.113.9:25570", domain.ProtocolJava)
	require.True(t, java.called)
	assert.Equal(t, "203.0.113.9", java.ip)
	assert.Equal(t, uint16(25570), java.port)
	assert.Empty(t, res.srvQueried)
	assert.True(t, status.Online)
}

func TestDistributedNoProbes(t *testing.T) {
	o := New(&fakeResolver{}, nil, &fakeJava{}, &fakeBedrock{},
		&fakeBroadcaster{}, fakeFleet{}, logger.New("error", false), nil)

	_, err := o.Distributed(context.Background(), "mc.example.com", domain.ProtocolJava)
	assert.ErrorIs(t, err, ErrNoProbes)
}

func TestDistributedMergesMixedOutcomes(t *testing.T) {
	fleet := fakeFleet{
		"p1": {ID: "p1", Region: "us-west"},
		"p2": {ID: "p2", Region: "eu-central"},
	}
	broadcaster := &fakeBroadcaster{
		results: map[string]domain.TaskResult{
			"p1": {ID: "t1", Success: true, Data: &domain.ServerStatus{Online: true}},
			"p2": {ID: "t2", Success: false, Error: "Task timeout"},
		},
	}
	res := &fakeResolver{
		ips: map[string]string{"mc.example.com": "203.0.113.5"},
		records: []domain.DNSRecord{
			{Hostname: "mc.example.com", Type: "A", Data: "203.0.113.5"},
		},
	}
	o := New(res, nil, &fakeJava{}, &fakeBedrock{}, broadcaster, fleet,
		logger.New("error", false), nil)

	resp, err := o.Distributed(context.Background(), "mc.example.com", domain.ProtocolJava)
	require.NoError(t, err)

	assert.Equal(t, "mc.example.com", resp.Target)
	assert.Equal(t, 2, resp.ResultCount)
	require.Len(t, resp.Nodes, 2)

	p1 := resp.Nodes["p1"]
	assert.Equal(t, "us-west", p1.NodeRegion)
	assert.True(t, p1.Status.Online)
	assert.Equal(t, domain.ProtocolJava, p1.Status.Protocol)

	p2 := resp.Nodes["p2"]
	assert.Equal(t, "eu-central", p2.NodeRegion)
	assert.False(t, p2.Status.Online)
	assert.Equal(t, "Task timeout", p2.Status.Error)

	// Both nodes carry the controller-side enrichment, as independent
	// copies.
	require.NotNil(t, p1.Status.IPInfo)
	require.NotNil(t, p2.Status.IPInfo)
	assert.Equal(t, p1.Status.IPInfo.DNSRecords, p2.Status.IPInfo.DNSRecords)
	p1.Status.IPInfo.IP = "mutated"
	assert.NotEqual(t, p1.Status.IPInfo.IP, p2.Status.IPInfo.IP)

	// The broadcast used the original host and the java default port.
	assert.Equal(t, "mc.example.com", broadcaster.target)
	assert.Equal(t, uint16(25565), broadcaster.port)
}

func TestDistributedBedrockPortSubstitution(t *testing.T) {
	fleet := fakeFleet{"p1": {ID: "p1", Region: "us-west"}}
	broadcaster := &fakeBroadcaster{results: map[string]domain.TaskResult{
		"p1": {ID: "t1", Success: true, Data: &domain.ServerStatus{Online: true}},
	}}
	o := New(&fakeResolver{ips: map[string]string{"mc.example.com": "203.0.113.5"}},
		nil, &fakeJava{}, &fakeBedrock{}, broadcaster, fleet,
		logger.New("error", false), nil)

	_, err := o.Distributed(context.Background(), "mc.example.com", domain.ProtocolBedrock)
	require.NoError(t, err)
	assert.Equal(t, uint16(19132), broadcaster.port)
}
