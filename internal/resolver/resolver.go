// Package resolver performs the DNS work behind status lookups: service
// record discovery, address resolution for connecting, and recursive record
// collection for enrichment.
package resolver

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/sync/errgroup"

	"github.com/minescope/minescope/internal/domain"
	"github.com/minescope/minescope/internal/logger"
	"github.com/minescope/minescope/internal/netutil"
)

// DefaultQueryTimeout caps every individual DNS query.
const DefaultQueryTimeout = 3 * time.Second

const srvService = "_minecraft._tcp."

// exchangeFunc issues one DNS query. Swappable for tests.
type exchangeFunc func(ctx context.Context, msg *dns.Msg) (*dns.Msg, error)

// Resolver wraps a DNS client configured from the system resolver. All
// lookups are best-effort: failures and timeouts yield empty results, never
// errors, so orchestration latency stays bounded.
type Resolver struct {
	client   *dns.Client
	servers  []string
	timeout  time.Duration
	log      logger.Logger
	exchange exchangeFunc
}

// New builds a Resolver using the nameservers from /etc/resolv.conf, falling
// back to well-known public resolvers when the file is unreadable.
func New(log logger.Logger, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}

	var servers []string
	if conf, err := dns.ClientConfigFromFile("/etc/resolv.conf"); err == nil {
		for _, s := range conf.Servers {
			servers = append(servers, net.JoinHostPort(s, conf.Port))
		}
	}
	if len(servers) == 0 {
		servers = []string{"1.1.1.1:53", "8.8.8.8:53"}
	}

	r := &Resolver{
		client:  &dns.Client{Timeout: timeout},
		servers: servers,
		timeout: timeout,
		log:     log,
	}
	r.exchange = r.exchangeUpstream
	return r
}

func (r *Resolver) exchangeUpstream(ctx context.Context, msg *dns.Msg) (*dns.Msg, error) {
	var lastErr error
	for _, server := range r.servers {
		in, _, err := r.client.ExchangeContext(ctx, msg, server)
		if err == nil {
			return in, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// query returns the answer records for one (name, type) question, or nil on
// any failure or timeout.
func (r *Resolver) query(ctx context.Context, name string, qtype uint16) []dns.RR {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)
	msg.RecursionDesired = true

	in, err := r.exchange(ctx, msg)
	if err != nil {
		r.log.Debugf("dns query %s %s failed: %v", dns.TypeToString[qtype], name, err)
		return nil
	}
	if in == nil || in.Rcode != dns.RcodeSuccess {
		return nil
	}

	// Only answers matching the question type count; recursive resolvers
	// may stuff CNAME chains into A answers.
	var out []dns.RR
	for _, rr := range in.Answer {
		if rr.Header().Rrtype == qtype {
			out = append(out, rr)
		}
	}
	return out
}

// ResolveService queries the minecraft SRV record for host and returns the
// first record, or nil when absent. Priority and weight are ignored.
func (r *Resolver) ResolveService(ctx context.Context, host string) *domain.SRVRecord {
	for _, rr := range r.query(ctx, srvService+host, dns.TypeSRV) {
		if srv, ok := rr.(*dns.SRV); ok {
			return &domain.SRVRecord{
				Target: strings.TrimSuffix(srv.Target, "."),
				Port:   srv.Port,
			}
		}
	}
	return nil
}

// ResolveIP finds one address to connect to. IP literals pass through
// unchanged; otherwise A and AAAA are queried in parallel and the first A
// answer wins over the first AAAA. Returns "" when nothing resolves.
func (r *Resolver) ResolveIP(ctx context.Context, host string) string {
	if netutil.IsIP(host) {
		return host
	}

	var v4, v6 string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for _, rr := range r.query(gctx, host, dns.TypeA) {
			if a, ok := rr.(*dns.A); ok {
				v4 = a.A.String()
				break
			}
		}
		return nil
	})
	g.Go(func() error {
		for _, rr := range r.query(gctx, host, dns.TypeAAAA) {
			if aaaa, ok := rr.(*dns.AAAA); ok {
				v6 = aaaa.AAAA.String()
				break
			}
		}
		return nil
	})
	_ = g.Wait()

	if v4 != "" {
		return v4
	}
	return v6
}

// CollectRecords walks the DNS chain for host and returns every record
// involved in resolving it. When srv is non-nil its record line is pushed
// first and its target chain is walked before the original host. A visited
// set guards against CNAME loops.
func (r *Resolver) CollectRecords(ctx context.Context, host string, srv *domain.SRVRecord) []domain.DNSRecord {
	var records []domain.DNSRecord
	visited := make(map[string]bool)

	if srv != nil {
		records = append(records, domain.DNSRecord{
			Hostname: srvService + host,
			Type:     "SRV",
			Data:     fmt.Sprintf("1 1 %d %s", srv.Port, srv.Target),
		})
		r.collect(ctx, srv.Target, visited, &records)
	}
	r.collect(ctx, host, visited, &records)
	return records
}

func (r *Resolver) collect(ctx context.Context, host string, visited map[string]bool, records *[]domain.DNSRecord) {
	if host == "" || visited[host] || netutil.IsIP(host) {
		return
	}
	visited[host] = true

	// A CNAME alias defers entirely to its target; the aliased name is not
	// also queried for addresses in the same pass.
	for _, rr := range r.query(ctx, host, dns.TypeCNAME) {
		if cname, ok := rr.(*dns.CNAME); ok {
			target := strings.TrimSuffix(cname.Target, ".")
			*records = append(*records, domain.DNSRecord{
				Hostname: host,
				Type:     "CNAME",
				Data:     target,
			})
			r.collect(ctx, target, visited, records)
			return
		}
	}

	for _, rr := range r.query(ctx, host, dns.TypeA) {
		if a, ok := rr.(*dns.A); ok {
			*records = append(*records, domain.DNSRecord{
				Hostname: host,
				Type:     "A",
				Data:     a.A.String(),
			})
		}
	}
	for _, rr := range r.query(ctx, host, dns.TypeAAAA) {
		if aaaa, ok := rr.(*dns.AAAA); ok {
			*records = append(*records, domain.DNSRecord{
				Hostname: host,
				Type:     "AAAA",
				Data:     aaaa.AAAA.String(),
			})
		}
	}
}
