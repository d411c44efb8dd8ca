package ping

import (
	"context"
	"encoding/binary"
	"math/rand"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/minescope/minescope/internal/domain"
	"github.com/minescope/minescope/internal/motd"
	"github.com/minescope/minescope/internal/netutil"
)

// DefaultBedrockTimeout bounds one ping/pong round trip.
const DefaultBedrockTimeout = 3 * time.Second

const (
	idUnconnectedPing byte = 0x01
	idUnconnectedPong byte = 0x1C

	// Header + timestamp + server GUID + magic must precede the string.
	minPongLen = 1 + 8 + 8 + 16 + 2
)

// offlineMessageID is the fixed RakNet magic marking offline messages.
var offlineMessageID = [16]byte{
	0x00, 0xFF, 0xFF, 0x00, 0xFE, 0xFE, 0xFE, 0xFE,
	0xFD, 0xFD, 0xFD, 0xFD, 0x12, 0x34, 0x56, 0x78,
}

// BedrockPinger performs Bedrock Edition unconnected pings.
type BedrockPinger struct {
	Timeout time.Duration
	// MaxRetries resends the ping after a timeout. A lost datagram on a
	// closed port is indistinguishable from offline, so the default is 0.
	MaxRetries int
}

// NewBedrockPinger returns a pinger with the given round-trip timeout, or
// the default when zero.
func NewBedrockPinger(timeout time.Duration) *BedrockPinger {
	if timeout <= 0 {
		timeout = DefaultBedrockTimeout
	}
	return &BedrockPinger{Timeout: timeout}
}

// Ping sends UNCONNECTED_PING to ip:port and parses the pong. The socket is
// connected so that ICMP port-unreachable surfaces as a read error instead
// of a silent timeout.
func (p *BedrockPinger) Ping(ctx context.Context, ip string, port uint16) *domain.ServerStatus {
	offline := func(msg string) *domain.ServerStatus {
		return &domain.ServerStatus{Online: false, Error: msg}
	}

	network := "udp"
	if netutil.IsIPv4(ip) {
		network = "udp4"
	}
	raddr, err := net.ResolveUDPAddr(network, netutil.FormatHostPort(ip, port))
	if err != nil {
		return offline(err.Error())
	}
	conn, err := net.DialUDP(network, nil, raddr)
	if err != nil {
		return offline(err.Error())
	}
	defer func() { _ = conn.Close() }()

	var lastErr string
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return offline("timeout")
		}

		status, errMsg, retryable := p.exchange(conn)
		if status != nil {
			return status
		}
		lastErr = errMsg
		if !retryable {
			break
		}
	}
	return offline(lastErr)
}

func (p *BedrockPinger) exchange(conn *net.UDPConn) (*domain.ServerStatus, string, bool) {
	_ = conn.SetDeadline(time.Now().Add(p.Timeout))

	if _, err := conn.Write(buildUnconnectedPing()); err != nil {
		return nil, err.Error(), false
	}

	buf := make([]byte, 2048)
	n, err := conn.Read(buf)
	if err != nil {
		if isTimeout(err) {
			return nil, "timeout", true
		}
		return nil, err.Error(), false
	}

	status, err := parseUnconnectedPong(buf[:n])
	if err != nil {
		return nil, err.Error(), false
	}
	return status, "", false
}

func buildUnconnectedPing() []byte {
	pkt := make([]byte, 0, 33)
	pkt = append(pkt, idUnconnectedPing)
	pkt = binary.BigEndian.AppendUint64(pkt, uint64(time.Now().UnixMilli()))
	pkt = append(pkt, offlineMessageID[:]...)
	pkt = binary.BigEndian.AppendUint64(pkt, rand.Uint64())
	return pkt
}

func parseUnconnectedPong(buf []byte) (*domain.ServerStatus, error) {
	if len(buf) < minPongLen || buf[0] != idUnconnectedPong {
		return nil, errInvalidPong
	}

	// id + ping timestamp + server GUID + magic
	rest := buf[1+8+8+16:]
	strLen := int(binary.BigEndian.Uint16(rest[:2]))
	rest = rest[2:]
	if len(rest) < strLen {
		return nil, errInvalidPong
	}

	return mapBedrockInfo(string(rest[:strLen]))
}

// mapBedrockInfo decodes the semicolon-delimited server info string:
// Edition;MOTD;Protocol;Version;Online;Max;ServerID;SubMOTD;Gamemode;...
func mapBedrockInfo(info string) (*domain.ServerStatus, error) {
	parts := strings.Split(info, ";")
	if len(parts) < 6 {
		return nil, errInvalidPong
	}

	protocol, _ := strconv.Atoi(parts[2])
	online, _ := strconv.Atoi(parts[4])
	max, _ := strconv.Atoi(parts[5])

	return &domain.ServerStatus{
		Online: true,
		Version: &domain.Version{
			Name:      parts[0] + " " + parts[3],
			CleanName: parts[3],
			Protocol:  protocol,
		},
		Players: &domain.Players{Online: online, Max: max},
		MOTD:    motd.Parse(parts[1]),
	}, nil
}

var errInvalidPong = errInvalid("invalid unconnected pong")

type errInvalid string

func (e errInvalid) Error() string { return string(e) }
