// Package ping implements the two Minecraft status ping codecs: the Java
// Edition TCP handshake and the Bedrock Edition RakNet unconnected ping.
package ping

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net"
	"regexp"
	"time"

	"github.com/minescope/minescope/internal/domain"
	"github.com/minescope/minescope/internal/motd"
	"github.com/minescope/minescope/internal/netutil"
)

// ProtocolVersion is the Java protocol number announced in the handshake.
const ProtocolVersion = 767

// DefaultJavaTimeout bounds the whole TCP exchange.
const DefaultJavaTimeout = 5 * time.Second

var versionRe = regexp.MustCompile(`\d+\.\d+(\.\d+)?`)

// JavaPinger performs Java Edition status requests.
type JavaPinger struct {
	Timeout time.Duration
	// dial is swappable for tests.
	dial func(ctx context.Context, addr string) (net.Conn, error)
}

// NewJavaPinger returns a pinger with the given exchange timeout, or the
// default when zero.
func NewJavaPinger(timeout time.Duration) *JavaPinger {
	if timeout <= 0 {
		timeout = DefaultJavaTimeout
	}
	p := &JavaPinger{Timeout: timeout}
	p.dial = func(ctx context.Context, addr string) (net.Conn, error) {
		d := net.Dialer{Timeout: p.Timeout}
		return d.DialContext(ctx, "tcp", addr)
	}
	return p
}

// Ping connects to ip:port, performs the handshake/status exchange, and maps
// the response. hostname is the user-supplied name and is what goes into the
// handshake; proxy fronts route by this field, so it must not be replaced by
// the resolved IP.
func (p *JavaPinger) Ping(ctx context.Context, ip string, port uint16, hostname string) *domain.ServerStatus {
	offline := func(msg string) *domain.ServerStatus {
		return &domain.ServerStatus{Online: false, Error: msg}
	}

	conn, err := p.dial(ctx, netutil.FormatHostPort(ip, port))
	if err != nil {
		if isTimeout(err) {
			return offline("timeout")
		}
		return offline(err.Error())
	}
	defer func() { _ = conn.Close() }()

	deadline := time.Now().Add(p.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	request := buildHandshake(hostname, port)
	request = append(request, buildStatusRequest()...)
	if _, err := conn.Write(request); err != nil {
		if isTimeout(err) {
			return offline("timeout")
		}
		return offline(err.Error())
	}

	// Responses arrive fragmented; accumulate and retry the frame decode on
	// every read.
	var buf []byte
	chunk := make([]byte, 4096)
	for {
		payload, ok, err := decodeStatusFrame(buf)
		if err != nil {
			return offline(err.Error())
		}
		if ok {
			return mapJavaResponse(payload)
		}

		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			continue
		}
		if err != nil {
			if isTimeout(err) {
				return offline("timeout")
			}
			return offline(err.Error())
		}
	}
}

// buildHandshake frames packet 0x00: protocol version, server address,
// server port, next state = status.
func buildHandshake(host string, port uint16) []byte {
	payload := AppendVarInt(nil, 0) // packet id
	payload = AppendVarInt(payload, ProtocolVersion)
	payload = AppendVarInt(payload, int32(len(host)))
	payload = append(payload, host...)
	payload = binary.BigEndian.AppendUint16(payload, port)
	payload = AppendVarInt(payload, 1)

	frame := AppendVarInt(nil, int32(len(payload)))
	return append(frame, payload...)
}

// buildStatusRequest frames the empty status-request packet.
func buildStatusRequest() []byte {
	payload := AppendVarInt(nil, 0)
	frame := AppendVarInt(nil, int32(len(payload)))
	return append(frame, payload...)
}

// decodeStatusFrame attempts to decode one complete status-response frame
// from buf. ok=false means more bytes are required.
func decodeStatusFrame(buf []byte) (json.RawMessage, bool, error) {
	frameLen, n, err := ReadVarInt(buf)
	if err == ErrVarIntIncomplete {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if len(buf) < n+int(frameLen) {
		return nil, false, nil
	}
	frame := buf[n : n+int(frameLen)]

	_, idLen, err := ReadVarInt(frame)
	if err == ErrVarIntIncomplete {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	frame = frame[idLen:]

	strLen, sn, err := ReadVarInt(frame)
	if err == ErrVarIntIncomplete {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	frame = frame[sn:]
	if len(frame) < int(strLen) {
		return nil, false, nil
	}
	return json.RawMessage(frame[:strLen]), true, nil
}

type javaResponse struct {
	Version struct {
		Name     string `json:"name"`
		Protocol int    `json:"protocol"`
	} `json:"version"`
	Players struct {
		Online int `json:"online"`
		Max    int `json:"max"`
		Sample []struct {
			Name string `json:"name"`
			ID   string `json:"id"`
		} `json:"sample"`
	} `json:"players"`
	Description interface{} `json:"description"`
	Favicon     string      `json:"favicon"`
}

func mapJavaResponse(payload json.RawMessage) *domain.ServerStatus {
	var resp javaResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return &domain.ServerStatus{Online: false, Error: "Invalid JSON response"}
	}

	status := &domain.ServerStatus{
		Online: true,
		Version: &domain.Version{
			Name:      resp.Version.Name,
			CleanName: cleanVersionName(resp.Version.Name),
			Protocol:  resp.Version.Protocol,
		},
		Players: &domain.Players{
			Online: resp.Players.Online,
			Max:    resp.Players.Max,
		},
		Favicon: resp.Favicon,
	}
	for _, s := range resp.Players.Sample {
		status.Players.Sample = append(status.Players.Sample, domain.PlayerSample{
			Name: s.Name,
			ID:   s.ID,
		})
	}
	if resp.Description != nil {
		status.MOTD = motd.Parse(resp.Description)
	}
	return status
}

// cleanVersionName strips formatting codes and extracts the dotted version
// number when one is present.
func cleanVersionName(name string) string {
	stripped := motd.Clean(name)
	if m := versionRe.FindString(stripped); m != "" {
		return m
	}
	return stripped
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
