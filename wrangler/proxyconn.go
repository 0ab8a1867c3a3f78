package wrangler

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// proxyProtocolV2Sign is the 12-byte signature that opens a PROXY
// protocol v2 header.
var proxyProtocolV2Sign = []byte{
	0x0d, 0x0a, 0x0d, 0x0a,
	0x00, 0x0d, 0x0a, 0x51,
	0x55, 0x49, 0x54, 0x0a,
}

// proxyListener wraps a net.Listener, optionally unwrapping the PROXY
// protocol (v1 or v2) on accepted connections whose peer address is
// covered by allowedRelayers (spec §4.4, "Wrangler contract" — the
// wrangler owns the listening socket; PROXY unwrapping happens before
// any TLS or HTTP engine sees the connection).
type proxyListener struct {
	net.Listener

	enabled          bool
	allowedRelayers  []*net.IPNet
	readHeaderTimeout time.Duration
}

// newProxyListener wraps inner with PROXY protocol support. relayerCIDRs
// or bare IPs restrict which peers are trusted to prepend a PROXY
// header; an empty list trusts every peer.
func newProxyListener(inner net.Listener, enabled bool, relayers []string, readHeaderTimeout time.Duration) *proxyListener {
	var nets []*net.IPNet
	for _, s := range relayers {
		if ip := net.ParseIP(s); ip != nil {
			switch {
			case ip.IsUnspecified():
				s = ip.String() + "/0"
			case ip.To4() != nil:
				s = ip.String() + "/32"
			default:
				s = ip.String() + "/128"
			}
		}
		if _, ipNet, _ := net.ParseCIDR(s); ipNet != nil {
			nets = append(nets, ipNet)
		}
	}

	return &proxyListener{
		Listener:          inner,
		enabled:           enabled,
		allowedRelayers:   nets,
		readHeaderTimeout: readHeaderTimeout,
	}
}

// Accept implements net.Listener.
func (l *proxyListener) Accept() (net.Conn, error) {
	c, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}

	if !l.enabled {
		return c, nil
	}

	proxyable := len(l.allowedRelayers) == 0
	if !proxyable {
		host, _, _ := net.SplitHostPort(c.RemoteAddr().String())
		ip := net.ParseIP(host)
		for _, ipNet := range l.allowedRelayers {
			if ipNet.Contains(ip) {
				proxyable = true
				break
			}
		}
	}

	if !proxyable {
		return c, nil
	}

	return &proxyConn{
		Conn:              c,
		bufReader:         bufio.NewReader(c),
		readHeaderOnce:    &sync.Once{},
		readHeaderTimeout: l.readHeaderTimeout,
	}, nil
}

// proxyConn lazily parses a PROXY protocol header (v1 or v2) the first
// time it is read from, substituting the header's declared source/
// destination addresses for the wrapped connection's own.
type proxyConn struct {
	net.Conn

	bufReader         *bufio.Reader
	srcAddr           *net.TCPAddr
	dstAddr           *net.TCPAddr
	readHeaderOnce    *sync.Once
	readHeaderError   error
	readHeaderTimeout time.Duration
}

// Read implements net.Conn.
func (pc *proxyConn) Read(b []byte) (int, error) {
	pc.readHeaderOnce.Do(pc.readHeader)
	if pc.readHeaderError != nil {
		return 0, pc.readHeaderError
	}

	return pc.bufReader.Read(b)
}

// LocalAddr implements net.Conn.
func (pc *proxyConn) LocalAddr() net.Addr {
	pc.readHeaderOnce.Do(pc.readHeader)
	if pc.dstAddr != nil {
		return pc.dstAddr
	}

	return pc.Conn.LocalAddr()
}

// RemoteAddr implements net.Conn.
func (pc *proxyConn) RemoteAddr() net.Addr {
	pc.readHeaderOnce.Do(pc.readHeader)
	if pc.srcAddr != nil {
		return pc.srcAddr
	}

	return pc.Conn.RemoteAddr()
}

func (pc *proxyConn) readHeader() {
	if pc.readHeaderTimeout != 0 {
		pc.SetReadDeadline(time.Now().Add(pc.readHeaderTimeout))
		defer pc.SetReadDeadline(time.Time{})
	}

	defer func() {
		if pc.readHeaderError != nil && pc.readHeaderError != io.EOF {
			pc.Close()
			pc.bufReader = bufio.NewReader(pc.Conn)
		}
	}()

	isV1 := true
	for i := 0; i < 6; i++ { // i < len("PROXY ")
		b, err := pc.bufReader.Peek(i + 1)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return
			}
			pc.readHeaderError = err
			return
		}

		if b[i] != "PROXY "[i] {
			isV1 = false
			break
		}
	}

	if isV1 {
		pc.readHeaderV1()
		return
	}

	pc.readHeaderV2()
}

func (pc *proxyConn) readHeaderV1() {
	header, err := pc.bufReader.ReadString('\n')
	if err != nil {
		pc.readHeaderError = err
		return
	}

	header = strings.TrimRight(header, "\r\n")

	// PROXY <protocol> <src ip> <dst ip> <src port> <dst port>
	parts := strings.Split(header, " ")
	if len(parts) != 6 {
		pc.readHeaderError = fmt.Errorf("wrangler: malformed proxy header line: %s", header)
		return
	}

	switch parts[1] {
	case "TCP4", "TCP6":
	default:
		pc.readHeaderError = fmt.Errorf("wrangler: unsupported proxy transport protocol: %s", parts[1])
		return
	}

	srcIP := net.ParseIP(parts[2])
	if srcIP == nil {
		pc.readHeaderError = fmt.Errorf("wrangler: invalid proxy source ip: %s", parts[2])
		return
	}

	dstIP := net.ParseIP(parts[3])
	if dstIP == nil {
		pc.readHeaderError = fmt.Errorf("wrangler: invalid proxy destination ip: %s", parts[3])
		return
	}

	srcPort, err := strconv.Atoi(parts[4])
	if err != nil {
		pc.readHeaderError = fmt.Errorf("wrangler: invalid proxy source port: %s", parts[4])
		return
	}

	dstPort, err := strconv.Atoi(parts[5])
	if err != nil {
		pc.readHeaderError = fmt.Errorf("wrangler: invalid proxy destination port: %s", parts[5])
		return
	}

	pc.srcAddr = &net.TCPAddr{IP: srcIP, Port: srcPort}
	pc.dstAddr = &net.TCPAddr{IP: dstIP, Port: dstPort}
}

func (pc *proxyConn) readHeaderV2() {
	for i := 0; i < len(proxyProtocolV2Sign); i++ {
		b, err := pc.bufReader.Peek(i + 1)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return
			}
			pc.readHeaderError = err
			return
		}

		if b[i] != proxyProtocolV2Sign[i] {
			return
		}
	}

	if _, err := pc.bufReader.Discard(len(proxyProtocolV2Sign)); err != nil {
		pc.readHeaderError = err
		return
	}

	b, err := pc.bufReader.ReadByte()
	if err != nil {
		pc.readHeaderError = err
		return
	}
	if b&0xf0 != 0x20 {
		pc.readHeaderError = errors.New("wrangler: unsupported proxy protocol version")
		return
	}
	if b&0x0f != 0x01 {
		pc.readHeaderError = errors.New("wrangler: unsupported proxy command")
		return
	}

	b, err = pc.bufReader.ReadByte()
	if err != nil {
		pc.readHeaderError = err
		return
	}
	switch b & 0xf0 {
	case 0x10, 0x20: // AF_INET, AF_INET6
	default:
		pc.readHeaderError = errors.New("wrangler: unsupported proxy address family")
		return
	}
	if b&0x0f != 0x01 { // STREAM
		pc.readHeaderError = errors.New("wrangler: unsupported proxy transport protocol")
		return
	}

	var expectedLen uint16
	switch b {
	case 0x11:
		expectedLen = 12
	case 0x21:
		expectedLen = 36
	default:
		pc.readHeaderError = errors.New("wrangler: unsupported proxy address family/protocol combination")
		return
	}

	var addrLen uint16
	if err := binary.Read(io.LimitReader(pc.bufReader, 2), binary.BigEndian, &addrLen); err != nil {
		pc.readHeaderError = fmt.Errorf("wrangler: reading proxy address length: %w", err)
		return
	}
	if addrLen != expectedLen {
		pc.readHeaderError = fmt.Errorf("wrangler: invalid proxy address length: %d", addrLen)
		return
	}

	var ipSize int
	switch addrLen {
	case 12:
		ipSize = 4
	case 36:
		ipSize = 16
	}

	raw := make([]byte, addrLen)
	if _, err := io.ReadFull(pc.bufReader, raw); err != nil {
		pc.readHeaderError = fmt.Errorf("wrangler: reading proxy addresses: %w", err)
		return
	}

	srcIP := net.IP(raw[:ipSize])
	dstIP := net.IP(raw[ipSize : 2*ipSize])
	srcPort := binary.BigEndian.Uint16(raw[2*ipSize : 2*ipSize+2])
	dstPort := binary.BigEndian.Uint16(raw[2*ipSize+2 : 2*ipSize+4])

	pc.srcAddr = &net.TCPAddr{IP: srcIP, Port: int(srcPort)}
	pc.dstAddr = &net.TCPAddr{IP: dstIP, Port: int(dstPort)}
}
