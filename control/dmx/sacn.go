// Package dmx streams DMX512 universes over sACN (E1.31) multicast.
package dmx

import (
	"encoding/binary"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/MrLongNight/mapflow-go/control"
)

const (
	// packetSize is the full E1.31 data packet length.
	packetSize = 638
	// sacnPort is the standard sACN UDP port.
	sacnPort = 5568
	// maxUniverse is the highest valid sACN universe.
	maxUniverse = 63999
	// defaultPriority is the E1.31 default packet priority.
	defaultPriority = 100
)

// acnPacketIdentifier is the fixed ACN packet ID at bytes 4..16.
var acnPacketIdentifier = [12]byte{0x41, 0x53, 0x43, 0x2d, 0x45, 0x31, 0x2e, 0x31, 0x37, 0x00, 0x00, 0x00}

// SacnSender streams one universe of DMX channel data to its multicast
// group, rate limited to the configured refresh interval.
type SacnSender struct {
	conn       *net.UDPConn
	universe   uint16
	sequence   uint8
	priority   uint8
	sourceName string
	cid        [16]byte

	lastSend    time.Time
	minInterval time.Duration
}

// NewSacnSender creates a sender for the given universe.
//
// Parameters:
//   - universe: sACN universe (1..63999)
//   - sourceName: sender identification, truncated to 63 characters on the wire
//
// Returns:
//   - *SacnSender: the sender
//   - error: invalid universe or socket failure
func NewSacnSender(universe uint16, sourceName string) (*SacnSender, error) {
	if universe == 0 || universe > maxUniverse {
		return nil, fmt.Errorf("%w: invalid sACN universe %d (must be 1-%d)", control.ErrInvalidMessage, universe, maxUniverse)
	}

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: 0})
	if err != nil {
		return nil, fmt.Errorf("failed to open sACN socket: %w", err)
	}

	log.Printf("dmx: sACN sender created for universe %d", universe)

	return &SacnSender{
		conn:        conn,
		universe:    universe,
		priority:    defaultPriority,
		sourceName:  sourceName,
		cid:         uuid.New(),
		minInterval: time.Second / 30,
	}, nil
}

// SendDMX transmits the 512 channel values, subject to rate limiting. A
// throttled call is a silent no-op.
//
// Parameters:
//   - channels: the 512 DMX channel values
//
// Returns:
//   - error: socket write failure
func (s *SacnSender) SendDMX(channels *[512]byte) error {
	now := time.Now()
	if now.Sub(s.lastSend) < s.minInterval {
		return nil
	}

	packet := s.BuildPacket(channels)

	addr := &net.UDPAddr{
		IP:   net.IPv4(239, 255, byte(s.universe>>8), byte(s.universe)),
		Port: sacnPort,
	}
	if _, err := s.conn.WriteToUDP(packet, addr); err != nil {
		return fmt.Errorf("failed to send sACN packet for universe %d: %w", s.universe, err)
	}

	s.sequence++
	s.lastSend = now
	return nil
}

// BuildPacket assembles the 638-byte E1.31 data packet for the current
// sequence number without sending it.
//
// Parameters:
//   - channels: the 512 DMX channel values
//
// Returns:
//   - []byte: the full packet
func (s *SacnSender) BuildPacket(channels *[512]byte) []byte {
	packet := make([]byte, packetSize)
	offset := 0

	// Root layer.
	binary.BigEndian.PutUint16(packet[offset:], 0x0010) // preamble size
	offset += 2
	binary.BigEndian.PutUint16(packet[offset:], 0x0000) // postamble size
	offset += 2
	copy(packet[offset:], acnPacketIdentifier[:])
	offset += 12
	binary.BigEndian.PutUint16(packet[offset:], 0x7000|uint16(packetSize-16)) // flags + length
	offset += 2
	binary.BigEndian.PutUint32(packet[offset:], 0x00000004) // VECTOR_ROOT_E131_DATA
	offset += 4
	copy(packet[offset:], s.cid[:])
	offset += 16

	// Framing layer.
	binary.BigEndian.PutUint16(packet[offset:], 0x7000|uint16(packetSize-38))
	offset += 2
	binary.BigEndian.PutUint32(packet[offset:], 0x00000002) // VECTOR_E131_DATA_PACKET
	offset += 4
	name := []byte(s.sourceName)
	if len(name) > 63 {
		name = name[:63]
	}
	copy(packet[offset:], name) // null padded 64-byte field
	offset += 64
	packet[offset] = s.priority
	offset++
	binary.BigEndian.PutUint16(packet[offset:], 0x0000) // sync address
	offset += 2
	packet[offset] = s.sequence
	offset++
	packet[offset] = 0x00 // options
	offset++
	binary.BigEndian.PutUint16(packet[offset:], s.universe)
	offset += 2

	// DMP layer.
	binary.BigEndian.PutUint16(packet[offset:], 0x7000|uint16(packetSize-115))
	offset += 2
	packet[offset] = 0x02 // VECTOR_DMP_SET_PROPERTY
	offset++
	packet[offset] = 0xa1 // address type & data type
	offset++
	binary.BigEndian.PutUint16(packet[offset:], 0x0000) // first property address
	offset += 2
	binary.BigEndian.PutUint16(packet[offset:], 0x0001) // address increment
	offset += 2
	binary.BigEndian.PutUint16(packet[offset:], 513) // start code + 512 channels
	offset += 2
	packet[offset] = 0x00 // DMX start code
	offset++
	copy(packet[offset:], channels[:])

	return packet
}

// Universe returns the configured universe.
func (s *SacnSender) Universe() uint16 { return s.universe }

// SetUniverse changes the target universe.
func (s *SacnSender) SetUniverse(universe uint16) error {
	if universe == 0 || universe > maxUniverse {
		return fmt.Errorf("%w: invalid sACN universe %d (must be 1-%d)", control.ErrInvalidMessage, universe, maxUniverse)
	}
	s.universe = universe
	return nil
}

// SetPriority sets the packet priority, clamped to the protocol maximum of 200.
func (s *SacnSender) SetPriority(priority uint8) {
	if priority > 200 {
		priority = 200
	}
	s.priority = priority
}

// SetRefreshRate sets the maximum send rate in Hz.
func (s *SacnSender) SetRefreshRate(hz uint32) {
	if hz == 0 {
		hz = 30
	}
	s.minInterval = time.Second / time.Duration(hz)
}

// Close releases the socket.
func (s *SacnSender) Close() error {
	return s.conn.Close()
}
