package fieldbus

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/nvqhuy/homewatt/internal/adapter"
	"github.com/nvqhuy/homewatt/internal/topology"
)

// fakeSlave is a minimal Modbus TCP responder backed by an in-memory
// coil table per slave address.
type fakeSlave struct {
	listener net.Listener
	coils    map[uint8][]bool
}

func newFakeSlave(t *testing.T, coils map[uint8][]bool) *fakeSlave {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	fs := &fakeSlave{listener: ln, coils: coils}
	go fs.serve()
	t.Cleanup(func() { ln.Close() })
	return fs
}

func (fs *fakeSlave) serve() {
	for {
		conn, err := fs.listener.Accept()
		if err != nil {
			return
		}
		go fs.handle(conn)
	}
}

func (fs *fakeSlave) handle(conn net.Conn) {
	defer conn.Close()
	for {
		header := make([]byte, mbapHeaderSize)
		if _, err := io.ReadFull(conn, header); err != nil {
			return
		}
		length := int(binary.BigEndian.Uint16(header[4:6]))
		pdu := make([]byte, length-1)
		if _, err := io.ReadFull(conn, pdu); err != nil {
			return
		}

		unit := header[6]
		resp := fs.respond(unit, pdu)

		out := make([]byte, mbapHeaderSize+len(resp))
		copy(out[0:4], header[0:4])
		binary.BigEndian.PutUint16(out[4:6], uint16(1+len(resp)))
		out[6] = unit
		copy(out[7:], resp)
		if _, err := conn.Write(out); err != nil {
			return
		}
	}
}

func (fs *fakeSlave) respond(unit uint8, pdu []byte) []byte {
	coils, ok := fs.coils[unit]
	if !ok {
		return []byte{pdu[0] | 0x80, 0x0B}
	}

	switch pdu[0] {
	case fcReadCoils:
		start := binary.BigEndian.Uint16(pdu[1:3])
		count := binary.BigEndian.Uint16(pdu[3:5])
		if int(start)+int(count) > len(coils) {
			return []byte{0x81, 0x02}
		}
		byteCount := (int(count) + 7) / 8
		resp := make([]byte, 2+byteCount)
		resp[0] = fcReadCoils
		resp[1] = byte(byteCount)
		for i := 0; i < int(count); i++ {
			if coils[int(start)+i] {
				resp[2+i/8] |= 1 << (i % 8)
			}
		}
		return resp
	case fcWriteSingleCoil:
		reg := binary.BigEndian.Uint16(pdu[1:3])
		val := binary.BigEndian.Uint16(pdu[3:5])
		if int(reg) >= len(coils) {
			return []byte{0x85, 0x02}
		}
		coils[reg] = val == coilOn
		return pdu
	default:
		return []byte{pdu[0] | 0x80, 0x01}
	}
}

func slaveAddr(t *testing.T, fs *fakeSlave) (string, int) {
	t.Helper()
	addr := fs.listener.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

func testClient(t *testing.T, fs *fakeSlave, refs []topology.DeviceRef) *Client {
	t.Helper()
	host, port := slaveAddr(t, fs)
	c := New(Config{Host: host, Port: port, TransactionTimeout: time.Second}, refs)
	t.Cleanup(func() { c.Close() })
	return c
}

func refsForRoom1() []topology.DeviceRef {
	return []topology.DeviceRef{
		{RoomID: "room-1", DeviceID: "light", SlaveAddr: 1, Register: 0},
		{RoomID: "room-1", DeviceID: "fan", SlaveAddr: 1, Register: 1},
	}
}

func TestClientReadWrite(t *testing.T) {
	fs := newFakeSlave(t, map[uint8][]bool{1: {false, true}})
	c := testClient(t, fs, refsForRoom1())
	ctx := context.Background()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	light := refsForRoom1()[0]
	fan := refsForRoom1()[1]

	on, err := c.ReadState(ctx, fan)
	if err != nil {
		t.Fatalf("ReadState() error = %v", err)
	}
	if !on {
		t.Error("fan should read on")
	}

	if err := c.WriteState(ctx, light, true); err != nil {
		t.Fatalf("WriteState() error = %v", err)
	}
	on, err = c.ReadState(ctx, light)
	if err != nil {
		t.Fatalf("ReadState() after write error = %v", err)
	}
	if !on {
		t.Error("light should read on after write")
	}

	stats := c.Stats()
	if stats.Transactions != 3 {
		t.Errorf("Transactions = %d, want 3", stats.Transactions)
	}
	if stats.Errors != 0 {
		t.Errorf("Errors = %d, want 0", stats.Errors)
	}
}

func TestClientPollAll(t *testing.T) {
	refs := []topology.DeviceRef{
		{RoomID: "room-1", DeviceID: "light", SlaveAddr: 1, Register: 0},
		{RoomID: "room-1", DeviceID: "fan", SlaveAddr: 1, Register: 1},
		{RoomID: "room-2", DeviceID: "light", SlaveAddr: 2, Register: 0},
	}
	fs := newFakeSlave(t, map[uint8][]bool{
		1: {true, false},
		2: {true},
	})
	c := testClient(t, fs, refs)
	ctx := context.Background()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	events, err := c.PollAll(ctx)
	if err != nil {
		t.Fatalf("PollAll() error = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("PollAll() len = %d, want 3", len(events))
	}

	got := make(map[string]bool)
	for _, ev := range events {
		if ev.Origin != adapter.OriginFieldbus {
			t.Errorf("Origin = %v, want fieldbus", ev.Origin)
		}
		got[ev.Ref.Key()] = ev.On
	}
	if !got["room-1/light"] || got["room-1/fan"] || !got["room-2/light"] {
		t.Errorf("poll states unexpected: %v", got)
	}
}

func TestClientRejectedWrite(t *testing.T) {
	fs := newFakeSlave(t, map[uint8][]bool{1: {false}})
	c := testClient(t, fs, refsForRoom1())
	ctx := context.Background()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	// Register 5 does not exist on the slave; it answers with an
	// exception response.
	bad := topology.DeviceRef{RoomID: "room-1", DeviceID: "ghost", SlaveAddr: 1, Register: 5}
	if err := c.WriteState(ctx, bad, true); !errors.Is(err, adapter.ErrRejected) {
		t.Errorf("WriteState() error = %v, want ErrRejected", err)
	}
}

func TestClientNotConnected(t *testing.T) {
	fs := newFakeSlave(t, map[uint8][]bool{1: {false}})
	c := testClient(t, fs, refsForRoom1())

	if _, err := c.ReadState(context.Background(), refsForRoom1()[0]); !errors.Is(err, adapter.ErrDisconnected) {
		t.Errorf("ReadState() before Connect error = %v, want ErrDisconnected", err)
	}
}

func TestClientConnectFailure(t *testing.T) {
	c := New(Config{Host: "127.0.0.1", Port: 1, TransactionTimeout: time.Second}, refsForRoom1())
	defer c.Close()

	if err := c.Connect(context.Background()); err == nil {
		t.Error("Connect() to closed port should fail")
	}
	if c.Connected() {
		t.Error("Connected() = true after failed Connect")
	}
}

func TestClientCloseIdempotent(t *testing.T) {
	fs := newFakeSlave(t, map[uint8][]bool{1: {false}})
	c := testClient(t, fs, refsForRoom1())

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if c.Connected() {
		t.Error("Connected() = true after Close")
	}
}
