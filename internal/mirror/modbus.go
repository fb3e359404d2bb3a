// internal/mirror/modbus.go
package mirror

import (
	"errors"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

// Client is the exact contract the block writer uses.
type Client interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
	Close() error
}

// ClientFactory dials a fresh Client. It is called again after a failure.
type ClientFactory func() (Client, error)

// TCPConfig is one Modbus TCP endpoint.
type TCPConfig struct {
	Endpoint string
	Timeout  time.Duration
}

// TCPClient is a single Modbus TCP connection.
// It serializes requests because it mutates SlaveId per write.
type TCPClient struct {
	mu      sync.Mutex
	handler *modbus.TCPClientHandler
	client  modbus.Client
}

// DialTCP connects to cfg.Endpoint.
func DialTCP(cfg TCPConfig) (*TCPClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("mirror modbus: endpoint required")
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout

	if err := h.Connect(); err != nil {
		return nil, err
	}

	return &TCPClient{
		handler: h,
		client:  modbus.NewClient(h),
	}, nil
}

// TCPFactory returns a ClientFactory dialing cfg.
func TCPFactory(cfg TCPConfig) ClientFactory {
	return func() (Client, error) {
		return DialTCP(cfg)
	}
}

func (c *TCPClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler.Close()
}

// WriteRegisters issues FC 16 for regs starting at addr.
func (c *TCPClient) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.handler.SlaveId = unitID

	_, err := c.client.WriteMultipleRegisters(addr, uint16(len(regs)), packRegisters(regs))
	return err
}

// packRegisters lays registers out big-endian, as Modbus expects.
func packRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}
	return out
}
