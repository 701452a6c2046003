package modbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/grid-x/modbus"
)

// Client represents a MODBUS TCP client
type Client struct {
	client  modbus.Client
	handler *modbus.TCPClientHandler

	mutex       sync.RWMutex
	isConnected bool
}

// NewClient creates a new MODBUS TCP client
func NewClient(host string, port int, slaveID byte, timeout time.Duration) *Client {
	handler := modbus.NewTCPClientHandler(fmt.Sprintf("%s:%d", host, port))
	handler.SlaveID = slaveID
	handler.Timeout = timeout

	client := modbus.NewClient(handler)

	return &Client{
		client:  client,
		handler: handler,
	}
}

// Connect establishes connection to the MODBUS server
func (c *Client) Connect(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	err := c.handler.Connect(ctx)
	if err != nil {
		c.isConnected = false
		return err
	}
	c.isConnected = true
	return nil
}

// Disconnect closes the connection to the MODBUS server
func (c *Client) Disconnect() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	err := c.handler.Close()
	c.isConnected = false
	return err
}

// IsConnected returns the current connection status
func (c *Client) IsConnected() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.isConnected
}

// ReadInputRegisters reads input registers from the MODBUS server
func (c *Client) ReadInputRegisters(ctx context.Context, address, quantity uint16) ([]byte, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	if !c.isConnected {
		return nil, fmt.Errorf("modbus client not connected")
	}

	data, err := c.client.ReadInputRegisters(ctx, address, quantity)
	if err != nil {
		c.handleConnectionError(err)
		return nil, err
	}
	return data, nil
}

// handleConnectionError checks if the error indicates a connection loss and updates the flag
func (c *Client) handleConnectionError(err error) {
	if err != nil && !c.isModbusProtocolError(err) {
		go c.markDisconnected()
	}
}

// isModbusProtocolError determines if an error is a valid Modbus protocol error
func (c *Client) isModbusProtocolError(err error) bool {
	var modbusErr *modbus.Error
	return errors.As(err, &modbusErr)
}

// markDisconnected safely marks the client as disconnected
func (c *Client) markDisconnected() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.isConnected = false
}
