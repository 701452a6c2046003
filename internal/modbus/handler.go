package modbus

import (
	"sync"

	"go.uber.org/zap"

	"sealoop/essctl/internal/supervisor"

	"github.com/simonvetter/modbus"
)

// RequestHandler implements the simonvetter/modbus RequestHandler
// interface, exposing the array's bus voltage, array limits, and
// per-pack telemetry/mode/limits as input registers, and accepting a
// requested-bus-current write on a holding register.
type RequestHandler struct {
	supervisor *supervisor.Supervisor
	mutex      sync.RWMutex
	log        *zap.Logger
}

// NewRequestHandler creates a Modbus request handler backed by the
// supervisor.
func NewRequestHandler(s *supervisor.Supervisor, logger *zap.Logger) *RequestHandler {
	return &RequestHandler{
		supervisor: s,
		log:        logger.With(zap.String("component", "modbus_handler")),
	}
}

// HandleCoils rejects coil requests; this server exposes no coils.
func (h *RequestHandler) HandleCoils(req *modbus.CoilsRequest) (res []bool, err error) {
	return nil, modbus.ErrIllegalFunction
}

// HandleDiscreteInputs rejects discrete input requests; this server
// exposes no discrete inputs.
func (h *RequestHandler) HandleDiscreteInputs(req *modbus.DiscreteInputsRequest) (res []bool, err error) {
	return nil, modbus.ErrIllegalFunction
}

// HandleHoldingRegisters handles the requested-bus-current register. A
// write sets the requested current; a read always returns 0, not the
// current request.
func (h *RequestHandler) HandleHoldingRegisters(req *modbus.HoldingRegistersRequest) (res []uint16, err error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if req.IsWrite {
		return h.handleHoldingRegistersWrite(req)
	}
	return h.handleHoldingRegistersRead(req)
}

// HandleInputRegisters dispatches reads to the array-wide summary
// block or a per-pack block depending on address.
func (h *RequestHandler) HandleInputRegisters(req *modbus.InputRegistersRequest) (res []uint16, err error) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	switch {
	case req.Addr >= PackBaseAddr:
		return h.readPackRegisters(req.Addr, req.Quantity)
	case req.Addr >= ArrayBaseAddr && req.Addr < PackBaseAddr:
		return h.readArrayRegisters(req.Addr, req.Quantity)
	default:
		h.log.Warn("input register address out of range", zap.Uint16("address", req.Addr))
		return nil, modbus.ErrIllegalDataAddress
	}
}

func (h *RequestHandler) handleHoldingRegistersRead(req *modbus.HoldingRegistersRequest) ([]uint16, error) {
	if req.Addr != CmdBaseAddr+RegRequestedCurrentA || req.Quantity != 1 {
		h.log.Warn("read attempt from unsupported holding register", zap.Uint16("address", req.Addr))
		return nil, modbus.ErrIllegalDataAddress
	}
	return []uint16{0}, nil
}

func (h *RequestHandler) handleHoldingRegistersWrite(req *modbus.HoldingRegistersRequest) ([]uint16, error) {
	if req.Addr != CmdBaseAddr+RegRequestedCurrentA {
		h.log.Warn("write attempt to unsupported holding register", zap.Uint16("address", req.Addr))
		return nil, modbus.ErrIllegalDataAddress
	}
	if len(req.Args) < 1 {
		return nil, modbus.ErrIllegalDataValue
	}

	amps := float64(int16(req.Args[0])) / 10.0
	h.log.Info("Modbus requested-current write received", zap.Float64("amps", amps))

	if err := h.supervisor.RequestCurrent(amps); err != nil {
		h.log.Warn("rejected requested-current write", zap.Error(err), zap.Float64("amps", amps))
		return nil, modbus.ErrServerDeviceFailure
	}

	return req.Args, nil
}
