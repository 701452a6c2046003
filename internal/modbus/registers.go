package modbus

import (
	"go.uber.org/zap"

	"sealoop/essctl/internal/pack"

	"github.com/simonvetter/modbus"
)

// boolReg encodes a bool as a 0/1 register.
func boolReg(b bool) uint16 {
	if b {
		return 1
	}
	return 0
}

// scaledInt16 scales a signed float into a *10 fixed-point int16
// register, matching the convention the teacher uses for signed power
// and current registers.
func scaledInt16(v float64, scale float64) uint16 {
	return uint16(int16(v * scale))
}

// readArrayRegisters serves the array-wide summary block.
func (h *RequestHandler) readArrayRegisters(addr, quantity uint16) ([]uint16, error) {
	offset := addr - ArrayBaseAddr
	endOffset := offset + quantity
	if offset >= ArrayDataLength || endOffset > ArrayDataLength {
		return nil, modbus.ErrIllegalDataAddress
	}

	a := h.supervisor.ArrayController()
	values := [ArrayDataLength]uint16{
		RegBusVoltageV:      scaledInt16(a.BusVoltage(), 10),
		RegArrayChargeLimit: scaledInt16(a.ArrayChargeLimit(), 10),
		RegArrayDischarge:   scaledInt16(a.ArrayDischargeLimit(), 10),
		RegConnectedCount:   uint16(len(connectedPackIDs(a.Packs()))),
	}

	return values[offset:endOffset], nil
}

// readPackRegisters serves one pack's telemetry/mode/limits block.
func (h *RequestHandler) readPackRegisters(addr, quantity uint16) ([]uint16, error) {
	packs := h.supervisor.ArrayController().Packs()
	packNo := int((addr-PackBaseAddr)/PackDataOffset) + 1
	if packNo < 1 || packNo > len(packs) {
		h.log.Warn("pack number out of range", zap.Int("pack_no", packNo))
		return nil, modbus.ErrIllegalDataAddress
	}
	p := packs[packNo-1]

	blockBase := PackBaseAddr + uint16(packNo-1)*PackDataOffset
	offset := addr - blockBase
	endOffset := offset + quantity
	if offset >= PackDataLength || endOffset > PackDataLength {
		return nil, modbus.ErrIllegalDataAddress
	}

	tel := p.Plant().Telemetry()
	values := [PackDataLength]uint16{
		RegPackSOC:              uint16(tel.SOC * 1000),
		RegPackVoltageV:         scaledInt16(tel.PackVoltageV, 10),
		RegPackCellVoltageV:     uint16(tel.CellVoltageV * 1000),
		RegPackTemperatureC:     scaledInt16(tel.TemperatureC, 10),
		RegPackCurrentA:         scaledInt16(tel.CurrentA, 10),
		RegPackChargeLimitA:     scaledInt16(p.ChargeLimitA(), 10),
		RegPackDischargeLimitA:  scaledInt16(p.DischargeLimitA(), 10),
		RegPackMode:             uint16(p.Mode()),
		RegPackContactorsClosed: boolReg(p.ContactorsClosed()),
		RegPackHasWarning:       boolReg(p.HasWarning()),
		RegPackHasFault:         boolReg(p.HasFault()),
	}

	return values[offset:endOffset], nil
}

func connectedPackIDs(packs []*pack.Controller) []string {
	ids := make([]string, 0, len(packs))
	for _, p := range packs {
		if p.ContactorsClosed() {
			ids = append(ids, p.ID)
		}
	}
	return ids
}
