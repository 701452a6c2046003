package modbus

// Register Address Map exposed to SCADA.
//
// Input registers (read-only):
//
//	ArrayBaseAddr .. +3     array-wide summary
//	PackBaseAddr  .. +N*20  one block of PackDataLength registers per pack
//
// Holding registers (write; a read returns 0):
//
//	CmdBaseAddr+RegRequestedCurrentA   requested bus current, amps*10, signed
const (
	ArrayBaseAddr       = 0
	RegBusVoltageV      = 0
	RegArrayChargeLimit = 1
	RegArrayDischarge   = 2
	RegConnectedCount   = 3
	ArrayDataLength     = 4

	PackBaseAddr   = 100
	PackDataOffset = 20

	RegPackSOC              = 0
	RegPackVoltageV         = 1
	RegPackCellVoltageV     = 2
	RegPackTemperatureC     = 3
	RegPackCurrentA         = 4
	RegPackChargeLimitA     = 5
	RegPackDischargeLimitA  = 6
	RegPackMode             = 7
	RegPackContactorsClosed = 8
	RegPackHasWarning       = 9
	RegPackHasFault         = 10
	PackDataLength          = 20

	CmdBaseAddr          = 0
	RegRequestedCurrentA = 0
)
