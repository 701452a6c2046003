package modbus

import "go.uber.org/fx"

// Module provides Modbus client functionality to the Fx application
var Module = fx.Module("modbus_pkg")

// This package provides utility functions and types
// No specific providers needed as it's a utility package
