// Package topology defines the static room and device layout.
//
// The topology is loaded once from a YAML file at startup and is
// immutable thereafter. Each room maps to a Modbus slave address and
// each device within it to a coil register, giving every device a
// stable (room, device) identity on the cloud side and a
// (slave, register) identity on the fieldbus side.
package topology
