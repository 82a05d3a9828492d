// Package fieldbus implements the Modbus TCP backend for the room
// controller boards.
//
// The client is a Modbus master speaking two function codes: Read
// Coils (0x01) for state polls and Write Single Coil (0x05) for
// commands. Transactions are serialized, bounded by a per-exchange
// deadline, and verified against the MBAP transaction ID. A timed-out
// exchange drops the connection rather than risk reading a stale
// response, and a background loop redials with exponential backoff.
//
// PollAll batches the whole device population into one Read Coils
// transaction per slave board, so a four-room site polls in four
// round trips regardless of device count.
package fieldbus
