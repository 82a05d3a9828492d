package fieldbus

import (
	"encoding/binary"
	"fmt"
)

// Modbus TCP function codes used by this client.
const (
	fcReadCoils       = 0x01
	fcWriteSingleCoil = 0x05
)

// MBAP header constants.
const (
	mbapHeaderSize = 7
	protocolModbus = 0x0000

	// maxPDUSize bounds a response PDU; Modbus caps the ADU at 260
	// bytes so anything larger is a framing error.
	maxPDUSize = 253
)

// Coil values for FC5 writes.
const (
	coilOn  = 0xFF00
	coilOff = 0x0000
)

// request is a single Modbus PDU bound for one slave.
type request struct {
	slave uint8
	pdu   []byte
}

// response is a parsed Modbus response PDU.
type response struct {
	slave uint8
	fc    uint8
	data  []byte
}

// encodeADU frames a PDU with the MBAP header for Modbus TCP.
//
// Layout: transaction ID (2), protocol ID (2), length (2), unit ID (1),
// then the PDU.
func encodeADU(txID uint16, req request) []byte {
	adu := make([]byte, mbapHeaderSize+len(req.pdu))
	binary.BigEndian.PutUint16(adu[0:2], txID)
	binary.BigEndian.PutUint16(adu[2:4], protocolModbus)
	binary.BigEndian.PutUint16(adu[4:6], uint16(1+len(req.pdu)))
	adu[6] = req.slave
	copy(adu[7:], req.pdu)
	return adu
}

// parseMBAP validates a received MBAP header and returns the expected
// transaction ID and remaining byte count (unit ID + PDU).
func parseMBAP(header []byte) (txID uint16, remaining int, err error) {
	if len(header) != mbapHeaderSize {
		return 0, 0, fmt.Errorf("%w: header length %d", errBadFrame, len(header))
	}
	if proto := binary.BigEndian.Uint16(header[2:4]); proto != protocolModbus {
		return 0, 0, fmt.Errorf("%w: protocol id 0x%04x", errBadFrame, proto)
	}
	length := int(binary.BigEndian.Uint16(header[4:6]))
	if length < 2 || length > maxPDUSize+1 {
		return 0, 0, fmt.Errorf("%w: length field %d", errBadFrame, length)
	}
	// The length field counts the unit ID, which parseMBAP's caller
	// reads together with the PDU. The unit ID byte itself sits at
	// header[6], so remaining excludes it.
	return binary.BigEndian.Uint16(header[0:2]), length - 1, nil
}

// parsePDU interprets a response PDU, surfacing Modbus exception
// responses as errors.
func parsePDU(unit uint8, pdu []byte) (response, error) {
	if len(pdu) < 1 {
		return response{}, fmt.Errorf("%w: empty pdu", errBadFrame)
	}

	fc := pdu[0]
	if fc&0x80 != 0 {
		code := uint8(0)
		if len(pdu) >= 2 {
			code = pdu[1]
		}
		return response{}, fmt.Errorf("%w: function 0x%02x exception 0x%02x", errException, fc&0x7F, code)
	}

	return response{slave: unit, fc: fc, data: pdu[1:]}, nil
}

// readCoilsPDU builds an FC1 request for a contiguous coil range.
func readCoilsPDU(start uint16, count uint16) []byte {
	pdu := make([]byte, 5)
	pdu[0] = fcReadCoils
	binary.BigEndian.PutUint16(pdu[1:3], start)
	binary.BigEndian.PutUint16(pdu[3:5], count)
	return pdu
}

// parseReadCoils extracts coil states from an FC1 response.
func parseReadCoils(resp response, count int) ([]bool, error) {
	if resp.fc != fcReadCoils {
		return nil, fmt.Errorf("%w: function 0x%02x, want 0x%02x", errBadFrame, resp.fc, fcReadCoils)
	}
	if len(resp.data) < 1 {
		return nil, fmt.Errorf("%w: missing byte count", errBadFrame)
	}
	byteCount := int(resp.data[0])
	if byteCount != (count+7)/8 || len(resp.data) != 1+byteCount {
		return nil, fmt.Errorf("%w: byte count %d for %d coils", errBadFrame, byteCount, count)
	}

	coils := make([]bool, count)
	for i := 0; i < count; i++ {
		coils[i] = resp.data[1+i/8]&(1<<(i%8)) != 0
	}
	return coils, nil
}

// writeSingleCoilPDU builds an FC5 request.
func writeSingleCoilPDU(register uint16, on bool) []byte {
	value := uint16(coilOff)
	if on {
		value = coilOn
	}
	pdu := make([]byte, 5)
	pdu[0] = fcWriteSingleCoil
	binary.BigEndian.PutUint16(pdu[1:3], register)
	binary.BigEndian.PutUint16(pdu[3:5], value)
	return pdu
}

// verifyWriteSingleCoil checks the FC5 echo response against the request.
func verifyWriteSingleCoil(resp response, register uint16, on bool) error {
	if resp.fc != fcWriteSingleCoil {
		return fmt.Errorf("%w: function 0x%02x, want 0x%02x", errBadFrame, resp.fc, fcWriteSingleCoil)
	}
	if len(resp.data) != 4 {
		return fmt.Errorf("%w: echo length %d", errBadFrame, len(resp.data))
	}
	echoReg := binary.BigEndian.Uint16(resp.data[0:2])
	echoVal := binary.BigEndian.Uint16(resp.data[2:4])
	wantVal := uint16(coilOff)
	if on {
		wantVal = coilOn
	}
	if echoReg != register || echoVal != wantVal {
		return fmt.Errorf("%w: echo register %d value 0x%04x", errBadFrame, echoReg, echoVal)
	}
	return nil
}
