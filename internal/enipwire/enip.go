// Package enipwire implements the EtherNet/IP encapsulation layer and the
// slice of CIP application-layer framing the bridge needs: symbolic
// tag-name addressing and the Read_Tag/Write_Tag and GetAttributeSingle/
// SetAttributeSingle service pair. It is a fixed wire-format library
// surface; outside it, only the ENIP server worker handles raw bytes (the
// encapsulation length field and the SendRRData item framing).
package enipwire

import (
	"encoding/binary"
	"fmt"
)

// ENIP encapsulation command codes.
const (
	CommandRegisterSession   uint16 = 0x0065
	CommandUnregisterSession uint16 = 0x0066
	CommandSendRRData        uint16 = 0x006F
	CommandSendUnitData      uint16 = 0x0070
	CommandListIdentity      uint16 = 0x0063
)

// StatusSuccess is the ENIP encapsulation success status.
const StatusSuccess uint32 = 0x00000000

// Encapsulation is an EtherNet/IP encapsulation header plus its data.
type Encapsulation struct {
	Command       uint16
	SessionID     uint32
	Status        uint32
	SenderContext [8]byte
	Options       uint32
	Data          []byte
}

// Encode serializes an Encapsulation to its 24-byte header plus data.
func Encode(e Encapsulation) []byte {
	header := make([]byte, 24)
	binary.BigEndian.PutUint16(header[0:2], e.Command)
	binary.BigEndian.PutUint16(header[2:4], uint16(len(e.Data)))
	binary.BigEndian.PutUint32(header[4:8], e.SessionID)
	binary.BigEndian.PutUint32(header[8:12], e.Status)
	copy(header[12:20], e.SenderContext[:])
	binary.BigEndian.PutUint32(header[20:24], e.Options)
	return append(header, e.Data...)
}

// Decode parses an Encapsulation from its wire form.
func Decode(data []byte) (Encapsulation, error) {
	if len(data) < 24 {
		return Encapsulation{}, fmt.Errorf("enipwire: packet too short: %d bytes (minimum 24)", len(data))
	}

	var e Encapsulation
	e.Command = binary.BigEndian.Uint16(data[0:2])
	length := binary.BigEndian.Uint16(data[2:4])
	e.SessionID = binary.BigEndian.Uint32(data[4:8])
	e.Status = binary.BigEndian.Uint32(data[8:12])
	copy(e.SenderContext[:], data[12:20])
	e.Options = binary.BigEndian.Uint32(data[20:24])

	if len(data) < 24+int(length) {
		return Encapsulation{}, fmt.Errorf("enipwire: truncated data field: declared %d, have %d", length, len(data)-24)
	}
	if length > 0 {
		e.Data = data[24 : 24+int(length)]
	}
	return e, nil
}

// BuildRegisterSession builds a RegisterSession request.
func BuildRegisterSession(senderContext [8]byte) []byte {
	data := make([]byte, 4)
	binary.BigEndian.PutUint16(data[0:2], 1) // protocol version
	binary.BigEndian.PutUint16(data[2:4], 0) // option flags
	return Encode(Encapsulation{Command: CommandRegisterSession, SenderContext: senderContext, Data: data})
}

// BuildUnregisterSession builds an UnregisterSession request.
func BuildUnregisterSession(sessionID uint32, senderContext [8]byte) []byte {
	return Encode(Encapsulation{Command: CommandUnregisterSession, SessionID: sessionID, SenderContext: senderContext})
}

// BuildListIdentity builds a ListIdentity request.
func BuildListIdentity(senderContext [8]byte) []byte {
	return Encode(Encapsulation{Command: CommandListIdentity, SenderContext: senderContext})
}

// BuildSendRRData wraps unconnected CIP data (UCMM) for a RegisterSession'd
// client, as used for GetAttributeSingle/SetAttributeSingle and unconnected
// Read_Tag/Write_Tag requests. The CPF item framing (item count, null
// address item, unconnected data item header) matches what the server's
// SendRRData handler expects to strip.
func BuildSendRRData(sessionID uint32, senderContext [8]byte, cipData []byte) []byte {
	data := make([]byte, 0, 16+len(cipData))
	data = binary.BigEndian.AppendUint32(data, 0)    // interface handle, 0 for UCMM
	data = binary.BigEndian.AppendUint16(data, 0)    // timeout
	data = binary.LittleEndian.AppendUint16(data, 2) // item count = 2
	data = append(data, 0, 0, 0, 0)                  // null address item (type 0, len 0)
	data = append(data, 0xB2, 0x00)                  // unconnected data item type
	data = binary.LittleEndian.AppendUint16(data, uint16(len(cipData)))
	data = append(data, cipData...)
	return Encode(Encapsulation{Command: CommandSendRRData, SessionID: sessionID, SenderContext: senderContext, Data: data})
}

// BuildSendUnitData wraps connected CIP data for an established connection.
func BuildSendUnitData(sessionID uint32, senderContext [8]byte, connectionID uint32, cipData []byte) []byte {
	var data []byte
	data = binary.BigEndian.AppendUint32(data, connectionID)
	data = append(data, cipData...)
	return Encode(Encapsulation{Command: CommandSendUnitData, SessionID: sessionID, SenderContext: senderContext, Data: data})
}

// ParseSendRRDataResponse strips the interface handle, timeout, and CPF item
// framing (item count, null address item, unconnected data item header),
// returning the embedded CIP response bytes.
func ParseSendRRDataResponse(data []byte) ([]byte, error) {
	const rrHeader = 16 // interface handle(4) + timeout(2) + item count(2) + null address item(4) + unconnected data item header(4)
	if len(data) < rrHeader {
		return nil, fmt.Errorf("enipwire: SendRRData response too short: %d bytes (minimum %d)", len(data), rrHeader)
	}
	return data[rrHeader:], nil
}

// ParseSendUnitDataResponse strips the connection ID, returning the
// embedded CIP response bytes.
func ParseSendUnitDataResponse(data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("enipwire: SendUnitData response too short: %d bytes (minimum 4)", len(data))
	}
	return data[4:], nil
}
