package enipwire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DataType is a CIP elementary data type code.
type DataType uint16

const (
	TypeBOOL  DataType = 0x00C1
	TypeREAL  DataType = 0x00CA
	TypeSTR   DataType = 0x00D0
)

// TypeCode maps an ENIP type name (as produced by tagvalue.Infer, e.g.
// "BOOL", "REAL", "STRING") to its CIP wire type code. Array suffixes
// ("REAL[3]") use the element type's code, matching the source's
// element-[0]-only array handling.
func TypeCode(enipType string) DataType {
	base := enipType
	for i, r := range enipType {
		if r == '[' {
			base = enipType[:i]
			break
		}
	}
	switch base {
	case "BOOL":
		return TypeBOOL
	case "STRING":
		return TypeSTR
	default:
		return TypeREAL
	}
}

// EncodeScalar encodes a CIP elementary value's bytes, without the type
// code; BuildWriteTagPayload prepends the type code and element count for a
// Write_Tag/SetAttributeSingle request.
func EncodeScalar(dt DataType, boolVal bool, realVal float64, strVal string) []byte {
	switch dt {
	case TypeBOOL:
		b := byte(0x00)
		if boolVal {
			b = 0xFF
		}
		return []byte{b}
	case TypeSTR:
		out := make([]byte, 2+len(strVal))
		binary.LittleEndian.PutUint16(out[0:2], uint16(len(strVal)))
		copy(out[2:], strVal)
		return out
	default:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(realVal)))
		return buf
	}
}

// DecodeScalar decodes a CIP elementary value's payload back to a bool,
// float64, or string depending on dt.
func DecodeScalar(dt DataType, data []byte) (boolVal bool, realVal float64, strVal string, err error) {
	switch dt {
	case TypeBOOL:
		if len(data) < 1 {
			return false, 0, "", fmt.Errorf("enipwire: BOOL payload too short")
		}
		return data[0] != 0x00, 0, "", nil
	case TypeSTR:
		if len(data) < 2 {
			return false, 0, "", fmt.Errorf("enipwire: STRING payload too short")
		}
		n := int(binary.LittleEndian.Uint16(data[0:2]))
		if len(data) < 2+n {
			return false, 0, "", fmt.Errorf("enipwire: STRING payload truncated")
		}
		return false, 0, string(data[2 : 2+n]), nil
	default:
		if len(data) < 4 {
			return false, 0, "", fmt.Errorf("enipwire: REAL payload too short")
		}
		bits := binary.LittleEndian.Uint32(data[0:4])
		return false, float64(math.Float32frombits(bits)), "", nil
	}
}

// BuildReadTagPayload encodes a Read_Tag request payload for one element.
func BuildReadTagPayload() []byte {
	payload := make([]byte, 2)
	binary.LittleEndian.PutUint16(payload, 1)
	return payload
}

// BuildWriteTagPayload encodes a Write_Tag request payload: type code,
// element count, then the value's encoded bytes.
func BuildWriteTagPayload(dt DataType, data []byte) []byte {
	payload := make([]byte, 4+len(data))
	binary.LittleEndian.PutUint16(payload[0:2], uint16(dt))
	binary.LittleEndian.PutUint16(payload[2:4], 1)
	copy(payload[4:], data)
	return payload
}

// ParseWriteTagPayload splits a decoded Write_Tag request payload into its
// type code and value bytes.
func ParseWriteTagPayload(payload []byte) (DataType, []byte, error) {
	if len(payload) < 4 {
		return 0, nil, fmt.Errorf("enipwire: Write_Tag payload too short")
	}
	dt := DataType(binary.LittleEndian.Uint16(payload[0:2]))
	return dt, payload[4:], nil
}
