package enipwire

import "fmt"

// ServiceCode is a CIP service code.
type ServiceCode uint8

// Service codes the bridge's server and client exercise.
const (
	ServiceGetAttributeSingle ServiceCode = 0x0E
	ServiceSetAttributeSingle ServiceCode = 0x10
	ServiceReadTag            ServiceCode = 0x4C
	ServiceWriteTag           ServiceCode = 0x4D
)

func (s ServiceCode) String() string {
	switch s {
	case ServiceGetAttributeSingle:
		return "Get_Attribute_Single"
	case ServiceSetAttributeSingle:
		return "Set_Attribute_Single"
	case ServiceReadTag:
		return "Read_Tag"
	case ServiceWriteTag:
		return "Write_Tag"
	default:
		return fmt.Sprintf("Unknown(0x%02X)", uint8(s))
	}
}

// IsResponse is the high bit ORed onto a service code in a CIP response.
const IsResponse ServiceCode = 0x80

// Request is a CIP Message Router request addressed by symbolic tag name.
type Request struct {
	Service ServiceCode
	TagName string
	Payload []byte
}

// Response is a CIP Message Router response.
type Response struct {
	Service   ServiceCode
	Status    uint8
	ExtStatus []byte
	Payload   []byte
}

// EncodeRequest serializes a symbolic-addressed CIP request: service byte,
// path-size word, ANSI extended symbolic EPATH, then payload.
func EncodeRequest(req Request) []byte {
	epath := BuildSymbolicEPATH(req.TagName)

	data := make([]byte, 0, 2+len(epath)+len(req.Payload))
	data = append(data, uint8(req.Service))
	data = append(data, uint8(len(epath)/2))
	data = append(data, epath...)
	data = append(data, req.Payload...)
	return data
}

// DecodeRequest parses a symbolic-addressed CIP request.
func DecodeRequest(data []byte) (Request, error) {
	if len(data) < 2 {
		return Request{}, fmt.Errorf("enipwire: CIP request too short")
	}
	service := ServiceCode(data[0])
	pathSizeWords := int(data[1])
	pathBytes := pathSizeWords * 2
	if len(data) < 2+pathBytes {
		return Request{}, fmt.Errorf("enipwire: incomplete EPATH")
	}

	tagName, err := DecodeSymbolicEPATH(data[2 : 2+pathBytes])
	if err != nil {
		return Request{}, err
	}

	req := Request{Service: service, TagName: tagName}
	if len(data) > 2+pathBytes {
		req.Payload = data[2+pathBytes:]
	}
	return req, nil
}

// EncodeResponse serializes a CIP response: service|0x80, reserved byte,
// status, extended-status size, extended status, then payload.
func EncodeResponse(resp Response) []byte {
	extWords := 0
	if len(resp.ExtStatus) > 0 {
		extWords = (len(resp.ExtStatus) + 1) / 2
	}

	data := make([]byte, 0, 4+len(resp.ExtStatus)+len(resp.Payload))
	data = append(data, uint8(resp.Service|IsResponse))
	data = append(data, 0x00) // reserved
	data = append(data, resp.Status)
	data = append(data, uint8(extWords))
	if len(resp.ExtStatus) > 0 {
		data = append(data, resp.ExtStatus...)
		if len(resp.ExtStatus)%2 != 0 {
			data = append(data, 0x00)
		}
	}
	data = append(data, resp.Payload...)
	return data
}

// DecodeResponse parses a CIP response.
func DecodeResponse(data []byte) (Response, error) {
	if len(data) < 4 {
		return Response{}, fmt.Errorf("enipwire: CIP response too short: %d bytes (minimum 4)", len(data))
	}

	resp := Response{Service: ServiceCode(data[0]) &^ IsResponse, Status: data[2]}
	extWords := int(data[3])
	offset := 4
	extLen := extWords * 2
	if extLen > 0 {
		if len(data) < offset+extLen {
			return resp, fmt.Errorf("enipwire: truncated extended status")
		}
		resp.ExtStatus = data[offset : offset+extLen]
		offset += extLen
	}
	if len(data) > offset {
		resp.Payload = data[offset:]
	}
	return resp, nil
}

// BuildSymbolicEPATH builds an EPATH using ANSI extended symbolic segments
// (0x91) for a dotted tag name such as "line1.temperature".
func BuildSymbolicEPATH(tag string) []byte {
	if tag == "" {
		return nil
	}
	var epath []byte
	for _, seg := range splitSymbolicTag(tag) {
		if seg == "" {
			continue
		}
		epath = append(epath, 0x91, byte(len(seg)))
		epath = append(epath, []byte(seg)...)
		if len(seg)%2 != 0 {
			epath = append(epath, 0x00)
		}
	}
	return epath
}

// DecodeSymbolicEPATH decodes ANSI extended symbolic segments into a
// dotted tag name.
func DecodeSymbolicEPATH(data []byte) (string, error) {
	if len(data) < 2 || data[0] != 0x91 {
		return "", fmt.Errorf("enipwire: not a symbolic EPATH")
	}

	var segments []string
	offset := 0
	for offset < len(data) {
		if data[offset] == 0x00 {
			offset++
			continue
		}
		if data[offset] != 0x91 {
			return "", fmt.Errorf("enipwire: invalid symbolic segment: 0x%02X", data[offset])
		}
		if len(data) < offset+2 {
			return "", fmt.Errorf("enipwire: incomplete symbolic segment length")
		}
		length := int(data[offset+1])
		offset += 2
		if len(data) < offset+length {
			return "", fmt.Errorf("enipwire: incomplete symbolic segment data")
		}
		segments = append(segments, string(data[offset:offset+length]))
		offset += length
		if length%2 != 0 && offset < len(data) {
			offset++
		}
	}
	return joinSymbolicTag(segments), nil
}

func splitSymbolicTag(tag string) []string {
	var segments []string
	current := ""
	for i := 0; i < len(tag); i++ {
		if tag[i] == '.' {
			segments = append(segments, current)
			current = ""
			continue
		}
		current += string(tag[i])
	}
	if current != "" {
		segments = append(segments, current)
	}
	return segments
}

func joinSymbolicTag(segments []string) string {
	if len(segments) == 0 {
		return ""
	}
	out := segments[0]
	for _, s := range segments[1:] {
		out += "." + s
	}
	return out
}
