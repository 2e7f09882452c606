package enipwire

import "testing"

func TestEncapsulationRoundTrip(t *testing.T) {
	e := Encapsulation{
		Command:   CommandSendRRData,
		SessionID: 0xAABBCCDD,
		Data:      []byte{1, 2, 3, 4},
	}
	encoded := Encode(e)
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.Command != e.Command || decoded.SessionID != e.SessionID {
		t.Errorf("decoded = %+v, want command/session to match %+v", decoded, e)
	}
	if string(decoded.Data) != string(e.Data) {
		t.Errorf("decoded data = %v, want %v", decoded.Data, e.Data)
	}
}

func TestDecodeTooShort(t *testing.T) {
	if _, err := Decode([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error decoding a too-short packet")
	}
}

func TestBuildRegisterSession(t *testing.T) {
	pkt := BuildRegisterSession([8]byte{})
	decoded, err := Decode(pkt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.Command != CommandRegisterSession {
		t.Errorf("Command = 0x%04X, want RegisterSession", decoded.Command)
	}
}

func TestSendRRDataRoundTrip(t *testing.T) {
	cip := []byte{0x0E, 0x02, 0x20, 0x01, 0x24, 0x01}
	pkt := BuildSendRRData(42, [8]byte{}, cip)
	decoded, err := Decode(pkt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := ParseSendRRDataResponse(decoded.Data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != string(cip) {
		t.Errorf("ParseSendRRDataResponse() = %v, want %v", got, cip)
	}
}

func TestSymbolicEPATHRoundTrip(t *testing.T) {
	tests := []string{"global_value", "line1.temperature", "a.b.c"}
	for _, tag := range tests {
		t.Run(tag, func(t *testing.T) {
			epath := BuildSymbolicEPATH(tag)
			got, err := DecodeSymbolicEPATH(epath)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tag {
				t.Errorf("round trip = %q, want %q", got, tag)
			}
		})
	}
}

func TestCIPRequestRoundTrip(t *testing.T) {
	req := Request{
		Service: ServiceReadTag,
		TagName: "global_value",
		Payload: BuildReadTagPayload(),
	}
	encoded := EncodeRequest(req)
	decoded, err := DecodeRequest(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.Service != req.Service || decoded.TagName != req.TagName {
		t.Errorf("decoded = %+v, want %+v", decoded, req)
	}
}

func TestCIPResponseRoundTrip(t *testing.T) {
	resp := Response{
		Service: ServiceReadTag,
		Status:  0x00,
		Payload: BuildWriteTagPayload(TypeREAL, EncodeScalar(TypeREAL, false, 42.5, "")),
	}
	encoded := EncodeResponse(resp)
	decoded, err := DecodeResponse(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded.Service != resp.Service || decoded.Status != resp.Status {
		t.Errorf("decoded = %+v, want %+v", decoded, resp)
	}

	dt, data, err := ParseWriteTagPayload(decoded.Payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dt != TypeREAL {
		t.Errorf("dt = 0x%04X, want TypeREAL", dt)
	}
	_, realVal, _, err := DecodeScalar(dt, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if realVal != float64(float32(42.5)) {
		t.Errorf("realVal = %v, want ~42.5", realVal)
	}
}

func TestTypeCode(t *testing.T) {
	tests := []struct {
		enipType string
		want     DataType
	}{
		{"BOOL", TypeBOOL},
		{"REAL", TypeREAL},
		{"STRING", TypeSTR},
		{"REAL[3]", TypeREAL},
		{"BOOL[2]", TypeBOOL},
	}
	for _, tt := range tests {
		if got := TypeCode(tt.enipType); got != tt.want {
			t.Errorf("TypeCode(%q) = 0x%04X, want 0x%04X", tt.enipType, got, tt.want)
		}
	}
}

func TestEncodeDecodeScalarBool(t *testing.T) {
	data := EncodeScalar(TypeBOOL, true, 0, "")
	b, _, _, err := DecodeScalar(TypeBOOL, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !b {
		t.Error("expected true")
	}
}

func TestEncodeDecodeScalarString(t *testing.T) {
	data := EncodeScalar(TypeSTR, false, 0, "hello")
	_, _, s, err := DecodeScalar(TypeSTR, data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s != "hello" {
		t.Errorf("s = %q, want hello", s)
	}
}
