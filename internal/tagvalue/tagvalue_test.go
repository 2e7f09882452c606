package tagvalue

import "testing"

func TestInfer(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"bool", Bool(true), "BOOL"},
		{"int", Int(1), "REAL"},
		{"float", Real(1.0), "REAL"},
		{"string", String("x"), "STRING"},
		{"real array", Array([]Value{Real(1.0), Real(2.0), Real(3.0)}), "REAL[3]"},
		{"bool array", Array([]Value{Bool(true), Bool(false)}), "BOOL[2]"},
		{"empty array", Array(nil), "REAL[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Infer(tt.v); got != tt.want {
				t.Errorf("Infer() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRaw(t *testing.T) {
	if got := Infer(Raw(true)); got != "BOOL" {
		t.Errorf("Raw(true) infers %q, want BOOL", got)
	}
	if got := Infer(Raw(1.0)); got != "REAL" {
		t.Errorf("Raw(1.0) infers %q, want REAL", got)
	}
	if got := Infer(Raw("x")); got != "STRING" {
		t.Errorf("Raw(\"x\") infers %q, want STRING", got)
	}
	if got := Infer(Raw([]any{1.0, 2.0, 3.0})); got != "REAL[3]" {
		t.Errorf("Raw([1,2,3]) infers %q, want REAL[3]", got)
	}
}

func TestScalar(t *testing.T) {
	arr := Array([]Value{Real(9.0), Real(8.0)})
	s := Scalar(arr)
	if !s.IsReal || s.Real != 9.0 {
		t.Errorf("Scalar(array) = %+v, want element [0]", s)
	}

	empty := Array(nil)
	s = Scalar(empty)
	if !s.IsReal || s.Real != 0 {
		t.Errorf("Scalar(empty array) = %+v, want REAL 0", s)
	}

	scalar := Real(5.0)
	if got := Scalar(scalar); got.Real != 5.0 {
		t.Errorf("Scalar(scalar) = %+v, want unchanged", got)
	}
}

func TestEqual(t *testing.T) {
	if !Equal(Real(1.0), Real(1.0)) {
		t.Error("Real(1.0) should equal Real(1.0)")
	}
	if Equal(Real(1.0), Real(1.0000001)) {
		t.Error("Equal should be exact, not tolerant")
	}
	if !Equal(Bool(true), Bool(true)) {
		t.Error("Bool(true) should equal Bool(true)")
	}
	if Equal(Real(1.0), Bool(true)) {
		t.Error("different kinds should never be equal")
	}
	if !Equal(Array([]Value{Real(1), Real(2)}), Array([]Value{Real(1), Real(2)})) {
		t.Error("identical arrays should be equal")
	}
	if Equal(Array([]Value{Real(1)}), Array([]Value{Real(1), Real(2)})) {
		t.Error("different-length arrays should not be equal")
	}
}

func TestInterface(t *testing.T) {
	if got := Interface(Bool(true)); got != true {
		t.Errorf("Interface(Bool(true)) = %v, want true", got)
	}
	if got := Interface(Real(1.5)); got != 1.5 {
		t.Errorf("Interface(Real(1.5)) = %v, want 1.5", got)
	}
	if got := Interface(String("x")); got != "x" {
		t.Errorf("Interface(String(x)) = %v, want x", got)
	}
}
