package conversion

import (
	"math"
	"testing"

	"gocv.io/x/gocv"
)

func floatMask(t *testing.T, values []float32) gocv.Mat {
	t.Helper()
	m := gocv.NewMatWithSize(1, len(values), gocv.MatTypeCV32FC1)
	for i, v := range values {
		m.SetFloatAt(0, i, v)
	}
	return m
}

func TestMatToProbabilityKeepsFloatMasks(t *testing.T) {
	m := floatMask(t, []float32{0, 0.25, 1})
	defer m.Close()

	prob, err := MatToProbability(m)
	if err != nil {
		t.Fatalf("MatToProbability: %v", err)
	}
	if got := prob.At(0, 1); got != 0.25 {
		t.Fatalf("value = %v, want 0.25", got)
	}
}

func TestMatToProbabilityRejectsFloatsOutsideUnitRange(t *testing.T) {
	cases := map[string]float32{
		"above one": 1.5,
		"negative":  -0.1,
		"nan":       float32(math.NaN()),
	}
	for name, bad := range cases {
		m := floatMask(t, []float32{0.5, bad})
		_, err := MatToProbability(m)
		m.Close()
		if err == nil {
			t.Fatalf("%s: expected error for %v", name, bad)
		}
	}
}

func TestMatToProbabilityScalesIntegerMasks(t *testing.T) {
	m := gocv.NewMatWithSize(1, 2, gocv.MatTypeCV8UC1)
	defer m.Close()
	m.SetUCharAt(0, 1, 255)

	prob, err := MatToProbability(m)
	if err != nil {
		t.Fatalf("MatToProbability: %v", err)
	}
	if prob.At(0, 0) != 0 || prob.At(0, 1) != 1 {
		t.Fatalf("values = %v, %v", prob.At(0, 0), prob.At(0, 1))
	}
}
