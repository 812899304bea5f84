package pipeline

import "testing"

func TestAnnealTemperature_DropsAndFloors(t *testing.T) {
	got := annealTemperature(0.7, genValidationTempDrop)
	want := 0.55
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("annealTemperature(0.7, %v) = %v, want %v", genValidationTempDrop, got, want)
	}
}

func TestAnnealTemperature_NeverDropsBelowFloor(t *testing.T) {
	got := annealTemperature(genMinTemperature+0.05, genExceptionTempDrop)
	if got != genMinTemperature {
		t.Errorf("annealTemperature near floor = %v, want floor %v", got, genMinTemperature)
	}
}
