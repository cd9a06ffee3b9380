package gpio

import "testing"

func TestMockDriver_WriteRequiresOutputPin(t *testing.T) {
	d := &MockDriver{}

	if err := d.WritePin(17, High); err == nil {
		t.Error("write to unconfigured pin should fail")
	}

	if err := d.SetupPin(17, Input); err != nil {
		t.Fatalf("SetupPin: %v", err)
	}
	if err := d.WritePin(17, High); err == nil {
		t.Error("write to input pin should fail")
	}

	if err := d.SetupPin(17, Output); err != nil {
		t.Fatalf("SetupPin: %v", err)
	}
	if err := d.WritePin(17, High); err != nil {
		t.Errorf("write to output pin: %v", err)
	}
}

func TestMockDriver_RemembersWrittenLevel(t *testing.T) {
	d := &MockDriver{}
	if err := d.SetupPin(27, Output); err != nil {
		t.Fatal(err)
	}

	for _, level := range []Level{High, Low, High} {
		if err := d.WritePin(27, level); err != nil {
			t.Fatalf("WritePin: %v", err)
		}
		if got := d.PinLevel(27); got != level {
			t.Errorf("PinLevel = %v, want %v", got, level)
		}
		if got, err := d.ReadPin(27); err != nil || got != level {
			t.Errorf("ReadPin = %v, %v, want %v", got, err, level)
		}
	}
}

func TestMockDriver_CloseResetsState(t *testing.T) {
	d := &MockDriver{}
	if err := d.SetupPin(5, Output); err != nil {
		t.Fatal(err)
	}
	if err := d.WritePin(5, High); err != nil {
		t.Fatal(err)
	}

	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := d.WritePin(5, High); err == nil {
		t.Error("write after Close should fail, pin configuration is gone")
	}
}

func TestNewDriver_Mock(t *testing.T) {
	d, err := NewDriver(true)
	if err != nil {
		t.Fatalf("NewDriver(true): %v", err)
	}
	if _, ok := d.(*MockDriver); !ok {
		t.Errorf("NewDriver(true) = %T, want *MockDriver", d)
	}
}
