package registers

import "testing"

func TestChargingStateLabel(t *testing.T) {
	tests := []struct {
		code uint16
		want string
	}{
		{0, "deactivated"},
		{2, "mppt"},
		{5, "floating"},
		{6, "current limiting"},
		{7, "unknown"},
		{0xFFFF, "unknown"},
	}

	for _, tt := range tests {
		if got := ChargingStateLabel(tt.code); got != tt.want {
			t.Errorf("ChargingStateLabel(%d) = %q, expected %q", tt.code, got, tt.want)
		}
	}
}

func TestSectionsForFamilies(t *testing.T) {
	controller := SectionsFor(FamilyController)
	if len(controller) != 5 {
		t.Errorf("controller schedule has %d sections, expected 5", len(controller))
	}
	// The authoritative state section is read last
	if controller[len(controller)-1].Name != "state" {
		t.Errorf("last controller section = %q, expected state", controller[len(controller)-1].Name)
	}

	inverter := SectionsFor(FamilyInverter)
	if len(inverter) != 1 {
		t.Errorf("inverter schedule has %d sections, expected 1 consolidated read", len(inverter))
	}

	if SectionsFor(Family("toaster")) != nil {
		t.Error("unknown family should yield no schedule")
	}
}

func TestFamilyValid(t *testing.T) {
	if !FamilyController.Valid() || !FamilyInverter.Valid() {
		t.Error("known families reported invalid")
	}
	if Family("").Valid() || Family("x").Valid() {
		t.Error("unknown family reported valid")
	}
}

func TestControllerBatteryDecode(t *testing.T) {
	payload := []byte{
		0x00, 0x64, // soc 100
		0x00, 0x84, // 13.2 V
		0x00, 0xFA, // 2.50 A
		0x19, 0x15, // 25 C controller, 21 C battery
		0x00, 0x7E, // 12.6 V load
		0x00, 0x6E, // 1.10 A load
		0x00, 0x0E, // 14 W load
	}

	var battery Section
	for _, s := range SectionsFor(FamilyController) {
		if s.Name == "battery" {
			battery = s
		}
	}
	if battery.Decode == nil {
		t.Fatal("battery section not found")
	}
	if battery.StartRegister != 0x0100 || battery.WordCount != 7 {
		t.Errorf("battery section range = (0x%04X, %d)", battery.StartRegister, battery.WordCount)
	}

	readings := battery.Decode(payload)

	expect := map[string]float64{
		"battery_soc":            100,
		"battery_voltage":        13.2,
		"charging_current":       2.5,
		"controller_temperature": 25,
		"battery_temperature":    21,
		"load_voltage":           12.6,
		"load_current":           1.1,
		"load_power":             14,
	}
	for name, want := range expect {
		got, ok := readings[name].(float64)
		if !ok {
			t.Errorf("%s missing", name)
			continue
		}
		if !almostEqual(got, want) {
			t.Errorf("%s = %v, expected %v", name, got, want)
		}
	}
}

func TestControllerStateDecode(t *testing.T) {
	var state Section
	for _, s := range SectionsFor(FamilyController) {
		if s.Name == "state" {
			state = s
		}
	}

	readings := state.Decode([]byte{0x00, 0x02, 0x00, 0x00, 0x00, 0x00})
	if readings["charging_state"] != "mppt" {
		t.Errorf("charging_state = %v, expected mppt", readings["charging_state"])
	}
	if v := readings["fault_bits"].(float64); v != 0 {
		t.Errorf("fault_bits = %v, expected 0", v)
	}

	// Truncated payload still yields the state, skips the fault bits
	partial := state.Decode([]byte{0x00, 0x05})
	if partial["charging_state"] != "floating" {
		t.Errorf("charging_state = %v, expected floating", partial["charging_state"])
	}
	if _, ok := partial["fault_bits"]; ok {
		t.Error("fault_bits decoded from truncated payload")
	}
}

func TestDeviceInfoDecode(t *testing.T) {
	var info Section
	for _, s := range SectionsFor(FamilyController) {
		if s.Name == "device_info" {
			info = s
		}
	}

	payload := []byte("ML2440\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00")
	readings := info.Decode(payload)
	if readings["model"] != "ML2440" {
		t.Errorf("model = %v, expected ML2440", readings["model"])
	}

	// An unreadable model yields an empty section, not a bogus field
	if got := info.Decode(nil); len(got) != 0 {
		t.Errorf("expected empty map for nil payload, got %#v", got)
	}
}

func TestInverterDecodeSignedCurrent(t *testing.T) {
	section := SectionsFor(FamilyInverter)[0]

	payload := make([]byte, 38)
	payload[0], payload[1] = 0x00, 0x55 // soc 85
	payload[2], payload[3] = 0x02, 0x00 // 51.2 V
	payload[4], payload[5] = 0xFF, 0x9C // -10.0 A, discharging
	payload[33] = 0x04                  // boost charging

	readings := section.Decode(payload)

	if v := readings["battery_current"].(float64); !almostEqual(v, -10.0) {
		t.Errorf("battery_current = %v, expected -10.0", v)
	}
	if v := readings["battery_voltage"].(float64); !almostEqual(v, 51.2) {
		t.Errorf("battery_voltage = %v, expected 51.2", v)
	}
	if readings["charging_state"] != "boost" {
		t.Errorf("charging_state = %v, expected boost", readings["charging_state"])
	}
}
