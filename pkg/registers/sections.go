package registers

import "encoding/binary"

// Section is a named group of consecutive device registers read with one
// command and decoded by one function. Sections are static per device
// family and polled sequentially, in declared order, each update cycle.
type Section struct {
	Name          string
	StartRegister uint16
	WordCount     uint16
	Decode        func(payload []byte) ReadingMap
}

// Family selects the register schedule for a device model. The two dialects
// are incompatible on the wire, so the family is an explicit configuration
// input rather than something probed per poll cycle.
type Family string

const (
	// FamilyController - solar charge controllers, five-section sequential read
	FamilyController Family = "controller"
	// FamilyInverter - hybrid inverters, single consolidated register read
	FamilyInverter Family = "inverter"
)

// Valid reports whether f names a known device family
func (f Family) Valid() bool {
	return f == FamilyController || f == FamilyInverter
}

// chargingStates is the closed enumeration of charge-state codes the
// controllers report. Codes outside the table map to "unknown".
var chargingStates = map[uint16]string{
	0: "deactivated",
	1: "activated",
	2: "mppt",
	3: "equalizing",
	4: "boost",
	5: "floating",
	6: "current limiting",
}

// ChargingStateLabel maps a charge-state code to its human label
func ChargingStateLabel(code uint16) string {
	if label, ok := chargingStates[code]; ok {
		return label
	}
	return "unknown"
}

var batteryFields = []Field{
	{Name: "battery_soc", Offset: 0, Width: 2},
	{Name: "battery_voltage", Offset: 2, Width: 2, Scale: 10},
	{Name: "charging_current", Offset: 4, Width: 2, Scale: 100},
	{Name: "controller_temperature", Offset: 6, Width: 1, Signed: true},
	{Name: "battery_temperature", Offset: 7, Width: 1, Signed: true},
	{Name: "load_voltage", Offset: 8, Width: 2, Scale: 10},
	{Name: "load_current", Offset: 10, Width: 2, Scale: 100},
	{Name: "load_power", Offset: 12, Width: 2},
}

var solarFields = []Field{
	{Name: "pv_voltage", Offset: 0, Width: 2, Scale: 10},
	{Name: "pv_current", Offset: 2, Width: 2, Scale: 100},
	{Name: "pv_power", Offset: 4, Width: 2},
	{Name: "charging_power", Offset: 6, Width: 2},
}

var dailyFields = []Field{
	{Name: "charge_today_ah", Offset: 0, Width: 2},
	{Name: "discharge_today_ah", Offset: 2, Width: 2},
	{Name: "generation_today", Offset: 4, Width: 2, Scale: 1000},
	{Name: "consumption_today", Offset: 6, Width: 2, Scale: 1000},
}

var inverterFields = []Field{
	{Name: "battery_soc", Offset: 0, Width: 2},
	{Name: "battery_voltage", Offset: 2, Width: 2, Scale: 10},
	{Name: "battery_current", Offset: 4, Width: 2, Signed: true, Scale: 10},
	{Name: "device_temperature", Offset: 6, Width: 2, Signed: true, Scale: 10},
	{Name: "grid_voltage", Offset: 8, Width: 2, Scale: 10},
	{Name: "grid_current", Offset: 10, Width: 2, Scale: 100},
	{Name: "grid_frequency", Offset: 12, Width: 2, Scale: 100},
	{Name: "output_voltage", Offset: 14, Width: 2, Scale: 10},
	{Name: "output_current", Offset: 16, Width: 2, Scale: 100},
	{Name: "output_frequency", Offset: 18, Width: 2, Scale: 100},
	{Name: "load_power", Offset: 20, Width: 2},
	{Name: "load_percent", Offset: 22, Width: 2},
	{Name: "pv_voltage", Offset: 24, Width: 2, Scale: 10},
	{Name: "pv_current", Offset: 26, Width: 2, Scale: 100},
	{Name: "pv_power", Offset: 28, Width: 4},
}

func decodeDeviceInfo(payload []byte) ReadingMap {
	readings := make(ReadingMap, 1)
	if model := DecodeString(payload, 0, 16); model != "" {
		readings["model"] = model
	}
	return readings
}

func decodeChargingState(payload []byte) ReadingMap {
	readings := make(ReadingMap, 2)
	if len(payload) >= 2 {
		readings["charging_state"] = ChargingStateLabel(binary.BigEndian.Uint16(payload[0:2]))
	}
	if len(payload) >= 6 {
		readings["fault_bits"] = float64(binary.BigEndian.Uint32(payload[2:6]))
	}
	return readings
}

func decodeInverterState(payload []byte) ReadingMap {
	readings := DecodeFields(payload, inverterFields)
	if len(payload) >= 34 {
		readings["charging_state"] = ChargingStateLabel(binary.BigEndian.Uint16(payload[32:34]))
	}
	if len(payload) >= 38 {
		readings["fault_bits"] = float64(binary.BigEndian.Uint32(payload[34:38]))
	}
	return readings
}

// controllerSections is the five-section schedule for charge controllers.
// The charging-state section is read last: its fields are authoritative and
// the left-to-right merge lets them overwrite earlier values.
var controllerSections = []Section{
	{
		Name:          "device_info",
		StartRegister: 0x000C,
		WordCount:     8,
		Decode:        decodeDeviceInfo,
	},
	{
		Name:          "battery",
		StartRegister: 0x0100,
		WordCount:     7,
		Decode:        func(p []byte) ReadingMap { return DecodeFields(p, batteryFields) },
	},
	{
		Name:          "solar",
		StartRegister: 0x0107,
		WordCount:     4,
		Decode:        func(p []byte) ReadingMap { return DecodeFields(p, solarFields) },
	},
	{
		Name:          "daily_stats",
		StartRegister: 0x010B,
		WordCount:     4,
		Decode:        func(p []byte) ReadingMap { return DecodeFields(p, dailyFields) },
	},
	{
		Name:          "state",
		StartRegister: 0x0120,
		WordCount:     3,
		Decode:        decodeChargingState,
	},
}

// inverterSections is the consolidated single-read schedule for inverters
var inverterSections = []Section{
	{
		Name:          "status",
		StartRegister: 0x0100,
		WordCount:     0x13,
		Decode:        decodeInverterState,
	},
}

// SectionsFor returns the register schedule for a device family. The tables
// are immutable; callers receive a copy of the slice header and must not
// mutate the sections.
func SectionsFor(family Family) []Section {
	switch family {
	case FamilyController:
		sections := make([]Section, len(controllerSections))
		copy(sections, controllerSections)
		return sections
	case FamilyInverter:
		sections := make([]Section, len(inverterSections))
		copy(sections, inverterSections)
		return sections
	default:
		return nil
	}
}
