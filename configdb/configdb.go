package configdb

import "sort"

// CONFIG_DB tables the relay manager subscribes to.
const (
	RelayTable          = "DHCPV4_RELAY"
	InterfaceTable      = "INTERFACE"
	LoopbackTable       = "LOOPBACK_INTERFACE"
	PortChannelTable    = "PORTCHANNEL_INTERFACE"
	DeviceMetadataTable = "DEVICE_METADATA"
)

// Operation is the kind of change carried by a Record.
type Operation string

const (
	OpSet Operation = "SET"
	OpDel Operation = "DEL"
)

// FieldValue is a single field of a table row.
type FieldValue struct {
	Field string
	Value string
}

// Record is one key/operation/fields tuple popped from a subscribed table.
type Record struct {
	Key    string
	Op     Operation
	Fields []FieldValue
}

// Get returns the value of the first field named f.
func (r Record) Get(f string) (string, bool) {
	for _, fv := range r.Fields {
		if fv.Field == f {
			return fv.Value, true
		}
	}
	return "", false
}

// FieldsFromMap converts a field map into a FieldValue list ordered by field name.
func FieldsFromMap(m map[string]string) []FieldValue {
	fields := make([]FieldValue, 0, len(m))
	for f, v := range m {
		fields = append(fields, FieldValue{Field: f, Value: v})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })
	return fields
}
