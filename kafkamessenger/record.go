package kafkamessenger

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cisco-open/dhcp4relay/configdb"
	"github.com/cisco-open/dhcp4relay/counters"
)

var (
	errNoPartitions = errors.New("topic has no partitions")
	errNoKey        = errors.New("record has no key")
	errNoInterface  = errors.New("counter record has no interface")
)

// record is the wire form of a config change.
type record struct {
	Key    string            `json:"key"`
	Op     string            `json:"op"`
	Fields map[string]string `json:"fields,omitempty"`
}

// counter is the wire form of one relayed DHCPv4 message. Type names the
// counter, Code is the DHCP message type option and is used when Type is empty.
type counter struct {
	Interface string `json:"interface"`
	Direction string `json:"direction"`
	Type      string `json:"type,omitempty"`
	Code      uint8  `json:"code,omitempty"`
}

func (c *counter) messageType() counters.MessageType {
	if c.Type != "" {
		return counters.ParseMessageType(c.Type)
	}
	return counters.MessageTypeFromCode(c.Code)
}

func decodeRecord(b []byte) (configdb.Record, error) {
	var r record
	if err := json.Unmarshal(b, &r); err != nil {
		return configdb.Record{}, fmt.Errorf("failed to decode config record: %w", err)
	}
	if r.Key == "" {
		return configdb.Record{}, errNoKey
	}
	return configdb.Record{
		Key:    r.Key,
		Op:     configdb.Operation(r.Op),
		Fields: configdb.FieldsFromMap(r.Fields),
	}, nil
}

func decodeCounter(b []byte) (*counter, error) {
	c := &counter{}
	if err := json.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("failed to decode counter record: %w", err)
	}
	if c.Interface == "" {
		return nil, errNoInterface
	}
	return c, nil
}
