package uplink

import (
	proto "github.com/golang/protobuf/proto"
)

// Telemetry is the cloud wire message, one accepted sample per message.
// Field numbers are stable, consumers decode with any protobuf runtime:
//   message Telemetry {
//     uint32 hub_id = 1;
//     uint32 source_id = 2;
//     uint32 value_id = 3;
//     uint32 value = 4;
//     uint32 interval_sec = 5;
//     int64 time = 6; // unix nanoseconds
//   }
type Telemetry struct {
	HubId                uint32   `protobuf:"varint,1,opt,name=hub_id,json=hubId,proto3" json:"hub_id,omitempty"`
	SourceId             uint32   `protobuf:"varint,2,opt,name=source_id,json=sourceId,proto3" json:"source_id,omitempty"`
	ValueId              uint32   `protobuf:"varint,3,opt,name=value_id,json=valueId,proto3" json:"value_id,omitempty"`
	Value                uint32   `protobuf:"varint,4,opt,name=value,proto3" json:"value,omitempty"`
	IntervalSec          uint32   `protobuf:"varint,5,opt,name=interval_sec,json=intervalSec,proto3" json:"interval_sec,omitempty"`
	Time                 int64    `protobuf:"varint,6,opt,name=time,proto3" json:"time,omitempty"`
	XXX_NoUnkeyedLiteral struct{} `json:"-"`
	XXX_unrecognized     []byte   `json:"-"`
	XXX_sizecache        int32    `json:"-"`
}

func (m *Telemetry) Reset()         { *m = Telemetry{} }
func (m *Telemetry) String() string { return proto.CompactTextString(m) }
func (*Telemetry) ProtoMessage()    {}

func init() {
	proto.RegisterType((*Telemetry)(nil), "meshnode.uplink.Telemetry")
}
