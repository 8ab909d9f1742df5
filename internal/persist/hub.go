package persist

import (
	"sort"

	proto "github.com/golang/protobuf/proto"
	"github.com/juju/errors"
	"github.com/temoto/meshnode/internal/role"
	"github.com/temoto/meshnode/log2"
	"github.com/temoto/meshnode/protocol"
)

const HubTag = "hub-settings"

// HubSettingsPB is storage form of role.HubSettings.
type HubSettingsPB struct {
	PollIntervalSec      uint32             `protobuf:"varint,1,opt,name=poll_interval_sec,json=pollIntervalSec,proto3" json:"poll_interval_sec,omitempty"`
	Sensors              []*SensorSettingPB `protobuf:"bytes,2,rep,name=sensors,proto3" json:"sensors,omitempty"`
	XXX_NoUnkeyedLiteral struct{}           `json:"-"`
	XXX_unrecognized     []byte             `json:"-"`
	XXX_sizecache        int32              `json:"-"`
}

func (m *HubSettingsPB) Reset()         { *m = HubSettingsPB{} }
func (m *HubSettingsPB) String() string { return proto.CompactTextString(m) }
func (*HubSettingsPB) ProtoMessage()    {}

type SensorSettingPB struct {
	ValueId              uint32   `protobuf:"varint,1,opt,name=value_id,json=valueId,proto3" json:"value_id,omitempty"`
	PollSec              uint32   `protobuf:"varint,2,opt,name=poll_sec,json=pollSec,proto3" json:"poll_sec,omitempty"`
	Power                uint32   `protobuf:"varint,3,opt,name=power,proto3" json:"power,omitempty"`
	XXX_NoUnkeyedLiteral struct{} `json:"-"`
	XXX_unrecognized     []byte   `json:"-"`
	XXX_sizecache        int32    `json:"-"`
}

func (m *SensorSettingPB) Reset()         { *m = SensorSettingPB{} }
func (m *SensorSettingPB) String() string { return proto.CompactTextString(m) }
func (*SensorSettingPB) ProtoMessage()    {}

func init() {
	proto.RegisterType((*HubSettingsPB)(nil), "meshnode.persist.HubSettings")
	proto.RegisterType((*SensorSettingPB)(nil), "meshnode.persist.SensorSetting")
}

// HubState adapts role.HubSettings to Stater.
type HubState struct {
	Settings role.HubSettings
}

var _ Stater = &HubState{}

func (s *HubState) MarshalBinary() ([]byte, error) {
	pb := &HubSettingsPB{PollIntervalSec: s.Settings.PollIntervalSec}
	ids := make(map[protocol.ValueID]struct{})
	for v := range s.Settings.SensorPollSec {
		ids[v] = struct{}{}
	}
	for v := range s.Settings.SensorPower {
		ids[v] = struct{}{}
	}
	sorted := make([]int, 0, len(ids))
	for v := range ids {
		sorted = append(sorted, int(v))
	}
	sort.Ints(sorted)
	for _, i := range sorted {
		v := protocol.ValueID(i)
		pb.Sensors = append(pb.Sensors, &SensorSettingPB{
			ValueId: uint32(v),
			PollSec: s.Settings.SensorPollSec[v],
			Power:   uint32(s.Settings.SensorPower[v]),
		})
	}
	return proto.Marshal(pb)
}

// UnmarshalBinary overrides only what was stored.
func (s *HubState) UnmarshalBinary(b []byte) error {
	var pb HubSettingsPB
	if err := proto.Unmarshal(b, &pb); err != nil {
		return errors.Annotate(err, "hub settings")
	}
	if pb.PollIntervalSec != 0 {
		s.Settings.PollIntervalSec = pb.PollIntervalSec
	}
	if s.Settings.SensorPollSec == nil {
		s.Settings.SensorPollSec = make(map[protocol.ValueID]uint32)
	}
	if s.Settings.SensorPower == nil {
		s.Settings.SensorPower = make(map[protocol.ValueID]protocol.Power)
	}
	for _, ss := range pb.Sensors {
		v := protocol.ValueID(ss.ValueId)
		if !v.Known() {
			continue
		}
		if ss.PollSec != 0 {
			s.Settings.SensorPollSec[v] = ss.PollSec
		}
		if ss.Power != 0 {
			s.Settings.SensorPower[v] = protocol.Power(ss.Power)
		}
	}
	return nil
}

// HubStore loads settings once and saves every operator change.
type HubStore struct {
	p     Persist
	state HubState
}

func OpenHubStore(root string, defaults role.HubSettings, log *log2.Log) (*HubStore, error) {
	self := &HubStore{state: HubState{Settings: defaults}}
	if err := self.p.Init(HubTag, &self.state, root, log); err != nil {
		return nil, err
	}
	if err := self.p.Load(); err != nil {
		return nil, err
	}
	return self, nil
}

func (self *HubStore) Settings() role.HubSettings { return self.state.Settings }

// Save is role.Hub OnSettings callback, errors are logged.
func (self *HubStore) Save(s role.HubSettings) {
	self.state.Settings = s
	if err := self.p.Store(); err != nil {
		self.p.log.Error(errors.ErrorStack(err))
	}
}

// Bind makes hub changes persistent.
func (self *HubStore) Bind(h *role.Hub) { h.OnSettings(self.Save) }
