package meshbus

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/256dpi/gomqtt/client"
	"github.com/256dpi/gomqtt/packet"
	"github.com/temoto/meshnode/log2"
	"github.com/temoto/meshnode/mesh"
)

const DefaultPublishTimeout = 5 * time.Second

type MQTTConfig struct {
	BrokerURL   string `hcl:"broker"`
	TopicPrefix string `hcl:"topic_prefix"`
	ClientID    string `hcl:"client_id"`
	KeepAlive   string `hcl:"keepalive"`
}

type waiter interface {
	Wait(timeout time.Duration) error
}

// MQTT is radio bridge: every node address is a topic `<prefix>/<addr>`.
// Send never blocks the event loop, late publish failures are only logged.
type MQTT struct {
	log     *log2.Log
	config  MQTTConfig
	self    mesh.Address
	nodes   mesh.Mapper
	deliver DeliverFunc
	online  uint32
	svc     *client.Service
	publish func(topic string, payload []byte) waiter
}

var _ mesh.Stack = &MQTT{}

func NewMQTT(config MQTTConfig, self mesh.Address, deliver DeliverFunc, log *log2.Log) *MQTT {
	if config.TopicPrefix == "" {
		config.TopicPrefix = "mesh"
	}
	if config.ClientID == "" {
		config.ClientID = "meshnode-" + self.String()
	}
	m := &MQTT{
		log:     log,
		config:  config,
		self:    self,
		nodes:   mesh.NewMapper(self &^ 0xff),
		deliver: deliver,
	}
	return m
}

func (self *MQTT) Topic(a mesh.Address) string {
	return fmt.Sprintf("%s/%s", self.config.TopicPrefix, a)
}

func (self *MQTT) Start() {
	svc := client.NewService()
	svc.OnlineCallback = func(resumed bool) {
		self.log.Infof("meshbus mqtt online resumed=%t", resumed)
		svc.Subscribe(self.Topic(self.self), packet.QOSAtMostOnce)
		svc.Subscribe(self.Topic(mesh.Broadcast), packet.QOSAtMostOnce)
		atomic.StoreUint32(&self.online, 1)
	}
	svc.OfflineCallback = func() {
		atomic.StoreUint32(&self.online, 0)
		self.log.Infof("meshbus mqtt offline")
	}
	svc.ErrorCallback = func(err error) {
		self.log.Errorf("meshbus mqtt err=%v", err)
	}
	svc.MessageCallback = self.onMessage

	cc := client.NewConfig(self.config.BrokerURL)
	cc.ClientID = self.config.ClientID
	cc.CleanSession = true
	if self.config.KeepAlive != "" {
		cc.KeepAlive = self.config.KeepAlive
	}
	self.svc = svc
	self.publish = func(topic string, payload []byte) waiter {
		return svc.Publish(topic, payload, packet.QOSAtMostOnce, false)
	}
	svc.Start(cc)
}

func (self *MQTT) Stop() {
	if self.svc != nil {
		self.svc.Stop(true)
	}
	atomic.StoreUint32(&self.online, 0)
}

func (self *MQTT) Online() bool { return atomic.LoadUint32(&self.online) == 1 }

func (self *MQTT) SendCustomData(dst mesh.Address, frame []byte) error {
	if err := checkSize(dst, frame); err != nil {
		return err
	}
	if !self.Online() || self.publish == nil {
		return &mesh.SendError{Code: mesh.ResultNotReady, Dst: dst}
	}
	topic := self.Topic(dst)
	f := self.publish(topic, EncodeEnvelope(self.self, frame))
	go func() {
		if err := f.Wait(DefaultPublishTimeout); err != nil {
			self.log.Errorf("meshbus mqtt publish topic=%s code=%d err=%v", topic, mesh.ResultBusy, err)
		}
	}()
	return nil
}

// error from MessageCallback closes the connection, so malformed input is only logged
func (self *MQTT) onMessage(msg *packet.Message) error {
	src, frame, length, err := DecodeEnvelope(msg.Payload)
	if err != nil {
		self.log.Errorf("meshbus mqtt topic=%s drop err=%v", msg.Topic, err)
		return nil
	}
	if src == self.self {
		return nil
	}
	// broker may be shared with other networks
	if !self.nodes.Owns(src) {
		self.log.Debugf("meshbus mqtt topic=%s drop foreign src=%s", msg.Topic, src)
		return nil
	}
	self.deliver(src, frame, length)
	return nil
}
