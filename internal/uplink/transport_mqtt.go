package uplink

import (
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"
	"github.com/temoto/meshnode/helpers"
	"github.com/temoto/meshnode/log2"
	"github.com/temoto/meshnode/protocol"
)

const DefaultNetworkTimeout = 30 * time.Second

type transportMqtt struct {
	log  *log2.Log
	m    mqtt.Client
	mopt *mqtt.ClientOptions

	topicConnect   string
	topicTelemetry string
}

var _ Transporter = &transportMqtt{}

// paho wants Println/Printf
type mqttLogger struct {
	log   *log2.Log
	level log2.Level
}

func (l mqttLogger) Println(v ...interface{}) { l.log.Log(l.level, "mqtt: "+fmt.Sprint(v...)) }
func (l mqttLogger) Printf(format string, v ...interface{}) {
	l.log.Logf(l.level, "mqtt: "+format, v...)
}

func (self *transportMqtt) Init(log *log2.Log, c Config, hub protocol.NodeID) error {
	self.log = log
	if c.Broker == "" {
		return errors.NotValidf("uplink broker empty")
	}
	mqtt.ERROR = mqttLogger{log, log2.LError}
	mqtt.CRITICAL = mqttLogger{log, log2.LError}
	mqtt.WARN = mqttLogger{log, log2.LInfo}

	clientId := fmt.Sprintf("meshnode-n%d", hub)
	prefix := c.TopicPrefix
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	self.topicConnect = fmt.Sprintf("%s/n%d/c", prefix, hub)
	self.topicTelemetry = fmt.Sprintf("%s/n%d/t", prefix, hub)
	keepAlive := helpers.IntSecondDefault(c.KeepaliveSec, 60*time.Second)
	pingTimeout := helpers.IntSecondDefault(c.KeepaliveSec/2, 30*time.Second)

	self.mopt = mqtt.NewClientOptions().
		AddBroker(c.Broker).
		SetBinaryWill(self.topicConnect, []byte{0x00}, 1, true).
		SetCleanSession(false).
		SetClientID(clientId).
		SetUsername(c.Username).
		SetPassword(c.Password).
		SetKeepAlive(keepAlive).
		SetPingTimeout(pingTimeout).
		SetAutoReconnect(true).
		SetOnConnectHandler(self.onConnectHandler).
		SetConnectionLostHandler(self.connectLostHandler)
	self.m = mqtt.NewClient(self.mopt)
	// network errors are not fatal, paho keeps reconnecting after first success
	// and SendTelemetry reports offline until then
	go func() {
		if token := self.m.Connect(); token.Wait() && token.Error() != nil {
			self.log.Errorf("uplink mqtt connect broker=%s err=%v", c.Broker, token.Error())
		}
	}()
	return nil
}

func (self *transportMqtt) Close() {
	if self.m == nil {
		return
	}
	if self.m.IsConnected() {
		self.m.Publish(self.topicConnect, 1, true, []byte{0x00}).WaitTimeout(time.Second)
	}
	self.m.Disconnect(250)
}

func (self *transportMqtt) SendTelemetry(payload []byte) bool {
	if !self.m.IsConnected() {
		return false
	}
	token := self.m.Publish(self.topicTelemetry, 1, false, payload)
	if !token.WaitTimeout(DefaultNetworkTimeout) {
		self.log.Errorf("uplink mqtt publish timeout")
		return false
	}
	if err := token.Error(); err != nil {
		self.log.Errorf("uplink mqtt publish err=%v", err)
		return false
	}
	return true
}

func (self *transportMqtt) connectLostHandler(c mqtt.Client, err error) {
	self.log.Infof("uplink mqtt disconnect err=%v", err)
}

func (self *transportMqtt) onConnectHandler(c mqtt.Client) {
	self.log.Infof("uplink mqtt connect")
	c.Publish(self.topicConnect, 1, true, []byte{0x01})
}
