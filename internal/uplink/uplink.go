// Package uplink forwards hub telemetry to the cloud over MQTT.
//
// Uplink contract:
// - Init fails only with invalid config or unusable queue, network issues ignored
// - OnTelemetry blocks at most for disk write, safe to call on the node event loop
// - Close stops the worker; queued messages stay on disk for the next start
// - Telemetry is delivered at least once
package uplink

import (
	"sync/atomic"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/atomic_clock"
	"github.com/temoto/meshnode/helpers"
	"github.com/temoto/meshnode/internal/role"
	"github.com/temoto/meshnode/log2"
	"github.com/temoto/meshnode/protocol"
	"github.com/temoto/spq"
)

const DefaultTopicPrefix = "meshnode"

type Config struct {
	Enabled      bool   `hcl:"enable"`
	Broker       string `hcl:"broker"`
	TopicPrefix  string `hcl:"topic_prefix"`
	QueuePath    string `hcl:"queue_path"`
	Username     string `hcl:"username"`
	Password     string `hcl:"password"`
	KeepaliveSec int    `hcl:"keepalive_sec"`
	RetryMinMs   int    `hcl:"retry_min_ms"`
	LogDebug     bool   `hcl:"log_debug"`
}

type Stat struct {
	Pushed   uint32
	Sent     uint32
	Retried  uint32
	Dropped  uint32
	LastPush atomic_clock.Clock
	LastSend atomic_clock.Clock
}

type Uplink struct { //nolint:maligned
	stat      Stat // atomic align
	backoff   helpers.Backoff
	config    Config
	log       *log2.Log
	hub       protocol.NodeID
	transport Transporter
	q         *spq.Queue
	alive     *alive.Alive
}

var _ role.TelemetryObserver = &Uplink{}

func New() *Uplink { return &Uplink{} }

// NewWithTransporter is for tests.
func NewWithTransporter(t Transporter) *Uplink { return &Uplink{transport: t} }

// denote value type in persistent queue bytes form
const (
	qTelemetry byte = 2
)

func (self *Uplink) Init(log *log2.Log, c Config, hub protocol.NodeID) error {
	self.config = c
	self.log = log
	self.hub = hub
	if self.config.LogDebug {
		self.log.SetLevel(log2.LDebug)
	}
	if !self.config.Enabled {
		return nil
	}
	if self.config.QueuePath == "" {
		return errors.NotValidf("uplink queue_path empty")
	}
	self.backoff = helpers.Backoff{
		Min: helpers.IntMillisecondDefault(self.config.RetryMinMs, time.Second),
		Max: 2 * time.Minute,
		K:   2,
		Res: time.Millisecond,
	}

	// test code sets .transport
	if self.transport == nil { // production path
		self.transport = &transportMqtt{}
	}
	if err := self.transport.Init(log, c, hub); err != nil {
		return errors.Annotate(err, "uplink transport")
	}

	var err error
	self.q, err = spq.Open(self.config.QueuePath)
	if err != nil {
		return errors.Annotate(err, "uplink queue")
	}
	self.alive = alive.NewAlive()
	self.alive.Add(1)
	go self.qworker()
	return nil
}

func (self *Uplink) Enabled() bool { return self.config.Enabled && self.q != nil }

func (self *Uplink) Close() {
	if self.alive == nil {
		return
	}
	self.alive.Stop()
	if err := self.q.Close(); err != nil {
		self.log.Errorf("uplink queue close err=%v", err)
	}
	self.alive.Wait()
	self.transport.Close()
}

func (self *Uplink) OnTelemetry(t role.Telemetry) {
	if !self.Enabled() {
		return
	}
	tm := &Telemetry{
		HubId:       uint32(t.Hub),
		SourceId:    uint32(t.Source),
		ValueId:     uint32(t.ValueID),
		Value:       t.Value,
		IntervalSec: t.IntervalSec,
		Time:        time.Now().UnixNano(),
	}
	if err := self.qpushTagProto(qTelemetry, tm); err != nil {
		self.log.Errorf("uplink push tm=%s err=%v", tm.String(), err)
		return
	}
	atomic.AddUint32(&self.stat.Pushed, 1)
	self.stat.LastPush.SetNow()
}

// Stat returns counters snapshot.
func (self *Uplink) Stat() (pushed, sent, retried, dropped uint32) {
	return atomic.LoadUint32(&self.stat.Pushed),
		atomic.LoadUint32(&self.stat.Sent),
		atomic.LoadUint32(&self.stat.Retried),
		atomic.LoadUint32(&self.stat.Dropped)
}

// LastSend is zero time until first successful send.
func (self *Uplink) LastSend() time.Time {
	if self.stat.LastSend.IsZero() {
		return time.Time{}
	}
	// clock counts from package epoch, not unix
	return time.Now().Add(-atomic_clock.Since(&self.stat.LastSend))
}

func (self *Uplink) qworker() {
	defer self.alive.Done()
	for {
		box, err := self.q.Peek()
		switch err {
		case nil:
			// success path
			b := box.Bytes()
			var del bool
			del, err = self.qhandle(b)
			if err != nil {
				self.log.Errorf("uplink qhandle b=%x err=%v", b, err)
			}
			if del {
				if err = self.q.Delete(box); err != nil {
					self.log.Errorf("uplink qhandle Delete b=%x err=%v", b, err)
				}
				self.backoff.Reset()
				continue
			}
			atomic.AddUint32(&self.stat.Retried, 1)
			if err = self.q.DeletePush(box); err != nil {
				self.log.Errorf("uplink qhandle DeletePush b=%x err=%v", b, err)
			}
			if !self.sleep(self.backoff.DelayAfter(false)) {
				return
			}

		case spq.ErrClosed:
			if self.alive.IsRunning() {
				self.log.Errorf("CRITICAL uplink spq closed unexpectedly")
			}
			return

		default:
			self.log.Errorf("CRITICAL uplink spq err=%v", err)
			if !self.sleep(self.backoff.DelayAfter(false)) {
				return
			}
		}
	}
}

// sleep returns false when stopped
func (self *Uplink) sleep(d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-self.alive.StopChan():
		return false
	}
}

func (self *Uplink) qhandle(b []byte) (bool, error) {
	if len(b) == 0 {
		atomic.AddUint32(&self.stat.Dropped, 1)
		return true, errors.New("uplink spq peek=empty")
	}

	switch b[0] {
	case qTelemetry:
		var tm Telemetry
		if err := proto.Unmarshal(b[1:], &tm); err != nil {
			atomic.AddUint32(&self.stat.Dropped, 1)
			return true, err
		}
		return self.qsendTelemetry(&tm), nil

	default:
		atomic.AddUint32(&self.stat.Dropped, 1)
		return true, errors.Errorf("unknown kind=%d", b[0])
	}
}

func (self *Uplink) qpushTagProto(tag byte, pb proto.Message) error {
	buf := proto.NewBuffer(make([]byte, 0, 64))
	if err := buf.EncodeVarint(uint64(tag)); err != nil {
		return err
	}
	if err := buf.Marshal(pb); err != nil {
		return err
	}
	return self.q.Push(buf.Bytes())
}

func (self *Uplink) qsendTelemetry(tm *Telemetry) bool {
	payload, err := proto.Marshal(tm)
	if err != nil {
		self.log.Errorf("CRITICAL telemetry Marshal tm=%#v err=%v", tm, err)
		return true // retry will not help
	}
	self.log.Debugf("uplink send %x", payload)
	if !self.transport.SendTelemetry(payload) {
		return false
	}
	atomic.AddUint32(&self.stat.Sent, 1)
	self.stat.LastSend.SetNow()
	return true
}
