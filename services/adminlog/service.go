// Package adminlog streams live log events to operators over the admin
// channel. An operator subscribes with a filter (minimum level, optional
// file, optional line); every later log event matching an active filter is
// pushed back tagged with the subscription's stream id until the operator
// unsubscribes.
package adminlog

import (
	"expvar"
	"strings"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/mitchellh/mapstructure"

	"github.com/logtap/logtap/bufpool"
	"github.com/logtap/logtap/diag"
	"github.com/logtap/logtap/services/admin"
	"github.com/logtap/logtap/vars"
	"github.com/logtap/logtap/wire"
)

const (
	subscribeFunction   = "AdminLog_subscribe"
	unsubscribeFunction = "AdminLog_unsubscribe"
)

// Reply sentinels. Success is signaled by content, not field absence:
// every reply carries an "error" entry and "none" means it worked.
const (
	replyNone          = "none"
	errInvalidLevel    = "The provided log level is invalid, please specify one of [" + diag.ValidLevels + "]"
	errInvalidLine     = "Invalid line number, must be greater than or equal to 1"
	errCapacity        = "Max subscription count reached."
	errInvalidStreamID = "Invalid streamId."
	errNotFound        = "No such subscription."
)

// statistics gathered by the adminlog package.
const (
	statSubscriptionsActive = "subscriptions_active"
	statSubscribes          = "subscribes"
	statUnsubscribes        = "unsubscribes"
	statRequestErrors       = "request_errors"
	statEventsMatched       = "events_matched"
	statPushesSent          = "pushes_tx"
	statPushFail            = "push_fail"
)

type Diagnostic interface {
	Error(msg string, err error)
	SubscriptionCreated(streamID string)
	SubscriptionRemoved(streamID string)
}

// Transport is the slice of the admin channel this service relies on.
type Transport interface {
	RegisterFunction(name string, h admin.HandlerFunc, args []admin.ArgSpec) error
	DeregisterFunction(name string)
	Send(txid string, msg wire.Dict) error
}

// Service owns the subscription registry. One mutex guards the store, the
// interner and every subscription's mutable fields; it is held for the
// whole matching pass of a log call and for the whole of a subscribe or
// unsubscribe, but never across a transport send.
type Service struct {
	mu    sync.Mutex
	store store
	names interner

	pool  *bufpool.Pool
	clock clock.Clock

	transport Transport

	Diag    Diagnostic
	statMap *expvar.Map
	statKey string
}

func NewService(t Transport, d Diagnostic) *Service {
	return &Service{
		pool:      bufpool.New(),
		clock:     clock.New(),
		transport: t,
		Diag:      d,
	}
}

func (s *Service) Open() error {
	s.statKey, s.statMap = vars.NewStatistic("adminlog", nil)

	subscribeArgs := []admin.ArgSpec{
		{Name: "level", Type: "String"},
		{Name: "line", Type: "Int"},
		{Name: "file", Type: "String"},
	}
	if err := s.transport.RegisterFunction(subscribeFunction, s.handleSubscribe, subscribeArgs); err != nil {
		return err
	}

	unsubscribeArgs := []admin.ArgSpec{
		{Name: "streamId", Type: "String", Required: true},
	}
	if err := s.transport.RegisterFunction(unsubscribeFunction, s.handleUnsubscribe, unsubscribeArgs); err != nil {
		s.transport.DeregisterFunction(subscribeFunction)
		return err
	}

	return nil
}

func (s *Service) Close() error {
	s.transport.DeregisterFunction(subscribeFunction)
	s.transport.DeregisterFunction(unsubscribeFunction)

	s.mu.Lock()
	s.store = store{}
	s.names = interner{}
	s.mu.Unlock()

	if s.statKey != "" {
		vars.DeleteStatistic(s.statKey)
		s.statKey = ""
	}
	return nil
}

// NumSubscriptions returns the number of live subscriptions.
func (s *Service) NumSubscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.n
}

type delivery struct {
	txid     string
	streamID uint64
}

// Log implements diag.Handler. It sits on the write path of every log
// statement in the process: the matching pass runs under the registry
// mutex, delivery happens after it is released.
func (s *Service) Log(e diag.Event) {
	var deliveries []delivery
	s.mu.Lock()
	for i := 0; i < s.store.n; i++ {
		sub := &s.store.subs[i]
		if s.match(sub, e.Level, e.File, e.Line) {
			deliveries = append(deliveries, delivery{txid: sub.txid, streamID: sub.streamID})
		}
	}
	s.mu.Unlock()

	if len(deliveries) == 0 {
		return
	}
	s.statMap.Add(statEventsMatched, 1)

	msg := s.encodeEvent(e)
	for _, d := range deliveries {
		msg["streamId"] = formatStreamID(d.streamID)
		// Pushes are best effort. Reporting a failed push through the
		// logger would route straight back here.
		if err := s.transport.Send(d.txid, msg); err != nil {
			s.statMap.Add(statPushFail, 1)
			continue
		}
		s.statMap.Add(statPushesSent, 1)
	}
}

func (s *Service) handleSubscribe(args wire.Dict, txid string) {
	var req struct {
		Level string `mapstructure:"level"`
		Line  int64  `mapstructure:"line"`
		File  string `mapstructure:"file"`
	}
	if err := mapstructure.Decode(map[string]interface{}(args), &req); err != nil {
		// Unreachable after transport-side validation.
		s.Diag.Error("failed to decode subscribe args", err)
		s.replyError(txid, "Invalid arguments.")
		return
	}

	level := diag.Debug
	if _, present := args["level"]; present {
		var err error
		if level, err = diag.LevelFromName(req.Level); err != nil {
			s.replyError(txid, errInvalidLevel)
			return
		}
	}
	if _, present := args["line"]; present && req.Line < 1 {
		s.replyError(txid, errInvalidLine)
		return
	}

	id, err := newStreamID()
	if err != nil {
		s.Diag.Error("failed to generate stream id", err)
		s.replyError(txid, "Failed to generate stream id.")
		return
	}

	sub := subscription{
		level:    level,
		line:     int(req.Line),
		txid:     strings.Clone(txid),
		streamID: id,
	}

	s.mu.Lock()
	if req.File != "" {
		// Reuse the canonical name when a filter for this file has matched
		// before; otherwise the subscription owns its own copy.
		if canonical, ok := s.names.lookup(req.File); ok {
			sub.file = canonical
			sub.interned = true
		} else {
			sub.file = strings.Clone(req.File)
		}
	}
	if !s.store.add(sub) {
		s.mu.Unlock()
		s.replyError(txid, errCapacity)
		return
	}
	s.mu.Unlock()

	s.statMap.Add(statSubscribes, 1)
	s.statMap.Add(statSubscriptionsActive, 1)

	streamID := formatStreamID(id)
	s.send(txid, wire.Dict{"error": replyNone, "streamId": streamID})
	s.Diag.SubscriptionCreated(streamID)
}

func (s *Service) handleUnsubscribe(args wire.Dict, txid string) {
	streamID, _ := args.GetString("streamId")
	id, err := parseStreamID(streamID)
	if err != nil {
		s.replyError(txid, errInvalidStreamID)
		return
	}

	s.mu.Lock()
	i := s.store.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		s.replyError(txid, errNotFound)
		return
	}
	s.store.removeAt(i)
	s.mu.Unlock()

	s.statMap.Add(statUnsubscribes, 1)
	s.statMap.Add(statSubscriptionsActive, -1)

	s.send(txid, wire.Dict{"error": replyNone})
	s.Diag.SubscriptionRemoved(streamID)
}

func (s *Service) replyError(txid, msg string) {
	s.statMap.Add(statRequestErrors, 1)
	s.send(txid, wire.Dict{"error": msg})
}

func (s *Service) send(txid string, msg wire.Dict) {
	if err := s.transport.Send(txid, msg); err != nil {
		s.Diag.Error("failed to send admin reply", err)
	}
}
