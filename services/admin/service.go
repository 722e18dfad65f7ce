// Package admin implements the administration channel: a UDP listener
// speaking bencoded request/reply dictionaries. Named functions are
// registered with typed argument specs; replies and pushes are addressed
// by the transaction id of the request that solicited them.
package admin

import (
	"expvar"
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/logtap/logtap/vars"
	"github.com/logtap/logtap/wire"
)

const (
	UDPPacketSize = 65536

	// maxRoutes bounds the txid return-address table.
	maxRoutes = 1024
)

// statistics gathered by the admin package.
const (
	statBytesReceived    = "bytes_rx"
	statRequestsReceived = "requests_rx"
	statReadFail         = "read_fail"
	statDecodeFail       = "decode_fail"
	statUnknownFunction  = "unknown_q"
	statMessagesSent     = "tx"
	statSendFail         = "tx_fail"
)

// ErrNoRoute is returned by Send when no request carrying the txid has
// been seen, so there is no address to deliver to.
var ErrNoRoute = errors.New("no route for transaction id")

type Diagnostic interface {
	Error(msg string, err error)
	StartedListening(addr string)
	ClosedService()
}

// HandlerFunc handles one validated request. Args have already passed the
// registered argument specs; txid addresses the reply via Send.
type HandlerFunc func(args wire.Dict, txid string)

// ArgSpec describes one argument accepted by a registered function.
type ArgSpec struct {
	Name     string
	Type     string // "String" or "Int"
	Required bool
}

type function struct {
	args    []ArgSpec
	handler HandlerFunc
}

type packet struct {
	data []byte
	addr *net.UDPAddr
}

// Service is the admin channel transport. Handlers run one at a time on
// the dispatch goroutine; Send may be called from any goroutine.
type Service struct {
	conn    *net.UDPConn
	addr    *net.UDPAddr
	wg      sync.WaitGroup
	done    chan struct{}
	packets chan packet

	funcMu    sync.RWMutex
	functions map[string]function

	routeMu sync.Mutex
	routes  map[string]*net.UDPAddr

	config Config

	Diag    Diagnostic
	statMap *expvar.Map
	statKey string
}

func NewService(c Config, diag Diagnostic) *Service {
	d := *c.WithDefaults()
	return &Service{
		config:    d,
		done:      make(chan struct{}),
		functions: make(map[string]function),
		routes:    make(map[string]*net.UDPAddr),
		Diag:      diag,
	}
}

func (s *Service) Open() (err error) {
	s.addr, err = net.ResolveUDPAddr("udp", s.config.BindAddress)
	if err != nil {
		s.Diag.Error("failed to resolve admin bind address", err)
		return errors.Wrapf(err, "resolve %q", s.config.BindAddress)
	}

	s.conn, err = net.ListenUDP("udp", s.addr)
	if err != nil {
		s.Diag.Error("failed to set up admin listener", err)
		return errors.Wrapf(err, "listen %q", s.addr.String())
	}

	// Save fully resolved and bound addr. Useful if port given was '0'.
	s.addr = s.conn.LocalAddr().(*net.UDPAddr)

	tags := map[string]string{"bind": s.addr.String()}
	s.statKey, s.statMap = vars.NewStatistic("admin", tags)

	if s.config.ReadBuffer != 0 {
		if err := s.conn.SetReadBuffer(s.config.ReadBuffer); err != nil {
			s.Diag.Error("failed to set admin read buffer", err)
			return errors.Wrap(err, "set read buffer")
		}
	}

	s.Diag.StartedListening(s.addr.String())

	s.packets = make(chan packet, s.config.Buffer)
	s.wg.Add(1)
	go s.serve()
	s.wg.Add(1)
	go s.processPackets()

	return nil
}

func (s *Service) Close() error {
	if s.conn == nil {
		return errors.New("service already closed")
	}
	vars.DeleteStatistic(s.statKey)

	close(s.done)
	s.conn.Close()
	s.wg.Wait()

	s.done = nil
	s.conn = nil
	s.packets = nil

	s.Diag.ClosedService()

	return nil
}

// Addr returns the bound address of the listener.
func (s *Service) Addr() *net.UDPAddr {
	return s.addr
}

// RegisterFunction makes a named function callable on the channel. Args
// describe the accepted arguments; requests failing validation are answered
// with an error dict and never reach the handler.
func (s *Service) RegisterFunction(name string, h HandlerFunc, args []ArgSpec) error {
	s.funcMu.Lock()
	defer s.funcMu.Unlock()
	if _, ok := s.functions[name]; ok {
		return errors.Errorf("function %q already registered", name)
	}
	s.functions[name] = function{args: args, handler: h}
	return nil
}

// DeregisterFunction removes a previously registered function.
func (s *Service) DeregisterFunction(name string) {
	s.funcMu.Lock()
	defer s.funcMu.Unlock()
	delete(s.functions, name)
}

// Send delivers msg to whoever last issued a request with the given txid.
// The txid is merged into the message so the caller can route it.
func (s *Service) Send(txid string, msg wire.Dict) error {
	s.routeMu.Lock()
	addr, ok := s.routes[txid]
	s.routeMu.Unlock()
	if !ok {
		s.statMap.Add(statSendFail, 1)
		return ErrNoRoute
	}
	return s.sendTo(addr, txid, msg)
}

func (s *Service) sendTo(addr *net.UDPAddr, txid string, msg wire.Dict) error {
	out := msg.Copy()
	out["txid"] = txid
	b, err := wire.Encode(out)
	if err != nil {
		s.statMap.Add(statSendFail, 1)
		return err
	}
	if _, err := s.conn.WriteToUDP(b, addr); err != nil {
		s.statMap.Add(statSendFail, 1)
		return errors.Wrap(err, "send admin message")
	}
	s.statMap.Add(statMessagesSent, 1)
	return nil
}

func (s *Service) serve() {
	defer s.wg.Done()
	defer close(s.packets)

	buf := make([]byte, UDPPacketSize)
	for {
		select {
		case <-s.done:
			// We closed the connection, time to go.
			return
		default:
			// Keep processing.
		}

		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if !strings.Contains(err.Error(), "use of closed network connection") {
				s.statMap.Add(statReadFail, 1)
				s.Diag.Error("failed to read admin request", err)
			}
			continue
		}
		s.statMap.Add(statBytesReceived, int64(n))
		p := make([]byte, n)
		copy(p, buf[:n])
		s.packets <- packet{data: p, addr: addr}
	}
}

func (s *Service) processPackets() {
	defer s.wg.Done()

	for p := range s.packets {
		s.dispatch(p)
	}
}

func (s *Service) dispatch(p packet) {
	d, err := wire.Decode(p.data)
	if err != nil {
		s.statMap.Add(statDecodeFail, 1)
		return
	}
	txid, ok := d.GetString("txid")
	if !ok {
		// No way to address a reply.
		s.statMap.Add(statDecodeFail, 1)
		return
	}
	s.statMap.Add(statRequestsReceived, 1)
	s.recordRoute(txid, p.addr)

	q, ok := d.GetString("q")
	if !ok {
		s.sendTo(p.addr, txid, wire.Dict{"error": "Missing q."})
		return
	}

	s.funcMu.RLock()
	fn, ok := s.functions[q]
	s.funcMu.RUnlock()
	if !ok {
		s.statMap.Add(statUnknownFunction, 1)
		s.sendTo(p.addr, txid, wire.Dict{"error": "No such function."})
		return
	}

	args, _ := d.GetDict("args")
	if args == nil {
		args = wire.Dict{}
	}
	if errMsg := validateArgs(fn.args, args); errMsg != "" {
		s.sendTo(p.addr, txid, wire.Dict{"error": errMsg})
		return
	}

	fn.handler(args, txid)
}

func (s *Service) recordRoute(txid string, addr *net.UDPAddr) {
	s.routeMu.Lock()
	defer s.routeMu.Unlock()
	if _, ok := s.routes[txid]; !ok && len(s.routes) >= maxRoutes {
		// Table is full, evict an arbitrary entry.
		for k := range s.routes {
			delete(s.routes, k)
			break
		}
	}
	s.routes[txid] = addr
}

func validateArgs(specs []ArgSpec, args wire.Dict) string {
	for _, spec := range specs {
		v, present := args[spec.Name]
		if !present {
			if spec.Required {
				return fmt.Sprintf("Missing required argument '%s'.", spec.Name)
			}
			continue
		}
		switch spec.Type {
		case "String":
			if _, ok := v.(string); !ok {
				return fmt.Sprintf("Argument '%s' must be of type String.", spec.Name)
			}
		case "Int":
			switch v.(type) {
			case int64, int:
			default:
				return fmt.Sprintf("Argument '%s' must be of type Int.", spec.Name)
			}
		}
	}
	return ""
}
