package admin_test

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/logtap/logtap/services/admin"
	"github.com/logtap/logtap/wire"
)

type nopDiag struct{}

func (nopDiag) Error(msg string, err error) {}
func (nopDiag) StartedListening(addr string) {}
func (nopDiag) ClosedService()               {}

func newTestService(t *testing.T) *admin.Service {
	t.Helper()
	c := admin.NewConfig()
	c.BindAddress = "127.0.0.1:0"
	s := admin.NewService(c, nopDiag{})
	require.NoError(t, s.Open())
	t.Cleanup(func() { s.Close() })
	return s
}

type client struct {
	conn *net.UDPConn
}

func dial(t *testing.T, s *admin.Service) *client {
	t.Helper()
	conn, err := net.DialUDP("udp", nil, s.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &client{conn: conn}
}

func (c *client) send(t *testing.T, d wire.Dict) {
	t.Helper()
	b, err := wire.Encode(d)
	require.NoError(t, err)
	_, err = c.conn.Write(b)
	require.NoError(t, err)
}

func (c *client) read(t *testing.T) wire.Dict {
	t.Helper()
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	buf := make([]byte, admin.UDPPacketSize)
	n, err := c.conn.Read(buf)
	require.NoError(t, err)
	d, err := wire.Decode(buf[:n])
	require.NoError(t, err)
	return d
}

func (c *client) request(t *testing.T, d wire.Dict) wire.Dict {
	t.Helper()
	c.send(t, d)
	return c.read(t)
}

func TestRequestReply(t *testing.T) {
	s := newTestService(t)

	err := s.RegisterFunction("echo", func(args wire.Dict, txid string) {
		msg, _ := args.GetString("msg")
		s.Send(txid, wire.Dict{"error": "none", "msg": msg})
	}, []admin.ArgSpec{
		{Name: "msg", Type: "String", Required: true},
	})
	require.NoError(t, err)

	c := dial(t, s)
	reply := c.request(t, wire.Dict{
		"q":    "echo",
		"txid": "tx-1",
		"args": wire.Dict{"msg": "hello"},
	})

	txid, _ := reply.GetString("txid")
	require.Equal(t, "tx-1", txid)
	errMsg, _ := reply.GetString("error")
	require.Equal(t, "none", errMsg)
	msg, _ := reply.GetString("msg")
	require.Equal(t, "hello", msg)
}

func TestValidation_MissingRequiredArgument(t *testing.T) {
	s := newTestService(t)

	called := false
	err := s.RegisterFunction("echo", func(args wire.Dict, txid string) {
		called = true
	}, []admin.ArgSpec{
		{Name: "msg", Type: "String", Required: true},
	})
	require.NoError(t, err)

	c := dial(t, s)
	reply := c.request(t, wire.Dict{"q": "echo", "txid": "tx-2", "args": wire.Dict{}})

	errMsg, _ := reply.GetString("error")
	require.Equal(t, "Missing required argument 'msg'.", errMsg)
	require.False(t, called, "handler must not run on invalid args")
}

func TestValidation_WrongArgumentType(t *testing.T) {
	s := newTestService(t)

	require.NoError(t, s.RegisterFunction("echo", func(args wire.Dict, txid string) {
		t.Error("handler must not run")
	}, []admin.ArgSpec{
		{Name: "line", Type: "Int"},
	}))

	c := dial(t, s)
	reply := c.request(t, wire.Dict{
		"q":    "echo",
		"txid": "tx-3",
		"args": wire.Dict{"line": "forty-two"},
	})

	errMsg, _ := reply.GetString("error")
	require.Equal(t, "Argument 'line' must be of type Int.", errMsg)
}

func TestUnknownFunction(t *testing.T) {
	s := newTestService(t)
	c := dial(t, s)

	reply := c.request(t, wire.Dict{"q": "nope", "txid": "tx-4"})
	errMsg, _ := reply.GetString("error")
	require.Equal(t, "No such function.", errMsg)
}

func TestPushAddressedByTxid(t *testing.T) {
	s := newTestService(t)

	seen := make(chan string, 1)
	require.NoError(t, s.RegisterFunction("watch", func(args wire.Dict, txid string) {
		s.Send(txid, wire.Dict{"error": "none"})
		seen <- txid
	}, nil))

	c := dial(t, s)
	c.send(t, wire.Dict{"q": "watch", "txid": "stream-tx"})

	reply := c.read(t)
	errMsg, _ := reply.GetString("error")
	require.Equal(t, "none", errMsg)

	var txid string
	select {
	case txid = <-seen:
	case <-time.After(5 * time.Second):
		t.Fatal("handler never ran")
	}

	// A push long after the request still reaches the requester.
	require.NoError(t, s.Send(txid, wire.Dict{"streamId": "00ff00ff00ff00ff", "message": "boom"}))
	push := c.read(t)
	gotTxid, _ := push.GetString("txid")
	require.Equal(t, "stream-tx", gotTxid)
	msg, _ := push.GetString("message")
	require.Equal(t, "boom", msg)
}

func TestSendWithoutRoute(t *testing.T) {
	s := newTestService(t)
	err := s.Send("never-seen", wire.Dict{"message": "lost"})
	require.ErrorIs(t, err, admin.ErrNoRoute)
}

func TestRegisterFunctionTwice(t *testing.T) {
	s := newTestService(t)
	h := func(args wire.Dict, txid string) {}
	require.NoError(t, s.RegisterFunction("dup", h, nil))
	require.Error(t, s.RegisterFunction("dup", h, nil))

	s.DeregisterFunction("dup")
	require.NoError(t, s.RegisterFunction("dup", h, nil))
}
