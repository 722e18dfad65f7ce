package server

import "github.com/logtap/logtap/diag"

// Adapters mapping each service's Diagnostic interface onto the logger.

type adminDiag struct {
	l *diag.Logger
}

func (d *adminDiag) Error(msg string, err error) {
	d.l.Errorf("%s: %v", msg, err)
}

func (d *adminDiag) StartedListening(addr string) {
	d.l.Infof("admin channel listening on %s", addr)
}

func (d *adminDiag) ClosedService() {
	d.l.Infof("admin channel closed")
}

type adminLogDiag struct {
	l *diag.Logger
}

func (d *adminLogDiag) Error(msg string, err error) {
	d.l.Errorf("%s: %v", msg, err)
}

func (d *adminLogDiag) SubscriptionCreated(streamID string) {
	d.l.Debugf("log stream %s subscribed", streamID)
}

func (d *adminLogDiag) SubscriptionRemoved(streamID string) {
	d.l.Debugf("log stream %s unsubscribed", streamID)
}
