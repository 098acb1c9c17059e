package task

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type recordTask struct {
	name     string
	startErr error
	log      *[]string
	ctx      context.Context
}

func (r *recordTask) Name() string { return r.name }

func (r *recordTask) Start(ctx context.Context) error {
	if r.startErr != nil {
		return r.startErr
	}
	r.ctx = ctx
	*r.log = append(*r.log, "start "+r.name)
	return nil
}

func (r *recordTask) Stop() error {
	*r.log = append(*r.log, "stop "+r.name)
	return nil
}

func TestManagerStartStopOrder(t *testing.T) {
	var log []string
	m := NewManager()
	a := &recordTask{name: "a", log: &log}
	b := &recordTask{name: "b", log: &log}
	m.Register(a)
	m.Register(nil)
	m.Register(b)

	if err := m.StartAll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := m.StartAll(context.Background()); err != nil {
		t.Fatal("second StartAll should be a no-op")
	}
	if err := m.StopAll(); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(log, ","); got != "start a,start b,stop b,stop a" {
		t.Fatalf("order = %s", got)
	}
	if a.ctx.Err() == nil {
		t.Fatal("task context should be cancelled on stop")
	}
}

func TestManagerStartFailureRollsBack(t *testing.T) {
	var log []string
	m := NewManager()
	m.Register(&recordTask{name: "a", log: &log})
	m.Register(&recordTask{name: "b", log: &log, startErr: errors.New("boom")})

	err := m.StartAll(context.Background())
	if err == nil || !strings.Contains(err.Error(), "start task b") {
		t.Fatalf("err = %v", err)
	}
	if got := strings.Join(log, ","); got != "start a,stop a" {
		t.Fatalf("order = %s", got)
	}
}
