package threads

import (
	"sync"
	"testing"
)

func TestPortRendezvous(t *testing.T) {
	sched, gate := newTestKernel()
	port := NewPort("mailbox", sched, gate)

	const n = 5
	var senders []*Thread
	for i := 1; i <= n; i++ {
		v := i
		senders = append(senders, sched.Fork("sender", 1, true, func() {
			port.Send(v)
		}))
	}

	var mu sync.Mutex
	var received []int
	var receivers []*Thread
	for i := 0; i < n; i++ {
		receivers = append(receivers, sched.Fork("receiver", 1, true, func() {
			v := port.Receive()
			mu.Lock()
			received = append(received, v)
			mu.Unlock()
		}))
	}

	sched.Current().Yield() // cascades every sender/receiver through the rendezvous

	for _, s := range senders {
		s.Join()
	}
	for _, r := range receivers {
		r.Join()
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != n {
		t.Fatalf("received %d messages, want %d", len(received), n)
	}
	sum := 0
	seen := map[int]bool{}
	for _, v := range received {
		sum += v
		seen[v] = true
	}
	if sum != n*(n+1)/2 {
		t.Errorf("sum of received messages = %d, want %d", sum, n*(n+1)/2)
	}
	if len(seen) != n {
		t.Errorf("received %d distinct messages, want %d (no message delivered twice)", len(seen), n)
	}
}

func TestPortReceiveBeforeSend(t *testing.T) {
	sched, gate := newTestKernel()
	port := NewPort("mailbox", sched, gate)

	var got int
	receiver := sched.Fork("receiver", 1, true, func() {
		got = port.Receive()
	})
	sched.Current().Yield() // runs the receiver up to its block on recvCond.Wait()

	sender := sched.Fork("sender", 1, true, func() {
		port.Send(42)
	})

	receiver.Join()
	sender.Join()

	if got != 42 {
		t.Errorf("Receive() = %d, want 42", got)
	}
}
