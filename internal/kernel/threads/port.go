package threads

import "nachos-go/internal/kernel/interrupt"

// Port is C5: a synchronous rendezvous mailbox (§3, §4.C5). Send and
// Receive each block until the other side has arrived, pairing messages in
// FIFO order with the calls that produced and consumed them.
type Port struct {
	name      string
	lock      *Lock
	sendCond  *Condition
	recvCond  *Condition
	buffer    []int
	senders   int
	receivers int
}

// NewPort creates an empty port.
func NewPort(name string, sched *Scheduler, gate *interrupt.Gate) *Port {
	lock := NewLock(name+".lock", sched, gate)
	return &Port{
		name:     name,
		lock:     lock,
		sendCond: NewCondition(name+".sendCond", lock, sched, gate),
		recvCond: NewCondition(name+".recvCond", lock, sched, gate),
	}
}

// Name returns the port's debug name.
func (p *Port) Name() string { return p.name }

// Send blocks until some Receive matches it, then hands msg over (§4.C5).
func (p *Port) Send(msg int) {
	p.lock.Acquire()

	p.senders++
	p.buffer = append(p.buffer, msg)

	for p.receivers <= 0 {
		p.sendCond.Wait()
	}

	p.receivers--
	p.recvCond.Signal()

	p.lock.Release()
}

// Receive blocks until some Send matches it, then returns the message
// (§4.C5).
func (p *Port) Receive() int {
	p.lock.Acquire()

	p.receivers++

	for p.senders <= 0 {
		p.recvCond.Wait()
	}

	msg := p.buffer[0]
	p.buffer = p.buffer[1:]
	p.senders--
	p.sendCond.Signal()

	p.lock.Release()
	return msg
}
