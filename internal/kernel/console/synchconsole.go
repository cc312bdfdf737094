package console

import (
	"nachos-go/internal/kernel/interrupt"
	"nachos-go/internal/kernel/threads"
)

// SynchConsole wraps the asynchronous Console with one semaphore and one
// lock per direction, giving callers a blocking GetChar/PutChar interface
// while still letting multiple threads share the console without
// interleaving each other's bytes (synchconsole.cc).
type SynchConsole struct {
	console   *Console
	readSem   *threads.Semaphore
	writeSem  *threads.Semaphore
	readLock  *threads.Lock
	writeLock *threads.Lock
}

// NewSynchConsole creates a synchronous console bound to the scheduler and interrupt
// gate its semaphores and locks block against.
func NewSynchConsole(sched *threads.Scheduler, gate *interrupt.Gate) (*SynchConsole, error) {
	sc := &SynchConsole{
		readSem:   threads.NewSemaphore("consoleReadSem", 0, sched, gate),
		writeSem:  threads.NewSemaphore("consoleWriteSem", 0, sched, gate),
		readLock:  threads.NewLock("consoleReadLock", sched, gate),
		writeLock: threads.NewLock("consoleWriteLock", sched, gate),
	}

	console, err := New(sc.onReadDone, sc.onWriteDone)
	if err != nil {
		return nil, err
	}
	sc.console = console
	return sc, nil
}

func (sc *SynchConsole) onReadDone()  { sc.readSem.V() }
func (sc *SynchConsole) onWriteDone() { sc.writeSem.V() }

// GetChar blocks until a keystroke is available and returns it
// (synchconsole.cc: "GetChar").
func (sc *SynchConsole) GetChar() byte {
	sc.readLock.Acquire()
	sc.readSem.P()
	c := sc.console.GetChar()
	sc.readLock.Release()
	return c
}

// PutChar writes one byte and blocks until the write completes
// (synchconsole.cc: "PutChar").
func (sc *SynchConsole) PutChar(c byte) {
	sc.writeLock.Acquire()
	sc.console.PutChar(c)
	sc.writeSem.P()
	sc.writeLock.Release()
}

// GetBuffer reads numBytes characters (synchconsole.cc: "GetBuffer").
func (sc *SynchConsole) GetBuffer(numBytes int) []byte {
	sc.readLock.Acquire()
	out := make([]byte, numBytes)
	for i := 0; i < numBytes; i++ {
		sc.readSem.P()
		out[i] = sc.console.GetChar()
	}
	sc.readLock.Release()
	return out
}

// PutBuffer writes every byte in buf (synchconsole.cc: "PutBuffer").
func (sc *SynchConsole) PutBuffer(buf []byte) {
	sc.writeLock.Acquire()
	for _, b := range buf {
		sc.console.PutChar(b)
		sc.writeSem.P()
	}
	sc.writeLock.Release()
}

// Close releases the underlying console's resources.
func (sc *SynchConsole) Close() {
	sc.console.Close()
}
