// Package machine is the simulated MIPS machine the kernel runs on top of:
// the register file, main memory, and the hardware TLB array. There is no
// interrupt clock here; the interrupt mask and idle/wake logic live in
// internal/kernel/interrupt. Everything in this package is the "external collaborator" the core
// spec treats as out of scope (§1) — the instruction interpreter proper is
// not modeled, only the state a cooperating kernel needs to poke at.
package machine

// Register indices, mirroring the classic MIPS register-file layout a
// software-managed-TLB teaching kernel dispatches against.
const (
	NumGPRegs = 32

	HiReg      = NumGPRegs
	LoReg      = NumGPRegs + 1
	PCReg      = NumGPRegs + 2
	NextPCReg  = NumGPRegs + 3
	PrevPCReg  = NumGPRegs + 4
	LoadReg    = NumGPRegs + 5
	LoadValReg = NumGPRegs + 6
	BadVAddr   = NumGPRegs + 7

	NumTotalRegs = NumGPRegs + 8

	StackReg   = 29
	RetAddrReg = 31
)

// Syscall ABI register slots (§6): call number and result in r2, up to four
// arguments in r4..r7.
const (
	ResultReg = 2
	Arg1Reg   = 4
	Arg2Reg   = 5
	Arg3Reg   = 6
	Arg4Reg   = 7
)

// InstructionSize is the width, in bytes, of one MIPS instruction.
const InstructionSize = 4

// Registers is the saved machine-register image for one thread: general
// purpose registers plus the program-counter trio and the handful of
// pseudo-registers the TLB-miss and syscall paths need.
type Registers [NumTotalRegs]uint32

// AdvancePC moves PC/NextPC/PrevPC forward by one instruction, the
// bookkeeping every syscall performs before returning to user code unless
// the call terminated the thread (§4.C12).
func (r *Registers) AdvancePC() {
	r[PrevPCReg] = r[PCReg]
	r[PCReg] = r[NextPCReg]
	r[NextPCReg] += InstructionSize
}
