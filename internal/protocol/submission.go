package protocol

import (
	"github.com/google/uuid"

	"github.com/mattjoyce/pumpkin/internal/script"
)

// Instruction names the wrapper relies on. TRACE is defined per submission;
// the rest must be provided by the server's modules.
const (
	TraceWord        = "TRACE"
	subscriptionWord = "___subscription___"
)

// Submission is the client-side state for one submitted program.
type Submission struct {
	ID uuid.UUID
}

// NewSubmission draws a fresh correlation id.
func NewSubmission() Submission {
	return Submission{ID: uuid.New()}
}

// Topic is the correlation id as published on the bus.
func (s Submission) Topic() []byte {
	return append([]byte{}, s.ID[:]...)
}

// TraceClosure publishes the value on top of the stack as a TRACE message.
func (s Submission) TraceClosure() []byte {
	return script.Program{
		script.Data{1},
		script.Instruction("WRAP"),
		script.Data(TraceTag),
		script.Instruction("SWAP"),
		script.Instruction("CONCAT"),
		script.Data(s.Topic()),
		script.Instruction("PUBLISH"),
	}.MustBytes()
}

// Wrap instruments compiled so that it runs under TRY, defines TRACE for it,
// and publishes exactly one RESULT under the correlation id:
//
//	corr SUBSCRIBE '___subscription___ SET
//	[[1] WRAP "TRACE" SWAP CONCAT corr PUBLISH] 'TRACE DEF
//	[program] TRY STACK "RESULT" SWAP CONCAT corr PUBLISH
//	___subscription___ UNSUBSCRIBE
func (s Submission) Wrap(compiled []byte) []byte {
	topic := s.Topic()
	return script.Program{
		script.Data(topic),
		script.Instruction("SUBSCRIBE"),
		script.InstructionRef(subscriptionWord),
		script.Instruction("SET"),
		script.Data(s.TraceClosure()),
		script.InstructionRef(TraceWord),
		script.Instruction("DEF"),
		script.Data(compiled),
		script.Instruction("TRY"),
		script.Instruction("STACK"),
		script.Data(ResultTag),
		script.Instruction("SWAP"),
		script.Instruction("CONCAT"),
		script.Data(topic),
		script.Instruction("PUBLISH"),
		script.Instruction(subscriptionWord),
		script.Instruction("UNSUBSCRIBE"),
	}.MustBytes()
}
