package anchor_vault

import (
	"bytes"
)

type InstructionType uint8

const (
	InstructionTypeUnknown InstructionType = iota
	InstructionTypeInitialize
	InstructionTypeDeposit
)

// GetInstructionType identifies an instruction by its discriminator.
func GetInstructionType(data []byte) InstructionType {
	switch {
	case bytes.HasPrefix(data, initializeInstructionDiscriminator):
		return InstructionTypeInitialize
	case bytes.HasPrefix(data, depositInstructionDiscriminator):
		return InstructionTypeDeposit
	default:
		return InstructionTypeUnknown
	}
}

func (t InstructionType) String() string {
	switch t {
	case InstructionTypeInitialize:
		return "initialize"
	case InstructionTypeDeposit:
		return "deposit"
	}
	return "unknown"
}
