package solana

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"

	"github.com/mr-tron/base58/base58"
	"github.com/pkg/errors"
)

const (
	// MaxTransactionSize taken from: https://github.com/solana-labs/solana/blob/39b3ac6a8d29e14faa1de73d8b46d390ad41797b/sdk/src/packet.rs#L9-L13
	MaxTransactionSize = 1232
)

var (
	ErrMissingSignature = errors.New("missing signature")
	ErrInvalidSignature = errors.New("invalid signature")
)

type Signature [ed25519.SignatureSize]byte
type Blockhash [sha256.Size]byte

// Header describes which message accounts sign and which are readonly.
type Header struct {
	NumSignatures     byte
	NumReadonlySigned byte
	NumReadOnly       byte
}

// Message is a legacy transaction message.
type Message struct {
	Header          Header
	Accounts        []ed25519.PublicKey
	RecentBlockhash Blockhash
	Instructions    []CompiledInstruction
}

type Transaction struct {
	Signatures []Signature
	Message    Message
}

// NewTransaction compiles the instructions into an unsigned legacy transaction
// paid for by payer.
func NewTransaction(payer ed25519.PublicKey, instructions ...Instruction) Transaction {
	metas := []AccountMeta{
		{
			PublicKey:  payer,
			IsSigner:   true,
			IsWritable: true,
			isPayer:    true,
		},
	}
	for _, instruction := range instructions {
		metas = append(metas, AccountMeta{
			PublicKey: instruction.Program,
			isProgram: true,
		})
		metas = append(metas, instruction.Accounts...)
	}

	metas = mergeAccountMetas(metas)
	sort.Sort(accountMetaOrder(metas))

	var m Message
	for _, meta := range metas {
		key := meta.PublicKey
		if len(key) == 0 {
			key = make([]byte, ed25519.PublicKeySize)
		}
		m.Accounts = append(m.Accounts, key)

		switch {
		case meta.IsSigner && !meta.IsWritable:
			m.Header.NumSignatures++
			m.Header.NumReadonlySigned++
		case meta.IsSigner:
			m.Header.NumSignatures++
		case !meta.IsWritable:
			m.Header.NumReadOnly++
		}
	}

	for _, instruction := range instructions {
		compiled := CompiledInstruction{
			ProgramIndex: byte(indexOf(m.Accounts, instruction.Program)),
			Data:         instruction.Data,
			Accounts:     make([]byte, len(instruction.Accounts)),
		}
		for i, account := range instruction.Accounts {
			compiled.Accounts[i] = byte(indexOf(m.Accounts, account.PublicKey))
		}

		m.Instructions = append(m.Instructions, compiled)
	}

	return Transaction{
		Signatures: make([]Signature, m.Header.NumSignatures),
		Message:    m,
	}
}

// Signature returns the first signature, which identifies the transaction.
func (t *Transaction) Signature() Signature {
	if len(t.Signatures) == 0 {
		return Signature{}
	}
	return t.Signatures[0]
}

func (t *Transaction) SetBlockhash(bh Blockhash) {
	t.Message.RecentBlockhash = bh
}

// Sign signs the message with each of the provided keys. Every key must
// belong to one of the message's signing accounts.
func (t *Transaction) Sign(signers ...ed25519.PrivateKey) error {
	message := t.Message.Marshal()

	for _, signer := range signers {
		pub := signer.Public().(ed25519.PublicKey)

		index := indexOf(t.Message.Accounts, pub)
		if index < 0 {
			return errors.Errorf("signing account %s is not in the account list", base58.Encode(pub))
		}
		if index >= len(t.Signatures) {
			return errors.Errorf("signing account %s is not in the list of signers", base58.Encode(pub))
		}

		copy(t.Signatures[index][:], ed25519.Sign(signer, message))
	}

	return nil
}

// VerifySignatures checks that every required signature is present and
// valid, returning the verified signing accounts in message order.
func (t *Transaction) VerifySignatures() ([]ed25519.PublicKey, error) {
	numSignatures := int(t.Message.Header.NumSignatures)
	if numSignatures == 0 || len(t.Signatures) != numSignatures {
		return nil, errors.Wrapf(ErrMissingSignature, "expected %d signatures, got %d", numSignatures, len(t.Signatures))
	}
	if numSignatures > len(t.Message.Accounts) {
		return nil, errors.Errorf("header declares %d signers for %d accounts", numSignatures, len(t.Message.Accounts))
	}

	message := t.Message.Marshal()

	signers := make([]ed25519.PublicKey, numSignatures)
	for i := 0; i < numSignatures; i++ {
		key := t.Message.Accounts[i]
		if t.Signatures[i] == (Signature{}) {
			return nil, errors.Wrapf(ErrMissingSignature, "account %s", base58.Encode(key))
		}
		if !ed25519.Verify(key, message, t.Signatures[i][:]) {
			return nil, errors.Wrapf(ErrInvalidSignature, "account %s", base58.Encode(key))
		}

		signers[i] = key
	}

	return signers, nil
}

// IsSigner reports whether the account at index must sign the message.
func (m Message) IsSigner(index int) bool {
	return index >= 0 && index < int(m.Header.NumSignatures)
}

// IsWritable reports whether the account at index may be modified.
func (m Message) IsWritable(index int) bool {
	if index < 0 || index >= len(m.Accounts) {
		return false
	}

	numSigners := int(m.Header.NumSignatures)
	if index < numSigners {
		return index < numSigners-int(m.Header.NumReadonlySigned)
	}
	return index < len(m.Accounts)-int(m.Header.NumReadOnly)
}

func (t *Transaction) String() string {
	var sb strings.Builder
	sb.WriteString("Signatures:\n")
	for i, s := range t.Signatures {
		sb.WriteString(fmt.Sprintf("  %d: %s\n", i, base58.Encode(s[:])))
	}
	sb.WriteString("Message:\n")
	sb.WriteString(fmt.Sprintf("  Header: signatures=%d readonly_signed=%d readonly=%d\n",
		t.Message.Header.NumSignatures,
		t.Message.Header.NumReadonlySigned,
		t.Message.Header.NumReadOnly,
	))
	sb.WriteString(fmt.Sprintf("  Blockhash: %s\n", base58.Encode(t.Message.RecentBlockhash[:])))
	sb.WriteString("  Accounts:\n")
	for i, a := range t.Message.Accounts {
		sb.WriteString(fmt.Sprintf("    %d: %s\n", i, base58.Encode(a)))
	}
	sb.WriteString("  Instructions:\n")
	for i, instruction := range t.Message.Instructions {
		sb.WriteString(fmt.Sprintf("    %d: program=%d accounts=%v data=%v\n", i, instruction.ProgramIndex, instruction.Accounts, instruction.Data))
	}
	return sb.String()
}

// mergeAccountMetas collapses duplicate keys, keeping the first position and
// the union of their permissions.
func mergeAccountMetas(metas []AccountMeta) []AccountMeta {
	merged := make([]AccountMeta, 0, len(metas))

	for _, meta := range metas {
		existing := -1
		for i := range merged {
			if bytes.Equal(merged[i].PublicKey, meta.PublicKey) {
				existing = i
				break
			}
		}

		if existing < 0 {
			merged = append(merged, meta)
			continue
		}

		merged[existing].IsSigner = merged[existing].IsSigner || meta.IsSigner
		merged[existing].IsWritable = merged[existing].IsWritable || meta.IsWritable
		merged[existing].isPayer = merged[existing].isPayer || meta.isPayer
	}

	return merged
}

func indexOf(keys []ed25519.PublicKey, key ed25519.PublicKey) int {
	if len(key) == 0 {
		key = make([]byte, ed25519.PublicKeySize)
	}

	for i, candidate := range keys {
		if bytes.Equal(candidate, key) {
			return i
		}
	}
	return -1
}
