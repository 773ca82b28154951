package database

import (
	"bytes"
	"fmt"
	"io"

	"github.com/platopia-network/platopia/foundation/blockchain/money"
)

// Transaction flag bits.
const (
	TxFlagNormal   uint32 = 0
	TxFlagCoinbase uint32 = 1
)

// CoinbaseMaturity is the lock applied to every coinbase output.
const CoinbaseMaturity uint32 = 100

// CurrentTxVersion is the version new transactions are created with.
const CurrentTxVersion int32 = 1

// =============================================================================

// OutPoint locates the output an input spends. The value of that output is
// carried along so fee arithmetic never needs the UTXO set.
type OutPoint struct {
	Hash  Hash
	Index uint32
	Value money.Amount
}

// IsNull reports whether the outpoint is the coinbase null marker.
func (op OutPoint) IsNull() bool {
	return op.Hash.IsZero()
}

// TxIn is a transaction input.
type TxIn struct {
	PrevOut   OutPoint
	ScriptSig []byte
}

// TxOut is a transaction output. An output with Principal > 0 is an
// interest-bearing deposit; Value - Principal is the accrued interest.
type TxOut struct {
	Value        money.Amount
	Principal    money.Amount
	ScriptPubKey []byte
	Content      string
	LockTime     uint32
}

// Interest returns the interest component of the output: zero unless the
// output carries a principal.
func (out TxOut) Interest() money.Amount {
	if out.Principal <= 0 {
		return 0
	}
	if out.Value <= out.Principal {
		return 0
	}
	return out.Value - out.Principal
}

// Tx is an immutable transaction value. Copies are cheap to share;
// relations between transactions are expressed through identifiers, never
// pointers.
type Tx struct {
	Version int32
	Flags   uint32
	Ins     []TxIn
	Outs    []TxOut
}

// IsCoinbase reports whether the coinbase flag bit is set.
func (tx Tx) IsCoinbase() bool {
	return tx.Flags&TxFlagCoinbase != 0
}

// ID returns the transaction identifier: sha256d over the serialized form.
func (tx Tx) ID() Hash {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return ZeroHash
	}
	return Sha256d(buf.Bytes())
}

// Hash satisfies the merkle tree's Hashable constraint.
func (tx Tx) Hash() ([]byte, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, err
	}
	id := Sha256d(buf.Bytes())
	return id[:], nil
}

// SerializedSize returns the wire size of the transaction in bytes.
func (tx Tx) SerializedSize() int {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return 0
	}
	return buf.Len()
}

// ValueOut sums the output values, checking every step stays in the
// monetary range.
func (tx Tx) ValueOut() (money.Amount, error) {
	var total money.Amount
	for _, out := range tx.Outs {
		var err error
		if total, err = total.Add(out.Value); err != nil {
			return 0, fmt.Errorf("output enumeration: %w", err)
		}
	}
	return total, nil
}

// InterestOut sums the interest components of the deposit outputs.
func (tx Tx) InterestOut() (money.Amount, error) {
	var total money.Amount
	for _, out := range tx.Outs {
		var err error
		if total, err = total.Add(out.Interest()); err != nil {
			return 0, fmt.Errorf("output enumeration: %w", err)
		}
	}
	return total, nil
}

// Fee returns input values minus output values. Only meaningful for
// non-coinbase transactions.
func (tx Tx) Fee() (money.Amount, error) {
	var in money.Amount
	for _, txin := range tx.Ins {
		var err error
		if in, err = in.Add(txin.PrevOut.Value); err != nil {
			return 0, fmt.Errorf("input enumeration: %w", err)
		}
	}
	out, err := tx.ValueOut()
	if err != nil {
		return 0, err
	}
	if out > in {
		return 0, money.ErrValueOutOfRange
	}
	return in - out, nil
}

// Serialize writes the transaction wire form.
func (tx Tx) Serialize(w io.Writer) error {
	if err := writeVarInt(w, uint64(uint32(tx.Version))); err != nil {
		return err
	}
	if err := writeVarInt(w, uint64(tx.Flags)); err != nil {
		return err
	}
	if err := writeCompactSize(w, uint64(len(tx.Ins))); err != nil {
		return err
	}
	for _, in := range tx.Ins {
		if _, err := w.Write(in.PrevOut.Hash[:]); err != nil {
			return err
		}
		if err := writeVarInt(w, uint64(in.PrevOut.Index)); err != nil {
			return err
		}
		if err := writeVarInt(w, uint64(in.PrevOut.Value)); err != nil {
			return err
		}
		if err := writeBytes(w, in.ScriptSig); err != nil {
			return err
		}
	}
	if err := writeCompactSize(w, uint64(len(tx.Outs))); err != nil {
		return err
	}
	for _, out := range tx.Outs {
		if err := writeVarInt(w, uint64(out.Value)); err != nil {
			return err
		}
		if err := writeVarInt(w, uint64(out.Principal)); err != nil {
			return err
		}
		if err := writeBytes(w, out.ScriptPubKey); err != nil {
			return err
		}
		if err := writeBytes(w, []byte(out.Content)); err != nil {
			return err
		}
		if err := writeVarInt(w, uint64(out.LockTime)); err != nil {
			return err
		}
	}
	return nil
}

// DeserializeTx reads a transaction wire form.
func DeserializeTx(r io.Reader) (Tx, error) {
	var tx Tx

	version, err := readVarInt(r)
	if err != nil {
		return Tx{}, err
	}
	tx.Version = int32(uint32(version))

	flags, err := readVarInt(r)
	if err != nil {
		return Tx{}, err
	}
	tx.Flags = uint32(flags)

	nIns, err := readCompactSize(r)
	if err != nil {
		return Tx{}, err
	}
	for i := uint64(0); i < nIns; i++ {
		var in TxIn
		if _, err := io.ReadFull(r, in.PrevOut.Hash[:]); err != nil {
			return Tx{}, err
		}
		index, err := readVarInt(r)
		if err != nil {
			return Tx{}, err
		}
		in.PrevOut.Index = uint32(index)
		value, err := readVarInt(r)
		if err != nil {
			return Tx{}, err
		}
		in.PrevOut.Value = money.Amount(value)
		if in.ScriptSig, err = readBytes(r, 10_000); err != nil {
			return Tx{}, err
		}
		tx.Ins = append(tx.Ins, in)
	}

	nOuts, err := readCompactSize(r)
	if err != nil {
		return Tx{}, err
	}
	for i := uint64(0); i < nOuts; i++ {
		var out TxOut
		value, err := readVarInt(r)
		if err != nil {
			return Tx{}, err
		}
		out.Value = money.Amount(value)
		principal, err := readVarInt(r)
		if err != nil {
			return Tx{}, err
		}
		out.Principal = money.Amount(principal)
		if out.ScriptPubKey, err = readBytes(r, 10_000); err != nil {
			return Tx{}, err
		}
		content, err := readBytes(r, maxContentSize)
		if err != nil {
			return Tx{}, err
		}
		out.Content = string(content)
		lockTime, err := readVarInt(r)
		if err != nil {
			return Tx{}, err
		}
		out.LockTime = uint32(lockTime)
		tx.Outs = append(tx.Outs, out)
	}

	return tx, nil
}

// =============================================================================

// NewCoinbaseTx constructs the block-creating transaction: a single null
// input carrying the height, and a single output paying the given value to
// the script, locked for the maturity window.
func NewCoinbaseTx(height uint32, script []byte, value money.Amount) Tx {
	return Tx{
		Version: CurrentTxVersion,
		Flags:   TxFlagCoinbase,
		Ins: []TxIn{{
			PrevOut:   OutPoint{Hash: ZeroHash, Index: height, Value: value},
			ScriptSig: []byte{0x00},
		}},
		Outs: []TxOut{{
			Value:        value,
			ScriptPubKey: script,
			LockTime:     CoinbaseMaturity,
		}},
	}
}

// NewGenesisCoinbaseTx constructs the genesis coinbase: the endowment
// output carries the network's intro text as content.
func NewGenesisCoinbaseTx(script []byte, value money.Amount, intro string) Tx {
	return Tx{
		Version: CurrentTxVersion,
		Flags:   TxFlagCoinbase,
		Ins: []TxIn{{
			PrevOut:   OutPoint{Hash: ZeroHash, Index: 0, Value: value},
			ScriptSig: []byte{0x00},
		}},
		Outs: []TxOut{{
			Value:        value,
			ScriptPubKey: script,
			Content:      intro,
			LockTime:     100,
		}},
	}
}
