package database

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/platopia-network/platopia/foundation/blockchain/merkle"
	"github.com/platopia-network/platopia/foundation/blockchain/money"
)

// CurrentBlockVersion is the version new block headers carry. The version
// computation machinery is an external collaborator; genesis and template
// headers use this constant.
const CurrentBlockVersion int32 = 3

// BaseHeader is the header truncated after the difficulty bits. It is the
// sealing input: its Keccak-256 hash is what the proof of work commits to.
type BaseHeader struct {
	Version       int32
	PrevHash      Hash
	MerkleRoot    Hash
	Height        uint32
	Time          uint32
	ChainInterest uint64
	Bits          uint32
}

// Serialize writes the base header wire form: fixed-width little-endian
// fields in declaration order.
func (h BaseHeader) Serialize(w io.Writer) error {
	if err := writeUint32(w, uint32(h.Version)); err != nil {
		return err
	}
	if _, err := w.Write(h.PrevHash[:]); err != nil {
		return err
	}
	if _, err := w.Write(h.MerkleRoot[:]); err != nil {
		return err
	}
	if err := writeUint32(w, h.Height); err != nil {
		return err
	}
	if err := writeUint32(w, h.Time); err != nil {
		return err
	}
	if err := writeUint64(w, h.ChainInterest); err != nil {
		return err
	}
	return writeUint32(w, h.Bits)
}

// SealHash returns the Keccak-256 hash of the serialized base header, the
// value miners search nonces against.
func (h BaseHeader) SealHash() Hash {
	var buf bytes.Buffer
	if err := h.Serialize(&buf); err != nil {
		return ZeroHash
	}
	return Hash(crypto.Keccak256Hash(buf.Bytes()))
}

// BlockHeader is the full header including the proof of work seal.
type BlockHeader struct {
	BaseHeader
	MixHash Hash
	Nonce   uint64
}

// Serialize writes the full header wire form.
func (h BlockHeader) Serialize(w io.Writer) error {
	if err := h.BaseHeader.Serialize(w); err != nil {
		return err
	}
	if _, err := w.Write(h.MixHash[:]); err != nil {
		return err
	}
	return writeUint64(w, h.Nonce)
}

// DeserializeHeader reads a full header wire form.
func DeserializeHeader(r io.Reader) (BlockHeader, error) {
	var h BlockHeader

	version, err := readUint32(r)
	if err != nil {
		return BlockHeader{}, err
	}
	h.Version = int32(version)
	if _, err := io.ReadFull(r, h.PrevHash[:]); err != nil {
		return BlockHeader{}, err
	}
	if _, err := io.ReadFull(r, h.MerkleRoot[:]); err != nil {
		return BlockHeader{}, err
	}
	if h.Height, err = readUint32(r); err != nil {
		return BlockHeader{}, err
	}
	if h.Time, err = readUint32(r); err != nil {
		return BlockHeader{}, err
	}
	if h.ChainInterest, err = readUint64(r); err != nil {
		return BlockHeader{}, err
	}
	if h.Bits, err = readUint32(r); err != nil {
		return BlockHeader{}, err
	}
	if _, err := io.ReadFull(r, h.MixHash[:]); err != nil {
		return BlockHeader{}, err
	}
	if h.Nonce, err = readUint64(r); err != nil {
		return BlockHeader{}, err
	}
	return h, nil
}

// Hash returns the block identifier: sha256d over the full header.
func (h BlockHeader) Hash() Hash {
	var buf bytes.Buffer
	if err := h.Serialize(&buf); err != nil {
		return ZeroHash
	}
	return Sha256d(buf.Bytes())
}

// =============================================================================

// Block is a header plus its ordered transaction set. The coinbase is
// always the first transaction.
type Block struct {
	Header BlockHeader
	Txs    []Tx
}

// Hash returns the block identifier.
func (b Block) Hash() Hash {
	return b.Header.Hash()
}

// SealHash returns the sealing hash of the block's base header.
func (b Block) SealHash() Hash {
	return b.Header.BaseHeader.SealHash()
}

// MerkleRoot computes the merkle root over the block's transactions.
func (b Block) MerkleRoot() (Hash, error) {
	tree, err := merkle.NewTree(b.Txs)
	if err != nil {
		return ZeroHash, err
	}
	var root Hash
	copy(root[:], tree.Root())
	return root, nil
}

// Coinbase returns the block's coinbase transaction.
func (b Block) Coinbase() (Tx, error) {
	if len(b.Txs) == 0 || !b.Txs[0].IsCoinbase() {
		return Tx{}, fmt.Errorf("block %s has no coinbase", b.Hash())
	}
	return b.Txs[0], nil
}

// Interest sums the interest of the block's non-coinbase outputs.
func (b Block) Interest() (money.Amount, error) {
	var total money.Amount
	for _, tx := range b.Txs {
		if tx.IsCoinbase() {
			continue
		}
		interest, err := tx.InterestOut()
		if err != nil {
			return 0, err
		}
		if total, err = total.Add(interest); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// SerializedSize returns the wire size of the block in bytes.
func (b Block) SerializedSize() int {
	var buf bytes.Buffer
	if err := b.Serialize(&buf); err != nil {
		return 0
	}
	return buf.Len()
}

// Serialize writes the block wire form: full header then the transaction
// vector.
func (b Block) Serialize(w io.Writer) error {
	if err := b.Header.Serialize(w); err != nil {
		return err
	}
	if err := writeCompactSize(w, uint64(len(b.Txs))); err != nil {
		return err
	}
	for _, tx := range b.Txs {
		if err := tx.Serialize(w); err != nil {
			return err
		}
	}
	return nil
}

// DeserializeBlock reads a block wire form.
func DeserializeBlock(r io.Reader) (Block, error) {
	header, err := DeserializeHeader(r)
	if err != nil {
		return Block{}, err
	}
	n, err := readCompactSize(r)
	if err != nil {
		return Block{}, err
	}
	b := Block{Header: header}
	for i := uint64(0); i < n; i++ {
		tx, err := DeserializeTx(r)
		if err != nil {
			return Block{}, err
		}
		b.Txs = append(b.Txs, tx)
	}
	return b, nil
}
