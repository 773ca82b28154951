package params

import (
	"encoding/hex"
	"fmt"

	"github.com/platopia-network/platopia/foundation/blockchain/database"
)

// GenesisIntro is the statement carried by every genesis coinbase output.
const GenesisIntro = "By resolving the trust problem of data transmission through technical means, blockchain technology" +
	" has become an invisible huge force that drives the development of science and technology and a strong" +
	" force that pushes humanity forward in the right direction. Through its continuous efforts to establish" +
	" a completely decentralized and borderless public trust implementation system that everyone can" +
	" participate in, Platopia is a meaningful social practice that combines science and technology with" +
	" humanity and awakens the seeds of kindness in our hearts so as to inspire and serve every future generation."

// genesisTime is the common timestamp of all three genesis blocks.
const genesisTime uint32 = 1512403200

// genesisSeed holds the per-network genesis literals.
type genesisSeed struct {
	time       uint32
	nonce      uint64
	bits       uint32
	version    int32
	mixHash    string
	script     string
	wantHash   string
	wantMerkle string
}

var genesisSeeds = map[string]genesisSeed{
	MainNet: {
		time:       genesisTime,
		nonce:      6029914714024845399,
		bits:       0x1c2fffff,
		version:    3,
		mixHash:    "0e0c6282441b4b1156fa86331b20c412803d62867ae4c4359973919576e7252b",
		script:     "76a914d21f0e6dce303eb06350458d400d8b582c65562988ac",
		wantHash:   "56e0b8ce91d07105264979fb4d93ebc641d2eb044c39a011a36881f2c88873b7",
		wantMerkle: "7ea48162117efa96921aa8f94c78a579f3f1d35c00499a9713813460e08cb4c1",
	},
	TestNet: {
		time:       genesisTime,
		nonce:      9,
		bits:       0x2007ffff,
		version:    3,
		mixHash:    "31046c8c6e4330cbe95c8023140fe8da6edca0d093cb054655baa3ece1c49bf6",
		script:     "76a914ab9eb67a1bc20e8f138523dffc88586f2f31e94188ac",
		wantHash:   "7611df4e77e6aa14125a5379f14ef902e23eca1abc4878c8463fb72ef1a5aee3",
		wantMerkle: "736939dfdf8c64ea08be450de50294ad397c66a582059a39c9a3e2a28daa876d",
	},
	RegTest: {
		time:       genesisTime,
		nonce:      1,
		bits:       0x207fffff,
		version:    3,
		mixHash:    "836c063fc357fc6a3e09df0f6781a183e6f0aa49259a43f568ee1c6f8c7ce448",
		script:     "76a914ab9eb67a1bc20e8f138523dffc88586f2f31e94188ac",
		wantHash:   "98df12433b40e2ac03774aa911de4683099e707ccaff03d7ace0ba57f49f3be8",
		wantMerkle: "a3a7521e105bc501b3c9aea0a2064441ea3dab4ff25825f9611d2bcbd64d1151",
	},
}

// buildGenesis constructs the network's genesis block and checks its hash
// and merkle root against the hard-coded literals.
func buildGenesis(p *Params) error {
	seed, exists := genesisSeeds[p.Name]
	if !exists {
		return fmt.Errorf("%w %q", ErrUnknownChain, p.Name)
	}

	script, err := hex.DecodeString(seed.script)
	if err != nil {
		return fmt.Errorf("genesis script: %w", err)
	}
	mixHash, err := database.HashFromBigHex(seed.mixHash)
	if err != nil {
		return fmt.Errorf("genesis mix hash: %w", err)
	}

	reward := p.Schedule.GenesisReward()
	coinbase := database.NewGenesisCoinbaseTx(script, reward, GenesisIntro)

	block := database.Block{
		Header: database.BlockHeader{
			BaseHeader: database.BaseHeader{
				Version:       seed.version,
				Height:        0,
				Time:          seed.time,
				ChainInterest: uint64(p.Schedule.OldChainInterest),
				Bits:          seed.bits,
			},
			MixHash: mixHash,
			Nonce:   seed.nonce,
		},
		Txs: []database.Tx{coinbase},
	}

	root, err := block.MerkleRoot()
	if err != nil {
		return fmt.Errorf("genesis merkle root: %w", err)
	}
	block.Header.MerkleRoot = root

	wantMerkle, err := database.HashFromHex(seed.wantMerkle)
	if err != nil {
		return err
	}
	if root != wantMerkle {
		return fmt.Errorf("genesis merkle root mismatch on %s: got %s want %s", p.Name, root, wantMerkle)
	}

	hash := block.Hash()
	wantHash, err := database.HashFromHex(seed.wantHash)
	if err != nil {
		return err
	}
	if hash != wantHash {
		return fmt.Errorf("genesis hash mismatch on %s: got %s want %s", p.Name, hash, wantHash)
	}

	p.Genesis = block
	p.GenesisHash = hash
	return nil
}
