package params_test

import (
	"errors"
	"testing"

	"github.com/platopia-network/platopia/foundation/blockchain/database"
	"github.com/platopia-network/platopia/foundation/blockchain/params"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_SelectNetworks(t *testing.T) {
	tt := []struct {
		name       string
		port       int
		diskMagic  params.Magic
		netMagic   params.Magic
		scriptAddr byte
		wantHash   string
	}{
		{params.MainNet, 41319, params.Magic{0xfc, 0xb0, 0xed, 0xee}, params.Magic{0xfc, 0xf0, 0xed, 0xee}, 5,
			"56e0b8ce91d07105264979fb4d93ebc641d2eb044c39a011a36881f2c88873b7"},
		{params.TestNet, 21319, params.Magic{0x0b, 0x11, 0x09, 0x07}, params.Magic{0x0b, 0x11, 0x09, 0x07}, 196,
			"7611df4e77e6aa14125a5379f14ef902e23eca1abc4878c8463fb72ef1a5aee3"},
		{params.RegTest, 18444, params.Magic{0xfa, 0xbf, 0xb5, 0xda}, params.Magic{0xda, 0xb5, 0xbf, 0xfa}, 196,
			"98df12433b40e2ac03774aa911de4683099e707ccaff03d7ace0ba57f49f3be8"},
	}

	t.Log("Given the need to validate every network parameter set.")
	{
		for testID, tst := range tt {
			t.Logf("\tTest %d:\tWhen selecting the %s network.", testID, tst.name)
			{
				p, err := params.New(tst.name)
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould construct the parameter set: %v", failed, testID, err)
				}
				t.Logf("\t%s\tTest %d:\tShould construct the parameter set.", success, testID)

				if p.DefaultPort != tst.port {
					t.Errorf("\t%s\tTest %d:\tShould use port %d: got %d", failed, testID, tst.port, p.DefaultPort)
				}
				if p.DiskMagic != tst.diskMagic || p.NetMagic != tst.netMagic {
					t.Errorf("\t%s\tTest %d:\tShould carry the network magic.", failed, testID)
				}
				if p.Base58.PubKeyAddress != 0x38 || p.Base58.ScriptAddress != tst.scriptAddr {
					t.Errorf("\t%s\tTest %d:\tShould carry the address prefixes.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould carry ports, magic and prefixes.", success, testID)

				want, err := database.HashFromHex(tst.wantHash)
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould parse the literal: %v", failed, testID, err)
				}
				if p.GenesisHash != want {
					t.Errorf("\t%s\tTest %d:\tShould reproduce the genesis hash: got %s", failed, testID, p.GenesisHash)
				} else {
					t.Logf("\t%s\tTest %d:\tShould reproduce the genesis hash.", success, testID)
				}

				if p.Genesis.Header.MerkleRoot.IsZero() {
					t.Errorf("\t%s\tTest %d:\tShould commit the coinbase into the header.", failed, testID)
				}

				coinbase, err := p.Genesis.Coinbase()
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould hold a coinbase: %v", failed, testID, err)
				}
				if coinbase.Outs[0].Principal != 0 || coinbase.Outs[0].LockTime != 100 {
					t.Errorf("\t%s\tTest %d:\tShould lock the endowment without principal.", failed, testID)
				}
				if coinbase.Outs[0].Value != p.Schedule.GenesisReward() {
					t.Errorf("\t%s\tTest %d:\tShould credit the genesis reward.", failed, testID)
				}
				if coinbase.Outs[0].Content != params.GenesisIntro {
					t.Errorf("\t%s\tTest %d:\tShould carry the intro statement.", failed, testID)
				}
				t.Logf("\t%s\tTest %d:\tShould build the endowment coinbase.", success, testID)
			}
		}
	}
}

func Test_UnknownChain(t *testing.T) {
	t.Log("Given the need to validate unknown network names fail.")
	{
		if _, err := params.New("simnet"); !errors.Is(err, params.ErrUnknownChain) {
			t.Fatalf("\t%s\tShould fail with ErrUnknownChain: got %v", failed, err)
		}
		t.Logf("\t%s\tShould fail with ErrUnknownChain.", success)
	}
}

func Test_ProcessWideSelection(t *testing.T) {
	t.Log("Given the need to validate process-wide selection.")
	{
		p, err := params.Select(params.RegTest)
		if err != nil {
			t.Fatalf("\t%s\tShould select regtest: %v", failed, err)
		}
		t.Logf("\t%s\tShould select regtest.", success)

		active, err := params.Active()
		if err != nil || active.Name != p.Name {
			t.Fatalf("\t%s\tShould expose the selected set: %v", failed, err)
		}
		t.Logf("\t%s\tShould expose the selected set.", success)
	}
}
