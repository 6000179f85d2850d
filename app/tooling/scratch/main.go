// This is a scratch tool for inspecting the fixed genesis identities and
// the genesis block. DO NOT USE IN PRODUCTION: it exists for local
// debugging, mirroring the teacher's own scratch tooling convention.
package main

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/coreledger/node/foundation/blockchain/genesis"
)

func main() {
	if err := printIdentities(); err != nil {
		log.Fatalln(err)
	}

	if err := printGenesisBlock(); err != nil {
		log.Fatalln(err)
	}
}

// printIdentities prints the address derived from each of the three fixed
// genesis seeds, one per p2p-port selection slot.
func printIdentities() error {
	for port := 0; port < len(genesis.Seeds); port++ {
		id, err := genesis.SelectIdentity(port)
		if err != nil {
			return err
		}
		fmt.Printf("port %% 3 == %d: %s\n", port, id.Address)
	}
	return nil
}

// printGenesisBlock prints the fixed genesis block and its ICO-funded
// account state.
func printGenesisBlock() error {
	block := genesis.Block()
	b, err := json.MarshalIndent(block, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))

	state := genesis.State()
	s, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(s))

	return nil
}
