package solana

import (
	"fmt"
	"sort"

	"github.com/mr-tron/base58"
	"github.com/solwatch/solwatch/core"
)

const (
	// messageVersionPrefix marks a version 0 message, the format that
	// supports address table lookups
	messageVersionPrefix = 0x80

	pubkeyLen    = 32
	signatureLen = 64
)

// accountMeta is the merged access profile of one account across all
// instructions of a message
type accountMeta struct {
	signer   bool
	writable bool
	program  bool
}

// tableLookup is one address-table-lookup section of a compiled message
type tableLookup struct {
	account         string
	writableIndexes []byte
	readonlyIndexes []byte
	writableKeys    []string
	readonlyKeys    []string
}

// MessageCompiler builds version 0 transaction messages from unsigned
// instructions and resolved lookup tables
type MessageCompiler struct{}

// CompileMessage assembles the instructions into one message bound to
// recentBlockhash, paid and signed by payer. Accounts found in a lookup
// table are referenced through it; signers and program ids always stay in
// the static key list.
func (MessageCompiler) CompileMessage(payer string, instructions []core.Instruction, tables map[string][]string, recentBlockhash string) ([]byte, error) {
	if len(instructions) == 0 {
		return nil, fmt.Errorf("no instructions to compile")
	}

	order, metas := collectAccounts(payer, instructions)

	// Deterministic table order regardless of map iteration
	tableAccounts := make([]string, 0, len(tables))
	for account := range tables {
		tableAccounts = append(tableAccounts, account)
	}
	sort.Strings(tableAccounts)

	staticKeys, lookups := partitionAccounts(order, metas, tableAccounts, tables)

	index := make(map[string]int, len(order))
	for i, key := range staticKeys {
		index[key] = i
	}
	next := len(staticKeys)
	for _, lu := range lookups {
		for _, key := range lu.writableKeys {
			index[key] = next
			next++
		}
	}
	for _, lu := range lookups {
		for _, key := range lu.readonlyKeys {
			index[key] = next
			next++
		}
	}
	if next > 256 {
		return nil, fmt.Errorf("message references %d accounts, limit is 256", next)
	}

	return serializeMessage(staticKeys, metas, lookups, instructions, index, recentBlockhash)
}

// AssembleTransaction prepends the signature list to the message bytes,
// producing the wire transaction
func (MessageCompiler) AssembleTransaction(message []byte, signatures [][]byte) ([]byte, error) {
	buf := appendShortvec(nil, len(signatures))
	for _, sig := range signatures {
		if len(sig) != signatureLen {
			return nil, fmt.Errorf("signature must be %d bytes, got %d", signatureLen, len(sig))
		}
		buf = append(buf, sig...)
	}
	return append(buf, message...), nil
}

// collectAccounts merges the access flags of every account the
// instructions touch, payer first
func collectAccounts(payer string, instructions []core.Instruction) ([]string, map[string]*accountMeta) {
	var order []string
	metas := make(map[string]*accountMeta)

	upsert := func(key string) *accountMeta {
		if meta, ok := metas[key]; ok {
			return meta
		}
		meta := &accountMeta{}
		metas[key] = meta
		order = append(order, key)
		return meta
	}

	payerMeta := upsert(payer)
	payerMeta.signer = true
	payerMeta.writable = true

	for _, ix := range instructions {
		upsert(ix.ProgramID).program = true
		for _, acc := range ix.Accounts {
			meta := upsert(acc.Pubkey)
			meta.signer = meta.signer || acc.IsSigner
			meta.writable = meta.writable || acc.IsWritable
		}
	}
	return order, metas
}

// partitionAccounts splits accounts into the static key list and per-table
// lookups. Static keys are ordered writable signers, readonly signers,
// writable non-signers, readonly non-signers.
func partitionAccounts(order []string, metas map[string]*accountMeta, tableAccounts []string, tables map[string][]string) ([]string, []*tableLookup) {
	lookupByTable := make(map[string]*tableLookup)
	var lookups []*tableLookup

	findInTable := func(key string) (*tableLookup, byte, bool) {
		for _, account := range tableAccounts {
			for i, addr := range tables[account] {
				if addr != key {
					continue
				}
				lu, ok := lookupByTable[account]
				if !ok {
					lu = &tableLookup{account: account}
					lookupByTable[account] = lu
					lookups = append(lookups, lu)
				}
				return lu, byte(i), true
			}
		}
		return nil, 0, false
	}

	var writableSigners, readonlySigners, writableOthers, readonlyOthers []string
	for _, key := range order {
		meta := metas[key]

		if !meta.signer && !meta.program {
			if lu, pos, ok := findInTable(key); ok {
				if meta.writable {
					lu.writableIndexes = append(lu.writableIndexes, pos)
					lu.writableKeys = append(lu.writableKeys, key)
				} else {
					lu.readonlyIndexes = append(lu.readonlyIndexes, pos)
					lu.readonlyKeys = append(lu.readonlyKeys, key)
				}
				continue
			}
		}

		switch {
		case meta.signer && meta.writable:
			writableSigners = append(writableSigners, key)
		case meta.signer:
			readonlySigners = append(readonlySigners, key)
		case meta.writable:
			writableOthers = append(writableOthers, key)
		default:
			readonlyOthers = append(readonlyOthers, key)
		}
	}

	staticKeys := make([]string, 0, len(order))
	staticKeys = append(staticKeys, writableSigners...)
	staticKeys = append(staticKeys, readonlySigners...)
	staticKeys = append(staticKeys, writableOthers...)
	staticKeys = append(staticKeys, readonlyOthers...)

	// Sort lookups by table account for a stable wire layout
	sort.Slice(lookups, func(i, j int) bool { return lookups[i].account < lookups[j].account })
	return staticKeys, lookups
}

func serializeMessage(staticKeys []string, metas map[string]*accountMeta, lookups []*tableLookup, instructions []core.Instruction, index map[string]int, recentBlockhash string) ([]byte, error) {
	var numSigners, numReadonlySigners, numReadonlyUnsigned int
	for _, key := range staticKeys {
		meta := metas[key]
		if meta.signer {
			numSigners++
			if !meta.writable {
				numReadonlySigners++
			}
		} else if !meta.writable {
			numReadonlyUnsigned++
		}
	}

	buf := []byte{
		messageVersionPrefix,
		byte(numSigners),
		byte(numReadonlySigners),
		byte(numReadonlyUnsigned),
	}

	buf = appendShortvec(buf, len(staticKeys))
	for _, key := range staticKeys {
		raw, err := decodePubkey(key)
		if err != nil {
			return nil, err
		}
		buf = append(buf, raw...)
	}

	blockhash, err := base58.Decode(recentBlockhash)
	if err != nil || len(blockhash) != pubkeyLen {
		return nil, fmt.Errorf("invalid recent blockhash %q", recentBlockhash)
	}
	buf = append(buf, blockhash...)

	buf = appendShortvec(buf, len(instructions))
	for _, ix := range instructions {
		programIndex, ok := index[ix.ProgramID]
		if !ok {
			return nil, fmt.Errorf("program %s missing from account index", ix.ProgramID)
		}
		buf = append(buf, byte(programIndex))

		buf = appendShortvec(buf, len(ix.Accounts))
		for _, acc := range ix.Accounts {
			accIndex, ok := index[acc.Pubkey]
			if !ok {
				return nil, fmt.Errorf("account %s missing from account index", acc.Pubkey)
			}
			buf = append(buf, byte(accIndex))
		}

		buf = appendShortvec(buf, len(ix.Data))
		buf = append(buf, ix.Data...)
	}

	buf = appendShortvec(buf, len(lookups))
	for _, lu := range lookups {
		raw, err := decodePubkey(lu.account)
		if err != nil {
			return nil, err
		}
		buf = append(buf, raw...)
		buf = appendShortvec(buf, len(lu.writableIndexes))
		buf = append(buf, lu.writableIndexes...)
		buf = appendShortvec(buf, len(lu.readonlyIndexes))
		buf = append(buf, lu.readonlyIndexes...)
	}

	return buf, nil
}

func decodePubkey(key string) ([]byte, error) {
	raw, err := base58.Decode(key)
	if err != nil {
		return nil, fmt.Errorf("decode account %q: %w", key, err)
	}
	if len(raw) != pubkeyLen {
		return nil, fmt.Errorf("account %q is %d bytes, want %d", key, len(raw), pubkeyLen)
	}
	return raw, nil
}
