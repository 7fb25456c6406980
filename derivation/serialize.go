package derivation

import (
	"crypto/sha256"
	"errors"

	"github.com/btcsuite/btcd/btcutil/base58"
)

// NetworkVersions holds the 4-byte extended-key version prefixes a node
// is serialized under. Per spec.md §6 these come from a network-config
// collaborator rather than being hardcoded to mainnet.
type NetworkVersions struct {
	Private [4]byte
	Public  [4]byte
}

// MainNetVersions are Bitcoin mainnet's standard xprv/xpub version bytes.
var MainNetVersions = NetworkVersions{
	Private: [4]byte{0x04, 0x88, 0xAD, 0xE4},
	Public:  [4]byte{0x04, 0x88, 0xB2, 0x1E},
}

// TestNetVersions are Bitcoin testnet's standard tprv/tpub version bytes.
var TestNetVersions = NetworkVersions{
	Private: [4]byte{0x04, 0x35, 0x83, 0x94},
	Public:  [4]byte{0x04, 0x35, 0x87, 0xCF},
}

var (
	errNotPrivate        = errors.New("derivation: node has no private key to serialize")
	errInvalidExtKeyData = errors.New("derivation: malformed extended key payload")
	errBadChecksum       = errors.New("derivation: extended key checksum mismatch")
)

// SerializePrivate renders n as a base58check xprv string: version ||
// depth || parent-fingerprint || child-number || chaincode || 0x00 ||
// privkey(32), followed by a 4-byte double-SHA256 checksum.
func (n *Node) SerializePrivate(versions NetworkVersions) (string, error) {
	if n.PrivKey == nil {
		return "", errNotPrivate
	}
	payload := n.serializeCommon(versions.Private)
	payload = append(payload, 0x00)
	payload = append(payload, privKeyBytes(n.PrivKey)...)
	return encodeExtKey(payload), nil
}

// SerializePublic renders n as a base58check xpub string: version ||
// depth || parent-fingerprint || child-number || chaincode ||
// compressed-pubkey(33), followed by a 4-byte double-SHA256 checksum.
func (n *Node) SerializePublic(versions NetworkVersions) string {
	payload := n.serializeCommon(versions.Public)
	payload = append(payload, n.PubKey.SerializeCompressed()...)
	return encodeExtKey(payload)
}

func (n *Node) serializeCommon(version [4]byte) []byte {
	payload := make([]byte, 0, 78)
	payload = append(payload, version[:]...)
	payload = append(payload, n.Depth)
	payload = append(payload, n.ParentFingerprint[:]...)
	payload = append(payload, be32(n.ChildNumber)...)
	payload = append(payload, n.ChainCode[:]...)
	return payload
}

func encodeExtKey(payload []byte) string {
	checksum := doubleSHA256(payload)
	full := append(payload, checksum[:4]...)
	return base58.Encode(full)
}

func doubleSHA256(b []byte) [32]byte {
	first := sha256.Sum256(b)
	return sha256.Sum256(first[:])
}

// DecodeExtKey parses a base58check xprv/xpub string back into a Node,
// reporting whether it held a private key and which version prefix was
// present so the caller can check it against an expected NetworkVersions.
func DecodeExtKey(s string) (node *Node, version [4]byte, isPrivate bool, err error) {
	full := base58.Decode(s)
	if len(full) != 82 {
		return nil, version, false, errInvalidExtKeyData
	}
	payload, checksum := full[:78], full[78:]
	want := doubleSHA256(payload)
	if string(want[:4]) != string(checksum) {
		return nil, version, false, errBadChecksum
	}

	copy(version[:], payload[0:4])
	n := &Node{Depth: payload[4]}
	copy(n.ParentFingerprint[:], payload[5:9])
	n.ChildNumber = uint32(payload[9])<<24 | uint32(payload[10])<<16 | uint32(payload[11])<<8 | uint32(payload[12])
	copy(n.ChainCode[:], payload[13:45])

	keyData := payload[45:78]
	if keyData[0] == 0x00 {
		scalar, ok := scalarFromBytes(keyData[1:])
		if !ok {
			return nil, version, false, errInvalidExtKeyData
		}
		n.PrivKey = scalar
		n.PubKey = pubKeyFromScalar(scalar)
		return n, version, true, nil
	}

	pub, err := parseCompressedPubKey(keyData)
	if err != nil {
		return nil, version, false, errInvalidExtKeyData
	}
	n.PubKey = pub
	return n, version, false, nil
}
