package walletdb

import "encoding/binary"

// Header record key prefixes, scoped to one main (per-wallet-header)
// sub-database, per spec.md §6.
const (
	MainAccountKey        byte = 0x01 // main address-account id (4-byte BE value)
	MainWalletKey         byte = 0x02 // main wallet id string
	MasterIDKey           byte = 0x03 // master seed fingerprint (4 bytes)
	RootAssetKey          byte = 0x04 // serialized root asset
	WalletSeedKey         byte = 0x05 // serialized encrypted seed
	WalletLabelKey        byte = 0x06 // UTF-8 label
	WalletDescrKey        byte = 0x07 // UTF-8 description
	AddressAccountPrefix  byte = 0x10 // || acc_id(4 BE)
	AssetAccountPrefix    byte = 0x11 // || acc_id(4 BE) || sub_id(4 BE)
	MetaAccountPrefix     byte = 0x12 // || meta_id(4 BE)
	EncryptionKeyPrefix   byte = 0x13 // || key_id
	// KDFPrefix is reserved by spec.md §6's key layout table but never
	// gets its own record: decrypted.SerializedKey already embeds its
	// KDFParams (N, R, P, Salt) inline, so EncryptionKeyKey's record
	// carries KDF parameters alongside the envelope it salts. A standalone
	// kdf_id record would just duplicate bytes an EncryptionKeyKey record
	// already holds.
	KDFPrefix byte = 0x14 // || kdf_id
)

// AddressAccountKey returns the keyed record for one address account.
func AddressAccountKey(accID uint32) []byte {
	return prefixedU32(AddressAccountPrefix, accID)
}

// AssetAccountKey returns the keyed record for one asset account within an
// address account.
func AssetAccountKey(accID, subID uint32) []byte {
	buf := make([]byte, 9)
	buf[0] = AssetAccountPrefix
	binary.BigEndian.PutUint32(buf[1:5], accID)
	binary.BigEndian.PutUint32(buf[5:9], subID)
	return buf
}

// MetaAccountKey returns the keyed record for one meta-account descriptor.
func MetaAccountKey(metaID uint32) []byte {
	return prefixedU32(MetaAccountPrefix, metaID)
}

// EncryptionKeyKey returns the keyed record for one decrypted.Container
// registry entry, identified by its own key id byte string.
func EncryptionKeyKey(id []byte) []byte {
	return append([]byte{EncryptionKeyPrefix}, id...)
}

func prefixedU32(prefix byte, id uint32) []byte {
	buf := make([]byte, 5)
	buf[0] = prefix
	binary.BigEndian.PutUint32(buf[1:5], id)
	return buf
}

// control sub-database internal keys. The control bucket is reserved by
// kvstore under the name controlBucketName and never addressed through the
// envelope layer, since it holds the secrets needed to bootstrap every
// envelope.DB's key schedule.
const (
	ctrlSaltKey      byte = 0x01
	ctrlRootKey      byte = 0x02
	ctrlDBCountKey   byte = 0x03
	ctrlUsedCountKey byte = 0x04
	ctrlHeaderPrefix byte = 0x05 // || index(4 BE) -> header name
	ctrlKeyPrefix    byte = 0x06 // || key id -> decrypted.SerializedKey bytes
)

var controlBucketName = []byte("__control__")

func ctrlHeaderKey(index uint32) []byte {
	return prefixedU32(ctrlHeaderPrefix, index)
}

func ctrlKeyRecordKey(id []byte) []byte {
	return append([]byte{ctrlKeyPrefix}, id...)
}
