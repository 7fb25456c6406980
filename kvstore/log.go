package kvstore

import "github.com/btcsuite/btclog"

// log is the package-level logger, disabled until the host process wires
// one in with UseLogger. Follows the btcsuite convention used across
// btcd/btcwallet/lnd.
var log = btclog.Disabled

// UseLogger sets the package-wide logger used by the kvstore package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
