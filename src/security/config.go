package security

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// StrictChecksum also rejects single-case addresses, which carry no checksum.
	StrictChecksum bool `envconfig:"WALLET_STRICT_CHECKSUM" default:"false"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

// CheckWallet validates addr under this config.
func (c Config) CheckWallet(addr string) error {
	if err := ValidateAddress(addr); err != nil {
		return err
	}
	if c.StrictChecksum && ChecksumAddress(addr) != addr {
		return fmt.Errorf("%w: checksummed form required", ErrChecksumMismatch)
	}
	return nil
}
