// Package config loads, saves, and validates the matching ledger's
// configuration: storage location, logging, the epoch schedule, and the
// ledger identities. The file format is plain "key = value" lines with
// # comments; unknown keys are ignored so older binaries can read newer
// files.
package config

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/epochmatch/libmatch-go/epoch"
	"github.com/epochmatch/libmatch-go/ledger"
)

// Config holds every tunable of the matching ledger.
type Config struct {
	// DataDir is where the bolt database lives.
	DataDir string

	// LogLevel is one of debug, info, warn, error. LogFile is an
	// optional path; empty logs to stdout.
	LogLevel string
	LogFile  string

	// Epoch schedule, in seconds.
	EpochPeriod        uint64
	PreVotePeriod      uint64
	VetoPeriod         uint64
	PayoutNotifyPeriod uint64

	// BaseCurrency and PermissionedCaller are 20-byte hex addresses.
	BaseCurrency       string
	PermissionedCaller string
}

// DefaultConfig returns the reference deployment's configuration:
// 14-day epochs, 7-day pre-vote, 2-day veto, 14-day payout notify.
func DefaultConfig() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		DataDir:            filepath.Join(home, ".matchledger"),
		LogLevel:           "info",
		LogFile:            "",
		EpochPeriod:        uint64(epoch.DefaultPeriod / time.Second),
		PreVotePeriod:      uint64(epoch.DefaultPreVote / time.Second),
		VetoPeriod:         uint64(epoch.DefaultVeto / time.Second),
		PayoutNotifyPeriod: uint64(epoch.DefaultPayoutNotify / time.Second),
	}
}

// Schedule converts the configured periods into an epoch.Schedule.
func (c Config) Schedule() epoch.Schedule {
	return epoch.Schedule{
		Period:       time.Duration(c.EpochPeriod) * time.Second,
		PreVote:      time.Duration(c.PreVotePeriod) * time.Second,
		Veto:         time.Duration(c.VetoPeriod) * time.Second,
		PayoutNotify: time.Duration(c.PayoutNotifyPeriod) * time.Second,
	}
}

// BaseCurrencyAddress parses the configured base currency.
func (c Config) BaseCurrencyAddress() (ledger.Address, error) {
	return parseAddress(c.BaseCurrency)
}

// PermissionedCallerAddress parses the configured permissioned caller.
func (c Config) PermissionedCallerAddress() (ledger.Address, error) {
	return parseAddress(c.PermissionedCaller)
}

func parseAddress(s string) (ledger.Address, error) {
	var a ledger.Address
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return a, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, s, err)
	}
	if len(raw) != len(a) {
		return a, fmt.Errorf("%w: %q must be %d bytes", ErrInvalidAddress, s, len(a))
	}
	copy(a[:], raw)
	return a, nil
}

// LoadConfig reads the configuration at path, applying defaults for any
// key the file does not set.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return cfg, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			return cfg, fmt.Errorf("%w: line %d: %q", ErrInvalidConfigLine, lineNum, line)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "datadir":
			cfg.DataDir = value
		case "loglevel":
			cfg.LogLevel = value
		case "logfile":
			cfg.LogFile = value
		case "epochperiod":
			if cfg.EpochPeriod, err = parseSeconds(key, value, lineNum); err != nil {
				return cfg, err
			}
		case "prevoteperiod":
			if cfg.PreVotePeriod, err = parseSeconds(key, value, lineNum); err != nil {
				return cfg, err
			}
		case "vetoperiod":
			if cfg.VetoPeriod, err = parseSeconds(key, value, lineNum); err != nil {
				return cfg, err
			}
		case "payoutnotifyperiod":
			if cfg.PayoutNotifyPeriod, err = parseSeconds(key, value, lineNum); err != nil {
				return cfg, err
			}
		case "basecurrency":
			cfg.BaseCurrency = value
		case "permissionedcaller":
			cfg.PermissionedCaller = value
		default:
			// Unknown keys are ignored for forward compatibility.
		}
	}
	if err := scanner.Err(); err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	return cfg, nil
}

func parseSeconds(key, value string, line int) (uint64, error) {
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: line %d: %s = %q", ErrInvalidConfigLine, line, key, value)
	}
	return n, nil
}

// SaveConfig writes cfg to path, creating parent directories as needed.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("# matchledger configuration\n")
	fmt.Fprintf(&b, "datadir = %s\n", cfg.DataDir)
	fmt.Fprintf(&b, "loglevel = %s\n", cfg.LogLevel)
	fmt.Fprintf(&b, "logfile = %s\n", cfg.LogFile)
	fmt.Fprintf(&b, "epochperiod = %d\n", cfg.EpochPeriod)
	fmt.Fprintf(&b, "prevoteperiod = %d\n", cfg.PreVotePeriod)
	fmt.Fprintf(&b, "vetoperiod = %d\n", cfg.VetoPeriod)
	fmt.Fprintf(&b, "payoutnotifyperiod = %d\n", cfg.PayoutNotifyPeriod)
	fmt.Fprintf(&b, "basecurrency = %s\n", cfg.BaseCurrency)
	fmt.Fprintf(&b, "permissionedcaller = %s\n", cfg.PermissionedCaller)

	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
