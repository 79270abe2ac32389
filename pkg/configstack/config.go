package configstack

import (
	"fmt"
	"strings"

	"github.com/gookit/ini/v2"
	"github.com/hashicorp/go-multierror"

	defs "hostfs/definitions"
	er "hostfs/errors"
	log "hostfs/logger"
)

// Config is the immutable hostfs configuration handed to a run.
type Config struct {
	// MountHostfs enables binding host file systems into containers.
	MountHostfs bool
	LogLevel    string
	LogFormat   string
	// OTLPEndpoint enables tracing when set.
	OTLPEndpoint string
	OTLPInsecure bool
	// Files lists the files the values were read from.
	Files []string
}

// Default returns the configuration used when no file is found.
func Default() Config {
	return Config{
		MountHostfs: false,
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

// Load reads files in order; later files override earlier ones. Every
// unreadable file is reported, values from the readable ones still apply.
func Load(files ...string) (Config, error) {
	cfg := Default()
	if len(files) == 0 {
		return cfg, nil
	}

	data := ini.NewWithOptions(ini.IgnoreCase)
	var result *multierror.Error
	for _, f := range files {
		if err := data.LoadFiles(f); err != nil {
			result = multierror.Append(result, er.Wrapf(er.ConfigInvalid, "%s: %v", f, err))
			continue
		}
		cfg.Files = append(cfg.Files, f)
	}

	cfg.MountHostfs = data.Bool(defs.KeyMountHostfs, cfg.MountHostfs)
	cfg.LogLevel = data.String(defs.KeyLogLevel, cfg.LogLevel)
	cfg.LogFormat = data.String(defs.KeyLogFormat, cfg.LogFormat)
	cfg.OTLPEndpoint = data.String(defs.KeyOTLPEndpoint, cfg.OTLPEndpoint)
	cfg.OTLPInsecure = data.Bool(defs.KeyOTLPInsecure, cfg.OTLPInsecure)

	log.Pretty("parsed hostfs config: %v", cfg)
	return cfg, result.ErrorOrNil()
}

// LoadDiscovered loads the files found by DiscoverConfigFiles.
func LoadDiscovered() (Config, error) {
	files, err := DiscoverConfigFiles()
	if err != nil {
		return Default(), er.Wrapf(er.ConfigInvalid, "%v", err)
	}
	return Load(files...)
}

// ParseBool accepts the boolean spellings used in hostfs.conf.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "on", "yes", "true":
		return true, nil
	case "0", "off", "no", "false":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean value %q", s)
}
