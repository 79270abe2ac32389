package configstack

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	defs "hostfs/definitions"
	"hostfs/pkg/utils"
)

var configExtensions = []string{".ini", ".conf"}

var (
	defaultDropinSearch = []string{defs.HostfsConfDropin}
	defaultConfigFile   = filepath.Join(defs.HostfsConfDir, defs.DefaultHostfsConf)
)

// DiscoverConfigFiles lists the configuration files to load, in load order.
// priority env::file > env::dropin_dir > default::dropin_dir > default config file
func DiscoverConfigFiles() ([]string, error) {
	if override := os.Getenv(defs.HostfsConfEnv); override != "" {
		if err := checkConfigFile(override); err != nil {
			return nil, err
		}
		return []string{override}, nil
	}

	if dirByEnv := os.Getenv(defs.HostfsConfDirEnv); dirByEnv != "" {
		files, err := listConfigDir(dirByEnv)
		if err != nil {
			return nil, err
		}
		if len(files) > 0 {
			return files, nil
		}
	}

	var aggregated []string
	for _, dir := range defaultDropinSearch {
		files, err := listConfigDir(dir)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		aggregated = append(aggregated, files...)
	}
	if len(aggregated) > 0 {
		return aggregated, nil
	}

	if !utils.FileExist(defaultConfigFile) {
		return nil, nil
	}
	if err := checkConfigFile(defaultConfigFile); err != nil {
		return nil, err
	}
	return []string{defaultConfigFile}, nil
}

func checkConfigFile(path string) error {
	if !utils.IsRegular(path) {
		return fmt.Errorf("hostfs config %s is not a regular file or failed to stat it", path)
	}
	if !hasConfigExtension(path) {
		return fmt.Errorf("unsupported hostfs config extension: %s, should be .ini or .conf", path)
	}
	return nil
}

func listConfigDir(dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		full := filepath.Join(dir, entry.Name())
		if !hasConfigExtension(full) {
			continue
		}
		files = append(files, full)
	}

	sort.Strings(files)
	return files, nil
}

func hasConfigExtension(path string) bool {
	return utils.InList(configExtensions, strings.ToLower(filepath.Ext(path)))
}
