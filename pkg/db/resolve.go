package db

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aperture-array/obsdb/pkg/configmgr"
	"github.com/aperture-array/obsdb/pkg/connector"
	"github.com/aperture-array/obsdb/pkg/errorx"
	"github.com/aperture-array/obsdb/pkg/logx"
)

// Environment variables consulted during configuration resolution.
const (
	// EnvSQLite - path or file: URI of an embedded store; both roles use it.
	EnvSQLite = "OBSDB_SQLITE"
	// EnvRC - path of an rc file taking precedence over the fixed locations.
	EnvRC = "OBSDB_RC"
	// EnvTestEnable - presence switches the process into test-source mode.
	EnvTestEnable = "OBSDB_TEST_ENABLE"
	// EnvTestSQLite - test-mode counterpart of EnvSQLite.
	EnvTestSQLite = "OBSDB_TEST_SQLITE"
	// EnvTestRC - test-mode counterpart of EnvRC. Values that look like a
	// production rc file are rejected outright.
	EnvTestRC = "OBSDB_TEST_RC"
)

// rcName - the production rc file basename; test mode refuses any rc path
// containing it.
const rcName = "obsdbrc"

// Shared-cache in-memory store used when test mode finds no test sources.
// It lives until the last open handle closes.
const (
	testMemoryURI   = "file::memory:?cache=shared"
	testMemoryURIRO = "file::memory:?cache=shared&mode=ro"
)

const noSourceMessage = `no database configuration found:
 * no sqlite store named in the environment ($OBSDB_SQLITE)
 * no rc file found (tried $OBSDB_RC, ./.obsdbrc, ~/.obsdbrc, /etc/aperture/obsdbrc)
 * no site configuration registered`

// SiteConfig - a pluggable configuration source supplying pre-built ordered
// candidate lists. Consulted last, after the environment and rc files.
type SiteConfig func() (ro []connector.Connector, rw []connector.Connector, provenance string, err error)

var (
	siteMu     sync.Mutex
	siteConfig SiteConfig
)

// RegisterSiteConfig - install the site configuration hook. Passing nil
// removes it.
func RegisterSiteConfig(fn SiteConfig) {
	siteMu.Lock()
	defer siteMu.Unlock()

	siteConfig = fn
}

func registeredSiteConfig() SiteConfig {
	siteMu.Lock()
	defer siteMu.Unlock()

	return siteConfig
}

// resolve - probe the configuration sources in precedence order and return
// the candidate connector lists of the first source that is present.
//
// An absent source means "try the next one"; a present but malformed source
// is a hard InvalidConfigError stop. With no source at all the result is a
// NoRouteError carrying one actionable message.
func resolve() (ro []connector.Connector, rw []connector.Connector, provenance string, err error) {
	if TestEnabled() {
		return resolveTest()
	}

	if path := os.Getenv(EnvSQLite); path != "" {
		ro, rw = embeddedPair(path)

		return ro, rw, "$" + EnvSQLite, nil
	}

	var rcFiles []string
	if path := os.Getenv(EnvRC); path != "" {
		rcFiles = append(rcFiles, path)
	}

	rcFiles = append(rcFiles, rcSearchPath()...)

	for _, path := range rcFiles {
		if !fileExists(path) {
			continue
		}

		cfg, err := configmgr.ReadRCFile(path)
		if err != nil {
			return nil, nil, "", err
		}

		ro, rw = cfg.Connectors()

		return ro, rw, "rc file " + path, nil
	}

	if fn := registeredSiteConfig(); fn != nil {
		return fn()
	}

	return nil, nil, "", errorx.NewNoRouteError(noSourceMessage)
}

// resolveTest - test-mode sources only. Production sources are never
// consulted here, even when their environment variables are set.
func resolveTest() (ro []connector.Connector, rw []connector.Connector, provenance string, err error) {
	if path := os.Getenv(EnvTestSQLite); path != "" {
		ro, rw = embeddedPair(path)

		return ro, rw, "$" + EnvTestSQLite, nil
	}

	if path := os.Getenv(EnvTestRC); path != "" {
		if strings.Contains(path, rcName) {
			return nil, nil, "", errorx.NewInvalidConfigError(
				"test rc file %s looks like a production rc file and will not be read in test mode", path)
		}

		if fileExists(path) {
			cfg, err := configmgr.ReadRCFile(path)
			if err != nil {
				return nil, nil, "", err
			}

			ro, rw = cfg.Connectors()

			return ro, rw, "test rc file " + path, nil
		}
	}

	logx.GetLogger().LogDebug(context.TODO(), "no test database sources set, using an ephemeral in-memory store")

	ro = []connector.Connector{connector.NewEmbedded(testMemoryURIRO, false)}
	rw = []connector.Connector{connector.NewEmbedded(testMemoryURI, true)}

	return ro, rw, "ephemeral in-memory store", nil
}

// embeddedPair - both roles pointed at one embedded store, RO opened
// read-only where the backend supports it.
func embeddedPair(path string) (ro []connector.Connector, rw []connector.Connector) {
	ro = []connector.Connector{connector.NewEmbedded(path, false)}
	rw = []connector.Connector{connector.NewEmbedded(path, true)}

	return ro, rw
}

// rcSearchPath - the fixed rc file locations: project directory, home,
// system.
func rcSearchPath() []string {
	paths := []string{"." + string(filepath.Separator) + "." + rcName}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, "."+rcName))
	}

	return append(paths, filepath.Join("/etc/aperture", rcName))
}

func fileExists(path string) bool {
	info, err := os.Stat(path)

	return err == nil && !info.IsDir()
}

func roleName(readWrite bool) string {
	if readWrite {
		return "read-write"
	}

	return "read-only"
}
