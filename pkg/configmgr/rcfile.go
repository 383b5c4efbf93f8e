package configmgr

import (
	"strings"

	"github.com/aperture-array/obsdb/pkg/connector"
	"github.com/aperture-array/obsdb/pkg/errorx"
	"github.com/aperture-array/obsdb/pkg/validator"
)

// Section - the single top-level key every rc file must carry.
const Section = "obsdb"

// RCFile - top level of a parsed rc file.
type RCFile struct {
	Obsdb *DBConfig `mapstructure:"obsdb"`
}

// DBConfig - database connection settings.
// This struct represents the rc-file section and is expected to be in the
// following YAML format:
/*
obsdb:
    db_type:  mysql            # mysql | postgres | sqlite
    db:       aperture         # database name, or file path for sqlite
    user_ro:  reader
    passwd_ro: "secret"
    user_rw:  writer
    passwd_rw: "secret"
    host:     db.aperture.example.org
    port:     3306
    tunnel_host: gateway.aperture.example.org   # optional
    tunnel_user: robot                          # optional
    tunnel_identity: /home/robot/.ssh/id_rsa    # optional
*/
type DBConfig struct {
	DBType         string `mapstructure:"db_type" validate:"omitempty,oneof=mysql networked postgres sqlite embedded"`
	DB             string `mapstructure:"db" validate:"required"`
	UserRO         string `mapstructure:"user_ro"`
	PasswdRO       string `mapstructure:"passwd_ro"`
	UserRW         string `mapstructure:"user_rw"`
	PasswdRW       string `mapstructure:"passwd_rw"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	TunnelHost     string `mapstructure:"tunnel_host"`
	TunnelUser     string `mapstructure:"tunnel_user"`
	TunnelIdentity string `mapstructure:"tunnel_identity"`
}

// applyDefaults - normalize the backend name and fill the defaults the rc
// format leaves optional.
func (c *DBConfig) applyDefaults() {
	switch strings.ToLower(c.DBType) {
	case "", "mysql", "networked":
		c.DBType = "mysql"
	case "postgres":
		c.DBType = "postgres"
	case "sqlite", "embedded":
		c.DBType = "sqlite"
	default:
		// left as-is; validation reports it
	}

	if c.Port == 0 {
		c.Port = 3306
	}
}

// Embedded - true when the section describes a file-backed sqlite store.
func (c *DBConfig) Embedded() bool {
	return c.DBType == "sqlite"
}

// validate - tag validation plus the cross-field rules tags cannot express.
// A networked section must name a host and both credential pairs; defining
// only one of the two roles is fatal, not a partial configuration.
func (c *DBConfig) validate(origin string) error {
	if fieldErrors := validator.NewValidator().ValidateStruct(c); fieldErrors != nil {
		return errorx.NewInvalidConfigErrorWrapper(
			validator.NewStructError(fieldErrors), "invalid database configuration in %s", origin)
	}

	if c.Embedded() {
		return nil
	}

	if c.Host == "" {
		return errorx.NewInvalidConfigError("no database host in %s", origin)
	}

	if c.UserRO == "" || c.UserRW == "" {
		return errorx.NewInvalidConfigError(
			"both a read-only and a read-write user are required in %s", origin)
	}

	return nil
}

// Connectors - build the candidate lists described by the section, one
// read-only and one read-write connector. Tunneled endpoints get a separate
// tunnel per connector; tunnel state is never shared.
func (c *DBConfig) Connectors() (ro []connector.Connector, rw []connector.Connector) {
	if c.Embedded() {
		ro = []connector.Connector{connector.NewEmbedded(c.DB, false)}
		rw = []connector.Connector{connector.NewEmbedded(c.DB, true)}

		return ro, rw
	}

	backend := connector.MySQL
	if c.DBType == "postgres" {
		backend = connector.Postgres
	}

	build := func(user, passwd string) connector.Connector {
		direct := connector.Direct{
			Backend:  backend,
			Host:     c.Host,
			Port:     c.Port,
			Database: c.DB,
			User:     user,
			Password: passwd,
		}

		if c.TunnelHost == "" {
			return &direct
		}

		return connector.NewTunneled(direct, c.TunnelHost, c.TunnelUser, c.TunnelIdentity)
	}

	ro = []connector.Connector{build(c.UserRO, c.PasswdRO)}
	rw = []connector.Connector{build(c.UserRW, c.PasswdRW)}

	return ro, rw
}
