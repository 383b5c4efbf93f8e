// Package configmgr reads obsdb rc files.
//
// An rc file is a small YAML document with a single `obsdb` section naming
// the database and how to reach it. Which rc file gets read, and in what
// order candidates are probed, is the resolver's concern; this package only
// parses and validates one file.
package configmgr

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/aperture-array/obsdb/pkg/errorx"
	"github.com/aperture-array/obsdb/pkg/logx"
)

// ReadRCFile reads and validates the rc file at path.
//
// The file must exist: callers decide whether an absent file means "try the
// next source". A file that exists but cannot be parsed, lacks the obsdb
// section, or fails validation is an InvalidConfigError; resolution never
// skips past a malformed file.
func ReadRCFile(path string) (*DBConfig, error) {
	logx.GetLogger().LogDebug(context.TODO(), fmt.Sprintf("reading database rc file %s", path))

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, errorx.NewInvalidConfigErrorWrapper(err, "could not read rc file %s", path)
	}

	var rc RCFile

	// Weak typing keeps quoted ports ('port: "3306"') working; rc files in
	// the wild carry both spellings.
	if err := v.Unmarshal(&rc, func(dc *mapstructure.DecoderConfig) { dc.WeaklyTypedInput = true }); err != nil {
		return nil, errorx.NewInvalidConfigErrorWrapper(err, "could not decode rc file %s", path)
	}

	if rc.Obsdb == nil {
		return nil, errorx.NewInvalidConfigError("section %q missing from rc file %s", Section, path)
	}

	cfg := rc.Obsdb
	cfg.applyDefaults()

	if err := cfg.validate(fmt.Sprintf("rc file %s", path)); err != nil {
		return nil, err
	}

	return cfg, nil
}
