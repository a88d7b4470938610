package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config for YAML input. Pointers distinguish an absent
// key from a zero value so that absent keys keep the base setting.
type fileConfig struct {
	Addr             *string `yaml:"addr"`
	Service          *string `yaml:"service"`
	UserAgent        *string `yaml:"user_agent"`
	ConnectTimeoutMS *int64  `yaml:"connect_timeout_ms"`
	RPCTimeoutMS     *int64  `yaml:"rpc_timeout_ms"`
	TLS              struct {
		Enabled    *bool   `yaml:"enabled"`
		CACert     *string `yaml:"ca_cert"`
		ClientCert *string `yaml:"client_cert"`
		ClientKey  *string `yaml:"client_key"`
		ServerName *string `yaml:"server_name"`
		NoVerify   *bool   `yaml:"no_verify"`
	} `yaml:"tls"`
	Log struct {
		Dir     *string `yaml:"dir"`
		Verbose *bool   `yaml:"verbose"`
	} `yaml:"log"`
}

// LoadFile overlays the YAML file at path onto base.
func LoadFile(path string, base Config) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return base, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	var fc fileConfig
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return base, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return fc.apply(base)
}

func (fc fileConfig) apply(base Config) (Config, error) {
	cfg := base
	setString(&cfg.Addr, fc.Addr)
	setString(&cfg.Service, fc.Service)
	setString(&cfg.UserAgent, fc.UserAgent)
	if err := setMillis(&cfg.ConnectTimeout, "connect_timeout_ms", fc.ConnectTimeoutMS); err != nil {
		return base, err
	}
	if err := setMillis(&cfg.RPCTimeout, "rpc_timeout_ms", fc.RPCTimeoutMS); err != nil {
		return base, err
	}

	setBool(&cfg.TLS.Enabled, fc.TLS.Enabled)
	setString(&cfg.TLS.CACert, fc.TLS.CACert)
	setString(&cfg.TLS.ClientCert, fc.TLS.ClientCert)
	setString(&cfg.TLS.ClientKey, fc.TLS.ClientKey)
	setString(&cfg.TLS.ServerName, fc.TLS.ServerName)
	setBool(&cfg.TLS.NoVerify, fc.TLS.NoVerify)

	setString(&cfg.Log.Dir, fc.Log.Dir)
	setBool(&cfg.Log.Verbose, fc.Log.Verbose)
	return cfg.Normalize(), nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setMillis(dst *time.Duration, key string, v *int64) error {
	if v == nil {
		return nil
	}
	d, err := Millis(key, *v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
