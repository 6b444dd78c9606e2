// Copyright 2026 The Conductor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import "fmt"

// DatabaseConfig configures the SQL store for conversations, chains,
// cost records, and prompts.
type DatabaseConfig struct {
	// Driver is one of sqlite, postgres, mysql.
	Driver string `yaml:"driver,omitempty" json:"driver,omitempty" jsonschema:"title=Driver,enum=sqlite,enum=postgres,enum=mysql,default=sqlite"`

	// DSN is the driver-specific connection string.
	DSN string `yaml:"dsn,omitempty" json:"dsn,omitempty" jsonschema:"title=DSN,description=Connection string (use ${ENV_VAR} for credentials)"`
}

// SetDefaults applies default values.
func (c *DatabaseConfig) SetDefaults() {
	if c.Driver == "" {
		c.Driver = "sqlite"
	}
	if c.DSN == "" && c.Driver == "sqlite" {
		c.DSN = "conductor.db"
	}
}

// Validate checks the configuration.
func (c *DatabaseConfig) Validate() error {
	switch c.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Driver)
	}
	if c.DSN == "" {
		return fmt.Errorf("database dsn is required for driver %q", c.Driver)
	}
	return nil
}

// DriverName maps the configured driver to the registered sql driver.
func (c *DatabaseConfig) DriverName() string {
	if c.Driver == "sqlite" {
		return "sqlite3"
	}
	return c.Driver
}

// RedisConfig configures the shared prompt-cache tier.
type RedisConfig struct {
	// Enabled turns the shared tier on.
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"title=Enabled,default=false"`

	// Addr is host:port.
	Addr string `yaml:"addr,omitempty" json:"addr,omitempty" jsonschema:"title=Address,default=localhost:6379"`

	// Password for AUTH, if any.
	Password string `yaml:"password,omitempty" json:"password,omitempty" jsonschema:"title=Password"`

	// DB selects the redis database.
	DB int `yaml:"db,omitempty" json:"db,omitempty" jsonschema:"title=Database,default=0"`
}

// SetDefaults applies default values.
func (c *RedisConfig) SetDefaults() {
	if c.Enabled == nil {
		c.Enabled = BoolPtr(false)
	}
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
}
