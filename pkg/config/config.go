// Copyright 2025 vexdb, Inc.
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

import (
	"github.com/BurntSushi/toml"
	"github.com/pingcap/errors"
	"github.com/vexdb/vex/pkg/util/logutil"
)

// Config contains the configuration options of a vex process.
type Config struct {
	Performance Performance `toml:"performance" json:"performance"`
	Log         Log         `toml:"log" json:"log"`
}

// Performance is the performance section of the config.
type Performance struct {
	// MaxChunkSize is the target row count of chunks flowing between
	// operators.
	MaxChunkSize int `toml:"max-chunk-size" json:"max-chunk-size"`
}

// Log is the log section of the config.
type Log struct {
	Level  string `toml:"level" json:"level"`
	Format string `toml:"format" json:"format"`
	File   string `toml:"file" json:"file"`
}

var defaultConf = Config{
	Performance: Performance{
		MaxChunkSize: 1024,
	},
	Log: Log{
		Level:  logutil.DefaultLogLevel,
		Format: logutil.DefaultLogFormat,
	},
}

// NewConfig returns a Config with default values.
func NewConfig() *Config {
	conf := defaultConf
	return &conf
}

// Load loads config options from a toml file, overriding defaults.
func (c *Config) Load(confFile string) error {
	metaData, err := toml.DecodeFile(confFile, c)
	if err != nil {
		return errors.Trace(err)
	}
	if undecoded := metaData.Undecoded(); len(undecoded) > 0 {
		return errors.Errorf("config file %s contains unknown option %s", confFile, undecoded[0].String())
	}
	return nil
}

// Valid checks the config options.
func (c *Config) Valid() error {
	if c.Performance.MaxChunkSize < 32 {
		return errors.Errorf("max-chunk-size should be no less than 32, got %d", c.Performance.MaxChunkSize)
	}
	return nil
}

// ToLogConfig converts the log section to a logutil.LogConfig.
func (c *Config) ToLogConfig() *logutil.LogConfig {
	return logutil.NewLogConfig(c.Log.Level, c.Log.Format, c.Log.File)
}
