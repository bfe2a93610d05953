// Package config manages user-level settings stored at ~/.phovea/config.yaml.
// Keys can also be supplied as PHOVEA_<KEY> environment variables; the
// templates_dir key points at a directory of extra or overriding kinds.
package config
