package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
)

// reloadDebounce coalesces the bursts of write events editors emit when
// saving the config file.
const reloadDebounce = 300 * time.Millisecond

// UserDir returns (and creates if needed) the quill-lsp directory under the
// user's config directory.
func UserDir() (string, error) {
	configDir, err := userConfigDir()
	if err != nil {
		return "", err
	}

	dir := filepath.Join(configDir, "quill-lsp")
	if _, err := os.Stat(dir); err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to check config directory: %w", err)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	return dir, nil
}

func userConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		usr, err := user.Current()
		if err != nil {
			return "", fmt.Errorf("failed to get current user: %w", err)
		}
		return filepath.Join(usr.HomeDir, ".config"), nil
	}
	return configDir, nil
}

// LoadFile applies the JSON config file at path to the settings. Missing
// fields keep their current values.
func LoadFile(path string, settings *Settings) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("config file %s is not valid JSON", path)
	}

	doc := gjson.ParseBytes(data)
	if v := doc.Get("validate"); v.Exists() {
		settings.SetValidate(v.Bool())
	}
	if v := doc.Get("validateDelayMs"); v.Exists() {
		settings.SetValidateDelay(time.Duration(v.Int()) * time.Millisecond)
	}
	if v := doc.Get("workerIdleTimeoutMs"); v.Exists() {
		settings.SetWorkerIdleTimeout(time.Duration(v.Int()) * time.Millisecond)
	}
	if v := doc.Get("eagerSync"); v.Exists() {
		settings.SetEagerSync(v.Bool())
	}
	return nil
}

// WriteDefaultFile materializes a config file with the default values at
// path, overwriting nothing if the file already exists.
func WriteDefaultFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to check config file: %w", err)
	}

	doc := "{}"
	var err error
	for _, field := range []struct {
		key   string
		value interface{}
	}{
		{"validate", true},
		{"validateDelayMs", int(DefaultValidateDelay / time.Millisecond)},
		{"workerIdleTimeoutMs", int(DefaultWorkerIdleTimeout / time.Millisecond)},
		{"eagerSync", false},
	} {
		doc, err = sjson.Set(doc, field.key, field.value)
		if err != nil {
			return fmt.Errorf("failed to build default config: %w", err)
		}
	}

	if err := os.WriteFile(path, pretty.Pretty([]byte(doc)), 0o644); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}
	return nil
}

// WatchFile reloads the config file into settings whenever it changes on
// disk. Reloads are debounced; every applied field change notifies the
// settings observers. The returned stop function releases the watcher.
func WatchFile(path string, settings *Settings, log zerolog.Logger) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}
	// Watch the directory: editors replace files on save, which would drop
	// a watch on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	log = log.With().Str("component", "config-watcher").Logger()
	debounced := debounce.New(reloadDebounce)

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != path {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				debounced(func() {
					if err := LoadFile(path, settings); err != nil {
						log.Warn().Err(err).Msg("config reload failed")
						return
					}
					log.Info().Str("path", path).Msg("config reloaded")
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("config watcher error")
			}
		}
	}()

	return func() { _ = watcher.Close() }, nil
}
