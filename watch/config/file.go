/*
DESCRIPTION
  file.go provides loading and saving of the YAML settings file, and a
  watcher that reports external edits so the engine can restart affected
  services. Settings are saved with a backup of the previous file, restored
  if the write fails.

AUTHORS
  Teodora Marek <teo@skywatchcam.io>

LICENSE
  Copyright (C) 2026 the SkyWatch developers.

  SkyWatch is free software: you can redistribute it and/or modify it under
  the terms of the GNU General Public License as published by the Free
  Software Foundation, either version 3 of the License, or (at your option)
  any later version.
*/

package config

import (
	"fmt"
	"os"

	"github.com/ausocean/utils/logging"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Load reads a YAML settings file into a Config. The returned config is not
// validated; callers run Validate once a Logger is attached.
func Load(path string) (Config, error) {
	var c Config
	b, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("could not read settings file: %w", err)
	}
	err = yaml.Unmarshal(b, &c)
	if err != nil {
		return c, fmt.Errorf("could not parse settings file: %w", err)
	}
	return c, nil
}

// Save writes the config to path as YAML. The previous file, if any, is kept
// as path+".backup" and restored should the write fail.
func Save(path string, c Config) error {
	backup := path + ".backup"
	prev, err := os.ReadFile(path)
	if err == nil {
		err = os.WriteFile(backup, prev, 0644)
		if err != nil {
			return fmt.Errorf("could not write settings backup: %w", err)
		}
	}

	b, err := yaml.Marshal(&c)
	if err != nil {
		return fmt.Errorf("could not marshal settings: %w", err)
	}

	err = os.WriteFile(path, b, 0644)
	if err != nil {
		if prev != nil {
			os.WriteFile(path, prev, 0644)
		}
		return fmt.Errorf("could not write settings file: %w", err)
	}
	return nil
}

// Watch invokes changed whenever the settings file is written to. It returns
// a stop function releasing the watcher. Watching is best effort; a watcher
// error is logged and the watch goroutine exits.
func Watch(path string, log logging.Logger, changed func()) (func(), error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("could not create settings watcher: %w", err)
	}
	err = w.Add(path)
	if err != nil {
		w.Close()
		return nil, fmt.Errorf("could not watch settings file: %w", err)
	}

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					log.Info("settings file changed", "path", ev.Name)
					changed()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Error("settings watcher error", "error", err.Error())
				return
			}
		}
	}()

	return func() { w.Close() }, nil
}
