// Package web holds the dashboard served by the monitor.
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/sirupsen/logrus"
)

// DevEnv names the environment variable that makes Assets read the dashboard
// from the source tree instead of the binary.
const DevEnv = "MEMSIM_MONITOR_DEV"

//go:embed dist/*
var dist embed.FS

// Assets returns the dashboard files.
func Assets() http.FileSystem {
	if dir, ok := sourceDir(); ok {
		logrus.WithField("dir", dir).Warn("serving monitor assets from disk")
		return http.Dir(dir)
	}

	sub, err := fs.Sub(dist, "dist")
	if err != nil {
		panic(err)
	}

	return http.FS(sub)
}

func sourceDir() (string, bool) {
	dev, _ := strconv.ParseBool(os.Getenv(DevEnv))
	if !dev {
		return "", false
	}

	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", false
	}

	return filepath.Join(filepath.Dir(file), "dist"), true
}
