package config

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

const VersionDev = "<dev>"

// Version is the version of the pk binary, set at release build time.
var Version = VersionDev

// FetchLatestVersion returns the latest released pk version, using a 24h
// on-disk cache under the user's XDG cache directory to avoid hammering the
// release API on every invocation.
func FetchLatestVersion(ctx context.Context) (string, error) {
	cacheFile, err := xdg.CacheFile(filepath.Join("pancake", "version-check"))
	if err != nil {
		return "", err
	}
	if stat, statErr := os.Stat(cacheFile); statErr == nil &&
		time.Since(stat.ModTime()) <= 24*time.Hour {
		data, readErr := os.ReadFile(cacheFile)
		if readErr == nil {
			return string(data), nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet,
		"https://api.github.com/repos/pancake-vcs/pk/releases/latest", nil,
	)
	if err != nil {
		return "", err
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	var data struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(res.Body).Decode(&data); err != nil {
		return "", err
	}
	_ = os.WriteFile(cacheFile, []byte(data.Name), 0o644)
	return data.Name, nil
}
