// Package update checks GitHub for newer fhirsql releases.
package update

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	goversion "github.com/hashicorp/go-version"
	"github.com/mitchellh/go-homedir"

	"github.com/pthm/fhirsql/internal/version"
)

const (
	releasesURL = "https://api.github.com/repos/pthm/fhirsql/releases/latest"
	cacheTTL    = 24 * time.Hour
	cacheFile   = "update-check.json"
)

// Info contains update check results.
type Info struct {
	LatestVersion   string    `json:"latest_version"`
	CurrentVersion  string    `json:"current_version"`
	ReleaseURL      string    `json:"release_url,omitempty"`
	CheckedAt       time.Time `json:"checked_at"`
	UpdateAvailable bool      `json:"update_available"`
}

type githubRelease struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// Checker fetches the latest release. The zero value is not usable; use
// NewChecker.
type Checker struct {
	URL     string
	Client  *http.Client
	Current string
}

// NewChecker returns a Checker for the running binary's version.
func NewChecker() *Checker {
	return &Checker{
		URL:     releasesURL,
		Client:  &http.Client{Timeout: 5 * time.Second},
		Current: version.Version,
	}
}

// CheckWithCache checks for updates, reusing a result younger than a day.
func CheckWithCache(ctx context.Context) (*Info, error) {
	return NewChecker().CheckWithCache(ctx)
}

// CheckWithCache checks for updates, reusing a cached result younger than a
// day. Cache write failures are ignored.
func (c *Checker) CheckWithCache(ctx context.Context) (*Info, error) {
	info, err := loadCache()
	if err == nil && time.Since(info.CheckedAt) < cacheTTL {
		info.CurrentVersion = c.Current
		info.UpdateAvailable = compareVersions(info.CurrentVersion, info.LatestVersion) < 0
		return info, nil
	}

	info, err = c.Check(ctx)
	if err != nil {
		return nil, err
	}
	_ = saveCache(info)
	return info, nil
}

// Check fetches the latest release without consulting the cache.
func (c *Checker) Check(ctx context.Context) (*Info, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("User-Agent", "fhirsql/"+c.Current)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GitHub API returned status %d", resp.StatusCode)
	}

	var release githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("decoding release: %w", err)
	}

	latest := strings.TrimPrefix(release.TagName, "v")
	return &Info{
		LatestVersion:   latest,
		CurrentVersion:  c.Current,
		ReleaseURL:      release.HTMLURL,
		CheckedAt:       time.Now(),
		UpdateAvailable: compareVersions(c.Current, latest) < 0,
	}, nil
}

// cacheDir honors XDG_CACHE_HOME, falling back to ~/.cache/fhirsql.
func cacheDir() (string, error) {
	cacheHome := os.Getenv("XDG_CACHE_HOME")
	if cacheHome == "" {
		home, err := homedir.Dir()
		if err != nil {
			return "", err
		}
		cacheHome = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheHome, "fhirsql"), nil
}

func loadCache() (*Info, error) {
	dir, err := cacheDir()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, cacheFile))
	if err != nil {
		return nil, err
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func saveCache(info *Info) error {
	dir, err := cacheDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, cacheFile), data, 0o644)
}

// compareVersions returns -1, 0 or 1 as a is older than, equal to or newer
// than b. "dev" is newer than any release; unparseable versions compare
// equal so no update is offered.
func compareVersions(a, b string) int {
	if a == "dev" && b == "dev" {
		return 0
	}
	if a == "dev" {
		return 1
	}
	if b == "dev" {
		return -1
	}
	va, err := goversion.NewVersion(a)
	if err != nil {
		return 0
	}
	vb, err := goversion.NewVersion(b)
	if err != nil {
		return 0
	}
	return va.Compare(vb)
}
