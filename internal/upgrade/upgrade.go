// Package upgrade replaces the running claude-office binary with the latest
// GitHub release.
package upgrade

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kylemclaren/claude-office/internal/version"
)

const (
	defaultAPIBase = "https://api.github.com"
	defaultRepo    = "kylemclaren/claude-office"
	binaryName     = "claude-office"
)

// Release is the subset of a GitHub release we use
type Release struct {
	TagName string  `json:"tag_name"`
	Name    string  `json:"name"`
	Assets  []Asset `json:"assets"`
	Body    string  `json:"body"`
}

// Asset is a downloadable file attached to a release
type Asset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// Updater checks for and installs releases. The zero value is not usable;
// use New.
type Updater struct {
	APIBase string
	Repo    string
	Current string
	GOOS    string
	GOARCH  string

	client *http.Client
	out    io.Writer
	log    zerolog.Logger
}

// New returns an Updater for this build that reports progress to out.
func New(out io.Writer, log zerolog.Logger) *Updater {
	return &Updater{
		APIBase: defaultAPIBase,
		Repo:    defaultRepo,
		Current: version.Short(),
		GOOS:    runtime.GOOS,
		GOARCH:  runtime.GOARCH,
		client:  &http.Client{Timeout: 5 * time.Minute},
		out:     out,
		log:     log,
	}
}

// Check fetches the latest release and reports whether it differs from the
// running version. Development builds never report an update.
func (u *Updater) Check(ctx context.Context) (*Release, bool, error) {
	release, err := u.latest(ctx)
	if err != nil {
		return nil, false, err
	}

	latest := strings.TrimPrefix(release.TagName, "v")
	current := strings.TrimPrefix(u.Current, "v")
	if latest != current && current != "dev" {
		return release, true, nil
	}
	return release, false, nil
}

// Upgrade installs the latest release over the executable at execPath.
// An empty execPath means the running binary.
func (u *Updater) Upgrade(ctx context.Context, execPath string) error {
	release, hasUpdate, err := u.Check(ctx)
	if err != nil {
		return fmt.Errorf("checking for updates: %w", err)
	}
	if !hasUpdate {
		fmt.Fprintf(u.out, "Already running the latest version (%s)\n", u.Current)
		return nil
	}

	fmt.Fprintf(u.out, "Upgrading from %s to %s...\n", u.Current, release.TagName)

	assetName := u.assetName()
	var downloadURL string
	for _, asset := range release.Assets {
		if asset.Name == assetName {
			downloadURL = asset.BrowserDownloadURL
			break
		}
	}
	if downloadURL == "" {
		return fmt.Errorf("no release asset for %s/%s (looking for %s)", u.GOOS, u.GOARCH, assetName)
	}

	if execPath == "" {
		if execPath, err = os.Executable(); err != nil {
			return fmt.Errorf("getting executable path: %w", err)
		}
	}
	if execPath, err = filepath.EvalSymlinks(execPath); err != nil {
		return fmt.Errorf("resolving executable path: %w", err)
	}

	fmt.Fprintf(u.out, "Downloading %s...\n", assetName)
	tmpFile, err := u.download(ctx, downloadURL)
	if err != nil {
		return fmt.Errorf("downloading: %w", err)
	}
	defer os.Remove(tmpFile)

	if !strings.HasSuffix(assetName, ".tar.gz") {
		return fmt.Errorf("cannot install %s automatically; download it from %s", assetName, downloadURL)
	}
	newBinary, err := extractTarGz(tmpFile)
	if err != nil {
		return fmt.Errorf("extracting: %w", err)
	}
	defer os.Remove(newBinary)

	if err := replaceExecutable(execPath, newBinary); err != nil {
		return fmt.Errorf("installing: %w", err)
	}
	u.log.Info().Str("from", u.Current).Str("to", release.TagName).Str("path", execPath).Msg("upgraded")
	fmt.Fprintf(u.out, "Upgraded to %s\n", release.TagName)
	return nil
}

func (u *Updater) latest(ctx context.Context) (*Release, error) {
	url := fmt.Sprintf("%s/repos/%s/releases/latest", strings.TrimRight(u.APIBase, "/"), u.Repo)
	resp, err := u.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("decoding release: %w", err)
	}
	return &release, nil
}

func (u *Updater) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s returned status %d", url, resp.StatusCode)
	}
	return resp, nil
}

// assetName follows the goreleaser archive naming
func (u *Updater) assetName() string {
	goos, arch := u.GOOS, u.GOARCH
	switch arch {
	case "amd64":
		arch = "x86_64"
	case "386":
		arch = "i386"
	}
	switch goos {
	case "darwin":
		goos = "Darwin"
	case "linux":
		goos = "Linux"
	case "windows":
		return fmt.Sprintf("%s_Windows_%s.zip", binaryName, arch)
	}
	return fmt.Sprintf("%s_%s_%s.tar.gz", binaryName, goos, arch)
}

func (u *Updater) download(ctx context.Context, url string) (string, error) {
	resp, err := u.get(ctx, url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	tmpFile, err := os.CreateTemp("", binaryName+"-*")
	if err != nil {
		return "", err
	}
	defer tmpFile.Close()

	if _, err := io.Copy(tmpFile, resp.Body); err != nil {
		os.Remove(tmpFile.Name())
		return "", err
	}
	return tmpFile.Name(), nil
}

func extractTarGz(tarPath string) (string, error) {
	f, err := os.Open(tarPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	gzr, err := gzip.NewReader(f)
	if err != nil {
		return "", err
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		if header.Typeflag != tar.TypeReg || (header.Name != binaryName && !strings.HasSuffix(header.Name, "/"+binaryName)) {
			continue
		}

		tmpFile, err := os.CreateTemp("", binaryName+"-bin-*")
		if err != nil {
			return "", err
		}
		if _, err := io.Copy(tmpFile, tr); err != nil {
			tmpFile.Close()
			os.Remove(tmpFile.Name())
			return "", err
		}
		tmpFile.Close()
		if err := os.Chmod(tmpFile.Name(), 0o755); err != nil {
			os.Remove(tmpFile.Name())
			return "", err
		}
		return tmpFile.Name(), nil
	}
	return "", fmt.Errorf("%s binary not found in archive", binaryName)
}

// replaceExecutable swaps newPath into oldPath, restoring the original if
// the copy fails.
func replaceExecutable(oldPath, newPath string) error {
	backupPath := oldPath + ".bak"
	if err := os.Rename(oldPath, backupPath); err != nil {
		return fmt.Errorf("backing up old executable: %w", err)
	}

	newFile, err := os.Open(newPath)
	if err != nil {
		_ = os.Rename(backupPath, oldPath)
		return err
	}
	defer newFile.Close()

	destFile, err := os.OpenFile(oldPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		_ = os.Rename(backupPath, oldPath)
		return err
	}
	if _, err := io.Copy(destFile, newFile); err != nil {
		destFile.Close()
		_ = os.Remove(oldPath)
		_ = os.Rename(backupPath, oldPath)
		return err
	}
	if err := destFile.Close(); err != nil {
		_ = os.Remove(oldPath)
		_ = os.Rename(backupPath, oldPath)
		return err
	}

	_ = os.Remove(backupPath)
	return nil
}
