// Package updater provides self-update functionality for exo-orch
package updater

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const (
	githubRepo      = "exoforge/exo-orchestrator"
	githubAPIURL    = "https://api.github.com/repos/" + githubRepo + "/releases/latest"
	downloadURL     = "https://github.com/" + githubRepo + "/releases/download"
	binaryName      = "exo-orch"
	checkTimeout    = 10 * time.Second
	downloadTimeout = 5 * time.Minute
)

// Release is the subset of the GitHub release API response we read
type Release struct {
	TagName string `json:"tag_name"`
	Name    string `json:"name"`
}

// Latest fetches the newest release tag from GitHub
func Latest() (string, error) {
	client := &http.Client{Timeout: checkTimeout}

	resp, err := client.Get(githubAPIURL)
	if err != nil {
		return "", fmt.Errorf("checking for updates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GitHub API returned status %d", resp.StatusCode)
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return "", fmt.Errorf("parsing release info: %w", err)
	}

	return release.TagName, nil
}

// NeedsUpdate reports whether latest is newer than current. Versions are
// "vX.Y.Z" or "X.Y.Z"; a "dev" build always wants the update.
func NeedsUpdate(current, latest string) bool {
	current = strings.TrimPrefix(current, "v")
	latest = strings.TrimPrefix(latest, "v")

	if current == "dev" {
		return latest != "dev"
	}

	cur := parseVersion(current)
	lat := parseVersion(latest)

	for i := 0; i < 3; i++ {
		if lat[i] > cur[i] {
			return true
		}
		if lat[i] < cur[i] {
			return false
		}
	}

	return false
}

func parseVersion(v string) [3]int {
	var parts [3]int
	fmt.Sscanf(v, "%d.%d.%d", &parts[0], &parts[1], &parts[2])
	return parts
}

// Apply downloads the release archive for this platform and swaps the
// running binary in place.
func Apply(target string) error {
	platform := fmt.Sprintf("%s_%s", runtime.GOOS, runtime.GOARCH)

	// Archives are named exo-orch_1.2.3_linux_amd64.tar.gz
	versionNum := strings.TrimPrefix(target, "v")
	archiveName := fmt.Sprintf("%s_%s_%s.tar.gz", binaryName, versionNum, platform)
	url := fmt.Sprintf("%s/%s/%s", downloadURL, target, archiveName)

	tmpDir, err := os.MkdirTemp("", "exo-orch-update-*")
	if err != nil {
		return fmt.Errorf("creating temp directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	archivePath := filepath.Join(tmpDir, archiveName)
	if err := fetchArchive(url, archivePath); err != nil {
		return fmt.Errorf("downloading update: %w", err)
	}

	newBinary := filepath.Join(tmpDir, binaryName)
	if err := extractBinary(archivePath, tmpDir); err != nil {
		return fmt.Errorf("extracting update: %w", err)
	}

	currentExe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locating executable: %w", err)
	}
	currentExe, err = filepath.EvalSymlinks(currentExe)
	if err != nil {
		return fmt.Errorf("resolving executable path: %w", err)
	}

	if err := swapBinary(currentExe, newBinary); err != nil {
		return fmt.Errorf("installing new binary: %w", err)
	}

	return nil
}

func fetchArchive(url, dest string) error {
	client := &http.Client{Timeout: downloadTimeout}

	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, resp.Body)
	return err
}

// extractBinary pulls the exo-orch binary out of a tar.gz archive. The
// binary may sit at the archive root or inside a subdirectory.
func extractBinary(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gzr, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		if filepath.Base(header.Name) == binaryName && header.Typeflag == tar.TypeReg {
			destPath := filepath.Join(destDir, binaryName)
			outFile, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
			if err != nil {
				return err
			}
			defer outFile.Close()

			if _, err := io.Copy(outFile, tr); err != nil {
				return err
			}
			return nil
		}
	}

	return fmt.Errorf("binary %s not found in archive", binaryName)
}

// swapBinary replaces the running binary, keeping a backup until the copy
// lands so a failed install can roll back.
func swapBinary(currentPath, newPath string) error {
	info, err := os.Stat(currentPath)
	if err != nil {
		return err
	}

	backupPath := currentPath + ".old"
	os.Remove(backupPath)

	if err := os.Rename(currentPath, backupPath); err != nil {
		return fmt.Errorf("backing up current binary: %w", err)
	}

	// Copy rather than rename; the temp dir can be on another filesystem.
	if err := copyFile(newPath, currentPath, info.Mode()); err != nil {
		os.Rename(backupPath, currentPath)
		return err
	}

	os.Remove(backupPath)
	return nil
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
