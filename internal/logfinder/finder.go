// Package logfinder locates the Arena Player.log across platforms.
package logfinder

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
)

// EnvLogFile is the environment variable for specifying the log file path.
const EnvLogFile = "MTGAOVERLAY_LOGFILE"

// ErrLogFileNotFound is returned when no Player.log can be located.
var ErrLogFileNotFound = errors.New("arena log file not found")

const (
	logIntermediate = "Wizards Of The Coast/MTGA"
	currentLog      = "Player.log"
	previousLog     = "Player-prev.log"
	steamAppID      = "2141910"
)

// candidateRoots returns the directories that may contain the
// "Wizards Of The Coast/MTGA" log tree, in priority order.
func candidateRoots() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	username := ""
	if u, uerr := user.Current(); uerr == nil {
		username = filepath.Base(u.Username)
	}

	steamSuffix := filepath.Join("steamapps", "compatdata", steamAppID,
		"pfx", "drive_c", "users", "steamuser", "AppData", "LocalLow")

	roots := []string{
		// macOS
		filepath.Join(home, "Library", "Logs"),

		// Steam (Proton)
		filepath.Join(home, ".steam", "steam", steamSuffix),
		filepath.Join(home, ".local", "share", "Steam", steamSuffix),
	}

	if username != "" {
		windowsSuffix := filepath.Join("users", username, "AppData", "LocalLow")

		// Native Windows
		roots = append(roots,
			filepath.Join("C:/", windowsSuffix),
			filepath.Join("D:/", windowsSuffix),
		)

		// Lutris
		roots = append(roots, filepath.Join(home, "Games",
			"magic-the-gathering-arena", "drive_c", windowsSuffix))

		// Wine
		prefix := os.Getenv("WINEPREFIX")
		if prefix == "" {
			prefix = filepath.Join(home, ".wine")
		}
		roots = append(roots, filepath.Join(prefix, "drive_c", windowsSuffix))
	}

	return roots
}

// CandidatePaths returns every Player.log location worth checking,
// in priority order.
func CandidatePaths() []string {
	var paths []string
	for _, root := range candidateRoots() {
		paths = append(paths, filepath.Join(root, logIntermediate, currentLog))
	}
	return paths
}

// PreviousLogPaths returns the rotated Player-prev.log candidates, used to
// catch up on events from before the current client session.
func PreviousLogPaths() []string {
	var paths []string
	for _, root := range candidateRoots() {
		paths = append(paths, filepath.Join(root, logIntermediate, previousLog))
	}
	return paths
}

// FindLogFile returns the Player.log path to follow.
//
// Priority:
//  1. explicit (if non-empty)
//  2. MTGAOVERLAY_LOGFILE environment variable
//  3. first existing candidate path
//
// An explicit or env path is returned even when the file does not exist
// yet, since the client may not have started; auto-detection requires the
// file to exist.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if envPath := os.Getenv(EnvLogFile); envPath != "" {
		return envPath, nil
	}
	for _, path := range CandidatePaths() {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: checked %d locations", ErrLogFileNotFound, len(CandidatePaths()))
}
