package parser

import (
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/zhaobenny/claudelytics/internal/apperr"
	"github.com/zhaobenny/claudelytics/internal/logger"
)

// ProjectsDirName is the directory below the Claude root holding session logs
const ProjectsDirName = "projects"

// DefaultRoot returns ~/.claude
func DefaultRoot() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".claude"), nil
}

// FindProjectsDir returns <root>/projects, failing if it is not a directory
func FindProjectsDir(root string) (string, error) {
	dir := filepath.Join(root, ProjectsDirName)
	info, err := os.Stat(dir)
	if err != nil {
		return "", apperr.WithPath(apperr.KindDirectoryNotFound, "find projects", dir, err)
	}
	if !info.IsDir() {
		return "", apperr.WithPath(apperr.KindDirectoryNotFound, "find projects", dir, fmt.Errorf("not a directory"))
	}
	return dir, nil
}

// FindUsageFiles finds all JSONL files below the projects directory in
// lexical order. Unreadable subdirectories are skipped.
func FindUsageFiles(projectsDir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(projectsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == projectsDir {
				return err
			}
			logger.Warn("skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && filepath.Ext(path) == ".jsonl" {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, apperr.WithPath(apperr.KindIO, "walk projects", projectsDir, err)
	}
	return files, nil
}

// SessionIDFromPath derives the session id from a file's directory relative
// to the projects directory: projects/my-project/abc123/chat.jsonl yields
// "my-project/abc123". Files directly in projects/ have no session id.
func SessionIDFromPath(projectsDir, path string) string {
	rel, err := filepath.Rel(projectsDir, path)
	if err != nil {
		return ""
	}
	dir := filepath.ToSlash(filepath.Dir(rel))
	if dir == "." || strings.HasPrefix(dir, "..") {
		return ""
	}
	return dir
}

// SplitSessionID splits a session id into project path and session id,
// treating the last component as the session
func SplitSessionID(id string) (projectPath, sessionID string) {
	i := strings.LastIndex(id, "/")
	if i < 0 {
		return "", id
	}
	return id[:i], id[i+1:]
}

// Fingerprint hashes the path, size and modification time of each file.
// Two calls return the same value only if no file was added, removed or
// rewritten.
func Fingerprint(files []string) (string, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			fmt.Fprintf(h, "%s\x00missing\n", f)
			continue
		}
		fmt.Fprintf(h, "%s\x00%d\x00%d\n", f, info.Size(), info.ModTime().UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
