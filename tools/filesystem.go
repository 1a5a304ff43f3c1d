package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/valet-agent/valet/tools/schemas"
)

const maxReadBytes = 1 << 20 // 1 MiB per read

// validateDataPath ensures the given path resolves inside the data directory
// and rejects directory traversal.
func validateDataPath(dataRoot, targetPath string) (string, error) {
	absRoot, err := filepath.Abs(filepath.Clean(dataRoot))
	if err != nil {
		return "", fmt.Errorf("invalid data directory: %w", err)
	}

	if filepath.IsAbs(targetPath) {
		absTarget := filepath.Clean(targetPath)
		if !strings.HasPrefix(absTarget+string(filepath.Separator), absRoot+string(filepath.Separator)) {
			return "", fmt.Errorf("path outside data directory: %s", targetPath)
		}
		return absTarget, nil
	}

	absTarget, err := filepath.Abs(filepath.Join(absRoot, targetPath))
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}
	if !strings.HasPrefix(absTarget+string(filepath.Separator), absRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected: %s", targetPath)
	}
	return absTarget, nil
}

// RegisterFilesystemTools registers read_file, write_file, list_files, and
// delete_file, all sandboxed to dataRoot.
func RegisterFilesystemTools(r *Registry, dataRoot string) error {
	all := schemas.FilesystemSchemas()

	err := r.Register("read_file", all["read_file"],
		func(ctx context.Context, args json.RawMessage) (any, error) {
			var payload struct {
				Path string `json:"path"`
			}
			if err := json.Unmarshal(args, &payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
			}
			validPath, err := validateDataPath(dataRoot, payload.Path)
			if err != nil {
				return nil, err
			}

			info, err := os.Stat(validPath)
			if err != nil {
				return nil, fmt.Errorf("failed to stat file: %w", err)
			}
			if info.IsDir() {
				return nil, fmt.Errorf("path is a directory, not a file: %s", payload.Path)
			}
			if info.Size() > maxReadBytes {
				return nil, fmt.Errorf("file too large to read: %d bytes", info.Size())
			}

			content, err := os.ReadFile(validPath) //#nosec G304 -- validated above
			if err != nil {
				return nil, fmt.Errorf("failed to read file: %w", err)
			}
			return map[string]any{
				"path":    payload.Path,
				"content": string(content),
				"size":    info.Size(),
			}, nil
		})
	if err != nil {
		return err
	}

	err = r.Register("write_file", all["write_file"],
		func(ctx context.Context, args json.RawMessage) (any, error) {
			var payload struct {
				Path    string `json:"path"`
				Content string `json:"content"`
			}
			if err := json.Unmarshal(args, &payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
			}
			validPath, err := validateDataPath(dataRoot, payload.Path)
			if err != nil {
				return nil, err
			}
			if err := os.MkdirAll(filepath.Dir(validPath), 0o750); err != nil {
				return nil, fmt.Errorf("failed to create directories: %w", err)
			}
			if err := os.WriteFile(validPath, []byte(payload.Content), 0o600); err != nil {
				return nil, fmt.Errorf("failed to write file: %w", err)
			}
			return map[string]any{
				"path":          payload.Path,
				"bytes_written": len(payload.Content),
			}, nil
		})
	if err != nil {
		return err
	}

	err = r.Register("list_files", all["list_files"],
		func(ctx context.Context, args json.RawMessage) (any, error) {
			var payload struct {
				Path string `json:"path"`
			}
			if err := json.Unmarshal(args, &payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
			}
			if payload.Path == "" {
				payload.Path = "."
			}
			validPath, err := validateDataPath(dataRoot, payload.Path)
			if err != nil {
				return nil, err
			}

			entries, err := os.ReadDir(validPath)
			if err != nil {
				return nil, fmt.Errorf("failed to list directory: %w", err)
			}
			names := make([]string, 0, len(entries))
			for _, e := range entries {
				name := e.Name()
				if e.IsDir() {
					name += "/"
				}
				names = append(names, name)
			}
			sort.Strings(names)
			return map[string]any{
				"path":  payload.Path,
				"files": names,
			}, nil
		})
	if err != nil {
		return err
	}

	return r.Register("delete_file", all["delete_file"],
		func(ctx context.Context, args json.RawMessage) (any, error) {
			var payload struct {
				Path string `json:"path"`
			}
			if err := json.Unmarshal(args, &payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
			}
			validPath, err := validateDataPath(dataRoot, payload.Path)
			if err != nil {
				return nil, err
			}
			info, err := os.Stat(validPath)
			if err != nil {
				return nil, fmt.Errorf("failed to stat file: %w", err)
			}
			if info.IsDir() {
				return nil, fmt.Errorf("refusing to delete a directory: %s", payload.Path)
			}
			if err := os.Remove(validPath); err != nil {
				return nil, fmt.Errorf("failed to delete file: %w", err)
			}
			return map[string]any{
				"path":    payload.Path,
				"deleted": true,
			}, nil
		})
}
