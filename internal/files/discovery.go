package files

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// FileInfo represents information about a discovered file
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// Discovery finds performance exports in a directory. Relative directories
// resolve against basePath.
type Discovery struct {
	basePath   string
	extensions map[string]bool
}

// NewDiscovery creates a discovery for the given extensions, e.g. ".csv".
func NewDiscovery(basePath string, extensions []string) *Discovery {
	d := &Discovery{basePath: basePath, extensions: make(map[string]bool, len(extensions))}
	for _, e := range extensions {
		d.extensions[strings.ToLower(e)] = true
	}
	return d
}

// FindTables lists the files in dir with an accepted extension, oldest
// first. Subdirectories and Office lock files ("~$name.xlsx") are skipped.
func (d *Discovery) FindTables(dir string) ([]FileInfo, error) {
	fullPath := dir
	if !filepath.IsAbs(dir) {
		fullPath = filepath.Join(d.basePath, dir)
	}

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", fullPath, err)
	}

	var files []FileInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, "~$") {
			continue
		}
		if !d.extensions[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Path:    filepath.Join(fullPath, name),
			Name:    name,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].Name < files[j].Name
		}
		return files[i].ModTime.Before(files[j].ModTime)
	})
	return files, nil
}

// GetLatestFile returns the most recently modified file from a list
func GetLatestFile(files []FileInfo) (FileInfo, bool) {
	if len(files) == 0 {
		return FileInfo{}, false
	}

	latest := files[0]
	for _, file := range files[1:] {
		if file.ModTime.After(latest.ModTime) {
			latest = file
		}
	}
	return latest, true
}

// OutputPath names the output for input inside dir: the input's base name
// without extension, then "_" + suffix when suffix is set, then ext.
func OutputPath(dir, input, suffix, ext string) string {
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	if suffix != "" {
		base += "_" + suffix
	}
	return filepath.Join(dir, base+ext)
}
