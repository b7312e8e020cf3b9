package validation

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrEmptyFile means an upload or input file has no content.
	ErrEmptyFile = errors.New("file is empty")
	// ErrFileTooLarge means the file exceeds the configured upload limit.
	ErrFileTooLarge = errors.New("file is too large")
	// ErrUnsupportedFile means the file name or content is not a supported table.
	ErrUnsupportedFile = errors.New("unsupported file type")
)

// DefaultExtensions are the accepted upload extensions.
var DefaultExtensions = []string{".csv", ".txt", ".tsv", ".xlsx"}

var zipMagic = []byte("PK\x03\x04")

// FileValidator checks uploads and command line input files before ingestion.
type FileValidator struct {
	logger     *slog.Logger
	maxSize    int64
	allowed    []string
	extensions map[string]bool
}

// NewFileValidator creates a validator. maxSize <= 0 disables the size check;
// nil extensions means DefaultExtensions.
func NewFileValidator(logger *slog.Logger, maxSize int64, extensions []string) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	if extensions == nil {
		extensions = DefaultExtensions
	}
	v := &FileValidator{
		logger:     logger.With(slog.String("component", "file_validator")),
		maxSize:    maxSize,
		extensions: make(map[string]bool, len(extensions)),
	}
	for _, e := range extensions {
		e = strings.ToLower(e)
		if !v.extensions[e] {
			v.extensions[e] = true
			v.allowed = append(v.allowed, e)
		}
	}
	return v
}

// MaxSize returns the configured size limit in bytes.
func (v *FileValidator) MaxSize() int64 {
	return v.maxSize
}

// Extensions returns the accepted file extensions.
func (v *FileValidator) Extensions() []string {
	return append([]string(nil), v.allowed...)
}

// ValidateUpload checks the name and declared size of an uploaded file.
func (v *FileValidator) ValidateUpload(name string, size int64) error {
	if err := v.validateName(name); err != nil {
		return err
	}
	if size == 0 {
		v.logger.Warn("Empty upload rejected", slog.String("file", name))
		return fmt.Errorf("%s: %w", name, ErrEmptyFile)
	}
	if v.maxSize > 0 && size > v.maxSize {
		v.logger.Warn("Oversized upload rejected",
			slog.String("file", name),
			slog.Int64("size", size),
			slog.Int64("max_size", v.maxSize))
		return fmt.Errorf("%s is %d bytes, limit is %d: %w", name, size, v.maxSize, ErrFileTooLarge)
	}
	return nil
}

// ValidateContent checks that the bytes match the extension: workbooks are
// zip archives and delimited text is not.
func (v *FileValidator) ValidateContent(name string, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%s: %w", name, ErrEmptyFile)
	}
	isZip := bytes.HasPrefix(data, zipMagic)
	isWorkbook := strings.EqualFold(filepath.Ext(name), ".xlsx")
	switch {
	case isWorkbook && !isZip:
		return fmt.Errorf("%s does not look like an xlsx workbook: %w", name, ErrUnsupportedFile)
	case !isWorkbook && isZip:
		return fmt.Errorf("%s looks like a workbook or archive, not delimited text: %w", name, ErrUnsupportedFile)
	}
	return nil
}

// ValidateFile checks that a local input file exists, is a readable regular
// file and passes the upload checks.
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("File does not exist", slog.String("file", path))
		return fmt.Errorf("file %s does not exist", path)
	}
	if err != nil {
		v.logger.Error("Failed to stat file",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		v.logger.Error("Path is a directory, not a file", slog.String("path", path))
		return fmt.Errorf("%s is a directory, not a file", path)
	}

	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("File is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("file %s is not readable: %w", path, err)
	}
	file.Close()

	if err := v.ValidateUpload(filepath.Base(path), info.Size()); err != nil {
		return err
	}

	v.logger.Debug("File validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateOutputPath makes sure the parent directory of path exists or can be
// created and is writable.
func (v *FileValidator) ValidateOutputPath(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	probe, err := os.CreateTemp(dir, ".write_test_*")
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	probe.Close()
	os.Remove(probe.Name())
	return nil
}

func (v *FileValidator) validateName(name string) error {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return fmt.Errorf("file name is missing: %w", ErrUnsupportedFile)
	}
	if strings.HasPrefix(base, "~$") {
		v.logger.Warn("Temporary Office file rejected", slog.String("file", base))
		return fmt.Errorf("%s is a temporary Office file: %w", base, ErrUnsupportedFile)
	}
	ext := strings.ToLower(filepath.Ext(base))
	if !v.extensions[ext] {
		v.logger.Warn("Unsupported file extension",
			slog.String("file", base),
			slog.String("extension", ext))
		return fmt.Errorf("%s has extension %q, expected one of %s: %w",
			base, ext, strings.Join(v.allowed, ", "), ErrUnsupportedFile)
	}
	return nil
}
