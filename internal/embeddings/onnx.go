package embeddings

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// DefaultONNXRuntimeVersion is the ONNX runtime version matching onnxruntime_go.
// Update this when bumping fastembed-go in go.mod.
const DefaultONNXRuntimeVersion = "1.23.0"

// ONNXPathEnv is read by fastembed-go to locate the runtime library.
const ONNXPathEnv = "ONNX_PATH"

// ErrUnsupportedPlatform indicates the current OS/arch is not supported.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// platformArchMap maps GOOS/GOARCH to ONNX release archive names.
var platformArchMap = map[string]map[string]string{
	"linux": {
		"amd64": "linux-x64",
		"arm64": "linux-aarch64",
	},
	"darwin": {
		"amd64": "osx-x86_64",
		"arm64": "osx-arm64",
	},
}

// libraryNames maps GOOS to the shared library filename.
var libraryNames = map[string]string{
	"linux":  "libonnxruntime.so",
	"darwin": "libonnxruntime.dylib",
}

func getPlatformArchive(goos, goarch string) (string, error) {
	arch, ok := platformArchMap[goos][goarch]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, goos, goarch)
	}
	return arch, nil
}

func getLibraryName(goos string) string {
	if name, ok := libraryNames[goos]; ok {
		return name
	}
	return "libonnxruntime.so"
}

// ONNXInstallDir returns the managed install directory for the ONNX runtime.
func ONNXInstallDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "embedgate", "lib")
}

// ONNXLibraryPath returns the path to the ONNX runtime library, checking
// ONNX_PATH first and then the managed install directory. Returns "" if
// neither is present.
func ONNXLibraryPath() string {
	if envPath := os.Getenv(ONNXPathEnv); envPath != "" {
		return envPath
	}
	return managedLibraryPath(ONNXInstallDir())
}

func managedLibraryPath(dir string) string {
	path := filepath.Join(dir, getLibraryName(runtime.GOOS))
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

// setONNXPathEnv is swapped out in tests.
var setONNXPathEnv = func(path string) error {
	return os.Setenv(ONNXPathEnv, path)
}

// ConfigureONNXRuntime points fastembed-go at a managed runtime install when
// ONNX_PATH is unset. It returns the library path in use, or "" when the
// runtime must come from the system loader path.
func ConfigureONNXRuntime() (string, error) {
	if envPath := os.Getenv(ONNXPathEnv); envPath != "" {
		return envPath, nil
	}
	path := managedLibraryPath(ONNXInstallDir())
	if path == "" {
		return "", nil
	}
	if err := setONNXPathEnv(path); err != nil {
		return "", fmt.Errorf("setting %s: %w", ONNXPathEnv, err)
	}
	return path, nil
}

const onnxReleaseURLTemplate = "https://github.com/microsoft/onnxruntime/releases/download/v%s/onnxruntime-%s-%s.tgz"

func buildDownloadURL(version, platform string) string {
	return fmt.Sprintf(onnxReleaseURLTemplate, version, platform, version)
}

// DownloadONNXRuntime downloads the ONNX runtime for the current platform
// into destDir. Empty arguments select DefaultONNXRuntimeVersion and
// ONNXInstallDir.
func DownloadONNXRuntime(ctx context.Context, version, destDir string) (string, error) {
	if version == "" {
		version = DefaultONNXRuntimeVersion
	}
	if destDir == "" {
		destDir = ONNXInstallDir()
	}

	platform, err := getPlatformArchive(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(destDir, 0700); err != nil {
		return "", fmt.Errorf("creating directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, buildDownloadURL(version, platform), nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading ONNX runtime: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	prefix := fmt.Sprintf("onnxruntime-%s-%s/lib/", platform, version)
	if err := extractTarGz(resp.Body, destDir, prefix, getLibraryName(runtime.GOOS)); err != nil {
		return "", fmt.Errorf("extracting archive: %w", err)
	}

	return filepath.Join(destDir, getLibraryName(runtime.GOOS)), nil
}

// extractTarGz extracts the files under prefix into destDir, flattening
// paths. Symlinks are recreated as-is. Fails if libName is not among them.
func extractTarGz(r io.Reader, destDir, prefix, libName string) error {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	var foundMainLib bool

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading tar: %w", err)
		}

		name := strings.TrimPrefix(header.Name, "./")
		if !strings.HasPrefix(name, prefix) || header.Typeflag == tar.TypeDir {
			continue
		}

		filename := filepath.Base(name)
		destPath := filepath.Join(destDir, filename)

		if header.Typeflag == tar.TypeSymlink {
			_ = os.Remove(destPath)
			if err := os.Symlink(header.Linkname, destPath); err != nil {
				continue
			}
			if filename == libName {
				foundMainLib = true
			}
			continue
		}

		if err := writeFile(destPath, tr); err != nil {
			return fmt.Errorf("writing file %s: %w", filename, err)
		}

		if filename == libName || strings.HasPrefix(filename, libName+".") {
			foundMainLib = true
		}
	}

	if !foundMainLib {
		return fmt.Errorf("library %s not found in archive", libName)
	}
	return nil
}

func writeFile(path string, r io.Reader) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
