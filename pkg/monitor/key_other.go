//go:build !unix

package monitor

// fileKey falls back to the absolute path; tags do not survive renames here
func fileKey(path string) (string, error) {
	abs, err := absPath(path)
	if err != nil {
		return "", err
	}
	return pathKey(abs), nil
}
