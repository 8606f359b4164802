// Package export packages a workspace for the outside world: the zip
// archive with binary assets and a JSON manifest, the tabular XLSX
// report, the flattened plan-view PDF and the optional object-storage
// upload. Everything here is read-only over the workspace.
package export

// Result is a finished export artifact.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// sanitizeFilename creates a safe filename from a workspace name.
func sanitizeFilename(title string) string {
	result := ""
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			result += string(r)
		case r == ' ':
			result += "-"
		case r == '-', r == '_':
			result += string(r)
		default:
			// Skip other characters
		}
	}

	if len(result) > 50 {
		result = result[:50]
	}

	if result == "" {
		result = "workspace"
	}

	return result
}
