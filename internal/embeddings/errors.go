package embeddings

import "fmt"

// FormatError reports a missing or unsupported embeddings-viewer-version tag.
type FormatError struct {
	// Found is the raw version value, empty when the tag is absent.
	Found string
}

func (e *FormatError) Error() string {
	if e.Found == "" {
		return fmt.Sprintf("format error: missing %q tag (expected %d)", VersionKey, Version)
	}
	return fmt.Sprintf("format error: unsupported %s %s (expected %d)", VersionKey, e.Found, Version)
}

// SchemaError reports a document that does not match the meta.json schema.
// Path locates the offending element, e.g. "data[0].data[3].colorOptions[1]".
type SchemaError struct {
	Path   string
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	msg := "schema error"
	if e.Path != "" {
		msg += " at " + e.Path
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SchemaError) Unwrap() error { return e.Err }

func schemaErrorf(path, format string, args ...interface{}) *SchemaError {
	return &SchemaError{Path: path, Reason: fmt.Sprintf(format, args...)}
}
