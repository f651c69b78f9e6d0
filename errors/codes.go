package errors

// Category classifies errors by their nature and retry semantics.
type Category string

const (
	// CategoryTransient indicates temporary failures where retry may succeed.
	// Examples: embedding provider timeouts, dialogue policy transport errors.
	CategoryTransient Category = "transient"

	// CategoryPermanent indicates failures where retry will not help.
	// Examples: unknown profile name, malformed uploads, empty match sets.
	CategoryPermanent Category = "permanent"

	// CategoryInternal indicates unexpected errors, bugs, or corrupted state.
	CategoryInternal Category = "internal"
)

// String returns the string representation of the category.
func (c Category) String() string {
	return string(c)
}

// IsRetryable returns true if errors in this category may succeed on retry.
func (c Category) IsRetryable() bool {
	return c == CategoryTransient
}

// Code identifies a specific failure type within a category.
type Code string

// Codes for every failure the core can surface. Collaborator errors are
// converted to one of these at the component boundary that invoked them;
// raw transport or library errors never cross a public contract.
const (
	// Collaborator failures (transient).
	CodeEmbeddingFailed   Code = "EMBEDDING_FAILED"   // embedding provider call failed
	CodePolicyUnavailable Code = "POLICY_UNAVAILABLE" // dialogue policy call failed
	CodeStoreUnavailable  Code = "STORE_UNAVAILABLE"  // vector store backend failed
	CodeTimeout           Code = "TIMEOUT"            // operation deadline exceeded

	// Request failures (permanent).
	CodeNotFound         Code = "NOT_FOUND"         // record does not exist
	CodeNoMatchFound     Code = "NO_MATCH_FOUND"    // similarity query returned nothing
	CodeExtractionFailed Code = "EXTRACTION_FAILED" // document text extraction failed
	CodeUnknownOperation Code = "UNKNOWN_OPERATION" // operation name not in the closed set
	CodeInvalidInput     Code = "INVALID_INPUT"     // malformed or inconsistent input
	CodeCanceled         Code = "CANCELED"          // caller canceled the operation

	// Internal failures.
	CodeInternal Code = "INTERNAL" // unexpected internal error
)

// String returns the string representation of the code.
func (c Code) String() string {
	return string(c)
}

// DefaultCategory returns the category an error code belongs to.
func (c Code) DefaultCategory() Category {
	switch c {
	case CodeEmbeddingFailed, CodePolicyUnavailable, CodeStoreUnavailable, CodeTimeout:
		return CategoryTransient
	case CodeNotFound, CodeNoMatchFound, CodeExtractionFailed,
		CodeUnknownOperation, CodeInvalidInput, CodeCanceled:
		return CategoryPermanent
	default:
		return CategoryInternal
	}
}
