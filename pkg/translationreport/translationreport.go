// Package translationreport collects warnings and counters produced while
// translating OpenAPI documents into a GraphQL type graph.
package translationreport

import (
	"fmt"
)

// MitigationKind is the closed set of recoverable conditions a translation
// can hit. Every warning carries exactly one kind.
type MitigationKind int

const (
	MitigationDuplicateField MitigationKind = iota
	MitigationDuplicateSecurityField
	MitigationAmbiguousTitle
	MitigationUnknownCustomResolver
	MitigationAmbiguousSuccessStatus
	MitigationMissingResponseSchema
	MitigationUnsupportedSecurityScheme
	MitigationUnresolvableLink
)

func (k MitigationKind) String() string {
	switch k {
	case MitigationDuplicateField:
		return "DUPLICATE_FIELD_NAME"
	case MitigationDuplicateSecurityField:
		return "DUPLICATE_SECURITY_FIELD_NAME"
	case MitigationAmbiguousTitle:
		return "AMBIGUOUS_DOCUMENT_TITLE"
	case MitigationUnknownCustomResolver:
		return "UNKNOWN_CUSTOM_RESOLVER"
	case MitigationAmbiguousSuccessStatus:
		return "AMBIGUOUS_SUCCESS_STATUS"
	case MitigationMissingResponseSchema:
		return "MISSING_RESPONSE_SCHEMA"
	case MitigationUnsupportedSecurityScheme:
		return "UNSUPPORTED_SECURITY_SCHEME"
	case MitigationUnresolvableLink:
		return "UNRESOLVABLE_LINK"
	}
	return "UNKNOWN"
}

// Warning describes a recoverable condition and the fallback that was taken.
type Warning struct {
	Kind     MitigationKind
	Message  string
	Addendum string
}

func (w Warning) String() string {
	if w.Addendum == "" {
		return fmt.Sprintf("%s: %s", w.Kind, w.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", w.Kind, w.Message, w.Addendum)
}

// Report accumulates warnings and counters across all translation stages.
// It is passed by reference through the whole pipeline; translation never
// aborts because of a warning unless the caller escalates in strict mode.
type Report struct {
	Warnings []Warning

	// Operations seen by the preprocessor, by kind.
	NumQueriesSeen       int
	NumMutationsSeen     int
	NumSubscriptionsSeen int

	// Fields actually created by the assembler, by kind.
	NumQueryFields         int
	NumMutationFields      int
	NumSubscriptionFields  int
	NumAuthenticatedFields int
}

func (r *Report) AddWarning(kind MitigationKind, message, addendum string) {
	r.Warnings = append(r.Warnings, Warning{Kind: kind, Message: message, Addendum: addendum})
}

func (r *Report) HasWarnings() bool {
	return len(r.Warnings) > 0
}

func (r *Report) Reset() {
	*r = Report{Warnings: r.Warnings[:0]}
}

func (r Report) Error() string {
	out := ""
	for i := range r.Warnings {
		if i != 0 {
			out += "\n"
		}
		out += r.Warnings[i].String()
	}
	return out
}
