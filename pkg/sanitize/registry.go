package sanitize

import (
	log "github.com/jensneuse/abstractlogger"
)

// NameRegistry maps sanitized identifiers back to the original names that
// produced them. It is filled while the type graph is built and must be
// treated as read-only once assembly has finished; resolvers consult it
// concurrently at call time.
type NameRegistry struct {
	saneToRaw map[string]string
	log       log.Logger
}

func NewNameRegistry(logger log.Logger) *NameRegistry {
	if logger == nil {
		logger = log.NoopLogger
	}
	return &NameRegistry{
		saneToRaw: make(map[string]string),
		log:       logger,
	}
}

// Store records the sane→original pair. Storing the same pair twice is a
// no-op. A second, distinct original under an already-used sane key logs and
// overwrites: the later write wins any subsequent lookup. Callers that need
// uniqueness must pre-check with Has before storing.
func (r *NameRegistry) Store(sane, original string) {
	if existing, ok := r.saneToRaw[sane]; ok {
		if existing == original {
			return
		}
		r.log.Debug("NameRegistry.Store: overwriting sanitized key",
			log.String("sane", sane),
			log.String("previous", existing),
			log.String("original", original),
		)
	}
	r.saneToRaw[sane] = original
}

// Original returns the raw name a sanitized identifier was derived from.
func (r *NameRegistry) Original(sane string) (string, bool) {
	original, ok := r.saneToRaw[sane]
	return original, ok
}

func (r *NameRegistry) Has(sane string) bool {
	_, ok := r.saneToRaw[sane]
	return ok
}

func (r *NameRegistry) Len() int {
	return len(r.saneToRaw)
}

// SaneFor sanitizes raw in the given style and records the mapping.
func (r *NameRegistry) SaneFor(raw string, style CaseStyle) string {
	sane := Sanitize(raw, style)
	r.Store(sane, raw)
	return sane
}
