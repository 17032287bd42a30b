package provision

import (
	"golang.org/x/text/cases"

	"github.com/onalabs/biotupload/internal/biot"
)

// Directory maps organization display names to platform ids for one run.
// It is rebuilt from the organization list query on every run; nothing is
// cached across invocations.
type Directory map[string]string

// NewDirectory builds the name-to-id directory from a fetched organization
// list. A duplicated display name keeps the last entry, matching platform
// list order.
func NewDirectory(orgs []biot.Organization) Directory {
	d := make(Directory, len(orgs))
	for _, org := range orgs {
		d[org.Name] = org.ID
	}
	return d
}

// Resolve returns the id for name, or nil when the organization is unknown.
// An exact match wins; otherwise a case-fold match is accepted only when it
// is unambiguous. A nil id is propagated into the creation payload as JSON
// null rather than defaulted.
func (d Directory) Resolve(name string) *string {
	if id, ok := d[name]; ok {
		return &id
	}

	folder := cases.Fold()
	want := folder.String(name)
	var found *string
	for n, id := range d {
		if folder.String(n) == want {
			if found != nil {
				// Two names collide under folding, refuse to guess
				return nil
			}
			id := id
			found = &id
		}
	}
	return found
}
