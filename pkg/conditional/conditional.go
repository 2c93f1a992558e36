// Package conditional evaluates the HTTP-style if-match/if-none-match/
// if-modified-since/if-unmodified-since predicate bundle the object
// handlers accept, against a single fetched row's etag and last-modified
// time.
package conditional

import (
	"fmt"
	"strings"
	"time"

	"github.com/cuemby/bucketsmdapi/pkg/mdapierror"
	"github.com/cuemby/bucketsmdapi/pkg/types"
)

// IsEmpty reports whether none of the four predicates are set, meaning
// the caller made an unconditional request.
func IsEmpty(c types.Conditions) bool {
	return c.IfMatch == nil && c.IfNoneMatch == nil &&
		c.IfModifiedSince == nil && c.IfUnmodifiedSince == nil
}

// Check evaluates c against a row identified by etag and lastModified, in
// the order if-match, if-unmodified-since, if-none-match,
// if-modified-since. The first predicate that fails short-circuits the
// rest and is returned as a *mdapierror.Error of kind
// PreconditionFailedError.
func Check(c types.Conditions, etag string, lastModified time.Time) error {
	if c.IfMatch != nil {
		if !matches(etag, c.IfMatch) {
			return mdapierror.PreconditionFailed(fmt.Sprintf(
				"if-match '%s' didn't match etag '%s'", printEtags(c.IfMatch), etag))
		}
	}

	if c.IfUnmodifiedSince != nil {
		if lastModified.After(*c.IfUnmodifiedSince) {
			return mdapierror.PreconditionFailed(fmt.Sprintf(
				"object was modified at '%s'; if-unmodified-since '%s'",
				lastModified.Format(time.RFC3339Nano), c.IfUnmodifiedSince.Format(time.RFC3339Nano)))
		}
	}

	if c.IfNoneMatch != nil {
		if matches(etag, c.IfNoneMatch) {
			return mdapierror.PreconditionFailed(fmt.Sprintf(
				"if-none-match '%s' matched etag '%s'", printEtags(c.IfNoneMatch), etag))
		}
	}

	if c.IfModifiedSince != nil {
		if !lastModified.After(*c.IfModifiedSince) {
			return mdapierror.PreconditionFailed(fmt.Sprintf(
				"object was modified at '%s'; if-modified-since '%s'",
				lastModified.Format(time.RFC3339Nano), c.IfModifiedSince.Format(time.RFC3339Nano)))
		}
	}

	return nil
}

// CheckAgainstMissing evaluates c for create against a non-existent row:
// there is no etag to satisfy any if-match entry, wildcard included, so
// any if-match predicate fails. if-none-match always passes, wildcard
// included, since there is nothing to collide with. if-modified-since and
// if-unmodified-since do not apply to a missing row and are ignored.
func CheckAgainstMissing(c types.Conditions) error {
	if c.IfMatch != nil {
		return mdapierror.PreconditionFailed(fmt.Sprintf(
			`if-match '%s' matched a non-existent object`, printEtags(c.IfMatch)))
	}
	return nil
}

func matches(etag string, clientEtags []string) bool {
	for _, e := range clientEtags {
		if e == "*" || e == etag {
			return true
		}
	}
	return false
}

func printEtags(etags []string) string {
	quoted := make([]string, len(etags))
	for i, e := range etags {
		quoted[i] = `"` + e + `"`
	}
	return strings.Join(quoted, ", ")
}
