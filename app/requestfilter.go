package app

import (
	"fmt"
	"strings"
)

// FilterConfig configures a RequestFilter: whether file or directory
// dispatches are rejected outright, or redirected. Up to one of
// {RejectFiles, RejectDirectories} and up to one of {RedirectFiles,
// RedirectDirectories} may be set simultaneously — one reject shape plus
// one redirect shape is a consistent combination, even though a naive
// reading of "reject more than one flag" would forbid it (resolved per
// the note on RequestFilter validation below).
type FilterConfig struct {
	RejectFiles         bool
	RejectDirectories   bool
	RedirectFiles       bool
	RedirectDirectories bool
	RedirectSuffix      string // appended to Base when redirecting, e.g. "/"
}

// Validate reports an error if more than one reject flag or more than
// one redirect flag is set; one of each kind together is allowed.
func (c FilterConfig) Validate() error {
	if c.RejectFiles && c.RejectDirectories {
		return fmt.Errorf("app: RequestFilter: RejectFiles and RejectDirectories are mutually exclusive")
	}
	if c.RedirectFiles && c.RedirectDirectories {
		return fmt.Errorf("app: RequestFilter: RedirectFiles and RedirectDirectories are mutually exclusive")
	}
	return nil
}

// Verdict is the outcome of applying a RequestFilter to one dispatch.
type Verdict struct {
	Rejected   bool
	RedirectTo string // set iff a redirect is called for
}

// Apply evaluates cfg against dispatch, returning whichever of reject or
// redirect applies. Reject takes precedence over redirect for the same
// dispatch shape (a mount cannot be both rejected and redirected for the
// same request).
func Apply(cfg FilterConfig, dispatch DispatchInfo) Verdict {
	isDir := dispatch.IsDirectoryDispatch()

	if isDir && cfg.RejectDirectories {
		return Verdict{Rejected: true}
	}
	if !isDir && cfg.RejectFiles {
		return Verdict{Rejected: true}
	}

	if isDir && cfg.RedirectDirectories {
		return Verdict{RedirectTo: redirectTarget(dispatch, cfg.RedirectSuffix)}
	}
	if !isDir && cfg.RedirectFiles {
		return Verdict{RedirectTo: redirectTarget(dispatch, cfg.RedirectSuffix)}
	}

	return Verdict{}
}

func redirectTarget(dispatch DispatchInfo, suffix string) string {
	target := dispatch.Base + dispatch.Extra
	if suffix != "" && !strings.HasSuffix(target, suffix) {
		target += suffix
	}
	return target
}
