package types

import "github.com/m-mizutani/goerr/v2"

// Error tags classify failures so that controllers can map them to
// responses without matching on messages.
var (
	ErrTagInvalidArgument = goerr.NewTag("invalid_argument")
	ErrTagNotFound        = goerr.NewTag("not_found")
	ErrTagParse           = goerr.NewTag("parse")
	ErrTagUnsupported     = goerr.NewTag("unsupported")
)
