package publish

import "github.com/kamusis/cubepub/internal/datasource"

// UserConfirmation asks the user questions and shows them outcomes.
type UserConfirmation interface {
	Confirm(title, message string) bool
	Notify(title, message string, severity Severity)
}

// Decision is what to do with the datasource step.
type Decision int

const (
	Proceed Decision = iota + 1
	ProceedWithOverwrite
	Skip
	Abort
)

func (d Decision) String() string {
	switch d {
	case Proceed:
		return "proceed"
	case ProceedWithOverwrite:
		return "proceed-with-overwrite"
	case Skip:
		return "skip"
	case Abort:
		return "abort"
	default:
		return "unknown"
	}
}

const datasourceTitle = "Publish datasource"

const (
	msgOkToPublish     = "The datasource does not exist on the server. Publish it?"
	msgIsDifferent     = "The datasource on the server differs from the local one. Replace it?"
	msgNonJNDI         = "Only native (JDBC) datasources can be published. Define the connection on the server and use JNDI instead."
	msgPublishCanceled = "Datasource publish canceled."
)

// Resolve turns a comparison into a datasource decision. In automatic mode ui
// is never consulted and may be nil; otherwise Confirm is called at most once.
func Resolve(cmp datasource.Comparison, automatic bool, ui UserConfirmation) Decision {
	switch cmp {
	case datasource.MustBeJNDI:
		if !automatic {
			ui.Notify(datasourceTitle, msgNonJNDI, SeverityError)
		}
		return Abort
	case datasource.Missing:
		if automatic {
			return Proceed
		}
		if !ui.Confirm(datasourceTitle, msgOkToPublish) {
			ui.Notify(datasourceTitle, msgPublishCanceled, SeverityError)
			return Abort
		}
		return Proceed
	case datasource.Different:
		if automatic {
			return ProceedWithOverwrite
		}
		if !ui.Confirm(datasourceTitle, msgIsDifferent) {
			ui.Notify(datasourceTitle, msgPublishCanceled, SeverityError)
			return Abort
		}
		return ProceedWithOverwrite
	default:
		return Skip
	}
}
