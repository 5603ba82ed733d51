package exitcode

const (
	Success         = 0
	UsageError      = 1
	ValidationError = 2
	DBConnError     = 3
	CopyError       = 4
	FitError        = 5
	ExportError     = 6
	ServeError      = 7
)
