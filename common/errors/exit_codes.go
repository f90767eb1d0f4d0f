package errors

type ExitCode int

// Values follow sysexits.h where one fits.
const (
	GenericFailureExitCode ExitCode = 1

	UsageExitCode        ExitCode = 64
	TraceDataExitCode    ExitCode = 65
	UnavailableExitCode  ExitCode = 69
	ServeFailureExitCode ExitCode = 70
	ConfigExitCode       ExitCode = 78
)
