// Package protect flags declared plan files that fall inside sensitive
// areas so `brigade plan` can warn before any agent is spawned.
package protect

// DefaultPatterns are glob patterns for areas agents should not touch
// without a human noticing.
var DefaultPatterns = []string{
	"**/auth/**",
	"**/security/**",
	"**/migrations/**",
	"**/secrets/**",
	"**/credentials/**",
	"**/certs/**",
	"**/.ssh/**",
	"**/terraform/**",
	"**/helm/**",
	"**/k8s/**",
	"**/kubernetes/**",
	".github/workflows/**",
}

// DefaultKeywords are path substrings that indicate sensitive files.
// Kept short; plan warnings that fire on every session.go get ignored.
var DefaultKeywords = []string{
	"password",
	"secret",
	"credential",
	"private_key",
	"certificate",
}

// DefaultFileTypes are extensions that are sensitive regardless of
// location.
var DefaultFileTypes = []string{
	".pem",
	".key",
	".env",
	".tf",
	".sql",
	".p12",
	".pfx",
	".crt",
	".cer",
	".keystore",
}
