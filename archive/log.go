package archive

import "log/slog"

var log = slog.Default()

// SetLogger overrides the package-level logger used to report
// tolerated deserialization errors (§7 "logs and returns a partial
// graph").
func SetLogger(l *slog.Logger) { log = l }
