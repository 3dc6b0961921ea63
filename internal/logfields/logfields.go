package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRun     = "run_id"
	KeyUnit    = "unit"
	KeyStage   = "stage"
	KeyPath    = "path"
	KeyRoot    = "root"
	KeyOutput  = "output"
	KeyLang    = "language"
	KeyPolicy  = "policy"
	KeyError   = "error"
	KeyElapsed = "duration_ms"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr       { return slog.String(KeyRun, id) }
func Unit(u string) slog.Attr         { return slog.String(KeyUnit, u) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Root(r string) slog.Attr         { return slog.String(KeyRoot, r) }
func Output(o string) slog.Attr       { return slog.String(KeyOutput, o) }
func Language(l string) slog.Attr     { return slog.String(KeyLang, l) }
func Policy(p string) slog.Attr       { return slog.String(KeyPolicy, p) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyElapsed, ms) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
